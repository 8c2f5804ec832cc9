package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gompm/internal/logging"
)

func TestMeshCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewMeshCollector(reg)
	require.NoError(t, err)

	c.ObserveLocate(0, 10, 2)
	c.ObserveLocate(0, 5, 0)
	c.ObserveMigration(1, 3, 4)
	c.ObserveHaloExchange(1, "allreduce", 2*time.Millisecond)
	c.SetCounts(0, 9, 4, 15, 3)

	assert.Equal(t, 15., testutil.ToFloat64(c.ParticlesLocated.WithLabelValues("0")))
	assert.Equal(t, 2., testutil.ToFloat64(c.ParticlesUnlocated.WithLabelValues("0")))
	assert.Equal(t, 3., testutil.ToFloat64(c.ParticlesMigrated.WithLabelValues("1", "sent")))
	assert.Equal(t, 4., testutil.ToFloat64(c.ParticlesMigrated.WithLabelValues("1", "received")))
	assert.Equal(t, 1., testutil.ToFloat64(c.HaloExchanges.WithLabelValues("1", "allreduce")))
	assert.Equal(t, 3., testutil.ToFloat64(c.SharedNodes.WithLabelValues("0")))

	{ // Registering twice hands back the existing collectors
		c2, err := NewMeshCollector(reg)
		require.NoError(t, err)
		c2.ObserveLocate(0, 1, 0)
		assert.Equal(t, 16., testutil.ToFloat64(c.ParticlesLocated.WithLabelValues("0")))
	}
	{ // Text file dump
		fname := filepath.Join(t.TempDir(), "mpm.prom")
		require.NoError(t, c.WriteTextfile(fname))
		data, err := os.ReadFile(fname)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(data), "mpm_particles_located_total"))
	}
}

func TestNilCollector(t *testing.T) {
	var c *MeshCollector
	assert.NotPanics(t, func() {
		c.ObserveLocate(0, 1, 1)
		c.ObserveMigration(0, 1, 1)
		c.ObserveHaloExchange(0, "p2p", time.Second)
		c.SetCounts(0, 1, 1, 1, 1)
	})
}

func TestTracingDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{}, logging.Noop())
	require.NoError(t, err)
	_, span := StartSpan(ctx, "halo", 0)
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)

	_, err = InitTracing(ctx, TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	assert.Error(t, err)
}
