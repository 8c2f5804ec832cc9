package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	var (
		buf bytes.Buffer
		ctx = context.Background()
		l   = New(Config{Level: "warn", Format: "json", Output: &buf})
	)
	l.Info(ctx, "dropped")
	assert.Equal(t, 0, buf.Len())

	l.With(Rank(2)).Warn(ctx, "particle not located", Uint64("particle", 17), Err(errors.New("outside")))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "particle not located", rec["msg"])
	assert.Equal(t, float64(2), rec["rank"])
	assert.Equal(t, float64(17), rec["particle"])
	assert.Equal(t, "outside", rec["error"])
}

func TestContextLogger(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Noop(), FromContext(ctx))
	l := New(Config{Output: &bytes.Buffer{}})
	assert.Equal(t, l, FromContext(ContextWithLogger(ctx, l)))
	assert.Equal(t, Noop(), FromContext(ContextWithLogger(ctx, nil)))
}
