package observability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MeshCollector bundles the Prometheus metrics of the mesh layer. Every metric is labelled
// by rank so in-process ranks can share one registry. A nil collector records nothing.
type MeshCollector struct {
	gatherer prometheus.Gatherer

	ParticlesLocated   *prometheus.CounterVec
	ParticlesUnlocated *prometheus.CounterVec
	ParticlesMigrated  *prometheus.CounterVec
	HaloExchanges      *prometheus.CounterVec
	HaloDurations      *prometheus.HistogramVec

	Nodes       *prometheus.GaugeVec
	Cells       *prometheus.GaugeVec
	Particles   *prometheus.GaugeVec
	SharedNodes *prometheus.GaugeVec
}

// NewMeshCollector registers the mesh metrics against reg, the global registry when nil
func NewMeshCollector(reg prometheus.Registerer) (*MeshCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &MeshCollector{gatherer: gatherer}

	var err error
	counter := func(name, help string, labels ...string) (vec *prometheus.CounterVec) {
		if err != nil {
			return
		}
		vec, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name, Help: help,
		}, append([]string{"rank"}, labels...)), name)
		return
	}
	gauge := func(name, help string) (vec *prometheus.GaugeVec) {
		if err != nil {
			return
		}
		vec, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name, Help: help,
		}, []string{"rank"}), name)
		return
	}
	c.ParticlesLocated = counter("mpm_particles_located_total", "Particles bound to a cell by the locate sweep.")
	c.ParticlesUnlocated = counter("mpm_particles_unlocated_total", "Particles no cell contained during the locate sweep.")
	c.ParticlesMigrated = counter("mpm_particles_migrated_total",
		"Particles transferred between ranks, labelled by direction (sent or received).", "direction")
	c.HaloExchanges = counter("mpm_halo_exchanges_total", "Nodal halo exchanges, labelled by strategy.", "strategy")
	c.Nodes = gauge("mpm_nodes", "Nodes held by the mesh.")
	c.Cells = gauge("mpm_cells", "Cells held by the mesh.")
	c.Particles = gauge("mpm_particles", "Particles held by the rank.")
	c.SharedNodes = gauge("mpm_domain_shared_nodes", "Nodes incident to cells of more than one rank.")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mpm_halo_exchange_duration_seconds",
		Help:    "Wall time of a nodal halo exchange.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"rank", "strategy"})
	if c.HaloDurations, err = registerHistogramVec(reg, durations, "mpm_halo_exchange_duration_seconds"); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *MeshCollector) Gatherer() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// WriteTextfile dumps the current metric values in the Prometheus text format
func (c *MeshCollector) WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, c.Gatherer())
}

func (c *MeshCollector) ObserveLocate(rank, located, unlocated int) {
	if c == nil {
		return
	}
	r := strconv.Itoa(rank)
	c.ParticlesLocated.WithLabelValues(r).Add(float64(located))
	c.ParticlesUnlocated.WithLabelValues(r).Add(float64(unlocated))
}

func (c *MeshCollector) ObserveMigration(rank, sent, received int) {
	if c == nil {
		return
	}
	r := strconv.Itoa(rank)
	c.ParticlesMigrated.WithLabelValues(r, "sent").Add(float64(sent))
	c.ParticlesMigrated.WithLabelValues(r, "received").Add(float64(received))
}

func (c *MeshCollector) ObserveHaloExchange(rank int, strategy string, elapsed time.Duration) {
	if c == nil {
		return
	}
	r := strconv.Itoa(rank)
	c.HaloExchanges.WithLabelValues(r, strategy).Inc()
	c.HaloDurations.WithLabelValues(r, strategy).Observe(elapsed.Seconds())
}

func (c *MeshCollector) SetCounts(rank, nodes, cells, particles, sharedNodes int) {
	if c == nil {
		return
	}
	r := strconv.Itoa(rank)
	c.Nodes.WithLabelValues(r).Set(float64(nodes))
	c.Cells.WithLabelValues(r).Set(float64(cells))
	c.Particles.WithLabelValues(r).Set(float64(particles))
	c.SharedNodes.WithLabelValues(r).Set(float64(sharedNodes))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
