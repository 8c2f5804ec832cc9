package mesh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/notargets/gompm/MPM/comm"
	"github.com/notargets/gompm/internal/logging"
	"github.com/notargets/gompm/internal/observability"
)

type (
	// NodalGetter returns the ncomp local values of a node, NodalSetter stores the sums
	NodalGetter func(n *Node) []float64
	NodalSetter func(n *Node, vals []float64)
)

/*
HaloExchange sums a nodal quantity over every rank holding each domain shared node.
shared is the full list of shared nodes ordered by ghost id. Afterwards every rank
holding a shared node has the same sum for it.
*/
type HaloExchange interface {
	Name() string
	Exchange(ctx context.Context, c comm.Communicator, shared []*Node, ncomp int, get NodalGetter, set NodalSetter) error
}

// NewHaloExchange selects a strategy by name: "p2p" or "allreduce"
func NewHaloExchange(name string) (HaloExchange, error) {
	switch strings.ToLower(name) {
	case "", "p2p", "pointtopoint":
		return PointToPointHalo{}, nil
	case "allreduce":
		return AllReduceHalo{}, nil
	}
	return nil, fmt.Errorf("%w: halo exchange strategy %q", ErrInvalidValue, name)
}

func localValues(nodes []*Node, ncomp int, get NodalGetter) (vals [][]float64, err error) {
	vals = make([][]float64, len(nodes))
	for k, n := range nodes {
		v := get(n)
		if len(v) != ncomp {
			return nil, fmt.Errorf("node %d: %w: %d values, want %d", n.ID(), ErrDimensionMismatch, len(v), ncomp)
		}
		vals[k] = append([]float64(nil), v...)
	}
	return
}

// PointToPointHalo sends each neighbour rank the partial values of the nodes both hold,
// ordered by ghost id, and sums the partials in ascending rank order
type PointToPointHalo struct{}

func (PointToPointHalo) Name() string { return "p2p" }

func (PointToPointHalo) Exchange(ctx context.Context, c comm.Communicator, shared []*Node, ncomp int, get NodalGetter, set NodalSetter) (err error) {
	var (
		me    = c.Rank()
		mine  []*Node
		peers = make(map[int]bool)
	)
	for _, n := range shared {
		if n.HasRank(me) {
			mine = append(mine, n)
			for _, r := range n.Ranks() {
				if r != me {
					peers[r] = true
				}
			}
		}
	}
	local, err := localValues(mine, ncomp, get)
	if err != nil {
		return
	}
	ranks := sortedRanks(peers)
	for _, r := range ranks {
		var buf []float64
		for k, n := range mine {
			if n.HasRank(r) {
				buf = append(buf, local[k]...)
			}
		}
		if err = c.Send(ctx, r, comm.TagHalo, comm.EncodeFloat64s(buf)); err != nil {
			return fmt.Errorf("halo send to rank %d: %w", r, err)
		}
	}
	partials := make(map[int][]float64, len(ranks))
	for _, r := range ranks {
		var data []byte
		if data, err = c.Recv(ctx, r, comm.TagHalo); err != nil {
			return fmt.Errorf("halo receive from rank %d: %w", r, err)
		}
		if partials[r], err = comm.DecodeFloat64s(data); err != nil {
			return fmt.Errorf("halo receive from rank %d: %w", r, err)
		}
	}
	next := make(map[int]int, len(ranks))
	sums := make([][]float64, len(mine))
	for k, n := range mine {
		sum := make([]float64, ncomp)
		for _, r := range n.Ranks() {
			v := local[k]
			if r != me {
				off := next[r]
				if off+ncomp > len(partials[r]) {
					return fmt.Errorf("halo from rank %d: %w: short payload of %d values", r, ErrInvalidValue, len(partials[r]))
				}
				v, next[r] = partials[r][off:off+ncomp], off+ncomp
			}
			for i := range sum {
				sum[i] += v[i]
			}
		}
		sums[k] = sum
	}
	for r, off := range next {
		if off != len(partials[r]) {
			return fmt.Errorf("halo from rank %d: %w: %d values, used %d", r, ErrInvalidValue, len(partials[r]), off)
		}
	}
	for k, n := range mine {
		set(n, sums[k])
	}
	return
}

// AllReduceHalo reduces one buffer indexed by ghost id over all ranks and scatters it back
type AllReduceHalo struct{}

func (AllReduceHalo) Name() string { return "allreduce" }

func (AllReduceHalo) Exchange(ctx context.Context, c comm.Communicator, shared []*Node, ncomp int, get NodalGetter, set NodalSetter) (err error) {
	var (
		me  = c.Rank()
		buf = make([]float64, len(shared)*ncomp)
	)
	for _, n := range shared {
		if !n.HasRank(me) {
			continue
		}
		v := get(n)
		if len(v) != ncomp {
			return fmt.Errorf("node %d: %w: %d values, want %d", n.ID(), ErrDimensionMismatch, len(v), ncomp)
		}
		copy(buf[n.GhostID()*ncomp:], v)
	}
	if err = comm.AllReduceSum(ctx, c, buf); err != nil {
		return fmt.Errorf("halo all reduce: %w", err)
	}
	for _, n := range shared {
		if n.HasRank(me) {
			gid := n.GhostID()
			set(n, append([]float64(nil), buf[gid*ncomp:(gid+1)*ncomp]...))
		}
	}
	return
}

// NodalHaloExchange sums ncomp values per shared node across ranks with the configured
// strategy. FindDomainSharedNodes must have run on every rank.
func (m *Mesh) NodalHaloExchange(ctx context.Context, ncomp int, get NodalGetter, set NodalSetter) (err error) {
	if m.comm.Size() == 1 || len(m.sharedNodes) == 0 {
		return
	}
	ctx, span := observability.StartSpan(ctx, "mesh.halo_exchange", m.Rank(),
		attribute.String("strategy", m.halo.Name()), attribute.Int("shared_nodes", len(m.sharedNodes)),
		attribute.Int("components", ncomp))
	defer span.End()
	start := time.Now()
	if err = m.halo.Exchange(ctx, m.comm, m.sharedNodes, ncomp, get, set); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.log.Error(ctx, "halo exchange failed", logging.String("strategy", m.halo.Name()), logging.Err(err))
		return
	}
	m.met.ObserveHaloExchange(m.Rank(), m.halo.Name(), time.Since(start))
	return
}

// checkNodalPhase refuses a phase some node does not carry, on every rank alike
func (m *Mesh) checkNodalPhase(phase int) error {
	for _, n := range m.nodes.Items() {
		if err := n.checkPhase(phase); err != nil {
			return err
		}
	}
	return nil
}

// HaloExchangeMass sums the nodal mass of phase across ranks
func (m *Mesh) HaloExchangeMass(ctx context.Context, phase int) (err error) {
	if err = m.checkNodalPhase(phase); err != nil {
		return fmt.Errorf("halo exchange mass: %w", err)
	}
	return m.NodalHaloExchange(ctx, 1,
		func(n *Node) []float64 { return []float64{n.Mass(phase)} },
		func(n *Node, v []float64) { _ = n.AssignMass(phase, v[0]) })
}

func (m *Mesh) HaloExchangeMomentum(ctx context.Context, phase int) (err error) {
	if err = m.checkNodalPhase(phase); err != nil {
		return fmt.Errorf("halo exchange momentum: %w", err)
	}
	return m.NodalHaloExchange(ctx, m.dim,
		func(n *Node) []float64 { return n.Momentum(phase) },
		func(n *Node, v []float64) { _ = n.AssignMomentum(phase, v) })
}
