package mesh

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/notargets/gompm/MPM/comm"
	"github.com/notargets/gompm/internal/logging"
	"github.com/notargets/gompm/internal/observability"
)

func (m *Mesh) sendParticles(ctx context.Context, dst, countTag, recordTag int, ps []*Particle) (err error) {
	if err = comm.SendUint64(ctx, m.comm, dst, countTag, uint64(len(ps))); err != nil || len(ps) == 0 {
		return
	}
	data, err := m.encodeParticles(ps)
	if err != nil {
		return
	}
	return m.comm.Send(ctx, dst, recordTag, data)
}

func (m *Mesh) recvParticles(ctx context.Context, src, countTag, recordTag int) (ps []*Particle, err error) {
	count, err := comm.RecvUint64(ctx, m.comm, src, countTag)
	if err != nil || count == 0 {
		return
	}
	data, err := m.comm.Recv(ctx, src, recordTag)
	if err != nil {
		return
	}
	if ps, err = m.decodeParticles(data); err != nil {
		return
	}
	if uint64(len(ps)) != count {
		return nil, fmt.Errorf("%w: rank %d announced %d particles, sent %d", ErrInvalidValue, src, count, len(ps))
	}
	return
}

func (m *Mesh) residents(c *Cell) (ps []*Particle) {
	for _, pid := range c.ParticleIDs() {
		if p, ok := m.particleMap.Find(pid); ok {
			ps = append(ps, p)
		}
	}
	return
}

/*
TransferNonRankParticles moves the particles located in cells owned by other ranks to
those ranks. For every ghost cell, in cell id order, the count and then the records of
its particles go to the owning rank; the receiver reads them back through its local
ghost cells in the same order. Particles further inside another rank's cells go in one
count and payload per rank pair. Every send is posted before the first receive.
Received particles are bound to their recorded cell, or located when that fails. An
arriving id already used on this rank is replaced by the next free id.
*/
func (m *Mesh) TransferNonRankParticles(ctx context.Context) (err error) {
	if m.comm.Size() == 1 {
		return
	}
	me := m.Rank()
	ctx, span := observability.StartSpan(ctx, "mesh.migrate", me,
		attribute.Int("ghost_cells", m.ghostCells.Size()), attribute.Int("local_ghost_cells", m.localGhostCells.Size()))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			m.log.Error(ctx, "particle migration failed", logging.Err(err))
		}
	}()

	var (
		sent   []*Particle
		strays = make([][]*Particle, m.comm.Size())
	)
	for _, cid := range m.ghostCells.Ids() {
		c, _ := m.cellMap.Find(cid)
		ps := m.residents(c)
		if err = m.sendParticles(ctx, c.Rank(), comm.TagMigrateCount, comm.TagMigrateRecords, ps); err != nil {
			return fmt.Errorf("ghost cell %d to rank %d: %w", cid, c.Rank(), err)
		}
		sent = append(sent, ps...)
	}
	for _, p := range m.sortedParticles() {
		if c := p.Cell(); c != nil && c.Rank() != me && !m.ghostCells.Has(c) {
			strays[c.Rank()] = append(strays[c.Rank()], p)
		}
	}
	for r := range strays {
		if r == me {
			continue
		}
		if err = m.sendParticles(ctx, r, comm.TagStrayCount, comm.TagStrayRecords, strays[r]); err != nil {
			return fmt.Errorf("stray particles to rank %d: %w", r, err)
		}
		sent = append(sent, strays[r]...)
	}
	for _, p := range sent {
		_ = m.RemoveParticle(p)
	}

	var received []*Particle
	for _, cid := range m.localGhostCells.Ids() {
		for _, r := range m.localGhostCellRanks[cid] {
			var ps []*Particle
			if ps, err = m.recvParticles(ctx, r, comm.TagMigrateCount, comm.TagMigrateRecords); err != nil {
				return fmt.Errorf("local ghost cell %d from rank %d: %w", cid, r, err)
			}
			received = append(received, ps...)
		}
	}
	for r := 0; r < m.comm.Size(); r++ {
		if r == me {
			continue
		}
		var ps []*Particle
		if ps, err = m.recvParticles(ctx, r, comm.TagStrayCount, comm.TagStrayRecords); err != nil {
			return fmt.Errorf("stray particles from rank %d: %w", r, err)
		}
		received = append(received, ps...)
	}
	// Particle ids are per rank, an arriving id already in use here gets a fresh one
	var (
		errs []error
		next = m.nextParticleID()
	)
	for _, p := range received {
		if m.particleMap.Has(p.ID()) {
			for m.particleMap.Has(next) {
				next++
			}
			old := p.ID()
			p.id = next
			m.log.Debug(ctx, "migrated particle renumbered",
				logging.Uint64("from", uint64(old)), logging.Uint64("to", uint64(p.ID())))
		}
		aerr := m.checkParticleType(p.Type())
		if aerr == nil {
			aerr = m.addParticle(p)
		}
		if aerr != nil {
			errs = append(errs, fmt.Errorf("add particle %d: %w", p.ID(), aerr))
			continue
		}
		if !m.locateParticleCells(p) {
			m.log.Warn(ctx, "migrated particle not located", logging.Uint64("particle", uint64(p.ID())))
		}
	}
	if err = errors.Join(errs...); err != nil {
		return
	}
	m.met.ObserveMigration(me, len(sent), len(received))
	m.log.Debug(ctx, "particles migrated", logging.Int("sent", len(sent)), logging.Int("received", len(received)))
	span.SetAttributes(attribute.Int("sent", len(sent)), attribute.Int("received", len(received)))
	return
}
