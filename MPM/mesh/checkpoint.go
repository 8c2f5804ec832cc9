package mesh

import (
	"context"
	"fmt"

	"github.com/notargets/gompm/MPM/checkpoint"
	"github.com/notargets/gompm/types"
)

// recordType is the particle type records are decoded into
func (m *Mesh) recordType() types.ParticleType {
	if m.ptype != types.P_None {
		return m.ptype
	}
	if m.dim == 3 {
		return types.P_3D
	}
	return types.P_2D
}

// ParticlesRecords packs every particle in ascending id order
func (m *Mesh) ParticlesRecords() (recs []checkpoint.Record) {
	for _, p := range m.sortedParticles() {
		recs = append(recs, p.Record())
	}
	return
}

func (m *Mesh) ParticlesTwoPhaseRecords() (recs []checkpoint.TwoPhaseRecord) {
	for _, p := range m.sortedParticles() {
		recs = append(recs, p.TwoPhaseRecord())
	}
	return
}

func (m *Mesh) encodeParticles(ps []*Particle) ([]byte, error) {
	if m.recordType().IsTwoPhase() {
		recs := make([]checkpoint.TwoPhaseRecord, len(ps))
		for k, p := range ps {
			recs[k] = p.TwoPhaseRecord()
		}
		return checkpoint.Encode(recs)
	}
	recs := make([]checkpoint.Record, len(ps))
	for k, p := range ps {
		recs[k] = p.Record()
	}
	return checkpoint.Encode(recs)
}

func (m *Mesh) decodeParticles(data []byte) (ps []*Particle, err error) {
	if m.recordType().IsTwoPhase() {
		var recs []checkpoint.TwoPhaseRecord
		if recs, err = checkpoint.Decode[checkpoint.TwoPhaseRecord](data); err != nil {
			return
		}
		return m.particlesFromTwoPhaseRecords(recs)
	}
	var recs []checkpoint.Record
	if recs, err = checkpoint.Decode[checkpoint.Record](data); err != nil {
		return
	}
	return m.particlesFromRecords(recs)
}

func (m *Mesh) particleFromRecord(rec checkpoint.Record) (p *Particle, err error) {
	mat, ok := m.materials[rec.MaterialID]
	if !ok {
		return nil, fmt.Errorf("particle %d: material %d: %w", rec.ID, rec.MaterialID, ErrMaterialNotFound)
	}
	ctor, err := particleConstructor(m.recordType())
	if err != nil {
		return
	}
	if p, err = ctor(types.Index(rec.ID), rec.Coord[:m.dim]); err != nil {
		return
	}
	err = p.InitialiseFromRecord(rec, mat)
	return
}

func (m *Mesh) particlesFromRecords(recs []checkpoint.Record) (ps []*Particle, err error) {
	ps = make([]*Particle, len(recs))
	for k, rec := range recs {
		if ps[k], err = m.particleFromRecord(rec); err != nil {
			return nil, err
		}
	}
	return
}

func (m *Mesh) particlesFromTwoPhaseRecords(recs []checkpoint.TwoPhaseRecord) (ps []*Particle, err error) {
	ps = make([]*Particle, len(recs))
	for k, rec := range recs {
		if ps[k], err = m.particleFromRecord(rec.Record); err != nil {
			return nil, err
		}
		if err = ps[k].InitialiseFromTwoPhaseRecord(rec, ps[k].Material()); err != nil {
			return nil, err
		}
	}
	return
}

// Checkpoint formats
const (
	FormatBinary = "binary"
	FormatSQLite = "sqlite"
)

// WriteParticles saves every particle of this rank, as a binary file or as step step
// of an sqlite store
func (m *Mesh) WriteParticles(ctx context.Context, path, format string, step int64, time float64) (err error) {
	twoPhase := m.recordType().IsTwoPhase()
	switch format {
	case FormatBinary:
		if twoPhase {
			err = checkpoint.WriteFile(path, m.ParticlesTwoPhaseRecords())
		} else {
			err = checkpoint.WriteFile(path, m.ParticlesRecords())
		}
	case FormatSQLite:
		var s *checkpoint.SQLiteStore
		if s, err = checkpoint.OpenSQLiteStore(ctx, path); err != nil {
			break
		}
		if twoPhase {
			err = checkpoint.SaveStep(ctx, s, step, time, m.ParticlesTwoPhaseRecords())
		} else {
			err = checkpoint.SaveStep(ctx, s, step, time, m.ParticlesRecords())
		}
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	default:
		err = fmt.Errorf("%w: checkpoint format %q", ErrInvalidValue, format)
	}
	if err != nil {
		m.warn("write particles failed", err)
	}
	return
}

/*
ReadParticles replaces the particles of this rank with those saved by WriteParticles
and locates them, the saved cell ids are tried first. Nothing changes if the file can't
be read or refers to an unknown material. The returned time is the saved step time for
sqlite stores and zero for binary files.
*/
func (m *Mesh) ReadParticles(ctx context.Context, path, format string, step int64) (unlocated []*Particle, time float64, err error) {
	defer func() {
		if err != nil {
			m.warn("read particles failed", err)
		}
	}()
	var (
		ps       []*Particle
		twoPhase = m.recordType().IsTwoPhase()
	)
	switch format {
	case FormatBinary:
		if twoPhase {
			var recs []checkpoint.TwoPhaseRecord
			if recs, err = checkpoint.ReadFile[checkpoint.TwoPhaseRecord](path); err == nil {
				ps, err = m.particlesFromTwoPhaseRecords(recs)
			}
		} else {
			var recs []checkpoint.Record
			if recs, err = checkpoint.ReadFile[checkpoint.Record](path); err == nil {
				ps, err = m.particlesFromRecords(recs)
			}
		}
	case FormatSQLite:
		var s *checkpoint.SQLiteStore
		if s, err = checkpoint.OpenSQLiteStore(ctx, path); err != nil {
			return
		}
		defer s.Close()
		if twoPhase {
			var recs []checkpoint.TwoPhaseRecord
			if recs, time, err = checkpoint.LoadStep[checkpoint.TwoPhaseRecord](ctx, s, step); err == nil {
				ps, err = m.particlesFromTwoPhaseRecords(recs)
			}
		} else {
			var recs []checkpoint.Record
			if recs, time, err = checkpoint.LoadStep[checkpoint.Record](ctx, s, step); err == nil {
				ps, err = m.particlesFromRecords(recs)
			}
		}
	default:
		err = fmt.Errorf("%w: checkpoint format %q", ErrInvalidValue, format)
	}
	if err != nil {
		return
	}
	seen := make(map[types.Index]bool, len(ps))
	for _, p := range ps {
		if seen[p.ID()] {
			return nil, 0, fmt.Errorf("particle %d: %w", p.ID(), ErrDuplicateID)
		}
		seen[p.ID()] = true
	}
	for _, p := range append([]*Particle(nil), m.particles.Items()...) {
		_ = m.RemoveParticle(p)
	}
	for _, p := range ps {
		if err = m.addParticle(p); err != nil {
			return
		}
	}
	unlocated = m.LocateParticles()
	return
}
