package checkpoint

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS steps (
	step  INTEGER PRIMARY KEY,
	time  REAL NOT NULL,
	kind  INTEGER NOT NULL,
	count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS particles (
	step        INTEGER NOT NULL REFERENCES steps(step) ON DELETE CASCADE,
	id          INTEGER NOT NULL,
	cell_id     INTEGER NOT NULL,
	material_id INTEGER NOT NULL,
	status      INTEGER NOT NULL,
	mass        REAL NOT NULL,
	volume      REAL NOT NULL,
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	z           REAL NOT NULL,
	record      BLOB NOT NULL,
	PRIMARY KEY (step, id)
);`

// SQLiteStore keeps one checkpoint per step. The scalar columns are for querying,
// the record column holds the exact binary record so a restart is bit for bit.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func OpenSQLiteStore(ctx context.Context, path string) (s *SQLiteStore, err error) {
	var db *sql.DB
	if db, err = sql.Open("sqlite", path); err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", schema} {
		if _, err = db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialise %s: %w", path, err)
		}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Steps lists the stored steps in ascending order
func (s *SQLiteStore) Steps(ctx context.Context) (steps []int64, err error) {
	var rows *sql.Rows
	if rows, err = s.db.QueryContext(ctx, "SELECT step FROM steps ORDER BY step"); err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var step int64
		if err = rows.Scan(&step); err != nil {
			return
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func baseOf[T Records](rec *T) *Record {
	switch r := any(rec).(type) {
	case *Record:
		return r
	case *TwoPhaseRecord:
		return &r.Record
	}
	return nil
}

// SaveStep replaces the checkpoint of step with recs in one transaction
func SaveStep[T Records](ctx context.Context, s *SQLiteStore, step int64, time float64, recs []T) (err error) {
	var tx *sql.Tx
	if tx, err = s.db.BeginTx(ctx, nil); err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range []string{"DELETE FROM particles WHERE step = ?", "DELETE FROM steps WHERE step = ?"} {
		if _, err = tx.ExecContext(ctx, stmt, step); err != nil {
			return
		}
	}
	if _, err = tx.ExecContext(ctx, "INSERT INTO steps (step, time, kind, count) VALUES (?, ?, ?, ?)",
		step, time, int64(KindOf[T]()), len(recs)); err != nil {
		return
	}
	var stmt *sql.Stmt
	if stmt, err = tx.PrepareContext(ctx, `INSERT INTO particles
		(step, id, cell_id, material_id, status, mass, volume, x, y, z, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return
	}
	defer stmt.Close()
	for k := range recs {
		var blob []byte
		if blob, err = Encode(recs[k : k+1]); err != nil {
			return
		}
		r := baseOf(&recs[k])
		if _, err = stmt.ExecContext(ctx, step, int64(r.ID), int64(r.CellID), int64(r.MaterialID),
			int64(r.Status), r.Mass, r.Volume, r.Coord[0], r.Coord[1], r.Coord[2], blob); err != nil {
			return fmt.Errorf("step %d particle %d: %w", step, r.ID, err)
		}
	}
	return tx.Commit()
}

// LoadStep returns the records of step ordered by particle id
func LoadStep[T Records](ctx context.Context, s *SQLiteStore, step int64) (recs []T, time float64, err error) {
	var kind, count int64
	if err = s.db.QueryRowContext(ctx, "SELECT time, kind, count FROM steps WHERE step = ?", step).
		Scan(&time, &kind, &count); err != nil {
		return nil, 0, fmt.Errorf("step %d: %w", step, err)
	}
	if Kind(kind) != KindOf[T]() {
		return nil, 0, fmt.Errorf("step %d holds %s records, want %s", step, Kind(kind), KindOf[T]())
	}
	var rows *sql.Rows
	if rows, err = s.db.QueryContext(ctx, "SELECT record FROM particles WHERE step = ? ORDER BY id", step); err != nil {
		return
	}
	defer rows.Close()
	recs = make([]T, 0, count)
	for rows.Next() {
		var (
			blob []byte
			one  []T
		)
		if err = rows.Scan(&blob); err != nil {
			return
		}
		if one, err = Decode[T](blob); err != nil {
			return
		}
		recs = append(recs, one...)
	}
	if err = rows.Err(); err != nil {
		return
	}
	if int64(len(recs)) != count {
		err = fmt.Errorf("step %d: expected %d records, found %d", step, count, len(recs))
	}
	return
}
