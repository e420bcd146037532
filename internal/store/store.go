// Package store archives sampling runs in a local SQLite database so that
// composition commands can work from stored draws without re-running the
// sampler. The archive is a cache at the CLI boundary; the in-memory model
// objects never depend on it.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hierbayes/hierfit/internal/hierr"
	"github.com/hierbayes/hierfit/internal/sampler"
)

const schema = `
CREATE TABLE IF NOT EXISTS fits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    model TEXT NOT NULL,           -- 'exposure' or 'outcome'
    created_at TEXT NOT NULL,
    iter INTEGER NOT NULL,
    warmup INTEGER NOT NULL,
    chains INTEGER NOT NULL,
    adapt_delta REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS draws (
    fit_id INTEGER NOT NULL REFERENCES fits(id) ON DELETE CASCADE,
    param TEXT NOT NULL,
    n_draws INTEGER NOT NULL,
    n_units INTEGER NOT NULL,
    data BLOB NOT NULL,            -- float64 LE, row-major
    PRIMARY KEY (fit_id, param)
);
`

// Archive is a SQLite-backed store of named sampling runs.
type Archive struct {
	mu sync.RWMutex
	db *sql.DB
}

// FitInfo describes one archived run.
type FitInfo struct {
	Name      string
	Model     string
	CreatedAt time.Time
	Control   sampler.Control
}

// Open opens (creating if needed) the archive at path.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveFit stores a sampling run under name, replacing any previous run with
// the same name.
func (a *Archive) SaveFit(ctx context.Context, name, model string, ctl sampler.Control, d *sampler.Draws) error {
	if name == "" {
		return hierr.Validationf("fit name", "must not be empty")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fits WHERE name = ?`, name); err != nil {
		return fmt.Errorf("replacing fit %q: %w", name, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO fits (name, model, created_at, iter, warmup, chains, adapt_delta)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, model, time.Now().UTC().Format(time.RFC3339),
		ctl.Iter, ctl.Warmup, ctl.Chains, ctl.AdaptDelta)
	if err != nil {
		return fmt.Errorf("inserting fit %q: %w", name, err)
	}
	fitID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading fit id: %w", err)
	}

	for _, param := range d.Names() {
		m, err := d.Matrix(param)
		if err != nil {
			return err
		}
		rows, cols := m.Dims()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO draws (fit_id, param, n_draws, n_units, data) VALUES (?, ?, ?, ?, ?)`,
			fitID, param, rows, cols, encodeMatrix(m)); err != nil {
			return fmt.Errorf("inserting draws for %q: %w", param, err)
		}
	}
	return tx.Commit()
}

// LoadFit returns the draws of a named run. An unknown name is a StateError.
func (a *Archive) LoadFit(ctx context.Context, name string) (*sampler.Draws, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var fitID int64
	err := a.db.QueryRowContext(ctx, `SELECT id FROM fits WHERE name = ?`, name).Scan(&fitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &hierr.StateError{Item: name, Reason: "fit not found in archive"}
	}
	if err != nil {
		return nil, fmt.Errorf("looking up fit %q: %w", name, err)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT param, n_draws, n_units, data FROM draws WHERE fit_id = ? ORDER BY param`, fitID)
	if err != nil {
		return nil, fmt.Errorf("loading draws for %q: %w", name, err)
	}
	defer rows.Close()

	params := make(map[string]*mat.Dense)
	for rows.Next() {
		var (
			param          string
			nDraws, nUnits int
			blob           []byte
		)
		if err := rows.Scan(&param, &nDraws, &nUnits, &blob); err != nil {
			return nil, fmt.Errorf("scanning draws row: %w", err)
		}
		m, err := decodeMatrix(blob, nDraws, nUnits)
		if err != nil {
			return nil, fmt.Errorf("decoding draws for %q: %w", param, err)
		}
		params[param] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating draws for %q: %w", name, err)
	}
	return sampler.NewDraws(params), nil
}

// ListFits returns the archived runs, newest first.
func (a *Archive) ListFits(ctx context.Context) ([]FitInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.QueryContext(ctx,
		`SELECT name, model, created_at, iter, warmup, chains, adapt_delta
		 FROM fits ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing fits: %w", err)
	}
	defer rows.Close()

	var fits []FitInfo
	for rows.Next() {
		var (
			info    FitInfo
			created string
		)
		if err := rows.Scan(&info.Name, &info.Model, &created,
			&info.Control.Iter, &info.Control.Warmup, &info.Control.Chains,
			&info.Control.AdaptDelta); err != nil {
			return nil, fmt.Errorf("scanning fit row: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, created)
		fits = append(fits, info)
	}
	return fits, rows.Err()
}

// DeleteFit removes a named run. Deleting an unknown name is a no-op.
func (a *Archive) DeleteFit(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.db.ExecContext(ctx, `DELETE FROM fits WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting fit %q: %w", name, err)
	}
	return nil
}

func encodeMatrix(m *mat.Dense) []byte {
	rows, cols := m.Dims()
	buf := make([]byte, 8*rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			binary.LittleEndian.PutUint64(buf[8*(i*cols+j):], math.Float64bits(m.At(i, j)))
		}
	}
	return buf
}

func decodeMatrix(blob []byte, rows, cols int) (*mat.Dense, error) {
	if len(blob) != 8*rows*cols {
		return nil, hierr.Validationf("draws blob", "%d bytes for a %dx%d matrix", len(blob), rows, cols)
	}
	vals := make([]float64, rows*cols)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return mat.NewDense(rows, cols, vals), nil
}
