// Package store persists a campaign's metadata and its append-only
// collection of run records in a SQLite database under the campaign's
// storage directory.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver

	"simsweep/internal/params"
)

// Sentinel errors for typed error checking.
var (
	ErrDuplicateRun     = errors.New("run record already exists for combination and seed")
	ErrCampaignMismatch = errors.New("campaign identity mismatch")
)

const dbFile = "campaign.db"

// Store owns the campaign database. Appends are serialized through a
// single writer lock; reads only ever observe fully written records.
type Store struct {
	mu   sync.Mutex // serializes appends
	db   *sql.DB
	dir  string
	meta Metadata
}

// Open creates the campaign store under dir, or loads an existing one.
// When the database already holds campaign metadata, the program name
// and fingerprint must match meta or loading fails with
// ErrCampaignMismatch.
func Open(ctx context.Context, dir string, meta Metadata) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	path := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with a single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, dir: dir}
	existing, found, err := s.loadMetadata(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	if found {
		if existing.ProgramName != meta.ProgramName {
			db.Close()
			return nil, fmt.Errorf("%w: store has program %q, caller expects %q",
				ErrCampaignMismatch, existing.ProgramName, meta.ProgramName)
		}
		if existing.Fingerprint != meta.Fingerprint {
			db.Close()
			return nil, fmt.Errorf("%w: store has fingerprint %q, caller expects %q",
				ErrCampaignMismatch, existing.Fingerprint, meta.Fingerprint)
		}
		s.meta = existing
		log.Info().Str("dir", dir).Str("program", existing.ProgramName).Msg("loaded existing campaign store")
		return s, nil
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	if err := s.writeMetadata(ctx, meta); err != nil {
		db.Close()
		return nil, err
	}
	s.meta = meta
	log.Info().Str("dir", dir).Str("program", meta.ProgramName).Msg("created campaign store")
	return s, nil
}

// Close shuts down the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the storage directory the store is bound to.
func (s *Store) Dir() string { return s.dir }

// Metadata returns the campaign identity the store was opened with.
func (s *Store) Metadata() Metadata {
	meta := s.meta
	meta.Parameters = append([]string(nil), s.meta.Parameters...)
	return meta
}

// Append adds an immutable run record. It fails with ErrDuplicateRun
// when a record already exists for the same (combination, seed) pair.
func (s *Store) Append(ctx context.Context, rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paramsJSON, err := encodeParams(rec.Combination)
	if err != nil {
		return err
	}
	filesJSON, err := json.Marshal(rec.OutputFiles)
	if err != nil {
		return fmt.Errorf("encoding output files: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, combo_key, parameters, seed, exit_code, failed,
			failure_kind, stdout, stderr, duration_ms, output_files, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Combination.Key(), paramsJSON, rec.Seed, rec.ExitCode,
		boolToInt(rec.Failed), rec.FailureKind,
		truncateForDB(rec.Stdout, 1<<20),
		truncateForDB(rec.Stderr, 256*1024),
		rec.Duration.Milliseconds(), string(filesJSON),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s seed %d", ErrDuplicateRun, rec.Combination.Key(), rec.Seed)
		}
		return fmt.Errorf("inserting run record: %w", err)
	}
	return nil
}

// Query returns all run records whose combination matches every
// key/value in partial; keys absent from partial are wildcards. A full
// scan is fine at campaign sizes (thousands of records).
func (s *Store) Query(ctx context.Context, partial map[string]params.Value) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parameters, seed, exit_code, failed, failure_kind,
			stdout, stderr, duration_ms, output_files, created_at
		FROM runs ORDER BY combo_key, seed`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if rec.Combination.Matches(partial) {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

// Count returns the number of run records for an exact combination,
// failed runs included.
func (s *Store) Count(ctx context.Context, combo params.Combination) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE combo_key = ?`, combo.Key()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return n, nil
}

// Seeds returns the seeds already consumed by records for the exact
// combination, ascending.
func (s *Store) Seeds(ctx context.Context, combo params.Combination) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seed FROM runs WHERE combo_key = ? ORDER BY seed`, combo.Key())
	if err != nil {
		return nil, fmt.Errorf("querying seeds: %w", err)
	}
	defer rows.Close()

	var seeds []int64
	for rows.Next() {
		var seed int64
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("scanning seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

func (s *Store) scanRecord(rows *sql.Rows) (RunRecord, error) {
	var (
		rec        RunRecord
		paramsJSON string
		failed     int
		durationMS int64
		filesJSON  string
		createdAt  string
	)
	if err := rows.Scan(&rec.ID, &paramsJSON, &rec.Seed, &rec.ExitCode, &failed,
		&rec.FailureKind, &rec.Stdout, &rec.Stderr, &durationMS, &filesJSON, &createdAt); err != nil {
		return RunRecord{}, fmt.Errorf("scanning run row: %w", err)
	}

	combo, err := decodeParams(s.meta.Parameters, paramsJSON)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Combination = combo
	rec.Failed = failed != 0
	rec.Duration = time.Duration(durationMS) * time.Millisecond

	if err := json.Unmarshal([]byte(filesJSON), &rec.OutputFiles); err != nil {
		return RunRecord{}, fmt.Errorf("decoding output files: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("decoding record timestamp: %w", err)
	}
	rec.CreatedAt = ts
	return rec, nil
}

func (s *Store) loadMetadata(ctx context.Context) (Metadata, bool, error) {
	var (
		meta      Metadata
		namesJSON string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT program_name, fingerprint, parameters, seed_arg, created_at
		FROM campaign WHERE id = 1`).
		Scan(&meta.ProgramName, &meta.Fingerprint, &namesJSON, &meta.SeedArg, &createdAt)
	if err == sql.ErrNoRows {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, fmt.Errorf("reading campaign metadata: %w", err)
	}

	if err := json.Unmarshal([]byte(namesJSON), &meta.Parameters); err != nil {
		return Metadata{}, false, fmt.Errorf("decoding declared parameters: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Metadata{}, false, fmt.Errorf("decoding campaign timestamp: %w", err)
	}
	meta.CreatedAt = ts
	return meta, true, nil
}

func (s *Store) writeMetadata(ctx context.Context, meta Metadata) error {
	namesJSON, err := json.Marshal(meta.Parameters)
	if err != nil {
		return fmt.Errorf("encoding declared parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO campaign (id, program_name, fingerprint, parameters, seed_arg, created_at)
		VALUES (1, ?, ?, ?, ?, ?)`,
		meta.ProgramName, meta.Fingerprint, string(namesJSON), meta.SeedArg,
		meta.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing campaign metadata: %w", err)
	}
	return nil
}

type encodedValue struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func encodeParams(combo params.Combination) (string, error) {
	enc := make(map[string]encodedValue, combo.Len())
	for _, name := range combo.Names() {
		v, _ := combo.Get(name)
		kind, raw := v.Encode()
		enc[name] = encodedValue{Kind: kind, Value: raw}
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return "", fmt.Errorf("encoding parameters: %w", err)
	}
	return string(data), nil
}

func decodeParams(declared []string, data string) (params.Combination, error) {
	var enc map[string]encodedValue
	if err := json.Unmarshal([]byte(data), &enc); err != nil {
		return params.Combination{}, fmt.Errorf("decoding parameters: %w", err)
	}
	values := make(map[string]params.Value, len(enc))
	for name, ev := range enc {
		v, err := params.Decode(ev.Kind, ev.Value)
		if err != nil {
			return params.Combination{}, err
		}
		values[name] = v
	}
	combo, err := params.NewCombination(declared, values)
	if err != nil {
		return params.Combination{}, fmt.Errorf("stored record does not match declared parameters: %w", err)
	}
	return combo, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func truncateForDB(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
