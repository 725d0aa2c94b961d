package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/memgate/memgate/internal/model"
)

// SQLiteStore implements the gateway repositories over a single SQLite
// database. WAL mode gives readers a consistent snapshot as of statement
// start while writers proceed.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// _txlock=immediate makes every transaction take the write lock at
	// BEGIN, so concurrent writers queue on busy_timeout instead of
	// deadlocking on a read-to-write lock upgrade mid-transaction.
	db, err := sql.Open("sqlite", dbPath+"?_txlock=immediate&_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// sqliteBusy reports whether err is the driver's SQLITE_BUSY, which
// surfaces when a writer cannot acquire the lock within busy_timeout.
func sqliteBusy(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SQLITE_BUSY")
}

// NewID returns a fresh ULID for a memory or candidate.
func (s *SQLiteStore) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		type        TEXT NOT NULL,
		branch      TEXT NOT NULL,
		salience    REAL NOT NULL DEFAULT 0,
		sensitivity TEXT NOT NULL DEFAULT 'low',
		content     TEXT NOT NULL,
		provenance  TEXT NOT NULL,
		links       TEXT,
		updated_at  TEXT NOT NULL,
		version     INTEGER NOT NULL DEFAULT 1,
		deleted_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_branch ON memories(branch);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);
	CREATE INDEX IF NOT EXISTS idx_memories_updated ON memories(updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_deleted ON memories(deleted_at);

	CREATE TABLE IF NOT EXISTS candidates (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		type        TEXT NOT NULL,
		branch      TEXT NOT NULL,
		salience    REAL NOT NULL DEFAULT 0,
		sensitivity TEXT NOT NULL DEFAULT 'low',
		content     TEXT NOT NULL,
		provenance  TEXT NOT NULL,
		rationale   TEXT,
		conflicts   TEXT,
		status      TEXT NOT NULL DEFAULT 'proposed',
		proposed_at TEXT NOT NULL,
		resolved_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status);
	CREATE INDEX IF NOT EXISTS idx_candidates_branch ON candidates(branch);

	CREATE TABLE IF NOT EXISTS clients (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		branches        TEXT NOT NULL,
		types           TEXT NOT NULL,
		sensitivity_max TEXT NOT NULL DEFAULT 'low',
		enabled         INTEGER NOT NULL DEFAULT 1,
		last_access     TEXT
	);

	CREATE TABLE IF NOT EXISTS audit_events (
		id         TEXT PRIMARY KEY,
		action     TEXT NOT NULL,
		target_id  TEXT NOT NULL,
		detail     TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_events(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so row helpers work inside
// and outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const memoryCols = `id, title, type, branch, salience, sensitivity, content, provenance, links, updated_at, version, deleted_at`

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var content, provenance string
	var links, deletedAt sql.NullString
	var updatedAt string

	err := row.Scan(
		&m.ID, &m.Title, &m.Type, &m.Branch, &m.Salience, &m.Sensitivity,
		&content, &provenance, &links, &updatedAt, &m.Version, &deletedAt,
	)
	if err != nil {
		return m, err
	}

	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if err := json.Unmarshal([]byte(content), &m.Content); err != nil {
		return m, fmt.Errorf("decode content for %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(provenance), &m.Provenance); err != nil {
		return m, fmt.Errorf("decode provenance for %s: %w", m.ID, err)
	}
	if links.Valid && links.String != "" {
		if err := json.Unmarshal([]byte(links.String), &m.Links); err != nil {
			return m, fmt.Errorf("decode links for %s: %w", m.ID, err)
		}
	}
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339, deletedAt.String)
		m.DeletedAt = &t
	}
	return m, nil
}

func writeMemory(ctx context.Context, q dbtx, m *model.Memory) error {
	content, err := json.Marshal(m.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	provenance, err := json.Marshal(m.Provenance)
	if err != nil {
		return fmt.Errorf("encode provenance: %w", err)
	}
	var links *string
	if len(m.Links) > 0 {
		b, err := json.Marshal(m.Links)
		if err != nil {
			return fmt.Errorf("encode links: %w", err)
		}
		s := string(b)
		links = &s
	}
	var deletedAt *string
	if m.DeletedAt != nil {
		d := m.DeletedAt.UTC().Format(time.RFC3339)
		deletedAt = &d
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO memories (`+memoryCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			type = excluded.type,
			branch = excluded.branch,
			salience = excluded.salience,
			sensitivity = excluded.sensitivity,
			content = excluded.content,
			provenance = excluded.provenance,
			links = excluded.links,
			updated_at = excluded.updated_at,
			version = excluded.version,
			deleted_at = excluded.deleted_at`,
		m.ID, m.Title, string(m.Type), m.Branch, m.Salience, string(m.Sensitivity),
		string(content), string(provenance), links,
		m.UpdatedAt.UTC().Format(time.RFC3339), m.Version, deletedAt)
	return err
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func linksJSON(links []model.Link) *string {
	if len(links) == 0 {
		return nil
	}
	s := mustJSON(links)
	return &s
}

func getMemory(ctx context.Context, q dbtx, id string) (*model.Memory, error) {
	row := q.QueryRowContext(ctx, `SELECT `+memoryCols+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func memoryExists(ctx context.Context, q dbtx, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
