package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/memgate/memgate/internal/model"
)

// errVersionConflict signals a lost optimistic-concurrency race; the update
// is retried against a fresh read.
var errVersionConflict = errors.New("version conflict")

const updateRetries = 5

// GetMemory returns a memory by id, including tombstoned ones so audit
// surfaces can still inspect them. Read paths filter tombstones themselves.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	return getMemory(ctx, s.db, id)
}

// ListMemories lists memories ordered by updated_at descending, ties broken
// by id ascending.
func (s *SQLiteStore) ListMemories(ctx context.Context, p ListParams) ([]model.Memory, error) {
	where := []string{"1=1"}
	var args []any

	if !p.IncludeTombstoned {
		where = append(where, "deleted_at IS NULL")
	}
	if p.BranchPrefix != "" {
		where = append(where, "(branch = ? OR branch LIKE ?)")
		args = append(args, p.BranchPrefix, p.BranchPrefix+"/%")
	}
	if p.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(p.Type))
	}

	query := fmt.Sprintf(`SELECT `+memoryCols+` FROM memories WHERE %s ORDER BY updated_at DESC, id ASC`,
		strings.Join(where, " AND "))
	if p.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// UpsertMemory writes a memory, idempotent on id. UpdatedAt never regresses,
// provenance is appended to the stored list, and every link target must
// reference an existing memory.
func (s *SQLiteStore) UpsertMemory(ctx context.Context, m *model.Memory) (*model.Memory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out, err := upsertIn(ctx, tx, m)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func upsertIn(ctx context.Context, q dbtx, m *model.Memory) (*model.Memory, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	for _, l := range m.Links {
		ok, err := memoryExists(ctx, q, l.To)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: link target %s does not exist", model.ErrInvalidArgument, l.To)
		}
	}

	out := *m
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}

	prev, err := getMemory(ctx, q, m.ID)
	switch {
	case err == nil:
		if out.UpdatedAt.Before(prev.UpdatedAt) {
			out.UpdatedAt = prev.UpdatedAt
		}
		out.Provenance = appendProvenance(prev.Provenance, m.Provenance)
		out.Version = prev.Version + 1
	case errors.Is(err, model.ErrNotFound):
		out.Version = 1
	default:
		return nil, err
	}

	if err := writeMemory(ctx, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMemory applies mutate under a read-modify-write guarded by the
// memory's version stamp, retrying when a concurrent writer commits first.
// Tombstoned memories are not updatable.
func (s *SQLiteStore) UpdateMemory(ctx context.Context, id string, mutate func(*model.Memory) error) (*model.Memory, error) {
	for attempt := 0; attempt < updateRetries; attempt++ {
		m, err := s.updateOnce(ctx, id, mutate)
		if errors.Is(err, errVersionConflict) || sqliteBusy(err) {
			continue
		}
		return m, err
	}
	return nil, fmt.Errorf("update memory %s: retries exhausted", id)
}

func (s *SQLiteStore) updateOnce(ctx context.Context, id string, mutate func(*model.Memory) error) (*model.Memory, error) {
	prev, err := getMemory(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if prev.Tombstoned() {
		return nil, fmt.Errorf("memory %s is tombstoned: %w", id, model.ErrNotFound)
	}

	next := *prev
	if err := mutate(&next); err != nil {
		return nil, err
	}
	next.ID = prev.ID // id is immutable
	if next.UpdatedAt.Before(prev.UpdatedAt) {
		next.UpdatedAt = prev.UpdatedAt
	}
	next.Version = prev.Version + 1
	if err := next.Validate(); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET
			title = ?, type = ?, branch = ?, salience = ?, sensitivity = ?,
			content = ?, provenance = ?, links = ?, updated_at = ?, version = ?
		WHERE id = ? AND version = ?`,
		next.Title, string(next.Type), next.Branch, next.Salience, string(next.Sensitivity),
		mustJSON(next.Content), mustJSON(next.Provenance), linksJSON(next.Links),
		next.UpdatedAt.UTC().Format(time.RFC3339), next.Version,
		id, prev.Version)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errVersionConflict
	}
	return &next, nil
}

// TombstoneMemory marks a memory inactive. The row and its provenance stay
// for audit; every read path excludes it afterwards.
func (s *SQLiteStore) TombstoneMemory(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("memory %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// appendProvenance keeps existing entries and appends the incoming ones that
// are not already present.
func appendProvenance(existing, incoming []model.ProvenanceEntry) []model.ProvenanceEntry {
	out := make([]model.ProvenanceEntry, len(existing), len(existing)+len(incoming))
	copy(out, existing)
	for _, e := range incoming {
		if !containsProvenance(out, e) {
			out = append(out, e)
		}
	}
	return out
}

func containsProvenance(entries []model.ProvenanceEntry, e model.ProvenanceEntry) bool {
	for _, have := range entries {
		if have.Service == e.Service && have.Timestamp.Equal(e.Timestamp) && have.Snippet == e.Snippet {
			return true
		}
	}
	return false
}
