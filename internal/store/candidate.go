package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/memgate/memgate/internal/model"
)

const candidateCols = `id, title, type, branch, salience, sensitivity, content, provenance, rationale, conflicts, status, proposed_at`

// PutCandidate stores a proposed candidate, assigning an id when absent.
func (s *SQLiteStore) PutCandidate(ctx context.Context, c *model.Candidate) (*model.Candidate, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	out := *c
	if out.ID == "" {
		out.ID = s.NewID()
	}
	out.Status = model.StatusProposed
	if out.ProposedAt.IsZero() {
		out.ProposedAt = time.Now().UTC()
	}

	var rationale *string
	if out.Rationale != "" {
		rationale = &out.Rationale
	}
	var conflicts *string
	if len(out.Conflicts) > 0 {
		b, err := json.Marshal(out.Conflicts)
		if err != nil {
			return nil, fmt.Errorf("encode conflicts: %w", err)
		}
		s := string(b)
		conflicts = &s
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (`+candidateCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.Title, string(out.Type), out.Branch, out.Salience, string(out.Sensitivity),
		mustJSON(out.Content), mustJSON(out.Provenance), rationale, conflicts,
		string(out.Status), out.ProposedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert candidate: %w", err)
	}
	return &out, nil
}

// GetCandidate returns a candidate by id, terminal ones included so callers
// can distinguish an already-resolved candidate from an unknown id.
func (s *SQLiteStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateCols+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("candidate %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCandidates lists proposed candidates matching the filter, newest
// proposals first, ties broken by id ascending.
func (s *SQLiteStore) ListCandidates(ctx context.Context, f CandidateFilter) ([]model.Candidate, error) {
	where := []string{"status = ?"}
	args := []any{string(model.StatusProposed)}

	if f.BranchPrefix != "" {
		where = append(where, "(branch = ? OR branch LIKE ?)")
		args = append(args, f.BranchPrefix, f.BranchPrefix+"/%")
	}

	query := fmt.Sprintf(`SELECT `+candidateCols+` FROM candidates WHERE %s ORDER BY proposed_at DESC, id ASC`,
		strings.Join(where, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		if f.MinSensitivity != "" && c.Sensitivity.Rank() < f.MinSensitivity.Rank() {
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// resolveRetries bounds how often a resolution is retried when another
// writer holds the database lock past busy_timeout.
const resolveRetries = 5

// ResolveCandidate flips a proposed candidate to a terminal status and runs
// apply against the memory set inside the same transaction. A failed apply
// rolls back the status change, so no memory is ever left half-merged.
// Concurrent resolutions touching the same memory queue on the write lock;
// a resolution that still hits SQLITE_BUSY is retried with a short backoff.
func (s *SQLiteStore) ResolveCandidate(ctx context.Context, id string, status model.CandidateStatus, apply func(tx MemoryTx) error) error {
	if status != model.StatusApproved && status != model.StatusRejected {
		return fmt.Errorf("%w: %q is not a terminal status", model.ErrInvalidArgument, status)
	}

	var err error
	for attempt := 0; attempt < resolveRetries; attempt++ {
		err = s.resolveOnce(ctx, id, status, apply)
		if !sqliteBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return err
}

func (s *SQLiteStore) resolveOnce(ctx context.Context, id string, status model.CandidateStatus, apply func(tx MemoryTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM candidates WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("candidate %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if current != string(model.StatusProposed) {
		return fmt.Errorf("candidate %s is %s: %w", id, current, model.ErrAlreadyResolved)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`UPDATE candidates SET status = ?, resolved_at = ? WHERE id = ?`,
		string(status), now, id); err != nil {
		return err
	}

	if apply != nil {
		if err := apply(&memoryTx{ctx: ctx, tx: tx}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// memoryTx gives candidate resolution transactional access to memories.
type memoryTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *memoryTx) GetMemory(id string) (*model.Memory, error) {
	return getMemory(t.ctx, t.tx, id)
}

func (t *memoryTx) PutMemory(m *model.Memory) error {
	_, err := upsertIn(t.ctx, t.tx, m)
	return err
}

func (t *memoryTx) TombstoneMemory(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := t.tx.ExecContext(t.ctx,
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

func scanCandidate(row scanner) (model.Candidate, error) {
	var c model.Candidate
	var content, provenance, proposedAt string
	var rationale, conflicts sql.NullString

	err := row.Scan(
		&c.ID, &c.Title, &c.Type, &c.Branch, &c.Salience, &c.Sensitivity,
		&content, &provenance, &rationale, &conflicts, &c.Status, &proposedAt,
	)
	if err != nil {
		return c, err
	}

	c.ProposedAt, _ = time.Parse(time.RFC3339, proposedAt)
	if err := json.Unmarshal([]byte(content), &c.Content); err != nil {
		return c, fmt.Errorf("decode content for %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(provenance), &c.Provenance); err != nil {
		return c, fmt.Errorf("decode provenance for %s: %w", c.ID, err)
	}
	if rationale.Valid {
		c.Rationale = rationale.String
	}
	if conflicts.Valid && conflicts.String != "" {
		if err := json.Unmarshal([]byte(conflicts.String), &c.Conflicts); err != nil {
			return c, fmt.Errorf("decode conflicts for %s: %w", c.ID, err)
		}
	}
	return c, nil
}
