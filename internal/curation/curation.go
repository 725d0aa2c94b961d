// Package curation drives candidates from proposed to approved or rejected,
// including conflict detection at proposal time and merge policy at
// approval.
package curation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/memgate/memgate/internal/model"
	"github.com/memgate/memgate/internal/rank"
	"github.com/memgate/memgate/internal/store"
)

// updateOverlap is the lexical title-overlap threshold above which a
// same-branch, same-type candidate is treated as an update to an existing
// memory.
const updateOverlap = 0.5

// Keep names the side that wins a contradiction resolution.
type Keep string

const (
	KeepExisting  Keep = "existing"
	KeepCandidate Keep = "candidate"
	KeepBoth      Keep = "both"
)

// Auditor records curation actions. *store.SQLiteStore satisfies it.
type Auditor interface {
	AppendAudit(ctx context.Context, action, targetID, detail string) error
}

// Workflow is the curation state machine over the candidate and memory
// repositories.
type Workflow struct {
	memories   store.MemoryRepository
	candidates store.CandidateRepository
	newID      func() string
	audit      Auditor
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Workflow. audit may be nil.
func New(memories store.MemoryRepository, candidates store.CandidateRepository, newID func() string, audit Auditor, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		memories:   memories,
		candidates: candidates,
		newID:      newID,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

// Propose stores an extracted candidate. When the ingestion pipeline did not
// supply conflicts, update conflicts are detected once against the current
// memory set; the snapshot stays advisory and is not re-validated if
// memories change before approval.
func (w *Workflow) Propose(ctx context.Context, c *model.Candidate) (*model.Candidate, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(c.Conflicts) == 0 {
		conflicts, err := w.detectConflicts(ctx, c)
		if err != nil {
			return nil, err
		}
		c.Conflicts = conflicts
	}
	out, err := w.candidates.PutCandidate(ctx, c)
	if err != nil {
		return nil, err
	}
	w.logger.Info("candidate proposed", "id", out.ID, "branch", out.Branch, "conflicts", len(out.Conflicts))
	return out, nil
}

// detectConflicts finds existing memories the candidate would update: same
// branch, same type, strong title overlap.
func (w *Workflow) detectConflicts(ctx context.Context, c *model.Candidate) ([]model.Conflict, error) {
	existing, err := w.memories.ListMemories(ctx, store.ListParams{
		BranchPrefix: c.Branch,
		Type:         c.Type,
	})
	if err != nil {
		return nil, err
	}

	var conflicts []model.Conflict
	for _, m := range existing {
		if m.Branch != c.Branch {
			continue
		}
		probe := model.Memory{Title: m.Title, Branch: m.Branch}
		if rank.LexicalScore(c.Title, &probe) >= updateOverlap {
			conflicts = append(conflicts, model.Conflict{MemoryID: m.ID, Kind: model.ConflictUpdate})
		}
	}
	return conflicts, nil
}

// Approve moves a candidate to its terminal approved state. Without
// conflicts this creates a new memory from the candidate's fields. With an
// update conflict the candidate merges into the referenced memory. With a
// contradicts conflict approval is refused and the caller must use
// ResolveContradiction.
func (w *Workflow) Approve(ctx context.Context, candidateID string) (*model.Memory, error) {
	c, err := w.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusProposed {
		return nil, fmt.Errorf("candidate %s is %s: %w", candidateID, c.Status, model.ErrAlreadyResolved)
	}
	if target, ok := c.Contradicted(); ok {
		return nil, fmt.Errorf("candidate %s contradicts %s: %w", candidateID, target, model.ErrConflictRequiresResolution)
	}
	if err := model.ValidateContent(c.Type, c.Content); err != nil {
		return nil, err
	}

	var result *model.Memory
	apply := func(tx store.MemoryTx) error {
		m, err := w.materialize(tx, c)
		if err != nil {
			return err
		}
		result = m
		return nil
	}

	if err := w.candidates.ResolveCandidate(ctx, candidateID, model.StatusApproved, apply); err != nil {
		return nil, err
	}

	w.logger.Info("candidate approved", "candidate", candidateID, "memory", result.ID)
	w.record(ctx, "approve", candidateID, "memory "+result.ID)
	return result, nil
}

// materialize turns an approved candidate into a memory write: a merge into
// the update target when the conflict is still actionable, a fresh memory
// otherwise.
func (w *Workflow) materialize(tx store.MemoryTx, c *model.Candidate) (*model.Memory, error) {
	if targetID, ok := c.UpdateTarget(); ok {
		existing, err := tx.GetMemory(targetID)
		switch {
		case err == nil && !existing.Tombstoned():
			merged := mergeInto(existing, c, w.now().UTC())
			if err := tx.PutMemory(merged); err != nil {
				return nil, err
			}
			return tx.GetMemory(targetID)
		case err == nil, errors.Is(err, model.ErrNotFound):
			// The advisory conflict went stale; fall through to a fresh memory.
		default:
			return nil, err
		}
	}

	m := &model.Memory{
		ID:          w.newID(),
		Title:       c.Title,
		Type:        c.Type,
		Branch:      c.Branch,
		Salience:    c.Salience,
		Sensitivity: c.Sensitivity,
		Content:     c.Content,
		Provenance:  c.Provenance,
		UpdatedAt:   w.now().UTC(),
	}
	if err := tx.PutMemory(m); err != nil {
		return nil, err
	}
	return tx.GetMemory(m.ID)
}

// mergeInto applies the update policy: candidate content overwrites
// same-named keys and unions the rest, provenance is appended, salience
// becomes the max of both sides, and the update stamp never regresses.
func mergeInto(existing *model.Memory, c *model.Candidate, now time.Time) *model.Memory {
	merged := *existing

	content := make(map[string]any, len(existing.Content)+len(c.Content))
	for k, v := range existing.Content {
		content[k] = v
	}
	for k, v := range c.Content {
		content[k] = v
	}
	merged.Content = content

	merged.Provenance = c.Provenance // PutMemory appends onto the stored list
	if c.Salience > merged.Salience {
		merged.Salience = c.Salience
	}
	if now.After(merged.UpdatedAt) {
		merged.UpdatedAt = now
	}
	return &merged
}

// Reject moves a candidate to its terminal rejected state. The memory set is
// untouched and no tombstone is created.
func (w *Workflow) Reject(ctx context.Context, candidateID string) error {
	if err := w.candidates.ResolveCandidate(ctx, candidateID, model.StatusRejected, nil); err != nil {
		return err
	}
	w.logger.Info("candidate rejected", "candidate", candidateID)
	w.record(ctx, "reject", candidateID, "")
	return nil
}

// Forget tombstones a memory. The row stays for provenance and audit but
// disappears from every read path.
func (w *Workflow) Forget(ctx context.Context, memoryID string) error {
	if err := w.memories.TombstoneMemory(ctx, memoryID); err != nil {
		return err
	}
	w.logger.Info("memory tombstoned", "memory", memoryID)
	w.record(ctx, "tombstone", memoryID, "")
	return nil
}

// ResolveContradiction settles a contradicts conflict by an explicit human
// choice:
//
//   - KeepExisting discards the candidate and leaves the memory set untouched.
//   - KeepCandidate creates the candidate's memory and tombstones the
//     contradicted one.
//   - KeepBoth creates the candidate's memory and links the pair with a
//     contradicts relation, leaving both readable.
//
// The new memory (if any) is returned.
func (w *Workflow) ResolveContradiction(ctx context.Context, candidateID string, keep Keep) (*model.Memory, error) {
	c, err := w.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusProposed {
		return nil, fmt.Errorf("candidate %s is %s: %w", candidateID, c.Status, model.ErrAlreadyResolved)
	}
	target, ok := c.Contradicted()
	if !ok {
		return nil, fmt.Errorf("%w: candidate %s has no contradiction to resolve", model.ErrInvalidArgument, candidateID)
	}

	switch keep {
	case KeepExisting:
		if err := w.candidates.ResolveCandidate(ctx, candidateID, model.StatusRejected, nil); err != nil {
			return nil, err
		}
		w.record(ctx, "resolve_contradiction", candidateID, "kept existing "+target)
		return nil, nil

	case KeepCandidate, KeepBoth:
		if err := model.ValidateContent(c.Type, c.Content); err != nil {
			return nil, err
		}
		var result *model.Memory
		apply := func(tx store.MemoryTx) error {
			m := &model.Memory{
				ID:          w.newID(),
				Title:       c.Title,
				Type:        c.Type,
				Branch:      c.Branch,
				Salience:    c.Salience,
				Sensitivity: c.Sensitivity,
				Content:     c.Content,
				Provenance:  c.Provenance,
				UpdatedAt:   w.now().UTC(),
			}
			if keep == KeepCandidate {
				if err := tx.TombstoneMemory(target); err != nil && !errors.Is(err, model.ErrNotFound) {
					return err
				}
			} else {
				m.Links = []model.Link{{Rel: "contradicts", To: target}}
			}
			if err := tx.PutMemory(m); err != nil {
				return err
			}
			got, err := tx.GetMemory(m.ID)
			if err != nil {
				return err
			}
			result = got
			return nil
		}
		if err := w.candidates.ResolveCandidate(ctx, candidateID, model.StatusApproved, apply); err != nil {
			return nil, err
		}
		w.record(ctx, "resolve_contradiction", candidateID, fmt.Sprintf("kept %s, memory %s", keep, result.ID))
		return result, nil

	default:
		return nil, fmt.Errorf("%w: keep must be existing, candidate, or both; got %q", model.ErrInvalidArgument, keep)
	}
}

func (w *Workflow) record(ctx context.Context, action, target, detail string) {
	if w.audit == nil {
		return
	}
	if err := w.audit.AppendAudit(ctx, action, target, detail); err != nil {
		w.logger.Warn("audit append failed", "action", action, "target", target, "err", err)
	}
}
