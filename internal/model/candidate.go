package model

import (
	"fmt"
	"time"
)

// ConflictKind describes how a candidate relates to an existing memory.
type ConflictKind string

const (
	// ConflictUpdate means approval merges the candidate into the memory.
	ConflictUpdate ConflictKind = "update"

	// ConflictContradicts means approval is refused until a human picks a side.
	ConflictContradicts ConflictKind = "contradicts"
)

// Conflict ties a candidate to an existing memory it would touch. Conflicts
// are computed once at proposal time against the then-current memory set and
// stay advisory afterwards.
type Conflict struct {
	MemoryID string       `json:"memory_id"`
	Kind     ConflictKind `json:"kind"`
}

// CandidateStatus is the lifecycle state of a candidate.
type CandidateStatus string

const (
	StatusProposed CandidateStatus = "proposed"
	StatusApproved CandidateStatus = "approved"
	StatusRejected CandidateStatus = "rejected"
)

// Candidate is a proposed memory awaiting a human decision. Its content is
// the payload the memory would receive on approval; it only becomes part of
// the durable memory set through the curation workflow.
type Candidate struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Type        MemoryType        `json:"type"`
	Branch      string            `json:"branch"`
	Salience    float64           `json:"salience"`
	Sensitivity Sensitivity       `json:"sensitivity"`
	Content     map[string]any    `json:"content"`
	Provenance  []ProvenanceEntry `json:"provenance"`
	Rationale   string            `json:"rationale,omitempty"`
	Conflicts   []Conflict        `json:"conflicts,omitempty"`
	Status      CandidateStatus   `json:"status"`
	ProposedAt  time.Time         `json:"proposed_at"`
}

// Validate checks the structural invariants of a candidate.
func (c *Candidate) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("%w: candidate title is empty", ErrInvalidArgument)
	}
	if !ValidTypes[c.Type] {
		return fmt.Errorf("%w: unknown memory type %q", ErrInvalidArgument, c.Type)
	}
	if c.Branch == "" {
		return fmt.Errorf("%w: candidate branch is empty", ErrInvalidArgument)
	}
	if c.Salience < 0 || c.Salience > 1 {
		return fmt.Errorf("%w: salience %v outside [0,1]", ErrInvalidArgument, c.Salience)
	}
	if c.Sensitivity.Rank() > SensitivityHigh.Rank() {
		return fmt.Errorf("%w: unknown sensitivity %q", ErrInvalidArgument, c.Sensitivity)
	}
	for _, cf := range c.Conflicts {
		if cf.Kind != ConflictUpdate && cf.Kind != ConflictContradicts {
			return fmt.Errorf("%w: unknown conflict kind %q", ErrInvalidArgument, cf.Kind)
		}
	}
	return nil
}

// UpdateTarget returns the memory id of the first update conflict, if any.
func (c *Candidate) UpdateTarget() (string, bool) {
	for _, cf := range c.Conflicts {
		if cf.Kind == ConflictUpdate {
			return cf.MemoryID, true
		}
	}
	return "", false
}

// Contradicted returns the memory id of the first contradicts conflict, if any.
func (c *Candidate) Contradicted() (string, bool) {
	for _, cf := range c.Conflicts {
		if cf.Kind == ConflictContradicts {
			return cf.MemoryID, true
		}
	}
	return "", false
}
