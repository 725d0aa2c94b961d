// Package store provides the gateway storage interfaces and SQLite implementation.
package store

import (
	"context"

	"github.com/memgate/memgate/internal/model"
)

// ListParams holds filters for listing memories.
type ListParams struct {
	BranchPrefix      string // "" means all branches
	Type              model.MemoryType
	IncludeTombstoned bool
	Limit             int // 0 means no limit
}

// CandidateFilter holds filters for listing proposed candidates.
type CandidateFilter struct {
	BranchPrefix   string
	MinSensitivity model.Sensitivity // "" means any
}

// MemoryRepository owns the canonical memory set.
//
// List results are ordered by UpdatedAt descending, ties broken by id
// ascending, so pagination and tests stay deterministic.
type MemoryRepository interface {
	GetMemory(ctx context.Context, id string) (*model.Memory, error)
	ListMemories(ctx context.Context, p ListParams) ([]model.Memory, error)

	// UpsertMemory is idempotent on id. UpdatedAt never regresses and
	// provenance is appended, not overwritten. Link targets must exist.
	UpsertMemory(ctx context.Context, m *model.Memory) (*model.Memory, error)

	// UpdateMemory applies mutate to the memory under a per-id
	// read-modify-write so concurrent merges never lose updates.
	UpdateMemory(ctx context.Context, id string, mutate func(*model.Memory) error) (*model.Memory, error)

	// TombstoneMemory soft-deletes a memory, keeping it for audit.
	TombstoneMemory(ctx context.Context, id string) error
}

// CandidateRepository holds proposed memories and their lifecycle state.
// A resolved candidate keeps its terminal row so re-resolution can be told
// apart from an unknown id.
type CandidateRepository interface {
	PutCandidate(ctx context.Context, c *model.Candidate) (*model.Candidate, error)
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	ListCandidates(ctx context.Context, f CandidateFilter) ([]model.Candidate, error)

	// ResolveCandidate atomically marks the candidate terminal and runs
	// apply against the memory set in the same transaction, so a failed
	// merge rolls back the whole approval.
	ResolveCandidate(ctx context.Context, id string, status model.CandidateStatus, apply func(tx MemoryTx) error) error
}

// MemoryTx is the memory access available inside a candidate resolution
// transaction.
type MemoryTx interface {
	GetMemory(id string) (*model.Memory, error)
	PutMemory(m *model.Memory) error
	TombstoneMemory(id string) error
}

// ClientRepository holds the known agent identities.
type ClientRepository interface {
	PutClient(ctx context.Context, c *model.Client) error
	GetClient(ctx context.Context, id string) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	TouchClientAccess(ctx context.Context, id string) error
}
