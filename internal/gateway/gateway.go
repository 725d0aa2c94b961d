// Package gateway exposes the memory gateway's read and curation surface.
// Each call is an independent request-scoped operation: the only state
// between calls lives in the memory and candidate repositories.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/memgate/memgate/internal/bundle"
	"github.com/memgate/memgate/internal/curation"
	"github.com/memgate/memgate/internal/model"
	"github.com/memgate/memgate/internal/rank"
	"github.com/memgate/memgate/internal/scope"
	"github.com/memgate/memgate/internal/store"
)

// Service wires scope enforcement, ranking, bundling, and curation over the
// shared repositories. Callers pass a resolved Client; credential handling
// lives with the transport.
type Service struct {
	memories   store.MemoryRepository
	clients    store.ClientRepository
	candidates store.CandidateRepository
	engine     *rank.Engine
	bundler    *bundle.Bundler
	workflow   *curation.Workflow
	logger     *slog.Logger
}

// New creates a Service.
func New(memories store.MemoryRepository, clients store.ClientRepository, candidates store.CandidateRepository,
	engine *rank.Engine, workflow *curation.Workflow, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		memories:   memories,
		clients:    clients,
		candidates: candidates,
		engine:     engine,
		bundler:    bundle.New(engine),
		workflow:   workflow,
		logger:     logger,
	}
}

// SearchResponse is the search endpoint's result shape.
type SearchResponse struct {
	Results []rank.Hit `json:"results"`
}

// Search ranks the client's visible memories against a free-text query.
// "No matches" is an empty result, never an error.
func (s *Service) Search(ctx context.Context, client *model.Client, query string, limit int) (*SearchResponse, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", model.ErrInvalidArgument, limit)
	}

	pool, err := s.memories.ListMemories(ctx, store.ListParams{})
	if err != nil {
		return nil, err
	}
	visible, err := scope.Filter(client, pool)
	if err != nil {
		return nil, err
	}

	hits, err := s.engine.Rank(ctx, query, visible, limit)
	if err != nil {
		return nil, err
	}

	s.touch(ctx, client)
	s.logger.Debug("search served", "client", client.ID, "query", query, "hits", len(hits))
	return &SearchResponse{Results: hits}, nil
}

// RetrieveForTask assembles a type-balanced context bundle for a task. An
// explicit branch outside the client's scope is denied outright, as opposed
// to quietly matching nothing.
func (s *Service) RetrieveForTask(ctx context.Context, client *model.Client, task, branch string, quotas bundle.Quotas) (*bundle.Bundle, error) {
	if task == "" {
		return nil, fmt.Errorf("%w: task is empty", model.ErrInvalidArgument)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: nil client", model.ErrInvalidArgument)
	}
	if !client.Enabled {
		return nil, fmt.Errorf("client %s: %w", client.ID, model.ErrClientDisabled)
	}
	if branch != "" && !clientCoversBranch(client, branch) {
		return nil, fmt.Errorf("client %s has no scope on branch %s: %w", client.ID, branch, model.ErrScopeDenied)
	}
	if quotas == nil {
		quotas = bundle.DefaultQuotas()
	}

	pool, err := s.memories.ListMemories(ctx, store.ListParams{BranchPrefix: branch})
	if err != nil {
		return nil, err
	}

	b, err := s.bundler.Assemble(ctx, task, client, pool, quotas)
	if err != nil {
		return nil, err
	}

	s.touch(ctx, client)
	s.logger.Debug("task bundle served", "client", client.ID, "task", task, "groups", len(b.Groups))
	return b, nil
}

// clientCoversBranch accepts a requested branch that falls under a client
// prefix, or is itself a prefix of one (asking for "Travel" with scope
// "Travel/Normandy" narrows, it does not widen).
func clientCoversBranch(c *model.Client, branch string) bool {
	if c.AllowsBranch(branch) {
		return true
	}
	for _, prefix := range c.Branches {
		if model.BranchMatches(prefix, branch) {
			return true
		}
	}
	return false
}

// ListCandidates lists the curation inbox. This is the human curator's
// surface and is not scoped per client.
func (s *Service) ListCandidates(ctx context.Context, f store.CandidateFilter) ([]model.Candidate, error) {
	return s.candidates.ListCandidates(ctx, f)
}

// Ingest accepts a proposed candidate from the extraction collaborator.
func (s *Service) Ingest(ctx context.Context, c *model.Candidate) (*model.Candidate, error) {
	return s.workflow.Propose(ctx, c)
}

// Approve approves a candidate, creating or merging a memory.
func (s *Service) Approve(ctx context.Context, candidateID string) (*model.Memory, error) {
	return s.workflow.Approve(ctx, candidateID)
}

// Reject rejects a candidate, leaving the memory set untouched.
func (s *Service) Reject(ctx context.Context, candidateID string) error {
	return s.workflow.Reject(ctx, candidateID)
}

// Forget tombstones a memory through the curation workflow so the removal
// is audited.
func (s *Service) Forget(ctx context.Context, memoryID string) error {
	return s.workflow.Forget(ctx, memoryID)
}

// ResolveContradiction settles a contradicts conflict by explicit choice.
func (s *Service) ResolveContradiction(ctx context.Context, candidateID string, keep curation.Keep) (*model.Memory, error) {
	return s.workflow.ResolveContradiction(ctx, candidateID, keep)
}

func (s *Service) touch(ctx context.Context, client *model.Client) {
	if err := s.clients.TouchClientAccess(ctx, client.ID); err != nil {
		s.logger.Warn("client access stamp failed", "client", client.ID, "err", err)
	}
}
