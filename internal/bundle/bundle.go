// Package bundle assembles bounded, type-balanced context bundles for a
// stated task.
package bundle

import (
	"context"
	"errors"
	"fmt"

	"github.com/memgate/memgate/internal/model"
	"github.com/memgate/memgate/internal/rank"
	"github.com/memgate/memgate/internal/scope"
)

// Quotas caps the result count per memory type. A quota of 0 (or an absent
// type) excludes the type from the bundle entirely.
type Quotas map[model.MemoryType]int

// DefaultQuotas returns the standard per-type caps.
func DefaultQuotas() Quotas {
	return Quotas{
		model.TypeSemantic:    6,
		model.TypeEpisodic:    4,
		model.TypeProcedural:  2,
		model.TypeProspective: 2,
	}
}

// Validate rejects negative quotas.
func (q Quotas) Validate() error {
	for t, n := range q {
		if !model.ValidTypes[t] {
			return fmt.Errorf("%w: unknown memory type %q in quotas", model.ErrInvalidArgument, t)
		}
		if n < 0 {
			return fmt.Errorf("%w: quota for %s is negative", model.ErrInvalidArgument, t)
		}
	}
	return nil
}

// Group is the ranked hits for one memory type.
type Group struct {
	Type model.MemoryType `json:"type"`
	Hits []rank.Hit       `json:"hits"`
}

// Bundle is the assembled context for a task. Its total size is the sum of
// per-type quotas, not a single global top-K. Related maps each included
// memory id to the ids it links to, bounded at one hop.
type Bundle struct {
	Task    string              `json:"task"`
	Groups  []Group             `json:"context"`
	Related map[string][]string `json:"related,omitempty"`
}

// Hits flattens the bundle's groups preserving per-type rank order.
func (b *Bundle) Hits() []rank.Hit {
	var out []rank.Hit
	for _, g := range b.Groups {
		out = append(out, g.Hits...)
	}
	return out
}

// Bundler produces bundles on top of the ranking engine.
type Bundler struct {
	engine *rank.Engine
}

// New creates a Bundler.
func New(engine *rank.Engine) *Bundler {
	return &Bundler{engine: engine}
}

// Assemble scope-filters the pool once, then ranks each memory type
// independently so a low-salience procedural memory is not starved by many
// high-salience semantic ones, and caps each group at its quota. A deadline
// expiring mid-assembly yields the groups completed so far.
func (b *Bundler) Assemble(ctx context.Context, task string, client *model.Client, pool []model.Memory, quotas Quotas) (*Bundle, error) {
	if err := quotas.Validate(); err != nil {
		return nil, err
	}

	visible, err := scope.Filter(client, pool)
	if err != nil {
		return nil, err
	}

	byType := map[model.MemoryType][]model.Memory{}
	for _, m := range visible {
		byType[m.Type] = append(byType[m.Type], m)
	}

	out := &Bundle{Task: task, Related: map[string][]string{}}
	for _, t := range model.AllTypes {
		quota := quotas[t]
		if quota == 0 || len(byType[t]) == 0 {
			continue
		}
		hits, err := b.engine.Rank(ctx, task, byType[t], quota)
		if err != nil {
			if errors.Is(err, model.ErrDeadlineExceeded) && len(out.Groups) > 0 {
				break
			}
			return nil, err
		}
		out.Groups = append(out.Groups, Group{Type: t, Hits: hits})
		for _, h := range hits {
			for _, l := range h.Memory.Links {
				out.Related[h.Memory.ID] = append(out.Related[h.Memory.ID], l.To)
			}
		}
	}
	if len(out.Related) == 0 {
		out.Related = nil
	}
	return out, nil
}
