// Package scope enforces per-client visibility on every read path.
package scope

import (
	"fmt"

	"github.com/memgate/memgate/internal/model"
)

// Filter returns the memories the client may read. A disabled client yields
// ErrClientDisabled before any scope evaluation, so callers can tell access
// denial apart from an empty match set.
func Filter(client *model.Client, memories []model.Memory) ([]model.Memory, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil client", model.ErrInvalidArgument)
	}
	if !client.Enabled {
		return nil, fmt.Errorf("client %s: %w", client.ID, model.ErrClientDisabled)
	}

	out := make([]model.Memory, 0, len(memories))
	for _, m := range memories {
		if Allows(client, &m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Allows reports whether a single memory is visible to the client: the
// memory's branch must fall under one of the client's branch prefixes, its
// type must be permitted, and its sensitivity must not exceed the client's
// ceiling. Tombstoned memories are never visible.
func Allows(client *model.Client, m *model.Memory) bool {
	if !client.Enabled || m.Tombstoned() {
		return false
	}
	if !client.AllowsBranch(m.Branch) {
		return false
	}
	if !client.AllowsType(m.Type) {
		return false
	}
	return m.Sensitivity.Rank() <= client.SensitivityMax.Rank()
}
