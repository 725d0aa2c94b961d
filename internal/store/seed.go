package store

import (
	"context"
	"fmt"
	"time"

	"github.com/memgate/memgate/internal/model"
)

// SeedMemories is the demo memory set used by `memgate seed` and the test
// fixtures.
func SeedMemories() []model.Memory {
	return []model.Memory{
		{
			ID: "mem_unvisited_sites", Title: "Normandy Unvisited Sites",
			Type: model.TypeSemantic, Branch: "Travel/Normandy",
			Salience: 0.7, Sensitivity: model.SensitivityLow,
			Content: map[string]any{"list": []any{"Airborne Museum", "American Cemetery", "Omaha Beach"}},
			Provenance: []model.ProvenanceEntry{{
				Service: "chatgpt", Timestamp: mustTime("2025-10-09T20:15:00Z"),
				Snippet: "what do you think about adding utah landing museum and airborne museum?",
			}},
			UpdatedAt: mustTime("2025-10-09T20:15:00Z"),
		},
		{
			ID: "mem_normandy_trip", Title: "2025-10-13 Normandy Trip (visited & skipped)",
			Type: model.TypeEpisodic, Branch: "Travel/Normandy",
			Salience: 0.83, Sensitivity: model.SensitivityLow,
			Content: map[string]any{
				"when":    "2025-10-13",
				"where":   "Normandy",
				"summary": "Visited Utah Beach & Museum, D913, Pointe du Hoc, Bayeux, Caen Memorial; skipped Airborne Museum, American Cemetery, Omaha.",
			},
			Provenance: []model.ProvenanceEntry{{
				Service: "chatgpt", Timestamp: mustTime("2025-10-13T16:03:00Z"),
				Snippet: "Went to this Weekend…",
			}},
			Links:     []model.Link{{Rel: "mentions", To: "mem_unvisited_sites"}},
			UpdatedAt: mustTime("2025-10-13T16:03:00Z"),
		},
		{
			ID: "mem_vehicle", Title: "Drives Tesla Model Y Propulsion",
			Type: model.TypeSemantic, Branch: "Identity",
			Salience: 0.9, Sensitivity: model.SensitivityLow,
			Content: map[string]any{"asset": "Tesla Model Y", "fuel": "EV"},
			Provenance: []model.ProvenanceEntry{{
				Service: "chatgpt", Timestamp: mustTime("2025-10-03T12:00:00Z"),
				Snippet: "I have a Tesla model y propulsion, memorize that",
			}},
			UpdatedAt: mustTime("2025-10-03T12:00:00Z"),
		},
		{
			ID: "mem_buffers_proc", Title: "Buffers logic v1 (working days; SSI vs SDT)",
			Type: model.TypeProcedural, Branch: "Work/AHS",
			Salience: 0.76, Sensitivity: model.SensitivityMedium,
			Content: map[string]any{
				"steps": []any{"Apply global/static buffer", "Working days only", "SSI at order intake", "SDT at availability check"},
				"notes": "Spain Pyxis adds +2d service buffer",
			},
			Provenance: []model.ProvenanceEntry{{
				Service: "chatgpt", Timestamp: mustTime("2025-10-15T09:41:00Z"),
				Snippet: "Today we have defined 2 buffers…",
			}},
			UpdatedAt: mustTime("2025-10-15T09:41:00Z"),
		},
	}
}

// SeedCandidates is the demo candidate inbox.
func SeedCandidates() []model.Candidate {
	return []model.Candidate{
		{
			ID: "cand_42", Title: "Visited Utah Beach; skipped Omaha",
			Type: model.TypeEpisodic, Branch: "Travel/Normandy",
			Salience: 0.82, Sensitivity: model.SensitivityLow,
			Content: map[string]any{
				"when":    "2025-10-13",
				"summary": "Visited Utah Beach; skipped Omaha and the Airborne Museum.",
				"skipped": []any{"Omaha Beach", "Airborne Museum"},
			},
			Rationale: "Likely relevant for future Normandy plans.",
			Provenance: []model.ProvenanceEntry{{
				Service: "chatgpt", Timestamp: mustTime("2025-10-13T16:03:00Z"),
				Snippet: "Went to this Weekend… skipped Airborne Museum…",
			}},
			Conflicts: []model.Conflict{{MemoryID: "mem_normandy_trip", Kind: model.ConflictUpdate}},
		},
		{
			ID: "cand_77", Title: "Buffers logic: working days only; SSI vs SDT application points",
			Type: model.TypeProcedural, Branch: "Work/AHS",
			Salience: 0.74, Sensitivity: model.SensitivityMedium,
			Content: map[string]any{
				"steps": []any{"Working days only", "SSI at order intake", "SDT at availability check"},
			},
			Rationale: "Affects scheduling availability and API design decisions.",
			Provenance: []model.ProvenanceEntry{{
				Service: "chatgpt", Timestamp: mustTime("2025-10-15T09:41:00Z"),
				Snippet: "Today we have defined 2 buffers…",
			}},
		},
		{
			ID: "cand_88", Title: "Drives Tesla Model Y Propulsion",
			Type: model.TypeSemantic, Branch: "Identity",
			Salience: 0.9, Sensitivity: model.SensitivityLow,
			Content:   map[string]any{"asset": "Tesla Model Y", "fuel": "EV"},
			Rationale: "Impacts trip planning (EV charging, tolls).",
			Provenance: []model.ProvenanceEntry{{
				Service: "chatgpt", Timestamp: mustTime("2025-10-03T12:00:00Z"),
				Snippet: "I have a Tesla model y propulsion, memorize that",
			}},
		},
	}
}

// SeedClients is the demo client registry.
func SeedClients() []model.Client {
	trip := mustTime("2025-10-20T18:03:00Z")
	work := mustTime("2025-10-19T10:22:00Z")
	return []model.Client{
		{
			ID: "cli_trip", Name: "Trip Planner Agent",
			Branches:       []string{"Travel", "Identity"},
			Types:          []model.MemoryType{model.TypeSemantic, model.TypeEpisodic, model.TypeProcedural},
			SensitivityMax: model.SensitivityMedium, Enabled: true, LastAccess: &trip,
		},
		{
			ID: "cli_work", Name: "Work Spec Agent",
			Branches:       []string{"Work/AHS"},
			Types:          []model.MemoryType{model.TypeSemantic, model.TypeProcedural},
			SensitivityMax: model.SensitivityMedium, Enabled: true, LastAccess: &work,
		},
		{
			ID: "cli_legal", Name: "Legal Draft Agent",
			Branches:       []string{"Legal"},
			Types:          []model.MemoryType{model.TypeSemantic, model.TypeProcedural, model.TypeEpisodic},
			SensitivityMax: model.SensitivityLow, Enabled: false,
		},
	}
}

// Seed loads the demo memories, candidates, and clients. Existing memories
// are upserted; candidates already present are left alone.
func (s *SQLiteStore) Seed(ctx context.Context) error {
	for i := range SeedMemories() {
		m := SeedMemories()[i]
		if _, err := s.UpsertMemory(ctx, &m); err != nil {
			return fmt.Errorf("seed memory %s: %w", m.ID, err)
		}
	}
	for _, c := range SeedCandidates() {
		if _, err := s.GetCandidate(ctx, c.ID); err == nil {
			continue
		}
		cand := c
		if _, err := s.PutCandidate(ctx, &cand); err != nil {
			return fmt.Errorf("seed candidate %s: %w", c.ID, err)
		}
	}
	for _, c := range SeedClients() {
		cl := c
		if err := s.PutClient(ctx, &cl); err != nil {
			return fmt.Errorf("seed client %s: %w", c.ID, err)
		}
	}
	return nil
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
