package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/memgate/memgate/internal/model"
)

func testCandidate(id, branch string) *model.Candidate {
	return &model.Candidate{
		ID: id, Title: "Candidate " + id,
		Type: model.TypeSemantic, Branch: branch,
		Salience: 0.6, Sensitivity: model.SensitivityLow,
		Content: map[string]any{"note": "note for " + id},
	}
}

func TestPutAndGetCandidate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c, err := s.PutCandidate(ctx, testCandidate("c1", "Travel"))
	if err != nil {
		t.Fatalf("put candidate: %v", err)
	}
	if c.Status != model.StatusProposed {
		t.Errorf("expected proposed, got %q", c.Status)
	}
	if c.ProposedAt.IsZero() {
		t.Error("expected proposed_at to be stamped")
	}

	got, err := s.GetCandidate(ctx, "c1")
	if err != nil {
		t.Fatalf("get candidate: %v", err)
	}
	if got.Title != "Candidate c1" {
		t.Errorf("expected 'Candidate c1', got %q", got.Title)
	}
}

func TestPutCandidateAssignsID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := testCandidate("", "Travel")
	out, err := s.PutCandidate(ctx, c)
	if err != nil {
		t.Fatalf("put candidate: %v", err)
	}
	if out.ID == "" {
		t.Error("expected an assigned id")
	}
}

func TestListCandidatesProposedOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutCandidate(ctx, testCandidate("c1", "Travel"))
	s.PutCandidate(ctx, testCandidate("c2", "Work"))
	if err := s.ResolveCandidate(ctx, "c2", model.StatusRejected, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	list, err := s.ListCandidates(ctx, CandidateFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "c1" {
		t.Errorf("expected only c1 proposed, got %+v", list)
	}

	// Terminal candidates remain fetchable by id.
	got, err := s.GetCandidate(ctx, "c2")
	if err != nil {
		t.Fatalf("get resolved: %v", err)
	}
	if got.Status != model.StatusRejected {
		t.Errorf("expected rejected, got %q", got.Status)
	}
}

func TestListCandidatesFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutCandidate(ctx, testCandidate("c1", "Travel/Normandy"))
	s.PutCandidate(ctx, testCandidate("c2", "Work"))
	sensitive := testCandidate("c3", "Work")
	sensitive.Sensitivity = model.SensitivityHigh
	s.PutCandidate(ctx, sensitive)

	travel, _ := s.ListCandidates(ctx, CandidateFilter{BranchPrefix: "Travel"})
	if len(travel) != 1 || travel[0].ID != "c1" {
		t.Errorf("branch filter failed: %+v", travel)
	}

	high, _ := s.ListCandidates(ctx, CandidateFilter{MinSensitivity: model.SensitivityHigh})
	if len(high) != 1 || high[0].ID != "c3" {
		t.Errorf("sensitivity filter failed: %+v", high)
	}
}

func TestResolveCandidateAlreadyResolved(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutCandidate(ctx, testCandidate("c1", "Travel"))
	if err := s.ResolveCandidate(ctx, "c1", model.StatusApproved, nil); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	err := s.ResolveCandidate(ctx, "c1", model.StatusRejected, nil)
	if !errors.Is(err, model.ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}

	err = s.ResolveCandidate(ctx, "missing", model.StatusRejected, nil)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestResolveCandidateApplyRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutCandidate(ctx, testCandidate("c1", "Travel"))
	boom := errors.New("boom")
	err := s.ResolveCandidate(ctx, "c1", model.StatusApproved, func(tx MemoryTx) error {
		m := testMemory("m1", "Travel")
		if err := tx.PutMemory(m); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected apply error, got %v", err)
	}

	// Status flip and memory write both rolled back.
	got, _ := s.GetCandidate(ctx, "c1")
	if got.Status != model.StatusProposed {
		t.Errorf("expected candidate still proposed, got %q", got.Status)
	}
	if _, err := s.GetMemory(ctx, "m1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected memory write rolled back, got %v", err)
	}
}

func TestResolveCandidateApplyCommits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertMemory(ctx, testMemory("m1", "Travel"))
	s.PutCandidate(ctx, testCandidate("c1", "Travel"))

	err := s.ResolveCandidate(ctx, "c1", model.StatusApproved, func(tx MemoryTx) error {
		m, err := tx.GetMemory("m1")
		if err != nil {
			return err
		}
		m.Salience = 0.95
		m.Version++
		return tx.PutMemory(m)
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, _ := s.GetMemory(ctx, "m1")
	if got.Salience != 0.95 {
		t.Errorf("expected committed salience 0.95, got %v", got.Salience)
	}
}

func TestResolveCandidateConcurrentMerges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertMemory(ctx, testMemory("m1", "Travel"))
	s.PutCandidate(ctx, testCandidate("c1", "Travel"))
	s.PutCandidate(ctx, testCandidate("c2", "Travel"))

	mergeKey := func(key string) func(tx MemoryTx) error {
		return func(tx MemoryTx) error {
			m, err := tx.GetMemory("m1")
			if err != nil {
				return err
			}
			m.Content[key] = "merged"
			return tx.PutMemory(m)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = s.ResolveCandidate(ctx, id, model.StatusApproved, mergeKey("from_"+id))
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}

	got, err := s.GetMemory(ctx, "m1")
	if err != nil {
		t.Fatalf("get memory: %v", err)
	}
	for _, key := range []string{"from_c1", "from_c2"} {
		if got.Content[key] != "merged" {
			t.Errorf("expected key %q to survive both merges, content: %v", key, got.Content)
		}
	}
	for _, id := range []string{"c1", "c2"} {
		c, _ := s.GetCandidate(ctx, id)
		if c.Status != model.StatusApproved {
			t.Errorf("expected %s approved, got %q", id, c.Status)
		}
	}
}

func TestResolveCandidateManyWriters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertMemory(ctx, testMemory("m1", "Travel"))

	const n = 8
	for i := 0; i < n; i++ {
		s.PutCandidate(ctx, testCandidate(fmt.Sprintf("c%d", i), "Travel"))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("from_c%d", i)
			errs[i] = s.ResolveCandidate(ctx, fmt.Sprintf("c%d", i), model.StatusApproved, func(tx MemoryTx) error {
				m, err := tx.GetMemory("m1")
				if err != nil {
					return err
				}
				m.Content[key] = "merged"
				return tx.PutMemory(m)
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolve c%d: %v", i, err)
		}
	}

	got, _ := s.GetMemory(ctx, "m1")
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("from_c%d", i)
		if got.Content[key] != "merged" {
			t.Errorf("merge for c%d was lost, content: %v", i, got.Content)
		}
	}
}

func TestPutClientAndTouch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := &model.Client{
		ID: "cli_a", Name: "Agent A",
		Branches:       []string{"Travel"},
		Types:          []model.MemoryType{model.TypeSemantic},
		SensitivityMax: model.SensitivityLow,
		Enabled:        true,
	}
	if err := s.PutClient(ctx, c); err != nil {
		t.Fatalf("put client: %v", err)
	}

	got, err := s.GetClient(ctx, "cli_a")
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.LastAccess != nil {
		t.Error("expected nil last_access before any read")
	}

	if err := s.TouchClientAccess(ctx, "cli_a"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ = s.GetClient(ctx, "cli_a")
	if got.LastAccess == nil {
		t.Error("expected last_access stamped after touch")
	}

	// Re-registering must not wipe the access stamp.
	if err := s.PutClient(ctx, c); err != nil {
		t.Fatalf("re-put client: %v", err)
	}
	got, _ = s.GetClient(ctx, "cli_a")
	if got.LastAccess == nil {
		t.Error("expected last_access preserved across upsert")
	}
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.AppendAudit(ctx, "approve", "cand_1", "merged into mem_1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	s.AppendAudit(ctx, "reject", "cand_2", "")

	events, err := s.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mems, _ := s.ListMemories(ctx, ListParams{})
	if len(mems) != len(SeedMemories()) {
		t.Errorf("expected %d memories, got %d", len(SeedMemories()), len(mems))
	}
	cands, _ := s.ListCandidates(ctx, CandidateFilter{})
	if len(cands) != len(SeedCandidates()) {
		t.Errorf("expected %d candidates, got %d", len(SeedCandidates()), len(cands))
	}
	clients, _ := s.ListClients(ctx)
	if len(clients) != len(SeedClients()) {
		t.Errorf("expected %d clients, got %d", len(SeedClients()), len(clients))
	}

	// Seeding twice is safe.
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	mems, _ = s.ListMemories(ctx, ListParams{})
	if len(mems) != len(SeedMemories()) {
		t.Errorf("expected seed to stay idempotent, got %d memories", len(mems))
	}
}
