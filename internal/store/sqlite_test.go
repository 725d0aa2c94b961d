package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/memgate/memgate/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testMemory(id, branch string) *model.Memory {
	return &model.Memory{
		ID: id, Title: "Title " + id,
		Type: model.TypeSemantic, Branch: branch,
		Salience: 0.5, Sensitivity: model.SensitivityLow,
		Content: map[string]any{"note": "note for " + id},
	}
}

func TestUpsertAndGetMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, err := s.UpsertMemory(ctx, testMemory("m1", "Travel"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if m.Version != 1 {
		t.Errorf("expected version 1, got %d", m.Version)
	}
	if m.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be stamped")
	}

	got, err := s.GetMemory(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Title m1" {
		t.Errorf("expected 'Title m1', got %q", got.Title)
	}
	if got.Content["note"] != "note for m1" {
		t.Errorf("content not persisted: %v", got.Content)
	}
}

func TestGetMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetMemory(ctx, "missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertIdempotentOnID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertMemory(ctx, testMemory("m1", "Travel"))
	m := testMemory("m1", "Travel")
	m.Title = "Revised"
	m2, err := s.UpsertMemory(ctx, m)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if m2.Version != 2 {
		t.Errorf("expected version 2, got %d", m2.Version)
	}

	all, _ := s.ListMemories(ctx, ListParams{})
	if len(all) != 1 {
		t.Fatalf("expected 1 row after re-upsert, got %d", len(all))
	}
	if all[0].Title != "Revised" {
		t.Errorf("expected 'Revised', got %q", all[0].Title)
	}
}

func TestUpsertAppendsProvenance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := testMemory("m1", "Travel")
	m.Provenance = []model.ProvenanceEntry{{Service: "chatgpt", Timestamp: time.Unix(100, 0).UTC()}}
	s.UpsertMemory(ctx, m)

	again := testMemory("m1", "Travel")
	again.Provenance = []model.ProvenanceEntry{{Service: "claude", Timestamp: time.Unix(200, 0).UTC()}}
	out, err := s.UpsertMemory(ctx, again)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(out.Provenance) != 2 {
		t.Fatalf("expected 2 provenance entries, got %d", len(out.Provenance))
	}
	if out.Provenance[0].Service != "chatgpt" || out.Provenance[1].Service != "claude" {
		t.Errorf("provenance order wrong: %+v", out.Provenance)
	}

	// Re-sending the same entry must not duplicate it.
	out, _ = s.UpsertMemory(ctx, again)
	if len(out.Provenance) != 2 {
		t.Errorf("expected dedup to keep 2 entries, got %d", len(out.Provenance))
	}
}

func TestUpsertUpdatedAtNeverRegresses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := testMemory("m1", "Travel")
	m.UpdatedAt = time.Unix(5000, 0).UTC()
	s.UpsertMemory(ctx, m)

	stale := testMemory("m1", "Travel")
	stale.UpdatedAt = time.Unix(1000, 0).UTC()
	out, err := s.UpsertMemory(ctx, stale)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if out.UpdatedAt.Before(time.Unix(5000, 0).UTC()) {
		t.Errorf("updated_at regressed to %v", out.UpdatedAt)
	}
}

func TestUpsertRejectsDanglingLink(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := testMemory("m1", "Travel")
	m.Links = []model.Link{{Rel: "mentions", To: "nowhere"}}
	_, err := s.UpsertMemory(ctx, m)
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for dangling link, got %v", err)
	}
}

func TestUpsertRejectsInvalidMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := testMemory("m1", "Travel")
	bad.Salience = 1.5
	if _, err := s.UpsertMemory(ctx, bad); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for salience 1.5, got %v", err)
	}

	bad = testMemory("m2", "")
	if _, err := s.UpsertMemory(ctx, bad); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty branch, got %v", err)
	}
}

func TestListMemoriesFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertMemory(ctx, testMemory("m1", "Travel/Normandy"))
	s.UpsertMemory(ctx, testMemory("m2", "Travel"))
	s.UpsertMemory(ctx, testMemory("m3", "Travels")) // not under Travel
	ep := testMemory("m4", "Work")
	ep.Type = model.TypeEpisodic
	ep.Content = map[string]any{"summary": "stand-up"}
	s.UpsertMemory(ctx, ep)

	all, _ := s.ListMemories(ctx, ListParams{})
	if len(all) != 4 {
		t.Errorf("expected 4, got %d", len(all))
	}

	travel, _ := s.ListMemories(ctx, ListParams{BranchPrefix: "Travel"})
	if len(travel) != 2 {
		t.Errorf("expected 2 under Travel (prefix must not match Travels), got %d", len(travel))
	}

	episodic, _ := s.ListMemories(ctx, ListParams{Type: model.TypeEpisodic})
	if len(episodic) != 1 || episodic[0].ID != "m4" {
		t.Errorf("type filter failed: %+v", episodic)
	}
}

func TestListMemoriesOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	old := testMemory("m_old", "Travel")
	old.UpdatedAt = time.Unix(1000, 0).UTC()
	s.UpsertMemory(ctx, old)
	fresh := testMemory("m_new", "Travel")
	fresh.UpdatedAt = time.Unix(2000, 0).UTC()
	s.UpsertMemory(ctx, fresh)

	list, _ := s.ListMemories(ctx, ListParams{})
	if len(list) != 2 || list[0].ID != "m_new" || list[1].ID != "m_old" {
		t.Errorf("expected newest first, got %+v", list)
	}
}

func TestTombstoneMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertMemory(ctx, testMemory("m1", "Travel"))
	if err := s.TombstoneMemory(ctx, "m1"); err != nil {
		t.Fatalf("tombstone: %v", err)
	}

	list, _ := s.ListMemories(ctx, ListParams{})
	if len(list) != 0 {
		t.Errorf("expected tombstoned memory hidden from list, got %d", len(list))
	}

	// Row survives for audit.
	got, err := s.GetMemory(ctx, "m1")
	if err != nil {
		t.Fatalf("get after tombstone: %v", err)
	}
	if !got.Tombstoned() {
		t.Error("expected Tombstoned() true")
	}

	withAll, _ := s.ListMemories(ctx, ListParams{IncludeTombstoned: true})
	if len(withAll) != 1 {
		t.Errorf("expected tombstoned row with IncludeTombstoned, got %d", len(withAll))
	}

	if err := s.TombstoneMemory(ctx, "m1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on repeat tombstone, got %v", err)
	}
}

func TestUpdateMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertMemory(ctx, testMemory("m1", "Travel"))
	out, err := s.UpdateMemory(ctx, "m1", func(m *model.Memory) error {
		m.Salience = 0.9
		m.ID = "hijack" // must be ignored
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.ID != "m1" {
		t.Errorf("id must be immutable, got %q", out.ID)
	}
	if out.Salience != 0.9 {
		t.Errorf("expected salience 0.9, got %v", out.Salience)
	}
	if out.Version != 2 {
		t.Errorf("expected version 2, got %d", out.Version)
	}
}

func TestUpdateMemoryConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertMemory(ctx, testMemory("m1", "Travel"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, key := range []string{"left", "right"} {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			_, errs[i] = s.UpdateMemory(ctx, "m1", func(m *model.Memory) error {
				m.Content[key] = "set"
				return nil
			})
		}(i, key)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	got, err := s.GetMemory(ctx, "m1")
	if err != nil {
		t.Fatalf("get memory: %v", err)
	}
	for _, key := range []string{"left", "right"} {
		if got.Content[key] != "set" {
			t.Errorf("expected key %q from both writers, content: %v", key, got.Content)
		}
	}
	if got.Version != 3 {
		t.Errorf("expected two committed updates to reach version 3, got %d", got.Version)
	}
}

func TestUpdateMemoryTombstoned(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertMemory(ctx, testMemory("m1", "Travel"))
	s.TombstoneMemory(ctx, "m1")

	_, err := s.UpdateMemory(ctx, "m1", func(m *model.Memory) error { return nil })
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for tombstoned update, got %v", err)
	}
}

func TestNewIDUnique(t *testing.T) {
	s := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := s.NewID()
		if id == "" || seen[id] {
			t.Fatalf("expected unique non-empty ids, got %q at iteration %d", id, i)
		}
		seen[id] = true
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
