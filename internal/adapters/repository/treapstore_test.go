package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"
)

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	if err := store.Set(ctx, "d-1", 62); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := store.Rank(ctx, "d-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 || entry.Earnings != 62 {
		t.Errorf("expected rank 1 with 62, got %+v", entry)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].DriverID != "d-1" {
		t.Errorf("unexpected top entries %+v", entries)
	}
}

func TestTreapStore_EarningsMoveBothWays(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	_ = store.Set(ctx, "d-1", 100)
	_ = store.Set(ctx, "d-2", 50)

	// A penalty lowers a total; the ranking follows it down.
	_ = store.Set(ctx, "d-1", 40)

	entries, _ := store.TopN(ctx, 2)
	if entries[0].DriverID != "d-2" || entries[1].DriverID != "d-1" {
		t.Errorf("expected d-2 ahead of d-1, got %+v", entries)
	}
	if store.Count(ctx) != 2 {
		t.Errorf("expected count 2, got %d", store.Count(ctx))
	}
}

func TestTreapStore_Ties(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	_ = store.Set(ctx, "d-b", 62)
	_ = store.Set(ctx, "d-a", 62)
	_ = store.Set(ctx, "d-c", 30)
	_ = store.Set(ctx, "d-z", 420)

	entries, _ := store.TopN(ctx, 4)
	wantIDs := []string{"d-z", "d-a", "d-b", "d-c"}
	wantRanks := []int{1, 2, 2, 4}
	for i, e := range entries {
		if e.DriverID != wantIDs[i] || e.Rank != wantRanks[i] {
			t.Errorf("entry %d: expected %s rank %d, got %+v", i, wantIDs[i], wantRanks[i], e)
		}
	}

	for i, id := range wantIDs {
		e, err := store.Rank(ctx, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e.Rank != wantRanks[i] {
			t.Errorf("Rank(%s): expected %d, got %d", id, wantRanks[i], e.Rank)
		}
	}
}

func TestTreapStore_CentPrecision(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	// 0.1 + 0.2 and 0.3 differ as floats but are the same money.
	_ = store.Set(ctx, "d-1", 0.1+0.2)
	_ = store.Set(ctx, "d-2", 0.3)

	a, _ := store.Rank(ctx, "d-1")
	b, _ := store.Rank(ctx, "d-2")
	if a.Rank != 1 || b.Rank != 1 {
		t.Errorf("expected a shared first place, got %d and %d", a.Rank, b.Rank)
	}
	if a.Earnings != 0.3 {
		t.Errorf("expected earnings 0.3, got %v", a.Earnings)
	}
}

func TestTreapStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(WithMaxTopN(2))

	if _, err := store.Rank(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if err := store.Set(ctx, "d-1", math.NaN()); !errors.Is(err, ErrInvalidEarnings) {
		t.Errorf("expected ErrInvalidEarnings, got %v", err)
	}
	if err := store.Set(ctx, "d-1", math.Inf(1)); !errors.Is(err, ErrInvalidEarnings) {
		t.Errorf("expected ErrInvalidEarnings, got %v", err)
	}

	for i := 0; i < 5; i++ {
		_ = store.Set(ctx, fmt.Sprintf("d-%d", i), float64(i))
	}
	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected TopN clamped to 2, got %d", len(entries))
	}
}

func TestTreapStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	_ = store.Set(ctx, "d-1", 10)
	_ = store.Set(ctx, "d-2", 20)

	if !store.Remove(ctx, "d-2") {
		t.Error("expected remove to report true")
	}
	if store.Remove(ctx, "d-2") {
		t.Error("expected second remove to report false")
	}
	e, err := store.Rank(ctx, "d-1")
	if err != nil || e.Rank != 1 {
		t.Errorf("expected d-1 first after removal, got %+v, %v", e, err)
	}
}

// TestTreapStore_MatchesSort checks the treap against a plain sort after
// random updates.
func TestTreapStore_MatchesSort(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	r := rand.New(rand.NewSource(7))
	want := map[string]float64{}

	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("d-%d", r.Intn(150))
		amount := float64(r.Intn(40)) * 12.5
		if r.Intn(10) == 0 {
			store.Remove(ctx, id)
			delete(want, id)
			continue
		}
		if err := store.Set(ctx, id, amount); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want[id] = amount
	}

	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if want[ids[i]] != want[ids[j]] {
			return want[ids[i]] > want[ids[j]]
		}
		return ids[i] < ids[j]
	})

	got, err := store.TopN(ctx, len(ids))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("expected %d entries, got %d", len(ids), len(got))
	}
	for i, e := range got {
		if e.DriverID != ids[i] {
			t.Fatalf("position %d: expected %s, got %s", i, ids[i], e.DriverID)
		}
		rk, _ := store.Rank(ctx, e.DriverID)
		if rk.Rank != e.Rank {
			t.Fatalf("%s: TopN rank %d, Rank %d", e.DriverID, e.Rank, rk.Rank)
		}
	}
}

func TestTreapStore_Concurrency(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("d-%d-%d", g, i%20)
				_ = store.Set(ctx, id, float64(i))
				_, _ = store.TopN(ctx, 5)
				_, _ = store.Rank(ctx, id)
			}
		}(g)
	}
	wg.Wait()

	if count := store.Count(ctx); count != 160 {
		t.Errorf("expected 160 drivers, got %d", count)
	}
}

func BenchmarkTreapStore_Set(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore()
	for i := 0; i < b.N; i++ {
		_ = store.Set(ctx, fmt.Sprintf("d-%d", i%10_000), float64(i%997))
	}
}

func BenchmarkTreapStore_Rank(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore()
	for i := 0; i < 10_000; i++ {
		_ = store.Set(ctx, fmt.Sprintf("d-%d", i), float64(i%997))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Rank(ctx, fmt.Sprintf("d-%d", i%10_000))
	}
}
