package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/giygas/medisearch/catalog"
	"github.com/giygas/medisearch/entities"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStore answers range queries from a slice. Queries whose lower bound
// has a gate block until the gate is closed or the context ends.
type fakeStore struct {
	mu      sync.Mutex
	records []entities.MedicineRecord
	calls   int
	fail    map[entities.CatalogField]error
	gates   map[string]chan struct{}
	started chan string
}

func newFakeStore(records ...entities.MedicineRecord) *fakeStore {
	return &fakeStore{
		records: records,
		fail:    map[entities.CatalogField]error{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 64),
	}
}

func (f *fakeStore) gate(term string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[term] = ch
	return ch
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStore) RangeQuery(ctx context.Context, field entities.CatalogField, lower, upper string) ([]entities.MedicineRecord, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[lower]
	err := f.fail[field]
	f.mu.Unlock()

	if gate != nil {
		f.started <- lower
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	out := []entities.MedicineRecord{}
	for _, r := range f.records {
		if catalog.InRange(r.FieldValue(field), lower, upper) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FieldValue(field) < out[j].FieldValue(field)
	})
	return out, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (entities.MedicineRecord, error) {
	return entities.MedicineRecord{}, catalog.ErrNotFound
}

func (f *fakeStore) QueryByField(ctx context.Context, field entities.CatalogField, value string) ([]entities.MedicineRecord, error) {
	return nil, errors.New("not used")
}

func medicine(id, name, brand string) entities.MedicineRecord {
	return entities.MedicineRecord{
		ID:             id,
		Name:           name,
		NameLowercase:  strings.ToLower(name),
		Brand:          brand,
		BrandLowercase: strings.ToLower(brand),
	}
}

func catalogue() []entities.MedicineRecord {
	return []entities.MedicineRecord{
		medicine("m1", "Paracetamol", "Doliprane"),
		medicine("m2", "Parazolam", "Pfizer"),
		medicine("m3", "Ibuprofen", "Advil"),
		medicine("m4", "Dafalgan", "Paralab"),
		medicine("m5", "Paralgin", "Paralab"),
		medicine("m6", "Aspirin", "Bayer"),
	}
}

func itemIDs(rs ResultSet) string {
	ids := make([]string, len(rs.Items))
	for i, r := range rs.Items {
		ids[i] = r.ID
	}
	return strings.Join(ids, ",")
}

func TestEmptyFragmentIssuesNoQuery(t *testing.T) {
	store := newFakeStore(catalogue()...)
	engine := NewEngine(store)

	rs, applied := engine.Search(context.Background(), "")
	if rs.Status != StatusEmpty {
		t.Errorf("Expected Empty, got %s", rs.Status)
	}
	if rs.Term != "" || len(rs.Items) != 0 {
		t.Errorf("Expected empty term and items, got %q %v", rs.Term, rs.Items)
	}
	if !applied {
		t.Error("Empty result should be applied")
	}

	engine.Input("")
	engine.Wait()

	if store.callCount() != 0 {
		t.Errorf("Expected zero store calls, got %d", store.callCount())
	}
}

func TestSearchMergesNameThenBrand(t *testing.T) {
	engine := NewEngine(newFakeStore(catalogue()...))

	tests := []struct {
		fragment string
		term     string
		status   Status
		ids      string
	}{
		// m5 matches both name and brand and keeps its name position
		{"Para", "para", StatusHit, "m1,m5,m2,m4"},
		{"PFI", "pfi", StatusHit, "m2"},
		{"ibu", "ibu", StatusHit, "m3"},
		{"zz", "zz", StatusMiss, ""},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			rs, applied := engine.Search(context.Background(), tt.fragment)
			if !applied {
				t.Error("Sequential search should be applied")
			}
			if rs.Term != tt.term {
				t.Errorf("Expected term %q, got %q", tt.term, rs.Term)
			}
			if rs.Status != tt.status {
				t.Errorf("Expected %s, got %s", tt.status, rs.Status)
			}
			if got := itemIDs(rs); got != tt.ids {
				t.Errorf("Expected %s, got %s", tt.ids, got)
			}
			if rs.Err != nil {
				t.Errorf("Expected no error, got %v", rs.Err)
			}
			if engine.Current().Generation != rs.Generation {
				t.Error("Current should be the latest result")
			}
		})
	}
}

func TestResultsAreUniqueAndPrefixed(t *testing.T) {
	engine := NewEngine(newFakeStore(catalogue()...))

	for _, fragment := range []string{"p", "pa", "par", "PARA", "a", "as", "b", "d", "do", "x", "paralab"} {
		rs, _ := engine.Search(context.Background(), fragment)
		term := strings.ToLower(fragment)

		seen := map[string]bool{}
		for _, r := range rs.Items {
			if seen[r.ID] {
				t.Errorf("%q: duplicate id %s", fragment, r.ID)
			}
			seen[r.ID] = true

			if !strings.HasPrefix(r.NameLowercase, term) && !strings.HasPrefix(r.BrandLowercase, term) {
				t.Errorf("%q: record %s matches neither field", fragment, r.ID)
			}
		}
	}
}

func TestQueryFailureCollapsesToMiss(t *testing.T) {
	store := newFakeStore(catalogue()...)
	unavailable := errors.New("unavailable")
	store.fail[entities.FieldBrandLowercase] = unavailable
	engine := NewEngine(store)

	rs, applied := engine.Search(context.Background(), "para")
	if !applied {
		t.Error("Failed result should still be applied")
	}
	if rs.Status != StatusMiss {
		t.Errorf("Expected Miss, got %s", rs.Status)
	}
	if len(rs.Items) != 0 {
		t.Errorf("Expected no items, got %d", len(rs.Items))
	}
	if !errors.Is(rs.Err, unavailable) {
		t.Errorf("Expected the cause to be kept, got %v", rs.Err)
	}
}

func TestOlderResponseNeverOverwritesNewer(t *testing.T) {
	store := newFakeStore(catalogue()...)
	slow := store.gate("pa")
	engine := NewEngine(store)

	type outcome struct {
		rs      ResultSet
		applied bool
	}
	older := make(chan outcome, 1)
	go func() {
		rs, applied := engine.Search(context.Background(), "pa")
		older <- outcome{rs, applied}
	}()

	// Both queries of the older search are in flight
	<-store.started
	<-store.started

	newer, applied := engine.Search(context.Background(), "par")
	if !applied {
		t.Fatal("Newer search should be applied")
	}

	close(slow)
	old := <-older

	if old.applied {
		t.Error("Older response arriving last must not be applied")
	}
	if old.rs.Term != "pa" || old.rs.Status != StatusHit {
		t.Errorf("Older result should still describe its own term, got %q %s", old.rs.Term, old.rs.Status)
	}

	current := engine.Current()
	if current.Term != "par" || current.Generation != newer.Generation {
		t.Errorf("Expected displayed term par, got %q (generation %d)", current.Term, current.Generation)
	}
}

func TestInputLastCallWins(t *testing.T) {
	store := newFakeStore(catalogue()...)
	slow := store.gate("p")
	engine := NewEngine(store)

	first := engine.Input("p")
	<-store.started
	<-store.started

	second := engine.Input("pa")
	third := engine.Input("pan")
	if !(first < second && second < third) {
		t.Fatalf("Generations should increase in call order: %d %d %d", first, second, third)
	}

	close(slow)
	engine.Wait()

	current := engine.Current()
	if current.Generation != third {
		t.Errorf("Expected generation %d displayed, got %d", third, current.Generation)
	}
	if current.Term != "pan" || current.Status != StatusMiss {
		t.Errorf("Expected Miss for pan, got %q %s", current.Term, current.Status)
	}
}

func TestPendingWithoutTimeout(t *testing.T) {
	store := newFakeStore(catalogue()...)
	slow := store.gate("para")
	engine := NewEngine(store)

	engine.Input("para")
	<-store.started

	deadline := time.Now().Add(time.Second)
	for engine.Current().Status != StatusPending {
		if time.Now().After(deadline) {
			t.Fatal("Expected Pending while the queries are in flight")
		}
		time.Sleep(time.Millisecond)
	}
	if engine.Current().Term != "para" {
		t.Errorf("Pending result should carry its term, got %q", engine.Current().Term)
	}

	close(slow)
	engine.Wait()

	if engine.Current().Status != StatusHit {
		t.Errorf("Expected Hit after release, got %s", engine.Current().Status)
	}
}

func TestQueryTimeoutBecomesMiss(t *testing.T) {
	store := newFakeStore(catalogue()...)
	store.gate("para")
	engine := NewEngine(store, WithQueryTimeout(20*time.Millisecond))

	rs, applied := engine.Search(context.Background(), "para")
	if !applied {
		t.Error("Timed out result should be applied")
	}
	if rs.Status != StatusMiss {
		t.Errorf("Expected Miss, got %s", rs.Status)
	}
	if !errors.Is(rs.Err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", rs.Err)
	}

	// Let the abandoned queries observe the cancellation
	time.Sleep(10 * time.Millisecond)
}

func TestMerge(t *testing.T) {
	a := medicine("a", "A", "X")
	b := medicine("b", "B", "X")
	c := medicine("c", "C", "Y")

	tests := []struct {
		name    string
		byName  []entities.MedicineRecord
		byBrand []entities.MedicineRecord
		ids     []string
	}{
		{"both empty", nil, nil, []string{}},
		{"name only", []entities.MedicineRecord{a, b}, nil, []string{"a", "b"}},
		{"brand only", nil, []entities.MedicineRecord{c}, []string{"c"}},
		{"overlap keeps name position", []entities.MedicineRecord{b, a}, []entities.MedicineRecord{a, c}, []string{"b", "a", "c"}},
		{"duplicates inside one list", []entities.MedicineRecord{a, a}, []entities.MedicineRecord{a}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := Merge(tt.byName, tt.byBrand)
			if merged == nil {
				t.Fatal("Merge should never return nil")
			}
			got := make([]string, len(merged))
			for i, r := range merged {
				got[i] = r.ID
			}
			if strings.Join(got, ",") != strings.Join(tt.ids, ",") {
				t.Errorf("Expected %v, got %v", tt.ids, got)
			}
		})
	}
}

func TestStatusText(t *testing.T) {
	tests := map[Status]string{
		StatusEmpty:   "empty",
		StatusPending: "pending",
		StatusHit:     "hit",
		StatusMiss:    "miss",
		Status(42):    "unknown",
	}
	for status, want := range tests {
		text, err := status.MarshalText()
		if err != nil || string(text) != want {
			t.Errorf("MarshalText(%d) = %q, %v; want %q", status, text, err, want)
		}
	}
}
