// Package search implements the incremental medicine search.
//
// Every input change is a new evaluation tagged with a generation number.
// The fragment is case-folded, then two prefix range queries (name and brand)
// run concurrently against the catalogue store and their results are merged:
// name matches first, brand matches after, duplicates removed by id. Only the
// newest generation may update the displayed result, so a slow response for
// an old fragment can never replace the result of a newer one.
package search

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/giygas/medisearch/catalog"
	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/metrics"
)

// Status classifies a result set
type Status int

const (
	StatusEmpty Status = iota
	StatusPending
	StatusHit
	StatusMiss
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusPending:
		return "pending"
	case StatusHit:
		return "hit"
	case StatusMiss:
		return "miss"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name in JSON output
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ResultSet is the outcome of one evaluation
type ResultSet struct {
	Term       string                    `json:"term"`
	Items      []entities.MedicineRecord `json:"items"`
	Status     Status                    `json:"status"`
	Generation uint64                    `json:"generation"`

	// Err keeps the query failure behind a Miss for logs and tests. It is
	// never shown to the user.
	Err error `json:"-"`
}

// Option configures an Engine
type Option func(*Engine)

// WithQueryTimeout bounds each evaluation. Zero disables the bound, in which
// case a query that never returns leaves its result Pending.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// Engine evaluates fragments and owns the displayed result
type Engine struct {
	store   interfaces.CatalogStore
	timeout time.Duration

	generation atomic.Uint64
	inflight   sync.WaitGroup

	mu      sync.RWMutex
	current ResultSet
}

// NewEngine creates an engine over store. The initial result is Empty.
func NewEngine(store interfaces.CatalogStore, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		current: ResultSet{Items: []entities.MedicineRecord{}, Status: StatusEmpty},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search evaluates fragment and waits for the result. The boolean reports
// whether the result became the displayed one; it is false when a newer
// input arrived while the queries were running.
func (e *Engine) Search(ctx context.Context, fragment string) (ResultSet, bool) {
	gen, term := e.begin(fragment)
	return e.run(ctx, gen, term)
}

// Input is the keystroke entry point. The generation is taken before
// returning, so call order decides recency even though the evaluation
// runs in the background.
func (e *Engine) Input(fragment string) uint64 {
	gen, term := e.begin(fragment)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.run(context.Background(), gen, term)
	}()

	return gen
}

// Current returns the displayed result
func (e *Engine) Current() ResultSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Wait blocks until every evaluation started by Input has finished
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) begin(fragment string) (uint64, string) {
	return e.generation.Add(1), catalog.Normalize(fragment)
}

func (e *Engine) run(ctx context.Context, gen uint64, term string) (ResultSet, bool) {
	if term == "" {
		rs := ResultSet{Items: []entities.MedicineRecord{}, Status: StatusEmpty, Generation: gen}
		metrics.SearchRequestsTotal.WithLabelValues(rs.Status.String()).Inc()
		return rs, e.apply(rs)
	}

	e.apply(ResultSet{Term: term, Items: []entities.MedicineRecord{}, Status: StatusPending, Generation: gen})

	rs := e.evaluate(ctx, gen, term)
	metrics.SearchRequestsTotal.WithLabelValues(rs.Status.String()).Inc()
	return rs, e.apply(rs)
}

// apply installs rs as the displayed result if its generation is still the newest
func (e *Engine) apply(rs ResultSet) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rs.Generation != e.generation.Load() {
		if rs.Status != StatusPending {
			metrics.SearchStaleResultsTotal.Inc()
			logging.Debug("Dropping stale search result", "generation", rs.Generation, "status", rs.Status.String())
		}
		return false
	}

	e.current = rs
	return true
}

func (e *Engine) evaluate(ctx context.Context, gen uint64, term string) ResultSet {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	lower, upper := catalog.PrefixRange(term)

	var byName, byBrand []entities.MedicineRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := e.query(gctx, entities.FieldNameLowercase, lower, upper)
		byName = records
		return err
	})
	g.Go(func() error {
		records, err := e.query(gctx, entities.FieldBrandLowercase, lower, upper)
		byBrand = records
		return err
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		// Queries still running are abandoned, their results discarded
		err = &catalog.QueryError{Op: "search", Err: ctx.Err()}
	}

	if err != nil {
		metrics.SearchFailuresTotal.Inc()
		logging.Warn("Search query failed", "generation", gen, "term_length", len(term), "error", err)
		return ResultSet{Term: term, Items: []entities.MedicineRecord{}, Status: StatusMiss, Generation: gen, Err: err}
	}

	items := Merge(byName, byBrand)
	status := StatusHit
	if len(items) == 0 {
		status = StatusMiss
	}

	return ResultSet{Term: term, Items: items, Status: status, Generation: gen}
}

func (e *Engine) query(ctx context.Context, field entities.CatalogField, lower, upper string) ([]entities.MedicineRecord, error) {
	timer := prometheus.NewTimer(metrics.CatalogQueryDuration.WithLabelValues(string(field)))
	defer timer.ObserveDuration()

	return e.store.RangeQuery(ctx, field, lower, upper)
}

// Merge concatenates name matches and brand matches and removes duplicate
// ids, keeping the first occurrence.
func Merge(byName, byBrand []entities.MedicineRecord) []entities.MedicineRecord {
	merged := make([]entities.MedicineRecord, 0, len(byName)+len(byBrand))
	seen := make(map[string]struct{}, len(byName)+len(byBrand))

	for _, list := range [][]entities.MedicineRecord{byName, byBrand} {
		for _, record := range list {
			if _, dup := seen[record.ID]; dup {
				continue
			}
			seen[record.ID] = struct{}{}
			merged = append(merged, record)
		}
	}

	return merged
}
