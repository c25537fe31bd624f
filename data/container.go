// Package data provides the in-memory catalogue backend. The CatalogContainer
// keeps an immutable snapshot behind an atomic pointer so refreshes never block
// readers, and answers range queries from sorted field indexes.
package data

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/giygas/medisearch/catalog"
	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
)

// Compile-time check to ensure CatalogContainer implements CatalogDataStore
var _ interfaces.CatalogDataStore = (*CatalogContainer)(nil)

// snapshot is one immutable version of the catalogue
type snapshot struct {
	records    []entities.MedicineRecord
	byID       map[string]int
	byName     []int // record positions sorted by name_lowercase, then id
	byBrand    []int // record positions sorted by medicine_brand_lowercase, then id
	report     *interfaces.CatalogQualityReport
	lastUpdate time.Time
}

// CatalogContainer holds the catalogue with an atomic pointer for zero-downtime updates
type CatalogContainer struct {
	current  atomic.Pointer[snapshot]
	updating atomic.Bool
}

// NewCatalogContainer creates a container with an empty catalogue
func NewCatalogContainer() *CatalogContainer {
	dc := &CatalogContainer{}
	dc.current.Store(buildSnapshot(nil, nil, time.Time{}))
	return dc
}

func buildSnapshot(records []entities.MedicineRecord, report *interfaces.CatalogQualityReport, at time.Time) *snapshot {
	if records == nil {
		records = []entities.MedicineRecord{}
	}

	s := &snapshot{
		records:    records,
		byID:       make(map[string]int, len(records)),
		byName:     make([]int, 0, len(records)),
		byBrand:    make([]int, 0, len(records)),
		report:     report,
		lastUpdate: at,
	}

	for i := range records {
		if _, dup := s.byID[records[i].ID]; dup {
			continue
		}
		s.byID[records[i].ID] = i
		s.byName = append(s.byName, i)
		s.byBrand = append(s.byBrand, i)
	}

	sortIndex(records, s.byName, entities.FieldNameLowercase)
	sortIndex(records, s.byBrand, entities.FieldBrandLowercase)

	return s
}

func sortIndex(records []entities.MedicineRecord, index []int, field entities.CatalogField) {
	sort.SliceStable(index, func(a, b int) bool {
		ra, rb := records[index[a]], records[index[b]]
		va, vb := ra.FieldValue(field), rb.FieldValue(field)
		if va != vb {
			return va < vb
		}
		return ra.ID < rb.ID
	})
}

func (dc *CatalogContainer) load() *snapshot {
	if s := dc.current.Load(); s != nil {
		return s
	}

	logging.Warn("Catalog snapshot is empty or invalid")
	return buildSnapshot(nil, nil, time.Time{})
}

// Thread-safe getters

// GetRecords returns every record of the current snapshot
func (dc *CatalogContainer) GetRecords() []entities.MedicineRecord {
	return dc.load().records
}

// GetLastUpdated returns the timestamp of the last catalogue update
func (dc *CatalogContainer) GetLastUpdated() time.Time {
	return dc.load().lastUpdate
}

// GetQualityReport returns the quality report of the current snapshot, if any
func (dc *CatalogContainer) GetQualityReport() *interfaces.CatalogQualityReport {
	return dc.load().report
}

// IsUpdating returns true if a catalogue update is currently in progress
func (dc *CatalogContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// UpdateData atomically replaces the catalogue
func (dc *CatalogContainer) UpdateData(records []entities.MedicineRecord, report *interfaces.CatalogQualityReport) {
	dc.current.Store(buildSnapshot(records, report, time.Now()))
}

// BeginUpdate marks the start of a catalogue update.
// Returns true if update can proceed, false if another update is in progress
func (dc *CatalogContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a catalogue update
func (dc *CatalogContainer) EndUpdate() {
	dc.updating.Store(false)
}

// RangeQuery returns the records with lower <= field < upper, ordered by field.
// Bounds from catalog.PrefixRange return every value starting with the term.
func (dc *CatalogContainer) RangeQuery(ctx context.Context, field entities.CatalogField, lower, upper string) ([]entities.MedicineRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &catalog.QueryError{Op: "range query", Field: field, Err: err}
	}

	s := dc.load()

	var index []int
	switch field {
	case entities.FieldNameLowercase:
		index = s.byName
	case entities.FieldBrandLowercase:
		index = s.byBrand
	default:
		return dc.scan(ctx, field, catalog.Matcher(lower, upper))
	}

	match := catalog.Matcher(lower, upper)

	start := sort.Search(len(index), func(i int) bool {
		return s.records[index[i]].FieldValue(field) >= lower
	})

	results := []entities.MedicineRecord{}
	for _, pos := range index[start:] {
		record := s.records[pos]
		// Matches are contiguous in the sorted index
		if !match(record.FieldValue(field)) {
			break
		}
		results = append(results, record)
	}

	return results, nil
}

// GetByID returns the record with the given id or catalog.ErrNotFound
func (dc *CatalogContainer) GetByID(ctx context.Context, id string) (entities.MedicineRecord, error) {
	if err := ctx.Err(); err != nil {
		return entities.MedicineRecord{}, &catalog.QueryError{Op: "get", Err: err}
	}

	s := dc.load()
	pos, exists := s.byID[id]
	if !exists {
		return entities.MedicineRecord{}, catalog.ErrNotFound
	}
	return s.records[pos], nil
}

// QueryByField returns the records whose field equals value, in catalogue order
func (dc *CatalogContainer) QueryByField(ctx context.Context, field entities.CatalogField, value string) ([]entities.MedicineRecord, error) {
	return dc.scan(ctx, field, func(v string) bool { return v == value })
}

func (dc *CatalogContainer) scan(ctx context.Context, field entities.CatalogField, match func(string) bool) ([]entities.MedicineRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &catalog.QueryError{Op: "field query", Field: field, Err: err}
	}

	s := dc.load()
	results := []entities.MedicineRecord{}
	for i, record := range s.records {
		// Shadowed duplicates are not part of the catalogue
		if s.byID[record.ID] != i {
			continue
		}
		if match(record.FieldValue(field)) {
			results = append(results, record)
		}
	}

	return results, nil
}
