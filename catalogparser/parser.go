// Package catalogparser loads the medicine catalogue from a seed file or URL
// and prepares it for the in-memory catalogue: lowercase search fields are
// produced here, invalid records are dropped and duplicate ids collapse to the
// first record.
package catalogparser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/medisearch/catalog"
	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/validation"
)

// Compile-time check to ensure Parser implements CatalogLoader
var _ interfaces.CatalogLoader = (*Parser)(nil)

// Parser implements the CatalogLoader interface
type Parser struct {
	source string
	format Format
	client *http.Client
}

// Option configures a Parser
type Option func(*Parser)

// WithHTTPClient replaces the download client
func WithHTTPClient(client *http.Client) Option {
	return func(p *Parser) {
		p.client = client
	}
}

// WithFormat forces a format instead of detecting it from the extension
func WithFormat(format Format) Option {
	return func(p *Parser) {
		p.format = format
	}
}

// NewParser creates a parser for source, a local path or an http(s) URL
func NewParser(source string, opts ...Option) (*Parser, error) {
	p := &Parser{
		source: source,
		client: newHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.format == "" {
		format, err := DetectFormat(source)
		if err != nil {
			return nil, err
		}
		p.format = format
	}

	return p, nil
}

func (p *Parser) remote() bool {
	return strings.HasPrefix(p.source, "http://") || strings.HasPrefix(p.source, "https://")
}

// LoadCatalog reads the seed and returns the prepared records with the
// quality report of the seed as read
func (p *Parser) LoadCatalog(ctx context.Context) ([]entities.MedicineRecord, *interfaces.CatalogQualityReport, error) {
	start := time.Now()

	var (
		body []byte
		err  error
	)
	if p.remote() {
		body, err = download(ctx, p.client, p.source)
	} else {
		body, err = readFile(p.source)
	}
	if err != nil {
		return nil, nil, err
	}

	raw, err := decode(p.format, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", p.source, err)
	}

	report := validation.ReportCatalogQuality(raw)
	records := Prepare(raw)

	logging.Info("Catalog seed parsed",
		"source", p.source,
		"format", string(p.format),
		"records_read", len(raw),
		"records_kept", len(records),
		"duration", time.Since(start).String())

	return records, report, nil
}

// Prepare fills the lowercase fields, drops records without a valid id or a
// name and keeps the first record of every id
func Prepare(raw []entities.MedicineRecord) []entities.MedicineRecord {
	records := make([]entities.MedicineRecord, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	dropped := 0

	for _, record := range raw {
		record.ID = strings.TrimSpace(record.ID)
		if validation.ValidateRecordID(record.ID) != nil || strings.TrimSpace(record.Name) == "" {
			dropped++
			continue
		}
		if seen[record.ID] {
			dropped++
			continue
		}
		seen[record.ID] = true

		record.NameLowercase = catalog.Normalize(record.Name)
		record.BrandLowercase = catalog.Normalize(record.Brand)
		records = append(records, record)
	}

	if dropped > 0 {
		logging.Warn("Dropped catalog records", "count", dropped)
	}
	return records
}
