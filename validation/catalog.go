package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/medisearch/catalog"
	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
)

// maxRecordIDBytes matches the document id limit of the catalogue store
const maxRecordIDBytes = 128

// ValidateRecordID checks a detail route parameter before it is used as a
// document id.
func ValidateRecordID(id string) error {
	if id == "" {
		return fmt.Errorf("record id cannot be empty")
	}

	if len(id) > maxRecordIDBytes {
		return fmt.Errorf("record id too long: maximum %d bytes", maxRecordIDBytes)
	}

	if id == "." || id == ".." {
		return fmt.Errorf("record id cannot be %q", id)
	}

	if !utf8.ValidString(id) {
		return fmt.Errorf("record id is not valid UTF-8")
	}

	for _, r := range id {
		if r == '/' || unicode.IsControl(r) {
			return fmt.Errorf("record id contains invalid characters")
		}
	}

	return nil
}

// ValidateFragment bounds a search fragment. Any text is a valid prefix, so
// only the length and control characters are checked.
func ValidateFragment(fragment string, maxLength int) error {
	if maxLength > 0 && utf8.RuneCountInString(fragment) > maxLength {
		return fmt.Errorf("search input too long: maximum %d characters", maxLength)
	}

	if !utf8.ValidString(fragment) {
		return fmt.Errorf("search input is not valid UTF-8")
	}

	if strings.IndexFunc(fragment, unicode.IsControl) >= 0 {
		return fmt.Errorf("search input contains control characters")
	}

	return nil
}

// ReportCatalogQuality inspects a loaded catalogue and logs what it finds
func ReportCatalogQuality(records []entities.MedicineRecord) *interfaces.CatalogQualityReport {
	report := &interfaces.CatalogQualityReport{
		DuplicateIDs: []string{},
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			report.DuplicateIDs = append(report.DuplicateIDs, r.ID)
		}
		seen[r.ID] = true

		if strings.TrimSpace(r.Name) == "" {
			report.RecordsWithoutName++
		}
		if strings.TrimSpace(r.Brand) == "" {
			report.RecordsWithoutBrand++
		}
		if r.NameLowercase != catalog.Normalize(r.Name) || r.BrandLowercase != catalog.Normalize(r.Brand) {
			report.RecordsFixedLowercase++
		}
	}

	if len(report.DuplicateIDs) > 0 {
		logging.Error("Duplicate record ids detected",
			"count", len(report.DuplicateIDs),
			"duplicates", report.DuplicateIDs,
		)
	}

	logging.Info("Catalog quality report",
		"records", len(records),
		"duplicate_ids", len(report.DuplicateIDs),
		"without_name", report.RecordsWithoutName,
		"without_brand", report.RecordsWithoutBrand,
		"lowercase_mismatch", report.RecordsFixedLowercase,
	)

	return report
}
