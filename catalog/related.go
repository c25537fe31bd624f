package catalog

import (
	"context"
	"regexp"
	"strings"

	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/interfaces"
)

// doseMarker matches the list markers used in dose indications: "1. ", "* ", "- "
var doseMarker = regexp.MustCompile(`(?:\d+\.|\*|-)\s`)

// RelatedByBrand returns the other records sharing the record's brand.
func RelatedByBrand(ctx context.Context, store interfaces.CatalogStore, record entities.MedicineRecord) ([]entities.MedicineRecord, error) {
	if record.Brand == "" {
		return []entities.MedicineRecord{}, nil
	}

	sameBrand, err := store.QueryByField(ctx, entities.FieldBrand, record.Brand)
	if err != nil {
		return nil, err
	}

	related := make([]entities.MedicineRecord, 0, len(sameBrand))
	for _, r := range sameBrand {
		if r.ID != record.ID {
			related = append(related, r)
		}
	}
	return related, nil
}

// SplitDoseIndication splits a dose indication into its numbered or bulleted
// steps. Text without markers is returned as a single step.
func SplitDoseIndication(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var steps []string
	for _, part := range doseMarker.Split(text, -1) {
		if step := strings.TrimSpace(part); step != "" {
			steps = append(steps, step)
		}
	}
	return steps
}
