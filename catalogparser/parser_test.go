package catalogparser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/logging"
)

func TestMain(m *testing.M) {
	logging.InitLogger("")
	os.Exit(m.Run())
}

const jsonSeed = `[
  {"id": "m1", "name": "Paracetamol", "Brand": "Doliprane", "Composition": "Paracetamol 500mg", "description": "Pain relief", "Dose_Indication": "1. Adults: 1 tablet 2. Children: half"},
  {"id": "m2", "name": "Ibuprofen", "Brand": "Advil", "name_lowercase": "wrong"},
  {"id": "m1", "name": "Duplicate", "Brand": "Doliprane"},
  {"id": "", "name": "No id"},
  {"id": "m3", "name": ""}
]`

const yamlSeed = `
- id: y1
  name: Aspirin
  brand: Bayer
  dose_indication: With water
- id: y2
  name: Dafalgan
  brand: Paralab
  image: https://example.com/dafalgan.png
`

const tsvSeed = "t1\tParacetamol\tDoliprane\tParacetamol\tPain\t1 tablet\n" +
	"\n" +
	"t2\tIbuprofen\tAdvil\tIbuprofen\tInflammation\t2 tablets\thttps://example.com/advil.png\n" +
	"t3\tshort line\n"

func writeSeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write seed: %v", err)
	}
	return path
}

func TestLoadCatalogJSON(t *testing.T) {
	parser, err := NewParser(writeSeed(t, "catalog.json", jsonSeed))
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}

	records, report, err := parser.LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(records), records)
	}
	if records[0].ID != "m1" || records[0].Name != "Paracetamol" {
		t.Errorf("Expected the first m1 record to win, got %+v", records[0])
	}
	if records[0].NameLowercase != "paracetamol" || records[0].BrandLowercase != "doliprane" {
		t.Errorf("Lowercase fields not filled: %+v", records[0])
	}
	if records[1].NameLowercase != "ibuprofen" {
		t.Errorf("Mismatched lowercase field should be recomputed, got %q", records[1].NameLowercase)
	}
	if records[0].DoseIndication == "" {
		t.Error("Dose indication should be decoded from Dose_Indication")
	}

	if report == nil {
		t.Fatal("Expected a quality report")
	}
	if len(report.DuplicateIDs) != 1 || report.DuplicateIDs[0] != "m1" {
		t.Errorf("Expected duplicate m1 in report, got %v", report.DuplicateIDs)
	}
	if report.RecordsWithoutName != 1 {
		t.Errorf("Expected 1 record without name, got %d", report.RecordsWithoutName)
	}
}

func TestLoadCatalogYAML(t *testing.T) {
	parser, err := NewParser(writeSeed(t, "catalog.yml", yamlSeed))
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}

	records, _, err := parser.LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Brand != "Bayer" || records[0].BrandLowercase != "bayer" {
		t.Errorf("Unexpected brand fields %+v", records[0])
	}
	if records[1].Image != "https://example.com/dafalgan.png" {
		t.Errorf("Expected image to be decoded, got %q", records[1].Image)
	}
}

func TestLoadCatalogTSV(t *testing.T) {
	parser, err := NewParser(writeSeed(t, "catalog.tsv", tsvSeed))
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}

	records, _, err := parser.LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records (blank and short lines skipped), got %d", len(records))
	}
	if records[1].Image != "https://example.com/advil.png" {
		t.Errorf("Expected optional image column, got %q", records[1].Image)
	}
	if records[0].Image != "" {
		t.Errorf("Expected no image, got %q", records[0].Image)
	}
}

func TestLoadCatalogDownloadsLatin1(t *testing.T) {
	// "Éfferalgan" encoded as ISO-8859-1
	latin1 := "l1\t\xc9fferalgan\tUPSA\tParacetamol\tPain\t1 tablet\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(latin1))
	}))
	defer server.Close()

	parser, err := NewParser(server.URL+"/catalog.txt", WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}

	records, _, err := parser.LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Name != "Éfferalgan" || records[0].NameLowercase != "éfferalgan" {
		t.Errorf("Expected decoded name, got %q / %q", records[0].Name, records[0].NameLowercase)
	}
}

func TestLoadCatalogDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	parser, err := NewParser(server.URL+"/catalog.json", WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}

	if _, _, err := parser.LoadCatalog(context.Background()); err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestLoadCatalogErrors(t *testing.T) {
	missing, err := NewParser(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}
	if _, _, err := missing.LoadCatalog(context.Background()); err == nil {
		t.Error("Expected error for a missing seed")
	}

	broken, err := NewParser(writeSeed(t, "broken.json", "{not json"))
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}
	if _, _, err := broken.LoadCatalog(context.Background()); err == nil {
		t.Error("Expected error for a malformed seed")
	}

	if _, err := NewParser("catalog.csv"); err == nil {
		t.Error("Expected error for an unsupported extension")
	}

	forced, err := NewParser(writeSeed(t, "catalog.data", tsvSeed), WithFormat(FormatTSV))
	if err != nil {
		t.Fatalf("NewParser with forced format failed: %v", err)
	}
	if records, _, err := forced.LoadCatalog(context.Background()); err != nil || len(records) != 2 {
		t.Errorf("Expected 2 records with forced format, got %d (%v)", len(records), err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		expected Format
		wantErr  bool
	}{
		{"files/catalog.json", FormatJSON, false},
		{"CATALOG.JSON", FormatJSON, false},
		{"seed.yaml", FormatYAML, false},
		{"seed.yml", FormatYAML, false},
		{"seed.tsv", FormatTSV, false},
		{"https://example.com/export/seed.txt?token=abc", FormatTSV, false},
		{"seed.csv", "", true},
		{"seed", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectFormat(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("DetectFormat(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	raw := []entities.MedicineRecord{
		{ID: " a ", Name: "Alpha", Brand: "X"},
		{ID: "a/b", Name: "Slash"},
		{ID: "..", Name: "Dots"},
		{ID: "b", Name: "   "},
		{ID: "a", Name: "Shadowed"},
		{ID: "c", Name: "Gamma"},
	}

	got := Prepare(raw)
	if len(got) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(got), got)
	}
	if got[0].ID != "a" || got[0].Name != "Alpha" || got[0].BrandLowercase != "x" {
		t.Errorf("Unexpected first record %+v", got[0])
	}
	if got[1].ID != "c" || got[1].BrandLowercase != "" {
		t.Errorf("Unexpected second record %+v", got[1])
	}
}
