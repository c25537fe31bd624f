package catalogparser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/giygas/medisearch/entities"
	"github.com/giygas/medisearch/logging"
)

// Format is a seed file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTSV  Format = "tsv"
)

// DetectFormat picks the format from the extension of a path or URL path
func DetectFormat(name string) (Format, error) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".tsv", ".txt":
		return FormatTSV, nil
	default:
		return "", fmt.Errorf("unsupported seed format %q", path.Ext(name))
	}
}

func decode(format Format, body []byte) ([]entities.MedicineRecord, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(body)
	case FormatYAML:
		return decodeYAML(body)
	case FormatTSV:
		return decodeTSV(body)
	default:
		return nil, fmt.Errorf("unsupported seed format %q", format)
	}
}

func decodeJSON(body []byte) ([]entities.MedicineRecord, error) {
	var records []entities.MedicineRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode JSON seed: %w", err)
	}
	return records, nil
}

func decodeYAML(body []byte) ([]entities.MedicineRecord, error) {
	var records []entities.MedicineRecord
	if err := yaml.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode YAML seed: %w", err)
	}
	return records, nil
}

// tsvColumns is the minimum column count: id, name, brand, composition,
// description, dose indication. The seventh column (image) is optional.
const tsvColumns = 6

func decodeTSV(body []byte) ([]entities.MedicineRecord, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1*1024*1024)

	var records []entities.MedicineRecord
	lineCount := 0
	skippedEmptyLines := 0
	skippedMissingColumns := 0

	for scanner.Scan() {
		lineCount++
		line := strings.TrimRight(scanner.Text(), "\r")

		// Skip empty lines silently
		if strings.TrimSpace(line) == "" {
			skippedEmptyLines++
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < tsvColumns {
			skippedMissingColumns++
			continue
		}

		record := entities.MedicineRecord{
			ID:             strings.TrimSpace(fields[0]),
			Name:           strings.TrimSpace(fields[1]),
			Brand:          strings.TrimSpace(fields[2]),
			Composition:    fields[3],
			Description:    fields[4],
			DoseIndication: fields[5],
		}
		if len(fields) > tsvColumns {
			record.Image = strings.TrimSpace(fields[6])
		}

		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error in TSV seed: %w", err)
	}

	// Log skip statistics if any lines were skipped
	if skippedEmptyLines > 0 || skippedMissingColumns > 0 {
		logging.Info("TSV seed skip statistics",
			"empty_lines", skippedEmptyLines,
			"missing_columns", skippedMissingColumns,
			"total_lines", lineCount,
			"records_parsed", len(records))
	}

	return records, nil
}
