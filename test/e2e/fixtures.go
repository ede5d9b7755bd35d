// Package e2e provides end-to-end tests; this file writes data files for every importable type.
package e2e

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// SupportedFileExtensions is the list of file extensions used in E2E file-based tests.
var SupportedFileExtensions = []string{".json", ".yaml", ".csv", ".xlsx"}

var fixtureHeader = []string{"name", "city", "company"}

// WriteDataFile returns the bytes of a file of the given extension holding
// one row per person, in order.
func WriteDataFile(ext string, people []Person) ([]byte, error) {
	switch ext {
	case ".json":
		return json.Marshal(fixtureRows(people))
	case ".yaml", ".yml":
		return yaml.Marshal(fixtureRows(people))
	case ".csv":
		return csvFile(people)
	case ".xlsx":
		return xlsxFile(people)
	default:
		return nil, fmt.Errorf("no fixture for %q", ext)
	}
}

func fixtureRows(people []Person) []map[string]string {
	rows := make([]map[string]string, len(people))
	for i, p := range people {
		rows[i] = p.Fields()
	}
	return rows
}

func csvFile(people []Person) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(fixtureHeader)
	for _, p := range people {
		_ = w.Write([]string{p.Name, p.City, p.Company})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func xlsxFile(people []Person) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow("Sheet1", "A1", &fixtureHeader); err != nil {
		return nil, err
	}
	for i, p := range people {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []string{p.Name, p.City, p.Company}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
