package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// tableRows treats the first row as the header and returns one row per
// following non-empty line. Blank headers become "column_N" (1-based).
func tableRows(table [][]string) []Row {
	if len(table) == 0 {
		return nil
	}
	header := make([]string, len(table[0]))
	for i, h := range table[0] {
		h = strings.TrimSpace(validText(h))
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		header[i] = h
	}
	var rows []Row
	for _, line := range table[1:] {
		row := Row{}
		for i, cell := range line {
			if i >= len(header) || strings.TrimSpace(cell) == "" {
				continue
			}
			row[header[i]] = validText(cell)
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func importCSV(content []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	table, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	return tableRows(table), nil
}

// importExcel reads every sheet; each sheet has its own header row.
func importExcel(content []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var rows []Row
	for _, sheet := range f.GetSheetList() {
		table, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		rows = append(rows, tableRows(table)...)
	}
	return rows, nil
}
