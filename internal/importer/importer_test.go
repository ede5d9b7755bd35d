package importer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestImportBytes_json(t *testing.T) {
	im := NewImporter()
	content := []byte(`[
		{"name": "John Smith", "age": 42, "active": true, "address": {"city": "Osaka", "zip": "530"}, "tags": ["a", "b"], "note": null},
		{"name": "Mary", "score": 1.5}
	]`)
	rows, err := im.ImportBytes(content, ".json")
	if err != nil {
		t.Fatalf("ImportBytes: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	want := Row{
		"name":         "John Smith",
		"age":          "42",
		"active":       "true",
		"address.city": "Osaka",
		"address.zip":  "530",
		"tags":         `["a","b"]`,
	}
	for k, v := range want {
		if rows[0][k] != v {
			t.Errorf("row[%q] = %q, want %q", k, rows[0][k], v)
		}
	}
	if _, ok := rows[0]["note"]; ok {
		t.Error("null values should be dropped")
	}
	if rows[1]["score"] != "1.5" {
		t.Errorf("score = %q", rows[1]["score"])
	}
}

func TestImportBytes_jsonSingleObject(t *testing.T) {
	rows, err := NewImporter().ImportBytes([]byte("\xEF\xBB\xBF{\"name\": \"solo\"}"), ".JSON")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["name"] != "solo" {
		t.Errorf("rows = %v", rows)
	}
}

func TestImportBytes_jsonInvalid(t *testing.T) {
	tests := []string{`{`, `[1, 2]`, `"text"`}
	for _, content := range tests {
		if _, err := NewImporter().ImportBytes([]byte(content), ".json"); err == nil {
			t.Errorf("expected error for %s", content)
		}
	}
}

func TestImportBytes_yaml(t *testing.T) {
	content := []byte(`
- name: John Smith
  age: 42
  ratio: 0.25
  address:
    city: Osaka
- name: Mary
`)
	rows, err := NewImporter().ImportBytes(content, ".yml")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0]["age"] != "42" || rows[0]["ratio"] != "0.25" || rows[0]["address.city"] != "Osaka" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestImportBytes_csv(t *testing.T) {
	content := []byte("name,city,\nJohn Smith,Osaka,x\n,,\n\"Mary, Jr\",Kyoto\n")
	rows, err := NewImporter().ImportBytes(content, ".csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows: %v", len(rows), rows)
	}
	if rows[0]["name"] != "John Smith" || rows[0]["column_3"] != "x" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["name"] != "Mary, Jr" || rows[1]["city"] != "Kyoto" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestImportBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Name")
	f.SetCellValue("Sheet1", "B1", "City")
	f.SetCellValue("Sheet1", "A2", "John Smith")
	f.SetCellValue("Sheet1", "B2", "Osaka")
	if _, err := f.NewSheet("Pets"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Pets", "A1", "Pet")
	f.SetCellValue("Pets", "A2", "Rex")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	rows, err := NewImporter().ImportBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ImportBytes: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows: %v", len(rows), rows)
	}
	if rows[0]["Name"] != "John Smith" || rows[0]["City"] != "Osaka" || rows[1]["Pet"] != "Rex" {
		t.Errorf("rows = %v", rows)
	}
}

func TestImport_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	if err := os.WriteFile(path, []byte("name\nAnn\n"), 0600); err != nil {
		t.Fatal(err)
	}
	rows, err := NewImporter().Import(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Ann" {
		t.Errorf("rows = %v", rows)
	}
	if _, err := NewImporter().Import(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestImportBytes_unsupported(t *testing.T) {
	im := NewImporter()
	if _, err := im.ImportBytes([]byte("x"), ".pdf"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if !im.Supports(".YAML") || im.Supports(".txt") {
		t.Error("Supports returned unexpected result")
	}
}

func TestValidText(t *testing.T) {
	if got := validText("hello\x80world"); got != "hello\uFFFDworld" {
		t.Errorf("got %q", got)
	}
}
