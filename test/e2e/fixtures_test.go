package e2e

import (
	"testing"

	"github.com/hyperjump/kensaku/internal/importer"
)

func TestWriteDataFile_AllExtensionsImportable(t *testing.T) {
	imp := importer.NewImporter()
	people := BuildCorpus().People[:3]
	for _, ext := range SupportedFileExtensions {
		t.Run(ext, func(t *testing.T) {
			content, err := WriteDataFile(ext, people)
			if err != nil {
				t.Fatalf("WriteDataFile: %v", err)
			}
			rows, err := imp.ImportBytes(content, ext)
			if err != nil {
				t.Fatalf("ImportBytes: %v", err)
			}
			if len(rows) != len(people) {
				t.Fatalf("got %d rows, want %d", len(rows), len(people))
			}
			for i, p := range people {
				if rows[i]["name"] != p.Name || rows[i]["city"] != p.City || rows[i]["company"] != p.Company {
					t.Errorf("row %d = %v, want %+v", i, rows[i], p)
				}
			}
		})
	}
}
