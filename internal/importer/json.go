package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func importJSON(content []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return documentRows(doc)
}
