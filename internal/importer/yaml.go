package importer

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func importYAML(content []byte) ([]Row, error) {
	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return documentRows(doc)
}
