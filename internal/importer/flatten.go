package importer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// documentRows converts a decoded document into rows. A list yields one row
// per element; a single object yields one row. Nested objects are flattened
// into dotted field names, lists are stored as JSON, and other scalars are
// formatted as text. Nulls are dropped.
func documentRows(doc any) ([]Row, error) {
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case []any:
		rows := make([]Row, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want an object", i, item)
			}
			rows = append(rows, flatten(obj))
		}
		return rows, nil
	case map[string]any:
		return []Row{flatten(v)}, nil
	default:
		return nil, fmt.Errorf("document is %T, want an object or a list of objects", doc)
	}
}

func flatten(obj map[string]any) Row {
	row := Row{}
	flattenInto(row, "", obj)
	return row
}

func flattenInto(row Row, prefix string, obj map[string]any) {
	for k, v := range obj {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(row, name, nested)
			continue
		}
		if s, ok := formatValue(v); ok {
			row[name] = s
		}
	}
}

func formatValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return validText(x), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case time.Time:
		return x.Format(time.RFC3339), true
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x), true
		}
		return string(data), true
	}
}

// validText replaces invalid UTF-8 sequences with the replacement character.
func validText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}
