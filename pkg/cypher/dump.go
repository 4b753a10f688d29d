package cypher

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/adampassword/neorest/pkg/graph"
)

// Dump renders a value as a Cypher expression: JSON scalars, bracketed
// collections, and brace-wrapped maps whose keys are backtick-quoted when
// they are not plain identifiers. Graph entities render in pattern notation.
//
//	Dump(map[string]any{"name": "Alice"})  ==  `{name: "Alice"}`
func Dump(value any) string {
	var b strings.Builder
	dumpValue(&b, value)
	return b.String()
}

func dumpValue(b *strings.Builder, value any) {
	switch v := value.(type) {
	case map[string]any:
		dumpMapping(b, v)
	case []any:
		dumpCollection(b, v)
	case *graph.Node, *graph.Rel, *graph.Relationship, *graph.Path, *graph.NodePointer:
		b.WriteString(fmt.Sprintf("%v", v))
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			b.WriteString(fmt.Sprintf("%v", v))
			return
		}
		b.Write(encoded)
	}
}

func dumpMapping(b *strings.Builder, mapping map[string]any) {
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	b.WriteString("{")
	for i, key := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		dumpIdentifier(b, key)
		b.WriteString(": ")
		dumpValue(b, mapping[key])
	}
	b.WriteString("}")
}

func dumpCollection(b *strings.Builder, values []any) {
	b.WriteString("[")
	for i, value := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		dumpValue(b, value)
	}
	b.WriteString("]")
}

func dumpIdentifier(b *strings.Builder, identifier string) {
	if isPlainIdentifier(identifier) {
		b.WriteString(identifier)
		return
	}
	b.WriteString("`")
	b.WriteString(strings.ReplaceAll(identifier, "`", "``"))
	b.WriteString("`")
}

func isPlainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '_':
		default:
			return false
		}
	}
	return true
}
