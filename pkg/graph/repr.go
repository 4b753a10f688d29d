package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const safeIdentifierChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_"

func isSafeIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !strings.ContainsRune(safeIdentifierChars, ch) {
			return false
		}
	}
	return true
}

func escapeBackticks(s string) string {
	return strings.ReplaceAll(s, "`", "``")
}

// cypherWriter renders entities in Cypher pattern notation, the same notation
// Dump and the String methods produce:
//
//	({name:"Alice"})-[:KNOWS]->({name:"Bob"})
type cypherWriter struct {
	buf strings.Builder
}

func (w *cypherWriter) String() string { return w.buf.String() }

func (w *cypherWriter) writeValue(value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		w.buf.WriteString(fmt.Sprintf("%v", value))
		return
	}
	w.buf.Write(encoded)
}

func (w *cypherWriter) writeIdentifier(identifier string) {
	if isSafeIdentifier(identifier) {
		w.buf.WriteString(identifier)
		return
	}
	w.buf.WriteString("`")
	w.buf.WriteString(escapeBackticks(identifier))
	w.buf.WriteString("`")
}

func (w *cypherWriter) writeCollection(values []any) {
	w.buf.WriteString("[")
	for i, value := range values {
		if i > 0 {
			w.buf.WriteString(",")
		}
		w.write(value)
	}
	w.buf.WriteString("]")
}

func (w *cypherWriter) writeMapping(values map[string]any) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	w.buf.WriteString("{")
	for i, key := range keys {
		if i > 0 {
			w.buf.WriteString(",")
		}
		w.writeIdentifier(key)
		w.buf.WriteString(":")
		w.write(values[key])
	}
	w.buf.WriteString("}")
}

func (w *cypherWriter) writeNode(ref NodeRef, name string) {
	w.buf.WriteString("(")
	if name != "" {
		w.writeIdentifier(name)
	}
	if node, ok := ref.(*Node); ok && node != nil {
		for _, label := range node.labels.Values() {
			w.buf.WriteString(":")
			w.writeIdentifier(label)
		}
		if node.props.Len() > 0 {
			if name != "" || node.labels.Len() > 0 {
				w.buf.WriteString(" ")
			}
			w.writeMapping(node.props.Map())
		}
	} else if ptr, ok := ref.(*NodePointer); ok && ptr != nil {
		w.buf.WriteString(ptr.String())
	}
	w.buf.WriteString(")")
}

func (w *cypherWriter) writeRel(rel *Rel, name string) {
	if rel.IsReversed() {
		w.buf.WriteString("<-[")
	} else {
		w.buf.WriteString("-[")
	}
	if name != "" {
		w.writeIdentifier(name)
	}
	w.buf.WriteString(":")
	w.writeIdentifier(rel.Type())
	if rel.Props().Len() > 0 {
		w.buf.WriteString(" ")
		w.writeMapping(rel.Props().Map())
	}
	if rel.IsReversed() {
		w.buf.WriteString("]-")
	} else {
		w.buf.WriteString("]->")
	}
}

func (w *cypherWriter) writePath(p *Path) {
	w.writeNode(p.nodes[0], "")
	for i, rel := range p.rels {
		w.writeRel(rel, "")
		w.writeNode(p.nodes[i+1], "")
	}
}

func (w *cypherWriter) writeRelationship(r *Relationship, name string) {
	w.writeNode(r.StartNode(), "")
	w.writeRel(r.rel, name)
	w.writeNode(r.EndNode(), "")
}

func (w *cypherWriter) write(obj any) {
	switch value := obj.(type) {
	case nil:
	case *Node:
		w.writeNode(value, "")
	case *NodePointer:
		w.writeNode(value, "")
	case *Rel:
		w.writeRel(value, "")
	case *Relationship:
		w.writeRelationship(value, "")
	case *Path:
		w.writePath(value)
	case []any:
		w.writeCollection(value)
	case map[string]any:
		w.writeMapping(value)
	default:
		w.writeValue(value)
	}
}
