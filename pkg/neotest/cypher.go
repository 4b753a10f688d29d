package neotest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// queryError carries a statement failure in both wire vocabularies: the
// legacy exception name and the transactional status code.
type queryError struct {
	Exception string
	Code      string
	Message   string
}

func syntaxError(query string) *queryError {
	return &queryError{
		Exception: "SyntaxException",
		Code:      "Neo.ClientError.Statement.InvalidSyntax",
		Message:   fmt.Sprintf("query not supported by fake server: %s", query),
	}
}

func entityNotFound(message string) *queryError {
	return &queryError{
		Exception: "EntityNotFoundException",
		Code:      "Neo.ClientError.Statement.EntityNotFound",
		Message:   message,
	}
}

var (
	countNodesRE  = regexp.MustCompile(`^START n=node\(\*\) RETURN count\(n\)$`)
	countRelsRE   = regexp.MustCompile(`^START r=rel\(\*\) RETURN count\(r\)$`)
	pullNodeRE    = regexp.MustCompile(`^START a=node\(\{(\w+)\}\) RETURN a,labels\(a\)$`)
	deleteRelsRE  = regexp.MustCompile(`^START r=rel\(\*\) DELETE r$`)
	deleteNodesRE = regexp.MustCompile(`^START n=node\(\*\) DELETE n$`)
	isolateRE     = regexp.MustCompile(`^START a=node\(\{(\w+)\}\) MATCH \(a\)-\[r\]-\(b\) DELETE r$`)
	relatedRE     = regexp.MustCompile(`^START a=node\(\{(\w+)\}\) MATCH \(a\)-\[rels\*0\.\.\]-\(z\) FOREACH\(r IN rels\| DELETE r\) DELETE a, z$`)
	matchRE       = regexp.MustCompile(`^START (.+?) MATCH \(a\)-\[r([^\]]*)\](->|-)\(b\) RETURN r(?: LIMIT (\d+))?$`)
	createPathRE  = regexp.MustCompile(`^(?:START (.+?) )?CREATE( UNIQUE)? p=(.+) RETURN p$`)
	returnParamRE = regexp.MustCompile(`^RETURN \{\w+\}(?:,\{\w+\})*$`)
	pathNodeRE    = regexp.MustCompile("^\\((n\\d+)(?: \\{(\\w+)\\})?\\)")
	pathRelRE     = regexp.MustCompile("^(<-|-)\\[r\\d+:`((?:[^`]|``)+)`(?: \\{(\\w+)\\})?\\](->|-)")
)

// runCypher evaluates the query shapes this library's client generates
// against the store. Anything else reports a syntax error, mirrored in both
// error vocabularies.
func (s *Server) runCypher(query string, params map[string]any) ([]string, [][]any, *queryError) {
	query = strings.TrimSpace(query)

	switch {
	case countNodesRE.MatchString(query):
		return []string{"count(n)"}, [][]any{{s.store.order()}}, nil
	case countRelsRE.MatchString(query):
		return []string{"count(r)"}, [][]any{{s.store.size()}}, nil
	case deleteRelsRE.MatchString(query):
		s.store.clearRels()
		return nil, nil, nil
	case deleteNodesRE.MatchString(query):
		s.store.clearNodes()
		return nil, nil, nil
	}

	if m := pullNodeRE.FindStringSubmatch(query); m != nil {
		id, qerr := paramID(params, m[1])
		if qerr != nil {
			return nil, nil, qerr
		}
		node, err := s.store.node(id)
		if err != nil {
			return nil, nil, entityNotFound(fmt.Sprintf("Node with id %d", id))
		}
		return []string{"a", "labels(a)"}, [][]any{{s.pay.node(node), s.pay.labels(node)}}, nil
	}

	if m := isolateRE.FindStringSubmatch(query); m != nil {
		id, qerr := paramID(params, m[1])
		if qerr != nil {
			return nil, nil, qerr
		}
		for _, rel := range s.store.relsOf(id) {
			s.store.deleteRel(rel.ID)
		}
		return nil, nil, nil
	}

	if m := relatedRE.FindStringSubmatch(query); m != nil {
		id, qerr := paramID(params, m[1])
		if qerr != nil {
			return nil, nil, qerr
		}
		s.store.deleteRelated(id)
		return nil, nil, nil
	}

	if m := matchRE.FindStringSubmatch(query); m != nil {
		return s.runMatch(m, params)
	}

	if m := createPathRE.FindStringSubmatch(query); m != nil {
		return s.runCreatePath(m, params)
	}

	if returnParamRE.MatchString(query) {
		tokens := strings.Split(strings.TrimPrefix(query, "RETURN "), ",")
		row := make([]any, len(tokens))
		for i, token := range tokens {
			key := strings.Trim(token, "{}")
			row[i] = params[key]
		}
		return tokens, [][]any{row}, nil
	}

	return nil, nil, syntaxError(query)
}

func paramID(params map[string]any, key string) (int64, *queryError) {
	value, ok := params[key]
	if !ok {
		return 0, &queryError{
			Exception: "ParameterNotFoundException",
			Code:      "Neo.ClientError.Statement.ParameterMissing",
			Message:   fmt.Sprintf("parameter %q missing", key),
		}
	}
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, &queryError{
			Exception: "InvalidArgumentException",
			Code:      "Neo.ClientError.Statement.InvalidType",
			Message:   fmt.Sprintf("parameter %q is not an id", key),
		}
	}
}

func (s *Server) runMatch(m []string, params map[string]any) ([]string, [][]any, *queryError) {
	var start, end *int64
	for _, clause := range strings.Split(m[1], ",") {
		switch {
		case clause == "a=node(*)":
		case clause == "a=node({A})":
			id, qerr := paramID(params, "A")
			if qerr != nil {
				return nil, nil, qerr
			}
			start = &id
		case clause == "b=node({B})":
			id, qerr := paramID(params, "B")
			if qerr != nil {
				return nil, nil, qerr
			}
			end = &id
		default:
			return nil, nil, syntaxError(clause)
		}
	}

	var types []string
	if typeClause := m[2]; typeClause != "" {
		typeClause = strings.TrimPrefix(typeClause, ":")
		typeClause = strings.ReplaceAll(typeClause, "|:", "|")
		for _, name := range strings.Split(typeClause, "|") {
			types = append(types, strings.Trim(name, "`"))
		}
	}
	bidirectional := m[3] == "-"

	limit := 0
	if m[4] != "" {
		limit, _ = strconv.Atoi(m[4])
	}

	rows := [][]any{}
	for _, rel := range s.store.matchRels(start, end, types, bidirectional, limit) {
		rows = append(rows, []any{s.pay.rel(rel)})
	}
	return []string{"r"}, rows, nil
}

// runCreatePath materializes a CREATE p=... pattern. CREATE UNIQUE behaves
// like CREATE here; the fake does not deduplicate existing segments.
func (s *Server) runCreatePath(m []string, params map[string]any) ([]string, [][]any, *queryError) {
	anchors := map[string]int64{}
	if m[1] != "" {
		for _, clause := range strings.Split(m[1], ",") {
			name, paramRef, ok := strings.Cut(clause, "=node({")
			if !ok {
				return nil, nil, syntaxError(clause)
			}
			id, qerr := paramID(params, strings.TrimSuffix(paramRef, "})"))
			if qerr != nil {
				return nil, nil, qerr
			}
			if _, err := s.store.node(id); err != nil {
				return nil, nil, entityNotFound(fmt.Sprintf("Node with id %d", id))
			}
			anchors[name] = id
		}
	}

	pattern := m[3]
	var nodeIDs []int64
	var relIDs []int64
	type pendingRel struct {
		relType  string
		props    map[string]any
		reversed bool
	}
	var pending *pendingRel

	resolveNode := func(name, propParam string) (int64, *queryError) {
		if id, ok := anchors[name]; ok {
			return id, nil
		}
		props := map[string]any{}
		if propParam != "" {
			if p, ok := params[propParam].(map[string]any); ok {
				props = p
			}
		}
		return s.store.createNode(props).ID, nil
	}

	for len(pattern) > 0 {
		if nm := pathNodeRE.FindStringSubmatch(pattern); nm != nil {
			id, qerr := resolveNode(nm[1], nm[2])
			if qerr != nil {
				return nil, nil, qerr
			}
			nodeIDs = append(nodeIDs, id)
			if pending != nil {
				startID, endID := nodeIDs[len(nodeIDs)-2], id
				if pending.reversed {
					startID, endID = endID, startID
				}
				rel, err := s.store.createRel(startID, endID, pending.relType, pending.props)
				if err != nil {
					return nil, nil, entityNotFound("relationship end point")
				}
				relIDs = append(relIDs, rel.ID)
				pending = nil
			}
			pattern = pattern[len(nm[0]):]
			continue
		}
		if rm := pathRelRE.FindStringSubmatch(pattern); rm != nil {
			props := map[string]any{}
			if rm[3] != "" {
				if p, ok := params[rm[3]].(map[string]any); ok {
					props = p
				}
			}
			pending = &pendingRel{
				relType:  strings.ReplaceAll(rm[2], "``", "`"),
				props:    props,
				reversed: rm[1] == "<-",
			}
			pattern = pattern[len(rm[0]):]
			continue
		}
		return nil, nil, syntaxError(pattern)
	}
	if len(nodeIDs) == 0 || pending != nil {
		return nil, nil, syntaxError(m[3])
	}

	return []string{"p"}, [][]any{{s.pay.path(nodeIDs, relIDs)}}, nil
}
