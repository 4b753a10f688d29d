package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/adampassword/neorest/pkg/rest"
)

// CypherQuery is a reusable Cypher statement bound to a graph's legacy
// cypher endpoint.
//
//	query := graph.NewQuery(g, "START a=node({a}) RETURN a")
//	results, err := query.Execute(ctx, map[string]any{"a": 42})
//
// Execute materializes all rows eagerly; Stream decodes rows one at a time
// from the wire.
type CypherQuery struct {
	g         *Graph
	statement string
}

// NewQuery builds a reusable query over the graph's cypher endpoint.
func NewQuery(g *Graph, statement string) *CypherQuery {
	return &CypherQuery{g: g, statement: statement}
}

// Statement returns the query text.
func (q *CypherQuery) Statement() string { return q.statement }

func (q *CypherQuery) endpoint(ctx context.Context) (*rest.Resource, error) {
	uri, err := q.g.metadataURI(ctx, "cypher")
	if err != nil {
		return nil, err
	}
	return rest.NewResource(uri)
}

func (q *CypherQuery) payload(params map[string]any) map[string]any {
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{"query": q.statement, "params": params}
}

// Run executes the query and discards any results.
func (q *CypherQuery) Run(ctx context.Context, params map[string]any) error {
	res, err := q.endpoint(ctx)
	if err != nil {
		return err
	}
	if _, err := res.Post(ctx, q.payload(params)); err != nil {
		return newCypherError(err)
	}
	return nil
}

// Execute runs the query and materializes all rows.
func (q *CypherQuery) Execute(ctx context.Context, params map[string]any) (*Results, error) {
	res, err := q.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	rs, err := res.Post(ctx, q.payload(params))
	if err != nil {
		return nil, newCypherError(err)
	}
	return q.hydrateResults(rs.Content)
}

// ExecuteOne runs the query and returns the first value of the first row,
// or nil when the result is empty.
func (q *CypherQuery) ExecuteOne(ctx context.Context, params map[string]any) (any, error) {
	results, err := q.Execute(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(results.Records) == 0 {
		return nil, nil
	}
	return results.Records[0].Value(0), nil
}

// Stream runs the query and returns an incrementally decoded result stream.
// The caller must drain or close the stream to release the connection.
func (q *CypherQuery) Stream(ctx context.Context, params map[string]any) (*ResultStream, error) {
	res, err := q.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	body, err := res.GetStream(ctx, http.MethodPost, q.payload(params))
	if err != nil {
		return nil, newCypherError(err)
	}
	stream := &ResultStream{g: q.g, body: body.Body, dec: json.NewDecoder(body.Body)}
	if err := stream.readHeader(); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

func (q *CypherQuery) hydrateResults(content any) (*Results, error) {
	payload, ok := content.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cypher result is %T, not an object", content)
	}
	columns, err := stringList(payload["columns"])
	if err != nil {
		return nil, fmt.Errorf("cypher result columns: %w", err)
	}
	rows, ok := payload["data"].([]any)
	if !ok {
		return nil, fmt.Errorf("cypher result has no data")
	}
	producer := NewRecordProducer(columns)
	results := &Results{Columns: columns, Records: make([]Record, 0, len(rows))}
	for _, row := range rows {
		cells, ok := row.([]any)
		if !ok {
			return nil, fmt.Errorf("cypher result row is %T, not a list", row)
		}
		values := make([]any, len(cells))
		for i, cell := range cells {
			hydrated, err := q.g.Hydrate(cell)
			if err != nil {
				return nil, err
			}
			values[i] = hydrated
		}
		results.Records = append(results.Records, producer.Produce(values))
	}
	return results, nil
}

// Results holds a fully materialized query outcome.
type Results struct {
	Columns []string
	Records []Record
}

// ResultStream decodes result rows incrementally from an open response body.
// Rows hydrate lazily as Next advances; the stream must be closed when
// abandoned early.
type ResultStream struct {
	g    *Graph
	body io.ReadCloser
	dec  *json.Decoder

	producer *RecordProducer
	record   Record
	err      error
	done     bool
}

// readHeader consumes tokens up to the start of the data rows: the opening
// object brace, the "columns" list, and the "data" key with its opening
// bracket. The endpoint emits columns before data.
func (s *ResultStream) readHeader() error {
	if err := s.expectDelim('{'); err != nil {
		return err
	}
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return fmt.Errorf("cypher stream: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("cypher stream: unexpected token %v", tok)
		}
		switch key {
		case "columns":
			var columns []string
			if err := s.dec.Decode(&columns); err != nil {
				return fmt.Errorf("cypher stream: decode columns: %w", err)
			}
			s.producer = NewRecordProducer(columns)
		case "data":
			if s.producer == nil {
				return fmt.Errorf("cypher stream: data before columns")
			}
			return s.expectDelim('[')
		default:
			// Skip unknown values wholesale.
			var discard any
			if err := s.dec.Decode(&discard); err != nil {
				return fmt.Errorf("cypher stream: %w", err)
			}
		}
	}
}

func (s *ResultStream) expectDelim(d json.Delim) error {
	tok, err := s.dec.Token()
	if err != nil {
		return fmt.Errorf("cypher stream: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != d {
		return fmt.Errorf("cypher stream: expected %q, got %v", d, tok)
	}
	return nil
}

// Columns returns the column names of the streamed result.
func (s *ResultStream) Columns() []string {
	if s.producer == nil {
		return nil
	}
	return s.producer.Columns()
}

// Next advances to the next row, reporting false at end of data or on error.
func (s *ResultStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	if !s.dec.More() {
		s.finish()
		return false
	}
	var cells []any
	if err := s.dec.Decode(&cells); err != nil {
		s.fail(fmt.Errorf("cypher stream: decode row: %w", err))
		return false
	}
	values := make([]any, len(cells))
	for i, cell := range cells {
		hydrated, err := s.g.Hydrate(cell)
		if err != nil {
			s.fail(err)
			return false
		}
		values[i] = hydrated
	}
	s.record = s.producer.Produce(values)
	return true
}

// Record returns the row Next advanced to.
func (s *ResultStream) Record() Record { return s.record }

// Err returns the first error encountered while streaming.
func (s *ResultStream) Err() error { return s.err }

func (s *ResultStream) finish() {
	s.done = true
	s.body.Close()
}

func (s *ResultStream) fail(err error) {
	s.err = err
	s.done = true
	s.body.Close()
}

// Close releases the underlying connection. Safe to call at any point and
// more than once.
func (s *ResultStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.body.Close()
}
