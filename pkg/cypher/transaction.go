package cypher

import (
	"context"
	"errors"
	"fmt"

	"github.com/adampassword/neorest/pkg/graph"
	"github.com/adampassword/neorest/pkg/rest"
)

// ErrTransactionFinished rejects operations on a committed or rolled back
// transaction.
var ErrTransactionFinished = errors.New("transaction finished")

// TransactionError reports a statement failure inside a transaction, carrying
// the server's status code string such as
// "Neo.ClientError.Statement.InvalidSyntax".
type TransactionError struct {
	Code    string
	Message string
}

func (e *TransactionError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// statement is one queued entry of a transaction post. Member order on the
// wire follows field order here; the statement text precedes its parameters.
type statement struct {
	Statement          string      `json:"statement"`
	Parameters         *Parameters `json:"parameters"`
	ResultDataContents []string    `json:"resultDataContents"`
}

// Transaction batches Cypher statements into a single server transaction.
// Statements accumulate locally until Execute or Commit posts them; the
// transaction stays open across Execute rounds and finishes on Commit or
// Rollback.
//
//	tx, _ := session.CreateTransaction()
//	tx.Append("CREATE (a {name:{n}}) RETURN a", cypher.NewParameters("n", "Alice"))
//	results, err := tx.Commit(ctx)
type Transaction struct {
	g           *graph.Graph
	begin       *rest.Resource
	beginCommit *rest.Resource
	execute     *rest.Resource
	commit      *rest.Resource

	statements []statement
	finished   bool
}

func newTransaction(g *graph.Graph, uri string) (*Transaction, error) {
	begin, err := rest.NewResource(uri)
	if err != nil {
		return nil, err
	}
	beginCommit, err := rest.NewResource(uri + "/commit")
	if err != nil {
		return nil, err
	}
	return &Transaction{g: g, begin: begin, beginCommit: beginCommit}, nil
}

// Finished reports whether the transaction has been committed or rolled back.
func (t *Transaction) Finished() bool { return t.finished }

// Append queues a statement for the next Execute or Commit.
func (t *Transaction) Append(text string, params *Parameters) error {
	if t.finished {
		return ErrTransactionFinished
	}
	if params == nil {
		params = NewParameters()
	}
	t.statements = append(t.statements, statement{
		Statement:          text,
		Parameters:         params,
		ResultDataContents: []string{"REST"},
	})
	return nil
}

// Execute posts all queued statements, leaving the transaction open. The
// first post goes to the begin URI; the server's Location header names the
// transaction resource used by subsequent rounds.
func (t *Transaction) Execute(ctx context.Context) ([]*graph.Results, error) {
	target := t.begin
	if t.execute != nil {
		target = t.execute
	}
	return t.post(ctx, target)
}

// Commit posts all queued statements and commits. The transaction finishes
// whether or not the post succeeds.
func (t *Transaction) Commit(ctx context.Context) ([]*graph.Results, error) {
	target := t.beginCommit
	if t.commit != nil {
		target = t.commit
	}
	defer func() { t.finished = true }()
	return t.post(ctx, target)
}

// Rollback discards the open transaction.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.finished {
		return ErrTransactionFinished
	}
	t.finished = true
	if t.execute == nil {
		return nil
	}
	if _, err := t.execute.Delete(ctx); err != nil {
		return err
	}
	return nil
}

func (t *Transaction) post(ctx context.Context, target *rest.Resource) ([]*graph.Results, error) {
	if t.finished {
		return nil, ErrTransactionFinished
	}
	rs, err := target.Post(ctx, map[string]any{"statements": t.statements})
	if err != nil {
		return nil, err
	}
	t.statements = nil
	if location := rs.Location(); location != "" {
		execute, err := rest.NewResource(location)
		if err != nil {
			return nil, err
		}
		t.execute = execute
	}
	payload, ok := rs.Content.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("transaction response is %T, not an object", rs.Content)
	}
	if commitURI, ok := payload["commit"].(string); ok {
		commit, err := rest.NewResource(commitURI)
		if err != nil {
			return nil, err
		}
		t.commit = commit
	}
	if txErr := firstError(payload); txErr != nil {
		return nil, txErr
	}
	return t.decodeResults(payload)
}

func firstError(payload map[string]any) error {
	errorsList, ok := payload["errors"].([]any)
	if !ok || len(errorsList) == 0 {
		return nil
	}
	entry, ok := errorsList[0].(map[string]any)
	if !ok {
		return &TransactionError{Code: "Neo.DatabaseError.General.UnknownFailure"}
	}
	code, _ := entry["code"].(string)
	message, _ := entry["message"].(string)
	return &TransactionError{Code: code, Message: message}
}

func (t *Transaction) decodeResults(payload map[string]any) ([]*graph.Results, error) {
	resultsList, ok := payload["results"].([]any)
	if !ok {
		return nil, fmt.Errorf("transaction response has no results")
	}
	out := make([]*graph.Results, 0, len(resultsList))
	for _, item := range resultsList {
		result, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("transaction result is %T, not an object", item)
		}
		columns, err := columnNames(result["columns"])
		if err != nil {
			return nil, err
		}
		producer := graph.NewRecordProducer(columns)
		rows, _ := result["data"].([]any)
		decoded := &graph.Results{Columns: columns, Records: make([]graph.Record, 0, len(rows))}
		for _, row := range rows {
			entry, ok := row.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("transaction row is %T, not an object", row)
			}
			cells, ok := entry["rest"].([]any)
			if !ok {
				return nil, fmt.Errorf("transaction row lacks a rest representation")
			}
			values := make([]any, len(cells))
			for i, cell := range cells {
				hydrated, err := t.g.Hydrate(cell)
				if err != nil {
					return nil, err
				}
				values[i] = hydrated
			}
			decoded.Records = append(decoded.Records, producer.Produce(values))
		}
		out = append(out, decoded)
	}
	return out, nil
}

func columnNames(value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("transaction result has no columns")
	}
	columns := make([]string, len(items))
	for i, item := range items {
		name, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("transaction column %d is %T, not a string", i, item)
		}
		columns[i] = name
	}
	return columns, nil
}
