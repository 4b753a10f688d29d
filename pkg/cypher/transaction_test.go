package cypher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adampassword/neorest/pkg/graph"
	"github.com/adampassword/neorest/pkg/neotest"
)

func openTestSession(t *testing.T) (*Session, *neotest.Server) {
	t.Helper()
	srv := neotest.NewServer()
	t.Cleanup(srv.Close)
	session, err := NewSession(context.Background(), srv.URI())
	require.NoError(t, err)
	return session, srv
}

func TestSessionRequiresTransactionEndpoint(t *testing.T) {
	srv := neotest.NewServer(neotest.Legacy())
	t.Cleanup(srv.Close)

	_, err := NewSession(context.Background(), srv.URI())
	assert.ErrorIs(t, err, graph.ErrServerCapability)
}

func TestSessionExecute(t *testing.T) {
	session, _ := openTestSession(t)

	results, err := session.Execute(context.Background(), "RETURN {x}", NewParameters("x", "hello"))
	require.NoError(t, err)
	require.Len(t, results.Records, 1)
	assert.Equal(t, []string{"{x}"}, results.Columns)
	assert.Equal(t, "hello", results.Records[0].Value(0))
}

func TestTransactionCommit(t *testing.T) {
	session, srv := openTestSession(t)
	ctx := context.Background()

	tx, err := session.CreateTransaction()
	require.NoError(t, err)
	assert.False(t, tx.Finished())

	require.NoError(t, tx.Append("RETURN {a}", NewParameters("a", 1)))
	require.NoError(t, tx.Append("RETURN {b}", NewParameters("b", 2)))

	results, err := tx.Commit(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, float64(1), results[0].Records[0].Value(0))
	assert.Equal(t, float64(2), results[1].Records[0].Value(0))
	assert.True(t, tx.Finished())
	assert.Equal(t, int64(0), srv.NodeCount())
}

func TestTransactionExecuteThenCommit(t *testing.T) {
	session, _ := openTestSession(t)
	ctx := context.Background()

	tx, err := session.CreateTransaction()
	require.NoError(t, err)

	require.NoError(t, tx.Append("RETURN {a}", NewParameters("a", "first")))
	results, err := tx.Execute(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "first", results[0].Records[0].Value(0))
	assert.False(t, tx.Finished(), "the transaction stays open after Execute")

	// A second round goes to the transaction resource named by Location.
	require.NoError(t, tx.Append("RETURN {b}", NewParameters("b", "second")))
	results, err = tx.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", results[0].Records[0].Value(0))

	// An empty commit closes it.
	_, err = tx.Commit(ctx)
	require.NoError(t, err)
	assert.True(t, tx.Finished())
}

func TestTransactionRollback(t *testing.T) {
	session, _ := openTestSession(t)
	ctx := context.Background()

	tx, err := session.CreateTransaction()
	require.NoError(t, err)

	// Rolling back before any post never touches the server.
	require.NoError(t, tx.Rollback(ctx))
	assert.True(t, tx.Finished())

	tx, err = session.CreateTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.Append("RETURN {a}", NewParameters("a", 1)))
	_, err = tx.Execute(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.Rollback(ctx))
	assert.True(t, tx.Finished())

	assert.ErrorIs(t, tx.Rollback(ctx), ErrTransactionFinished)
}

func TestTransactionFinishedRejectsUse(t *testing.T) {
	session, _ := openTestSession(t)
	ctx := context.Background()

	tx, err := session.CreateTransaction()
	require.NoError(t, err)
	_, err = tx.Commit(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, tx.Append("RETURN 1", nil), ErrTransactionFinished)
	_, err = tx.Execute(ctx)
	assert.ErrorIs(t, err, ErrTransactionFinished)
	_, err = tx.Commit(ctx)
	assert.ErrorIs(t, err, ErrTransactionFinished)
}

func TestTransactionStatementError(t *testing.T) {
	session, _ := openTestSession(t)
	ctx := context.Background()

	tx, err := session.CreateTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.Append("THIS IS NOT CYPHER", nil))

	_, err = tx.Commit(ctx)
	require.Error(t, err)
	var txErr *TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, "Neo.ClientError.Statement.InvalidSyntax", txErr.Code)
	assert.True(t, tx.Finished())
}

func TestTransactionHydratesEntities(t *testing.T) {
	session, srv := openTestSession(t)
	ctx := context.Background()
	id := srv.SeedNode(map[string]any{"name": "Alice"}, "Person")

	results, err := session.Execute(ctx, "START a=node({a}) RETURN a,labels(a)",
		NewParameters("a", id))
	require.NoError(t, err)
	require.Len(t, results.Records, 1)

	node, ok := results.Records[0].Value(0).(*graph.Node)
	require.True(t, ok, "REST cells hydrate to graph entities")
	name, _ := node.Props().Get("name")
	assert.Equal(t, "Alice", name)
}

func TestTransactionErrorString(t *testing.T) {
	assert.Equal(t, "Neo.ClientError.X: boom",
		(&TransactionError{Code: "Neo.ClientError.X", Message: "boom"}).Error())
	assert.Equal(t, "Neo.ClientError.X",
		(&TransactionError{Code: "Neo.ClientError.X"}).Error())
}
