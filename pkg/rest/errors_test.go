package rest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerException(t *testing.T) {
	tests := []struct {
		name string
		body any
		want *ServerException
	}{
		{
			name: "full payload",
			body: map[string]any{
				"exception":  "NodeNotFoundException",
				"fullname":   "org.neo4j.server.rest.web.NodeNotFoundException",
				"message":    "Cannot find node with id [42]",
				"stacktrace": []any{"frame one", "frame two"},
			},
			want: &ServerException{
				Exception:  "NodeNotFoundException",
				FullName:   "org.neo4j.server.rest.web.NodeNotFoundException",
				Message:    "Cannot find node with id [42]",
				StackTrace: []string{"frame one", "frame two"},
			},
		},
		{
			name: "message only",
			body: map[string]any{"message": "boom"},
			want: &ServerException{Message: "boom"},
		},
		{
			name: "nested cause",
			body: map[string]any{
				"exception": "BatchOperationFailedException",
				"cause":     map[string]any{"exception": "ConstraintViolationException"},
			},
			want: &ServerException{
				Exception: "BatchOperationFailedException",
				Cause:     &ServerException{Exception: "ConstraintViolationException"},
			},
		},
		{name: "not an object", body: "oops"},
		{name: "no exception fields", body: map[string]any{"columns": []any{}}},
		{name: "nil body", body: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseServerException(tt.body))
		})
	}
}

func TestServerExceptionError(t *testing.T) {
	exc := &ServerException{Exception: "NodeNotFoundException", Message: "gone"}
	assert.Equal(t, "NodeNotFoundException: gone", exc.Error())
	assert.Equal(t, "NodeNotFoundException", (&ServerException{Exception: "NodeNotFoundException"}).Error())
}

func TestClientErrorUnwrapsNotFound(t *testing.T) {
	notFound := &ClientError{StatusCode: 404, URI: "http://localhost:7474/db/data/node/42"}
	assert.ErrorIs(t, notFound, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("pull: %w", notFound), ErrNotFound)

	conflict := &ClientError{StatusCode: 409, URI: "http://localhost:7474/db/data/node/42"}
	assert.NotErrorIs(t, conflict, ErrNotFound)
}

func TestStatusCodeHelpers(t *testing.T) {
	client := &ClientError{StatusCode: 409, URI: "u"}
	server := &ServerError{StatusCode: 500, URI: "u"}

	assert.Equal(t, 409, StatusCode(client))
	assert.Equal(t, 500, StatusCode(fmt.Errorf("batch: %w", server)))
	assert.Equal(t, 0, StatusCode(errors.New("plain")))
	assert.Equal(t, 0, StatusCode(nil))

	assert.True(t, IsConflict(client))
	assert.False(t, IsNotFound(client))
	assert.True(t, IsNotFound(&ClientError{StatusCode: 404}))
}

func TestCauseException(t *testing.T) {
	exc := &ServerException{Exception: "SyntaxException"}
	require.Same(t, exc, CauseException(&ClientError{StatusCode: 400, Exception: exc}))
	require.Same(t, exc, CauseException(fmt.Errorf("cypher: %w", &ServerError{StatusCode: 500, Exception: exc})))
	assert.Nil(t, CauseException(errors.New("plain")))
	assert.Nil(t, CauseException(&ClientError{StatusCode: 404}))
}

func TestErrorStrings(t *testing.T) {
	withExc := &ClientError{StatusCode: 404, URI: "http://x/node/1",
		Exception: &ServerException{Exception: "NodeNotFoundException", Message: "gone"}}
	assert.Equal(t, "client error 404 at http://x/node/1: NodeNotFoundException: gone", withExc.Error())
	assert.Equal(t, "client error 404 at http://x/node/1",
		(&ClientError{StatusCode: 404, URI: "http://x/node/1"}).Error())
	assert.Equal(t, "server error 500 at http://x/batch",
		(&ServerError{StatusCode: 500, URI: "http://x/batch"}).Error())
}
