package graph

import (
	"errors"
	"fmt"

	"github.com/adampassword/neorest/pkg/rest"
)

// Errors for graph operations.
var (
	// ErrUnbound reports an operation that requires a remote resource being
	// attempted on a local-only entity.
	ErrUnbound = errors.New("local entity is not bound to a remote resource")

	// ErrServerCapability reports a feature that this server version does not
	// provide (for example label support on pre-2.0 servers).
	ErrServerCapability = errors.New("not supported by this server version")

	// ErrInvalidPropertyValue reports a property assignment outside the
	// supported value space (scalars and homogeneous flat lists).
	ErrInvalidPropertyValue = errors.New("invalid property value")

	// ErrInvalidCast reports an argument that cannot be converted to the
	// requested entity kind.
	ErrInvalidCast = errors.New("cannot cast")
)

// UnjoinableError reports a structural incompatibility while merging path
// fragments; Position names the offending argument when the failure occurs
// during path construction.
type UnjoinableError struct {
	Position int // argument index, or -1 when not positional
	Reason   string
}

func (e *UnjoinableError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("entity at position %d cannot be joined: %s", e.Position, e.Reason)
	}
	return "cannot join: " + e.Reason
}

// IsUnjoinable reports whether err is an UnjoinableError.
func IsUnjoinable(err error) bool {
	var ue *UnjoinableError
	return errors.As(err, &ue)
}

// BatchError is a server-side fault raised while decoding a batch or
// hydration payload. Name carries the remote exception class so that callers
// can distinguish faults by kind.
type BatchError struct {
	Name      string
	Message   string
	JobID     int // batch job index, or -1 outside a batch
	Exception *rest.ServerException
}

func newBatchError(exc *rest.ServerException) *BatchError {
	return &BatchError{Name: exc.Exception, Message: exc.Message, JobID: -1, Exception: exc}
}

func (e *BatchError) Error() string {
	if e.JobID >= 0 {
		return fmt.Sprintf("batch job %d failed: %s: %s", e.JobID, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// CypherError reports a query that failed server-side. Name carries the
// remote exception class name so callers can match failures by kind.
type CypherError struct {
	Name       string
	Message    string
	StackTrace []string
	cause      error
}

func newCypherError(err error) error {
	exc := rest.CauseException(err)
	if exc == nil {
		return err
	}
	return &CypherError{
		Name:       exc.Exception,
		Message:    exc.Message,
		StackTrace: exc.StackTrace,
		cause:      err,
	}
}

func (e *CypherError) Error() string {
	return fmt.Sprintf("cypher error %s: %s", e.Name, e.Message)
}

func (e *CypherError) Unwrap() error { return e.cause }
