package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors for REST operations.
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidURI = errors.New("invalid uri")
)

// ServerException is a structured Neo4j fault payload, as returned in the
// body of a failed request or embedded in a batch response:
//
//	{"exception": "NodeNotFoundException",
//	 "fullname": "org.neo4j...NodeNotFoundException",
//	 "message": "...",
//	 "stacktrace": [...],
//	 "cause": {...}}
type ServerException struct {
	Exception  string
	FullName   string
	Message    string
	StackTrace []string
	Cause      *ServerException
}

// ParseServerException extracts a ServerException from a decoded JSON body.
// Returns nil if the body does not carry an exception payload.
func ParseServerException(body any) *ServerException {
	m, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	name, _ := m["exception"].(string)
	message, _ := m["message"].(string)
	if name == "" && message == "" {
		return nil
	}
	exc := &ServerException{Exception: name, Message: message}
	exc.FullName, _ = m["fullname"].(string)
	if frames, ok := m["stacktrace"].([]any); ok {
		for _, frame := range frames {
			if s, ok := frame.(string); ok {
				exc.StackTrace = append(exc.StackTrace, s)
			}
		}
	}
	if cause, ok := m["cause"]; ok {
		exc.Cause = ParseServerException(cause)
	}
	return exc
}

func (e *ServerException) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Exception, e.Message)
	}
	return e.Exception
}

// ClientError reports a 4xx response. The parsed exception payload, if the
// server supplied one, is preserved in Exception.
type ClientError struct {
	StatusCode int
	URI        string
	Exception  *ServerException
}

func (e *ClientError) Error() string {
	if e.Exception != nil {
		return fmt.Sprintf("client error %d at %s: %s", e.StatusCode, e.URI, e.Exception.Error())
	}
	return fmt.Sprintf("client error %d at %s", e.StatusCode, e.URI)
}

func (e *ClientError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// ServerError reports a 5xx response.
type ServerError struct {
	StatusCode int
	URI        string
	Exception  *ServerException
}

func (e *ServerError) Error() string {
	if e.Exception != nil {
		return fmt.Sprintf("server error %d at %s: %s", e.StatusCode, e.URI, e.Exception.Error())
	}
	return fmt.Sprintf("server error %d at %s", e.StatusCode, e.URI)
}

// StatusCode returns the HTTP status carried by a ClientError or ServerError,
// or 0 when err is neither.
func StatusCode(err error) int {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 client error.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err is a 409 client error.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// CauseException digs the server exception payload out of a translated error,
// or nil when none was attached.
func CauseException(err error) *ServerException {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Exception
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se.Exception
	}
	return nil
}
