package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Version is reported to the server in the User-Agent header.
const Version = "1.6.0"

var userAgent = "neorest/" + Version

// Response is the outcome of a successful Resource operation.
type Response struct {
	StatusCode int
	Header     http.Header
	// Content is the JSON-decoded response body, or nil for empty bodies.
	Content any
}

// Location returns the Location response header, if any.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// Resource wraps a single remote URI. Construction applies any registered
// origin rewrite and, when the URI carries embedded credentials, registers
// them as Basic Auth for that host before stripping them from the stored URI.
//
// The most recently fetched body is cached and exposed through Metadata;
// hypermedia responses double as metadata so that navigating a discovery
// document does not cost an extra round trip.
type Resource struct {
	config *Config
	uri    string
	url    *url.URL

	mu       sync.Mutex
	metadata any
	hasMeta  bool
}

// NewResource builds a Resource over the Default config.
func NewResource(uri string) (*Resource, error) {
	return NewResourceIn(Default, uri, nil)
}

// NewResourceIn builds a Resource over an explicit config, optionally
// pre-seeding its metadata cache from an already-fetched hypermedia payload.
func NewResourceIn(config *Config, uri string, metadata any) (*Resource, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURI, uri, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	config.rewriteURL(u)
	if u.User != nil {
		password, _ := u.User.Password()
		config.Authenticate(u.Host, u.User.Username(), password)
		u.User = nil
	}
	r := &Resource{config: config, uri: u.String(), url: u}
	if metadata != nil {
		r.metadata = metadata
		r.hasMeta = true
	}
	return r, nil
}

// URI returns the resource's URI after rewriting and credential stripping.
func (r *Resource) URI() string { return r.uri }

// Equal reports whether two resources identify the same remote entity.
func (r *Resource) Equal(other *Resource) bool {
	return other != nil && r.uri == other.uri
}

// Resolve returns a Resource for a reference relative to this one, sharing
// the same config.
func (r *Resource) Resolve(ref string) (*Resource, error) {
	rel, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURI, ref, err)
	}
	return NewResourceIn(r.config, r.url.ResolveReference(rel).String(), nil)
}

// Metadata returns the last fetched body for this resource, issuing a GET on
// first access if nothing has been fetched or supplied yet.
func (r *Resource) Metadata(ctx context.Context) (any, error) {
	r.mu.Lock()
	if r.hasMeta {
		defer r.mu.Unlock()
		return r.metadata, nil
	}
	r.mu.Unlock()
	rs, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}
	return rs.Content, nil
}

// MetadataMap is Metadata narrowed to a JSON object body.
func (r *Resource) MetadataMap(ctx context.Context) (map[string]any, error) {
	meta, err := r.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := meta.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("resource %s: metadata is not an object", r.uri)
	}
	return m, nil
}

// Get fetches and decodes the resource, refreshing the metadata cache.
func (r *Resource) Get(ctx context.Context) (*Response, error) {
	rs, err := r.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.metadata = rs.Content
	r.hasMeta = true
	r.mu.Unlock()
	return rs, nil
}

// Put sends a JSON body with PUT.
func (r *Resource) Put(ctx context.Context, body any) (*Response, error) {
	return r.do(ctx, http.MethodPut, body)
}

// Post sends a JSON body with POST.
func (r *Resource) Post(ctx context.Context, body any) (*Response, error) {
	return r.do(ctx, http.MethodPost, body)
}

// Delete removes the remote resource.
func (r *Resource) Delete(ctx context.Context) (*Response, error) {
	return r.do(ctx, http.MethodDelete, nil)
}

// GetStream issues a GET or POST and hands back the raw response for
// incremental decoding. Error statuses are translated before the body is
// returned; on success the caller owns the body and must close it.
func (r *Resource) GetStream(ctx context.Context, method string, body any) (*http.Response, error) {
	req, err := r.newRequest(ctx, method, body)
	if err != nil {
		return nil, err
	}
	resp, err := r.config.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, r.uri, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, r.statusError(resp)
	}
	return resp, nil
}

func (r *Resource) newRequest(ctx context.Context, method string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, r.uri, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.uri, reader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, r.uri, err)
	}
	for key, values := range r.config.headersFor(r.url.Host) {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Stream", "true")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (r *Resource) do(ctx context.Context, method string, body any) (*Response, error) {
	req, err := r.newRequest(ctx, method, body)
	if err != nil {
		return nil, err
	}
	resp, err := r.config.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, r.uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, r.statusError(resp)
	}
	content, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, r.uri, err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Content: content}, nil
}

// statusError translates a 4xx/5xx response into this library's error kinds,
// preserving the status code and any parsed Neo4j exception payload.
func (r *Resource) statusError(resp *http.Response) error {
	content, _ := decodeBody(resp)
	exc := ParseServerException(content)
	if resp.StatusCode >= 500 {
		return &ServerError{StatusCode: resp.StatusCode, URI: r.uri, Exception: exc}
	}
	return &ClientError{StatusCode: resp.StatusCode, URI: r.uri, Exception: exc}
}

func decodeBody(resp *http.Response) (any, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var content any
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return content, nil
}
