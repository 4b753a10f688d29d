package rest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// DefaultURI is the service root assumed when none is given.
const DefaultURI = "http://localhost:7474/"

var (
	rootsMu sync.Mutex
	roots   = make(map[string]*ServiceRoot)
)

// ServiceRoot is the discovery resource at the base of a Neo4j server
// ("http://host:7474/"). Instances are cached per normalized URI so that
// repeated construction is cheap and shares the metadata cache.
type ServiceRoot struct {
	res *Resource
}

// Root returns the (cached) service root for the given URI. Any path on the
// URI is discarded; only scheme, credentials, host and port are significant.
func Root(uri string) (*ServiceRoot, error) {
	if uri == "" {
		uri = DefaultURI
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	base := &url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host, Path: "/"}

	rootsMu.Lock()
	defer rootsMu.Unlock()
	if root, ok := roots[base.String()]; ok {
		return root, nil
	}
	res, err := NewResource(base.String())
	if err != nil {
		return nil, err
	}
	root := &ServiceRoot{res: res}
	roots[base.String()] = root
	return root, nil
}

// Resource returns the underlying discovery resource.
func (s *ServiceRoot) Resource() *Resource { return s.res }

// URI returns the service root URI.
func (s *ServiceRoot) URI() string { return s.res.URI() }

// GraphURI resolves the graph database URI advertised by the discovery
// document (its "data" entry).
func (s *ServiceRoot) GraphURI(ctx context.Context) (string, error) {
	meta, err := s.res.MetadataMap(ctx)
	if err != nil {
		return "", err
	}
	data, _ := meta["data"].(string)
	if data == "" {
		return "", fmt.Errorf("service root %s: discovery document has no data entry", s.res.URI())
	}
	return data, nil
}
