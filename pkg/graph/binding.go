package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adampassword/neorest/pkg/rest"
)

// binding gives an embedding type an optional attachment to a remote
// resource. An entity is either bound (has a resource, mutations can be
// pulled/pushed) or unbound (local-only); binding is a one-way transition
// reversed only by an explicit Unbind.
type binding struct {
	res *rest.Resource
}

// Bound reports whether this entity is attached to a remote resource.
func (b *binding) Bound() bool { return b.res != nil }

// Resource returns the bound resource, or ErrUnbound.
func (b *binding) Resource() (*rest.Resource, error) {
	if b.res == nil {
		return nil, ErrUnbound
	}
	return b.res, nil
}

// URI returns the bound resource URI, or "" when unbound.
func (b *binding) URI() string {
	if b.res == nil {
		return ""
	}
	return b.res.URI()
}

func (b *binding) bindResource(res *rest.Resource) { b.res = res }

// Unbind detaches the entity from its remote resource, returning it to the
// local-only state.
func (b *binding) Unbind() { b.res = nil }

// sameResource reports whether two bindings point at the same remote entity.
func (b *binding) sameResource(other *binding) bool {
	return b.res != nil && other.res != nil && b.res.Equal(other.res)
}

// entityID derives the canonical integer ID of an entity from the trailing
// path segment of its resource URI.
func entityID(res *rest.Resource) (int64, error) {
	uri := strings.TrimRight(res.URI(), "/")
	i := strings.LastIndex(uri, "/")
	if i < 0 {
		return 0, fmt.Errorf("no identifier in uri %q", uri)
	}
	id, err := strconv.ParseInt(uri[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("no identifier in uri %q", uri)
	}
	return id, nil
}

// graphBaseURI extracts the graph base URI from an entity URI such as
// "http://host:7474/db/data/node/42", using the given entity path segment
// ("node" or "relationship").
func graphBaseURI(uri, segment string) (string, error) {
	marker := "/" + segment + "/"
	i := strings.LastIndex(uri, marker)
	if i < 0 {
		return "", fmt.Errorf("%q is not a %s uri", uri, segment)
	}
	return uri[:i+1], nil
}
