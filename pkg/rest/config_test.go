package rest

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersFor(t *testing.T) {
	c := NewConfig()
	c.AddHeader("X-Global", "everywhere", "")
	c.AddHeader("X-Scoped", "camelot", "camelot:7474")
	c.Authenticate("camelot:7474", "arthur", "excalibur")

	h := c.headersFor("camelot:7474")
	assert.Equal(t, "everywhere", h.Get("X-Global"))
	assert.Equal(t, "camelot", h.Get("X-Scoped"))
	assert.Equal(t, "Basic YXJ0aHVyOmV4Y2FsaWJ1cg==", h.Get("Authorization"))

	h = c.headersFor("elsewhere:7474")
	assert.Equal(t, "everywhere", h.Get("X-Global"))
	assert.Empty(t, h.Get("X-Scoped"))
	assert.Empty(t, h.Get("Authorization"))
}

func TestHeadersForHostOverridesGlobal(t *testing.T) {
	c := NewConfig()
	c.AddHeader("X-Realm", "default", "")
	c.AddHeader("X-Realm", "britain", "camelot:7474")

	assert.Equal(t, "britain", c.headersFor("camelot:7474").Get("X-Realm"))
	assert.Equal(t, "default", c.headersFor("elsewhere:7474").Get("X-Realm"))
}

func TestRewriteURL(t *testing.T) {
	c := NewConfig()
	c.Rewrite("http://internal:7474", "https://public:443")

	u, err := url.Parse("http://internal:7474/db/data/node/1")
	require.NoError(t, err)
	c.rewriteURL(u)
	assert.Equal(t, "https://public:443/db/data/node/1", u.String())

	// Non-matching origins pass through untouched.
	u, err = url.Parse("http://other:7474/db/data/")
	require.NoError(t, err)
	c.rewriteURL(u)
	assert.Equal(t, "http://other:7474/db/data/", u.String())
}

func TestRewriteRemoval(t *testing.T) {
	c := NewConfig()
	c.Rewrite("http://internal:7474", "http://public:7474")
	c.Rewrite("http://internal:7474", "")

	u, err := url.Parse("http://internal:7474/db/data/")
	require.NoError(t, err)
	c.rewriteURL(u)
	assert.Equal(t, "http://internal:7474/db/data/", u.String())
}

func TestSetHTTPClient(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, DefaultTimeout, c.httpClient().Timeout)

	custom := &http.Client{Timeout: 3 * time.Second}
	c.SetHTTPClient(custom)
	assert.Same(t, custom, c.httpClient())
}

func TestResetDefault(t *testing.T) {
	Default.AddHeader("X-Test", "x", "")
	ResetDefault()
	assert.Empty(t, Default.headersFor("").Get("X-Test"))
}
