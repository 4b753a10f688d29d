// Package rest wraps access to Neo4j REST resources over HTTP.
//
// A Resource represents one remote URI and provides JSON-decoded
// Get/Put/Post/Delete operations, translating HTTP failures into the
// ClientError/ServerError taxonomy. Configuration (host rewrites, extra
// headers, Basic Auth credentials) lives in a Config; most applications use
// the process-wide Default config via the package-level registration
// functions.
package rest

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// DefaultTimeout applies to HTTP requests issued through a Config that does
// not set its own.
const DefaultTimeout = 30 * time.Second

type header struct {
	key, value string
}

// Config holds connection-level settings consulted on every Resource
// construction and request: a scheme://host:port rewrite table and a per-host
// (or global) additional-header table.
//
// A single process-wide instance, Default, backs the package-level Rewrite,
// AddHeader and Authenticate functions. Servers behind proxies that are
// unaware of their externally visible address are the usual reason to
// register a rewrite.
type Config struct {
	mu       sync.RWMutex
	rewrites map[string]string // "scheme://host:port" -> "scheme://host:port"
	headers  map[string][]header
	client   *http.Client
}

// NewConfig returns an empty Config with a default HTTP client.
func NewConfig() *Config {
	return &Config{
		rewrites: make(map[string]string),
		headers:  make(map[string][]header),
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

// Default is the process-wide configuration used by resources constructed
// with NewResource. Tests should call ResetDefault when they mutate it.
var Default = NewConfig()

// ResetDefault discards all registered rewrites, headers and credentials on
// the Default config.
func ResetDefault() {
	Default = NewConfig()
}

// SetHTTPClient replaces the HTTP client used for requests issued through
// this config.
func (c *Config) SetHTTPClient(client *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = client
}

func (c *Config) httpClient() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Rewrite registers an automatic rewrite of all URIs directed at the origin
// "scheme://host:port" named by from to the origin named by to. An empty to
// removes any rule for from.
func (c *Config) Rewrite(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to == "" {
		delete(c.rewrites, from)
	} else {
		c.rewrites[from] = to
	}
}

// AddHeader registers an HTTP header sent with every request, either to all
// hosts (empty hostPort) or only to the matching "host:port".
func (c *Config) AddHeader(key, value, hostPort string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[hostPort] = append(c.headers[hostPort], header{key, value})
}

// Authenticate registers HTTP Basic Auth credentials for the given
// "host:port". The hostPort must match exactly the one used in resource URIs
// after any rewrite has been applied.
func (c *Config) Authenticate(hostPort, user, password string) {
	credentials := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
	c.AddHeader("Authorization", "Basic "+credentials, hostPort)
}

// headersFor collects the global headers plus those registered for hostPort.
// Later registrations win on key collision.
func (c *Config) headersFor(hostPort string) http.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h := make(http.Header)
	for _, hd := range c.headers[""] {
		h.Set(hd.key, hd.value)
	}
	if hostPort != "" {
		for _, hd := range c.headers[hostPort] {
			h.Set(hd.key, hd.value)
		}
	}
	return h
}

// rewriteURL applies any registered origin rewrite to u in place.
func (c *Config) rewriteURL(u *url.URL) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	origin := fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	if to, ok := c.rewrites[origin]; ok {
		if target, err := url.Parse(to); err == nil {
			u.Scheme = target.Scheme
			u.Host = target.Host
		}
	}
}

// Rewrite registers a URI rewrite rule on the Default config.
func Rewrite(from, to string) { Default.Rewrite(from, to) }

// AddHeader registers an extra request header on the Default config.
func AddHeader(key, value, hostPort string) { Default.AddHeader(key, value, hostPort) }

// Authenticate registers Basic Auth credentials on the Default config:
//
//	rest.Authenticate("camelot:7474", "arthur", "excalibur")
//	g, err := graph.New("http://camelot:7474/db/data/")
func Authenticate(hostPort, user, password string) { Default.Authenticate(hostPort, user, password) }
