// Package config loads client configuration from YAML files and environment
// variables and registers it with the REST layer.
//
// Configuration resolves in three layers: built-in defaults, an optional
// YAML file, then environment overrides. Call Validate before use and Apply
// to register credentials, headers and rewrites:
//
//	cfg, err := config.Load("neorest.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg.Apply(rest.Default)
//
// Environment Variables:
//   - NEOREST_URI: service root URI, e.g. "http://localhost:7474/"
//   - NEOREST_AUTH: credentials as "user:password"
//   - NEOREST_TIMEOUT: request timeout, e.g. "30s"
package config

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adampassword/neorest/pkg/rest"
)

// Config holds connection settings for one or more Neo4j servers.
type Config struct {
	// URI is the service root of the default server.
	URI string `yaml:"uri"`

	// Auth is the default credential as "user:password". Per-host entries
	// in Hosts take precedence.
	Auth string `yaml:"auth,omitempty"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Hosts carries per-host credentials and headers, keyed by host:port.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`

	// Rewrites maps advertised origins to reachable ones, useful when a
	// server self-reports an address that differs from its public one.
	Rewrites map[string]string `yaml:"rewrites,omitempty"`
}

// HostConfig holds settings scoped to a single host:port.
type HostConfig struct {
	Auth    string            `yaml:"auth,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultConfig returns settings for an unauthenticated local server.
func DefaultConfig() *Config {
	return &Config{
		URI:     rest.DefaultURI,
		Timeout: rest.DefaultTimeout,
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. A missing file is not an error; the defaults and environment
// still apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.loadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv returns the defaults with environment overrides applied.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.loadFromEnv()
	return cfg
}

func (c *Config) loadFromEnv() {
	if uri := os.Getenv("NEOREST_URI"); uri != "" {
		c.URI = uri
	}
	if auth := os.Getenv("NEOREST_AUTH"); auth != "" {
		c.Auth = auth
	}
	if timeout := os.Getenv("NEOREST_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Timeout = d
		}
	}
}

// Validate checks that the configured URI and credentials are well formed.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid service uri %q", c.URI)
	}
	if c.Auth != "" && !strings.Contains(c.Auth, ":") {
		return fmt.Errorf("auth must be user:password, got %q", c.Auth)
	}
	for host, hc := range c.Hosts {
		if hc.Auth != "" && !strings.Contains(hc.Auth, ":") {
			return fmt.Errorf("auth for host %s must be user:password", host)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Apply registers credentials, headers, rewrites and the timeout with a REST
// configuration.
func (c *Config) Apply(rc *rest.Config) error {
	u, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("invalid service uri %q", c.URI)
	}
	if c.Auth != "" {
		user, password, _ := strings.Cut(c.Auth, ":")
		rc.Authenticate(u.Host, user, password)
	}
	for host, hc := range c.Hosts {
		if hc.Auth != "" {
			user, password, _ := strings.Cut(hc.Auth, ":")
			rc.Authenticate(host, user, password)
		}
		for key, value := range hc.Headers {
			rc.AddHeader(key, value, host)
		}
	}
	for from, to := range c.Rewrites {
		rc.Rewrite(from, to)
	}
	if c.Timeout > 0 {
		rc.SetHTTPClient(&http.Client{Timeout: c.Timeout})
	}
	return nil
}
