package config

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adampassword/neorest/pkg/rest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, rest.DefaultURI, cfg.URI)
	assert.Equal(t, rest.DefaultTimeout, cfg.Timeout)
	assert.Empty(t, cfg.Auth)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "neorest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
uri: http://camelot:7474/
auth: arthur:excalibur
timeout: 10s
hosts:
  camelot:7474:
    auth: lancelot:grail
    headers:
      X-Realm: britain
rewrites:
  http://internal:7474: http://camelot:7474
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://camelot:7474/", cfg.URI)
	assert.Equal(t, "arthur:excalibur", cfg.Auth)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "lancelot:grail", cfg.Hosts["camelot:7474"].Auth)
	assert.Equal(t, "britain", cfg.Hosts["camelot:7474"].Headers["X-Realm"])
	assert.Equal(t, "http://camelot:7474", cfg.Rewrites["http://internal:7474"])
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, rest.DefaultURI, cfg.URI)
}

func TestLoadEmptyPathSkipsFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, rest.DefaultURI, cfg.URI)
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfigFile(t, "uri: [not\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "uri: http://filehost:7474/\n")
	t.Setenv("NEOREST_URI", "http://envhost:7474/")
	t.Setenv("NEOREST_AUTH", "env:secret")
	t.Setenv("NEOREST_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://envhost:7474/", cfg.URI)
	assert.Equal(t, "env:secret", cfg.Auth)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoadIgnoresBadEnvTimeout(t *testing.T) {
	t.Setenv("NEOREST_TIMEOUT", "soon")
	cfg := LoadFromEnv()
	assert.Equal(t, rest.DefaultTimeout, cfg.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "relative uri", mutate: func(c *Config) { c.URI = "/db/data/" }, wantErr: true},
		{name: "empty uri", mutate: func(c *Config) { c.URI = "" }, wantErr: true},
		{name: "auth without colon", mutate: func(c *Config) { c.Auth = "arthur" }, wantErr: true},
		{name: "host auth without colon", mutate: func(c *Config) {
			c.Hosts = map[string]HostConfig{"camelot:7474": {Auth: "arthur"}}
		}, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, wantErr: true},
		{name: "full valid", mutate: func(c *Config) {
			c.Auth = "arthur:excalibur"
			c.Hosts = map[string]HostConfig{"camelot:7474": {Auth: "lancelot:grail"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cfg := &Config{
		URI:     srv.URL + "/",
		Auth:    "arthur:excalibur",
		Timeout: 10 * time.Second,
		Hosts: map[string]HostConfig{
			u.Host: {Headers: map[string]string{"X-Realm": "britain"}},
		},
		Rewrites: map[string]string{"http://advertised:7474": "http://" + u.Host},
	}
	rc := rest.NewConfig()
	require.NoError(t, cfg.Apply(rc))

	// The advertised origin rewrites to the live server, which sees the
	// registered credentials and headers.
	res, err := rest.NewResourceIn(rc, "http://advertised:7474/db/data/", nil)
	require.NoError(t, err)
	_, err = res.Get(t.Context())
	require.NoError(t, err)

	assert.Equal(t, "Basic YXJ0aHVyOmV4Y2FsaWJ1cg==", got.Get("Authorization"))
	assert.Equal(t, "britain", got.Get("X-Realm"))
}

func TestApplyInvalidURI(t *testing.T) {
	cfg := &Config{URI: "://nope"}
	assert.Error(t, cfg.Apply(rest.NewConfig()))
}
