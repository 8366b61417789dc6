package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backoffice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://api.example.com/v1
  timeout: 5s
  tracing: true
session:
  poll_interval: 2m
  domain_check:
    url: https://licence.example.com/check
    domain: admin.example.com
state:
  path: /tmp/bo.db
pages:
  dir: ./pages
accounts:
  - email: root@example.com
    password: secret
    name: Root
    role: Admin
`)
	cfg, err := Load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.API.Tracing)
	assert.Equal(t, 2*time.Minute, cfg.Session.PollInterval)
	assert.Equal(t, DefaultIdentityResource, cfg.Session.IdentityResource)
	assert.Equal(t, "admin.example.com", cfg.Session.DomainCheck.Domain)
	assert.Equal(t, "/tmp/bo.db", cfg.State.Path)
	assert.Equal(t, "./pages", cfg.Pages.Dir)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "Root", cfg.Accounts[0].Name)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: https://file.example.com\n")
	cfg, err := Load(path, env(map[string]string{
		EnvAPIURL:       " http://localhost:8080 ",
		EnvStatePath:    "/var/lib/bo.db",
		EnvPollInterval: "90s",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.API.BaseURL)
	assert.Equal(t, "/var/lib/bo.db", cfg.State.Path)
	assert.Equal(t, 90*time.Second, cfg.Session.PollInterval)
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(DefaultFile, env(map[string]string{EnvAPIURL: "http://localhost:8080"}))
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, cfg.Session.PollInterval)
	assert.Equal(t, DefaultStatePath, cfg.State.Path)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: https://x.example.com\n  baseurl: typo\n")
	_, err := Load(path, env(nil))
	assert.ErrorContains(t, err, "baseurl")
}

func TestLoadBadPollIntervalEnv(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: https://x.example.com\n")
	_, err := Load(path, env(map[string]string{EnvPollInterval: "soon"}))
	assert.ErrorContains(t, err, EnvPollInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url"},
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api" }, "api.base_url"},
		{"ftp base url", func(c *Config) { c.API.BaseURL = "ftp://x.example.com" }, "api.base_url"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"fast poll", func(c *Config) { c.Session.PollInterval = 500 * time.Millisecond }, "session.poll_interval"},
		{"no identity resource", func(c *Config) { c.Session.IdentityResource = "/" }, "session.identity_resource"},
		{"domain check without domain", func(c *Config) { c.Session.DomainCheck.URL = "https://x" }, "session.domain_check.domain"},
		{"no state path", func(c *Config) { c.State.Path = "" }, "state.path"},
		{"account without password", func(c *Config) { c.Accounts = []Account{{Email: "a@b.c"}} }, "accounts[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.API.BaseURL = "https://api.example.com"
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}

	cfg := Default()
	cfg.API.BaseURL = "https://api.example.com"
	assert.Nil(t, cfg.Validate())
}

func TestReadSkipsValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Read(DefaultFile, env(nil))
	require.NoError(t, err)

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "api.base_url", errs[0].Field)
	assert.Empty(t, errs.Without("api.base_url"))
}
