// Package config loads the backoffice settings: a YAML file overlaid with
// BACKOFFICE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvAPIURL       = "BACKOFFICE_API_URL"
	EnvStatePath    = "BACKOFFICE_STATE_PATH"
	EnvPollInterval = "BACKOFFICE_POLL_INTERVAL"
)

// Defaults.
const (
	DefaultFile             = "backoffice.yaml"
	DefaultStatePath        = "backoffice.db"
	DefaultIdentityResource = "admin-list"
	DefaultTimeout          = 30 * time.Second
	DefaultPollInterval     = 60 * time.Second
)

// Config is the full settings object.
type Config struct {
	API      APIConfig     `yaml:"api"`
	Session  SessionConfig `yaml:"session"`
	State    StateConfig   `yaml:"state"`
	Pages    PagesConfig   `yaml:"pages"`
	Accounts []Account     `yaml:"accounts"`
}

// APIConfig locates the REST backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Tracing bool          `yaml:"tracing"`
}

// SessionConfig drives the session gate.
type SessionConfig struct {
	IdentityResource string        `yaml:"identity_resource"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	DomainCheck      DomainCheck   `yaml:"domain_check"`
}

// DomainCheck is the optional domain-authorization endpoint. Empty URL
// disables it.
type DomainCheck struct {
	URL    string `yaml:"url"`
	Domain string `yaml:"domain"`
}

// StateConfig locates the local SQLite file.
type StateConfig struct {
	Path string `yaml:"path"`
}

// PagesConfig points at a directory of CUE page overrides.
type PagesConfig struct {
	Dir string `yaml:"dir"`
}

// Account is a static fallback login for email sign-in.
type Account struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
}

// Default returns a config with every default filled in and no base URL.
func Default() *Config {
	return &Config{
		API: APIConfig{Timeout: DefaultTimeout},
		Session: SessionConfig{
			IdentityResource: DefaultIdentityResource,
			PollInterval:     DefaultPollInterval,
		},
		State: StateConfig{Path: DefaultStatePath},
	}
}

// Load reads path (optional when it is the default file and missing),
// applies environment overrides and validates the result.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg, err := Read(path, getenv)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

// Read is Load without validation, for callers that only need part of
// the settings.
func Read(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultFile:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func (cfg *Config) decode(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays BACKOFFICE_* variables.
func (cfg *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
		cfg.API.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvStatePath)); v != "" {
		cfg.State.Path = v
	}
	if v := strings.TrimSpace(getenv(EnvPollInterval)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		cfg.Session.PollInterval = d
	}
	return nil
}

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid setting.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Without drops the errors reported for field.
func (es ValidationErrors) Without(field string) ValidationErrors {
	var kept ValidationErrors
	for _, e := range es {
		if e.Field != field {
			kept = append(kept, e)
		}
	}
	return kept
}

// Validate checks the settings. Returns nil when valid.
func (cfg *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.API.BaseURL == "" {
		add("api.base_url", "required (or set %s)", EnvAPIURL)
	} else if u, err := url.Parse(cfg.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.base_url", "must be an absolute http(s) URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout <= 0 {
		add("api.timeout", "must be positive")
	}
	if cfg.Session.PollInterval < time.Second {
		add("session.poll_interval", "must be at least 1s, got %s", cfg.Session.PollInterval)
	}
	if strings.Trim(cfg.Session.IdentityResource, "/ ") == "" {
		add("session.identity_resource", "required")
	}
	if dc := cfg.Session.DomainCheck; dc.URL != "" && dc.Domain == "" {
		add("session.domain_check.domain", "required when domain_check.url is set")
	}
	if cfg.State.Path == "" {
		add("state.path", "required")
	}
	for i, a := range cfg.Accounts {
		if a.Email == "" || a.Password == "" {
			add(fmt.Sprintf("accounts[%d]", i), "email and password are required")
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
