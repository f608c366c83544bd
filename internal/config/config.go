// Package config provides profile configuration and active-profile resolution.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hostfleet/hostfleet-cli/internal/output"
)

// Profile identifies one backend deployment to target.
type Profile struct {
	DisplayName string `json:"display_name"`
	BaseURL     string `json:"base_url"`
	InsecureTLS bool   `json:"insecure_tls,omitempty"`
}

// Config is the persisted configuration file.
type Config struct {
	Profiles       map[string]*Profile `json:"profiles"`
	DefaultProfile string              `json:"default_profile"`
	TokenBackend   string              `json:"token_backend,omitempty"` // "file" (default) or "keyring"
}

// FallbackDefault is assigned as the default profile key when the last
// profile is deleted, so the config never carries an empty default.
const FallbackDefault = "default"

// Env is the process environment snapshot, assembled once at startup and
// threaded through explicitly instead of ad-hoc os.Getenv calls.
type Env struct {
	TokenOverride string // HOSTFLEET_TOKEN: bearer token used verbatim, never refreshed
	Username      string // HOSTFLEET_USERNAME: auto-login credential
	Password      string // HOSTFLEET_PASSWORD: auto-login credential
	Profile       string // HOSTFLEET_PROFILE: profile-key override
	URL           string // HOSTFLEET_URL: base-URL override for the resolved profile
	NoKeyring     bool   // HOSTFLEET_NO_KEYRING: force the file token store
	Debug         bool   // HOSTFLEET_DEBUG: debug logging without the -v flag
}

// EnvFromProcess reads the environment variables the CLI consumes.
func EnvFromProcess() Env {
	return Env{
		TokenOverride: os.Getenv("HOSTFLEET_TOKEN"),
		Username:      os.Getenv("HOSTFLEET_USERNAME"),
		Password:      os.Getenv("HOSTFLEET_PASSWORD"),
		Profile:       os.Getenv("HOSTFLEET_PROFILE"),
		URL:           os.Getenv("HOSTFLEET_URL"),
		NoKeyring:     os.Getenv("HOSTFLEET_NO_KEYRING") != "",
		Debug:         os.Getenv("HOSTFLEET_DEBUG") != "",
	}
}

// HasAutoLogin reports whether both auto-login credentials are present.
func (e Env) HasAutoLogin() bool {
	return e.Username != "" && e.Password != ""
}

// Store reads and writes the config file and resolves the active profile.
type Store struct {
	dir string
	env Env

	// sessionProfile is an in-memory override scoped to this invocation
	// (set by --profile or `profile use` within a run). It takes precedence
	// over the environment and the persisted default.
	sessionProfile string
}

// NewStore creates a config store rooted at dir. An empty dir uses the
// global config directory.
func NewStore(dir string, env Env) *Store {
	if dir == "" {
		dir = GlobalConfigDir()
	}
	return &Store{dir: dir, env: env}
}

// Dir returns the config directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the config file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, "config.json")
}

// TokensDir returns the directory holding per-profile token records.
func (s *Store) TokensDir() string {
	return filepath.Join(s.dir, "tokens")
}

// SetSessionProfile overrides the active profile for this invocation only.
func (s *Store) SetSessionProfile(key string) {
	s.sessionProfile = key
}

// Load reads the persisted config, seeding default profiles on first run.
func (s *Store) Load() (*Config, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			cfg := seedConfig()
			if err := s.Save(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config at %s: %w", s.Path(), err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	return &cfg, nil
}

// Save writes the config file, creating the directory if needed.
func (s *Store) Save(cfg *Config) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.Path())
}

// SetProfile creates or overwrites the profile under key.
func (s *Store) SetProfile(key string, p *Profile) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	cfg.Profiles[key] = p
	return s.Save(cfg)
}

// DeleteProfile removes the profile under key, reporting whether it existed.
// Deleting the persisted default reassigns the default to a remaining
// profile key, or to the fallback sentinel when none remain.
func (s *Store) DeleteProfile(key string) (bool, error) {
	cfg, err := s.Load()
	if err != nil {
		return false, err
	}

	if _, ok := cfg.Profiles[key]; !ok {
		return false, nil
	}
	delete(cfg.Profiles, key)

	if cfg.DefaultProfile == key {
		cfg.DefaultProfile = FallbackDefault
		for remaining := range cfg.Profiles {
			cfg.DefaultProfile = remaining
			break
		}
	}

	if err := s.Save(cfg); err != nil {
		return false, err
	}
	return true, nil
}

// SetDefaultProfile persists key as the default profile.
func (s *Store) SetDefaultProfile(key string) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[key]; !ok {
		return output.ErrNotFound("Profile", key)
	}
	cfg.DefaultProfile = key
	return s.Save(cfg)
}

// ActiveProfileName resolves which profile key applies to this invocation.
// Precedence: session override, then HOSTFLEET_PROFILE, then the persisted
// default.
func (s *Store) ActiveProfileName(cfg *Config) string {
	if s.sessionProfile != "" {
		return s.sessionProfile
	}
	if s.env.Profile != "" {
		return s.env.Profile
	}
	return cfg.DefaultProfile
}

// ActiveProfile resolves the active profile key and value. HOSTFLEET_URL
// overrides only the base URL of the resolved profile, never its key.
func (s *Store) ActiveProfile(cfg *Config) (string, *Profile, error) {
	key := s.ActiveProfileName(cfg)
	p, ok := cfg.Profiles[key]
	if !ok {
		return "", nil, output.ErrNotFound("Profile", key)
	}

	resolved := *p
	if s.env.URL != "" {
		resolved.BaseURL = s.env.URL
	}
	resolved.BaseURL = NormalizeBaseURL(resolved.BaseURL)
	return key, &resolved, nil
}

func seedConfig() *Config {
	return &Config{
		Profiles: map[string]*Profile{
			"production": {
				DisplayName: "Production",
				BaseURL:     "https://fleet.example.com",
			},
			"staging": {
				DisplayName: "Staging",
				BaseURL:     "https://staging.fleet.example.com",
			},
			"local": {
				DisplayName: "Local",
				BaseURL:     "http://localhost:3000",
			},
		},
		DefaultProfile: "production",
	}
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "hostfleet")
}

// NormalizeBaseURL ensures consistent URL format (no trailing slash).
func NormalizeBaseURL(url string) string {
	return strings.TrimSuffix(url, "/")
}
