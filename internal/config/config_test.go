package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfleet/hostfleet-cli/internal/output"
)

func TestEnvFromProcess(t *testing.T) {
	t.Setenv("HOSTFLEET_TOKEN", "tok")
	t.Setenv("HOSTFLEET_USERNAME", "admin")
	t.Setenv("HOSTFLEET_PASSWORD", "secret")
	t.Setenv("HOSTFLEET_PROFILE", "staging")
	t.Setenv("HOSTFLEET_URL", "https://override.example.com")
	t.Setenv("HOSTFLEET_NO_KEYRING", "1")
	t.Setenv("HOSTFLEET_DEBUG", "1")

	env := EnvFromProcess()
	assert.Equal(t, "tok", env.TokenOverride)
	assert.Equal(t, "admin", env.Username)
	assert.Equal(t, "secret", env.Password)
	assert.Equal(t, "staging", env.Profile)
	assert.Equal(t, "https://override.example.com", env.URL)
	assert.True(t, env.NoKeyring)
	assert.True(t, env.Debug)
	assert.True(t, env.HasAutoLogin())
}

func TestLoadSeedsDefaults(t *testing.T) {
	store := NewStore(t.TempDir(), Env{})

	cfg, err := store.Load()
	require.NoError(t, err)

	assert.Len(t, cfg.Profiles, 3)
	assert.Contains(t, cfg.Profiles, "production")
	assert.Contains(t, cfg.Profiles, "staging")
	assert.Contains(t, cfg.Profiles, "local")
	assert.Equal(t, "production", cfg.DefaultProfile)

	// Seeding persists the file so the second load reads it back.
	_, err = os.Stat(store.Path())
	require.NoError(t, err)

	again, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultProfile, again.DefaultProfile)
}

func TestSaveFilePermissions(t *testing.T) {
	store := NewStore(t.TempDir(), Env{})
	_, err := store.Load()
	require.NoError(t, err)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSetProfileCreateAndOverwrite(t *testing.T) {
	store := NewStore(t.TempDir(), Env{})

	require.NoError(t, store.SetProfile("demo", &Profile{
		DisplayName: "Demo",
		BaseURL:     "https://demo.example.com",
	}))

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Demo", cfg.Profiles["demo"].DisplayName)

	require.NoError(t, store.SetProfile("demo", &Profile{
		DisplayName: "Demo 2",
		BaseURL:     "https://demo2.example.com",
		InsecureTLS: true,
	}))

	cfg, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Demo 2", cfg.Profiles["demo"].DisplayName)
	assert.True(t, cfg.Profiles["demo"].InsecureTLS)
}

func TestDeleteProfileReturnsExisted(t *testing.T) {
	store := NewStore(t.TempDir(), Env{})
	_, err := store.Load()
	require.NoError(t, err)

	existed, err := store.DeleteProfile("staging")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.DeleteProfile("staging")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestDeleteDefaultProfileReassigns(t *testing.T) {
	store := NewStore(t.TempDir(), Env{})
	cfg, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "production", cfg.DefaultProfile)

	existed, err := store.DeleteProfile("production")
	require.NoError(t, err)
	require.True(t, existed)

	cfg, err = store.Load()
	require.NoError(t, err)
	assert.NotEqual(t, "production", cfg.DefaultProfile)
	assert.Contains(t, cfg.Profiles, cfg.DefaultProfile)
}

func TestDeleteLastProfileFallsBackToSentinel(t *testing.T) {
	store := NewStore(t.TempDir(), Env{})
	cfg, err := store.Load()
	require.NoError(t, err)

	for key := range cfg.Profiles {
		_, err := store.DeleteProfile(key)
		require.NoError(t, err)
	}

	cfg, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Profiles)
	assert.Equal(t, FallbackDefault, cfg.DefaultProfile)
}

func TestSetDefaultProfileUnknownKey(t *testing.T) {
	store := NewStore(t.TempDir(), Env{})
	_, err := store.Load()
	require.NoError(t, err)

	err = store.SetDefaultProfile("nope")
	require.Error(t, err)

	var oerr *output.Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, output.CodeNotFound, oerr.Code)

	require.NoError(t, store.SetDefaultProfile("local"))
	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.DefaultProfile)
}

func TestActiveProfileNamePrecedence(t *testing.T) {
	store := NewStore(t.TempDir(), Env{Profile: "staging"})
	cfg, err := store.Load()
	require.NoError(t, err)

	// Env override beats the persisted default.
	assert.Equal(t, "staging", store.ActiveProfileName(cfg))

	// Session override beats the environment.
	store.SetSessionProfile("local")
	assert.Equal(t, "local", store.ActiveProfileName(cfg))
}

func TestActiveProfileNameDefault(t *testing.T) {
	store := NewStore(t.TempDir(), Env{})
	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "production", store.ActiveProfileName(cfg))
}

func TestActiveProfileUnknownKey(t *testing.T) {
	store := NewStore(t.TempDir(), Env{Profile: "ghost"})
	cfg, err := store.Load()
	require.NoError(t, err)

	_, _, err = store.ActiveProfile(cfg)
	require.Error(t, err)

	var oerr *output.Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, output.CodeNotFound, oerr.Code)
}

func TestActiveProfileURLOverride(t *testing.T) {
	store := NewStore(t.TempDir(), Env{URL: "https://override.example.com/"})
	cfg, err := store.Load()
	require.NoError(t, err)

	key, p, err := store.ActiveProfile(cfg)
	require.NoError(t, err)

	// Only the base URL changes; the key stays resolved from precedence.
	assert.Equal(t, "production", key)
	assert.Equal(t, "https://override.example.com", p.BaseURL)

	// The stored profile is untouched.
	assert.Equal(t, "https://fleet.example.com", cfg.Profiles["production"].BaseURL)
}

func TestLoadCorruptConfigFails(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, Env{})
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0600))

	_, err := store.Load()
	assert.Error(t, err)
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://x.example.com", NormalizeBaseURL("https://x.example.com/"))
	assert.Equal(t, "https://x.example.com", NormalizeBaseURL("https://x.example.com"))
}

func TestEnvHasAutoLogin(t *testing.T) {
	assert.False(t, Env{Username: "admin"}.HasAutoLogin())
	assert.False(t, Env{Password: "secret"}.HasAutoLogin())
	assert.True(t, Env{Username: "admin", Password: "secret"}.HasAutoLogin())
}
