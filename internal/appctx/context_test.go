package appctx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfleet/hostfleet-cli/internal/auth"
	"github.com/hostfleet/hostfleet-cli/internal/config"
	"github.com/hostfleet/hostfleet-cli/internal/output"
)

func newTestApp(t *testing.T, env config.Env, flags GlobalFlags) *App {
	t.Helper()
	store := config.NewStore(t.TempDir(), env)
	app, err := NewApp(env, store, flags)
	require.NoError(t, err)
	return app
}

func TestNewAppResolvesDefaultProfile(t *testing.T) {
	app := newTestApp(t, config.Env{}, GlobalFlags{})

	assert.Equal(t, "production", app.ProfileKey)
	assert.Equal(t, "https://fleet.example.com", app.Profile.BaseURL)
}

func TestNewAppProfileFlagBeatsEnv(t *testing.T) {
	app := newTestApp(t, config.Env{Profile: "staging"}, GlobalFlags{Profile: "local"})
	assert.Equal(t, "local", app.ProfileKey)
}

func TestNewAppURLFlagOverridesBaseURL(t *testing.T) {
	app := newTestApp(t, config.Env{}, GlobalFlags{URL: "https://flag.example.com/"})

	assert.Equal(t, "production", app.ProfileKey)
	assert.Equal(t, "https://flag.example.com", app.Profile.BaseURL)
}

func TestNewAppInsecureFlagOverridesTLSPolicy(t *testing.T) {
	app := newTestApp(t, config.Env{}, GlobalFlags{Insecure: true})
	assert.True(t, app.Profile.InsecureTLS)

	// Invocation-scoped only: the persisted profile is untouched.
	cfg, err := app.ConfigStore.Load()
	require.NoError(t, err)
	assert.False(t, cfg.Profiles["production"].InsecureTLS)
}

func TestNewAppUnknownProfileFails(t *testing.T) {
	store := config.NewStore(t.TempDir(), config.Env{})
	_, err := NewApp(config.Env{}, store, GlobalFlags{Profile: "ghost"})
	require.Error(t, err)

	var oerr *output.Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, output.CodeNotFound, oerr.Code)
}

func TestRequireAuthNotLoggedIn(t *testing.T) {
	app := newTestApp(t, config.Env{}, GlobalFlags{})

	_, err := app.RequireAuth(context.Background())
	require.Error(t, err)

	var oerr *output.Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, output.CodeAuth, oerr.Code)
	assert.Contains(t, oerr.Message, "production")
}

func TestRequireAuthEnvOverride(t *testing.T) {
	app := newTestApp(t, config.Env{TokenOverride: "env-token"}, GlobalFlags{})

	token, err := app.RequireAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)
}

func TestRequireAuthValidStoredToken(t *testing.T) {
	app := newTestApp(t, config.Env{}, GlobalFlags{})
	require.NoError(t, app.Auth.Store().Save("production", &auth.TokenData{
		AccessToken: "stored-access",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}))

	token, err := app.RequireAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored-access", token)
}

func TestRequireAuthSessionExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	app := newTestApp(t, config.Env{URL: srv.URL}, GlobalFlags{})
	require.NoError(t, app.Auth.Store().Save("production", &auth.TokenData{
		AccessToken:  "stale",
		RefreshToken: "rejected",
		ExpiresAt:    time.Now().Add(-time.Hour).UnixMilli(),
	}))

	_, err := app.RequireAuth(context.Background())
	require.Error(t, err)

	var oerr *output.Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, output.CodeSession, oerr.Code)
}

func TestRequireAuthRefreshesExpiring(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/refresh", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "refreshed",
			"expiresIn":   3600,
		})
	}))
	defer srv.Close()

	app := newTestApp(t, config.Env{URL: srv.URL}, GlobalFlags{})
	require.NoError(t, app.Auth.Store().Save("production", &auth.TokenData{
		AccessToken:  "stale",
		RefreshToken: "good",
		ExpiresAt:    time.Now().Add(time.Minute).UnixMilli(),
	}))

	token, err := app.RequireAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed", token)
}

func TestContextRoundTrip(t *testing.T) {
	app := newTestApp(t, config.Env{}, GlobalFlags{})

	ctx := WithApp(context.Background(), app)
	assert.Same(t, app, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
