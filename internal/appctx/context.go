// Package appctx provides the invocation-scoped application context.
package appctx

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hostfleet/hostfleet-cli/internal/api"
	"github.com/hostfleet/hostfleet-cli/internal/auth"
	"github.com/hostfleet/hostfleet-cli/internal/config"
	"github.com/hostfleet/hostfleet-cli/internal/output"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared state for one command invocation. It is built once
// in the root command and threaded through the context; there is no ambient
// global state outside a run.
type App struct {
	Env         config.Env
	ConfigStore *config.Store
	Config      *config.Config

	// ProfileKey and Profile are the resolved active profile, with any
	// base-URL override already applied.
	ProfileKey string
	Profile    *config.Profile

	Auth   *auth.Manager
	API    *api.Client
	Output *output.Writer
	Logger *slog.Logger

	Flags GlobalFlags
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	JSON     bool
	YAML     bool
	Quiet    bool
	Profile  string
	URL      string
	Insecure bool
	Verbose  bool
}

// NewApp resolves the active profile and wires the token manager and API
// client for it.
func NewApp(env config.Env, store *config.Store, flags GlobalFlags) (*App, error) {
	if flags.Profile != "" {
		store.SetSessionProfile(flags.Profile)
	}

	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}

	key, profile, err := store.ActiveProfile(cfg)
	if err != nil {
		return nil, err
	}
	if flags.URL != "" {
		profile.BaseURL = config.NormalizeBaseURL(flags.URL)
	}
	if flags.Insecure {
		profile.InsecureTLS = true
	}

	// Debug tracing goes to stderr so it never interleaves with envelope
	// output on stdout.
	level := slog.LevelWarn
	if flags.Verbose || env.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	tokenStore := auth.NewStore(store.TokensDir(), cfg.TokenBackend, env.NoKeyring)
	authMgr := auth.NewManager(tokenStore, env)

	client := api.NewClient(authMgr, key, profile)
	client.SetLogger(logger)

	format := output.FormatAuto
	switch {
	case flags.Quiet:
		format = output.FormatQuiet
	case flags.YAML:
		format = output.FormatYAML
	case flags.JSON:
		format = output.FormatJSON
	}

	return &App{
		Env:         env,
		ConfigStore: store,
		Config:      cfg,
		ProfileKey:  key,
		Profile:     profile,
		Auth:        authMgr,
		API:         client,
		Output:      output.New(output.Options{Format: format, Writer: os.Stdout}),
		Logger:      logger,
		Flags:       flags,
	}, nil
}

// RequireAuth produces a valid access token or an error suitable for a
// non-zero exit. A cheap no-network check runs first so the common failure
// modes get specific guidance before any refresh round-trip is attempted.
func (a *App) RequireAuth(ctx context.Context) (string, error) {
	if !a.Auth.HasEnvToken() && !a.Auth.HasAutoLogin() {
		stored := a.Auth.StoredToken(a.ProfileKey)
		if stored == nil {
			return "", output.ErrAuth(fmt.Sprintf("Not logged in to profile %q", a.ProfileKey))
		}
		if auth.Expired(stored) {
			a.Logger.Debug("token expired or expiring, refreshing", "profile", a.ProfileKey)
		}
	}

	token, err := a.Auth.ValidToken(ctx, a.ProfileKey, a.Profile)
	if err != nil {
		return "", err
	}
	if token == "" {
		// The quick check saw a session, so the refresh must have been
		// rejected and the record purged.
		return "", output.ErrSessionExpired()
	}
	return token, nil
}

// OK outputs a success response.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	return a.Output.OK(data, opts...)
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
