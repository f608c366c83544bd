package auth

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"time"

	retry "github.com/appleboy/go-httpretry"

	"github.com/hostfleet/hostfleet-cli/internal/config"
	"github.com/hostfleet/hostfleet-cli/internal/output"
)

const (
	// ExpiryBuffer is the safety margin subtracted from a token's declared
	// expiry so it is never expiring mid-flight of the call about to use it.
	ExpiryBuffer = 5 * time.Minute

	// defaultExpiresIn applies when the server omits expiresIn.
	defaultExpiresIn = 3600

	// authTimeout bounds login and refresh round-trips.
	authTimeout = 15 * time.Second
)

// Expired reports whether the record is past, or within ExpiryBuffer of,
// its declared expiry.
func Expired(data *TokenData) bool {
	return data.ExpiresAt < time.Now().Add(ExpiryBuffer).UnixMilli()
}

// Manager orchestrates the token lifecycle for one invocation: expiry
// checking, refresh, and auto-login fallback. It performs at most one
// refresh round-trip per ValidToken call.
type Manager struct {
	store Store
	env   config.Env

	// httpClient overrides the per-profile client when set (tests).
	httpClient *http.Client
}

// NewManager creates a token lifecycle manager over the given store.
func NewManager(store Store, env config.Env) *Manager {
	return &Manager{store: store, env: env}
}

// SetHTTPClient replaces the transport used for login and refresh calls.
func (m *Manager) SetHTTPClient(c *http.Client) {
	m.httpClient = c
}

// Store returns the underlying token store.
func (m *Manager) Store() Store {
	return m.store
}

// HasEnvToken reports whether a hard bearer-token override is configured.
func (m *Manager) HasEnvToken() bool {
	return m.env.TokenOverride != ""
}

// HasAutoLogin reports whether auto-login credentials are configured.
func (m *Manager) HasAutoLogin() bool {
	return m.env.HasAutoLogin()
}

// ValidToken produces a currently valid access token for the profile, or
// ("", nil) when no session is available. A rejected refresh purges the
// stored record and degrades to the no-session result so callers that only
// need a token if possible keep working; callers that require
// authentication convert the absence into an error.
func (m *Manager) ValidToken(ctx context.Context, profileKey string, profile *config.Profile) (string, error) {
	// A configured override bypasses storage entirely and is never
	// validated or refreshed.
	if m.env.TokenOverride != "" {
		return m.env.TokenOverride, nil
	}

	if m.env.HasAutoLogin() {
		stored, err := m.store.Load(profileKey)
		if err != nil {
			return "", err
		}
		if stored == nil || Expired(stored) {
			record, err := m.Login(ctx, profileKey, profile, m.env.Username, m.env.Password)
			if err != nil {
				return "", err
			}
			return record.AccessToken, nil
		}
		return stored.AccessToken, nil
	}

	stored, err := m.store.Load(profileKey)
	if err != nil {
		return "", err
	}
	if stored == nil {
		return "", nil
	}

	if Expired(stored) {
		refreshed, err := m.Refresh(ctx, profileKey, profile)
		if err != nil {
			// Only a rejected refresh degrades to the no-session result;
			// the record is already purged on that path. A network failure
			// leaves the session intact and must surface as its own error
			// so the caller is not told to re-login.
			if output.AsError(err).Code == output.CodeSession {
				return "", nil
			}
			return "", err
		}
		return refreshed.AccessToken, nil
	}

	return stored.AccessToken, nil
}

// Login exchanges credentials at the authentication endpoint and persists
// the resulting record. The full record is returned so callers can display
// who logged in.
func (m *Manager) Login(ctx context.Context, profileKey string, profile *config.Profile, username, password string) (*TokenData, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	resp, payload, err := m.post(ctx, profile, "/api/auth/login", body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, output.ErrLoginFailed(serverMessage(payload))
	}

	var loginResp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int64  `json:"expiresIn"`
		User         User   `json:"user"`
	}
	if err := json.Unmarshal(payload, &loginResp); err != nil {
		return nil, output.ErrLoginFailed("unexpected login response")
	}

	expiresIn := loginResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	record := &TokenData{
		AccessToken:  loginResp.AccessToken,
		RefreshToken: loginResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second).UnixMilli(),
		User:         loginResp.User,
	}
	if err := m.store.Save(profileKey, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Refresh presents the stored refresh token to the refresh endpoint and
// merges the result into the record. A rejected refresh purges the record
// and reports a session-expired failure, intentionally distinct from a
// login failure so callers recommend re-login instead of re-entering the
// same credentials.
func (m *Manager) Refresh(ctx context.Context, profileKey string, profile *config.Profile) (*TokenData, error) {
	stored, err := m.store.Load(profileKey)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, output.ErrAuth("Not logged in")
	}

	body := map[string]string{"refreshToken": stored.RefreshToken}
	resp, payload, err := m.post(ctx, profile, "/api/auth/refresh", body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = m.store.Delete(profileKey)
		return nil, output.ErrSessionExpired()
	}

	var refreshResp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int64  `json:"expiresIn"`
	}
	if err := json.Unmarshal(payload, &refreshResp); err != nil {
		_, _ = m.store.Delete(profileKey)
		return nil, output.ErrSessionExpired()
	}

	expiresIn := refreshResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	stored.AccessToken = refreshResp.AccessToken
	stored.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second).UnixMilli()
	// The refresh token rotates only when the server supplies a new one.
	if refreshResp.RefreshToken != "" {
		stored.RefreshToken = refreshResp.RefreshToken
	}

	if err := m.store.Save(profileKey, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Logout removes the stored record, reporting whether one existed.
func (m *Manager) Logout(profileKey string) (bool, error) {
	return m.store.Delete(profileKey)
}

// IsLoggedIn reports whether a stored record exists for the profile. It
// makes no expiry judgment.
func (m *Manager) IsLoggedIn(profileKey string) bool {
	stored, err := m.store.Load(profileKey)
	return err == nil && stored != nil
}

// StoredToken returns the stored record for display purposes, or nil.
func (m *Manager) StoredToken(profileKey string) *TokenData {
	stored, err := m.store.Load(profileKey)
	if err != nil {
		return nil
	}
	return stored
}

func (m *Manager) post(ctx context.Context, profile *config.Profile, path string, body any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}

	url := config.NormalizeBaseURL(profile.BaseURL) + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Mode", "token")

	client, err := m.client(profile.InsecureTLS)
	if err != nil {
		return nil, nil, err
	}

	resp, err := client.DoWithContext(ctx, req)
	if err != nil {
		return nil, nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, output.ErrNetwork(err)
	}
	return resp, respBody, nil
}

func (m *Manager) client(insecure bool) (*retry.Client, error) {
	base := m.httpClient
	if base == nil {
		base = &http.Client{
			Timeout: authTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS12,
					InsecureSkipVerify: insecure, //nolint:gosec // G402: per-profile opt-in for self-signed deployments
				},
			},
		}
	}
	return retry.NewBackgroundClient(retry.WithHTTPClient(base))
}

// serverMessage extracts the error or message field from an error payload.
func serverMessage(payload []byte) string {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(payload, &apiErr) == nil {
		if apiErr.Error != "" {
			return apiErr.Error
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return ""
}
