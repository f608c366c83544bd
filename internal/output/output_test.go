package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{CodeUsage, ExitUsage},
		{CodeNotFound, ExitNotFound},
		{CodeAuth, ExitAuth},
		{CodeSession, ExitSession},
		{CodeLogin, ExitLogin},
		{CodeRateLimit, ExitRateLimit},
		{CodeNetwork, ExitNetwork},
		{CodeAPI, ExitAPI},
		{"bogus", ExitAPI},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCodeFor(tt.code))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	e := ErrAuth("Not logged in")
	assert.Equal(t, CodeAuth, e.Code)
	assert.Contains(t, e.Error(), "Not logged in")
	assert.Contains(t, e.Error(), "hostfleet login")
	assert.Equal(t, ExitAuth, e.ExitCode())
}

func TestErrSessionExpiredDistinctFromLogin(t *testing.T) {
	session := ErrSessionExpired()
	login := ErrLoginFailed("bad credentials")

	assert.NotEqual(t, session.Code, login.Code)
	assert.Equal(t, ExitSession, session.ExitCode())
	assert.Equal(t, ExitLogin, login.ExitCode())
}

func TestErrLoginFailedFallbackMessage(t *testing.T) {
	e := ErrLoginFailed("")
	assert.Equal(t, "Login failed", e.Message)
}

func TestAsError(t *testing.T) {
	structured := ErrNotFound("Profile", "demo")
	assert.Same(t, structured, AsError(structured))

	plain := errors.New("boom")
	converted := AsError(plain)
	assert.Equal(t, CodeAPI, converted.Code)
	assert.Equal(t, "boom", converted.Message)
}

func TestWriterJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	require.NoError(t, w.OK(map[string]string{"name": "demo"}, WithSummary("1 profile")))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "1 profile", resp.Summary)
}

func TestWriterQuietOmitsEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatQuiet, Writer: &buf})

	require.NoError(t, w.OK(map[string]string{"name": "demo"}))
	assert.NotContains(t, buf.String(), `"ok"`)
	assert.Contains(t, buf.String(), `"name": "demo"`)
}

func TestWriterYAML(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatYAML, Writer: &buf})

	require.NoError(t, w.OK(map[string]string{"name": "demo"}))
	assert.Contains(t, buf.String(), "ok: true")
	assert.Contains(t, buf.String(), "name: demo")
}

func TestWriterErrEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	require.NoError(t, w.Err(ErrSessionExpired()))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, CodeSession, resp.Code)
	assert.True(t, strings.Contains(resp.Hint, "login"))
}
