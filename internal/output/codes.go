// Package output provides JSON/YAML output formatting and error handling.
package output

// Exit codes reported to the shell.
const (
	ExitOK        = 0 // Success
	ExitUsage     = 1 // Invalid arguments or flags
	ExitNotFound  = 2 // Resource not found
	ExitAuth      = 3 // Not authenticated
	ExitSession   = 4 // Session expired (refresh rejected)
	ExitLogin     = 5 // Server rejected credentials
	ExitRateLimit = 6 // Rate limited (429)
	ExitNetwork   = 7 // Connection/DNS/timeout error
	ExitAPI       = 8 // Server returned error
)

// Error codes for the JSON envelope.
const (
	CodeUsage     = "usage"
	CodeNotFound  = "not_found"
	CodeAuth      = "auth_required"
	CodeSession   = "session_expired"
	CodeLogin     = "login_failed"
	CodeRateLimit = "rate_limit"
	CodeNetwork   = "network"
	CodeAPI       = "api_error"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeSession:
		return ExitSession
	case CodeLogin:
		return ExitLogin
	case CodeRateLimit:
		return ExitRateLimit
	case CodeNetwork:
		return ExitNetwork
	case CodeAPI:
		return ExitAPI
	default:
		return ExitAPI
	}
}
