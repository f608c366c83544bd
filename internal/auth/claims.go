package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Claims are the decoded fields of an access token payload. They are
// extracted strictly for display; the server remains the sole authority on
// token validity, so a decode failure must never influence an authorization
// decision.
type Claims struct {
	Subject  int64  `json:"sub"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Exp      int64  `json:"exp"`
}

// ExpiresAt returns the claim expiry as a time, or the zero time when the
// token carries no exp claim.
func (c *Claims) ExpiresAt() time.Time {
	if c.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(c.Exp, 0)
}

// DecodeClaims decodes the payload segment of a JWT-shaped access token
// without verifying its signature.
func DecodeClaims(accessToken string) (*Claims, error) {
	parts := strings.Split(accessToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token is not a JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("parse token payload: %w", err)
	}
	return &claims, nil
}
