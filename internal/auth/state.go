package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StateCookie holds the nonce of an in-flight OAuth login so the callback
// can check that the state it receives was issued to this browser.
const StateCookie = "oauth_state"

// OAuthState travels through GitHub inside the "state" query parameter as
// base64url-encoded JSON. RedirectTo and ScrollY let the frontend land the
// user where they started the flow.
type OAuthState struct {
	Nonce      string `json:"nonce"`
	RedirectTo string `json:"redirectTo,omitempty"`
	ScrollY    string `json:"scrollY,omitempty"`
}

// NewOAuthState returns a state with a fresh random nonce. redirectTo is
// passed through SafeRedirect.
func NewOAuthState(redirectTo, scrollY string) OAuthState {
	return OAuthState{
		Nonce:      uuid.NewString(),
		RedirectTo: SafeRedirect(redirectTo),
		ScrollY:    scrollY,
	}
}

// Encode returns the value to send as the OAuth "state" parameter.
func (s OAuthState) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("auth: encoding OAuth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeOAuthState parses a state parameter produced by Encode.
// A state without a nonce is rejected.
func DecodeOAuthState(raw string) (OAuthState, error) {
	var s OAuthState
	if raw == "" {
		return s, errors.New("auth: missing OAuth state")
	}

	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return s, fmt.Errorf("auth: OAuth state is not base64url: %w", err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("auth: OAuth state is not JSON: %w", err)
	}
	if s.Nonce == "" {
		return s, errors.New("auth: OAuth state has no nonce")
	}
	s.RedirectTo = SafeRedirect(s.RedirectTo)
	return s, nil
}

// SafeRedirect only lets same-site relative paths through. Anything else,
// including protocol-relative "//host" URLs, becomes "/".
func SafeRedirect(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") {
		return "/"
	}
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, `/\`) {
		return "/"
	}
	return path
}
