package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/evergreeners/internal/apperror"
	"github.com/sakif/evergreeners/internal/auth"
	"github.com/sakif/evergreeners/internal/model"
	"github.com/sakif/evergreeners/internal/service"
)

// stateCookieMaxAge bounds how long a user may sit on GitHub's consent page.
const stateCookieMaxAge = 600

// AuthConfig carries the deployment settings the auth endpoints need.
type AuthConfig struct {
	// FrontendURL is prefixed to every post-login redirect.
	FrontendURL string
	// SecureCookies sets the Secure flag; enable behind HTTPS.
	SecureCookies bool
}

// AuthHandler serves /api/auth/*.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignUp / HandleSignIn  → email + password, issue the session cookie
//   - HandleSignOut                → clear the session cookie
//   - HandleGetSession             → report who the cookie belongs to
//   - HandleGitHubLogin            → redirect to GitHub with an encoded state
//   - HandleGitHubCallback         → link or sign in, then redirect to the frontend
type AuthHandler struct {
	auth   *service.AuthService
	sync   *service.SyncService
	github *auth.GitHubProvider // nil when GitHub sign-in is not configured
	tokens *auth.TokenService
	cfg    AuthConfig
	logger *slog.Logger
}

func NewAuthHandler(
	authSvc *service.AuthService,
	syncSvc *service.SyncService,
	github *auth.GitHubProvider,
	tokens *auth.TokenService,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthHandler {
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &AuthHandler{
		auth:   authSvc,
		sync:   syncSvc,
		github: github,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User *model.User `json:"user"`
}

// HandleSignUp creates an email/password user and signs it in.
//
// HTTP: POST /api/auth/sign-up/email
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.SignUpEmail(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.logFailure("sign-up failed", err)
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, sessionResponse{User: res.User})
}

// HandleSignIn checks an email/password pair.
//
// HTTP: POST /api/auth/sign-in/email
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.SignInEmail(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logFailure("sign-in failed", err)
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, sessionResponse{User: res.User})
}

// HandleSignOut clears the session cookie. Tokens are stateless, so there is
// nothing to revoke server-side.
//
// HTTP: POST /api/auth/sign-out
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, auth.SessionCookie)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleGetSession returns {"user": ...} for a valid session and null
// otherwise. Mounted behind OptionalAuth.
//
// HTTP: GET /api/auth/get-session
func (h *AuthHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		// A token for a user that no longer exists is just a stale session.
		if errors.Is(err, apperror.ErrNotFound) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		h.logger.Error("get-session: loading user", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: user})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login?redirectTo=/settings&scrollY=420
//
// The state parameter is base64url JSON carrying a random nonce plus where
// to send the user afterwards. The nonce is also stored in a short-lived
// HttpOnly cookie; the callback only proceeds when the two match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := auth.NewOAuthState(q.Get("redirectTo"), q.Get("scrollY"))

	encoded, err := state.Encode()
	if err != nil {
		h.logger.Error("github login: encoding state", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookie,
		Value:    state.Nonce,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(encoded), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Decode the state and compare its nonce with the state cookie
//  2. Link the GitHub account to the signed-in user, or sign in / register
//  3. Issue the session cookie
//  4. Run a first sync so the dashboard is not empty (failures only logged)
//  5. Redirect to FrontendURL + redirectTo, with scrollY when present
//
// Problems after the state check redirect with ?error=<code> so the frontend
// can show them; a bad state is answered with 400 since we cannot know where
// the user came from.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state, err := auth.DecodeOAuthState(q.Get("state"))
	if err != nil {
		h.logger.Warn("github callback: bad state", slog.String("error", err.Error()))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	nonce, err := r.Cookie(auth.StateCookie)
	if err != nil || nonce.Value == "" || nonce.Value != state.Nonce {
		h.logger.Warn("github callback: state cookie missing or mismatched")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	h.clearCookie(w, auth.StateCookie)

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		h.redirectToFrontend(w, r, state, "access_denied")
		return
	}

	currentUserID, _ := auth.UserIDFromContext(r.Context())
	res, err := h.auth.CompleteGitHubOAuth(r.Context(), h.github, q.Get("code"), currentUserID)
	if err != nil {
		h.logFailure("github callback failed", err)
		code := "github_auth_failed"
		if errors.Is(err, apperror.ErrConflict) {
			code = "account_already_linked"
		}
		h.redirectToFrontend(w, r, state, code)
		return
	}

	h.setSessionCookie(w, res.Token)

	// SyncOne logs its own failures; the login succeeded either way.
	h.sync.SyncOne(r.Context(), res.User.ID)

	h.redirectToFrontend(w, r, state, "")
}

func (h *AuthHandler) redirectToFrontend(w http.ResponseWriter, r *http.Request, state auth.OAuthState, errCode string) {
	target, err := url.Parse(h.cfg.FrontendURL + state.RedirectTo)
	if err != nil {
		target = &url.URL{Path: "/"}
	}

	q := target.Query()
	if state.ScrollY != "" {
		q.Set("scrollY", state.ScrollY)
	}
	if errCode != "" {
		q.Set("error", errCode)
	}
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// logFailure logs client mistakes at Info and everything else at Error.
func (h *AuthHandler) logFailure(msg string, err error) {
	if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrUnauthorized) || errors.Is(err, apperror.ErrConflict) {
		h.logger.Info(msg, slog.String("error", err.Error()))
		return
	}
	h.logger.Error(msg, slog.String("error", err.Error()))
}
