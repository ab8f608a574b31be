package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/sakif/evergreeners/internal/auth"
	"github.com/sakif/evergreeners/internal/github"
	"github.com/sakif/evergreeners/internal/model"
	"github.com/sakif/evergreeners/internal/repository/sqlite"
	"github.com/sakif/evergreeners/internal/service"
)

const testFrontendURL = "http://app.test"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fixture wires the real services to an in-memory database and a fake
// GitHub that serves both the OAuth token endpoint and the API.
type fixture struct {
	db       *sqlite.DB
	tokens   *auth.TokenService
	authH    *AuthHandler
	userH    *UserHandler
	healthH  *HealthHandler
	ghCalls  atomic.Int32
	ghFailed atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	f := &fixture{db: db, tokens: tokens}

	gh := httptest.NewServer(http.HandlerFunc(f.serveGitHub))
	t.Cleanup(gh.Close)

	client := github.NewClient(gh.URL, github.WithHTTPClient(gh.Client()))
	provider := auth.NewGitHubProvider("client-id", "client-secret", "http://api.test/api/auth/github/callback").
		WithEndpoint(oauth2.Endpoint{
			AuthURL:   gh.URL + "/login/oauth/authorize",
			TokenURL:  gh.URL + "/login/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		})

	syncSvc := service.NewSyncService(db, db, client, nil, discardLogger)
	authSvc := service.NewAuthService(db, db, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), client, discardLogger)
	profiles := service.NewProfileService(db, discardLogger)

	f.authH = NewAuthHandler(authSvc, syncSvc, provider, tokens, AuthConfig{FrontendURL: testFrontendURL + "/"}, discardLogger)
	f.userH = NewUserHandler(syncSvc, profiles, time.Hour, discardLogger)
	f.healthH = NewHealthHandler(db, discardLogger)
	return f
}

func (f *fixture) serveGitHub(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/login/oauth/access_token":
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	case "/user":
		w.Write([]byte(`{"id":42,"login":"octocat","name":"Octo Cat","email":"octo@github.com","avatar_url":"https://avatars.test/42"}`))
	case "/graphql":
		f.ghCalls.Add(1)
		if f.ghFailed.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(calendarJSON(time.Now().UTC())))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// calendarJSON has 2 contributions yesterday and 3 today.
func calendarJSON(now time.Time) string {
	return fmt.Sprintf(`{"data":{"user":{"contributionsCollection":{"contributionCalendar":{
		"totalContributions":5,
		"weeks":[{"contributionDays":[
			{"contributionCount":2,"date":%q},
			{"contributionCount":3,"date":%q}
		]}]}}}}}`,
		now.AddDate(0, 0, -1).Format(time.DateOnly),
		now.Format(time.DateOnly),
	)
}

// createUser inserts an email user without going through sign-up.
func (f *fixture) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{Name: "User " + email, Email: email, IsPublic: true, GitHubSyncEnabled: true}
	require.NoError(t, f.db.CreateUser(context.Background(), u))
	return u
}

// linkGitHub stores a GitHub account for userID, as the callback would.
func (f *fixture) linkGitHub(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, f.db.UpsertAccount(context.Background(), &model.Account{
		UserID:      userID,
		ProviderID:  model.ProviderGitHub,
		AccountID:   "42",
		AccessToken: "gho_test",
	}))
}

// authedRequest builds a request as RequireAuth would pass it on.
func authedRequest(method, target, body, userID string) *http.Request {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
