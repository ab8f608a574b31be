// Package github fetches a user's profile and contribution calendar from the
// GitHub API.
//
// HOW AUTHENTICATION WORKS HERE:
// Every call is made on behalf of a user with the access token we stored when
// they linked their account. oauth2.NewClient wraps an *http.Client whose
// transport adds "Authorization: Bearer <token>" to each request, the same
// mechanism the OAuth provider uses right after the code exchange.
//
// FAILURE POLICY:
// One attempt per call. Any non-2xx status, undecodable body or GraphQL error
// payload is returned as an error; there is no retry and no partial result.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sakif/evergreeners/internal/model"
)

// DefaultBaseURL is the public GitHub API. Tests point the client at an
// httptest.Server instead.
const DefaultBaseURL = "https://api.github.com"

// DefaultUserAgent is sent on every request; GitHub rejects requests without one.
const DefaultUserAgent = "Evergreeners-App"

// contributionsQuery is the only GraphQL query shape we send.
const contributionsQuery = `
query($username: String!) {
  user(login: $username) {
    contributionsCollection {
      contributionCalendar {
        totalContributions
        weeks {
          contributionDays {
            contributionCount
            date
          }
        }
      }
    }
  }
}`

// User is the part of GitHub's /user response we use.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Calendar is a flattened contribution calendar.
// Days are ordered newest first.
type Calendar struct {
	Total int
	Days  []model.ContributionDay
}

// Client talks to the GitHub REST and GraphQL endpoints.
type Client struct {
	baseURL   string
	userAgent string
	// base is the transport-level client wrapped by oauth2. nil means
	// http.DefaultClient.
	base *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying client the bearer-token transport wraps.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.base = hc }
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient returns a Client for the given API base URL. An empty baseURL
// means DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchUser returns the profile of the token's owner (GET /user).
func (c *Client) FetchUser(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("github: building /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.do(ctx, token, req)
	if err != nil {
		return nil, fmt.Errorf("github: calling /user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github: /user returned status %d", resp.StatusCode)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("github: decoding /user response: %w", err)
	}
	if u.Login == "" {
		return nil, fmt.Errorf("github: /user response has no login")
	}
	return &u, nil
}

// graphQLResponse mirrors the JSON shape of contributionsQuery's result.
type graphQLResponse struct {
	Data struct {
		User *struct {
			ContributionsCollection struct {
				ContributionCalendar struct {
					TotalContributions int `json:"totalContributions"`
					Weeks              []struct {
						ContributionDays []model.ContributionDay `json:"contributionDays"`
					} `json:"weeks"`
				} `json:"contributionCalendar"`
			} `json:"contributionsCollection"`
		} `json:"user"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchContributions returns the contribution calendar of login, newest day
// first, together with GitHub's own total.
func (c *Client) FetchContributions(ctx context.Context, login, token string) (*Calendar, error) {
	body, err := json.Marshal(map[string]any{
		"query":     contributionsQuery,
		"variables": map[string]string{"username": login},
	})
	if err != nil {
		return nil, fmt.Errorf("github: encoding GraphQL query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("github: building GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, token, req)
	if err != nil {
		return nil, fmt.Errorf("github: calling GraphQL API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("github: GraphQL API failed with status %d", resp.StatusCode)
	}

	var gr graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("github: decoding GraphQL response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return nil, fmt.Errorf("github: GraphQL error: %s", gr.Errors[0].Message)
	}
	if gr.Data.User == nil {
		return nil, fmt.Errorf("github: no GitHub user %q", login)
	}

	cc := gr.Data.User.ContributionsCollection.ContributionCalendar
	var days []model.ContributionDay
	for _, w := range cc.Weeks {
		days = append(days, w.ContributionDays...)
	}
	// GitHub returns oldest first; everything downstream wants newest first.
	slices.Reverse(days)

	return &Calendar{Total: cc.TotalContributions, Days: days}, nil
}

// do sends req with the user's bearer token and our User-Agent.
func (c *Client) do(ctx context.Context, token string, req *http.Request) (*http.Response, error) {
	if c.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	req.Header.Set("User-Agent", c.userAgent)
	return hc.Do(req)
}
