package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncGitHub(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com")

	t.Run("no linked account", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.userH.HandleSyncGitHub(rec, authedRequest(http.MethodPost, "/api/user/sync-github", "", u.ID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"precondition_failed","message":"No connected GitHub account found."}`, rec.Body.String())
	})

	f.linkGitHub(t, u.ID)

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.userH.HandleSyncGitHub(rec, authedRequest(http.MethodPost, "/api/user/sync-github", "", u.ID))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp syncResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "octocat", resp.Username)
		assert.Equal(t, 2, resp.Streak)
		assert.Equal(t, 5, resp.TotalCommits)
		assert.Equal(t, 3, resp.TodayCommits)
		assert.Len(t, resp.ContributionData, 2)
		assert.False(t, resp.SyncedAt.IsZero())
	})

	t.Run("upstream failure", func(t *testing.T) {
		f.ghFailed.Store(true)
		defer f.ghFailed.Store(false)

		rec := httptest.NewRecorder()
		f.userH.HandleSyncGitHub(rec, authedRequest(http.MethodPost, "/api/user/sync-github", "", u.ID))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"sync_failed","message":"Failed to sync with GitHub"}`, rec.Body.String())
	})
}

func TestSyncGitHubCached(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com")
	f.linkGitHub(t, u.ID)

	call := func() cachedSyncResponse {
		t.Helper()
		rec := httptest.NewRecorder()
		f.userH.HandleSyncGitHubCached(rec, authedRequest(http.MethodPost, "/api/user/sync-github-cached", "", u.ID))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp cachedSyncResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	first := call()
	assert.False(t, first.Cached)
	assert.Equal(t, "Synced fresh data", first.Message)
	assert.Equal(t, "octocat", first.Data.Username)
	require.NotNil(t, first.Data.SyncedAt)

	second := call()
	assert.True(t, second.Cached)
	assert.Equal(t, "Using cached data", second.Message)
	assert.Equal(t, first.Data.TotalCommits, second.Data.TotalCommits)
	assert.Equal(t, int32(1), f.ghCalls.Load(), "second call must not reach GitHub")
}

func TestSyncGitHubCached_Errors(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.userH.HandleSyncGitHubCached(rec, authedRequest(http.MethodPost, "/api/user/sync-github-cached", "", "missing"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no linked account", func(t *testing.T) {
		u := f.createUser(t, "plain@example.com")
		rec := httptest.NewRecorder()
		f.userH.HandleSyncGitHubCached(rec, authedRequest(http.MethodPost, "/api/user/sync-github-cached", "", u.ID))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProfile_GetAndUpdate(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com")

	rec := httptest.NewRecorder()
	f.userH.HandleUpdateProfile(rec, authedRequest(http.MethodPut, "/api/user/profile",
		`{"bio":"gardening commits","isPublic":false}`, u.ID))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var upd profileUpdateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&upd))
	assert.True(t, upd.Success)
	assert.Equal(t, "Profile updated successfully", upd.Message)
	assert.NotEmpty(t, upd.AnonymousName, "going private generates an alias")

	rec = httptest.NewRecorder()
	f.userH.HandleGetProfile(rec, authedRequest(http.MethodGet, "/api/user/profile", "", u.ID))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		User struct {
			Bio           string `json:"bio"`
			IsPublic      bool   `json:"isPublic"`
			AnonymousName string `json:"anonymousName"`
			Email         string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "gardening commits", got.User.Bio)
	assert.False(t, got.User.IsPublic)
	assert.Equal(t, upd.AnonymousName, got.User.AnonymousName)
	assert.Equal(t, "ada@example.com", got.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestUpdateProfile_InlineAvatar(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com")
	// Larger than the default body cap, well inside the profile one.
	avatar := "data:image/jpeg;base64," + strings.Repeat("/9j/4AAQSkZJRg", 100_000)

	rec := httptest.NewRecorder()
	f.userH.HandleUpdateProfile(rec, authedRequest(http.MethodPut, "/api/user/profile",
		`{"image":"`+avatar+`"}`, u.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	f.userH.HandleGetProfile(rec, authedRequest(http.MethodGet, "/api/user/profile", "", u.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		User struct {
			Image string `json:"image"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, avatar, got.User.Image)
}

func TestUpdateProfile_BodyTooLarge(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com")

	rec := httptest.NewRecorder()
	f.userH.HandleUpdateProfile(rec, authedRequest(http.MethodPut, "/api/user/profile",
		`{"image":"data:image/png;base64,`+strings.Repeat("A", maxProfileBodyBytes)+`"}`, u.ID))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "must not exceed")
}

func TestUpdateProfile_BadRequests(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com")

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"bio":`},
		{"two objects", `{"bio":"a"}{"bio":"b"}`},
		{"name too long", `{"name":"` + strings.Repeat("x", 101) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.userH.HandleUpdateProfile(rec, authedRequest(http.MethodPut, "/api/user/profile", tt.body, u.ID))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":"validation_error"`)
		})
	}
}

func TestGetProfile_UnknownUser(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.userH.HandleGetProfile(rec, authedRequest(http.MethodGet, "/api/user/profile", "", "missing"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com")
	f.linkGitHub(t, u.ID)

	rec := httptest.NewRecorder()
	f.userH.HandleSyncGitHub(rec, authedRequest(http.MethodPost, "/api/user/sync-github", "", u.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("default goal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.userH.HandleAnalytics(rec, authedRequest(http.MethodGet, "/api/user/analytics", "", u.ID))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			CurrentStreak int `json:"currentStreak"`
			TotalCommits  int `json:"totalCommits"`
			Goal          struct {
				Current int `json:"current"`
				Target  int `json:"target"`
			} `json:"goal"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 2, resp.CurrentStreak)
		assert.Equal(t, 1, resp.Goal.Target)
	})

	t.Run("explicit goal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.userH.HandleAnalytics(rec, authedRequest(http.MethodGet, "/api/user/analytics?goal=7", "", u.ID))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"target":7`)
	})

	for _, goal := range []string{"0", "-1", "seven"} {
		t.Run("bad goal "+goal, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.userH.HandleAnalytics(rec, authedRequest(http.MethodGet, "/api/user/analytics?goal="+goal, "", u.ID))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
