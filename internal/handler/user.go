package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/evergreeners/internal/apperror"
	"github.com/sakif/evergreeners/internal/auth"
	"github.com/sakif/evergreeners/internal/model"
	"github.com/sakif/evergreeners/internal/service"
)

// UserHandler serves the signed-in user's endpoints under /api/user. Every
// route is mounted behind auth.RequireAuth.
type UserHandler struct {
	sync        *service.SyncService
	profiles    *service.ProfileService
	cacheWindow time.Duration
	logger      *slog.Logger
}

// NewUserHandler creates a UserHandler. cacheWindow is how old stored stats
// may be before sync-github-cached goes to GitHub; 0 means
// service.DefaultCacheWindow.
func NewUserHandler(syncSvc *service.SyncService, profiles *service.ProfileService, cacheWindow time.Duration, logger *slog.Logger) *UserHandler {
	if cacheWindow <= 0 {
		cacheWindow = service.DefaultCacheWindow
	}
	return &UserHandler{
		sync:        syncSvc,
		profiles:    profiles,
		cacheWindow: cacheWindow,
		logger:      logger,
	}
}

type syncResponse struct {
	Success          bool                    `json:"success"`
	Username         string                  `json:"username"`
	Streak           int                     `json:"streak"`
	TotalCommits     int                     `json:"totalCommits"`
	TodayCommits     int                     `json:"todayCommits"`
	ContributionData []model.ContributionDay `json:"contributionData"`
	SyncedAt         time.Time               `json:"syncedAt"`
}

// cachedSyncData leaves out the calendar; the dashboard already has it from
// the profile.
type cachedSyncData struct {
	Username     string     `json:"username"`
	Streak       int        `json:"streak"`
	TotalCommits int        `json:"totalCommits"`
	TodayCommits int        `json:"todayCommits"`
	SyncedAt     *time.Time `json:"syncedAt"`
}

type cachedSyncResponse struct {
	Success bool           `json:"success"`
	Cached  bool           `json:"cached"`
	Message string         `json:"message"`
	Data    cachedSyncData `json:"data"`
}

type profileResponse struct {
	User *model.User `json:"user"`
}

type profileUpdateResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	AnonymousName string `json:"anonymousName,omitempty"`
}

// HandleSyncGitHub syncs the caller's GitHub data now.
//
// HTTP: POST /api/user/sync-github
//
// Responses:
//
//	200 {"success":true,"username":...,"streak":...,"contributionData":[...]}
//	400 no GitHub account linked
//	500 GitHub or the database failed
func (h *UserHandler) HandleSyncGitHub(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	res := h.sync.SyncOne(r.Context(), userID)
	if !res.OK() {
		writeSyncError(w, res.Err)
		return
	}

	s := res.Stats
	data := s.ContributionData
	if data == nil {
		data = []model.ContributionDay{}
	}
	writeJSON(w, http.StatusOK, syncResponse{
		Success:          true,
		Username:         s.Username,
		Streak:           s.Streak,
		TotalCommits:     s.TotalCommits,
		TodayCommits:     s.TodayCommits,
		ContributionData: data,
		SyncedAt:         s.SyncedAt,
	})
}

// HandleSyncGitHubCached returns the stored stats when they are recent and
// syncs otherwise.
//
// HTTP: POST /api/user/sync-github-cached
func (h *UserHandler) HandleSyncGitHubCached(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	res, err := h.sync.SyncCached(r.Context(), userID, h.cacheWindow)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	msg := "Synced fresh data"
	if res.Cached {
		msg = "Using cached data"
	}

	var syncedAt *time.Time
	if !res.Stats.SyncedAt.IsZero() {
		t := res.Stats.SyncedAt
		syncedAt = &t
	}

	writeJSON(w, http.StatusOK, cachedSyncResponse{
		Success: true,
		Cached:  res.Cached,
		Message: msg,
		Data: cachedSyncData{
			Username:     res.Stats.Username,
			Streak:       res.Stats.Streak,
			TotalCommits: res.Stats.TotalCommits,
			TodayCommits: res.Stats.TodayCommits,
			SyncedAt:     syncedAt,
		},
	})
}

// HandleGetProfile returns the caller's profile.
//
// HTTP: GET /api/user/profile
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	user, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile failed", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{User: user})
}

// HandleUpdateProfile applies a partial profile update. Absent fields are
// left alone.
//
// HTTP: PUT /api/user/profile
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	var upd model.ProfileUpdate
	if err := readJSONLimit(w, r, &upd, maxProfileBodyBytes); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.profiles.Update(r.Context(), userID, upd)
	if err != nil {
		if !errors.Is(err, apperror.ErrValidation) {
			h.logger.Error("update profile failed", slog.String("userID", userID), slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileUpdateResponse{
		Success:       true,
		Message:       "Profile updated successfully",
		AnonymousName: res.AnonymousName,
	})
}

// HandleAnalytics returns the dashboard figures derived from the stored
// calendar.
//
// HTTP: GET /api/user/analytics?goal=3
func (h *UserHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	goal := 1
	if raw := r.URL.Query().Get("goal"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, apperror.ValidationFailed("goal", "goal must be a positive integer"))
			return
		}
		goal = n
	}

	a, err := h.profiles.Analytics(r.Context(), userID, goal)
	if err != nil {
		h.logger.Error("analytics failed", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// writeSyncError keeps the precondition and not-found messages and reports
// every other failure as "Failed to sync with GitHub".
func writeSyncError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperror.ErrPrecondition) || errors.Is(err, apperror.ErrNotFound) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "sync_failed",
		Message: "Failed to sync with GitHub",
	})
}

// mustUserID reads the ID that RequireAuth stored. Routes in this file are
// never mounted without it.
func mustUserID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
