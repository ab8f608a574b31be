package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/evergreeners/internal/apperror"
	"github.com/sakif/evergreeners/internal/github"
	"github.com/sakif/evergreeners/internal/model"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeUsers is an in-memory repository.UserRepository.
type fakeUsers struct {
	mu     sync.Mutex
	byID   map[string]*model.User
	nextID int

	// statsErr makes UpdateGitHubStats fail.
	statsErr    error
	statsWrites int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*model.User{}}
}

func (f *fakeUsers) add(u model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("user-%d", f.nextID)
	}
	f.byID[u.ID] = &u
	return &u
}

func (f *fakeUsers) get(id string) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byID[id]
}

func (f *fakeUsers) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	for _, existing := range f.byID {
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			f.mu.Unlock()
			return apperror.Conflict("a user with this email already exists")
		}
	}
	f.mu.Unlock()

	stored := f.add(*u)
	*u = *stored
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if email != "" && strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	setS := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setB := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setS(&u.Name, upd.Name)
	setS(&u.Username, upd.Username)
	setS(&u.Bio, upd.Bio)
	setS(&u.Location, upd.Location)
	setS(&u.Website, upd.Website)
	setS(&u.Image, upd.Image)
	setB(&u.IsPublic, upd.IsPublic)
	setS(&u.AnonymousName, upd.AnonymousName)
	setB(&u.GitHubSyncEnabled, upd.GitHubSyncEnabled)
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateGitHubStats(_ context.Context, id string, s model.GitHubStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return f.statsErr
	}
	u, ok := f.byID[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	f.statsWrites++
	u.GitHubUsername = s.Username
	u.GitHubStreak = s.Streak
	u.GitHubTotalCommits = s.TotalCommits
	u.GitHubTodayCommits = s.TodayCommits
	u.GitHubContributionData = s.ContributionData
	if u.GitHubSyncedAt == nil || u.GitHubSyncedAt.Before(s.SyncedAt) {
		t := s.SyncedAt
		u.GitHubSyncedAt = &t
	}
	u.IsGitHubConnected = true
	return nil
}

func (f *fakeUsers) MarkGitHubConnected(_ context.Context, id, login, image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.GitHubUsername = login
	u.IsGitHubConnected = true
	if u.Image == "" {
		u.Image = image
	}
	return nil
}

func (f *fakeUsers) ListSyncEligible(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, u := range f.byID {
		if u.IsGitHubConnected && u.GitHubSyncEnabled {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// fakeAccounts is an in-memory repository.AccountRepository.
type fakeAccounts struct {
	mu   sync.Mutex
	rows []*model.Account
}

func (f *fakeAccounts) GetAccount(_ context.Context, userID, providerID string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.UserID == userID && a.ProviderID == providerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("account", userID)
}

func (f *fakeAccounts) GetAccountByProviderID(_ context.Context, providerID, accountID string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.ProviderID == providerID && a.AccountID == accountID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("account", accountID)
}

func (f *fakeAccounts) UpsertAccount(_ context.Context, acc *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.UserID == acc.UserID && a.ProviderID == acc.ProviderID {
			a.AccountID = acc.AccountID
			a.AccessToken = acc.AccessToken
			acc.ID = a.ID
			return nil
		}
	}
	acc.ID = fmt.Sprintf("acc-%d", len(f.rows)+1)
	cp := *acc
	f.rows = append(f.rows, &cp)
	return nil
}

// fakeGitHub returns canned data and counts calls.
type fakeGitHub struct {
	user     *github.User
	calendar *github.Calendar
	userErr  error
	calErr   error

	mu        sync.Mutex
	userCalls int
	calCalls  int
	lastToken string
	lastLogin string
}

func (f *fakeGitHub) FetchUser(_ context.Context, token string) (*github.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	f.lastToken = token
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeGitHub) FetchContributions(_ context.Context, login, token string) (*github.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calCalls++
	f.lastLogin = login
	if f.calErr != nil {
		return nil, f.calErr
	}
	return f.calendar, nil
}

type fakeExchanger struct {
	token string
	err   error
	codes []string
}

func (f *fakeExchanger) Exchange(_ context.Context, code string) (string, error) {
	f.codes = append(f.codes, code)
	return f.token, f.err
}

// recordingObserver collects sync outcomes.
type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveSync(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}
