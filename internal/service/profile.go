package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/evergreeners/internal/apperror"
	"github.com/sakif/evergreeners/internal/model"
	"github.com/sakif/evergreeners/internal/repository"
	"github.com/sakif/evergreeners/internal/streak"
)

// Profile field limits.
const (
	MaxNameLength      = 100
	MaxUsernameLength  = 39 // GitHub's own limit
	MaxBioLength       = 500
	MaxFieldLength     = 255
	MaxImageURLLength  = 2048
	MaxImageDataLength = 5 << 20 // inline base64 "data:image/..." avatars
)

var (
	aliasAdjectives = []string{"Hidden", "Secret", "Silent", "Quiet", "Mysterious"}
	aliasNouns      = []string{"Tree", "Leaf", "Sprout", "Root", "Seed"}
)

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	users  repository.UserRepository
	logger *slog.Logger
	intN   func(n int) int
	now    func() time.Time
}

func NewProfileService(users repository.UserRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		users:  users,
		logger: logger,
		intN:   rand.IntN,
		now:    time.Now,
	}
}

// ProfileUpdateResult is what PUT /api/user/profile reports back.
// AnonymousName is only set when the request wrote one, either supplied or
// generated.
type ProfileUpdateResult struct {
	User          *model.User
	AnonymousName string
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading user: %w", err)
	}
	return user, nil
}

// Update applies upd. Going private without an alias on record or in the
// request gets a generated one such as "QuietSeed42", so a private profile
// is never shown without a name.
func (s *ProfileService) Update(ctx context.Context, userID string, upd model.ProfileUpdate) (*ProfileUpdateResult, error) {
	if err := validateProfile(upd); err != nil {
		return nil, err
	}

	if upd.IsPublic != nil && !*upd.IsPublic {
		current, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("service/profile: loading user: %w", err)
		}
		if current.AnonymousName == "" && (upd.AnonymousName == nil || *upd.AnonymousName == "") {
			alias := s.GenerateAlias()
			upd.AnonymousName = &alias
			s.logger.Debug("generated anonymous name", slog.String("userID", userID), slog.String("alias", alias))
		}
	}

	user, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, fmt.Errorf("service/profile: updating user: %w", err)
	}

	res := &ProfileUpdateResult{User: user}
	if upd.AnonymousName != nil {
		res.AnonymousName = *upd.AnonymousName
	}
	return res, nil
}

// GenerateAlias returns <Adjective><Noun><0..999>.
func (s *ProfileService) GenerateAlias() string {
	return fmt.Sprintf("%s%s%d",
		aliasAdjectives[s.intN(len(aliasAdjectives))],
		aliasNouns[s.intN(len(aliasNouns))],
		s.intN(1000),
	)
}

// Analytics derives the dashboard figures from the stored calendar.
// A goal below 1 is treated as 1.
func (s *ProfileService) Analytics(ctx context.Context, userID string, goal int) (*streak.Analytics, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading user: %w", err)
	}
	a := streak.Analyze(user.GitHubContributionData, s.now(), goal)
	return &a, nil
}

func validateProfile(upd model.ProfileUpdate) error {
	checks := []struct {
		field string
		value *string
		max   int
	}{
		{"name", upd.Name, MaxNameLength},
		{"username", upd.Username, MaxUsernameLength},
		{"bio", upd.Bio, MaxBioLength},
		{"location", upd.Location, MaxFieldLength},
		{"website", upd.Website, MaxFieldLength},
		{"image", upd.Image, imageLimit(upd.Image)},
		{"anonymousName", upd.AnonymousName, MaxNameLength},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		if utf8.RuneCountInString(*c.value) > c.max {
			return apperror.ValidationFailed(c.field, fmt.Sprintf("%s must be %d characters or fewer", c.field, c.max))
		}
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return apperror.ValidationFailed("name", "name cannot be empty")
	}
	return nil
}

// imageLimit allows inline avatars far more room than a plain URL.
func imageLimit(image *string) int {
	if image != nil && strings.HasPrefix(*image, "data:image/") {
		return MaxImageDataLength
	}
	return MaxImageURLLength
}
