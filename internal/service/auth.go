package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"

	"github.com/sakif/evergreeners/internal/apperror"
	"github.com/sakif/evergreeners/internal/auth"
	"github.com/sakif/evergreeners/internal/model"
	"github.com/sakif/evergreeners/internal/repository"
)

// AuthService implements sign-up, sign-in and GitHub linking. Handlers turn
// an AuthResult into a session cookie.
type AuthService struct {
	users     repository.UserRepository
	accounts  repository.AccountRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	gh        GitHubAPI
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	accounts repository.AccountRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	gh GitHubAPI,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		accounts:  accounts,
		tokens:    tokens,
		passwords: passwords,
		gh:        gh,
		logger:    logger,
	}
}

// AuthResult bundles the signed-in user with a fresh session token.
type AuthResult struct {
	User  *model.User
	Token string
	// NewUser is set when the call created the user.
	NewUser bool
}

// SignUpEmail creates a password account and signs it in.
func (s *AuthService) SignUpEmail(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckStrength(password); err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Name:              name,
		Email:             addr,
		PasswordHash:      hash,
		IsPublic:          true,
		GitHubSyncEnabled: true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return s.issue(user, true)
}

// SignInEmail checks the password. Unknown email, wrong password and
// password-less (GitHub-only) accounts all produce the same 401 message.
func (s *AuthService) SignInEmail(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := apperror.Unauthorized("Invalid email or password")

	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, invalid
	}
	user, err := s.users.GetUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, invalid
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}
	return s.issue(user, false)
}

// CompleteGitHubOAuth finishes the OAuth callback: it exchanges the code,
// identifies the GitHub user and either links the GitHub account to
// currentUserID (the caller is signed in) or signs in / registers the owner
// of that GitHub account (anonymous caller).
//
// A GitHub identity belongs to at most one user: linking one that is already
// linked elsewhere fails with a conflict.
func (s *AuthService) CompleteGitHubOAuth(ctx context.Context, exchanger CodeExchanger, code, currentUserID string) (*AuthResult, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "missing OAuth code")
	}
	token, err := exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Upstream("GitHub sign-in failed", err)
	}
	ghUser, err := s.gh.FetchUser(ctx, token)
	if err != nil {
		return nil, apperror.Upstream("GitHub sign-in failed", err)
	}
	githubID := strconv.FormatInt(ghUser.ID, 10)

	existing, err := s.accounts.GetAccountByProviderID(ctx, model.ProviderGitHub, githubID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up GitHub account: %w", err)
	}

	var (
		userID  string
		created bool
	)
	switch {
	case currentUserID != "":
		if existing != nil && existing.UserID != currentUserID {
			return nil, apperror.Conflict("This GitHub account is already linked to another user.")
		}
		userID = currentUserID
	case existing != nil:
		userID = existing.UserID
	default:
		user, err := s.registerFromGitHub(ctx, ghUser.Login, ghUser.Name, ghUser.Email, ghUser.AvatarURL)
		if err != nil {
			return nil, err
		}
		userID, created = user.ID, true
	}

	if err := s.accounts.UpsertAccount(ctx, &model.Account{
		UserID:      userID,
		ProviderID:  model.ProviderGitHub,
		AccountID:   githubID,
		AccessToken: token,
	}); err != nil {
		return nil, fmt.Errorf("service/auth: storing GitHub account: %w", err)
	}
	if err := s.users.MarkGitHubConnected(ctx, userID, ghUser.Login, ghUser.AvatarURL); err != nil {
		return nil, fmt.Errorf("service/auth: marking GitHub connected: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	s.logger.Info("GitHub account linked",
		slog.String("userID", userID),
		slog.String("login", ghUser.Login),
		slog.Bool("newUser", created),
	)
	return s.issue(user, created)
}

func (s *AuthService) registerFromGitHub(ctx context.Context, login, name, email, avatar string) (*model.User, error) {
	if name == "" {
		name = login
	}
	email = strings.ToLower(strings.TrimSpace(email))

	if email != "" {
		if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
			return nil, apperror.Conflict("An account with this email already exists. Sign in and connect GitHub from your profile.")
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: checking email: %w", err)
		}
	}

	user := &model.User{
		Name:              name,
		Email:             email,
		EmailVerified:     email != "",
		Image:             avatar,
		Username:          login,
		IsPublic:          true,
		GitHubSyncEnabled: true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}
	return user, nil
}

// GetUserByID returns the user behind a session.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User, created bool) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token, NewUser: created}, nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	return strings.ToLower(addr.Address), nil
}
