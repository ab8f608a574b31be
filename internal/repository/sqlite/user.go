package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/evergreeners/internal/apperror"
	"github.com/sakif/evergreeners/internal/model"
	"github.com/sakif/evergreeners/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// userColumns is shared by every SELECT so scanUser stays in step with it.
const userColumns = `id, name, email, email_verified, password_hash, image, username, bio,
	location, website, is_public, anonymous_name,
	github_username, is_github_connected, github_sync_enabled, github_synced_at,
	github_streak, github_total_commits, github_today_commits, github_contribution_data,
	created_at, updated_at`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u                    model.User
		syncedAt             sql.NullString
		contribJSON          string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.PasswordHash, &u.Image, &u.Username, &u.Bio,
		&u.Location, &u.Website, &u.IsPublic, &u.AnonymousName,
		&u.GitHubUsername, &u.IsGitHubConnected, &u.GitHubSyncEnabled, &syncedAt,
		&u.GitHubStreak, &u.GitHubTotalCommits, &u.GitHubTodayCommits, &contribJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if syncedAt.Valid && syncedAt.String != "" {
		t, err := parseTime(syncedAt.String)
		if err != nil {
			return nil, err
		}
		u.GitHubSyncedAt = &t
	}
	if err := json.Unmarshal([]byte(contribJSON), &u.GitHubContributionData); err != nil {
		return nil, fmt.Errorf("sqlite: decoding contribution data of user %s: %w", u.ID, err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts user, assigning ID and timestamps. A duplicate non-empty
// email is reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.GitHubContributionData == nil {
		user.GitHubContributionData = []model.ContributionDay{}
	}

	contrib, err := json.Marshal(user.GitHubContributionData)
	if err != nil {
		return fmt.Errorf("sqlite: encoding contribution data: %w", err)
	}
	var syncedAt any
	if user.GitHubSyncedAt != nil {
		syncedAt = formatTime(*user.GitHubSyncedAt)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.EmailVerified, user.PasswordHash, user.Image,
		user.Username, user.Bio, user.Location, user.Website, user.IsPublic, user.AnonymousName,
		user.GitHubUsername, user.IsGitHubConnected, user.GitHubSyncEnabled, syncedAt,
		user.GitHubStreak, user.GitHubTotalCommits, user.GitHubTodayCommits, string(contrib),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("a user with this email already exists")
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound for an unknown id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail matches case-insensitively. An empty email never matches.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.NotFound("user", email)
	}
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpdateProfile builds the SET clause from the fields present in upd, so
// fields the client did not send keep their stored values.
func (db *DB) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	var (
		sets []string
		args []any
	)
	setString := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	setBool := func(col string, v *bool) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}

	setString("name", upd.Name)
	setString("username", upd.Username)
	setString("bio", upd.Bio)
	setString("location", upd.Location)
	setString("website", upd.Website)
	setString("image", upd.Image)
	setBool("is_public", upd.IsPublic)
	setString("anonymous_name", upd.AnonymousName)
	setBool("github_sync_enabled", upd.GitHubSyncEnabled)

	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()), id)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating profile of user %s: %w", id, err)
	}
	if err := requireRow(res, "user", id); err != nil {
		return nil, err
	}
	return db.GetUserByID(ctx, id)
}

// UpdateGitHubStats writes a sync result. A result older than the stored
// github_synced_at (a slow sync finishing after a newer one) writes nothing,
// so the stats always belong to the calendar the timestamp names.
func (db *DB) UpdateGitHubStats(ctx context.Context, id string, stats model.GitHubStats) error {
	days := stats.ContributionData
	if days == nil {
		days = []model.ContributionDay{}
	}
	contrib, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("sqlite: encoding contribution data: %w", err)
	}
	syncedAt := formatTime(stats.SyncedAt)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
			github_username = ?,
			github_streak = ?,
			github_total_commits = ?,
			github_today_commits = ?,
			github_contribution_data = ?,
			github_synced_at = ?,
			is_github_connected = 1,
			updated_at = ?
		 WHERE id = ? AND (github_synced_at IS NULL OR github_synced_at <= ?)`,
		stats.Username, stats.Streak, stats.TotalCommits, stats.TodayCommits, string(contrib),
		syncedAt, formatTime(time.Now()), id, syncedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating GitHub stats of user %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	// Nothing written: either the user is gone or a newer sync already landed.
	return db.requireUser(ctx, id)
}

func (db *DB) requireUser(ctx context.Context, id string) error {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("user", id)
	}
	if err != nil {
		return fmt.Errorf("sqlite: checking user %s: %w", id, err)
	}
	return nil
}

// MarkGitHubConnected is called right after an OAuth link.
func (db *DB) MarkGitHubConnected(ctx context.Context, id, githubUsername, image string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
			github_username = ?,
			is_github_connected = 1,
			image = CASE WHEN image = '' THEN ? ELSE image END,
			updated_at = ?
		 WHERE id = ?`,
		githubUsername, image, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking user %s GitHub-connected: %w", id, err)
	}
	return requireRow(res, "user", id)
}

// ListSyncEligible returns IDs in a stable order so batch runs are
// reproducible.
func (db *DB) ListSyncEligible(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM users
		 WHERE is_github_connected = 1 AND github_sync_enabled = 1
		 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing sync-eligible users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return ids, nil
}

// requireRow turns "0 rows affected" into apperror.ErrNotFound.
func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
