package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/evergreeners/internal/apperror"
	"github.com/sakif/evergreeners/internal/model"
	"github.com/sakif/evergreeners/internal/repository"
)

var _ repository.AccountRepository = (*DB)(nil)

const accountColumns = `id, user_id, provider_id, account_id, access_token, created_at, updated_at`

func scanAccount(row scanner) (*model.Account, error) {
	var (
		a                    model.Account
		createdAt, updatedAt string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.ProviderID, &a.AccountID, &a.AccessToken, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount returns the user's account for providerID. When legacy data
// holds several rows, the most recently updated one wins.
func (db *DB) GetAccount(ctx context.Context, userID, providerID string) (*model.Account, error) {
	a, err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE user_id = ? AND provider_id = ?
		 ORDER BY updated_at DESC LIMIT 1`,
		userID, providerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(providerID+" account", userID)
		}
		return nil, fmt.Errorf("sqlite: getting %s account of user %s: %w", providerID, userID, err)
	}
	return a, nil
}

// GetAccountByProviderID finds the account a provider identity is linked
// to, e.g. which user owns GitHub user 583231.
func (db *DB) GetAccountByProviderID(ctx context.Context, providerID, accountID string) (*model.Account, error) {
	a, err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE provider_id = ? AND account_id = ?
		 ORDER BY updated_at DESC LIMIT 1`,
		providerID, accountID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(providerID+" account", accountID)
		}
		return nil, fmt.Errorf("sqlite: getting %s account %s: %w", providerID, accountID, err)
	}
	return a, nil
}

// UpsertAccount runs lookup and write in one transaction so two concurrent
// links for the same user cannot both insert.
func (db *DB) UpsertAccount(ctx context.Context, acc *model.Account) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var (
		existingID string
		createdAt  string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM accounts
		 WHERE user_id = ? AND provider_id = ?
		 ORDER BY updated_at DESC LIMIT 1`,
		acc.UserID, acc.ProviderID,
	).Scan(&existingID, &createdAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		acc.ID = xid.New().String()
		acc.CreatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			acc.ID, acc.UserID, acc.ProviderID, acc.AccountID, acc.AccessToken,
			formatTime(now), formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting %s account for user %s: %w", acc.ProviderID, acc.UserID, err)
		}
	case err != nil:
		return fmt.Errorf("sqlite: looking up %s account of user %s: %w", acc.ProviderID, acc.UserID, err)
	default:
		acc.ID = existingID
		if acc.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE accounts SET account_id = ?, access_token = ?, updated_at = ? WHERE id = ?`,
			acc.AccountID, acc.AccessToken, formatTime(now), acc.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating account %s: %w", acc.ID, err)
		}
	}
	acc.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing account upsert: %w", err)
	}
	return nil
}
