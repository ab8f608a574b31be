package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/evergreeners/internal/apperror"
	"github.com/sakif/evergreeners/internal/model"
)

func TestUpsertAccount_InsertThenUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "acc@example.com")

	first := &model.Account{UserID: u.ID, ProviderID: model.ProviderGitHub, AccountID: "583231", AccessToken: "gho_old"}
	require.NoError(t, db.UpsertAccount(ctx, first))
	require.NotEmpty(t, first.ID)

	second := &model.Account{UserID: u.ID, ProviderID: model.ProviderGitHub, AccountID: "583231", AccessToken: "gho_new"}
	require.NoError(t, db.UpsertAccount(ctx, second))
	assert.Equal(t, first.ID, second.ID, "one account per user and provider")

	got, err := db.GetAccount(ctx, u.ID, model.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, "gho_new", got.AccessToken)

	var rows int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM accounts WHERE user_id = ?`, u.ID).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestGetAccount_NotFound(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "none@example.com")

	_, err := db.GetAccount(context.Background(), u.ID, model.ProviderGitHub)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetAccountByProviderID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "owner@example.com")
	require.NoError(t, db.UpsertAccount(ctx, &model.Account{
		UserID: u.ID, ProviderID: model.ProviderGitHub, AccountID: "42", AccessToken: "t",
	}))

	got, err := db.GetAccountByProviderID(ctx, model.ProviderGitHub, "42")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	_, err = db.GetAccountByProviderID(ctx, model.ProviderGitHub, "43")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpsertAccount_UnknownUserFails(t *testing.T) {
	err := newTestDB(t).UpsertAccount(context.Background(), &model.Account{
		UserID: "ghost", ProviderID: model.ProviderGitHub, AccountID: "1",
	})
	assert.Error(t, err, "foreign key must reject accounts without a user")
}

func TestAccountsCascadeOnUserDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "gone@example.com")
	require.NoError(t, db.UpsertAccount(ctx, &model.Account{UserID: u.ID, ProviderID: model.ProviderGitHub, AccountID: "7"}))

	_, err := db.conn.Exec(`DELETE FROM users WHERE id = ?`, u.ID)
	require.NoError(t, err)

	_, err = db.GetAccountByProviderID(ctx, model.ProviderGitHub, "7")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
