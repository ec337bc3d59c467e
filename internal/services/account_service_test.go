package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/accessone/backend/internal/models"
)

func TestAccountService_Debit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db)
	ctx := context.Background()

	t.Run("successful debit", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(300), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.Debit(ctx, models.AccountID(1), 300)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(6000), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := service.Debit(ctx, models.AccountID(1), 6000)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account not found", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(100), int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := service.Debit(ctx, models.AccountID(99), 100)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		err := service.Debit(ctx, models.AccountID(1), 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		err = service.Debit(ctx, models.AccountID(1), -50)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestAccountService_Credit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db)
	ctx := context.Background()

	t.Run("successful credit", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(500), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.Credit(ctx, models.AccountID(2), 500)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(500), int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.Credit(ctx, models.AccountID(42), 500)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_CreateAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db)
	ctx := context.Background()

	t.Run("creates account with unique number", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("INSERT INTO accounts").
			WithArgs(7, sqlmock.AnyArg(), "SAVINGS", int64(1000), models.AccountActive, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

		account, err := service.CreateAccount(ctx, models.UserID(7), models.SavingsAccount, 1000)
		assert.NoError(t, err)
		assert.Equal(t, models.AccountID(11), account.ID)
		assert.Equal(t, models.UserID(7), account.UserID)
		assert.Len(t, string(account.AccountNumber), 10)
		assert.Equal(t, int64(1000), account.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries on number collision", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("INSERT INTO accounts").
			WithArgs(7, sqlmock.AnyArg(), "CURRENT", int64(0), models.AccountActive, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

		account, err := service.CreateAccount(ctx, models.UserID(7), models.CurrentAccount, 0)
		assert.NoError(t, err)
		assert.Equal(t, models.AccountID(12), account.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown account type", func(t *testing.T) {
		_, err := service.CreateAccount(ctx, models.UserID(7), models.AccountType("PREMIUM"), 0)
		assert.Error(t, err)
	})

	t.Run("rejects negative deposit", func(t *testing.T) {
		_, err := service.CreateAccount(ctx, models.UserID(7), models.SavingsAccount, -1)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestAccountService_FindByNumberForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("owner sees own account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, account_number").
			WithArgs("1234567890", 7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "account_number", "account_type", "balance", "status", "created_at", "updated_at"}).
				AddRow(int64(1), 7, "1234567890", "SAVINGS", int64(100000), "ACTIVE", now, now))

		account, err := service.FindByNumberForUser(ctx, models.UserID(7), models.AccountNumber("1234567890"))
		assert.NoError(t, err)
		assert.Equal(t, int64(100000), account.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("foreign account reported absent", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, account_number").
			WithArgs("9999999999", 7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "account_number", "account_type", "balance", "status", "created_at", "updated_at"}))

		_, err := service.FindByNumberForUser(ctx, models.UserID(7), models.AccountNumber("9999999999"))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
