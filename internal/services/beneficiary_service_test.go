package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/accessone/backend/internal/models"
)

var beneficiaryColumns = []string{"id", "user_id", "name", "account_number", "bank_code", "bank_name", "verified", "linked_user_id", "created_at"}

func TestBeneficiaryService_Add(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	accounts := NewAccountService(db)
	service := NewBeneficiaryService(db, accounts)
	ctx := context.Background()
	now := time.Now().UTC()

	input := AddBeneficiaryInput{
		Name:          "Bob Mathew",
		AccountNumber: "2222222222",
		BankCode:      "AO001",
		BankName:      "AccessOne",
	}

	t.Run("internal account is verified and linked", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM beneficiaries").
			WithArgs(7, "2222222222").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("SELECT id, user_id, account_number").
			WithArgs("2222222222").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "account_number", "account_type", "balance", "status", "created_at", "updated_at"}).
				AddRow(int64(2), 9, "2222222222", "SAVINGS", int64(5000), "ACTIVE", now, now))
		mock.ExpectQuery("INSERT INTO beneficiaries").
			WithArgs(7, "Bob Mathew", "2222222222", "AO001", "AccessOne", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

		beneficiary, err := service.Add(ctx, models.UserID(7), input)
		assert.NoError(t, err)
		assert.True(t, beneficiary.Verified)
		assert.NotNil(t, beneficiary.LinkedUserID)
		assert.Equal(t, models.UserID(9), *beneficiary.LinkedUserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("external account stays unverified", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM beneficiaries").
			WithArgs(7, "2222222222").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("SELECT id, user_id, account_number").
			WithArgs("2222222222").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("INSERT INTO beneficiaries").
			WithArgs(7, "Bob Mathew", "2222222222", "AO001", "AccessOne", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(6)))

		beneficiary, err := service.Add(ctx, models.UserID(7), input)
		assert.NoError(t, err)
		assert.False(t, beneficiary.Verified)
		assert.Nil(t, beneficiary.LinkedUserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate destination rejected", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM beneficiaries").
			WithArgs(7, "2222222222").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := service.Add(ctx, models.UserID(7), input)
		assert.ErrorIs(t, err, ErrBeneficiaryExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBeneficiaryService_ListVisibleTo(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBeneficiaryService(db, NewAccountService(db))
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("merges foreign verified with own, own wins", func(t *testing.T) {
		// Foreign verified entries.
		mock.ExpectQuery("SELECT id, user_id, name, account_number").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows(beneficiaryColumns).
				AddRow(int64(20), 9, "Someone Else's Name", "2222222222", "AO001", "AccessOne", true, int64(9), now).
				AddRow(int64(21), 9, "Carol", "3333333333", "AO001", "AccessOne", true, int64(10), now))
		// Own entries, including one for the same destination.
		mock.ExpectQuery("SELECT id, user_id, name, account_number").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows(beneficiaryColumns).
				AddRow(int64(5), 7, "My Bob", "2222222222", "AO001", "AccessOne", true, int64(9), now).
				AddRow(int64(6), 7, "Dave External", "4444444444", "SBI01", "State Bank", false, nil, now))

		result, err := service.ListVisibleTo(ctx, models.UserID(7))
		assert.NoError(t, err)
		assert.Len(t, result, 3)

		// Ordered by account number.
		assert.Equal(t, models.AccountNumber("2222222222"), result[0].AccountNumber)
		assert.Equal(t, models.AccountNumber("3333333333"), result[1].AccountNumber)
		assert.Equal(t, models.AccountNumber("4444444444"), result[2].AccountNumber)

		// The user's own entry shadows the foreign one for 2222222222.
		assert.Equal(t, "My Bob", result[0].Name)
		assert.Equal(t, models.UserID(7), result[0].UserID)

		// Foreign verified entry with no own counterpart survives.
		assert.Equal(t, "Carol", result[1].Name)

		// Own unverified entries are listed.
		assert.False(t, result[2].Verified)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty directory", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, name, account_number").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows(beneficiaryColumns))
		mock.ExpectQuery("SELECT id, user_id, name, account_number").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows(beneficiaryColumns))

		result, err := service.ListVisibleTo(ctx, models.UserID(7))
		assert.NoError(t, err)
		assert.Empty(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBeneficiaryService_FindForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBeneficiaryService(db, NewAccountService(db))
	ctx := context.Background()

	t.Run("foreign beneficiary reported absent", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, name, account_number").
			WithArgs(int64(5), 8).
			WillReturnRows(sqlmock.NewRows(beneficiaryColumns))

		_, err := service.FindForUser(ctx, models.BeneficiaryID(5), models.UserID(8))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
