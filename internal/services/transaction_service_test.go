package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/accessone/backend/internal/models"
)

var transactionColumns = []string{"id", "reference", "user_id", "account_number", "beneficiary_id", "counterparty", "amount", "transfer_mode", "direction", "status", "created_at"}

func TestTransactionService_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	ctx := context.Background()

	t.Run("writes movement record", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs("ref-1", 7, "1234567890", int64(3), "Bob Mathew", int64(30000), "IMPS", "DEBIT", "COMPLETED", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))

		record := &models.Transaction{
			Reference:     "ref-1",
			UserID:        models.UserID(7),
			AccountNumber: models.AccountNumber("1234567890"),
			BeneficiaryID: models.BeneficiaryID(3),
			Counterparty:  "Bob Mathew",
			Amount:        30000,
			TransferMode:  "IMPS",
			Direction:     models.DirectionDebit,
			Status:        models.TxCompleted,
		}
		err := service.Append(ctx, record)
		assert.NoError(t, err)
		assert.Equal(t, int64(100), record.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		err := service.Append(ctx, &models.Transaction{Amount: 0})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestTransactionService_ListForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("returns history newest first", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, reference, user_id").
			WithArgs(7, 2).
			WillReturnRows(sqlmock.NewRows(transactionColumns).
				AddRow(int64(2), "ref-2", 7, "1234567890", int64(3), "Bob", int64(5000), "IMPS", "DEBIT", "COMPLETED", now).
				AddRow(int64(1), "ref-1", 7, "1234567890", int64(3), "Bob", int64(3000), "IMPS", "DEBIT", "COMPLETED", now.Add(-time.Hour)))

		records, err := service.ListForUser(ctx, models.UserID(7), 2)
		assert.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, "ref-2", records[0].Reference)
		assert.Equal(t, "ref-1", records[1].Reference)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero limit falls back to default", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, reference, user_id").
			WithArgs(7, defaultTransactionLimit).
			WillReturnRows(sqlmock.NewRows(transactionColumns))

		records, err := service.ListForUser(ctx, models.UserID(7), 0)
		assert.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("oversized limit clamps to the maximum", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, reference, user_id").
			WithArgs(7, maxTransactionLimit).
			WillReturnRows(sqlmock.NewRows(transactionColumns))

		_, err := service.ListForUser(ctx, models.UserID(7), 500)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
