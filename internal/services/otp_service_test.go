package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/accessone/backend/internal/config"
	"github.com/accessone/backend/internal/models"
)

func testOTPConfig() *config.OTPConfig {
	return &config.OTPConfig{
		CodeLength:         6,
		CodeTTL:            10 * time.Minute,
		MaxAttempts:        5,
		MaxIssuePerSubject: 5,
		RateLimitWindow:    time.Hour,
	}
}

func otpRows(id int64, subject, code string, attempts int, expiresAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "subject", "purpose", "code", "metadata", "attempts", "expires_at", "created_at"}).
		AddRow(id, subject, "transfer", code, []byte(`{}`), attempts, expiresAt, time.Now().UTC())
}

func TestOTPService_Issue(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	t.Run("issues six digit code", func(t *testing.T) {
		service := NewOTPServiceWithConfig(db, nil, testOTPConfig())

		mock.ExpectQuery("INSERT INTO otps").
			WithArgs("alice@example.com", "transfer", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

		record, err := service.Issue(ctx, "alice@example.com", models.OTPPurposeTransfer, nil, 0)
		assert.NoError(t, err)
		assert.Len(t, record.Code, 6)
		assert.Equal(t, 0, record.Attempts)
		assert.True(t, record.ExpiresAt.After(time.Now().UTC()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rate limit blocks issuance", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewOTPServiceWithConfig(db, redisClient, testOTPConfig())

		redisMock.ExpectGet("otp:ratelimit:alice@example.com").SetVal("5")

		_, err := service.Issue(ctx, "alice@example.com", models.OTPPurposeTransfer, nil, 0)
		assert.Error(t, err)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestOTPService_Verify(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewOTPServiceWithConfig(db, nil, testOTPConfig())
	ctx := context.Background()
	subject := "alice@example.com"
	live := time.Now().UTC().Add(5 * time.Minute)

	t.Run("correct code consumes record", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, subject, purpose, code, metadata, attempts").
			WithArgs(subject, "transfer").
			WillReturnRows(otpRows(1, subject, "123456", 0, live))
		mock.ExpectExec("DELETE FROM otps").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		record, err := service.Verify(ctx, subject, models.OTPPurposeTransfer, "123456")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), record.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no record for subject", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, subject, purpose, code, metadata, attempts").
			WithArgs(subject, "transfer").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := service.Verify(ctx, subject, models.OTPPurposeTransfer, "123456")
		assert.ErrorIs(t, err, ErrOTPNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired code is deleted", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, subject, purpose, code, metadata, attempts").
			WithArgs(subject, "transfer").
			WillReturnRows(otpRows(2, subject, "123456", 0, time.Now().UTC().Add(-time.Minute)))
		mock.ExpectExec("DELETE FROM otps").
			WithArgs(int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := service.Verify(ctx, subject, models.OTPPurposeTransfer, "123456")
		assert.ErrorIs(t, err, ErrOTPExpired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong code increments attempts", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, subject, purpose, code, metadata, attempts").
			WithArgs(subject, "transfer").
			WillReturnRows(otpRows(3, subject, "123456", 2, live))
		mock.ExpectExec("UPDATE otps SET attempts").
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := service.Verify(ctx, subject, models.OTPPurposeTransfer, "654321")
		assert.ErrorIs(t, err, ErrOTPInvalid)
		assert.True(t, Retryable(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("attempt ceiling deletes record", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, subject, purpose, code, metadata, attempts").
			WithArgs(subject, "transfer").
			WillReturnRows(otpRows(4, subject, "123456", 5, live))
		mock.ExpectExec("DELETE FROM otps").
			WithArgs(int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := service.Verify(ctx, subject, models.OTPPurposeTransfer, "123456")
		assert.ErrorIs(t, err, ErrOTPExhausted)
		assert.False(t, Retryable(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("consumed code cannot be replayed", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, subject, purpose, code, metadata, attempts").
			WithArgs(subject, "transfer").
			WillReturnRows(otpRows(5, subject, "123456", 0, live))
		mock.ExpectExec("DELETE FROM otps").
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := service.Verify(ctx, subject, models.OTPPurposeTransfer, "123456")
		assert.NoError(t, err)

		// Second presentation of the same code finds nothing.
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, subject, purpose, code, metadata, attempts").
			WithArgs(subject, "transfer").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err = service.Verify(ctx, subject, models.OTPPurposeTransfer, "123456")
		assert.ErrorIs(t, err, ErrOTPNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
