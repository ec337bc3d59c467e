package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/accessone/backend/internal/config"
	"github.com/accessone/backend/internal/models"
)

// OTPService issues and verifies short-lived one-time codes bound to a
// (subject, purpose) pair. Codes are single-use: every terminal verification
// path (success, expiry, attempt exhaustion) deletes the record so a dead
// code can never be replayed.
type OTPService struct {
	db     *sql.DB
	redis  *redis.Client
	config *config.OTPConfig
}

func NewOTPService(db *sql.DB, redisClient *redis.Client) *OTPService {
	return NewOTPServiceWithConfig(db, redisClient, config.LoadOTPConfig())
}

func NewOTPServiceWithConfig(db *sql.DB, redisClient *redis.Client, cfg *config.OTPConfig) *OTPService {
	return &OTPService{
		db:     db,
		redis:  redisClient,
		config: cfg,
	}
}

// Issue generates a fresh code and persists it with attempts=0. The returned
// record carries the plaintext code; the caller is responsible for delivering
// it to the subject. It is never logged and never serialized into responses.
func (s *OTPService) Issue(ctx context.Context, subject string, purpose models.OTPPurpose, metadata map[string]string, ttl time.Duration) (*models.OTPRecord, error) {
	if err := s.checkRateLimit(ctx, subject); err != nil {
		log.Printf("[OTP] Issue rate limited for subject %s: %v", subject, err)
		return nil, err
	}

	if ttl <= 0 {
		ttl = s.config.CodeTTL
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &models.OTPRecord{
		Subject:   subject,
		Purpose:   purpose,
		Code:      code,
		Metadata:  metadata,
		Attempts:  0,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO otps (subject, purpose, code, metadata, attempts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING id
	`, subject, string(purpose), code, metadataJSON, record.ExpiresAt, record.CreatedAt).Scan(&record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}

	s.incrementRateLimit(ctx, subject)

	log.Printf("[OTP] Issued code for subject %s, purpose %s, expires %s", subject, purpose, record.ExpiresAt.Format(time.RFC3339))
	return record, nil
}

// Verify checks the supplied code against the most recently issued record for
// (subject, purpose) and consumes it on success. A mismatch increments the
// attempt counter and is retryable until the ceiling; expiry and exhaustion
// delete the record permanently.
func (s *OTPService) Verify(ctx context.Context, subject string, purpose models.OTPPurpose, code string) (*models.OTPRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	defer tx.Rollback()

	var record models.OTPRecord
	var metadataJSON []byte
	err = tx.QueryRowContext(ctx, `
		SELECT id, subject, purpose, code, metadata, attempts, expires_at, created_at
		FROM otps
		WHERE subject = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, subject, string(purpose)).Scan(
		&record.ID, &record.Subject, &record.Purpose, &record.Code,
		&metadataJSON, &record.Attempts, &record.ExpiresAt, &record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOTPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	// Expiry is compared in UTC on both sides so a record written by another
	// node in a different zone cannot appear falsely live or falsely dead.
	if time.Now().UTC().After(record.ExpiresAt.UTC()) {
		if err := s.deleteAndCommit(ctx, tx, record.ID); err != nil {
			return nil, err
		}
		return nil, ErrOTPExpired
	}

	if record.Attempts >= s.config.MaxAttempts {
		if err := s.deleteAndCommit(ctx, tx, record.ID); err != nil {
			return nil, err
		}
		return nil, ErrOTPExhausted
	}

	if record.Code != code {
		if _, err := tx.ExecContext(ctx, `UPDATE otps SET attempts = attempts + 1 WHERE id = $1`, record.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDependency, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDependency, err)
		}
		return nil, ErrOTPInvalid
	}

	if err := s.deleteAndCommit(ctx, tx, record.ID); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
		return nil, err
	}

	log.Printf("[OTP] Code verified for subject %s, purpose %s", subject, purpose)
	return &record, nil
}

// Revoke removes an issued record outright. Used to roll back an issuance
// whose delivery failed; safe on an already-removed id.
func (s *OTPService) Revoke(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM otps WHERE id = $1`, id)
	return err
}

// CleanupExpired purges records that can no longer verify anything.
func (s *OTPService) CleanupExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM otps WHERE expires_at < $1`, time.Now().UTC())
	return err
}

func (s *OTPService) CodeTTL() time.Duration {
	return s.config.CodeTTL
}

func (s *OTPService) deleteAndCommit(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM otps WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}
	return nil
}

func (s *OTPService) generateCode() (string, error) {
	const charset = "0123456789"
	code := make([]byte, s.config.CodeLength)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := range code {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		code[i] = charset[n.Int64()]
	}

	return string(code), nil
}

func (s *OTPService) checkRateLimit(ctx context.Context, subject string) error {
	if s.redis == nil {
		return nil
	}

	key := fmt.Sprintf("otp:ratelimit:%s", subject)
	count, err := s.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return err
	}

	if count >= s.config.MaxIssuePerSubject {
		return errors.New("rate limit exceeded")
	}

	return nil
}

func (s *OTPService) incrementRateLimit(ctx context.Context, subject string) {
	if s.redis == nil {
		return
	}

	key := fmt.Sprintf("otp:ratelimit:%s", subject)
	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.RateLimitWindow)
	pipe.Exec(ctx)
}
