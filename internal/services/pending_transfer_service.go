package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/accessone/backend/internal/models"
)

// PendingTransferService holds transfer intents between initiation and OTP
// confirmation. An intent is never mutated; it is consumed exactly once, by
// Discard, on execution or on any terminal failure.
type PendingTransferService struct {
	db *sql.DB
}

func NewPendingTransferService(db *sql.DB) *PendingTransferService {
	return &PendingTransferService{db: db}
}

// Create persists a new intent and returns its id. The expiry mirrors the
// TTL of the OTP issued alongside it, so an intent cannot outlive the only
// code that could confirm it.
func (s *PendingTransferService) Create(ctx context.Context, intent *models.PendingTransfer) (models.PendingTransferID, error) {
	if intent.Amount <= 0 {
		return "", ErrInvalidAmount
	}

	intent.ID = models.PendingTransferID(uuid.New().String())
	intent.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_transfers (id, user_id, source_account_number, beneficiary_id, amount, transfer_mode, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, string(intent.ID), int(intent.UserID), string(intent.SourceAccount), int64(intent.BeneficiaryID),
		intent.Amount, intent.TransferMode, intent.CreatedAt, intent.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to stage transfer: %w", err)
	}

	return intent.ID, nil
}

// Get fetches an intent scoped to its owner. An absent id, a foreign owner,
// and an expired intent all report ErrNotFound; expired rows are deleted on
// the way out.
func (s *PendingTransferService) Get(ctx context.Context, id models.PendingTransferID, owner models.UserID) (*models.PendingTransfer, error) {
	var intent models.PendingTransfer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, source_account_number, beneficiary_id, amount, transfer_mode, created_at, expires_at
		FROM pending_transfers
		WHERE id = $1 AND user_id = $2
	`, string(id), int(owner)).Scan(
		&intent.ID, &intent.UserID, &intent.SourceAccount, &intent.BeneficiaryID,
		&intent.Amount, &intent.TransferMode, &intent.CreatedAt, &intent.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	if time.Now().UTC().After(intent.ExpiresAt.UTC()) {
		_ = s.Discard(ctx, intent.ID, owner)
		return nil, ErrNotFound
	}

	return &intent, nil
}

// Discard removes an intent, scoped to its owner so a caller-supplied id can
// never destroy another user's staged transfer. Safe to call on an id that
// was already removed.
func (s *PendingTransferService) Discard(ctx context.Context, id models.PendingTransferID, owner models.UserID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_transfers WHERE id = $1 AND user_id = $2`, string(id), int(owner))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}
	return nil
}

// DiscardTx is Discard running inside the caller's transaction, used by the
// transfer engine so the intent disappears atomically with execution.
func (s *PendingTransferService) DiscardTx(ctx context.Context, tx *sql.Tx, id models.PendingTransferID, owner models.UserID) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM pending_transfers WHERE id = $1 AND user_id = $2`, string(id), int(owner))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}
	return nil
}
