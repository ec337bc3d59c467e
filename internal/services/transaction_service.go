package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/accessone/backend/internal/models"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 100
)

// TransactionService is the append-only log of completed fund movements.
// Records are written inside the transfer engine's execute transaction and
// are immutable afterwards.
type TransactionService struct {
	db *sql.DB
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{db: db}
}

// Append writes a movement record.
func (s *TransactionService) Append(ctx context.Context, record *models.Transaction) error {
	return s.append(ctx, s.db, record)
}

// AppendTx is Append running inside the caller's transaction.
func (s *TransactionService) AppendTx(ctx context.Context, tx *sql.Tx, record *models.Transaction) error {
	return s.append(ctx, tx, record)
}

func (s *TransactionService) append(ctx context.Context, db execer, record *models.Transaction) error {
	if record.Amount <= 0 {
		return ErrInvalidAmount
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	err := db.QueryRowContext(ctx, `
		INSERT INTO transactions (reference, user_id, account_number, beneficiary_id, counterparty, amount, transfer_mode, direction, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, record.Reference, int(record.UserID), string(record.AccountNumber), int64(record.BeneficiaryID),
		record.Counterparty, record.Amount, record.TransferMode, record.Direction, record.Status, record.CreatedAt).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to store transaction: %w", err)
	}

	return nil
}

// ListForUser returns the user's movement history, newest first.
func (s *TransactionService) ListForUser(ctx context.Context, userID models.UserID, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference, user_id, account_number, beneficiary_id, counterparty, amount, transfer_mode, direction, status, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, int(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var record models.Transaction
		if err := rows.Scan(
			&record.ID, &record.Reference, &record.UserID, &record.AccountNumber, &record.BeneficiaryID,
			&record.Counterparty, &record.Amount, &record.TransferMode, &record.Direction, &record.Status, &record.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, record)
	}

	return transactions, rows.Err()
}
