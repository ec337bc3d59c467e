package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/accessone/backend/internal/models"
)

// AccountService is the ledger over account balance records. Debits and
// credits are single conditional updates at the storage layer; concurrent
// movements against one account serialize on the row without ever observing
// a negative balance.
type AccountService struct {
	db *sql.DB
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db}
}

// CreateAccount opens a new account for the user with a freshly generated,
// globally unique account number.
func (s *AccountService) CreateAccount(ctx context.Context, userID models.UserID, accountType models.AccountType, initialDeposit int64) (*models.Account, error) {
	if initialDeposit < 0 {
		return nil, ErrInvalidAmount
	}

	switch accountType {
	case models.SavingsAccount, models.CurrentAccount, models.BusinessAccount:
	default:
		return nil, fmt.Errorf("unsupported account type %q", accountType)
	}

	number, err := s.generateAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &models.Account{
		UserID:        userID,
		AccountNumber: number,
		AccountType:   accountType,
		Balance:       initialDeposit,
		Status:        models.AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (user_id, account_number, account_type, balance, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, int(userID), string(number), string(accountType), initialDeposit, models.AccountActive, now).Scan(&account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	log.Printf("[LEDGER] Account %s opened for user %d", number, userID)
	return account, nil
}

// Debit decreases the balance by amount, failing with ErrInsufficientFunds if
// the result would be negative. The balance floor is enforced inside the
// UPDATE itself, not by a prior read.
func (s *AccountService) Debit(ctx context.Context, accountID models.AccountID, amount int64) error {
	return s.debit(ctx, s.db, accountID, amount)
}

// DebitTx is Debit running inside the caller's transaction.
func (s *AccountService) DebitTx(ctx context.Context, tx *sql.Tx, accountID models.AccountID, amount int64) error {
	return s.debit(ctx, tx, accountID, amount)
}

// Credit increases the balance by amount.
func (s *AccountService) Credit(ctx context.Context, accountID models.AccountID, amount int64) error {
	return s.credit(ctx, s.db, accountID, amount)
}

// CreditTx is Credit running inside the caller's transaction.
func (s *AccountService) CreditTx(ctx context.Context, tx *sql.Tx, accountID models.AccountID, amount int64) error {
	return s.credit(ctx, tx, accountID, amount)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *AccountService) debit(ctx context.Context, db execer, accountID models.AccountID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result, err := db.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
	`, amount, int64(accountID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, int64(accountID)).Scan(&exists); err != nil {
			return fmt.Errorf("%w: %v", ErrDependency, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientFunds
	}

	return nil
}

func (s *AccountService) credit(ctx context.Context, db execer, accountID models.AccountID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result, err := db.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`, amount, int64(accountID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// FindByNumber resolves an account number to its record, whoever owns it.
func (s *AccountService) FindByNumber(ctx context.Context, number models.AccountNumber) (*models.Account, error) {
	return s.findOne(ctx, `
		SELECT id, user_id, account_number, account_type, balance, status, created_at, updated_at
		FROM accounts
		WHERE account_number = $1
	`, string(number))
}

// FindByNumberForUser resolves an account number scoped to its owner; a
// foreign account number is reported as absent.
func (s *AccountService) FindByNumberForUser(ctx context.Context, userID models.UserID, number models.AccountNumber) (*models.Account, error) {
	return s.findOne(ctx, `
		SELECT id, user_id, account_number, account_type, balance, status, created_at, updated_at
		FROM accounts
		WHERE account_number = $1 AND user_id = $2
	`, string(number), int(userID))
}

func (s *AccountService) findOne(ctx context.Context, query string, args ...any) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&account.ID, &account.UserID, &account.AccountNumber, &account.AccountType,
		&account.Balance, &account.Status, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	return &account, nil
}

// FindByUser lists all accounts owned by the user.
func (s *AccountService) FindByUser(ctx context.Context, userID models.UserID) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, account_number, account_type, balance, status, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, int(userID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(
			&account.ID, &account.UserID, &account.AccountNumber, &account.AccountType,
			&account.Balance, &account.Status, &account.CreatedAt, &account.UpdatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// NumberExists reports whether an account number resolves to an internal
// account. Used by the beneficiary directory's verification snapshot.
func (s *AccountService) NumberExists(ctx context.Context, number models.AccountNumber) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE account_number = $1)`, string(number)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	return exists, nil
}

const accountNumberAttempts = 10

func (s *AccountService) generateAccountNumber(ctx context.Context) (models.AccountNumber, error) {
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		number, err := randomDigits(10)
		if err != nil {
			return "", err
		}

		var exists bool
		err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE account_number = $1)`, number).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDependency, err)
		}
		if !exists {
			return models.AccountNumber(number), nil
		}
	}

	return "", fmt.Errorf("could not generate a unique account number after %d attempts", accountNumberAttempts)
}

func randomDigits(length int) (string, error) {
	const digits = "0123456789"
	b := make([]byte, length)
	max := big.NewInt(int64(len(digits)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate account number: %w", err)
		}
		b[i] = digits[n.Int64()]
	}
	return string(b), nil
}
