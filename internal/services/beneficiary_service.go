package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/accessone/backend/internal/models"
)

// BeneficiaryService manages saved payees. Beneficiaries are immutable after
// creation; the verified flag is a snapshot taken once, at add-time, against
// the account ledger.
type BeneficiaryService struct {
	db       *sql.DB
	accounts *AccountService
}

func NewBeneficiaryService(db *sql.DB, accounts *AccountService) *BeneficiaryService {
	return &BeneficiaryService{db: db, accounts: accounts}
}

type AddBeneficiaryInput struct {
	Name          string `json:"name" validate:"required,min=2,max=100"`
	AccountNumber string `json:"accountNumber" validate:"required,numeric,min=10,max=20"`
	BankCode      string `json:"bankCode" validate:"required,alphanum,min=3,max=6"`
	BankName      string `json:"bankName" validate:"required,min=2,max=100"`
}

// Add saves a new payee for the user. A destination account number can be
// saved at most once per user. If the number resolves to an internal account
// the beneficiary is marked verified and linked to that account's owner.
func (s *BeneficiaryService) Add(ctx context.Context, userID models.UserID, input AddBeneficiaryInput) (*models.Beneficiary, error) {
	number := models.AccountNumber(input.AccountNumber)

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM beneficiaries WHERE user_id = $1 AND account_number = $2)
	`, int(userID), string(number)).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	if exists {
		return nil, ErrBeneficiaryExists
	}

	beneficiary := &models.Beneficiary{
		UserID:        userID,
		Name:          input.Name,
		AccountNumber: number,
		BankCode:      input.BankCode,
		BankName:      input.BankName,
		CreatedAt:     time.Now().UTC(),
	}

	// Verification snapshot: an account closed later does not retroactively
	// unverify the beneficiary.
	internal, err := s.accounts.FindByNumber(ctx, number)
	switch {
	case err == nil:
		beneficiary.Verified = true
		linked := internal.UserID
		beneficiary.LinkedUserID = &linked
	case err == ErrNotFound:
		beneficiary.Verified = false
	default:
		return nil, err
	}

	var linkedUserID sql.NullInt64
	if beneficiary.LinkedUserID != nil {
		linkedUserID = sql.NullInt64{Int64: int64(*beneficiary.LinkedUserID), Valid: true}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO beneficiaries (user_id, name, account_number, bank_code, bank_name, verified, linked_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, int(userID), beneficiary.Name, string(number), beneficiary.BankCode, beneficiary.BankName,
		beneficiary.Verified, linkedUserID, beneficiary.CreatedAt).Scan(&beneficiary.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to store beneficiary: %w", err)
	}

	log.Printf("[BENEFICIARY] User %d added beneficiary %d (verified=%t)", userID, beneficiary.ID, beneficiary.Verified)
	return beneficiary, nil
}

// FindForUser fetches a beneficiary only if it belongs to the given user.
func (s *BeneficiaryService) FindForUser(ctx context.Context, id models.BeneficiaryID, userID models.UserID) (*models.Beneficiary, error) {
	return s.findOne(ctx, `
		SELECT id, user_id, name, account_number, bank_code, bank_name, verified, linked_user_id, created_at
		FROM beneficiaries
		WHERE id = $1 AND user_id = $2
	`, int64(id), int(userID))
}

// Find fetches a beneficiary by id regardless of owner. The transfer engine
// uses this to re-resolve the destination at execution time.
func (s *BeneficiaryService) Find(ctx context.Context, id models.BeneficiaryID) (*models.Beneficiary, error) {
	return s.findOne(ctx, `
		SELECT id, user_id, name, account_number, bank_code, bank_name, verified, linked_user_id, created_at
		FROM beneficiaries
		WHERE id = $1
	`, int64(id))
}

func (s *BeneficiaryService) findOne(ctx context.Context, query string, args ...any) (*models.Beneficiary, error) {
	var beneficiary models.Beneficiary
	var linkedUserID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&beneficiary.ID, &beneficiary.UserID, &beneficiary.Name, &beneficiary.AccountNumber,
		&beneficiary.BankCode, &beneficiary.BankName, &beneficiary.Verified, &linkedUserID, &beneficiary.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	if linkedUserID.Valid {
		linked := models.UserID(linkedUserID.Int64)
		beneficiary.LinkedUserID = &linked
	}
	return &beneficiary, nil
}

// ListVisibleTo returns the user's own beneficiaries plus every other user's
// verified entries, de-duplicated by destination account number. Foreign
// entries are merged first and own entries last, so when both exist for one
// account number the user's own metadata wins. Output is ordered by account
// number so the merge result is stable.
func (s *BeneficiaryService) ListVisibleTo(ctx context.Context, userID models.UserID) ([]models.Beneficiary, error) {
	foreign, err := s.list(ctx, `
		SELECT id, user_id, name, account_number, bank_code, bank_name, verified, linked_user_id, created_at
		FROM beneficiaries
		WHERE user_id <> $1 AND verified = TRUE
	`, int(userID))
	if err != nil {
		return nil, err
	}

	own, err := s.list(ctx, `
		SELECT id, user_id, name, account_number, bank_code, bank_name, verified, linked_user_id, created_at
		FROM beneficiaries
		WHERE user_id = $1
	`, int(userID))
	if err != nil {
		return nil, err
	}

	merged := make(map[models.AccountNumber]models.Beneficiary, len(foreign)+len(own))
	for _, b := range foreign {
		merged[b.AccountNumber] = b
	}
	for _, b := range own {
		merged[b.AccountNumber] = b
	}

	result := make([]models.Beneficiary, 0, len(merged))
	for _, b := range merged {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AccountNumber < result[j].AccountNumber
	})

	return result, nil
}

func (s *BeneficiaryService) list(ctx context.Context, query string, args ...any) ([]models.Beneficiary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	defer rows.Close()

	beneficiaries := []models.Beneficiary{}
	for rows.Next() {
		var beneficiary models.Beneficiary
		var linkedUserID sql.NullInt64
		if err := rows.Scan(
			&beneficiary.ID, &beneficiary.UserID, &beneficiary.Name, &beneficiary.AccountNumber,
			&beneficiary.BankCode, &beneficiary.BankName, &beneficiary.Verified, &linkedUserID, &beneficiary.CreatedAt,
		); err != nil {
			return nil, err
		}
		if linkedUserID.Valid {
			linked := models.UserID(linkedUserID.Int64)
			beneficiary.LinkedUserID = &linked
		}
		beneficiaries = append(beneficiaries, beneficiary)
	}

	return beneficiaries, rows.Err()
}
