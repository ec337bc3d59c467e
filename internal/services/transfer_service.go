package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/accessone/backend/internal/audit"
	"github.com/accessone/backend/internal/mailer"
	"github.com/accessone/backend/internal/models"
)

// TransferService orchestrates money movement between accounts. A transfer
// passes through Requested -> Staged (OTP sent) -> Verified -> Executed, or
// fails terminally anywhere along the way. Every terminal path leaves no
// staged artifact behind: initiation rolls back on dispatch failure, and
// verification discards the pending intent on every failure except a
// retryable wrong code.
type TransferService struct {
	db            *sql.DB
	accounts      *AccountService
	beneficiaries *BeneficiaryService
	pending       *PendingTransferService
	otp           *OTPService
	transactions  *TransactionService
	settlement    *SettlementService
	notifier      mailer.Notifier
	audit         *audit.Logger
}

func NewTransferService(
	db *sql.DB,
	accounts *AccountService,
	beneficiaries *BeneficiaryService,
	pending *PendingTransferService,
	otp *OTPService,
	transactions *TransactionService,
	settlement *SettlementService,
	notifier mailer.Notifier,
) *TransferService {
	return &TransferService{
		db:            db,
		accounts:      accounts,
		beneficiaries: beneficiaries,
		pending:       pending,
		otp:           otp,
		transactions:  transactions,
		settlement:    settlement,
		notifier:      notifier,
		audit:         audit.NewLogger(),
	}
}

type InitiateTransferInput struct {
	BeneficiaryID       int64  `json:"beneficiaryId" validate:"required,gt=0"`
	Amount              int64  `json:"amount" validate:"required,gt=0"`
	TransferMode        string `json:"transferMode" validate:"required,oneof=IMPS NEFT RTGS"`
	SourceAccountNumber string `json:"sourceAccountNumber" validate:"required,numeric,len=10"`
}

const otpMetaPendingTransfer = "pending_transfer_id"

// Initiate validates the request, stages a pending transfer, and dispatches
// a confirmation code to the requester. The balance check here is advisory
// only; the authoritative check happens atomically at execution.
func (s *TransferService) Initiate(ctx context.Context, userID models.UserID, email string, input InitiateTransferInput) (models.PendingTransferID, error) {
	if input.Amount <= 0 {
		return "", ErrInvalidAmount
	}

	beneficiary, err := s.beneficiaries.FindForUser(ctx, models.BeneficiaryID(input.BeneficiaryID), userID)
	if errors.Is(err, ErrNotFound) {
		return "", ErrBeneficiaryNotFound
	}
	if err != nil {
		return "", err
	}
	if !beneficiary.Verified {
		return "", ErrBeneficiaryUnverified
	}

	source, err := s.accounts.FindByNumberForUser(ctx, userID, models.AccountNumber(input.SourceAccountNumber))
	if err != nil {
		return "", err
	}
	if source.Balance < input.Amount {
		return "", ErrInsufficientFunds
	}

	// The intent expires with its OTP.
	ttl := s.otp.CodeTTL()
	intent := &models.PendingTransfer{
		UserID:        userID,
		SourceAccount: source.AccountNumber,
		BeneficiaryID: beneficiary.ID,
		Amount:        input.Amount,
		TransferMode:  input.TransferMode,
		ExpiresAt:     time.Now().UTC().Add(ttl),
	}

	pendingID, err := s.pending.Create(ctx, intent)
	if err != nil {
		return "", err
	}

	record, err := s.otp.Issue(ctx, email, models.OTPPurposeTransfer, map[string]string{
		otpMetaPendingTransfer: string(pendingID),
		"user_id":              userID.String(),
	}, ttl)
	if err != nil {
		_ = s.pending.Discard(ctx, pendingID, userID)
		return "", fmt.Errorf("%w: %v", ErrDependency, err)
	}

	body := fmt.Sprintf("Your transfer OTP is %s. It expires in %s.", record.Code, ttl)
	if err := s.notifier.Send(email, "Your Transfer OTP", body); err != nil {
		// A pending transfer with no deliverable code can never be confirmed;
		// remove both halves before surfacing the failure.
		_ = s.pending.Discard(ctx, pendingID, userID)
		_ = s.otp.Revoke(ctx, record.ID)
		log.Printf("[TRANSFER] OTP dispatch failed for user %d: %v", userID, err)
		return "", fmt.Errorf("%w: failed to send otp email: %v", ErrDependency, err)
	}

	log.Printf("[TRANSFER] Staged transfer %s for user %d (amount %d)", pendingID, userID, input.Amount)
	return pendingID, nil
}

// ExecuteResult describes a completed transfer from the sender's side.
type ExecuteResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Internal  bool   `json:"internal"`
}

// VerifyAndExecute consumes the OTP and, on success, moves the funds. The
// debit, the conditional internal credit, the transaction records, and the
// discard of the pending intent all commit in one database transaction, so a
// partial movement is never observable.
func (s *TransferService) VerifyAndExecute(ctx context.Context, userID models.UserID, email string, pendingID models.PendingTransferID, code string) (*ExecuteResult, error) {
	otpRecord, err := s.otp.Verify(ctx, email, models.OTPPurposeTransfer, code)
	if err != nil {
		s.audit.LogOTPOutcome(email, string(models.OTPPurposeTransfer), "REJECTED")
		// A dead code means this intent can never be confirmed; only a
		// mismatched code is retryable.
		if !errors.Is(err, ErrOTPInvalid) {
			_ = s.pending.Discard(ctx, pendingID, userID)
		}
		return nil, err
	}

	if otpRecord.Metadata[otpMetaPendingTransfer] != string(pendingID) {
		_ = s.pending.Discard(ctx, pendingID, userID)
		return nil, ErrNotFound
	}

	intent, err := s.pending.Get(ctx, pendingID, userID)
	if err != nil {
		return nil, err
	}

	source, err := s.accounts.FindByNumberForUser(ctx, userID, intent.SourceAccount)
	if errors.Is(err, ErrNotFound) {
		_ = s.pending.Discard(ctx, pendingID, userID)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Balance may have moved since initiation. The conditional debit below is
	// the authoritative guard; failing early here avoids opening a write
	// transaction that is doomed anyway.
	if source.Balance < intent.Amount {
		_ = s.pending.Discard(ctx, pendingID, userID)
		return nil, ErrInsufficientFunds
	}

	beneficiary, err := s.beneficiaries.Find(ctx, intent.BeneficiaryID)
	if errors.Is(err, ErrNotFound) {
		_ = s.pending.Discard(ctx, pendingID, userID)
		return nil, ErrBeneficiaryNotFound
	}
	if err != nil {
		return nil, err
	}

	destination, err := s.accounts.FindByNumber(ctx, beneficiary.AccountNumber)
	internal := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	reference := uuid.New().String()
	status := models.TxCompleted
	if !internal {
		status = models.TxPendingSettlement
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	defer tx.Rollback()

	if err := s.accounts.DebitTx(ctx, tx, source.ID, intent.Amount); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			_ = s.pending.Discard(ctx, pendingID, userID)
		}
		return nil, err
	}

	if internal {
		if err := s.accounts.CreditTx(ctx, tx, destination.ID, intent.Amount); err != nil {
			return nil, err
		}
	}

	debitRecord := &models.Transaction{
		Reference:     reference,
		UserID:        userID,
		AccountNumber: source.AccountNumber,
		BeneficiaryID: beneficiary.ID,
		Counterparty:  beneficiary.Name,
		Amount:        intent.Amount,
		TransferMode:  intent.TransferMode,
		Direction:     models.DirectionDebit,
		Status:        status,
	}
	if err := s.transactions.AppendTx(ctx, tx, debitRecord); err != nil {
		return nil, err
	}

	if internal {
		// Mirror record so the receiving party's history is self-consistent.
		creditRecord := &models.Transaction{
			Reference:     reference,
			UserID:        destination.UserID,
			AccountNumber: destination.AccountNumber,
			BeneficiaryID: beneficiary.ID,
			Counterparty:  string(source.AccountNumber),
			Amount:        intent.Amount,
			TransferMode:  intent.TransferMode,
			Direction:     models.DirectionCredit,
			Status:        models.TxCompleted,
		}
		if err := s.transactions.AppendTx(ctx, tx, creditRecord); err != nil {
			return nil, err
		}
	}

	if err := s.pending.DiscardTx(ctx, tx, pendingID, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	if !internal {
		// Queued after commit; the funds are already reserved and the record
		// carries PENDING_SETTLEMENT until the rail confirms.
		if err := s.settlement.Queue(ctx, debitRecord, beneficiary.BankCode); err != nil {
			log.Printf("[TRANSFER] Failed to queue %s for settlement: %v", reference, err)
		}
	}

	s.audit.LogTransfer(reference, string(source.AccountNumber), string(beneficiary.AccountNumber), intent.Amount, status)
	log.Printf("[TRANSFER] Executed %s: user %d -> beneficiary %d, amount %d, internal=%t", reference, userID, beneficiary.ID, intent.Amount, internal)
	return &ExecuteResult{Reference: reference, Status: status, Internal: internal}, nil
}
