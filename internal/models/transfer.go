package models

import "time"

// PendingTransfer is a staged transfer intent awaiting OTP confirmation. It is
// created once and consumed (deleted) exactly once, on execution or on any
// terminal failure. ExpiresAt mirrors the expiry of the OTP that guards it.
type PendingTransfer struct {
	ID                PendingTransferID `json:"id" db:"id"`
	UserID            UserID            `json:"userId" db:"user_id"`
	SourceAccount     AccountNumber     `json:"sourceAccount" db:"source_account_number"`
	BeneficiaryID     BeneficiaryID     `json:"beneficiaryId" db:"beneficiary_id"`
	Amount            int64             `json:"amount" db:"amount"`
	TransferMode      string            `json:"transferMode" db:"transfer_mode"`
	CreatedAt         time.Time         `json:"createdAt" db:"created_at"`
	ExpiresAt         time.Time         `json:"expiresAt" db:"expires_at"`
}

const (
	DirectionDebit  = "DEBIT"
	DirectionCredit = "CREDIT"
)

const (
	TxCompleted         = "COMPLETED"
	TxPendingSettlement = "PENDING_SETTLEMENT"
)

// Transaction is one side of a completed fund movement. Internal transfers
// produce two rows, a debit for the sender and a credit for the receiver,
// stamped with the same reference.
type Transaction struct {
	ID            int64         `json:"id" db:"id"`
	Reference     string        `json:"reference" db:"reference"`
	UserID        UserID        `json:"userId" db:"user_id"`
	AccountNumber AccountNumber `json:"accountNumber" db:"account_number"`
	BeneficiaryID BeneficiaryID `json:"beneficiaryId" db:"beneficiary_id"`
	Counterparty  string        `json:"counterparty" db:"counterparty"`
	Amount        int64         `json:"amount" db:"amount"`
	TransferMode  string        `json:"transferMode" db:"transfer_mode"`
	Direction     string        `json:"direction" db:"direction"`
	Status        string        `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}
