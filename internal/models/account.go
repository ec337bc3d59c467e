package models

import "time"

type AccountType string

const (
	SavingsAccount  AccountType = "SAVINGS"
	CurrentAccount  AccountType = "CURRENT"
	BusinessAccount AccountType = "BUSINESS"
)

const (
	AccountActive   = "ACTIVE"
	AccountInactive = "INACTIVE"
)

// Account is a balance record owned by exactly one user. Balance is held in
// minor units (paise) and is only ever mutated through the ledger's conditional
// update, never read-modify-write.
type Account struct {
	ID            AccountID     `json:"id" db:"id"`
	UserID        UserID        `json:"userId" db:"user_id"`
	AccountNumber AccountNumber `json:"accountNumber" db:"account_number"`
	AccountType   AccountType   `json:"accountType" db:"account_type"`
	Balance       int64         `json:"balance" db:"balance"`
	Status        string        `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}
