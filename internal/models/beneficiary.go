package models

import "time"

// Beneficiary is a saved payee. Verified means the destination account number
// resolved to an internal account when the beneficiary was added; the flag is
// a snapshot and is not recomputed afterwards.
type Beneficiary struct {
	ID            BeneficiaryID `json:"id" db:"id"`
	UserID        UserID        `json:"userId" db:"user_id"`
	Name          string        `json:"name" db:"name"`
	AccountNumber AccountNumber `json:"accountNumber" db:"account_number"`
	BankCode      string        `json:"bankCode" db:"bank_code"`
	BankName      string        `json:"bankName" db:"bank_name"`
	Verified      bool          `json:"verified" db:"verified"`
	LinkedUserID  *UserID       `json:"linkedUserId,omitempty" db:"linked_user_id"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}
