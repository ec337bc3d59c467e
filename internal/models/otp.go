package models

import "time"

type OTPPurpose string

const (
	OTPPurposeRegister OTPPurpose = "register"
	OTPPurposeTransfer OTPPurpose = "transfer"
)

// OTPRecord holds an issued one-time code. Only the most recently created
// record for a (subject, purpose) pair is authoritative; older records are
// logically superseded. The record is deleted on success, expiry, or once
// the attempt ceiling is reached.
type OTPRecord struct {
	ID        int64             `json:"-" db:"id"`
	Subject   string            `json:"subject" db:"subject"`
	Purpose   OTPPurpose        `json:"purpose" db:"purpose"`
	Code      string            `json:"-" db:"code"`
	Metadata  map[string]string `json:"metadata" db:"metadata"`
	Attempts  int               `json:"attempts" db:"attempts"`
	ExpiresAt time.Time         `json:"expiresAt" db:"expires_at"`
	CreatedAt time.Time         `json:"createdAt" db:"created_at"`
}
