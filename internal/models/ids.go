package models

import "strconv"

// Identifier types are distinct so an account id can never be passed where a
// user id is expected. Conversion to the storage key type happens only at the
// query boundary.

type UserID int

func (id UserID) String() string {
	return strconv.Itoa(int(id))
}

type AccountID int64

func (id AccountID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type BeneficiaryID int64

func (id BeneficiaryID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// PendingTransferID is a UUID assigned when a transfer intent is staged.
type PendingTransferID string

func (id PendingTransferID) String() string {
	return string(id)
}

// AccountNumber is the 10-digit system-generated number used for routing
// between accounts, distinct from the internal AccountID primary key.
type AccountNumber string

func (n AccountNumber) String() string {
	return string(n)
}
