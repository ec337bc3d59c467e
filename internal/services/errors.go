package services

import "errors"

// Sentinel errors returned by the core services. Handlers translate these to
// HTTP status codes; everything else surfaces as a dependency failure.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")

	ErrBeneficiaryExists     = errors.New("beneficiary already exists")
	ErrBeneficiaryUnverified = errors.New("cannot transfer to unverified beneficiary")
	ErrBeneficiaryNotFound   = errors.New("beneficiary not found")

	ErrOTPNotFound  = errors.New("otp not found")
	ErrOTPExpired   = errors.New("otp expired")
	ErrOTPExhausted = errors.New("too many attempts")
	ErrOTPInvalid   = errors.New("invalid otp")

	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDependency wraps notifier or storage failures that abort an
	// operation after any staged state has been rolled back.
	ErrDependency = errors.New("dependency unavailable")
)

// Retryable reports whether the caller can usefully retry the same operation
// without re-initiating. An invalid code can be re-entered up to the attempt
// ceiling; insufficient funds needs a different account but the session is
// still live at initiate time.
func Retryable(err error) bool {
	return errors.Is(err, ErrOTPInvalid) || errors.Is(err, ErrInsufficientFunds)
}
