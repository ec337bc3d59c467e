package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference"`
	Subject   string    `json:"subject"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

// Logger emits structured audit events for money movement and OTP
// verification outcomes. Events go to the process log as single-line JSON
// so they can be shipped without a separate pipeline.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogTransfer(reference, fromAccount, toAccount string, amount int64, status string) {
	event := Event{
		Timestamp: time.Now().UTC(),
		EventType: "TRANSFER",
		Reference: reference,
		Amount:    amount,
		Status:    status,
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	}
	a.log(event)
}

func (a *Logger) LogOTPOutcome(subject, purpose, outcome string) {
	event := Event{
		Timestamp: time.Now().UTC(),
		EventType: "OTP_" + purpose,
		Subject:   subject,
		Status:    outcome,
	}
	a.log(event)
}

func (a *Logger) LogError(reference, subject string, err error) {
	event := Event{
		Timestamp: time.Now().UTC(),
		EventType: "ERROR",
		Reference: reference,
		Subject:   subject,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
