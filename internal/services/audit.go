package services

import (
	"encoding/json"
	"log"
	"time"
)

// AuditEvent is one structured line in the monetary audit trail.
type AuditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogBalanceChange(transactionID string, userID int64, txType string, amount int64, status string) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "BALANCE_CHANGE",
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        amount,
		Status:        status,
		Details:       map[string]string{"type": txType},
	})
}

func (a *AuditLogger) LogError(transactionID string, userID int64, err error) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		UserID:        userID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
