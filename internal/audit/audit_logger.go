package audit

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	EntryID   string    `json:"entry_id,omitempty"`
	AccountID string    `json:"account_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

type AuditLogger struct {
	logger *log.Logger
}

func NewAuditLogger() *AuditLogger {
	return NewAuditLoggerTo(os.Stdout)
}

// NewAuditLoggerTo writes audit lines to w instead of stdout
func NewAuditLoggerTo(w io.Writer) *AuditLogger {
	return &AuditLogger{logger: log.New(w, "", log.LstdFlags)}
}

func (a *AuditLogger) LogAdjustment(entryID, accountID, actor string, amount, balanceAfter int64, entryType string) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "BALANCE_ADJUSTMENT",
		EntryID:   entryID,
		AccountID: accountID,
		Actor:     actor,
		Amount:    amount,
		Status:    "SUCCESS",
		Details: map[string]any{
			"type":          entryType,
			"balance_after": balanceAfter,
		},
	})
}

func (a *AuditLogger) LogUnlock(entryID, accountID, contentID string, cost int64) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "CONTENT_UNLOCK",
		EntryID:   entryID,
		AccountID: accountID,
		Actor:     accountID,
		Amount:    -cost,
		Status:    "SUCCESS",
		Details:   map[string]string{"content_id": contentID},
	})
}

func (a *AuditLogger) LogRejected(accountID, actor, operation string, err error) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: operation,
		AccountID: accountID,
		Actor:     actor,
		Status:    "REJECTED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) LogOperation(accountID, actor, operation, details string) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: operation,
		AccountID: accountID,
		Actor:     actor,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	a.logger.Printf("AUDIT: %s", string(data))
}
