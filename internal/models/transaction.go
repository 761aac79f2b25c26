package models

// Transaction is the canonical, reporting-ready shape of a ledger or legacy
// transaction record. Timestamp is epoch milliseconds.
type Transaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Amount        float64   `json:"amount"`
	Type          EntryType `json:"type"`
	RelatedDropID string    `json:"relatedDropId,omitempty"`
	Description   string    `json:"description"`
	Timestamp     int64     `json:"timestamp"`
	Cost          *float64  `json:"cost,omitempty"`
	Currency      string    `json:"currency,omitempty"`
}
