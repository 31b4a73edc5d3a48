package models

import "time"

// Notification types
const (
	NotifSale       = "sale"
	NotifStockAlert = "stock_alert"
	NotifKYCUpdate  = "kyc_update"
	NotifWithdrawal = "withdrawal"
	NotifReferral   = "referral"
	NotifSystem     = "system"
)

// Notification is an append-only user-facing event; only the read flag
// is ever mutated after creation.
type Notification struct {
	ID        int64      `json:"id" db:"id"`
	User      int64      `json:"user" db:"user_id"`
	Type      string     `json:"type" db:"type"`
	Title     string     `json:"title" db:"title"`
	Message   string     `json:"message" db:"message"`
	Read      bool       `json:"read" db:"read"`
	ReadAt    *time.Time `json:"readAt,omitempty" db:"read_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}
