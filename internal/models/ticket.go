package models

import "time"

// Ticket lifecycle states. EXPIRED is derived from ExpiresAt at read
// time and is never written to the row.
const (
	TicketAvailable   = "available"
	TicketSold        = "sold"
	TicketUsed        = "used"
	TicketExpired     = "expired"
	TicketInvalidated = "invalidated"
)

// Buyer is the optional contact captured at sale time.
type Buyer struct {
	Name  string `json:"name,omitempty" db:"buyer_name"`
	Phone string `json:"phone,omitempty" db:"buyer_phone"`
	Email string `json:"email,omitempty" db:"buyer_email"`
}

// SessionData is the network session metadata recorded when a ticket
// is consumed on the hotspot.
type SessionData struct {
	MAC             string     `json:"mac,omitempty" db:"session_mac"`
	IP              string     `json:"ip,omitempty" db:"session_ip"`
	LoginAt         *time.Time `json:"loginAt,omitempty" db:"session_login_at"`
	LogoutAt        *time.Time `json:"logoutAt,omitempty" db:"session_logout_at"`
	Duration        int64      `json:"sessionDuration,omitempty" db:"session_duration"` // seconds
	BytesDownloaded int64      `json:"bytesDownloaded,omitempty" db:"session_bytes_down"`
	BytesUploaded   int64      `json:"bytesUploaded,omitempty" db:"session_bytes_up"`
}

// Ticket is a single-use voucher granting timed network access.
// Username and password form the credential pair provisioned on the
// router; both are unique across the whole ticket population.
type Ticket struct {
	ID            int64        `json:"id" db:"id"`
	TicketID      string       `json:"ticketId" db:"ticket_id"`
	Zone          int64        `json:"zone" db:"zone_id"`
	Plan          int64        `json:"plan" db:"plan_id"`
	Owner         int64        `json:"owner" db:"owner_id"`
	Username      string       `json:"username" db:"username"`
	Password      string       `json:"password" db:"password"`
	QRCode        string       `json:"qrCode,omitempty" db:"qr_code"`
	Status        string       `json:"status" db:"status"`
	Buyer         *Buyer       `json:"buyer,omitempty"`
	Session       *SessionData `json:"sessionData,omitempty"`
	SoldAt        *time.Time   `json:"soldAt,omitempty" db:"sold_at"`
	UsedAt        *time.Time   `json:"usedAt,omitempty" db:"used_at"`
	ExpiresAt     time.Time    `json:"expiresAt" db:"expires_at"`
	InvalidatedAt *time.Time   `json:"invalidatedAt,omitempty" db:"invalidated_at"`
	InvalidatedBy *int64       `json:"invalidatedBy,omitempty" db:"invalidated_by"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt" db:"updated_at"`
	DeletedAt     *time.Time   `json:"-" db:"deleted_at"`
}

// IsExpired reports whether the ticket's validity window has passed,
// independent of its stored status.
func (t *Ticket) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now) || t.ExpiresAt.Equal(now)
}

// EffectiveStatus is the status exposed to clients: an AVAILABLE ticket
// past its expiry reads as EXPIRED without mutating the row.
func (t *Ticket) EffectiveStatus(now time.Time) string {
	if t.Status == TicketAvailable && t.IsExpired(now) {
		return TicketExpired
	}
	return t.Status
}

// IsSellable reports whether a sale transition is valid right now.
func (t *Ticket) IsSellable(now time.Time) bool {
	return t.Status == TicketAvailable && !t.IsExpired(now)
}
