package models

import "time"

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// KYC verification states
const (
	KYCNotVerified = "not_verified"
	KYCPending     = "pending"
	KYCVerified    = "verified"
	KYCRejected    = "rejected"
)

// Balance is the four-tier account balance in currency minor units (FCFA).
// Invariant at rest: Total == Available + Pending + Reserved.
type Balance struct {
	Total     int64 `json:"total" db:"balance_total"`
	Available int64 `json:"available" db:"balance_available"`
	Pending   int64 `json:"pending" db:"balance_pending"`
	Reserved  int64 `json:"reserved" db:"balance_reserved"`
}

// Consistent reports whether the tier sum matches the total.
func (b Balance) Consistent() bool {
	return b.Total == b.Available+b.Pending+b.Reserved
}

// NotificationPreferences controls which events reach the user by email.
type NotificationPreferences struct {
	EmailNotifications bool `json:"emailNotifications" db:"pref_email_notifications"`
	SaleAlerts         bool `json:"saleAlerts" db:"pref_sale_alerts"`
	StockAlerts        bool `json:"stockAlerts" db:"pref_stock_alerts"`
	WeeklyReports      bool `json:"weeklyReports" db:"pref_weekly_reports"`
	KYCUpdates         bool `json:"kycUpdates" db:"pref_kyc_updates"`
}

// User is a zone owner or platform operator account.
type User struct {
	ID            int64                   `json:"id" db:"id"`
	Email         string                  `json:"email" db:"email"`
	Phone         string                  `json:"phone" db:"phone"`
	Password      string                  `json:"-" db:"password"`
	Firstname     string                  `json:"firstname" db:"firstname"`
	Lastname      string                  `json:"lastname" db:"lastname"`
	Country       string                  `json:"country" db:"country"`
	Role          string                  `json:"role" db:"role"`
	KYCStatus     string                  `json:"kycStatus" db:"kyc_status"`
	Balance       Balance                 `json:"balance"`
	ReferralCode  string                  `json:"referralCode" db:"referral_code"`
	ReferredBy    *int64                  `json:"referredBy,omitempty" db:"referred_by"`
	EmailVerified bool                    `json:"emailVerified" db:"email_verified"`
	Preferences   NotificationPreferences `json:"notificationPreferences"`
	IsActive      bool                    `json:"isActive" db:"is_active"`
	LastLogin     *time.Time              `json:"lastLogin,omitempty" db:"last_login"`
	CreatedAt     time.Time               `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time               `json:"updatedAt" db:"updated_at"`
	DeletedAt     *time.Time              `json:"-" db:"deleted_at"`
}

// FullName returns the display name used in emails and notifications.
func (u *User) FullName() string {
	return u.Firstname + " " + u.Lastname
}
