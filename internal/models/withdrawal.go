package models

import "time"

// Withdrawal status. COMPLETED and REJECTED are final; the only valid
// path is PENDING -> PROCESSING -> {COMPLETED | FAILED}.
const (
	WithdrawalPending    = "pending"
	WithdrawalProcessing = "processing"
	WithdrawalCompleted  = "completed"
	WithdrawalFailed     = "failed"
	WithdrawalRejected   = "rejected"
)

// Mobile money providers
const (
	ProviderMTN    = "mtn"
	ProviderOrange = "orange"
	ProviderMoov   = "moov"
	ProviderWave   = "wave"
)

// Withdrawal is a request to move funds from a user's available balance
// to a mobile-money account. NetAmount = Amount + Fees is what is
// reserved on request and debited on completion; fees are charged to
// the requester, not deducted from the payout.
type Withdrawal struct {
	ID              int64      `json:"id" db:"id"`
	WithdrawalID    string     `json:"withdrawalId" db:"withdrawal_id"`
	User            int64      `json:"user" db:"user_id"`
	Amount          int64      `json:"amount" db:"amount"`
	Fees            int64      `json:"fees" db:"fees"`
	NetAmount       int64      `json:"netAmount" db:"net_amount"`
	Provider        string     `json:"provider" db:"provider"`
	PhoneNumber     string     `json:"phoneNumber" db:"phone_number"`
	Status          string     `json:"status" db:"status"`
	ExternalTxID    string     `json:"externalTransactionId,omitempty" db:"external_tx_id"`
	ProcessedBy     *int64     `json:"processedBy,omitempty" db:"processed_by"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty" db:"processed_at"`
	RejectionReason string     `json:"rejectionReason,omitempty" db:"rejection_reason"`
	EstimatedTime   string     `json:"estimatedProcessingTime" db:"estimated_time"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsTerminal reports whether the withdrawal reached a final state.
// Terminal withdrawals must never be debited or released twice.
func (w *Withdrawal) IsTerminal() bool {
	return w.Status == WithdrawalCompleted || w.Status == WithdrawalRejected || w.Status == WithdrawalFailed
}
