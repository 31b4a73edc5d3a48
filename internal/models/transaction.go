package models

import "time"

// Transaction types
const (
	TxSale       = "sale"
	TxWithdrawal = "withdrawal"
	TxReferral   = "referral"
	TxCommission = "commission"
)

// Transaction status. COMPLETED and FAILED are terminal; a transaction
// is never reversed, only failed with a reason.
const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"
	TxCancelled = "cancelled"
)

// TxMetadata links a transaction back to the entity that produced it.
type TxMetadata struct {
	TicketID       *int64 `json:"ticketId,omitempty" db:"meta_ticket_id"`
	ZoneID         *int64 `json:"zoneId,omitempty" db:"meta_zone_id"`
	PlanID         *int64 `json:"planId,omitempty" db:"meta_plan_id"`
	WithdrawalID   *int64 `json:"withdrawalId,omitempty" db:"meta_withdrawal_id"`
	ReferralUserID *int64 `json:"referralUserId,omitempty" db:"meta_referral_user_id"`
}

// Transaction is one append-style row per balance-affecting event.
// BalanceBefore/BalanceAfter snapshot the user's total balance around
// the mutation; their delta always equals Net.
type Transaction struct {
	ID            int64      `json:"id" db:"id"`
	TransactionID string     `json:"transactionId" db:"transaction_id"`
	User          int64      `json:"user" db:"user_id"`
	Type          string     `json:"type" db:"type"`
	Description   string     `json:"description" db:"description"`
	Amount        int64      `json:"amount" db:"amount"`
	Commission    int64      `json:"commission" db:"commission"`
	Net           int64      `json:"net" db:"net"`
	Status        string     `json:"status" db:"status"`
	Metadata      TxMetadata `json:"metadata"`
	BalanceBefore int64      `json:"balanceBefore" db:"balance_before"`
	BalanceAfter  int64      `json:"balanceAfter" db:"balance_after"`
	CompletedAt   *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	FailedAt      *time.Time `json:"failedAt,omitempty" db:"failed_at"`
	FailureReason string     `json:"failureReason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
}
