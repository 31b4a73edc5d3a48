package services

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wifipass/backend/internal/middleware"
	"github.com/wifipass/backend/internal/models"
)

// LedgerService owns every balance mutation. Each mutation happens
// inside the caller's SQL transaction, with the user row locked, and is
// paired with exactly one transaction row whose balance_before and
// balance_after bracket the change.
type LedgerService struct {
	db    *sql.DB
	audit *AuditLogger
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:    db,
		audit: NewAuditLogger(),
	}
}

// BalanceChange is the per-tier delta applied to a user's balance.
type BalanceChange struct {
	Available int64
	Pending   int64
	Reserved  int64
	Total     int64
}

// RecordParams describes one ledger entry. Net is the eventual delta to
// the user's total balance: for synchronous credits it equals
// Change.Total, for a withdrawal reservation the total moves later, on
// settlement, but the projected debit is captured here.
type RecordParams struct {
	UserID      int64
	Type        string
	Description string
	Amount      int64
	Commission  int64
	Net         int64
	Status      string
	Change      BalanceChange
	Metadata    models.TxMetadata
}

// Record applies the balance change and inserts the paired transaction
// row. The user row stays locked until the caller commits.
func (s *LedgerService) Record(tx *sql.Tx, p RecordParams) (*models.Transaction, error) {
	balance, err := s.lockBalance(tx, p.UserID)
	if err != nil {
		return nil, err
	}

	updated := models.Balance{
		Total:     balance.Total + p.Change.Total,
		Available: balance.Available + p.Change.Available,
		Pending:   balance.Pending + p.Change.Pending,
		Reserved:  balance.Reserved + p.Change.Reserved,
	}

	if updated.Available < 0 || updated.Pending < 0 || updated.Reserved < 0 || updated.Total < 0 {
		return nil, ErrInsufficientBalance
	}
	if !updated.Consistent() {
		return nil, fmt.Errorf("balance invariant violated for user %d: total=%d tiers=%d",
			p.UserID, updated.Total, updated.Available+updated.Pending+updated.Reserved)
	}

	if err := s.applyBalance(tx, p.UserID, updated); err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		TransactionID: GenerateTransactionID(p.Type),
		User:          p.UserID,
		Type:          p.Type,
		Description:   p.Description,
		Amount:        p.Amount,
		Commission:    p.Commission,
		Net:           p.Net,
		Status:        p.Status,
		Metadata:      p.Metadata,
		BalanceBefore: balance.Total,
		BalanceAfter:  balance.Total + p.Net,
	}
	if p.Status == models.TxCompleted {
		now := time.Now()
		transaction.CompletedAt = &now
	}

	err = tx.QueryRow(`
		INSERT INTO transactions
			(transaction_id, user_id, type, description, amount, commission, net, status,
			 meta_ticket_id, meta_zone_id, meta_plan_id, meta_withdrawal_id, meta_referral_user_id,
			 balance_before, balance_after, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`,
		transaction.TransactionID, p.UserID, p.Type, p.Description, p.Amount, p.Commission, p.Net, p.Status,
		p.Metadata.TicketID, p.Metadata.ZoneID, p.Metadata.PlanID, p.Metadata.WithdrawalID, p.Metadata.ReferralUserID,
		transaction.BalanceBefore, transaction.BalanceAfter, transaction.CompletedAt,
	).Scan(&transaction.ID, &transaction.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	s.audit.LogBalanceChange(transaction.TransactionID, p.UserID, p.Type, p.Net, p.Status)
	return transaction, nil
}

// CreditSale credits a completed sale's net proceeds to the owner's
// available and total balance.
func (s *LedgerService) CreditSale(tx *sql.Tx, ownerID, price, commission, net int64, description string, meta models.TxMetadata) (*models.Transaction, error) {
	return s.Record(tx, RecordParams{
		UserID:      ownerID,
		Type:        models.TxSale,
		Description: description,
		Amount:      price,
		Commission:  commission,
		Net:         net,
		Status:      models.TxCompleted,
		Change:      BalanceChange{Available: net, Total: net},
		Metadata:    meta,
	})
}

// CreditReferral credits a referral commission to the referrer.
func (s *LedgerService) CreditReferral(tx *sql.Tx, referrerID, amount int64, description string, meta models.TxMetadata) (*models.Transaction, error) {
	return s.Record(tx, RecordParams{
		UserID:      referrerID,
		Type:        models.TxReferral,
		Description: description,
		Amount:      amount,
		Net:         amount,
		Status:      models.TxCompleted,
		Change:      BalanceChange{Available: amount, Total: amount},
		Metadata:    meta,
	})
}

// ReserveWithdrawal moves the full netAmount (amount + fees) from
// available to reserved and records the PENDING withdrawal transaction.
// The total is not yet debited; the row's balance_after carries the
// debit that settlement will realize.
func (s *LedgerService) ReserveWithdrawal(tx *sql.Tx, userID, amount, fees int64, withdrawalDBID int64, description string) (*models.Transaction, error) {
	netAmount := amount + fees
	return s.Record(tx, RecordParams{
		UserID:      userID,
		Type:        models.TxWithdrawal,
		Description: description,
		Amount:      amount,
		Commission:  fees,
		Net:         -netAmount,
		Status:      models.TxPending,
		Change:      BalanceChange{Available: -netAmount, Reserved: netAmount},
		Metadata:    models.TxMetadata{WithdrawalID: &withdrawalDBID},
	})
}

// SettleWithdrawal debits reserved and total by netAmount and completes
// the pending withdrawal transaction.
func (s *LedgerService) SettleWithdrawal(tx *sql.Tx, userID, netAmount, withdrawalDBID int64) error {
	balance, err := s.lockBalance(tx, userID)
	if err != nil {
		return err
	}

	updated := balance
	updated.Reserved -= netAmount
	updated.Total -= netAmount
	if updated.Reserved < 0 || updated.Total < 0 {
		return fmt.Errorf("withdrawal %d settlement exceeds reservation for user %d", withdrawalDBID, userID)
	}

	if err := s.applyBalance(tx, userID, updated); err != nil {
		return err
	}

	res, err := tx.Exec(`
		UPDATE transactions
		SET status = $1, completed_at = NOW()
		WHERE meta_withdrawal_id = $2 AND status = $3`,
		models.TxCompleted, withdrawalDBID, models.TxPending)
	if err != nil {
		return fmt.Errorf("complete withdrawal transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no pending transaction for withdrawal %d", withdrawalDBID)
	}

	return nil
}

// ReleaseWithdrawal restores a rejected or failed withdrawal's
// reservation to available and fails the pending transaction. The
// failure transition is one-way and keeps the reason for audit.
func (s *LedgerService) ReleaseWithdrawal(tx *sql.Tx, userID, netAmount, withdrawalDBID int64, reason string) error {
	balance, err := s.lockBalance(tx, userID)
	if err != nil {
		return err
	}

	updated := balance
	updated.Reserved -= netAmount
	updated.Available += netAmount
	if updated.Reserved < 0 {
		return fmt.Errorf("withdrawal %d release exceeds reservation for user %d", withdrawalDBID, userID)
	}

	if err := s.applyBalance(tx, userID, updated); err != nil {
		return err
	}

	res, err := tx.Exec(`
		UPDATE transactions
		SET status = $1, failed_at = NOW(), failure_reason = $2
		WHERE meta_withdrawal_id = $3 AND status = $4`,
		models.TxFailed, reason, withdrawalDBID, models.TxPending)
	if err != nil {
		return fmt.Errorf("fail withdrawal transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no pending transaction for withdrawal %d", withdrawalDBID)
	}

	return nil
}

func (s *LedgerService) lockBalance(tx *sql.Tx, userID int64) (models.Balance, error) {
	var b models.Balance
	err := tx.QueryRow(`
		SELECT balance_total, balance_available, balance_pending, balance_reserved
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`, userID).
		Scan(&b.Total, &b.Available, &b.Pending, &b.Reserved)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, fmt.Errorf("lock balance for user %d: %w", userID, err)
	}
	return b, nil
}

func (s *LedgerService) applyBalance(tx *sql.Tx, userID int64, b models.Balance) error {
	_, err := tx.Exec(`
		UPDATE users
		SET balance_total = $1, balance_available = $2, balance_pending = $3,
		    balance_reserved = $4, updated_at = NOW()
		WHERE id = $5`,
		b.Total, b.Available, b.Pending, b.Reserved, userID)
	if err != nil {
		return fmt.Errorf("update balance for user %d: %w", userID, err)
	}
	return nil
}

// ListTransactions returns the caller's transaction history
// @Summary List transactions
// @Description List the authenticated user's transactions, newest first
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param type query string false "Filter by transaction type"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param perPage query int false "Items per page"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /transactions [get]
func (s *LedgerService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	page, perPage := ParsePagination(r)
	filter := " WHERE user_id = $1"
	args := []any{userID}

	if t := r.URL.Query().Get("type"); t != "" {
		args = append(args, t)
		filter += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if st := r.URL.Query().Get("status"); st != "" {
		args = append(args, st)
		filter += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM transactions"+filter, args...).Scan(&total); err != nil {
		SendError(w, err)
		return
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := s.db.Query(`
		SELECT id, transaction_id, user_id, type, description, amount, commission, net, status,
		       meta_ticket_id, meta_zone_id, meta_plan_id, meta_withdrawal_id, meta_referral_user_id,
		       balance_before, balance_after, completed_at, failed_at, failure_reason, created_at
		FROM transactions`+filter+fmt.Sprintf(`
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		SendError(w, err)
		return
	}
	defer rows.Close()

	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		var t models.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			SendError(w, err)
			return
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"pagination":   PaginationMeta(total, page, perPage),
	})
}

// GetTransaction returns one transaction by its public id
// @Summary Get transaction
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /transactions/{transactionId} [get]
func (s *LedgerService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	transactionID := chi.URLParam(r, "transactionId")

	row := s.db.QueryRow(`
		SELECT id, transaction_id, user_id, type, description, amount, commission, net, status,
		       meta_ticket_id, meta_zone_id, meta_plan_id, meta_withdrawal_id, meta_referral_user_id,
		       balance_before, balance_after, completed_at, failed_at, failure_reason, created_at
		FROM transactions
		WHERE transaction_id = $1 AND user_id = $2`, transactionID, userID)

	var t models.Transaction
	if err := scanTransaction(row, &t); err != nil {
		if err == sql.ErrNoRows {
			SendError(w, ErrNotFound)
			return
		}
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"transaction": t})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner, t *models.Transaction) error {
	return row.Scan(
		&t.ID, &t.TransactionID, &t.User, &t.Type, &t.Description, &t.Amount, &t.Commission, &t.Net, &t.Status,
		&t.Metadata.TicketID, &t.Metadata.ZoneID, &t.Metadata.PlanID, &t.Metadata.WithdrawalID, &t.Metadata.ReferralUserID,
		&t.BalanceBefore, &t.BalanceAfter, &t.CompletedAt, &t.FailedAt, &t.FailureReason, &t.CreatedAt,
	)
}
