package services

import (
	"database/sql"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"

	"github.com/wifipass/backend/internal/mailer"
	"github.com/wifipass/backend/internal/middleware"
	"github.com/wifipass/backend/internal/models"
)

// WithdrawalService runs the payout workflow. Funds are reserved on
// request, debited on approval and released on rejection, always
// through the ledger so every move leaves a transaction row.
type WithdrawalService struct {
	db        *sql.DB
	ledger    *LedgerService
	notifier  *NotificationService
	mailer    mailer.Mailer
	validator *ValidationHelper
}

func NewWithdrawalService(db *sql.DB, ledger *LedgerService, notifier *NotificationService, m mailer.Mailer) *WithdrawalService {
	if m == nil {
		m = mailer.NopMailer{}
	}
	return &WithdrawalService{
		db:        db,
		ledger:    ledger,
		notifier:  notifier,
		mailer:    m,
		validator: NewValidationHelper(),
	}
}

func withdrawalMinAmount() int64 {
	viper.SetDefault("withdrawal.min_amount", 1000)
	return viper.GetInt64("withdrawal.min_amount")
}

func withdrawalFeeRate() float64 {
	viper.SetDefault("withdrawal.fee_rate", 0.02)
	return viper.GetFloat64("withdrawal.fee_rate")
}

// FeesFor computes the provider fee charged on top of the payout.
func FeesFor(amount int64) int64 {
	return int64(math.Round(float64(amount) * withdrawalFeeRate()))
}

type WithdrawalRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Provider    string `json:"provider" validate:"required,oneof=mtn orange moov wave"`
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
}

// RequestWithdrawal creates a PENDING withdrawal and reserves the funds
// @Summary Request withdrawal
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body WithdrawalRequest true "Withdrawal"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /withdrawals [post]
func (s *WithdrawalService) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	var req WithdrawalRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}
	if req.Amount < withdrawalMinAmount() {
		SendError(w, ErrWithdrawalMinAmount)
		return
	}

	var kycStatus string
	err := s.db.QueryRow(
		"SELECT kyc_status FROM users WHERE id = $1 AND deleted_at IS NULL", userID).Scan(&kycStatus)
	if err == sql.ErrNoRows {
		SendError(w, ErrNotFound)
		return
	}
	if err != nil {
		SendError(w, err)
		return
	}
	if kycStatus != models.KYCVerified {
		SendError(w, ErrKYCRequired)
		return
	}

	fees := FeesFor(req.Amount)
	netAmount := req.Amount + fees

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	withdrawal := models.Withdrawal{
		WithdrawalID: GenerateWithdrawalID(),
		User:         userID,
		Amount:       req.Amount,
		Fees:         fees,
		NetAmount:    netAmount,
		Provider:     req.Provider,
		PhoneNumber:  req.PhoneNumber,
		Status:       models.WithdrawalPending,
	}

	err = tx.QueryRow(`
		INSERT INTO withdrawals (withdrawal_id, user_id, amount, fees, net_amount, provider, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, estimated_time, created_at, updated_at`,
		withdrawal.WithdrawalID, userID, req.Amount, fees, netAmount, req.Provider, req.PhoneNumber).
		Scan(&withdrawal.ID, &withdrawal.EstimatedTime, &withdrawal.CreatedAt, &withdrawal.UpdatedAt)
	if err != nil {
		SendError(w, err)
		return
	}

	if _, err := s.ledger.ReserveWithdrawal(tx, userID, req.Amount, fees, withdrawal.ID,
		"Retrait "+withdrawal.WithdrawalID+" vers "+req.Provider); err != nil {
		SendError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[WITHDRAWAL] Withdrawal %s requested by user %d: amount=%d fees=%d", withdrawal.WithdrawalID, userID, req.Amount, fees)
	SendSuccess(w, http.StatusCreated, map[string]any{"withdrawal": withdrawal})
}

// ListWithdrawals lists the caller's withdrawals
// @Summary List withdrawals
// @Tags withdrawals
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param perPage query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Router /withdrawals [get]
func (s *WithdrawalService) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}
	s.list(w, r, " WHERE user_id = $1", []any{userID})
}

// ListAllWithdrawals lists every withdrawal for back-office review
// @Summary List all withdrawals (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Success 200 {object} map[string]interface{}
// @Router /admin/withdrawals [get]
func (s *WithdrawalService) ListAllWithdrawals(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, " WHERE TRUE", nil)
}

func (s *WithdrawalService) list(w http.ResponseWriter, r *http.Request, filter string, args []any) {
	page, perPage := ParsePagination(r)
	if st := r.URL.Query().Get("status"); st != "" {
		args = append(args, st)
		filter += " AND status = $" + strconv.Itoa(len(args))
	}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM withdrawals"+filter, args...).Scan(&total); err != nil {
		SendError(w, err)
		return
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := s.db.Query(selectWithdrawal+filter+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		SendError(w, err)
		return
	}
	defer rows.Close()

	withdrawals := make([]models.Withdrawal, 0)
	for rows.Next() {
		var wd models.Withdrawal
		if err := scanWithdrawal(rows, &wd); err != nil {
			SendError(w, err)
			return
		}
		withdrawals = append(withdrawals, wd)
	}
	if err := rows.Err(); err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{
		"withdrawals": withdrawals,
		"pagination":  PaginationMeta(total, page, perPage),
	})
}

// GetWithdrawal returns one withdrawal by its public reference
// @Summary Get withdrawal
// @Tags withdrawals
// @Produce json
// @Security BearerAuth
// @Param withdrawalId path string true "Withdrawal reference"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /withdrawals/{withdrawalId} [get]
func (s *WithdrawalService) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	withdrawalID := chi.URLParam(r, "withdrawalId")
	row := s.db.QueryRow(selectWithdrawal+" WHERE withdrawal_id = $1 AND user_id = $2", withdrawalID, userID)

	var wd models.Withdrawal
	if err := scanWithdrawal(row, &wd); err != nil {
		if err == sql.ErrNoRows {
			SendError(w, ErrNotFound)
			return
		}
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"withdrawal": wd})
}

// ProcessWithdrawal moves PENDING -> PROCESSING
// @Summary Process withdrawal (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param withdrawalId path string true "Withdrawal reference"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /admin/withdrawals/{withdrawalId}/process [patch]
func (s *WithdrawalService) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	withdrawalID := chi.URLParam(r, "withdrawalId")
	res, err := s.db.Exec(`
		UPDATE withdrawals SET status = $1, processed_by = $2, updated_at = NOW()
		WHERE withdrawal_id = $3 AND status = $4`,
		models.WithdrawalProcessing, adminID, withdrawalID, models.WithdrawalPending)
	if err != nil {
		SendError(w, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendError(w, &APIError{Code: CodeConflict, Message: "Withdrawal is not pending", Status: http.StatusConflict})
		return
	}

	log.Printf("[WITHDRAWAL] Withdrawal %s processing by admin %d", withdrawalID, adminID)
	SendSuccess(w, http.StatusOK, map[string]any{"message": "Withdrawal is being processed"})
}

type ApproveWithdrawalRequest struct {
	ExternalTxID string `json:"externalTransactionId" validate:"required"`
}

// ApproveWithdrawal settles the payout: the reservation is debited and
// the pending transaction completed. Re-approving a terminal withdrawal
// is a no-op.
// @Summary Approve withdrawal (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param withdrawalId path string true "Withdrawal reference"
// @Param request body ApproveWithdrawalRequest true "Settlement"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /admin/withdrawals/{withdrawalId}/approve [patch]
func (s *WithdrawalService) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	var req ApproveWithdrawalRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	withdrawalID := chi.URLParam(r, "withdrawalId")

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	wd, err := s.lockWithdrawal(tx, withdrawalID)
	if err != nil {
		SendError(w, err)
		return
	}
	if wd.IsTerminal() {
		SendSuccess(w, http.StatusOK, map[string]any{"withdrawal": wd})
		return
	}

	if err := s.ledger.SettleWithdrawal(tx, wd.User, wd.NetAmount, wd.ID); err != nil {
		SendError(w, err)
		return
	}

	if _, err := tx.Exec(`
		UPDATE withdrawals
		SET status = $1, external_tx_id = $2, processed_by = $3, processed_at = NOW(), updated_at = NOW()
		WHERE id = $4`,
		models.WithdrawalCompleted, req.ExternalTxID, adminID, wd.ID); err != nil {
		SendError(w, err)
		return
	}

	if err := s.notifier.CreateTx(tx, wd.User, models.NotifWithdrawal,
		"Retrait effectué",
		"Votre retrait "+wd.WithdrawalID+" de "+strconv.FormatInt(wd.Amount, 10)+" FCFA a été effectué"); err != nil {
		SendError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		SendError(w, err)
		return
	}

	wd.Status = models.WithdrawalCompleted
	wd.ExternalTxID = req.ExternalTxID
	log.Printf("[WITHDRAWAL] Withdrawal %s approved by admin %d", wd.WithdrawalID, adminID)
	s.sendStatusEmail(wd)
	SendSuccess(w, http.StatusOK, map[string]any{"withdrawal": wd})
}

type RejectWithdrawalRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// RejectWithdrawal releases the reservation back to available and fails
// the pending transaction. Re-rejecting a terminal withdrawal is a
// no-op.
// @Summary Reject withdrawal (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param withdrawalId path string true "Withdrawal reference"
// @Param request body RejectWithdrawalRequest true "Rejection"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /admin/withdrawals/{withdrawalId}/reject [patch]
func (s *WithdrawalService) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	var req RejectWithdrawalRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	withdrawalID := chi.URLParam(r, "withdrawalId")

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	wd, err := s.lockWithdrawal(tx, withdrawalID)
	if err != nil {
		SendError(w, err)
		return
	}
	if wd.IsTerminal() {
		SendSuccess(w, http.StatusOK, map[string]any{"withdrawal": wd})
		return
	}

	if err := s.ledger.ReleaseWithdrawal(tx, wd.User, wd.NetAmount, wd.ID, req.Reason); err != nil {
		SendError(w, err)
		return
	}

	if _, err := tx.Exec(`
		UPDATE withdrawals
		SET status = $1, rejection_reason = $2, processed_by = $3, processed_at = NOW(), updated_at = NOW()
		WHERE id = $4`,
		models.WithdrawalRejected, req.Reason, adminID, wd.ID); err != nil {
		SendError(w, err)
		return
	}

	if err := s.notifier.CreateTx(tx, wd.User, models.NotifWithdrawal,
		"Retrait rejeté",
		"Votre retrait "+wd.WithdrawalID+" a été rejeté : "+req.Reason); err != nil {
		SendError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		SendError(w, err)
		return
	}

	wd.Status = models.WithdrawalRejected
	wd.RejectionReason = req.Reason
	log.Printf("[WITHDRAWAL] Withdrawal %s rejected by admin %d: %s", wd.WithdrawalID, adminID, req.Reason)
	s.sendStatusEmail(wd)
	SendSuccess(w, http.StatusOK, map[string]any{"withdrawal": wd})
}

func (s *WithdrawalService) lockWithdrawal(tx *sql.Tx, withdrawalID string) (*models.Withdrawal, error) {
	row := tx.QueryRow(selectWithdrawal+" WHERE withdrawal_id = $1 FOR UPDATE", withdrawalID)
	var wd models.Withdrawal
	if err := scanWithdrawal(row, &wd); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wd, nil
}

func (s *WithdrawalService) sendStatusEmail(wd *models.Withdrawal) {
	var email, firstname, lastname string
	var emailPref bool
	err := s.db.QueryRow(`
		SELECT email, firstname, lastname, pref_email_notifications
		FROM users WHERE id = $1`, wd.User).
		Scan(&email, &firstname, &lastname, &emailPref)
	if err != nil {
		log.Printf("[WITHDRAWAL] Could not load user %d for status email: %v", wd.User, err)
		return
	}
	if !emailPref {
		return
	}
	subject, body := mailer.WithdrawalStatusBody(firstname+" "+lastname, wd.WithdrawalID, wd.Status, wd.Amount)
	if err := s.mailer.Send(email, subject, body); err != nil {
		log.Printf("[WITHDRAWAL] Status email to %s failed: %v", email, err)
	}
}

const selectWithdrawal = `
	SELECT id, withdrawal_id, user_id, amount, fees, net_amount, provider, phone_number,
	       status, external_tx_id, processed_by, processed_at, rejection_reason, estimated_time,
	       created_at, updated_at
	FROM withdrawals`

func scanWithdrawal(row rowScanner, wd *models.Withdrawal) error {
	return row.Scan(
		&wd.ID, &wd.WithdrawalID, &wd.User, &wd.Amount, &wd.Fees, &wd.NetAmount,
		&wd.Provider, &wd.PhoneNumber, &wd.Status, &wd.ExternalTxID,
		&wd.ProcessedBy, &wd.ProcessedAt, &wd.RejectionReason, &wd.EstimatedTime,
		&wd.CreatedAt, &wd.UpdatedAt,
	)
}
