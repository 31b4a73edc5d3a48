package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/wifipass/backend/internal/models"
)

func withdrawalRows(wd models.Withdrawal) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "withdrawal_id", "user_id", "amount", "fees", "net_amount", "provider", "phone_number",
		"status", "external_tx_id", "processed_by", "processed_at", "rejection_reason", "estimated_time",
		"created_at", "updated_at",
	}).AddRow(
		wd.ID, wd.WithdrawalID, wd.User, wd.Amount, wd.Fees, wd.NetAmount, wd.Provider, wd.PhoneNumber,
		wd.Status, wd.ExternalTxID, wd.ProcessedBy, wd.ProcessedAt, wd.RejectionReason, wd.EstimatedTime,
		wd.CreatedAt, wd.UpdatedAt,
	)
}

func TestWithdrawalService_RequestWithdrawal(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWithdrawalService(db, NewLedgerService(db), NewNotificationService(db), nil)
	userID := int64(7)

	t.Run("below minimum amount", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/withdrawals",
			WithdrawalRequest{Amount: 500, Provider: models.ProviderMTN, PhoneNumber: "+2250701020304"},
			userID, "user", nil)

		service.RequestWithdrawal(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), CodeWithdrawalMinAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires verified identity", func(t *testing.T) {
		mock.ExpectQuery("SELECT kyc_status FROM users").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"kyc_status"}).AddRow(models.KYCPending))

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/withdrawals",
			WithdrawalRequest{Amount: 2000, Provider: models.ProviderOrange, PhoneNumber: "+2250701020304"},
			userID, "user", nil)

		service.RequestWithdrawal(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), CodeKYCRequired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reserves amount plus fees", func(t *testing.T) {
		mock.ExpectQuery("SELECT kyc_status FROM users").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"kyc_status"}).AddRow(models.KYCVerified))

		mock.ExpectBegin()
		// 2000 at 2% fee rate: fees 40, netAmount 2040
		mock.ExpectQuery("INSERT INTO withdrawals").
			WithArgs(sqlmock.AnyArg(), userID, int64(2000), int64(40), int64(2040), models.ProviderMTN, "+2250701020304").
			WillReturnRows(sqlmock.NewRows([]string{"id", "estimated_time", "created_at", "updated_at"}).
				AddRow(12, "24-48h", time.Now(), time.Now()))

		expectLockBalance(mock, userID, 5000, 5000, 0, 0)
		mock.ExpectExec("UPDATE users").
			WithArgs(int64(5000), int64(2960), int64(0), int64(2040), userID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), userID, models.TxWithdrawal, sqlmock.AnyArg(), int64(2000), int64(40), int64(-2040), models.TxPending,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				int64(5000), int64(2960), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(99, time.Now()))

		mock.ExpectCommit()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/withdrawals",
			WithdrawalRequest{Amount: 2000, Provider: models.ProviderMTN, PhoneNumber: "+2250701020304"},
			userID, "user", nil)

		service.RequestWithdrawal(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp struct {
			Data struct {
				Withdrawal models.Withdrawal `json:"withdrawal"`
			} `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(2040), resp.Data.Withdrawal.NetAmount)
		assert.Equal(t, models.WithdrawalPending, resp.Data.Withdrawal.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance rolls the request back", func(t *testing.T) {
		mock.ExpectQuery("SELECT kyc_status FROM users").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"kyc_status"}).AddRow(models.KYCVerified))

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO withdrawals").
			WithArgs(sqlmock.AnyArg(), userID, int64(2000), int64(40), int64(2040), models.ProviderMTN, "+2250701020304").
			WillReturnRows(sqlmock.NewRows([]string{"id", "estimated_time", "created_at", "updated_at"}).
				AddRow(13, "24-48h", time.Now(), time.Now()))

		expectLockBalance(mock, userID, 1000, 1000, 0, 0)
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/withdrawals",
			WithdrawalRequest{Amount: 2000, Provider: models.ProviderMTN, PhoneNumber: "+2250701020304"},
			userID, "user", nil)

		service.RequestWithdrawal(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), CodeInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithdrawalService_ApproveWithdrawal(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWithdrawalService(db, NewLedgerService(db), NewNotificationService(db), nil)
	adminID := int64(1)

	pending := models.Withdrawal{
		ID: 12, WithdrawalID: "WDR1ABC", User: 7, Amount: 2000, Fees: 40, NetAmount: 2040,
		Provider: models.ProviderMTN, PhoneNumber: "+2250701020304",
		Status: models.WithdrawalProcessing, EstimatedTime: "24-48h",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	t.Run("settles the reservation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, withdrawal_id, user_id").
			WithArgs("WDR1ABC").
			WillReturnRows(withdrawalRows(pending))

		expectLockBalance(mock, int64(7), 5000, 2960, 0, 2040)
		mock.ExpectExec("UPDATE users").
			WithArgs(int64(2960), int64(2960), int64(0), int64(0), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.TxCompleted, int64(12), models.TxPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE withdrawals").
			WithArgs(models.WithdrawalCompleted, "MOMO-123", adminID, int64(12)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(int64(7), models.NotifWithdrawal, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		// Status email lookup after commit
		mock.ExpectQuery("SELECT email, firstname, lastname").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"email", "firstname", "lastname", "pref_email_notifications"}).
				AddRow("awa@example.test", "Awa", "Koné", false))

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPatch, "/admin/withdrawals/WDR1ABC/approve",
			ApproveWithdrawalRequest{ExternalTxID: "MOMO-123"}, adminID, "admin",
			map[string]string{"withdrawalId": "WDR1ABC"})

		service.ApproveWithdrawal(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("approving a completed withdrawal is a no-op", func(t *testing.T) {
		completed := pending
		completed.Status = models.WithdrawalCompleted
		completed.ExternalTxID = "MOMO-123"

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, withdrawal_id, user_id").
			WithArgs("WDR1ABC").
			WillReturnRows(withdrawalRows(completed))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPatch, "/admin/withdrawals/WDR1ABC/approve",
			ApproveWithdrawalRequest{ExternalTxID: "MOMO-456"}, adminID, "admin",
			map[string]string{"withdrawalId": "WDR1ABC"})

		service.ApproveWithdrawal(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "MOMO-123")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithdrawalService_RejectWithdrawal(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWithdrawalService(db, NewLedgerService(db), NewNotificationService(db), nil)
	adminID := int64(1)

	pending := models.Withdrawal{
		ID: 12, WithdrawalID: "WDR1ABC", User: 7, Amount: 2000, Fees: 40, NetAmount: 2040,
		Provider: models.ProviderMTN, PhoneNumber: "+2250701020304",
		Status: models.WithdrawalPending, EstimatedTime: "24-48h",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	t.Run("releases the reservation back to available", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, withdrawal_id, user_id").
			WithArgs("WDR1ABC").
			WillReturnRows(withdrawalRows(pending))

		expectLockBalance(mock, int64(7), 5000, 2960, 0, 2040)
		mock.ExpectExec("UPDATE users").
			WithArgs(int64(5000), int64(5000), int64(0), int64(0), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE transactions").
			WithArgs(models.TxFailed, "numéro invalide", int64(12), models.TxPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE withdrawals").
			WithArgs(models.WithdrawalRejected, "numéro invalide", adminID, int64(12)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(int64(7), models.NotifWithdrawal, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		mock.ExpectQuery("SELECT email, firstname, lastname").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"email", "firstname", "lastname", "pref_email_notifications"}).
				AddRow("awa@example.test", "Awa", "Koné", false))

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPatch, "/admin/withdrawals/WDR1ABC/reject",
			RejectWithdrawalRequest{Reason: "numéro invalide"}, adminID, "admin",
			map[string]string{"withdrawalId": "WDR1ABC"})

		service.RejectWithdrawal(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejecting a rejected withdrawal is a no-op", func(t *testing.T) {
		rejected := pending
		rejected.Status = models.WithdrawalRejected
		rejected.RejectionReason = "numéro invalide"

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, withdrawal_id, user_id").
			WithArgs("WDR1ABC").
			WillReturnRows(withdrawalRows(rejected))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPatch, "/admin/withdrawals/WDR1ABC/reject",
			RejectWithdrawalRequest{Reason: "autre raison"}, adminID, "admin",
			map[string]string{"withdrawalId": "WDR1ABC"})

		service.RejectWithdrawal(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFeesFor(t *testing.T) {
	assert.Equal(t, int64(40), FeesFor(2000))
	assert.Equal(t, int64(20), FeesFor(1000))
	assert.Equal(t, int64(1), FeesFor(50))
}
