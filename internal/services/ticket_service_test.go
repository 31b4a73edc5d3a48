package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/wifipass/backend/internal/middleware"
	"github.com/wifipass/backend/internal/models"
)

// newAuthedRequest builds a request carrying an authenticated identity
// and chi URL params.
func newAuthedRequest(method, target string, body any, userID int64, role string, params map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	ctx := middleware.WithUser(r.Context(), userID, role)

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func TestCommissionFor(t *testing.T) {
	t.Run("five percent rounded", func(t *testing.T) {
		commission, net := CommissionFor(1000)
		assert.Equal(t, int64(50), commission)
		assert.Equal(t, int64(950), net)
	})

	t.Run("rounding half up", func(t *testing.T) {
		commission, net := CommissionFor(250)
		assert.Equal(t, int64(13), commission)
		assert.Equal(t, int64(237), net)
	})

	t.Run("net plus commission equals price", func(t *testing.T) {
		for _, price := range []int64{1, 99, 100, 199, 1000, 12345} {
			commission, net := CommissionFor(price)
			assert.Equal(t, price, commission+net)
		}
	})
}

func TestTicketService_IssueTickets(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTicketService(db, NewLedgerService(db), NewNotificationService(db), nil)
	ownerID := int64(7)

	ownershipRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"name"}).AddRow("Maquis")
	}
	insertedRows := func(id int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(id, time.Now(), time.Now())
	}
	noRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "created_at", "updated_at"})
	}

	t.Run("username collision retries until the insert lands", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT z.name FROM zones z").
			WithArgs(int64(3), int64(9), ownerID, models.PlanActive).
			WillReturnRows(ownershipRows())

		// First insert hits the unique index and returns no row
		mock.ExpectQuery("INSERT INTO tickets").WillReturnRows(noRows())
		mock.ExpectQuery("INSERT INTO tickets").WillReturnRows(insertedRows(101))

		mock.ExpectExec("UPDATE zones SET total_tickets").
			WithArgs(int64(1), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE plans SET total_tickets").
			WithArgs(int64(1), int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/api/v1/zones/3/plans/9/tickets",
			map[string]any{"quantity": 1}, ownerID, models.RoleUser,
			map[string]string{"zoneId": "3", "planId": "9"})
		service.IssueTickets(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Data struct {
				Count int64 `json:"count"`
			} `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Data.Count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exhausted retries roll the batch back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT z.name FROM zones z").
			WithArgs(int64(3), int64(9), ownerID, models.PlanActive).
			WillReturnRows(ownershipRows())

		for i := 0; i < usernameAttempts; i++ {
			mock.ExpectQuery("INSERT INTO tickets").WillReturnRows(noRows())
		}
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/api/v1/zones/3/plans/9/tickets",
			map[string]any{"quantity": 1}, ownerID, models.RoleUser,
			map[string]string{"zoneId": "3", "planId": "9"})
		service.IssueTickets(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func ticketRows(t models.Ticket) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "ticket_id", "zone_id", "plan_id", "owner_id", "username", "password", "qr_code", "status",
		"buyer_name", "buyer_phone", "buyer_email",
		"session_mac", "session_ip", "session_login_at", "session_logout_at",
		"session_duration", "session_bytes_down", "session_bytes_up",
		"sold_at", "used_at", "expires_at", "invalidated_at", "invalidated_by",
		"created_at", "updated_at",
	}).AddRow(
		t.ID, t.TicketID, t.Zone, t.Plan, t.Owner, t.Username, t.Password, t.QRCode, t.Status,
		nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, nil,
		t.SoldAt, t.UsedAt, t.ExpiresAt, t.InvalidatedAt, t.InvalidatedBy,
		t.CreatedAt, t.UpdatedAt,
	)
}

func TestTicketService_SellTicket(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ledger := NewLedgerService(db)
	notifier := NewNotificationService(db)
	service := NewTicketService(db, ledger, notifier, nil)

	ownerID := int64(7)
	available := models.Ticket{
		ID: 42, TicketID: "TKT1ABC", Zone: 3, Plan: 9, Owner: ownerID,
		Username: "maquis_x1y2z3", Password: "abCD123456",
		Status: models.TicketAvailable, ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	t.Run("successful sale credits net and updates stats", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ticket_id, zone_id").
			WithArgs("TKT1ABC", ownerID).
			WillReturnRows(ticketRows(available))

		mock.ExpectQuery("SELECT p.price, z.name FROM plans p").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"price", "name"}).AddRow(1000, "Maquis"))

		mock.ExpectExec("UPDATE tickets").
			WithArgs(models.TicketSold, sqlmock.AnyArg(), "Kouassi", nil, nil, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE zones SET available_tickets").
			WithArgs(int64(1000), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE plans SET sold_tickets").
			WithArgs(int64(1000), int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// Ledger credit: 1000 - 50 commission = 950 net
		expectLockBalance(mock, ownerID, 0, 0, 0, 0)
		mock.ExpectExec("UPDATE users").
			WithArgs(int64(950), int64(950), int64(0), int64(0), ownerID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), ownerID, models.TxSale, sqlmock.AnyArg(), int64(1000), int64(50), int64(950), models.TxCompleted,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				int64(0), int64(950), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

		// No referrer, no referral credit
		mock.ExpectQuery("SELECT referred_by FROM users").
			WithArgs(ownerID).
			WillReturnRows(sqlmock.NewRows([]string{"referred_by"}).AddRow(nil))

		mock.ExpectQuery("SELECT available_tickets FROM zones").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"available_tickets"}).AddRow(19))

		mock.ExpectCommit()

		// Post-commit side effects
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(ownerID, models.NotifSale, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT email, firstname, lastname").
			WithArgs(ownerID).
			WillReturnRows(sqlmock.NewRows([]string{"email", "firstname", "lastname", "pref_email_notifications", "pref_sale_alerts"}).
				AddRow("awa@example.test", "Awa", "Koné", false, true))

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/tickets/TKT1ABC/sell",
			SellTicketRequest{BuyerName: "Kouassi"}, ownerID, "user",
			map[string]string{"ticketId": "TKT1ABC"})

		service.SellTicket(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				Ticket struct {
					Status string `json:"status"`
				} `json:"ticket"`
				Transaction models.Transaction `json:"transaction"`
			} `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, models.TicketSold, resp.Data.Ticket.Status)
		assert.Equal(t, int64(950), resp.Data.Transaction.Net)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired ticket cannot be sold", func(t *testing.T) {
		expired := available
		expired.ExpiresAt = time.Now().Add(-time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ticket_id, zone_id").
			WithArgs("TKT1ABC", ownerID).
			WillReturnRows(ticketRows(expired))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/tickets/TKT1ABC/sell",
			SellTicketRequest{}, ownerID, "user",
			map[string]string{"ticketId": "TKT1ABC"})

		service.SellTicket(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), CodeTicketNotAvailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sold ticket cannot be sold again", func(t *testing.T) {
		sold := available
		sold.Status = models.TicketSold

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ticket_id, zone_id").
			WithArgs("TKT1ABC", ownerID).
			WillReturnRows(ticketRows(sold))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/tickets/TKT1ABC/sell",
			SellTicketRequest{}, ownerID, "user",
			map[string]string{"ticketId": "TKT1ABC"})

		service.SellTicket(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown ticket is not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ticket_id, zone_id").
			WithArgs("TKTMISSING", ownerID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/tickets/TKTMISSING/sell",
			SellTicketRequest{}, ownerID, "user",
			map[string]string{"ticketId": "TKTMISSING"})

		service.SellTicket(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTicketService_UseTicket(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTicketService(db, NewLedgerService(db), NewNotificationService(db), nil)

	ownerID := int64(7)
	soldAt := time.Now().Add(-time.Hour)
	sold := models.Ticket{
		ID: 42, TicketID: "TKT1ABC", Zone: 3, Plan: 9, Owner: ownerID,
		Username: "maquis_x1y2z3", Password: "abCD123456",
		Status: models.TicketSold, SoldAt: &soldAt,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	t.Run("sold ticket transitions to used", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ticket_id, zone_id").
			WithArgs("TKT1ABC", ownerID).
			WillReturnRows(ticketRows(sold))

		mock.ExpectExec("UPDATE tickets").
			WithArgs(models.TicketUsed, sqlmock.AnyArg(), "AA:BB:CC:DD:EE:FF", "10.0.0.2", int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE zones SET used_tickets").
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectCommit()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/tickets/TKT1ABC/use",
			UseTicketRequest{MAC: "AA:BB:CC:DD:EE:FF", IP: "10.0.0.2"}, ownerID, "user",
			map[string]string{"ticketId": "TKT1ABC"})

		service.UseTicket(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("available ticket cannot be used", func(t *testing.T) {
		fresh := sold
		fresh.Status = models.TicketAvailable
		fresh.SoldAt = nil

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ticket_id, zone_id").
			WithArgs("TKT1ABC", ownerID).
			WillReturnRows(ticketRows(fresh))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/tickets/TKT1ABC/use",
			UseTicketRequest{}, ownerID, "user",
			map[string]string{"ticketId": "TKT1ABC"})

		service.UseTicket(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTicketService_InvalidateTicket(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTicketService(db, NewLedgerService(db), NewNotificationService(db), nil)

	ownerID := int64(7)
	available := models.Ticket{
		ID: 42, TicketID: "TKT1ABC", Zone: 3, Plan: 9, Owner: ownerID,
		Username: "maquis_x1y2z3", Password: "abCD123456",
		Status: models.TicketAvailable, ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	t.Run("available ticket frees its stock slot", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ticket_id, zone_id").
			WithArgs("TKT1ABC", ownerID).
			WillReturnRows(ticketRows(available))

		mock.ExpectExec("UPDATE tickets").
			WithArgs(models.TicketInvalidated, sqlmock.AnyArg(), ownerID, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE zones SET available_tickets").
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectCommit()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/tickets/TKT1ABC/invalidate",
			nil, ownerID, "user", map[string]string{"ticketId": "TKT1ABC"})

		service.InvalidateTicket(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sold ticket keeps the proceeds", func(t *testing.T) {
		sold := available
		sold.Status = models.TicketSold

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ticket_id, zone_id").
			WithArgs("TKT1ABC", ownerID).
			WillReturnRows(ticketRows(sold))

		mock.ExpectExec("UPDATE tickets").
			WithArgs(models.TicketInvalidated, sqlmock.AnyArg(), ownerID, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// No zone stats change and no ledger reversal for a sold ticket
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/tickets/TKT1ABC/invalidate",
			nil, ownerID, "user", map[string]string{"ticketId": "TKT1ABC"})

		service.InvalidateTicket(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("used ticket cannot be invalidated", func(t *testing.T) {
		used := available
		used.Status = models.TicketUsed

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ticket_id, zone_id").
			WithArgs("TKT1ABC", ownerID).
			WillReturnRows(ticketRows(used))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/tickets/TKT1ABC/invalidate",
			nil, ownerID, "user", map[string]string{"ticketId": "TKT1ABC"})

		service.InvalidateTicket(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
