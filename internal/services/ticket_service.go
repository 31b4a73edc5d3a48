package services

import (
	"database/sql"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"

	"github.com/wifipass/backend/internal/mailer"
	"github.com/wifipass/backend/internal/middleware"
	"github.com/wifipass/backend/internal/models"
)

const (
	maxBatchSize        = 500
	usernameAttempts    = 5
	defaultValidityDays = 30
)

// TicketService owns the voucher lifecycle. Every transition runs in a
// single SQL transaction together with its stats and ledger updates.
type TicketService struct {
	db        *sql.DB
	ledger    *LedgerService
	notifier  *NotificationService
	qr        *QRService
	mailer    mailer.Mailer
	validator *ValidationHelper
}

func NewTicketService(db *sql.DB, ledger *LedgerService, notifier *NotificationService, m mailer.Mailer) *TicketService {
	if m == nil {
		m = mailer.NopMailer{}
	}
	return &TicketService{
		db:        db,
		ledger:    ledger,
		notifier:  notifier,
		qr:        NewQRService(),
		mailer:    m,
		validator: NewValidationHelper(),
	}
}

func commissionRate() float64 {
	viper.SetDefault("commission.rate", 0.05)
	return viper.GetFloat64("commission.rate")
}

func referralRate() float64 {
	viper.SetDefault("commission.referral_rate", 0.10)
	return viper.GetFloat64("commission.referral_rate")
}

func lowStockThreshold() int64 {
	viper.SetDefault("stock.alert_threshold", 5)
	return viper.GetInt64("stock.alert_threshold")
}

// CommissionFor splits a sale price into platform commission and owner
// net. The commission is rounded half away from zero.
func CommissionFor(price int64) (commission, net int64) {
	commission = int64(math.Round(float64(price) * commissionRate()))
	return commission, price - commission
}

type IssueTicketsRequest struct {
	Quantity     int `json:"quantity" validate:"required,gt=0"`
	ValidityDays int `json:"validityDays" validate:"omitempty,gt=0,lte=365"`
}

// IssueTickets mints a batch of vouchers against a plan
// @Summary Issue tickets
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param zoneId path int true "Zone ID"
// @Param planId path int true "Plan ID"
// @Param request body IssueTicketsRequest true "Batch"
// @Success 201 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /zones/{zoneId}/plans/{planId}/tickets [post]
func (s *TicketService) IssueTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	zoneID, err := strconv.ParseInt(chi.URLParam(r, "zoneId"), 10, 64)
	if err != nil {
		SendError(w, ErrNotFound)
		return
	}
	planID, err := strconv.ParseInt(chi.URLParam(r, "planId"), 10, 64)
	if err != nil {
		SendError(w, ErrNotFound)
		return
	}

	var req IssueTicketsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}
	if req.Quantity > maxBatchSize {
		SendValidationError(w, "Batch size exceeds maximum of 500", nil)
		return
	}
	if req.ValidityDays == 0 {
		req.ValidityDays = defaultValidityDays
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	var zoneName string
	err = tx.QueryRow(`
		SELECT z.name FROM zones z
		JOIN plans p ON p.zone_id = z.id
		WHERE z.id = $1 AND p.id = $2 AND z.owner_id = $3
		  AND z.deleted_at IS NULL AND p.deleted_at IS NULL AND p.status = $4`,
		zoneID, planID, userID, models.PlanActive).Scan(&zoneName)
	if err == sql.ErrNoRows {
		SendError(w, ErrNotFound)
		return
	}
	if err != nil {
		SendError(w, err)
		return
	}

	expiresAt := time.Now().AddDate(0, 0, req.ValidityDays)
	tickets := make([]models.Ticket, 0, req.Quantity)

	for i := 0; i < req.Quantity; i++ {
		t, err := s.insertTicket(tx, zoneID, planID, userID, zoneName, expiresAt)
		if err != nil {
			SendError(w, err)
			return
		}
		tickets = append(tickets, *t)
	}

	n := int64(req.Quantity)
	if _, err := tx.Exec(`
		UPDATE zones SET total_tickets = total_tickets + $1,
		                 available_tickets = available_tickets + $1, updated_at = NOW()
		WHERE id = $2`, n, zoneID); err != nil {
		SendError(w, err)
		return
	}
	if _, err := tx.Exec(`
		UPDATE plans SET total_tickets = total_tickets + $1, updated_at = NOW()
		WHERE id = $2`, n, planID); err != nil {
		SendError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[TICKET] %d tickets issued in zone %d plan %d by user %d", n, zoneID, planID, userID)
	SendSuccess(w, http.StatusCreated, map[string]any{
		"tickets": tickets,
		"count":   n,
	})
}

// insertTicket generates credentials and inserts one voucher, retrying on
// username collisions. ON CONFLICT DO NOTHING keeps a collision from
// aborting the surrounding transaction; it surfaces as zero returned rows.
func (s *TicketService) insertTicket(tx *sql.Tx, zoneID, planID, ownerID int64, zoneName string, expiresAt time.Time) (*models.Ticket, error) {
	for attempt := 0; attempt < usernameAttempts; attempt++ {
		t := models.Ticket{
			TicketID:  GenerateTicketID(),
			Zone:      zoneID,
			Plan:      planID,
			Owner:     ownerID,
			Username:  GenerateTicketUsername(zoneName),
			Password:  GenerateTicketPassword(),
			Status:    models.TicketAvailable,
			ExpiresAt: expiresAt,
		}

		qrImage, err := s.qr.CredentialQR(t.TicketID, t.Username, t.Password)
		if err != nil {
			return nil, err
		}
		t.QRCode = qrImage

		err = tx.QueryRow(`
			INSERT INTO tickets (ticket_id, zone_id, plan_id, owner_id, username, password, qr_code, status, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT DO NOTHING
			RETURNING id, created_at, updated_at`,
			t.TicketID, zoneID, planID, ownerID, t.Username, t.Password, t.QRCode, t.Status, expiresAt).
			Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err == nil {
			return &t, nil
		}
		if err == sql.ErrNoRows {
			continue
		}
		return nil, err
	}
	return nil, errors.New("could not generate a unique ticket username")
}

// ListTickets lists the caller's tickets
// @Summary List tickets
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param zone query int false "Filter by zone"
// @Param plan query int false "Filter by plan"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param perPage query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Router /tickets [get]
func (s *TicketService) ListTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	page, perPage := ParsePagination(r)
	filter := " WHERE owner_id = $1 AND deleted_at IS NULL"
	args := []any{userID}

	if z := r.URL.Query().Get("zone"); z != "" {
		if zoneID, err := strconv.ParseInt(z, 10, 64); err == nil {
			args = append(args, zoneID)
			filter += " AND zone_id = $" + strconv.Itoa(len(args))
		}
	}
	if p := r.URL.Query().Get("plan"); p != "" {
		if planID, err := strconv.ParseInt(p, 10, 64); err == nil {
			args = append(args, planID)
			filter += " AND plan_id = $" + strconv.Itoa(len(args))
		}
	}
	now := time.Now()
	if st := r.URL.Query().Get("status"); st != "" {
		switch st {
		case models.TicketExpired:
			// Derived state: stored AVAILABLE past expiry
			args = append(args, models.TicketAvailable, now)
			filter += " AND status = $" + strconv.Itoa(len(args)-1) + " AND expires_at <= $" + strconv.Itoa(len(args))
		case models.TicketAvailable:
			args = append(args, models.TicketAvailable, now)
			filter += " AND status = $" + strconv.Itoa(len(args)-1) + " AND expires_at > $" + strconv.Itoa(len(args))
		default:
			args = append(args, st)
			filter += " AND status = $" + strconv.Itoa(len(args))
		}
	}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM tickets"+filter, args...).Scan(&total); err != nil {
		SendError(w, err)
		return
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := s.db.Query(selectTicket+filter+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		SendError(w, err)
		return
	}
	defer rows.Close()

	tickets := make([]map[string]any, 0)
	for rows.Next() {
		var t models.Ticket
		if err := scanTicket(rows, &t); err != nil {
			SendError(w, err)
			return
		}
		tickets = append(tickets, ticketView(&t, now))
	}
	if err := rows.Err(); err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{
		"tickets":    tickets,
		"pagination": PaginationMeta(total, page, perPage),
	})
}

// GetTicket returns one voucher by its public reference
// @Summary Get ticket
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param ticketId path string true "Ticket reference"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /tickets/{ticketId} [get]
func (s *TicketService) GetTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	ticketID := chi.URLParam(r, "ticketId")
	row := s.db.QueryRow(selectTicket+
		" WHERE ticket_id = $1 AND owner_id = $2 AND deleted_at IS NULL", ticketID, userID)

	var t models.Ticket
	if err := scanTicket(row, &t); err != nil {
		if err == sql.ErrNoRows {
			SendError(w, ErrNotFound)
			return
		}
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"ticket": ticketView(&t, time.Now())})
}

type SellTicketRequest struct {
	BuyerName  string `json:"buyerName" validate:"omitempty,max=100"`
	BuyerPhone string `json:"buyerPhone" validate:"omitempty,max=20"`
	BuyerEmail string `json:"buyerEmail" validate:"omitempty,email"`
}

// SellTicket transitions AVAILABLE -> SOLD, credits the owner's net
// proceeds and the referrer's commission, and bumps the stats, all in
// one transaction.
// @Summary Sell ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ticketId path string true "Ticket reference"
// @Param request body SellTicketRequest true "Buyer"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /tickets/{ticketId}/sell [post]
func (s *TicketService) SellTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}
	ticketID := chi.URLParam(r, "ticketId")

	var req SellTicketRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	now := time.Now()

	var t models.Ticket
	row := tx.QueryRow(selectTicket+
		" WHERE ticket_id = $1 AND owner_id = $2 AND deleted_at IS NULL FOR UPDATE", ticketID, userID)
	if err := scanTicket(row, &t); err != nil {
		if err == sql.ErrNoRows {
			SendError(w, ErrNotFound)
			return
		}
		SendError(w, err)
		return
	}
	if !t.IsSellable(now) {
		SendError(w, ErrTicketNotAvailable)
		return
	}

	var price int64
	var zoneName string
	err = tx.QueryRow(`
		SELECT p.price, z.name FROM plans p
		JOIN zones z ON z.id = p.zone_id
		WHERE p.id = $1`, t.Plan).Scan(&price, &zoneName)
	if err != nil {
		SendError(w, err)
		return
	}

	commission, net := CommissionFor(price)

	if _, err := tx.Exec(`
		UPDATE tickets
		SET status = $1, sold_at = $2, buyer_name = $3, buyer_phone = $4, buyer_email = $5, updated_at = NOW()
		WHERE id = $6`,
		models.TicketSold, now, nullableString(req.BuyerName), nullableString(req.BuyerPhone),
		nullableString(req.BuyerEmail), t.ID); err != nil {
		SendError(w, err)
		return
	}

	if _, err := tx.Exec(`
		UPDATE zones SET available_tickets = available_tickets - 1, sold_tickets = sold_tickets + 1,
		                 total_revenue = total_revenue + $1, updated_at = NOW()
		WHERE id = $2`, price, t.Zone); err != nil {
		SendError(w, err)
		return
	}
	if _, err := tx.Exec(`
		UPDATE plans SET sold_tickets = sold_tickets + 1, total_revenue = total_revenue + $1, updated_at = NOW()
		WHERE id = $2`, price, t.Plan); err != nil {
		SendError(w, err)
		return
	}

	meta := models.TxMetadata{TicketID: &t.ID, ZoneID: &t.Zone, PlanID: &t.Plan}
	transaction, err := s.ledger.CreditSale(tx, userID, price, commission, net,
		"Vente ticket "+t.TicketID+" - "+zoneName, meta)
	if err != nil {
		SendError(w, err)
		return
	}

	// Referral commission comes out of the platform's cut, never the
	// owner's net.
	var referrerID *int64
	if err := tx.QueryRow("SELECT referred_by FROM users WHERE id = $1", userID).Scan(&referrerID); err != nil {
		SendError(w, err)
		return
	}
	var referralAmount int64
	if referrerID != nil {
		referralAmount = int64(math.Round(float64(commission) * referralRate()))
		if referralAmount > 0 {
			refMeta := models.TxMetadata{TicketID: &t.ID, ZoneID: &t.Zone, ReferralUserID: &userID}
			if _, err := s.ledger.CreditReferral(tx, *referrerID, referralAmount,
				"Commission de parrainage - vente "+t.TicketID, refMeta); err != nil {
				SendError(w, err)
				return
			}
		}
	}

	var available int64
	if err := tx.QueryRow("SELECT available_tickets FROM zones WHERE id = $1", t.Zone).Scan(&available); err != nil {
		SendError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[TICKET] Ticket %s sold by user %d: price=%d commission=%d net=%d", t.TicketID, userID, price, commission, net)
	s.afterSale(userID, t.TicketID, zoneName, price, net, referrerID, referralAmount, available)

	t.Status = models.TicketSold
	t.SoldAt = &now
	SendSuccess(w, http.StatusOK, map[string]any{
		"ticket":      ticketView(&t, now),
		"transaction": transaction,
	})
}

// afterSale delivers the post-commit side effects: notifications,
// optional emails and the low stock alert.
func (s *TicketService) afterSale(ownerID int64, ticketID, zoneName string, price, net int64, referrerID *int64, referralAmount, available int64) {
	s.notifier.Create(ownerID, models.NotifSale,
		"Ticket vendu",
		"Ticket "+ticketID+" vendu dans la zone "+zoneName+" : +"+strconv.FormatInt(net, 10)+" FCFA")

	if referrerID != nil && referralAmount > 0 {
		s.notifier.Create(*referrerID, models.NotifReferral,
			"Commission de parrainage",
			"Vous avez reçu "+strconv.FormatInt(referralAmount, 10)+" FCFA de commission de parrainage")
	}

	if available < lowStockThreshold() {
		s.notifier.Create(ownerID, models.NotifStockAlert,
			"Stock faible",
			"Il ne reste que "+strconv.FormatInt(available, 10)+" tickets disponibles dans la zone "+zoneName)
	}

	var email, firstname, lastname string
	var emailPref, salePref bool
	err := s.db.QueryRow(`
		SELECT email, firstname, lastname, pref_email_notifications, pref_sale_alerts
		FROM users WHERE id = $1`, ownerID).
		Scan(&email, &firstname, &lastname, &emailPref, &salePref)
	if err != nil {
		log.Printf("[TICKET] Could not load owner %d for sale email: %v", ownerID, err)
		return
	}
	if emailPref && salePref {
		subject, body := mailer.TicketSoldBody(firstname+" "+lastname, zoneName, price)
		if err := s.mailer.Send(email, subject, body); err != nil {
			log.Printf("[TICKET] Sale email to %s failed: %v", email, err)
		}
	}
}

type UseTicketRequest struct {
	MAC string `json:"mac" validate:"omitempty,mac"`
	IP  string `json:"ip" validate:"omitempty,ip"`
}

// UseTicket transitions SOLD -> USED, recording the session start.
// @Summary Use ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ticketId path string true "Ticket reference"
// @Param request body UseTicketRequest true "Session"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /tickets/{ticketId}/use [post]
func (s *TicketService) UseTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}
	ticketID := chi.URLParam(r, "ticketId")

	var req UseTicketRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	var t models.Ticket
	row := tx.QueryRow(selectTicket+
		" WHERE ticket_id = $1 AND owner_id = $2 AND deleted_at IS NULL FOR UPDATE", ticketID, userID)
	if err := scanTicket(row, &t); err != nil {
		if err == sql.ErrNoRows {
			SendError(w, ErrNotFound)
			return
		}
		SendError(w, err)
		return
	}
	if t.Status != models.TicketSold {
		SendError(w, ErrTicketNotAvailable)
		return
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE tickets
		SET status = $1, used_at = $2, session_mac = $3, session_ip = $4, session_login_at = $2, updated_at = NOW()
		WHERE id = $5`,
		models.TicketUsed, now, nullableString(req.MAC), nullableString(req.IP), t.ID); err != nil {
		SendError(w, err)
		return
	}

	if _, err := tx.Exec(`
		UPDATE zones SET used_tickets = used_tickets + 1, updated_at = NOW()
		WHERE id = $1`, t.Zone); err != nil {
		SendError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		SendError(w, err)
		return
	}

	t.Status = models.TicketUsed
	t.UsedAt = &now
	log.Printf("[TICKET] Ticket %s used by user %d", t.TicketID, userID)
	SendSuccess(w, http.StatusOK, map[string]any{"ticket": ticketView(&t, now)})
}

// InvalidateTicket invalidates an AVAILABLE or SOLD voucher. Proceeds
// of an already-sold ticket stay with the owner.
// @Summary Invalidate ticket
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param ticketId path string true "Ticket reference"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /tickets/{ticketId}/invalidate [post]
func (s *TicketService) InvalidateTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}
	ticketID := chi.URLParam(r, "ticketId")

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	var t models.Ticket
	row := tx.QueryRow(selectTicket+
		" WHERE ticket_id = $1 AND owner_id = $2 AND deleted_at IS NULL FOR UPDATE", ticketID, userID)
	if err := scanTicket(row, &t); err != nil {
		if err == sql.ErrNoRows {
			SendError(w, ErrNotFound)
			return
		}
		SendError(w, err)
		return
	}
	if t.Status != models.TicketAvailable && t.Status != models.TicketSold {
		SendError(w, ErrTicketNotAvailable)
		return
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE tickets
		SET status = $1, invalidated_at = $2, invalidated_by = $3, updated_at = NOW()
		WHERE id = $4`,
		models.TicketInvalidated, now, userID, t.ID); err != nil {
		SendError(w, err)
		return
	}

	if t.Status == models.TicketAvailable {
		if _, err := tx.Exec(`
			UPDATE zones SET available_tickets = available_tickets - 1, updated_at = NOW()
			WHERE id = $1`, t.Zone); err != nil {
			SendError(w, err)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		SendError(w, err)
		return
	}

	t.Status = models.TicketInvalidated
	t.InvalidatedAt = &now
	t.InvalidatedBy = &userID
	log.Printf("[TICKET] Ticket %s invalidated by user %d", t.TicketID, userID)
	SendSuccess(w, http.StatusOK, map[string]any{"ticket": ticketView(&t, now)})
}

const selectTicket = `
	SELECT id, ticket_id, zone_id, plan_id, owner_id, username, password, qr_code, status,
	       buyer_name, buyer_phone, buyer_email,
	       session_mac, session_ip, session_login_at, session_logout_at,
	       session_duration, session_bytes_down, session_bytes_up,
	       sold_at, used_at, expires_at, invalidated_at, invalidated_by,
	       created_at, updated_at
	FROM tickets`

func scanTicket(row rowScanner, t *models.Ticket) error {
	var buyerName, buyerPhone, buyerEmail sql.NullString
	var sessionMAC, sessionIP sql.NullString
	var loginAt, logoutAt sql.NullTime
	var duration, bytesDown, bytesUp sql.NullInt64

	err := row.Scan(
		&t.ID, &t.TicketID, &t.Zone, &t.Plan, &t.Owner, &t.Username, &t.Password, &t.QRCode, &t.Status,
		&buyerName, &buyerPhone, &buyerEmail,
		&sessionMAC, &sessionIP, &loginAt, &logoutAt,
		&duration, &bytesDown, &bytesUp,
		&t.SoldAt, &t.UsedAt, &t.ExpiresAt, &t.InvalidatedAt, &t.InvalidatedBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if buyerName.Valid || buyerPhone.Valid || buyerEmail.Valid {
		t.Buyer = &models.Buyer{
			Name:  buyerName.String,
			Phone: buyerPhone.String,
			Email: buyerEmail.String,
		}
	}
	if sessionMAC.Valid || sessionIP.Valid || loginAt.Valid {
		t.Session = &models.SessionData{
			MAC:             sessionMAC.String,
			IP:              sessionIP.String,
			BytesDownloaded: bytesDown.Int64,
			BytesUploaded:   bytesUp.Int64,
			Duration:        duration.Int64,
		}
		if loginAt.Valid {
			t.Session.LoginAt = &loginAt.Time
		}
		if logoutAt.Valid {
			t.Session.LogoutAt = &logoutAt.Time
		}
	}
	return nil
}

// ticketView serializes a ticket with its derived status.
func ticketView(t *models.Ticket, now time.Time) map[string]any {
	return map[string]any{
		"id":            t.ID,
		"ticketId":      t.TicketID,
		"zone":          t.Zone,
		"plan":          t.Plan,
		"username":      t.Username,
		"password":      t.Password,
		"qrCode":        t.QRCode,
		"status":        t.EffectiveStatus(now),
		"buyer":         t.Buyer,
		"sessionData":   t.Session,
		"soldAt":        t.SoldAt,
		"usedAt":        t.UsedAt,
		"expiresAt":     t.ExpiresAt,
		"invalidatedAt": t.InvalidatedAt,
		"createdAt":     t.CreatedAt,
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
