package services

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wifipass/backend/internal/middleware"
	"github.com/wifipass/backend/internal/models"
)

type PlanService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewPlanService(db *sql.DB) *PlanService {
	return &PlanService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// PlanRequest is the create/update payload. Duration is in seconds,
// price in FCFA, limits in KB with nil meaning unlimited.
type PlanRequest struct {
	Name          string `json:"name" validate:"required,min=2"`
	Description   string `json:"description" validate:"max=500"`
	Duration      int64  `json:"duration" validate:"required,gt=0"`
	Price         int64  `json:"price" validate:"required,gt=0"`
	DownloadLimit *int64 `json:"downloadLimit" validate:"omitempty,gt=0"`
	UploadLimit   *int64 `json:"uploadLimit" validate:"omitempty,gt=0"`
}

// ownsZone verifies the zone exists, is not deleted and belongs to userID.
func (s *PlanService) ownsZone(zoneID, userID int64) error {
	var id int64
	err := s.db.QueryRow(
		"SELECT id FROM zones WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL",
		zoneID, userID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

// CreatePlan adds a pricing plan to a zone
// @Summary Create plan
// @Tags plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param zoneId path int true "Zone ID"
// @Param request body PlanRequest true "Plan"
// @Success 201 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /zones/{zoneId}/plans [post]
func (s *PlanService) CreatePlan(w http.ResponseWriter, r *http.Request) {
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
	if err := s.ownsZone(zoneID, userID); err != nil {
		SendError(w, err)
		return
	}

	var req PlanRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	var planID int64
	err = s.db.QueryRow(`
		INSERT INTO plans (zone_id, name, description, duration, price, download_limit, upload_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		zoneID, req.Name, req.Description, req.Duration, req.Price,
		req.DownloadLimit, req.UploadLimit).Scan(&planID)
	if err != nil {
		SendError(w, err)
		return
	}

	plan, err := s.fetchPlan(planID, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[PLAN] Plan %d created in zone %d by user %d", planID, zoneID, userID)
	SendSuccess(w, http.StatusCreated, map[string]any{"plan": plan})
}

// ListPlans lists a zone's plans
// @Summary List plans
// @Tags plans
// @Produce json
// @Security BearerAuth
// @Param zoneId path int true "Zone ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /zones/{zoneId}/plans [get]
func (s *PlanService) ListPlans(w http.ResponseWriter, r *http.Request) {
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
	if err := s.ownsZone(zoneID, userID); err != nil {
		SendError(w, err)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, zone_id, name, description, duration, price, download_limit, upload_limit,
		       status, total_tickets, sold_tickets, total_revenue, created_at, updated_at
		FROM plans
		WHERE zone_id = $1 AND deleted_at IS NULL
		ORDER BY price ASC`, zoneID)
	if err != nil {
		SendError(w, err)
		return
	}
	defer rows.Close()

	plans := make([]models.Plan, 0)
	for rows.Next() {
		var p models.Plan
		if err := scanPlan(rows, &p); err != nil {
			SendError(w, err)
			return
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"plans": plans})
}

// GetPlan returns a single plan owned by the caller
// @Summary Get plan
// @Tags plans
// @Produce json
// @Security BearerAuth
// @Param planId path int true "Plan ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /plans/{planId} [get]
func (s *PlanService) GetPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	planID, err := strconv.ParseInt(chi.URLParam(r, "planId"), 10, 64)
	if err != nil {
		SendError(w, ErrNotFound)
		return
	}

	plan, err := s.fetchPlan(planID, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"plan": plan})
}

// UpdatePlan updates a plan. Price changes apply to future sales only:
// already-sold tickets keep the price captured at sale time.
// @Summary Update plan
// @Tags plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path int true "Plan ID"
// @Param request body PlanRequest true "Plan"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /plans/{planId} [put]
func (s *PlanService) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	planID, err := strconv.ParseInt(chi.URLParam(r, "planId"), 10, 64)
	if err != nil {
		SendError(w, ErrNotFound)
		return
	}

	var req PlanRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	res, err := s.db.Exec(`
		UPDATE plans
		SET name = $1, description = $2, duration = $3, price = $4,
		    download_limit = $5, upload_limit = $6, updated_at = NOW()
		WHERE id = $7 AND deleted_at IS NULL
		  AND zone_id IN (SELECT id FROM zones WHERE owner_id = $8 AND deleted_at IS NULL)`,
		req.Name, req.Description, req.Duration, req.Price,
		req.DownloadLimit, req.UploadLimit, planID, userID)
	if err != nil {
		SendError(w, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendError(w, ErrNotFound)
		return
	}

	plan, err := s.fetchPlan(planID, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"plan": plan})
}

// DeletePlan soft-deletes a plan. Tickets already issued against it keep
// their captured duration and price.
// @Summary Delete plan
// @Tags plans
// @Produce json
// @Security BearerAuth
// @Param planId path int true "Plan ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /plans/{planId} [delete]
func (s *PlanService) DeletePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	planID, err := strconv.ParseInt(chi.URLParam(r, "planId"), 10, 64)
	if err != nil {
		SendError(w, ErrNotFound)
		return
	}

	res, err := s.db.Exec(`
		UPDATE plans SET deleted_at = NOW(), status = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
		  AND zone_id IN (SELECT id FROM zones WHERE owner_id = $3 AND deleted_at IS NULL)`,
		models.PlanInactive, planID, userID)
	if err != nil {
		SendError(w, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendError(w, ErrNotFound)
		return
	}

	log.Printf("[PLAN] Plan %d deleted by user %d", planID, userID)
	SendSuccess(w, http.StatusOK, map[string]any{"message": "Plan deleted"})
}

func (s *PlanService) fetchPlan(planID, ownerID int64) (*models.Plan, error) {
	row := s.db.QueryRow(`
		SELECT p.id, p.zone_id, p.name, p.description, p.duration, p.price,
		       p.download_limit, p.upload_limit, p.status,
		       p.total_tickets, p.sold_tickets, p.total_revenue, p.created_at, p.updated_at
		FROM plans p
		JOIN zones z ON z.id = p.zone_id
		WHERE p.id = $1 AND z.owner_id = $2 AND p.deleted_at IS NULL AND z.deleted_at IS NULL`,
		planID, ownerID)

	var p models.Plan
	if err := scanPlan(row, &p); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPlan(row rowScanner, p *models.Plan) error {
	return row.Scan(
		&p.ID, &p.Zone, &p.Name, &p.Description, &p.Duration, &p.Price,
		&p.DownloadLimit, &p.UploadLimit, &p.Status,
		&p.Stats.TotalTickets, &p.Stats.SoldTickets, &p.Stats.TotalRevenue,
		&p.CreatedAt, &p.UpdatedAt,
	)
}
