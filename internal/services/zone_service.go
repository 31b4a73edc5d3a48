package services

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wifipass/backend/internal/middleware"
	"github.com/wifipass/backend/internal/models"
	"github.com/wifipass/backend/internal/vault"
)

type ZoneService struct {
	db        *sql.DB
	vault     *vault.Vault
	validator *ValidationHelper
}

func NewZoneService(db *sql.DB, v *vault.Vault) *ZoneService {
	return &ZoneService{
		db:        db,
		vault:     v,
		validator: NewValidationHelper(),
	}
}

// ZoneRequest is the create/update payload
type ZoneRequest struct {
	Name           string  `json:"name" validate:"required,min=2"`
	Description    string  `json:"description" validate:"max=500"`
	Address        string  `json:"address" validate:"required"`
	City           string  `json:"city" validate:"required"`
	Country        string  `json:"country" validate:"omitempty,len=2"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	RouterIP       string  `json:"routerIp" validate:"required,ip"`
	RouterUsername string  `json:"routerUsername" validate:"required"`
	RouterPassword string  `json:"routerPassword" validate:"required"`
	RouterAPIPort  int     `json:"routerApiPort" validate:"omitempty,gt=0,lte=65535"`
}

// CreateZone registers a hotspot zone for the caller
// @Summary Create zone
// @Tags zones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ZoneRequest true "Zone"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /zones [post]
func (s *ZoneService) CreateZone(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	var req ZoneRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}
	if req.Country == "" {
		req.Country = "CI"
	}
	if req.RouterAPIPort == 0 {
		req.RouterAPIPort = 8728
	}

	encryptedPassword, err := s.vault.Encrypt(req.RouterPassword)
	if err != nil {
		log.Printf("[ZONE] Router password encryption failed: %v", err)
		SendError(w, err)
		return
	}

	var zoneID int64
	err = s.db.QueryRow(`
		INSERT INTO zones (owner_id, name, description, address, city, country, latitude, longitude,
		                   router_ip, router_username, router_password, router_api_port)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		userID, req.Name, req.Description, req.Address, req.City, req.Country, req.Latitude, req.Longitude,
		req.RouterIP, req.RouterUsername, encryptedPassword, req.RouterAPIPort).Scan(&zoneID)
	if err != nil {
		SendError(w, err)
		return
	}

	zone, err := s.fetchZone(zoneID, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[ZONE] Zone %d created by user %d", zoneID, userID)
	SendSuccess(w, http.StatusCreated, map[string]any{"zone": zone})
}

// ListZones lists the caller's zones
// @Summary List zones
// @Tags zones
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Success 200 {object} map[string]interface{}
// @Router /zones [get]
func (s *ZoneService) ListZones(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	page, perPage := ParsePagination(r)
	filter := " WHERE owner_id = $1 AND deleted_at IS NULL"
	args := []any{userID}
	if st := r.URL.Query().Get("status"); st != "" {
		args = append(args, st)
		filter += " AND status = $2"
	}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM zones"+filter, args...).Scan(&total); err != nil {
		SendError(w, err)
		return
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := s.db.Query(`
		SELECT id, owner_id, name, description, address, city, country, latitude, longitude,
		       router_ip, router_username, router_api_port, status,
		       total_tickets, available_tickets, sold_tickets, used_tickets, total_revenue,
		       created_at, updated_at
		FROM zones`+filter+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		SendError(w, err)
		return
	}
	defer rows.Close()

	zones := make([]models.Zone, 0)
	for rows.Next() {
		var z models.Zone
		if err := scanZone(rows, &z); err != nil {
			SendError(w, err)
			return
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{
		"zones":      zones,
		"pagination": PaginationMeta(total, page, perPage),
	})
}

// GetZone returns one of the caller's zones
// @Summary Get zone
// @Tags zones
// @Produce json
// @Security BearerAuth
// @Param zoneId path int true "Zone ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /zones/{zoneId} [get]
func (s *ZoneService) GetZone(w http.ResponseWriter, r *http.Request) {
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

	zone, err := s.fetchZone(zoneID, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"zone": zone})
}

// UpdateZone updates zone metadata and router connection details
// @Summary Update zone
// @Tags zones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param zoneId path int true "Zone ID"
// @Param request body ZoneRequest true "Zone"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /zones/{zoneId} [put]
func (s *ZoneService) UpdateZone(w http.ResponseWriter, r *http.Request) {
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

	var req ZoneRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}
	if req.RouterAPIPort == 0 {
		req.RouterAPIPort = 8728
	}

	encryptedPassword, err := s.vault.Encrypt(req.RouterPassword)
	if err != nil {
		SendError(w, err)
		return
	}

	res, err := s.db.Exec(`
		UPDATE zones
		SET name = $1, description = $2, address = $3, city = $4, latitude = $5, longitude = $6,
		    router_ip = $7, router_username = $8, router_password = $9, router_api_port = $10,
		    updated_at = NOW()
		WHERE id = $11 AND owner_id = $12 AND deleted_at IS NULL`,
		req.Name, req.Description, req.Address, req.City, req.Latitude, req.Longitude,
		req.RouterIP, req.RouterUsername, encryptedPassword, req.RouterAPIPort,
		zoneID, userID)
	if err != nil {
		SendError(w, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendError(w, ErrNotFound)
		return
	}

	zone, err := s.fetchZone(zoneID, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"zone": zone})
}

// DeleteZone soft-deletes a zone and its plans
// @Summary Delete zone
// @Tags zones
// @Produce json
// @Security BearerAuth
// @Param zoneId path int true "Zone ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /zones/{zoneId} [delete]
func (s *ZoneService) DeleteZone(w http.ResponseWriter, r *http.Request) {
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

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE zones SET deleted_at = NOW(), status = $1, updated_at = NOW()
		WHERE id = $2 AND owner_id = $3 AND deleted_at IS NULL`,
		models.ZoneInactive, zoneID, userID)
	if err != nil {
		SendError(w, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendError(w, ErrNotFound)
		return
	}

	if _, err := tx.Exec(`
		UPDATE plans SET deleted_at = NOW(), status = $1, updated_at = NOW()
		WHERE zone_id = $2 AND deleted_at IS NULL`,
		models.PlanInactive, zoneID); err != nil {
		SendError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[ZONE] Zone %d deleted by user %d", zoneID, userID)
	SendSuccess(w, http.StatusOK, map[string]any{"message": "Zone deleted"})
}

// GetRouterCredentials returns the decrypted router login so the owner
// can provision the hotspot. This is the only place the password leaves
// the vault.
// @Summary Router credentials
// @Tags zones
// @Produce json
// @Security BearerAuth
// @Param zoneId path int true "Zone ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /zones/{zoneId}/credentials [get]
func (s *ZoneService) GetRouterCredentials(w http.ResponseWriter, r *http.Request) {
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

	cfg, err := s.RouterCredentials(zoneID, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{
		"router": map[string]any{
			"ip":       cfg.IP,
			"username": cfg.Username,
			"password": cfg.Password,
			"apiPort":  cfg.APIPort,
		},
	})
}

// RouterCredentials decrypts the stored router password for provisioning.
func (s *ZoneService) RouterCredentials(zoneID, ownerID int64) (*models.RouterConfig, error) {
	var cfg models.RouterConfig
	var encrypted string
	err := s.db.QueryRow(`
		SELECT router_ip, router_username, router_password, router_api_port
		FROM zones
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`, zoneID, ownerID).
		Scan(&cfg.IP, &cfg.Username, &encrypted, &cfg.APIPort)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Password, err = s.vault.Decrypt(encrypted)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *ZoneService) fetchZone(zoneID, ownerID int64) (*models.Zone, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_id, name, description, address, city, country, latitude, longitude,
		       router_ip, router_username, router_api_port, status,
		       total_tickets, available_tickets, sold_tickets, used_tickets, total_revenue,
		       created_at, updated_at
		FROM zones
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`, zoneID, ownerID)

	var z models.Zone
	if err := scanZone(row, &z); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &z, nil
}

func scanZone(row rowScanner, z *models.Zone) error {
	return row.Scan(
		&z.ID, &z.Owner, &z.Name, &z.Description, &z.Address, &z.City, &z.Country,
		&z.Latitude, &z.Longitude,
		&z.Router.IP, &z.Router.Username, &z.Router.APIPort, &z.Status,
		&z.Stats.TotalTickets, &z.Stats.AvailableTickets, &z.Stats.SoldTickets,
		&z.Stats.UsedTickets, &z.Stats.TotalRevenue,
		&z.CreatedAt, &z.UpdatedAt,
	)
}
