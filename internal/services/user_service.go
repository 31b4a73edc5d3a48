package services

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/wifipass/backend/internal/middleware"
)

type UserService struct {
	auth      *AuthService
	db        *sql.DB
	validator *ValidationHelper
}

func NewUserService(db *sql.DB, auth *AuthService) *UserService {
	return &UserService{
		auth:      auth,
		db:        db,
		validator: NewValidationHelper(),
	}
}

// GetMe returns the authenticated user's profile
// @Summary Current user profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /users/me [get]
func (s *UserService) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	user, err := s.auth.fetchUser(userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"user": user})
}

// UpdateMe updates mutable profile fields
// @Summary Update profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{firstname=string,lastname=string,country=string} true "Profile update"
// @Success 200 {object} map[string]interface{}
// @Router /users/me [put]
func (s *UserService) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	var req struct {
		Firstname string `json:"firstname" validate:"required,min=2"`
		Lastname  string `json:"lastname" validate:"required,min=2"`
		Country   string `json:"country" validate:"required,len=2"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	_, err := s.db.Exec(`
		UPDATE users SET firstname = $1, lastname = $2, country = $3, updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL`,
		req.Firstname, req.Lastname, req.Country, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	user, err := s.auth.fetchUser(userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"user": user})
}

// ChangePassword verifies the current password before replacing it
// @Summary Change password
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{currentPassword=string,newPassword=string} true "Password change"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /users/change-password [put]
func (s *UserService) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=8"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	var hashedPassword string
	err := s.db.QueryRow(`SELECT password FROM users WHERE id = $1 AND deleted_at IS NULL`, userID).
		Scan(&hashedPassword)
	if err != nil {
		SendError(w, ErrNotFound)
		return
	}

	if !verifyPassword(req.CurrentPassword, hashedPassword) {
		SendError(w, ErrInvalidCredentials)
		return
	}

	newHash, err := HashPassword(req.NewPassword)
	if err != nil {
		SendError(w, err)
		return
	}

	if _, err := s.db.Exec(`UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2`,
		newHash, userID); err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[USER] Password changed for user %d", userID)
	SendSuccess(w, http.StatusOK, map[string]any{"message": "Password changed"})
}

// UpdatePreferences updates email notification toggles
// @Summary Update notification preferences
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object true "Preferences"
// @Success 200 {object} map[string]interface{}
// @Router /users/notification-preferences [put]
func (s *UserService) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	var req struct {
		EmailNotifications bool `json:"emailNotifications"`
		SaleAlerts         bool `json:"saleAlerts"`
		StockAlerts        bool `json:"stockAlerts"`
		WeeklyReports      bool `json:"weeklyReports"`
		KYCUpdates         bool `json:"kycUpdates"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}

	_, err := s.db.Exec(`
		UPDATE users
		SET pref_email_notifications = $1, pref_sale_alerts = $2, pref_stock_alerts = $3,
		    pref_weekly_reports = $4, pref_kyc_updates = $5, updated_at = NOW()
		WHERE id = $6 AND deleted_at IS NULL`,
		req.EmailNotifications, req.SaleAlerts, req.StockAlerts, req.WeeklyReports, req.KYCUpdates, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"message": "Preferences updated"})
}

// DeleteMe soft-deletes the account; it stays recoverable for audit
// @Summary Delete account
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /users/me [delete]
func (s *UserService) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	res, err := s.db.Exec(`
		UPDATE users SET deleted_at = NOW(), is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, userID)
	if err != nil {
		SendError(w, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendError(w, ErrNotFound)
		return
	}

	log.Printf("[USER] Account %d soft-deleted", userID)
	SendSuccess(w, http.StatusOK, map[string]any{"message": "Account deleted"})
}
