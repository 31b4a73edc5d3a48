package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/wifipass/backend/internal/mailer"
	"github.com/wifipass/backend/internal/models"
)

const referralCodeAttempts = 5

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	mailer    mailer.Mailer
	validator *ValidationHelper
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, m mailer.Mailer) *AuthService {
	if m == nil {
		m = mailer.NopMailer{}
	}
	return &AuthService{
		db:        db,
		redis:     redisClient,
		mailer:    m,
		validator: NewValidationHelper(),
	}
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email" example:"owner@example.com"`
	Phone        string `json:"phone" validate:"required,min=8" example:"+2250701020304"`
	Password     string `json:"password" validate:"required,min=8" example:"secret-pass"`
	Firstname    string `json:"firstname" validate:"required,min=2" example:"Awa"`
	Lastname     string `json:"lastname" validate:"required,min=2" example:"Kouassi"`
	Country      string `json:"country" validate:"omitempty,len=2" example:"CI"`
	ReferralCode string `json:"referralCode" validate:"omitempty" example:"WIFIM2X4AB12"`
}

// LoginRequest authenticates by email or phone
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required" example:"owner@example.com"`
	Password   string `json:"password" validate:"required" example:"secret-pass"`
}

// TokenPair carries the issued access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates a new zone-owner account
// @Summary Register a new user
// @Description Register with email, phone and password; optional referral attribution
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Country == "" {
		req.Country = "CI"
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		SendError(w, err)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRow(`SELECT email FROM users WHERE email = $1`, req.Email).Scan(&exists)
	if err == nil {
		SendError(w, ErrEmailExists)
		return
	}
	err = tx.QueryRow(`SELECT phone FROM users WHERE phone = $1`, req.Phone).Scan(&exists)
	if err == nil {
		SendError(w, ErrPhoneExists)
		return
	}

	var referredBy *int64
	if req.ReferralCode != "" {
		var referrerID int64
		err = tx.QueryRow(`SELECT id FROM users WHERE referral_code = $1 AND deleted_at IS NULL`,
			req.ReferralCode).Scan(&referrerID)
		if err != nil {
			log.Printf("[AUTH] Unknown referral code %q", req.ReferralCode)
			SendError(w, NewAPIError(CodeNotFound, "Invalid referral code", http.StatusNotFound))
			return
		}
		referredBy = &referrerID
	}

	// Referral codes are generated, never user-chosen; retry under the
	// unique index until one sticks.
	var userID int64
	for attempt := 0; ; attempt++ {
		code := GenerateReferralCode()
		err = tx.QueryRow(`
			INSERT INTO users (email, phone, password, firstname, lastname, country, referral_code, referred_by)
			SELECT $1, $2, $3, $4, $5, $6, $7, $8
			WHERE NOT EXISTS (SELECT 1 FROM users WHERE referral_code = $7)
			RETURNING id`,
			req.Email, req.Phone, hashedPassword, req.Firstname, req.Lastname, req.Country, code, referredBy,
		).Scan(&userID)
		if err == nil {
			break
		}
		if err == sql.ErrNoRows && attempt < referralCodeAttempts {
			continue
		}
		log.Printf("[AUTH] User creation failed for %s: %v", req.Email, err)
		SendError(w, err)
		return
	}

	if _, err = tx.Exec(`INSERT INTO kyc_records (user_id) VALUES ($1)`, userID); err != nil {
		log.Printf("[AUTH] KYC record creation failed for user %d: %v", userID, err)
		SendError(w, err)
		return
	}

	if _, err = tx.Exec(`UPDATE users SET last_login = NOW() WHERE id = $1`, userID); err != nil {
		SendError(w, err)
		return
	}

	if err = tx.Commit(); err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[AUTH] User created - ID: %d, Email: %s", userID, req.Email)

	tokens, err := generateTokens(userID, models.RoleUser)
	if err != nil {
		log.Printf("[AUTH] Token generation failed for user %d: %v", userID, err)
		SendError(w, err)
		return
	}

	go s.sendWelcomeEmail(userID, req.Email, req.Firstname+" "+req.Lastname)

	user, err := s.fetchUser(userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusCreated, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

// Login authenticates a user by email or phone
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	identifier := strings.ToLower(strings.TrimSpace(req.Identifier))

	var (
		userID         int64
		hashedPassword string
		role           string
		isActive       bool
		deletedAt      *time.Time
	)
	err := s.db.QueryRow(`
		SELECT id, password, role, is_active, deleted_at
		FROM users
		WHERE email = $1 OR phone = $2`,
		identifier, strings.TrimSpace(req.Identifier)).
		Scan(&userID, &hashedPassword, &role, &isActive, &deletedAt)
	if err != nil {
		log.Printf("[AUTH] No user for identifier %q", req.Identifier)
		SendError(w, ErrInvalidCredentials)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for user %d", userID)
		SendError(w, ErrInvalidCredentials)
		return
	}

	if !isActive || deletedAt != nil {
		log.Printf("[AUTH] Login rejected for inactive user %d", userID)
		SendError(w, ErrInvalidCredentials)
		return
	}

	tokens, err := generateTokens(userID, role)
	if err != nil {
		SendError(w, err)
		return
	}

	if _, err := s.db.Exec(`UPDATE users SET last_login = NOW() WHERE id = $1`, userID); err != nil {
		log.Printf("[AUTH] Failed to update last_login for user %d: %v", userID, err)
	}

	user, err := s.fetchUser(userID)
	if err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[AUTH] Login successful for user %d", userID)
	SendSuccess(w, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

// RefreshToken exchanges a refresh token for a new token pair
// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refreshToken=string} true "Refresh request"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /auth/refresh [post]
func (s *AuthService) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	token, err := jwt.Parse(req.RefreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	if err != nil || !token.Valid {
		SendError(w, ErrUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}
	if typ, _ := claims["type"].(string); typ != "refresh" {
		SendError(w, ErrUnauthorized)
		return
	}
	sub, ok := claims["user_id"].(float64)
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}
	userID := int64(sub)

	var role string
	var isActive bool
	var deletedAt *time.Time
	err = s.db.QueryRow(`SELECT role, is_active, deleted_at FROM users WHERE id = $1`, userID).
		Scan(&role, &isActive, &deletedAt)
	if err != nil || !isActive || deletedAt != nil {
		SendError(w, ErrUnauthorized)
		return
	}

	tokens, err := generateTokens(userID, role)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"tokens": tokens})
}

// Logout blacklists the presented access token
// @Summary Logout
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if len(token) > 7 && strings.HasPrefix(token, "Bearer ") {
		token = token[7:]

		if s.redis != nil {
			key := fmt.Sprintf("blacklist:%s", token)
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(r.Context(), key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	SendSuccess(w, http.StatusOK, map[string]any{"message": "Logout successful"})
}

// ForgotPassword emails a one-time reset link
// @Summary Request password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Email"
// @Success 200 {object} map[string]interface{}
// @Router /auth/forgot-password [post]
func (s *AuthService) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	// Response never reveals whether the email exists.
	respond := func() {
		SendSuccess(w, http.StatusOK, map[string]any{"message": "Password reset email sent"})
	}

	var userID int64
	var firstname, lastname string
	err := s.db.QueryRow(`
		SELECT id, firstname, lastname FROM users
		WHERE email = $1 AND deleted_at IS NULL`,
		strings.ToLower(req.Email)).Scan(&userID, &firstname, &lastname)
	if err != nil {
		respond()
		return
	}

	if s.redis == nil {
		log.Printf("[AUTH] Password reset requested without redis, ignoring")
		respond()
		return
	}

	token := GenerateRandomToken()
	key := fmt.Sprintf("pwreset:%s", hashToken(token))
	if err := s.redis.Set(r.Context(), key, userID, time.Hour).Err(); err != nil {
		log.Printf("[AUTH] Failed to store reset token: %v", err)
		respond()
		return
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", viper.GetString("app.frontend_url"), token)
	subject, body := mailer.PasswordResetBody(firstname+" "+lastname, resetURL)
	go func() {
		if err := s.mailer.Send(req.Email, subject, body); err != nil {
			log.Printf("[AUTH] Failed to send password reset email: %v", err)
		}
	}()

	respond()
}

// ResetPassword consumes a reset token and sets a new password
// @Summary Reset password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{token=string,newPassword=string} true "Reset request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /auth/reset-password [post]
func (s *AuthService) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	if s.redis == nil {
		SendError(w, ErrInvalidToken)
		return
	}

	key := fmt.Sprintf("pwreset:%s", hashToken(req.Token))
	userID, err := s.redis.Get(r.Context(), key).Int64()
	if err != nil {
		SendError(w, ErrInvalidToken)
		return
	}

	hashedPassword, err := HashPassword(req.NewPassword)
	if err != nil {
		SendError(w, err)
		return
	}

	if _, err := s.db.Exec(`UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2`,
		hashedPassword, userID); err != nil {
		SendError(w, err)
		return
	}

	s.redis.Del(r.Context(), key)
	log.Printf("[AUTH] Password reset for user %d", userID)
	SendSuccess(w, http.StatusOK, map[string]any{"message": "Password reset successful"})
}

// VerifyEmail consumes an email verification token
// @Summary Verify email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{token=string} true "Verification token"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /auth/verify-email [post]
func (s *AuthService) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	if s.redis == nil {
		SendError(w, ErrInvalidToken)
		return
	}

	key := fmt.Sprintf("verify:%s", hashToken(req.Token))
	userID, err := s.redis.Get(r.Context(), key).Int64()
	if err != nil {
		SendError(w, ErrInvalidToken)
		return
	}

	if _, err := s.db.Exec(`UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`,
		userID); err != nil {
		SendError(w, err)
		return
	}

	s.redis.Del(r.Context(), key)
	SendSuccess(w, http.StatusOK, map[string]any{"message": "Email verified"})
}

func (s *AuthService) sendWelcomeEmail(userID int64, email, name string) {
	verificationURL := viper.GetString("app.frontend_url")

	if s.redis != nil {
		token := GenerateRandomToken()
		key := fmt.Sprintf("verify:%s", hashToken(token))
		if err := s.redis.Set(context.Background(), key, userID, 24*time.Hour).Err(); err != nil {
			log.Printf("[AUTH] Failed to store verification token: %v", err)
		} else {
			verificationURL = fmt.Sprintf("%s/verify-email?token=%s", viper.GetString("app.frontend_url"), token)
		}
	}

	subject, body := mailer.WelcomeBody(name, verificationURL)
	if err := s.mailer.Send(email, subject, body); err != nil {
		log.Printf("[AUTH] Failed to send welcome email to %s: %v", email, err)
	}
}

func (s *AuthService) fetchUser(userID int64) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(`
		SELECT id, email, phone, firstname, lastname, country, role, kyc_status,
		       balance_total, balance_available, balance_pending, balance_reserved,
		       referral_code, referred_by, email_verified,
		       pref_email_notifications, pref_sale_alerts, pref_stock_alerts,
		       pref_weekly_reports, pref_kyc_updates,
		       is_active, last_login, created_at, updated_at
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`, userID).
		Scan(&u.ID, &u.Email, &u.Phone, &u.Firstname, &u.Lastname, &u.Country, &u.Role, &u.KYCStatus,
			&u.Balance.Total, &u.Balance.Available, &u.Balance.Pending, &u.Balance.Reserved,
			&u.ReferralCode, &u.ReferredBy, &u.EmailVerified,
			&u.Preferences.EmailNotifications, &u.Preferences.SaleAlerts, &u.Preferences.StockAlerts,
			&u.Preferences.WeeklyReports, &u.Preferences.KYCUpdates,
			&u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func generateTokens(userID int64, role string) (*TokenPair, error) {
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("jwt.refresh_expiry_hours", 24*30)
	secret := []byte(viper.GetString("jwt.secret_key"))

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"type":    "access",
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})
	accessToken, err := access.SignedString(secret)
	if err != nil {
		return nil, err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"type":    "refresh",
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.refresh_expiry_hours")) * time.Hour).Unix(),
	})
	refreshToken, err := refresh.SignedString(secret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// HashPassword derives an argon2id hash in salt$hash form, both parts
// base64 encoded.
func HashPassword(password string) (string, error) {
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)

	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
