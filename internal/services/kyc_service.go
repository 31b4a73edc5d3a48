package services

import (
	"database/sql"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wifipass/backend/internal/mailer"
	"github.com/wifipass/backend/internal/middleware"
	"github.com/wifipass/backend/internal/models"
	"github.com/wifipass/backend/internal/storage"
)

const maxDocumentSize = 5 << 20 // 5 MB per document

// KYCService runs identity verification. A verified status on the user
// row is what unlocks withdrawals.
type KYCService struct {
	db        *sql.DB
	uploader  storage.Uploader
	notifier  *NotificationService
	mailer    mailer.Mailer
	validator *ValidationHelper
}

func NewKYCService(db *sql.DB, uploader storage.Uploader, notifier *NotificationService, m mailer.Mailer) *KYCService {
	if m == nil {
		m = mailer.NopMailer{}
	}
	return &KYCService{
		db:        db,
		uploader:  uploader,
		notifier:  notifier,
		mailer:    m,
		validator: NewValidationHelper(),
	}
}

// SubmitKYC uploads identity documents and moves the record to PENDING.
// Resubmission after rejection starts a fresh review.
// @Summary Submit KYC documents
// @Tags kyc
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id_front formData file true "ID front"
// @Param id_back formData file true "ID back"
// @Param selfie formData file true "Selfie"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /kyc/submit [post]
func (s *KYCService) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(3 * maxDocumentSize); err != nil {
		SendValidationError(w, "Invalid multipart form", nil)
		return
	}

	docTypes := []string{models.DocIDFront, models.DocIDBack, models.DocSelfie}
	files := make(map[string]*multipart.FileHeader, len(docTypes))
	for _, dt := range docTypes {
		fhs := r.MultipartForm.File[dt]
		if len(fhs) != 1 {
			SendValidationError(w, "Missing document: "+dt, nil)
			return
		}
		if fhs[0].Size > maxDocumentSize {
			SendValidationError(w, "Document too large: "+dt, nil)
			return
		}
		files[dt] = fhs[0]
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, err)
		return
	}
	defer tx.Rollback()

	var kycID int64
	var status string
	err = tx.QueryRow(
		"SELECT id, status FROM kyc_records WHERE user_id = $1 FOR UPDATE", userID).
		Scan(&kycID, &status)
	if err == sql.ErrNoRows {
		SendError(w, ErrNotFound)
		return
	}
	if err != nil {
		SendError(w, err)
		return
	}
	if status == models.KYCVerified || status == models.KYCPending {
		SendError(w, &APIError{Code: CodeConflict, Message: "KYC already submitted", Status: http.StatusConflict})
		return
	}

	// Replace any documents from a previous, rejected submission
	if _, err := tx.Exec("DELETE FROM kyc_documents WHERE kyc_id = $1", kycID); err != nil {
		SendError(w, err)
		return
	}

	uploaded := make([]string, 0, len(docTypes))
	for _, dt := range docTypes {
		f, err := files[dt].Open()
		if err != nil {
			s.cleanupUploads(uploaded)
			SendError(w, err)
			return
		}
		url, err := s.uploader.Upload("kyc/"+strconv.FormatInt(userID, 10), files[dt].Filename, f)
		f.Close()
		if err != nil {
			s.cleanupUploads(uploaded)
			SendError(w, err)
			return
		}
		uploaded = append(uploaded, url)

		if _, err := tx.Exec(`
			INSERT INTO kyc_documents (kyc_id, doc_type, url) VALUES ($1, $2, $3)`,
			kycID, dt, url); err != nil {
			s.cleanupUploads(uploaded)
			SendError(w, err)
			return
		}
	}

	if _, err := tx.Exec(`
		UPDATE kyc_records
		SET status = $1, submitted_at = NOW(), rejection_reason = '', updated_at = NOW()
		WHERE id = $2`, models.KYCPending, kycID); err != nil {
		s.cleanupUploads(uploaded)
		SendError(w, err)
		return
	}
	if _, err := tx.Exec(
		"UPDATE users SET kyc_status = $1, updated_at = NOW() WHERE id = $2",
		models.KYCPending, userID); err != nil {
		s.cleanupUploads(uploaded)
		SendError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		s.cleanupUploads(uploaded)
		SendError(w, err)
		return
	}

	log.Printf("[KYC] User %d submitted documents for verification", userID)
	SendSuccess(w, http.StatusOK, map[string]any{
		"status":  models.KYCPending,
		"message": "Documents submitted for verification",
	})
}

func (s *KYCService) cleanupUploads(urls []string) {
	for _, url := range urls {
		if err := s.uploader.Delete(url); err != nil {
			log.Printf("[KYC] Orphaned upload %s: %v", url, err)
		}
	}
}

// GetKYCStatus returns the caller's verification record
// @Summary Get KYC status
// @Tags kyc
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /kyc/status [get]
func (s *KYCService) GetKYCStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	record, err := s.fetchRecord(userID)
	if err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{"kyc": record})
}

// ListPendingKYC lists records awaiting review
// @Summary List pending KYC (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /admin/kyc/pending [get]
func (s *KYCService) ListPendingKYC(w http.ResponseWriter, r *http.Request) {
	page, perPage := ParsePagination(r)

	var total int64
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM kyc_records WHERE status = $1", models.KYCPending).Scan(&total); err != nil {
		SendError(w, err)
		return
	}

	rows, err := s.db.Query(selectKYC+`
		WHERE status = $1
		ORDER BY submitted_at ASC
		LIMIT $2 OFFSET $3`, models.KYCPending, perPage, (page-1)*perPage)
	if err != nil {
		SendError(w, err)
		return
	}
	defer rows.Close()

	records := make([]models.KYC, 0)
	for rows.Next() {
		var k models.KYC
		if err := scanKYC(rows, &k); err != nil {
			SendError(w, err)
			return
		}
		if err := s.loadDocuments(&k); err != nil {
			SendError(w, err)
			return
		}
		records = append(records, k)
	}
	if err := rows.Err(); err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{
		"records":    records,
		"pagination": PaginationMeta(total, page, perPage),
	})
}

// ApproveKYC marks a pending record verified
// @Summary Approve KYC (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /admin/kyc/{userId}/approve [patch]
func (s *KYCService) ApproveKYC(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		SendError(w, ErrNotFound)
		return
	}

	if err := s.review(targetID, adminID, models.KYCVerified, ""); err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[KYC] User %d verified by admin %d", targetID, adminID)
	s.afterReview(targetID, models.KYCVerified, "")
	SendSuccess(w, http.StatusOK, map[string]any{"status": models.KYCVerified})
}

type RejectKYCRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// RejectKYC rejects a pending record with a reason
// @Summary Reject KYC (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param request body RejectKYCRequest true "Rejection"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /admin/kyc/{userId}/reject [patch]
func (s *KYCService) RejectKYC(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		SendError(w, ErrNotFound)
		return
	}

	var req RejectKYCRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendValidationError(w, "Invalid request body", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendValidationError(w, "Validation failed", err)
		return
	}

	if err := s.review(targetID, adminID, models.KYCRejected, req.Reason); err != nil {
		SendError(w, err)
		return
	}

	log.Printf("[KYC] User %d rejected by admin %d: %s", targetID, adminID, req.Reason)
	s.afterReview(targetID, models.KYCRejected, req.Reason)
	SendSuccess(w, http.StatusOK, map[string]any{"status": models.KYCRejected})
}

// review applies an admin decision to a PENDING record and mirrors it
// onto the user row.
func (s *KYCService) review(targetID, adminID int64, decision, reason string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var res sql.Result
	if decision == models.KYCVerified {
		res, err = tx.Exec(`
			UPDATE kyc_records
			SET status = $1, verified_at = NOW(), verified_by = $2, updated_at = NOW()
			WHERE user_id = $3 AND status = $4`,
			decision, adminID, targetID, models.KYCPending)
	} else {
		res, err = tx.Exec(`
			UPDATE kyc_records
			SET status = $1, rejected_at = NOW(), rejected_by = $2, rejection_reason = $3, updated_at = NOW()
			WHERE user_id = $4 AND status = $5`,
			decision, adminID, reason, targetID, models.KYCPending)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &APIError{Code: CodeConflict, Message: "No pending KYC record for this user", Status: http.StatusConflict}
	}

	if _, err := tx.Exec(
		"UPDATE users SET kyc_status = $1, updated_at = NOW() WHERE id = $2",
		decision, targetID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *KYCService) afterReview(targetID int64, decision, reason string) {
	title := "Identité vérifiée"
	message := "Votre vérification d'identité a été approuvée. Vous pouvez maintenant effectuer des retraits."
	if decision == models.KYCRejected {
		title = "Vérification rejetée"
		message = "Votre vérification d'identité a été rejetée : " + reason
	}
	s.notifier.Create(targetID, models.NotifKYCUpdate, title, message)

	var email, firstname, lastname string
	var emailPref, kycPref bool
	err := s.db.QueryRow(`
		SELECT email, firstname, lastname, pref_email_notifications, pref_kyc_updates
		FROM users WHERE id = $1`, targetID).
		Scan(&email, &firstname, &lastname, &emailPref, &kycPref)
	if err != nil {
		log.Printf("[KYC] Could not load user %d for status email: %v", targetID, err)
		return
	}
	if emailPref && kycPref {
		subject, body := mailer.KYCStatusBody(firstname+" "+lastname, decision, reason)
		if err := s.mailer.Send(email, subject, body); err != nil {
			log.Printf("[KYC] Status email to %s failed: %v", email, err)
		}
	}
}

func (s *KYCService) fetchRecord(userID int64) (*models.KYC, error) {
	row := s.db.QueryRow(selectKYC+" WHERE user_id = $1", userID)
	var k models.KYC
	if err := scanKYC(row, &k); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.loadDocuments(&k); err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *KYCService) loadDocuments(k *models.KYC) error {
	rows, err := s.db.Query(`
		SELECT id, doc_type, url, status, uploaded_at
		FROM kyc_documents
		WHERE kyc_id = $1
		ORDER BY id ASC`, k.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	k.Documents = make([]models.KYCDocument, 0)
	for rows.Next() {
		var d models.KYCDocument
		if err := rows.Scan(&d.ID, &d.Type, &d.URL, &d.Status, &d.UploadedAt); err != nil {
			return err
		}
		k.Documents = append(k.Documents, d)
	}
	return rows.Err()
}

const selectKYC = `
	SELECT id, user_id, status, submitted_at, verified_at, verified_by,
	       rejected_at, rejected_by, rejection_reason, notes, created_at, updated_at
	FROM kyc_records`

func scanKYC(row rowScanner, k *models.KYC) error {
	return row.Scan(
		&k.ID, &k.User, &k.Status, &k.SubmittedAt, &k.VerifiedAt, &k.VerifiedBy,
		&k.RejectedAt, &k.RejectedBy, &k.RejectionReason, &k.Notes,
		&k.CreatedAt, &k.UpdatedAt,
	)
}
