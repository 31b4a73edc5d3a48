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

type NotificationService struct {
	db *sql.DB
}

func NewNotificationService(db *sql.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Create appends a notification outside any transaction. Failures are
// logged and swallowed so a notification never fails the operation that
// triggered it.
func (s *NotificationService) Create(userID int64, notifType, title, message string) {
	_, err := s.db.Exec(`
		INSERT INTO notifications (user_id, type, title, message)
		VALUES ($1, $2, $3, $4)`,
		userID, notifType, title, message)
	if err != nil {
		log.Printf("[NOTIF] Failed to create %s notification for user %d: %v", notifType, userID, err)
	}
}

// CreateTx appends a notification inside the caller's transaction.
func (s *NotificationService) CreateTx(tx *sql.Tx, userID int64, notifType, title, message string) error {
	_, err := tx.Exec(`
		INSERT INTO notifications (user_id, type, title, message)
		VALUES ($1, $2, $3, $4)`,
		userID, notifType, title, message)
	return err
}

// ListNotifications lists the caller's notifications with unread count
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param perPage query int false "Page size"
// @Param unread query bool false "Only unread"
// @Success 200 {object} map[string]interface{}
// @Router /notifications [get]
func (s *NotificationService) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	page, perPage := ParsePagination(r)
	filter := " WHERE user_id = $1"
	args := []any{userID}
	if r.URL.Query().Get("unread") == "true" {
		filter += " AND is_read = FALSE"
	}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM notifications"+filter, args...).Scan(&total); err != nil {
		SendError(w, err)
		return
	}

	var unread int64
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE",
		userID).Scan(&unread); err != nil {
		SendError(w, err)
		return
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := s.db.Query(`
		SELECT id, user_id, type, title, message, is_read, read_at, created_at
		FROM notifications`+filter+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		SendError(w, err)
		return
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.User, &n.Type, &n.Title, &n.Message,
			&n.Read, &n.ReadAt, &n.CreatedAt); err != nil {
			SendError(w, err)
			return
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		SendError(w, err)
		return
	}

	SendSuccess(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"unreadCount":   unread,
		"pagination":    PaginationMeta(total, page, perPage),
	})
}

// MarkRead marks one notification as read
// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param notificationId path int true "Notification ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /notifications/{notificationId}/read [patch]
func (s *NotificationService) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	notifID, err := strconv.ParseInt(chi.URLParam(r, "notificationId"), 10, 64)
	if err != nil {
		SendError(w, ErrNotFound)
		return
	}

	res, err := s.db.Exec(`
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_read = FALSE`,
		notifID, userID)
	if err != nil {
		SendError(w, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish already-read from missing
		var exists int64
		err := s.db.QueryRow(
			"SELECT id FROM notifications WHERE id = $1 AND user_id = $2",
			notifID, userID).Scan(&exists)
		if err == sql.ErrNoRows {
			SendError(w, ErrNotFound)
			return
		}
		if err != nil {
			SendError(w, err)
			return
		}
	}

	SendSuccess(w, http.StatusOK, map[string]any{"message": "Notification marked as read"})
}

// MarkAllRead marks every unread notification of the caller as read
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /notifications/read-all [patch]
func (s *NotificationService) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendError(w, ErrUnauthorized)
		return
	}

	res, err := s.db.Exec(`
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		SendError(w, err)
		return
	}

	updated, _ := res.RowsAffected()
	SendSuccess(w, http.StatusOK, map[string]any{"updated": updated})
}
