package models

import "time"

// KYC document types
const (
	DocIDFront = "id_front"
	DocIDBack  = "id_back"
	DocSelfie  = "selfie"
)

// KYCDocument is one uploaded identity document.
type KYCDocument struct {
	ID         int64     `json:"id" db:"id"`
	Type       string    `json:"type" db:"doc_type"`
	URL        string    `json:"url" db:"url"`
	Status     string    `json:"status" db:"status"`
	UploadedAt time.Time `json:"uploadedAt" db:"uploaded_at"`
}

// KYC is the one-to-one identity verification record gating withdrawal
// eligibility. REJECTED loops back to PENDING on resubmission.
type KYC struct {
	ID              int64         `json:"id" db:"id"`
	User            int64         `json:"user" db:"user_id"`
	Status          string        `json:"status" db:"status"`
	Documents       []KYCDocument `json:"documents"`
	SubmittedAt     *time.Time    `json:"submittedAt,omitempty" db:"submitted_at"`
	VerifiedAt      *time.Time    `json:"verifiedAt,omitempty" db:"verified_at"`
	VerifiedBy      *int64        `json:"verifiedBy,omitempty" db:"verified_by"`
	RejectedAt      *time.Time    `json:"rejectedAt,omitempty" db:"rejected_at"`
	RejectedBy      *int64        `json:"rejectedBy,omitempty" db:"rejected_by"`
	RejectionReason string        `json:"rejectionReason,omitempty" db:"rejection_reason"`
	Notes           string        `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`
}
