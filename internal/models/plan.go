package models

import "time"

// Plan status
const (
	PlanActive   = "active"
	PlanInactive = "inactive"
)

// PlanStats mirrors the zone aggregate at plan granularity.
type PlanStats struct {
	TotalTickets int64 `json:"totalTickets" db:"total_tickets"`
	SoldTickets  int64 `json:"soldTickets" db:"sold_tickets"`
	TotalRevenue int64 `json:"totalRevenue" db:"total_revenue"`
}

// Plan is a priced duration/data-cap template tickets are issued against.
// Price changes are forward-only: transactions recorded against tickets
// already sold keep the price captured at sale time.
type Plan struct {
	ID            int64      `json:"id" db:"id"`
	Zone          int64      `json:"zone" db:"zone_id"`
	Name          string     `json:"name" db:"name"`
	Description   string     `json:"description" db:"description"`
	Duration      int64      `json:"duration" db:"duration"` // seconds
	Price         int64      `json:"price" db:"price"`       // FCFA
	DownloadLimit *int64     `json:"downloadLimit" db:"download_limit"` // KB, nil = unlimited
	UploadLimit   *int64     `json:"uploadLimit" db:"upload_limit"`     // KB, nil = unlimited
	Status        string     `json:"status" db:"status"`
	Stats         PlanStats  `json:"stats"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt     *time.Time `json:"-" db:"deleted_at"`
}
