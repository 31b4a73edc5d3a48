package models

import "time"

// Zone status
const (
	ZoneActive   = "active"
	ZoneInactive = "inactive"
)

// RouterConfig holds the MikroTik API connection details for a zone.
// The password is stored encrypted and never serialized.
type RouterConfig struct {
	IP       string `json:"ip" db:"router_ip"`
	Username string `json:"username" db:"router_username"`
	Password string `json:"-" db:"router_password"`
	APIPort  int    `json:"apiPort" db:"router_api_port"`
}

// ZoneStats is a stored aggregate over the zone's ticket population.
// It is mutated only inside ticket lifecycle transitions, in the same
// SQL transaction as the ticket itself.
type ZoneStats struct {
	TotalTickets     int64 `json:"totalTickets" db:"total_tickets"`
	AvailableTickets int64 `json:"availableTickets" db:"available_tickets"`
	SoldTickets      int64 `json:"soldTickets" db:"sold_tickets"`
	UsedTickets      int64 `json:"usedTickets" db:"used_tickets"`
	TotalRevenue     int64 `json:"totalRevenue" db:"total_revenue"`
}

// Zone is a physical hotspot location owned by exactly one user.
type Zone struct {
	ID          int64        `json:"id" db:"id"`
	Owner       int64        `json:"owner" db:"owner_id"`
	Name        string       `json:"name" db:"name"`
	Description string       `json:"description" db:"description"`
	Address     string       `json:"address" db:"address"`
	City        string       `json:"city" db:"city"`
	Country     string       `json:"country" db:"country"`
	Latitude    float64      `json:"latitude" db:"latitude"`
	Longitude   float64      `json:"longitude" db:"longitude"`
	Router      RouterConfig `json:"routerConfig"`
	Status      string       `json:"status" db:"status"`
	Stats       ZoneStats    `json:"stats"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
	DeletedAt   *time.Time   `json:"-" db:"deleted_at"`
}
