// Development seeder: creates an admin, a demo zone owner with two
// plans and a batch of tickets. Safe to re-run, existing rows are kept.
package main

import (
	"database/sql"
	"log"
	"time"

	"github.com/spf13/viper"

	"github.com/wifipass/backend/internal/database"
	"github.com/wifipass/backend/internal/models"
	"github.com/wifipass/backend/internal/services"
)

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	db := database.InitDatabase()
	defer db.Close()

	adminID := seedUser(db, "admin@wifipass.local", "+2250700000001", "Admin1234!", "Admin", "Platform", models.RoleAdmin)
	ownerID := seedUser(db, "owner@wifipass.local", "+2250700000002", "Owner1234!", "Awa", "Koné", models.RoleUser)
	log.Printf("admin=%d owner=%d", adminID, ownerID)

	// Demo owner is pre-verified so withdrawals work out of the box
	if _, err := db.Exec(
		"UPDATE users SET kyc_status = $1 WHERE id = $2", models.KYCVerified, ownerID); err != nil {
		log.Fatalf("verify owner: %v", err)
	}
	if _, err := db.Exec(`
		UPDATE kyc_records SET status = $1, verified_at = NOW(), verified_by = $2
		WHERE user_id = $3`, models.KYCVerified, adminID, ownerID); err != nil {
		log.Fatalf("verify owner kyc record: %v", err)
	}

	zoneID := seedZone(db, ownerID)
	hourly := seedPlan(db, zoneID, "1 heure", 3600, 200)
	daily := seedPlan(db, zoneID, "24 heures", 86400, 1000)
	log.Printf("zone=%d plans=[%d %d]", zoneID, hourly, daily)

	seedTickets(db, zoneID, daily, ownerID, 20)
	log.Println("Seed complete")
}

func seedUser(db *sql.DB, email, phone, password, firstname, lastname, role string) int64 {
	var id int64
	err := db.QueryRow("SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return id
	}
	if err != sql.ErrNoRows {
		log.Fatalf("lookup %s: %v", email, err)
	}

	hash, err := services.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	err = db.QueryRow(`
		INSERT INTO users (email, phone, password, firstname, lastname, role, referral_code, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id`,
		email, phone, hash, firstname, lastname, role, services.GenerateReferralCode()).Scan(&id)
	if err != nil {
		log.Fatalf("insert %s: %v", email, err)
	}
	if _, err := db.Exec("INSERT INTO kyc_records (user_id) VALUES ($1)", id); err != nil {
		log.Fatalf("insert kyc record for %s: %v", email, err)
	}
	return id
}

func seedZone(db *sql.DB, ownerID int64) int64 {
	var id int64
	err := db.QueryRow(
		"SELECT id FROM zones WHERE owner_id = $1 AND name = $2", ownerID, "Maquis du Rond-Point").Scan(&id)
	if err == nil {
		return id
	}
	if err != sql.ErrNoRows {
		log.Fatalf("lookup zone: %v", err)
	}

	err = db.QueryRow(`
		INSERT INTO zones (owner_id, name, description, address, city, router_ip, router_username, router_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		ownerID, "Maquis du Rond-Point", "Zone de démonstration",
		"Rond-point de la Sorbonne", "Abidjan", "192.168.88.1", "api", "").Scan(&id)
	if err != nil {
		log.Fatalf("insert zone: %v", err)
	}
	return id
}

func seedPlan(db *sql.DB, zoneID int64, name string, duration, price int64) int64 {
	var id int64
	err := db.QueryRow(
		"SELECT id FROM plans WHERE zone_id = $1 AND name = $2", zoneID, name).Scan(&id)
	if err == nil {
		return id
	}
	if err != sql.ErrNoRows {
		log.Fatalf("lookup plan %s: %v", name, err)
	}

	err = db.QueryRow(`
		INSERT INTO plans (zone_id, name, duration, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, zoneID, name, duration, price).Scan(&id)
	if err != nil {
		log.Fatalf("insert plan %s: %v", name, err)
	}
	return id
}

func seedTickets(db *sql.DB, zoneID, planID, ownerID int64, count int) {
	var existing int64
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM tickets WHERE plan_id = $1", planID).Scan(&existing); err != nil {
		log.Fatalf("count tickets: %v", err)
	}
	if existing > 0 {
		return
	}

	expiresAt := time.Now().AddDate(0, 0, 30)
	for i := 0; i < count; i++ {
		_, err := db.Exec(`
			INSERT INTO tickets (ticket_id, zone_id, plan_id, owner_id, username, password, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			services.GenerateTicketID(), zoneID, planID, ownerID,
			services.GenerateTicketUsername("Maquis du Rond-Point"),
			services.GenerateTicketPassword(), expiresAt)
		if err != nil {
			log.Fatalf("insert ticket: %v", err)
		}
	}

	n := int64(count)
	if _, err := db.Exec(`
		UPDATE zones SET total_tickets = total_tickets + $1, available_tickets = available_tickets + $1
		WHERE id = $2`, n, zoneID); err != nil {
		log.Fatalf("update zone stats: %v", err)
	}
	if _, err := db.Exec(
		"UPDATE plans SET total_tickets = total_tickets + $1 WHERE id = $2", n, planID); err != nil {
		log.Fatalf("update plan stats: %v", err)
	}
}
