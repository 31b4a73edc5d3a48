package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/wifipass/backend/docs"
	"github.com/wifipass/backend/internal/database"
	mlr "github.com/wifipass/backend/internal/mailer"
	mW "github.com/wifipass/backend/internal/middleware"
	"github.com/wifipass/backend/internal/services"
	"github.com/wifipass/backend/internal/storage"
	"github.com/wifipass/backend/internal/vault"
)

// @title WiFi Pass API
// @version 1.0
// @description API for the WiFi hotspot voucher marketplace
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("vault.master_key", "VAULT_MASTER_KEY")
	viper.BindEnv("vault.salt", "VAULT_SALT")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("commission.rate", "COMMISSION_RATE")
	viper.BindEnv("commission.referral_rate", "COMMISSION_REFERRAL_RATE")
	viper.BindEnv("withdrawal.min_amount", "WITHDRAWAL_MIN_AMOUNT")
	viper.BindEnv("withdrawal.fee_rate", "WITHDRAWAL_FEE_RATE")
	viper.BindEnv("stock.alert_threshold", "STOCK_ALERT_THRESHOLD")

	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.username", "SMTP_USERNAME")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.from", "SMTP_FROM")

	viper.BindEnv("uploads.root", "UPLOADS_ROOT")
	viper.BindEnv("app.base_url", "APP_BASE_URL")
	viper.BindEnv("app.frontend_url", "APP_FRONTEND_URL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "WiFi Pass API"
	docs.SwaggerInfo.Description = "API for the WiFi hotspot voucher marketplace"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize infrastructure
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	viper.SetDefault("vault.master_key", "dev-master-key-change-me")
	viper.SetDefault("vault.salt", "dev-salt-change-me")
	v, err := vault.New(viper.GetString("vault.master_key"), []byte(viper.GetString("vault.salt")))
	if err != nil {
		log.Fatalf("Failed to initialize vault: %v", err)
	}

	viper.SetDefault("uploads.root", "./uploads")
	uploader, err := storage.NewLocalUploader(viper.GetString("uploads.root"), "/uploads")
	if err != nil {
		log.Fatalf("Failed to initialize uploads storage: %v", err)
	}

	var m mlr.Mailer = mlr.NopMailer{}
	if viper.GetString("smtp.host") != "" {
		m = mlr.NewSMTPMailer(
			viper.GetString("smtp.host"),
			viper.GetString("smtp.port"),
			viper.GetString("smtp.username"),
			viper.GetString("smtp.password"),
			viper.GetString("smtp.from"),
		)
	}

	// Initialize services
	ledgerService := services.NewLedgerService(db)
	notificationService := services.NewNotificationService(db)
	authService := services.NewAuthService(db, redisClient, m)
	userService := services.NewUserService(db, authService)
	zoneService := services.NewZoneService(db, v)
	planService := services.NewPlanService(db)
	ticketService := services.NewTicketService(db, ledgerService, notificationService, m)
	withdrawalService := services.NewWithdrawalService(db, ledgerService, notificationService, m)
	kycService := services.NewKYCService(db, uploader, notificationService, m)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mW.RateLimit(redisClient, 120, time.Minute))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Uploaded KYC documents
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		mW.StaticFileServer(viper.GetString("uploads.root"))))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/refresh", authService.RefreshToken)
		r.Post("/auth/logout", authService.Logout)
		r.Post("/auth/forgot-password", authService.ForgotPassword)
		r.Post("/auth/reset-password", authService.ResetPassword)
		r.Post("/auth/verify-email", authService.VerifyEmail)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/users/me", userService.GetMe)
			r.Put("/users/me", userService.UpdateMe)
			r.Put("/users/change-password", userService.ChangePassword)
			r.Put("/users/notification-preferences", userService.UpdatePreferences)
			r.Delete("/users/me", userService.DeleteMe)

			// Zone endpoints
			r.Post("/zones", zoneService.CreateZone)
			r.Get("/zones", zoneService.ListZones)
			r.Get("/zones/{zoneId}", zoneService.GetZone)
			r.Put("/zones/{zoneId}", zoneService.UpdateZone)
			r.Delete("/zones/{zoneId}", zoneService.DeleteZone)
			r.Get("/zones/{zoneId}/credentials", zoneService.GetRouterCredentials)

			// Plan endpoints
			r.Post("/zones/{zoneId}/plans", planService.CreatePlan)
			r.Get("/zones/{zoneId}/plans", planService.ListPlans)
			r.Get("/plans/{planId}", planService.GetPlan)
			r.Put("/plans/{planId}", planService.UpdatePlan)
			r.Delete("/plans/{planId}", planService.DeletePlan)

			// Ticket endpoints
			r.Post("/zones/{zoneId}/plans/{planId}/tickets", ticketService.IssueTickets)
			r.Get("/tickets", ticketService.ListTickets)
			r.Get("/tickets/{ticketId}", ticketService.GetTicket)
			r.Post("/tickets/{ticketId}/sell", ticketService.SellTicket)
			r.Post("/tickets/{ticketId}/use", ticketService.UseTicket)
			r.Post("/tickets/{ticketId}/invalidate", ticketService.InvalidateTicket)

			// Transaction endpoints
			r.Get("/transactions", ledgerService.ListTransactions)
			r.Get("/transactions/{transactionId}", ledgerService.GetTransaction)

			// Withdrawal endpoints
			r.Post("/withdrawals", withdrawalService.RequestWithdrawal)
			r.Get("/withdrawals", withdrawalService.ListWithdrawals)
			r.Get("/withdrawals/{withdrawalId}", withdrawalService.GetWithdrawal)

			// KYC endpoints
			r.Post("/kyc/submit", kycService.SubmitKYC)
			r.Get("/kyc/status", kycService.GetKYCStatus)

			// Notification endpoints
			r.Get("/notifications", notificationService.ListNotifications)
			r.Patch("/notifications/{notificationId}/read", notificationService.MarkRead)
			r.Patch("/notifications/read-all", notificationService.MarkAllRead)

			// Back-office endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireAdmin)

				r.Get("/admin/withdrawals", withdrawalService.ListAllWithdrawals)
				r.Patch("/admin/withdrawals/{withdrawalId}/process", withdrawalService.ProcessWithdrawal)
				r.Patch("/admin/withdrawals/{withdrawalId}/approve", withdrawalService.ApproveWithdrawal)
				r.Patch("/admin/withdrawals/{withdrawalId}/reject", withdrawalService.RejectWithdrawal)

				r.Get("/admin/kyc/pending", kycService.ListPendingKYC)
				r.Patch("/admin/kyc/{userId}/approve", kycService.ApproveKYC)
				r.Patch("/admin/kyc/{userId}/reject", kycService.RejectKYC)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
