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

	"github.com/accessone/backend/docs"
	"github.com/accessone/backend/internal/config"
	"github.com/accessone/backend/internal/database"
	"github.com/accessone/backend/internal/handlers"
	"github.com/accessone/backend/internal/mailer"
	mW "github.com/accessone/backend/internal/middleware"
	"github.com/accessone/backend/internal/services"
)

// @title AccessOne Banking API
// @version 1.0
// @description OTP-verified account transfer and ledger service
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.SetEnvPrefix("")

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

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.username", "SMTP_USERNAME")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.from", "SMTP_FROM")

	viper.BindEnv("bank.bic", "BANK_BIC")
	viper.BindEnv("bank.currency", "BANK_CURRENCY")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("[MAIN] Config file not found, using defaults: %v", err)
	}

	docs.SwaggerInfo.Title = "AccessOne Banking API"
	docs.SwaggerInfo.Description = "OTP-verified account transfer and ledger service"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	otpConfig := config.LoadOTPConfig()
	notifier := mailer.NewSMTPMailer()

	otpService := services.NewOTPServiceWithConfig(db, redisClient, otpConfig)
	accountService := services.NewAccountService(db)
	beneficiaryService := services.NewBeneficiaryService(db, accountService)
	pendingService := services.NewPendingTransferService(db)
	transactionService := services.NewTransactionService(db)
	settlementService := services.NewSettlementService(redisClient)
	qrService := services.NewQRService(redisClient)
	authService := services.NewAuthService(db, redisClient, otpService, accountService, notifier)
	transferService := services.NewTransferService(
		db,
		accountService,
		beneficiaryService,
		pendingService,
		otpService,
		transactionService,
		settlementService,
		notifier,
	)

	authHandler := handlers.NewAuthHandler(authService)
	accountHandler := handlers.NewAccountHandler(accountService, qrService)
	beneficiaryHandler := handlers.NewBeneficiaryHandler(beneficiaryService)
	transferHandler := handlers.NewTransferHandler(transferService, transactionService, authService)

	mW.InitAuthMiddleware(redisClient)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register/initiate", authHandler.RegisterInitiate)
		r.Post("/auth/register/verify", authHandler.RegisterVerify)
		r.Post("/auth/login", authHandler.Login)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/profile", authHandler.Profile)
			r.Put("/auth/password", authHandler.ChangePassword)

			r.Post("/accounts", accountHandler.Create)
			r.Get("/accounts", accountHandler.List)
			r.Post("/accounts/balance", accountHandler.Balance)
			r.Post("/accounts/receive-code", accountHandler.ReceiveCode)
			r.Post("/accounts/resolve-code", accountHandler.ResolveCode)

			r.Post("/beneficiaries", beneficiaryHandler.Add)
			r.Get("/beneficiaries", beneficiaryHandler.List)

			r.Post("/transfers/initiate", transferHandler.Initiate)
			r.Post("/transfers/verify", transferHandler.Verify)
			r.Get("/transfers/transactions", transferHandler.Transactions)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[MAIN] Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[MAIN] Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[MAIN] Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("[MAIN] Server forced to shutdown:", err)
	}

	log.Println("[MAIN] Server stopped")
}
