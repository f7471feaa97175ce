package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pairchat/internal/blob"
	"pairchat/internal/config"
	"pairchat/internal/db"
	"pairchat/internal/handlers"
	"pairchat/internal/hub"
	"pairchat/internal/logger"
	"pairchat/internal/models"
	"pairchat/internal/services"
	"pairchat/internal/store"
)

func Run() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("Failed to load config: %v", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = st.Close(shutdownCtx)
	}()

	blobs, err := openBlobStore(cfg)
	if err != nil {
		log.Fatalf("Failed to init blob store: %v", err)
	}

	// Services
	sessions := hub.New(cfg.PresenceGracePeriod)
	mailer := services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	authService := services.NewAuthService(st, mailer, cfg.JWTSecret, cfg.TokenTTL, cfg.OTPTTL)
	chatService := services.NewChatService(st, sessions, blobs)
	contactService := services.NewContactService(st)

	// Fiber App
	app := fiber.New()

	// Middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	if cfg.BlobDriver == "local" {
		app.Static("/uploads", cfg.UploadDir)
	}

	// Routes
	api := app.Group("/api")

	// Public Routes
	api.Post("/GenerateNumber", func(c *fiber.Ctx) error {
		number, err := authService.GenerateNumber(c.Context())
		if err != nil {
			log.WithError(err).Error("generate number failed")
			return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to generate and store number."})
		}
		return c.Status(201).JSON(fiber.Map{"success": true, "randomNumber": number})
	})

	api.Post("/signin", func(c *fiber.Ctx) error {
		var req models.SigninRequest
		if err := c.BodyParser(&req); err != nil || req.Number == "" {
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request"})
		}

		token, err := authService.Signin(c.Context(), req.Number)
		if errors.Is(err, store.ErrUserNotFound) {
			return c.JSON(models.AuthResponse{Message: "User not found"})
		}
		if errors.Is(err, services.ErrNoEmail) {
			return c.Status(400).JSON(models.AuthResponse{Message: "No email registered for this number"})
		}
		if err != nil {
			log.WithError(err).Error("signin failed")
			return c.Status(500).JSON(models.AuthResponse{Message: "Email sending failed"})
		}
		return c.JSON(models.AuthResponse{Success: true, Token: token})
	})

	api.Post("/verifyOTP", func(c *fiber.Ctx) error {
		var req models.VerifyOTPRequest
		if err := c.BodyParser(&req); err != nil || req.Number == "" || req.OTP == "" {
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request"})
		}

		user, token, err := authService.VerifyOTP(c.Context(), req.Number, req.OTP)
		if errors.Is(err, store.ErrUserNotFound) {
			return c.JSON(models.AuthResponse{Message: "User not found"})
		}
		if errors.Is(err, services.ErrInvalidOTP) || errors.Is(err, services.ErrOTPExpired) {
			return c.JSON(models.AuthResponse{Message: "Invalid OTP"})
		}
		if err != nil {
			log.WithError(err).Error("otp verification failed")
			return c.Status(500).JSON(models.AuthResponse{Message: "OTP verification failed"})
		}
		return c.JSON(models.AuthResponse{Success: true, Message: "verified", Token: token, User: user})
	})

	api.Post("/logout", func(c *fiber.Ctx) error {
		c.Cookie(&fiber.Cookie{
			Name:     "token",
			Value:    "",
			Expires:  time.Now(),
			HTTPOnly: true,
		})
		return c.JSON(fiber.Map{"success": true, "message": "logged out"})
	})

	api.Post("/profile", handlers.UpsertProfileHandler(st))

	// Protected Routes
	protected := api.Group("/")
	protected.Use(handlers.AuthMiddleware(authService))

	protected.Get("/profile", handlers.GetProfileHandler(st))
	protected.Put("/profile/photo", handlers.UploadPhotoHandler(st, blobs))
	protected.Post("/AddContacts", handlers.AddContactHandler(contactService))
	protected.Get("/contacts", handlers.ListContactsHandler(contactService))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := st.Ping(c.Context()); err != nil {
			return c.Status(503).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok", "connections": sessions.LiveCount()})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WebSocket Route
	// Note: Middleware order matters. AuthMiddleware checks token.
	// WSUpgradeMiddleware checks if it's a WS request.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthMiddleware(authService))
	app.Get("/ws", handlers.WebSocketHandler(chatService, sessions))

	// Start Server
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Panic(err)
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Info("Gracefully shutting down...")
	_ = app.Shutdown()
	log.Info("Server shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		ms := store.NewMongoStore(client, cfg.MongoDBName)
		if err := ms.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return ms, nil
	}
}

func openBlobStore(cfg *config.Config) (blob.Store, error) {
	if cfg.BlobDriver == "http" {
		return blob.NewHTTPStore(cfg.BlobEndpoint, cfg.BlobToken), nil
	}
	return blob.NewLocalStore(cfg.UploadDir, cfg.BaseURL)
}
