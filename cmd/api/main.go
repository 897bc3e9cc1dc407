package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/OVERFORGE/DeDen/internal/chain"
	"github.com/OVERFORGE/DeDen/internal/database"
	"github.com/OVERFORGE/DeDen/internal/handlers"
	"github.com/OVERFORGE/DeDen/internal/middleware"
	"github.com/OVERFORGE/DeDen/internal/notification"
	"github.com/OVERFORGE/DeDen/internal/repository"
	"github.com/OVERFORGE/DeDen/internal/services"
	"github.com/OVERFORGE/DeDen/internal/verification"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize database with better error handling
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize Firebase (optional - will log warning if not configured)
	if err := services.InitFirebase(); err != nil {
		log.Printf("Firebase initialization warning: %v", err)
	}

	// Initialize Storage (S3 or local fallback)
	if err := services.InitStorage(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Chain registry and payment verification engine
	registry, err := chain.LoadRegistry()
	if err != nil {
		log.Fatalf("Failed to load chain registry: %v", err)
	}
	reader := chain.NewReader(registry)
	repo := repository.NewBookingRepository(db)
	notifier := notification.NewBookingNotifier(hub, registry)
	verifier := verification.NewVerifier(repo, registry, reader, notifier, services.VerificationLocker{})

	// Background sweep of expired payment windows
	sweepInterval := time.Hour
	if raw := os.Getenv("EXPIRY_SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Invalid EXPIRY_SWEEP_INTERVAL: %v", err)
		}
		sweepInterval = parsed
	}
	scheduler := verification.NewScheduler(verifier, sweepInterval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Start(ctx)

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Serve static files
	r.Static("/uploads", "/app/uploads")

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// Public stay catalog
		api.GET("/stays", handlers.GetStays(db))
		api.GET("/stays/:id", handlers.GetStay(db))

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// User routes
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/profile", handlers.UpdateProfile(db))
			}

			// Bookings routes
			bookings := protected.Group("/bookings")
			{
				bookings.POST("", handlers.CreateBooking(db))
				bookings.GET("", handlers.GetMyBookings(db))
				bookings.GET("/:id/status", handlers.GetBookingStatus(db))
				bookings.POST("/:id/payment", handlers.SubmitPayment(db, verifier))
				bookings.POST("/:id/cancel", handlers.CancelBooking(db))
			}

			// Notification routes
			notifications := protected.Group("/notifications")
			{
				notifications.POST("/register-token", handlers.RegisterFCMToken(db))
				notifications.DELETE("/remove-token", handlers.RemoveFCMToken(db))
			}

			// Admin routes
			admin := protected.Group("/admin")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.POST("/stays", handlers.CreateStay(db))
				admin.PUT("/stays/:id", handlers.UpdateStay(db))
				admin.POST("/stays/:id/image", handlers.UploadStayImage(db))
				admin.GET("/bookings", handlers.GetAllBookings(db))
				admin.POST("/bookings/:id/approve", handlers.ApproveBooking(db, registry))
				admin.POST("/bookings/:id/retry-verification", handlers.RetryVerification(verifier))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
