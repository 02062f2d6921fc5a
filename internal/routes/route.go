package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/venuebook/internal/container"
	"github.com/joshua-takyi/venuebook/internal/handlers"
	"github.com/joshua-takyi/venuebook/internal/middleware"
	"github.com/joshua-takyi/venuebook/internal/models"
)

const serviceName = "venuebook-api"

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	cfg := container.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	secureCookies := cfg.IsProduction()

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	limit := middleware.RateLimit(container.RateLimiter, container.Logger)
	checkout := handlers.CreateCheckoutSession(container.CheckoutService)
	webhook := handlers.StripeWebhook(container.WebhookService)

	// paths the storefront already calls
	r.POST("/api/create-checkout-session", limit, checkout)
	r.POST("/api/stripe-webhook", webhook)

	// API version 1
	v1 := r.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "OK",
				"service": serviceName,
			})
		})

		// public routes
		v1.POST("/signup", limit, handlers.CreateUser(container.UserService))
		v1.POST("/login", limit, handlers.AuthenticateUser(container.UserService, secureCookies))
		v1.POST("/logout", handlers.Logout(container.UserService, secureCookies, container.Logger))
		v1.POST("/checkout/sessions", limit, checkout)
		// the provider retries on its own schedule, so the webhook is never rate limited
		v1.POST("/webhooks/stripe", webhook)
	}

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(container.UserService, secureCookies, container.Logger))
	{
		protected.GET("/profile", handlers.GetProfile())
		protected.GET("/bookings/me", handlers.MyBookings(container.BookingsService))
	}

	venueRoutes := protected.Group("/venues")
	{
		venueRoutes.GET("", handlers.ListVenues(container.VenueService))
		venueRoutes.GET("/:id", handlers.ListVenueByID(container.VenueService))
		venueRoutes.GET("/:id/pdf", handlers.ExportVenuePDF(container.VenuePDFService))
	}

	adminVenues := venueRoutes.Group("")
	adminVenues.Use(middleware.RequireRole(models.RoleAdmin))
	{
		adminVenues.POST("", handlers.CreateVenueHandler(container.VenueService))
		adminVenues.PUT("/:id", handlers.UpdateVenue(container.VenueService))
		adminVenues.DELETE("/:id", handlers.DeleteVenue(container.VenueService))
	}

	return r
}
