package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/config"
	"github.com/example/crumb/internal/handlers"
	"github.com/example/crumb/internal/middleware"
	"github.com/example/crumb/internal/repository"
	"github.com/example/crumb/internal/services"
)

// PaymentGateway opens payment sessions and verifies their webhooks.
type PaymentGateway interface {
	services.PaymentProvider
	handlers.WebhookParser
}

// Register wires up all HTTP routes. notifier may be nil.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, payments PaymentGateway, notifier *services.Notifier) {
	zoneRepo := repository.NewZoneRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	zoneService := services.NewZoneService(zoneRepo)
	slotEngine := services.NewSlotEngine(slotRepo, services.SlotPolicy{
		LeadTime:          time.Duration(cfg.LeadTimeHours) * time.Hour,
		CustomLeadTime:    time.Duration(cfg.CustomLeadHours) * time.Hour,
		BookingWindowDays: cfg.BookingWindowDays,
		Location:          cfg.Location(),
	})

	deps := services.CheckoutDeps{
		Variants: catalogRepo,
		Orders:   orderRepo,
		Zones:    zoneService,
		Slots:    slotEngine,
		Payments: payments,
	}
	var statusNotifier services.StatusNotifier
	if notifier != nil {
		deps.Notifier = notifier
		statusNotifier = notifier
	}
	checkoutService := services.NewCheckoutService(deps, services.CheckoutPolicy{
		TaxRate:       cfg.TaxRate,
		Currency:      cfg.Currency,
		PublicSiteURL: cfg.PublicSiteURL,
	})
	statusService := services.NewOrderStatusService(orderRepo, slotEngine, statusNotifier)

	authHandler := handlers.NewAuthHandler(db, cfg)
	productHandler := handlers.NewProductHandler(catalogRepo)
	fulfillmentHandler := handlers.NewFulfillmentHandler(zoneService, slotEngine, catalogRepo)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)
	orderHandler := handlers.NewOrderHandler(orderRepo)
	paymentHandler := handlers.NewPaymentHandler(payments, statusService)
	adminHandler := handlers.NewAdminHandler(orderRepo, statusService, cfg.Location())
	deliveryAdmin := handlers.NewDeliveryAdminHandler(zoneRepo, slotRepo)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthMiddleware(cfg.JWTSecret), authHandler.Me)
	auth.Put("/me", middleware.AuthMiddleware(cfg.JWTSecret), authHandler.UpdateMe)

	// Storefront
	api.Get("/products", productHandler.ListProducts)
	api.Get("/products/:id", productHandler.GetProduct)
	api.Get("/zones/resolve", fulfillmentHandler.ResolveZone)
	api.Get("/slots", fulfillmentHandler.ListSlots)
	api.Post("/fulfillment/quote", fulfillmentHandler.Quote)

	// Guests may check out; a token, when sent, must be valid.
	api.Post("/checkout", middleware.OptionalAuth(cfg.JWTSecret), checkoutHandler.Submit)

	api.Post("/payments/webhook", paymentHandler.Webhook)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg.JWTSecret))
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg.JWTSecret), middleware.AdminOnly(db))
	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/orders/:id", adminHandler.GetOrder)
	admin.Patch("/orders/:id/status", adminHandler.UpdateOrderStatus)

	admin.Post("/products", productHandler.CreateProduct)
	admin.Patch("/variants/:id", productHandler.UpdateVariant)

	admin.Get("/zones", deliveryAdmin.ListZones)
	admin.Post("/zones", deliveryAdmin.CreateZone)
	admin.Put("/zones/:id", deliveryAdmin.UpdateZone)
	admin.Delete("/zones/:id", deliveryAdmin.DeactivateZone)

	admin.Get("/slots", deliveryAdmin.ListSlots)
	admin.Post("/slots", deliveryAdmin.CreateSlot)
	admin.Put("/slots/:id", deliveryAdmin.UpdateSlot)
	admin.Delete("/slots/:id", deliveryAdmin.DeleteSlot)

	admin.Get("/blackouts", deliveryAdmin.ListBlackouts)
	admin.Post("/blackouts", deliveryAdmin.CreateBlackout)
	admin.Delete("/blackouts/:id", deliveryAdmin.DeleteBlackout)
}
