package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/blinkq/internal/config"
	"github.com/example/blinkq/internal/database"
	"github.com/example/blinkq/internal/routes"
	"github.com/example/blinkq/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	couponService := services.NewCouponService(db)
	orderService := services.NewOrderService(db, couponService, cfg.Pricing, cfg.Currency)
	razorpayService := services.NewRazorpayService(db, couponService, services.RazorpayConfig{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		BaseURL:   cfg.RazorpayBaseURL,
		Currency:  cfg.Currency,
	})

	app := fiber.New(fiber.Config{
		AppName: "Blinkq Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, orderService, couponService, razorpayService)

	// Picks up orders whose payment callback never arrived.
	razorpayService.StartReconciler(context.Background(), cfg.ReconcileInterval, cfg.ReconcileMinAge)

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
