// Package api exposes the reminder engine over a local HTTP API.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/appointment"
	"github.com/gmsas95/medimate/internal/config"
	apperrors "github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/history"
	"github.com/gmsas95/medimate/internal/medicine"
	"github.com/gmsas95/medimate/internal/notify"
	"github.com/gmsas95/medimate/internal/profile"
)

// Server handles the HTTP API.
type Server struct {
	app          *fiber.App
	config       *config.Config
	medicines    *medicine.Registry
	appointments *appointment.Registry
	ledger       *history.Ledger
	profiles     *profile.Store
	gateway      notify.Gateway
	logger       *zap.Logger
}

// New creates the API server and registers its routes.
func New(cfg *config.Config, medicines *medicine.Registry, appointments *appointment.Registry, ledger *history.Ledger, profiles *profile.Store, gateway notify.Gateway, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	s := &Server{
		app:          app,
		config:       cfg,
		medicines:    medicines,
		appointments: appointments,
		ledger:       ledger,
		profiles:     profiles,
		gateway:      gateway,
		logger:       logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Server.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")

	api.Get("/medicines", s.handleListMedicines)
	api.Post("/medicines", s.handleAddMedicine)
	api.Put("/medicines/:id", s.handleUpdateMedicine)
	api.Delete("/medicines/:id", s.handleDeleteMedicine)
	api.Post("/medicines/:id/take", s.handleMarkTaken)
	api.Post("/medicines/:id/skip", s.handleMarkSkipped)

	api.Get("/doses/upcoming", s.handleUpcomingDoses)

	api.Get("/history", s.handleHistory)
	api.Get("/history/stats", s.handleHistoryStats)

	api.Get("/appointments", s.handleListAppointments)
	api.Get("/appointments/upcoming", s.handleUpcomingAppointments)
	api.Post("/appointments", s.handleAddAppointment)
	api.Put("/appointments/:id", s.handleUpdateAppointment)
	api.Delete("/appointments/:id", s.handleDeleteAppointment)

	api.Get("/profile", s.handleGetProfile)
	api.Put("/profile", s.handleSaveProfile)

	api.Get("/contacts", s.handleListContacts)
	api.Post("/contacts", s.handleAddContact)
	api.Put("/contacts/:id", s.handleUpdateContact)
	api.Delete("/contacts/:id", s.handleDeleteContact)

	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handleSaveSettings)

	api.Post("/data/wipe", s.handleWipe)
}

// Start starts the server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	s.logger.Info("API listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// fail maps the error taxonomy onto HTTP statuses.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := 500
	switch apperrors.GetCode(err) {
	case "VALID_001":
		status = 400
	case "MED_001", "APPT_001", "GEN_001":
		status = 404
	case "PERM_001":
		status = 409
	}
	if status == 500 {
		s.logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
