package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/casetrail/casetrail/config"
	"github.com/casetrail/casetrail/controllers"
	"github.com/casetrail/casetrail/database"
	auditmiddleware "github.com/casetrail/casetrail/middleware"
	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/repositories"
	"github.com/casetrail/casetrail/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	// Load environment variables from .env file, if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load the env vars: %v", err)
	}

	// Load configuration
	configPath := os.Getenv("CASETRAIL_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	if err := database.InitializeDatabase(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	// Get database connection
	db := database.GetDB()

	// Initialize repositories
	repos := repositories.NewRepositories(db)

	// Initialize services
	srvs := services.NewServices(repos, services.Options{
		Audit: auditOptions(cfg),
	})

	// Initialize controllers
	ctrl := controllers.NewControllers(srvs)

	// Record the service start in the ledger
	if _, err := srvs.AuditLogger.Log(context.Background(), &models.AuditEvent{
		EventType:    models.EventSystemStart,
		ResourceType: "system",
		ResourceID:   "casetrail",
		Action:       models.ActionComplete,
	}); err != nil {
		log.Printf("Failed to record startup event: %v", err)
	}

	// Set up router
	r := setupRouter(ctrl)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("🚀 CaseTrail starting on %s\n", addr)
	fmt.Printf("🗃️  Database: %s\n", cfg.Database.Path)

	log.Fatal(http.ListenAndServe(addr, r))
}

// auditOptions translates config into append-engine options.
func auditOptions(cfg *config.Config) services.AuditLoggerOptions {
	opts := services.AuditLoggerOptions{
		AppendTimeout: time.Duration(cfg.Audit.AppendTimeoutMs) * time.Millisecond,
	}

	if len(cfg.Audit.FailurePolicies) > 0 {
		policies := services.DefaultFailurePolicies()
		for class, policy := range cfg.Audit.FailurePolicies {
			policies[class] = services.FailurePolicy(policy)
		}
		opts.FailurePolicies = policies
	}

	return opts
}

// setupRouter configures all routes
func setupRouter(ctrl *controllers.Controllers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(auditmiddleware.RequestMetadata)

	// PUBLIC ROUTES (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "service": "casetrail"}`)
	})

	// PROTECTED ROUTES (identity required from the upstream gateway)
	r.Group(func(r chi.Router) {
		r.Use(auditmiddleware.RequireUser)

		// Case management routes
		r.Route("/cases", func(r chi.Router) {
			r.Get("/", ctrl.Case.Index)
			r.Post("/", ctrl.Case.Create)
			r.Get("/{id}", ctrl.Case.Show)
			r.Put("/{id}", ctrl.Case.Update)
			r.Delete("/{id}", ctrl.Case.Delete)
		})

		// Audit review and integrity routes
		r.Route("/audit", func(r chi.Router) {
			r.Get("/", ctrl.Audit.Index)
			r.Get("/verify", ctrl.Audit.Verify)
			r.Get("/export", ctrl.Audit.Export)
		})

		// GDPR data-subject routes
		r.Route("/gdpr", func(r chi.Router) {
			r.Post("/{userId}/erase", ctrl.GDPR.Erase)
			r.Get("/{userId}/export", ctrl.GDPR.Export)
		})
	})

	return r
}
