package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rssabbirdev/smart-clinic/internal/guest"
	"github.com/rssabbirdev/smart-clinic/internal/identity"
	"github.com/rssabbirdev/smart-clinic/internal/registry"
	"github.com/rssabbirdev/smart-clinic/internal/shared/auth"
	"github.com/rssabbirdev/smart-clinic/internal/shared/clock"
	"github.com/rssabbirdev/smart-clinic/internal/shared/config"
	"github.com/rssabbirdev/smart-clinic/internal/shared/database"
	"github.com/rssabbirdev/smart-clinic/internal/shared/events"
	"github.com/rssabbirdev/smart-clinic/internal/shared/metrics"
	secmiddleware "github.com/rssabbirdev/smart-clinic/internal/shared/middleware"
	visitapi "github.com/rssabbirdev/smart-clinic/internal/visit/api"
	visitinfra "github.com/rssabbirdev/smart-clinic/internal/visit/infrastructure"
)

// guestJanitorInterval is how often expired guest sessions are purged.
const guestJanitorInterval = time.Minute

// App holds all application dependencies
type App struct {
	Config   *config.Config
	DB       *database.DB
	Bus      *events.Bus
	Registry registry.Directory
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database not available: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// Audit stream is optional - skip if not configured or unreachable
	if cfg.EventStore.Enabled {
		bus, err := events.NewBus(ctx, cfg.EventStore)
		if err != nil {
			fmt.Printf("Warning: event store not available: %v\n", err)
			fmt.Println("Running without the visit audit stream...")
		} else {
			app.Bus = bus
			defer bus.Close()
			fmt.Println("Visit audit stream initialized")
		}
	}

	// Student directory backend
	switch cfg.Registry.Backend {
	case "mssql":
		dir, err := registry.NewMSSQLDirectory(ctx, cfg.Registry)
		if err != nil {
			fmt.Printf("Warning: school registry not available: %v\n", err)
		} else {
			app.Registry = dir
			defer dir.Close()
			fmt.Println("Student directory: school information system (mssql)")
		}
	default:
		app.Registry = registry.NewPostgresDirectory(db.Pool)
		fmt.Println("Student directory: local (postgres)")
	}

	clk := clock.System{}

	guestStore := guest.NewRepository(db.Pool)
	guestHandler := guest.NewHandler(guestStore, clk, cfg.Queue.GuestSessionTTL, cfg.Server.Env == "production")
	guestHandler.StartJanitor(ctx, guestJanitorInterval)

	resolver := identity.NewResolver(guestStore, clk)

	var publisher events.Publisher
	if app.Bus != nil {
		publisher = app.Bus
	}

	visitRepo := visitinfra.NewPostgresRepository(db.Pool)
	visitHandler := visitapi.NewHandler(visitRepo, resolver, publisher, clk, cfg.Queue.StaleAfter)

	checkInLimiter := secmiddleware.NewIPRateLimiter(cfg.Queue.RateLimitRPS, cfg.Queue.RateLimitBurst)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.BodyLimit(1 << 20))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Patient-facing routes: identity is a bearer token, a guest
		// session cookie, or the request body. Rate limited per IP.
		r.Group(func(r chi.Router) {
			r.Use(auth.Optional(cfg.Auth))
			r.Use(checkInLimiter.Middleware)

			visitHandler.RegisterPublic(r)
			r.Mount("/guest-login", guestHandler.Routes())

			if app.Registry != nil {
				r.Mount("/students", registry.NewHandler(app.Registry).Routes())
			}
		})

		// Staff routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth))
			r.Use(auth.RequireRoles(auth.RoleNurse, auth.RoleAdmin))

			visitHandler.RegisterStaff(r)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Smart Clinic Queue Service")
	fmt.Println("============================================")
	fmt.Printf("Environment:   %s\n", cfg.Server.Env)
	fmt.Printf("Server:        http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:           http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:        http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Stale after:   %s\n", cfg.Queue.StaleAfter)
	fmt.Printf("Guest TTL:     %s\n", cfg.Queue.GuestSessionTTL)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Smart Clinic Queue Service",
		"version": "1.0.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(r.Context()); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		if app.Registry != nil {
			if err := app.Registry.Health(r.Context()); err != nil {
				checks["registry"] = "not ready: " + err.Error()
			} else {
				checks["registry"] = "ready"
			}
		} else {
			checks["registry"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
