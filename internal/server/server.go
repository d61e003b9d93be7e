// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: the composition root where the
// database, services, auth gate and handlers are created and connected.
// Keeping it out of main.go means tests can build the full router without
// opening a port.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlite.DB (repository.Store)
//	             → auth.TokenService, auth.PasswordService, auth.Gate
//	             → service.AuthService, service.TaskService
//	             → handler.AuthHandler, handler.TaskHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/taskflow/internal/auth"
	"github.com/sakif/taskflow/internal/config"
	"github.com/sakif/taskflow/internal/handler"
	"github.com/sakif/taskflow/internal/middleware"
	sqliteRepo "github.com/sakif/taskflow/internal/repository/sqlite"
	"github.com/sakif/taskflow/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Close (called at the end of
// Start) flushes the WAL and releases the file lock.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and builds the router.
//
// IMPORT ALIAS:
// repository/sqlite is imported as sqliteRepo so it isn't confused with the
// modernc.org/sqlite driver.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET       /healthz                    → liveness probe
//	GET/POST  /signup                     → form info / create account   (optional auth)
//	GET/POST  /login                      → form info / start session    (optional auth)
//	GET/POST  /logout                     → end session
//	GET       /task/{slug}                → task detail, public          (optional auth)
//	GET       /                           → my tasks                     (auth)
//	GET       /me                         → my profile                   (auth)
//	POST      /admin/task                 → create task                  (auth)
//	POST/PUT  /admin/task/{slug}/edit     → update task                  (auth)
//	POST/DEL  /admin/task/{slug}/delete   → delete task                  (auth)
//	POST      /toggle/{id}                → toggle completion            (auth)
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the real client IP from proxy headers
//  3. Logger: logs each request with timing info and the request ID
//  4. Recoverer: catches panics and returns 500 instead of crashing
//  5. StripSlashes: "/task/buy-milk-3k9x0q2a/" routes like "/task/buy-milk-3k9x0q2a"
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.StripSlashes)

	tokens, err := auth.NewTokenService(s.config.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)
	gate := auth.NewGate(s.db, tokens)

	accounts := service.NewAuthService(s.db, tokens, passwords, service.SessionTTLs{
		Default:  s.config.SessionTTL,
		Remember: s.config.RememberTTL,
	}, s.logger)
	tasks := service.NewTaskService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(accounts, s.config.CookieSecure, s.logger)
	taskHandler := handler.NewTaskHandler(tasks, s.logger)

	s.router.Get("/healthz", handler.HandleHealth)

	// === Public routes ===
	// OptionalAuth lets these pages see who is logged in without requiring it.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(gate, s.logger))

		r.Get("/signup", authHandler.HandleSignupPage)
		r.Post("/signup", authHandler.HandleSignup)
		r.Get("/login", authHandler.HandleLoginPage)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/logout", authHandler.HandleLogout)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/task/{slug}", taskHandler.HandleDetail)
	})

	// === Protected routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(gate, s.logger))

		r.Get("/", taskHandler.HandleHome)
		r.Get("/me", authHandler.HandleMe)

		r.Post("/admin/task", taskHandler.HandleCreate)
		r.Post("/admin/task/{slug}/edit", taskHandler.HandleUpdate)
		r.Put("/admin/task/{slug}/edit", taskHandler.HandleUpdate)
		r.Post("/admin/task/{slug}/delete", taskHandler.HandleDelete)
		r.Delete("/admin/task/{slug}/delete", taskHandler.HandleDelete)
		r.Post("/toggle/{id}", taskHandler.HandleToggle)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
