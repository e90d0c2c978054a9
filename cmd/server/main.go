package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/library-server/internal/api"
	"github.com/rongwang/library-server/internal/catalog"
	"github.com/rongwang/library-server/internal/config"
	"github.com/rongwang/library-server/internal/repository"
	"github.com/rongwang/library-server/internal/service"
	"github.com/rongwang/library-server/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Server.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up database connection
	db, err := config.SetupDatabase(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewSQLRepository(db)

	// Create service
	svc := service.NewDefaultService(repo, service.Settings{
		JWTSecret:        cfg.Auth.JWTSecret,
		TokenDuration:    cfg.Auth.TokenTTL(),
		MaxActiveBorrows: cfg.Lending.MaxActiveBorrows,
		LoanPeriod:       cfg.Lending.LoanPeriod(),
	}, service.WithLogger(logger.With("component", "service")))

	// Catalog sources, Google Books first as the default
	google, err := catalog.NewGoogleBooks(ctx, catalog.GoogleConfig{
		APIKey:          cfg.Catalog.GoogleAPIKey,
		CredentialsFile: cfg.Catalog.GoogleCredsFile,
		Endpoint:        cfg.Catalog.GoogleEndpoint,
	})
	if err != nil {
		return err
	}
	openLibrary := catalog.NewOpenLibrary(cfg.Catalog.OpenLibraryURL, &http.Client{Timeout: cfg.Catalog.Timeout()})
	proxy := catalog.NewProxy(repo, cfg.Catalog.CacheTTL(), cfg.Catalog.Timeout(),
		logger.With("component", "catalog"), google, openLibrary)

	// Create API handler
	handler := api.NewHandler(svc, proxy, logger.With("component", "api"))

	// Set up Gin router
	router := gin.Default()
	router.Use(api.CORSMiddleware(cfg.CORS.AllowedOrigins))

	// Set up routes
	handler.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
