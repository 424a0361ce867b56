// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aircast/hub/api"
	"github.com/aircast/hub/api/middleware"
	"github.com/aircast/hub/internal/config"
	"github.com/aircast/hub/internal/database"
	"github.com/aircast/hub/internal/hubservice"
	"github.com/aircast/hub/internal/importer"
	"github.com/aircast/hub/internal/monitoring"
	"github.com/aircast/hub/internal/repository/postgres"
	"github.com/gorilla/handlers"
	nuts "github.com/vaudience/go-nuts"
)

// Server represents our HTTP server
type Server struct {
	config     *config.Config
	srv        *http.Server
	hubservice *hubservice.HubService
	importer   *importer.Importer
	monitoring *monitoring.Service
	stopImport context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{config: cfg}
}

// Start begins listening for requests
func (s *Server) Start() error {
	s.hubservice = initializeHubService(s.config)
	s.monitoring = monitoring.NewService(monitoring.Config{
		PrometheusEndpoint: s.config.Monitoring.PrometheusEndpoint,
		LokiEndpoint:       s.config.Monitoring.LokiEndpoint,
	})

	s.setupCleanupHandlers()

	router := api.NewRouter(s.hubservice, middleware.KeycloakConfig{
		URL:          s.config.Keycloak.URL,
		Realm:        s.config.Keycloak.Realm,
		ClientID:     s.config.Keycloak.ClientID,
		ClientSecret: s.config.Keycloak.ClientSecret,
	})
	router.SetHealthCheck(s.handleHealth())

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(os.Stdout, router)),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.startImporter()

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// startImporter launches the periodic bulk import when enabled
func (s *Server) startImporter() {
	if !s.config.Importer.Enabled {
		nuts.L.Infof("[Server] Bulk importer disabled")
		return
	}

	feed := importer.NewFeedClient(s.config.Importer)
	watermarks := importer.NewRedisWatermark(s.config.Redis)
	s.importer = importer.New(feed, s.hubservice.Ingest, watermarks, s.config.Importer.PollInterval, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.stopImport = cancel
	go s.importer.Run(ctx)
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	if s.stopImport != nil {
		s.stopImport()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// handleHealth returns a simple health check handler
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","version":"` + nuts.GetVersion() + `"}`))
	}
}

func (s *Server) setupCleanupHandlers() {
	// Handle session deletion events
	s.hubservice.Cleanup.OnCleanup("session.deleted", func(id string) {
		nuts.L.Infof("[Cleanup] Session %s and all associated data deleted", id)
		s.monitoring.RecordEvent("session_deletion", map[string]string{
			"session_id": id,
		})
	})

	// Handle stream deletion events
	s.hubservice.Cleanup.OnCleanup("stream.deleted", func(id string) {
		nuts.L.Infof("[Cleanup] Stream %s and all associated data deleted", id)
		s.monitoring.RecordEvent("stream_deletion", map[string]string{
			"stream_id": id,
		})
	})
}

// initializeHubService creates and configures the hub service
func initializeHubService(cfg *config.Config) *hubservice.HubService {
	appDB := initAppDB(cfg.Database.AppDB)

	if err := postgres.InitializeSchema(appDB); err != nil {
		nuts.L.Fatalf("[Server] Failed to initialize schema: %v", err)
	}

	sessions := postgres.NewSessionRepository(appDB)
	streams := postgres.NewStreamRepository(appDB)
	measurements := postgres.NewMeasurementRepository(appDB)

	return hubservice.New(sessions, streams, measurements, cfg.Importer.ImportUser)
}

func initAppDB(cfg config.PostgresConfig) database.DB {
	wrappedDB, err := database.NewPostgresDB(cfg)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to AppDB: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wrappedDB.Ping(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping database: %v", err)
	}
	return wrappedDB
}
