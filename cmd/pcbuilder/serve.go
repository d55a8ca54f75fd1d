package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"pcbuilder/internal/api"
	"pcbuilder/internal/builder"
	"pcbuilder/internal/catalog"
	"pcbuilder/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC APIs",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger.Info().Msg("Starting service...")

	db, dbStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}

	builds := builder.New(dbStore, logger)
	importer := catalog.NewImporter(newKeepaClient(), dbStore, logger)
	httpAPIHandler := api.NewHTTPHandler(builds, dbStore, dbStore, importer)
	grpcAPIHandler := api.NewGRPCHandler(builds, dbStore)

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter)
	registerHealthCheck(httpRouter, db)
	httpRouter.Handle("/metrics", promhttp.Handler())
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.Info().Str("port", cfg.HttpServer.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server ListenAndServe error")
		}
		logger.Info().Msg("HTTP server has stopped.")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		dbStore.Close()
		return err
	}

	go func() {
		logger.Info().Str("port", cfg.GrpcServer.Port).Msg("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatal().Err(err).Msg("gRPC server Serve error")
		}
		logger.Info().Msg("gRPC server has stopped.")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(httpServer, grpcServer, dbStore, shutdownComplete)

	<-shutdownComplete
	logger.Info().Msg("Service shutdown sequence finished.")
	return nil
}

func setupBaseMiddleware(router *chi.Mux) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	logger.Debug().Msg("Base HTTP middleware registered.")
}

func registerHealthCheck(router *chi.Mux, db *sql.DB) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "healthy"
		if err := db.PingContext(ctx); err != nil {
			dbStatus = "unhealthy"
			logger.Warn().Err(err).Msg("Health check DB ping failed")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK) // payload carries the detailed status
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    dbStatus,
		})
	})
	logger.Debug().Str("path", healthPath).Msg("HTTP health check registered")
}

// loggingUnaryInterceptor logs every unary call with its status code.
func loggingUnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.WarnLevel
	}
	logger.WithLevel(level).
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("duration", time.Since(start)).
		Msg("gRPC request")
	return resp, err
}

func setupGRPCServer(grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingUnaryInterceptor))

	api.RegisterBuildServiceServer(s, grpcAPIHandler)
	logger.Debug().Str("service", api.BuildServiceName).Msg("gRPC service registered")

	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)
	logger.Debug().Msg("gRPC health and reflection services registered")

	return s
}

func waitForShutdown(
	httpServer *http.Server,
	grpcServer *grpc.Server,
	dbStore *store.PostgresStore,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.Info().Str("signal", receivedSignal.String()).Msg("Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server graceful shutdown failed")
	} else {
		logger.Info().Msg("HTTP server gracefully shut down.")
	}

	select {
	case <-stoppedGrpc:
		logger.Info().Msg("gRPC server gracefully shut down.")
	case <-shutdownCtx.Done():
		logger.Warn().Err(shutdownCtx.Err()).Msg("gRPC server graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}

	if dbStore != nil {
		if err := dbStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("Error closing database connection")
		}
	}

	logger.Info().Msg("Graceful shutdown sequence completed.")
}
