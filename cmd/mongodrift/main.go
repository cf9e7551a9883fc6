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
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mongodrift/mongodrift/internal/config"
	dbMongo "github.com/mongodrift/mongodrift/internal/db/mongo"
	logpkg "github.com/mongodrift/mongodrift/internal/logger"
	"github.com/mongodrift/mongodrift/internal/metrics"
	"github.com/mongodrift/mongodrift/internal/repository/catalog"
	"github.com/mongodrift/mongodrift/internal/repository/indexes"
	"github.com/mongodrift/mongodrift/internal/repository/migration"
	"github.com/mongodrift/mongodrift/internal/repository/testdata"
	"github.com/mongodrift/mongodrift/internal/repository/validator"
	"github.com/mongodrift/mongodrift/internal/repository/versions"
	chiTransport "github.com/mongodrift/mongodrift/internal/transport/chi"
	"github.com/mongodrift/mongodrift/internal/usecase/process"
	"github.com/mongodrift/mongodrift/internal/usecase/render"
	"github.com/mongodrift/mongodrift/internal/usecase/validate"
	"github.com/mongodrift/mongodrift/internal/version"
)

// Batch-mode exit codes.
const (
	exitOK         = 0
	exitFailed     = 1
	exitValidation = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting mongodrift",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("database", cfg.Mongo.Database),
		zap.String("input_folder", cfg.Input.Folder),
	)

	store, err := dbMongo.Connect(dbMongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(ctx)
	}()

	cat, err := catalog.Load(cfg.Input.Folder)
	if err != nil {
		logger.Fatal("Failed to load input tree", zap.Error(err))
	}
	logger.Info("Input tree loaded",
		zap.Int("collections", len(cat.Collections)),
		zap.Int("dictionary_files", len(cat.Dictionary)),
		zap.Int("types", len(cat.Types)),
		zap.Int("load_errors", len(cat.Errors)),
	)

	metrics.RegisterEngineMetrics()

	// Composition root: render and validate services, then repositories,
	// then the processor.
	renderSvc := render.New(cat)
	validateSvc := validate.New(cat, renderSvc)
	versionStore := versions.New(store, cfg.Mongo.VersionCollection, logger)
	indexManager := indexes.New(store, logger)
	migrationManager := migration.New(store, cfg.Processing.PipelineTimeout(), logger)
	applier := validator.New(store, logger)
	testDataLoader := testdata.New(store, logger)

	processor := process.New(cat, renderSvc, versionStore, indexManager,
		migrationManager, applier, testDataLoader,
		process.Options{
			Workers:           cfg.Processing.Workers,
			OperationTimeout:  cfg.Processing.OperationTimeout(),
			TransitionTimeout: cfg.Processing.TransitionTimeout(),
			LoadTestData:      cfg.Processing.LoadTestData,
		}, logger)

	if cfg.Processing.AutoProcess {
		code := autoProcess(cfg, validateSvc, processor, logger)
		if cfg.Processing.ExitAfterProcessing {
			return code
		}
	}

	return serve(cfg, cat, processor, renderSvc, validateSvc, versionStore, store, logger)
}

// autoProcess runs the batch flow: validate, then advance every collection.
func autoProcess(
	cfg config.Config,
	validateSvc *validate.Service,
	processor *process.Processor,
	logger *zap.Logger,
) int {
	errs := validateSvc.Run()
	metrics.ValidationErrors.Set(float64(len(errs)))
	if len(errs) > 0 {
		for _, e := range errs {
			logger.Error("validation error",
				zap.String("path", e.Path),
				zap.String("kind", e.Kind),
				zap.String("message", e.Message))
		}
		logger.Error("validation failed, refusing to process", zap.Int("errors", len(errs)))
		return exitValidation
	}

	results := processor.ProcessAll(context.Background())
	code := exitOK
	for _, result := range results {
		logger.Info("collection processed",
			zap.String("collection", result.Collection),
			zap.String("status", result.Status),
			zap.Int("operations", len(result.Operations)))
		if result.Status == process.StatusFailed {
			code = exitFailed
		}
	}
	return code
}

func serve(
	cfg config.Config,
	cat *catalog.Catalog,
	processor *process.Processor,
	renderSvc *render.Service,
	validateSvc *validate.Service,
	versionStore *versions.Store,
	store *dbMongo.Store,
	logger *zap.Logger,
) int {
	server := chiTransport.NewServer(cat, processor, renderSvc, validateSvc,
		versionStore, store, cfg, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return exitOK
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a
// plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates
// X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
