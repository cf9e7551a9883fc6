// Package chi implements the mongodrift service surface on the chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/mongodrift/mongodrift/internal/config"
	"github.com/mongodrift/mongodrift/internal/db"
	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/repository/catalog"
	"github.com/mongodrift/mongodrift/internal/repository/versions"
	"github.com/mongodrift/mongodrift/internal/usecase/process"
	"github.com/mongodrift/mongodrift/internal/usecase/render"
	"github.com/mongodrift/mongodrift/internal/usecase/validate"
	"github.com/mongodrift/mongodrift/internal/version"
)

// Server exposes the collection, render, and admin endpoints.
type Server struct {
	catalog   *catalog.Catalog
	processor *process.Processor
	render    *render.Service
	validate  *validate.Service
	versions  *versions.Store
	database  db.Database
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(
	cat *catalog.Catalog,
	processor *process.Processor,
	renderSvc *render.Service,
	validateSvc *validate.Service,
	versionStore *versions.Store,
	database db.Database,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		catalog:   cat,
		processor: processor,
		render:    renderSvc,
		validate:  validateSvc,
		versions:  versionStore,
		database:  database,
		cfg:       cfg,
		logger:    logger,
	}
}

// Mount registers all routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/collections", s.listCollections)
	r.Post("/collections", s.processAll)
	r.Get("/collections/{name}", s.getCollection)
	r.Post("/collections/{name}", s.processOne)
	r.Get("/render/{kind}/{target}", s.renderSchema)
	r.Get("/config", s.getConfig)
	r.Get("/health", s.health)
}

// listCollections reports each configured collection with its recorded
// version.
func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		CollectionName string `json:"collection_name"`
		CurrentVersion string `json:"current_version"`
	}
	out := make([]entry, 0, len(s.catalog.Collections))
	for _, cfg := range s.catalog.Collections {
		v, err := s.versions.Read(r.Context(), cfg.Name)
		if err != nil {
			s.handleError(w, err)
			return
		}
		out = append(out, entry{CollectionName: cfg.Name, CurrentVersion: v.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cfg, ok := s.catalog.Collection(name)
	if !ok {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}
	writeDoc(w, http.StatusOK, cfg.Doc())
}

// processAll runs the validation pass, then advances every collection.
func (s *Server) processAll(w http.ResponseWriter, r *http.Request) {
	if errs := s.validate.Run(); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "validation failed",
			"errors":  errs,
		})
		return
	}
	results := s.processor.ProcessAll(r.Context())
	writeJSON(w, statusOf(results), results)
}

func (s *Server) processOne(w http.ResponseWriter, r *http.Request) {
	if errs := s.validate.Run(); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "validation failed",
			"errors":  errs,
		})
		return
	}
	result, err := s.processor.ProcessOne(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, statusOf([]process.Result{result}), []process.Result{result})
}

// renderSchema serves /render/{json_schema|bson_schema|openapi}/{name}.{version}.
func (s *Server) renderSchema(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	target := chi.URLParam(r, "target")

	// Collection names are slugs without dots, so the first dot separates
	// the name from the four-part version.
	name, versionStr, ok := strings.Cut(target, ".")
	if !ok {
		writeError(w, http.StatusBadRequest, "target must be <collection>.<version>")
		return
	}

	var doc bson.D
	var err error
	switch kind {
	case "json_schema":
		doc, err = s.render.JSONSchema(name, versionStr)
	case "bson_schema":
		doc, err = s.render.BSONSchema(name, versionStr)
	case "openapi":
		doc, err = s.render.OpenAPI(name, versionStr)
	default:
		writeError(w, http.StatusNotFound, "unknown render kind")
		return
	}
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeDoc(w, http.StatusOK, doc)
}

// getConfig reports the sanitized running configuration plus build
// metadata. Connection credentials never leave the process.
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": map[string]string{
			"version": version.Version,
			"commit":  version.Commit,
			"date":    version.Date,
		},
		"database":           s.cfg.Mongo.Database,
		"version_collection": s.cfg.Mongo.VersionCollection,
		"input_folder":       s.cfg.Input.Folder,
		"processing": map[string]any{
			"workers":                s.cfg.Processing.Workers,
			"auto_process":           s.cfg.Processing.AutoProcess,
			"exit_after_processing":  s.cfg.Processing.ExitAfterProcessing,
			"load_test_data":         s.cfg.Processing.LoadTestData,
			"operation_timeout_sec":  s.cfg.Processing.OperationTimeoutSec,
			"pipeline_timeout_sec":   s.cfg.Processing.PipelineTimeoutSec,
			"transition_timeout_sec": s.cfg.Processing.TransitionTimeoutSec,
		},
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.database.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownRef):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBadVersionString), errors.Is(err, domain.ErrValidationFailed),
		errors.Is(err, domain.ErrUnknownEnumeratorVersion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDatabaseUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func statusOf(results []process.Result) int {
	for _, r := range results {
		if r.Status == process.StatusFailed {
			return http.StatusInternalServerError
		}
	}
	return http.StatusOK
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDoc serializes an ordered BSON document as JSON, preserving key
// order.
func writeDoc(w http.ResponseWriter, status int, doc bson.D) {
	data, err := render.EncodeJSON(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
