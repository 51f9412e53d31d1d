package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/njchilds90/godisc/discretisation"
	"github.com/njchilds90/godisc/internal/config"
	"github.com/njchilds90/godisc/internal/ctxlog"
	"github.com/njchilds90/godisc/internal/hclmodel"
	"github.com/njchilds90/godisc/internal/report"
	"github.com/njchilds90/godisc/mesh"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/spatial"
	"github.com/njchilds90/godisc/symbol"
)

type server struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newServer(cfg *config.Config, logger *slog.Logger) *server {
	return &server{cfg: cfg, logger: logger}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/discretise", s.discretise)
	r.Get("/schema", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, r, http.StatusOK, hclmodel.Describe())
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.Error("Failed to write health check response", "error", err)
		}
	})
	return r
}

// logRequests logs one line per request with the request ID chi assigned.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("Handled request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// discretise reads a model file from the body, discretises it with the
// configured options and replies with its report.
func (s *server) discretise(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	ctx := ctxlog.WithLogger(r.Context(), s.logger.With("request_id", reqID))

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	defer r.Body.Close()

	src, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, http.StatusRequestEntityTooLarge, err)
			return
		}
		s.respondError(w, r, http.StatusBadRequest, err)
		return
	}

	spec, err := hclmodel.Parse(ctx, src, "request.hcl")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err)
		return
	}
	disc, err := spec.Discretisation()
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	m, err := disc.ProcessModel(ctx, spec.Model, s.cfg.Discretisation.Options())
	if err != nil {
		status := http.StatusInternalServerError
		if unprocessable(err) {
			status = http.StatusUnprocessableEntity
		}
		s.respondError(w, r, status, err)
		return
	}
	summary, err := report.Build(m)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, summary)
}

// unprocessable reports whether err comes from the content of the model
// rather than from the service.
func unprocessable(err error) bool {
	for _, target := range []error{
		model.ErrModel,
		discretisation.ErrDiscretisation,
		symbol.ErrShape,
		spatial.ErrNotImplemented,
		mesh.ErrMesh,
		mesh.ErrDomainNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *server) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err, "request_id", middleware.GetReqID(r.Context()))
	}
}

func (s *server) respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	reqID := middleware.GetReqID(r.Context())
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "Sending error response", "status", status, "error", err, "request_id", reqID)
	s.respondJSON(w, r, status, errorResponse{Error: err.Error(), RequestID: reqID})
}
