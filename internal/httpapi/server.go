// Package httpapi exposes the generation engines as a small JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/loreforge/internal/content"
	"github.com/cory-johannsen/loreforge/internal/game/dice"
	"github.com/cory-johannsen/loreforge/internal/observability"
	"github.com/cory-johannsen/loreforge/internal/scripting"
)

// RequestIDHeader carries the per-request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Options tunes request handling.
type Options struct {
	// MaxSample caps n on table sample requests.
	MaxSample int
	// Seed, when non-zero, seeds every request that does not carry its own.
	Seed uint64
}

// Server holds the dependencies shared by every handler.
type Server struct {
	lib    *content.Library
	gens   *scripting.Manager
	logger *zap.Logger
	opts   Options
}

// New creates a Server.
//
// Precondition: lib, gens and logger must be non-nil; opts.MaxSample >= 1.
func New(lib *content.Library, gens *scripting.Manager, logger *zap.Logger, opts Options) *Server {
	if lib == nil || gens == nil || logger == nil {
		panic("httpapi: New requires a content library, generator manager and logger")
	}
	if opts.MaxSample < 1 {
		panic(fmt.Sprintf("httpapi: MaxSample must be >= 1, got %d", opts.MaxSample))
	}
	return &Server{lib: lib, gens: gens, logger: logger, opts: opts}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(observability.HTTPMiddleware)
	r.Use(s.logRequests)

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/dice/parse", s.handleDiceParse)
		r.Post("/dice/roll", s.handleDiceRoll)

		r.Get("/tables", s.handleListTables)
		r.Post("/tables/{id}/sample", s.handleSampleTable)

		r.Get("/names", s.handleListCatalogs)
		r.Post("/names/expand", s.handleExpandName)

		r.Post("/encounters/evaluate", s.handleEvaluateEncounter)
		r.Post("/encounters/budget", s.handleEncounterBudget)

		r.Get("/generators", s.handleListGenerators)
		r.Post("/generators/{name}", s.handleGenerate)
	})
	return r
}

// requestID stamps every request with a uuid, reusing a caller-supplied one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("request_id", r.Header.Get(RequestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// source returns the Source for one request: the request's seed, else the
// configured seed, else crypto/rand.
func (s *Server) source(seed *uint64) dice.Source {
	switch {
	case seed != nil:
		return dice.NewSeededSource(*seed)
	case s.opts.Seed != 0:
		return dice.NewSeededSource(s.opts.Seed)
	default:
		return dice.NewCryptoSource()
	}
}

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("httpapi: bad request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode reads a JSON body into dst and checks its validate tags. An empty
// body leaves dst untouched when allowEmpty is set.
//
// Precondition: dst must be a pointer to a struct.
func decode(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if !allowEmpty || !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
