// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/fleetledger/internal/adapters/archive"
	"github.com/okian/fleetledger/internal/adapters/http/swagger"
	"github.com/okian/fleetledger/internal/adapters/repository"
	service "github.com/okian/fleetledger/internal/app"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/internal/ledger"
)

const requestTimeout = 30 * time.Second

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	StatsProvider

	Drivers() ([]model.Driver, error)
	Driver(id string) (model.Driver, error)
	DriverEarnings(driverID string) ([]model.EarningEvent, error)
	DriverPerformance(driverID string) ([]model.PerformanceEntry, error)
	Summary(driverID string) (ledger.Summary, error)
	EarningsForPeriod(from, to time.Time, driverID string) ([]model.EarningEvent, error)
	Leaderboard(ctx context.Context, n int) ([]repository.Entry, error)
	DriverRank(ctx context.Context, driverID string) (repository.Entry, error)

	RecordEarning(ctx context.Context, driverID string, amount float64, typ model.EventType, details model.Details) (*model.EarningEvent, error)
	RecordTrip(ctx context.Context, driverID string, distanceKM, durationMin float64, start, end string) (*model.EarningEvent, error)
	RecordRental(ctx context.Context, driverID, contractID string, days int) (*model.EarningEvent, error)
	SetTracking(on bool) error

	Reconcile(ctx context.Context) ([]ledger.Drift, error)
	ArchiveDay(ctx context.Context, day string) (string, error)
	Simulate(ctx context.Context) (int, error)
}

// Server wires HTTP routes for the ledger API.
type Server struct {
	origins []string

	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	rankingHandler  *RankingHandler
	driversHandler  *DriversHandler
	earningsHandler *EarningsHandler
	adminHandler    *AdminHandler
}

// NewServer creates a new API server with all handlers. An empty origins
// list allows any origin.
func NewServer(deps Dependencies, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		origins:         origins,
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		rankingHandler:  NewRankingHandler(deps),
		driversHandler:  NewDriversHandler(deps),
		earningsHandler: NewEarningsHandler(deps),
		adminHandler:    NewAdminHandler(deps),
	}
}

// Router builds the chi router with every route attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	swagger.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/stats", s.statsHandler.HandleStats)
		r.Get("/leaderboard", s.rankingHandler.HandleLeaderboard)

		r.Route("/drivers", func(r chi.Router) {
			r.Get("/", s.driversHandler.HandleList)
			r.Get("/{id}", s.driversHandler.HandleGet)
			r.Get("/{id}/earnings", s.driversHandler.HandleEarnings)
			r.Get("/{id}/performance", s.driversHandler.HandlePerformance)
			r.Get("/{id}/rank", s.rankingHandler.HandleRank)
		})

		r.Route("/earnings", func(r chi.Router) {
			r.Get("/", s.earningsHandler.HandlePeriod)
			r.Post("/", s.earningsHandler.HandleRecord)
			r.Get("/summary", s.earningsHandler.HandleSummary)
		})
		r.Post("/trips", s.earningsHandler.HandleTrip)
		r.Post("/rentals", s.earningsHandler.HandleRental)

		r.Post("/tracking", s.adminHandler.HandleTracking)
		r.Post("/reconcile", s.adminHandler.HandleReconcile)
		r.Post("/simulate", s.adminHandler.HandleSimulate)
		r.Post("/archive/{day}", s.adminHandler.HandleArchive)
	})

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps domain errors to HTTP status codes.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrDriverNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "not_ready", err)
	case errors.Is(err, ledger.ErrModeMismatch):
		writeError(w, http.StatusConflict, "mode_mismatch", err)
	case errors.Is(err, ledger.ErrSimulationDisabled), errors.Is(err, ledger.ErrArchiveDisabled):
		writeError(w, http.StatusConflict, "disabled", err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, ledger.ErrInvalidType),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidTrip),
		errors.Is(err, archive.ErrInvalidDay):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}
