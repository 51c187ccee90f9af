package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"location-logger/internal/db"
	"location-logger/internal/models"
	"location-logger/internal/parser"
	"location-logger/internal/pipeline"

	"github.com/gorilla/mux"
)

// Server represents the API server
type Server struct {
	db       *db.Database
	store    *db.LocationStore
	fuel     *db.FuelStore
	notifier pipeline.Storer
	log      *slog.Logger
	router   *mux.Router

	// one bulk-write session at a time
	sessionMu sync.Mutex
}

// NewServer creates a new API server. notifier may be nil when no
// notification channel is configured.
func NewServer(database *db.Database, store *db.LocationStore, fuel *db.FuelStore,
	notifier pipeline.Storer, log *slog.Logger) *Server {
	s := &Server{
		db:       database,
		store:    store,
		fuel:     fuel,
		notifier: notifier,
		log:      log.With("component", "api"),
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Location endpoints
	s.router.HandleFunc("/api/v1/locations", s.handleQueryLocations).Methods("GET")
	s.router.HandleFunc("/api/v1/locations", s.handleCreateLocation).Methods("POST")
	s.router.HandleFunc("/api/v1/locations/batch", s.handleBatchLocations).Methods("POST")
	s.router.HandleFunc("/api/v1/locations/last", s.handleLastLocation).Methods("GET")

	// Fuel endpoints
	s.router.HandleFunc("/api/v1/fuel", s.handleListFuel).Methods("GET")
	s.router.HandleFunc("/api/v1/fuel", s.handleLogFuel).Methods("POST")
	s.router.HandleFunc("/api/v1/fuel/stats", s.handleFuelStats).Methods("GET")
	s.router.HandleFunc("/api/v1/fuel/{id:[0-9]+}", s.handleGetFuel).Methods("GET")
	s.router.HandleFunc("/api/v1/fuel/{id:[0-9]+}", s.handleDeleteFuel).Methods("DELETE")

	// Stats endpoint
	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	// Add middleware
	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start).String())
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total   int   `json:"total,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	QueryMs int64 `json:"query_ms,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}

// writeSamples runs a batch of samples through one storage session.
func (s *Server) writeSamples(samples []models.Location) (stored int, err error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	session := pipeline.NewSession(s.store, s.notifier, s.log)
	if err := session.Open(); err != nil {
		return 0, err
	}

	for i := range samples {
		if session.Write(&samples[i]) {
			stored++
		}
	}

	return stored, session.Close()
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if loc.Timestamp == 0 {
		loc.Timestamp = time.Now().UnixMilli()
	}
	if errs := parser.ValidateLocation(&loc); len(errs) > 0 {
		respondError(w, http.StatusBadRequest, errs[0])
		return
	}

	stored, err := s.writeSamples([]models.Location{loc})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]int{"stored": stored})
}

func (s *Server) handleBatchLocations(w http.ResponseWriter, r *http.Request) {
	var samples []models.Location
	if err := json.NewDecoder(r.Body).Decode(&samples); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON array")
		return
	}
	if len(samples) == 0 {
		respondError(w, http.StatusBadRequest, "empty array")
		return
	}

	now := time.Now().UnixMilli()
	for i := range samples {
		if samples[i].Timestamp == 0 {
			samples[i].Timestamp = now
		}
		if errs := parser.ValidateLocation(&samples[i]); len(errs) > 0 {
			respondError(w, http.StatusBadRequest, errs[0])
			return
		}
	}

	stored, err := s.writeSamples(samples)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]int{"stored": stored})
}

func (s *Server) handleQueryLocations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q := models.LocationQuery{Limit: 100}
	if v := r.URL.Query().Get("limit"); v != "" {
		q.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("since"); v != "" {
		q.Since, _ = strconv.ParseInt(v, 10, 64)
	}

	results, err := s.store.Locations(q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithMeta(w, results, &meta{
		Total:   len(results),
		Limit:   q.Limit,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleLastLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := s.store.Last()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if loc == nil {
		respondError(w, http.StatusNotFound, "no locations stored")
		return
	}
	respondJSON(w, http.StatusOK, loc)
}

type fuelRequest struct {
	OdoValue      int     `json:"odo_value"`
	SpendAmount   float64 `json:"spend_amount"`
	PricePerLitre float64 `json:"price_per_litre"`
}

func (s *Server) handleLogFuel(w http.ResponseWriter, r *http.Request) {
	var req fuelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PricePerLitre == 0 {
		respondError(w, http.StatusBadRequest, "price_per_litre cannot be zero")
		return
	}

	loc, err := s.store.Last()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	count, err := s.fuel.LogFuel(loc, req.OdoValue, req.SpendAmount, req.PricePerLitre)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]int64{"count": count})
}

func (s *Server) handleListFuel(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	logs, err := s.fuel.GetLogs(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithMeta(w, logs, &meta{Total: len(logs), Limit: limit})
}

func (s *Server) handleGetFuel(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	entry, err := s.fuel.GetByID(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		respondError(w, http.StatusNotFound, "fuel log not found")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteFuel(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if err := s.fuel.Delete(id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (s *Server) handleFuelStats(w http.ResponseWriter, r *http.Request) {
	statics, err := s.fuel.MostRecentStatics()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if statics == nil {
		respondError(w, http.StatusNotFound, "no fuel logs recorded")
		return
	}

	result := map[string]interface{}{"recent": statics}
	if avg, err := s.fuel.AvgConsumption(); err == nil {
		result["overall_avg"] = avg
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	attempted, succeeded, failed := s.store.Totals()
	stats["store_attempted"] = attempted
	stats["store_succeeded"] = succeeded
	stats["store_failed"] = failed
	respondJSON(w, http.StatusOK, stats)
}
