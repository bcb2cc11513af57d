package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noot-app/nutrition-log-mcp-server/internal/logbook"
	"github.com/noot-app/nutrition-log-mcp-server/internal/nutrition"
	"github.com/noot-app/nutrition-log-mcp-server/internal/storage"
	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// API serves the REST endpoints of the food log
type API struct {
	svc         *logbook.Service
	log         *slog.Logger
	development bool
}

// NewAPI creates the REST API. development enables detailed error messages.
func NewAPI(svc *logbook.Service, development bool, logger *slog.Logger) *API {
	return &API{svc: svc, log: logger, development: development}
}

// Routes returns the router, relative to wherever it is mounted (normally /api)
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Post("/entries", a.handleLogFood)
	r.Get("/entries", a.handleListEntries)
	r.Get("/summary", a.handleSummary)
	r.Get("/unit-weight", a.handleUnitWeight)
	r.Get("/calories", a.handleCalories)

	return r
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.log.Debug("API request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

// LogFoodRequest is the body of POST /entries
type LogFoodRequest struct {
	FoodName string  `json:"food_name"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	// At is optional, RFC 3339
	At string `json:"at,omitempty"`
}

// EntriesResponse is the body of GET /entries
type EntriesResponse struct {
	Count   int               `json:"count"`
	Entries []*types.LogEntry `json:"entries"`
}

// CaloriesResponse is the body of GET /calories
type CaloriesResponse struct {
	Food     string           `json:"food"`
	Calories float64          `json:"calories"`
	Source   nutrition.Source `json:"source"`
}

func (a *API) handleLogFood(w http.ResponseWriter, r *http.Request) {
	var req LogFoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, "invalid request body", http.StatusBadRequest, err)
		return
	}

	sub := logbook.Submission{FoodName: req.FoodName, Amount: req.Amount, Unit: req.Unit}
	if req.At != "" {
		at, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			a.jsonError(w, "at must be an RFC 3339 timestamp", http.StatusBadRequest, err)
			return
		}
		sub.At = at
	}

	result, err := a.svc.LogFood(r.Context(), sub)
	if err != nil {
		a.serviceError(w, "failed to log food", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result) //nolint:errcheck
}

func (a *API) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.Filter{StartDate: q.Get("start"), EndDate: q.Get("end")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			a.jsonError(w, "limit must be an integer", http.StatusBadRequest, err)
			return
		}
		filter.Limit = limit
	}

	entries, err := a.svc.Entries(r.Context(), filter)
	if err != nil {
		a.serviceError(w, "failed to list entries", err)
		return
	}
	if entries == nil {
		entries = []*types.LogEntry{}
	}
	jsonOK(w, EntriesResponse{Count: len(entries), Entries: entries})
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.Summary(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		a.serviceError(w, "failed to build summary", err)
		return
	}
	jsonOK(w, summary)
}

func (a *API) handleUnitWeight(w http.ResponseWriter, r *http.Request) {
	food := r.URL.Query().Get("food")
	if food == "" {
		a.jsonError(w, "food is required", http.StatusBadRequest)
		return
	}
	jsonOK(w, a.svc.UnitWeight(food))
}

func (a *API) handleCalories(w http.ResponseWriter, r *http.Request) {
	food := r.URL.Query().Get("food")
	if food == "" {
		a.jsonError(w, "food is required", http.StatusBadRequest)
		return
	}

	record, source, err := a.svc.Nutrients(r.Context(), food)
	if err != nil {
		a.serviceError(w, "failed to look up food", err)
		return
	}
	jsonOK(w, CaloriesResponse{Food: food, Calories: record.Calories, Source: source})
}

// serviceError maps logbook and lookup errors to status codes
func (a *API) serviceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, nutrition.ErrNotFound):
		a.jsonError(w, "Food not found", http.StatusNotFound)
	case errors.Is(err, logbook.ErrInvalidSubmission), errors.Is(err, types.ErrInvalidUnit):
		// Validation messages are safe to show in every environment
		a.jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		a.jsonError(w, msg, http.StatusInternalServerError, err)
	}
}

func (a *API) jsonError(w http.ResponseWriter, msg string, status int, errs ...error) {
	if len(errs) > 0 {
		if status >= 500 {
			a.log.Error(msg, "status", status, "error", errs[0])
		}
		if a.development {
			msg = fmt.Sprintf("%s: %v", msg, errs[0])
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
