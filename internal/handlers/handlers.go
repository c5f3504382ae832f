package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	applog "nutrilab/internal/log"
	"nutrilab/internal/openfoodfacts"
	"nutrilab/internal/products"
)

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB
	repository     *products.Repository
	productSource  openfoodfacts.Fetcher
)

// Configure installs the shared dependencies used by the HTTP handlers.
func Configure(sm *scs.SessionManager, db *gorm.DB) {
	sessionManager = sm
	database = db
	repository = nil
	if db != nil {
		repository = products.NewRepository(db)
	}
}

// ConfigureProductSource installs the upstream product lookup.
func ConfigureProductSource(fetcher openfoodfacts.Fetcher) {
	productSource = fetcher
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requireRepository answers 503 when no database was configured.
func requireRepository(w http.ResponseWriter, r *http.Request) bool {
	if repository == nil {
		applog.Debug(r.Context(), "request without database", "path", r.URL.Path)
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return false
	}
	return true
}

func requireProductSource(w http.ResponseWriter, r *http.Request) bool {
	if productSource == nil {
		applog.Debug(r.Context(), "request without product source", "path", r.URL.Path)
		writeJSONError(w, http.StatusServiceUnavailable, "product lookup unavailable")
		return false
	}
	return true
}
