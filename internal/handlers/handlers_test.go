package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"nutrilab/internal/db/mock"
	"nutrilab/internal/openfoodfacts"
	"nutrilab/internal/schema"
)

func withTestSessionManager(t *testing.T) (*scs.SessionManager, func()) {
	t.Helper()
	original := sessionManager
	sm := scs.New()
	sessionManager = sm
	return sm, func() {
		sessionManager = original
	}
}

func withTestDatabase(t *testing.T) (*gorm.DB, func()) {
	t.Helper()
	originalDB, originalRepo := database, repository
	db, err := mock.NewNamed(context.Background(), strings.ReplaceAll("handlers-"+t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	Configure(sessionManager, db)
	return db, func() {
		database, repository = originalDB, originalRepo
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

type stubFetcher struct {
	mu       sync.Mutex
	products map[string]schema.Product
	err      error
	calls    int
}

func (s *stubFetcher) FetchProduct(_ context.Context, barcode string) (schema.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return schema.Product{}, s.err
	}
	product, ok := s.products[barcode]
	if !ok {
		return schema.Product{}, openfoodfacts.ErrProductNotFound
	}
	return product, nil
}

func withTestProductSource(t *testing.T, fetcher openfoodfacts.Fetcher) func() {
	t.Helper()
	original := productSource
	productSource = fetcher
	return func() {
		productSource = original
	}
}

func newJSONRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}
