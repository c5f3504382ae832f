package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"nutrilab/internal/ingredients"
	applog "nutrilab/internal/log"
	"nutrilab/internal/schema"
)

const sessionDraftKey = "off:draft"

// OpenFoodFactsProduct looks a barcode up upstream, annotates the result
// and keeps it in the session as the current draft.
func OpenFoodFactsProduct(w http.ResponseWriter, r *http.Request) {
	if !requireProductSource(w, r) {
		return
	}

	barcode := strings.TrimSpace(r.PathValue("barcode"))
	product, err := productSource.FetchProduct(r.Context(), barcode)
	if err != nil {
		writeFetchError(w, r, barcode, err)
		return
	}

	product.Ingredients = ingredients.AnnotateAll(product.Ingredients, loadReferences(r))
	storeDraft(r, product)

	applog.Debug(r.Context(), "upstream product served", "barcode", barcode)
	writeJSON(w, http.StatusOK, product)
}

// SaveDraft persists the session draft and clears it.
func SaveDraft(w http.ResponseWriter, r *http.Request) {
	if !requireRepository(w, r) {
		return
	}
	if sessionManager == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "sessions unavailable")
		return
	}

	data := sessionManager.GetBytes(r.Context(), sessionDraftKey)
	if len(data) == 0 {
		writeJSONError(w, http.StatusNotFound, "no product draft in session")
		return
	}

	var draft schema.Product
	if err := json.Unmarshal(data, &draft); err != nil {
		applog.Warn(r.Context(), "discarding unreadable draft", "error", err)
		sessionManager.Remove(r.Context(), sessionDraftKey)
		writeJSONError(w, http.StatusNotFound, "no product draft in session")
		return
	}

	if _, err := repository.Save(r.Context(), draft); err != nil {
		applog.Error(r.Context(), "failed to save draft", "barcode", draft.Barcode, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to save product")
		return
	}
	sessionManager.Remove(r.Context(), sessionDraftKey)

	respondWithProduct(w, r, http.StatusCreated, draft.Barcode)
}

// ImportProduct fetches a barcode upstream and stores it in one call.
func ImportProduct(w http.ResponseWriter, r *http.Request) {
	if !requireRepository(w, r) || !requireProductSource(w, r) {
		return
	}

	barcode := strings.TrimSpace(r.PathValue("barcode"))
	product, err := productSource.FetchProduct(r.Context(), barcode)
	if err != nil {
		writeFetchError(w, r, barcode, err)
		return
	}

	saveAndRespond(w, r, http.StatusCreated, product)
}

func storeDraft(r *http.Request, product schema.Product) {
	if sessionManager == nil {
		return
	}
	data, err := json.Marshal(product)
	if err != nil {
		applog.Warn(r.Context(), "failed to encode draft", "barcode", product.Barcode, "error", err)
		return
	}
	sessionManager.Put(r.Context(), sessionDraftKey, data)
}
