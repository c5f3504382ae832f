package handlers

import (
	"errors"
	"net/http"

	applog "nutrilab/internal/log"
	"nutrilab/internal/openfoodfacts"
)

type fetchErrorResponse struct {
	Error    string                `json:"error"`
	Status   string                `json:"status,omitempty"`
	Warnings []openfoodfacts.Entry `json:"warnings,omitempty"`
	Errors   []openfoodfacts.Entry `json:"errors,omitempty"`
	Barcode  string                `json:"barcode,omitempty"`
	Returned string                `json:"returned_barcode,omitempty"`
}

// fetchErrorStatus maps a product lookup failure to the HTTP status
// reported to clients.
func fetchErrorStatus(err error) int {
	switch {
	case errors.Is(err, openfoodfacts.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, openfoodfacts.ErrUpstreamUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, openfoodfacts.ErrUpstreamError),
		errors.Is(err, openfoodfacts.ErrUpstreamMalformedResponse),
		errors.Is(err, openfoodfacts.ErrUpstreamInconsistentSuccess),
		errors.Is(err, openfoodfacts.ErrBarcodeMismatch):
		return http.StatusBadGateway
	case errors.Is(err, openfoodfacts.ErrUpstreamSchemaViolation):
		return http.StatusInternalServerError
	case errors.Is(err, openfoodfacts.ErrUpstreamDataQuality):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeFetchError(w http.ResponseWriter, r *http.Request, barcode string, err error) {
	status := fetchErrorStatus(err)
	if status >= http.StatusInternalServerError {
		applog.Error(r.Context(), "product lookup failed", "barcode", barcode, "status", status, "error", err)
	} else {
		applog.Debug(r.Context(), "product lookup rejected", "barcode", barcode, "status", status, "error", err)
	}

	resp := fetchErrorResponse{Error: err.Error(), Barcode: barcode}

	var quality *openfoodfacts.DataQualityError
	if errors.As(err, &quality) {
		resp.Status = string(quality.Status)
		resp.Warnings = quality.Warnings
		resp.Errors = quality.Errors
	}

	var mismatch *openfoodfacts.BarcodeMismatchError
	if errors.As(err, &mismatch) {
		resp.Returned = mismatch.Returned
	}

	writeJSON(w, status, resp)
}
