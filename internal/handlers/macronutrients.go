package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	applog "nutrilab/internal/log"
	"nutrilab/internal/schema"
)

type macronutrientResponse struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	NameInForm string `json:"name_in_form"`
	OrderIndex int    `json:"order_index"`
}

type macronutrientFormResponse struct {
	Macronutrients schema.Macronutrients `json:"macronutrients"`
}

// Macronutrients lists the macronutrient fields in display order. The
// database catalog is used when available.
func Macronutrients(w http.ResponseWriter, r *http.Request) {
	var resp []macronutrientResponse

	if repository != nil {
		rows, err := repository.Macronutrients(r.Context())
		if err != nil {
			applog.Error(r.Context(), "failed to list macronutrients", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "failed to list macronutrients")
			return
		}
		for _, row := range rows {
			resp = append(resp, macronutrientResponse{
				Name:       row.Name,
				Label:      row.Label,
				NameInForm: row.NameInForm,
				OrderIndex: row.OrderIndex,
			})
		}
	}

	if len(resp) == 0 {
		for idx, field := range schema.MacronutrientFields {
			resp = append(resp, macronutrientResponse{
				Name:       string(field),
				Label:      field.Label(),
				NameInForm: field.FormName(),
				OrderIndex: idx,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// MacronutrientFormData reads macronutrients_<name>_0 query parameters into
// a macronutrient set. Empty values stay unset.
func MacronutrientFormData(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var resp macronutrientFormResponse
	for _, field := range schema.MacronutrientFields {
		key := field.FormName() + "_0"
		raw := strings.TrimSpace(query.Get(key))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			applog.Debug(r.Context(), "invalid macronutrient form value", "field", key, "value", raw)
			writeJSONError(w, http.StatusBadRequest, key+" must be a number")
			return
		}
		resp.Macronutrients.Set(field, &value)
	}

	writeJSON(w, http.StatusOK, resp)
}
