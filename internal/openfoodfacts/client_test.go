package openfoodfacts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKinds = []error{
	ErrUpstreamUnreachable,
	ErrUpstreamError,
	ErrUpstreamMalformedResponse,
	ErrUpstreamSchemaViolation,
	ErrUpstreamInconsistentSuccess,
	ErrUpstreamDataQuality,
	ErrProductNotFound,
	ErrBarcodeMismatch,
}

// requireKind asserts err matches want and no other error kind.
func requireKind(t *testing.T, err error, want error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, want)
	for _, kind := range allKinds {
		if kind != want {
			assert.NotErrorIs(t, err, kind)
		}
	}
}

func envelopeJSON(status, product string) string {
	if product == "" {
		return fmt.Sprintf(`{"status": %q, "result": {"id": "product_found", "name": "Product found"}}`, status)
	}
	return fmt.Sprintf(`{"status": %q, "result": {"id": "product_found", "name": "Product found"}, "product": %s}`, status, product)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewClient(Config{BaseURL: ts.URL, HTTPClient: ts.Client()})
	require.NoError(t, err)
	return client
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestFetchProductSuccess(t *testing.T) {
	requests := make(chan *http.Request, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		respond(http.StatusOK, envelopeJSON("success", `{
			"code": "999999",
			"product_name": "Remote Product",
			"nutriments": {"fat_100g": 3.0}
		}`))(w, r)
	})

	product, err := client.FetchProduct(context.Background(), "999999")
	require.NoError(t, err)

	req := <-requests
	assert.Equal(t, "/api/v3/product/999999.json", req.URL.Path)
	assert.Equal(t, defaultUserAgent, req.Header.Get("User-Agent"))

	assert.Equal(t, "999999", product.Barcode)
	assert.Equal(t, "Remote Product", product.Name)
	require.NotNil(t, product.Macronutrients.Fat)
	assert.Equal(t, 3.0, *product.Macronutrients.Fat)
	assert.Nil(t, product.Macronutrients.SaturatedFat)
	assert.Nil(t, product.Macronutrients.Carbohydrates)
	assert.Nil(t, product.Macronutrients.Sugars)
	assert.Nil(t, product.Macronutrients.Fiber)
	assert.Nil(t, product.Macronutrients.Proteins)
	assert.Nil(t, product.Energy)
	assert.Nil(t, product.ImageURL)
	assert.Empty(t, product.Ingredients)
}

func TestFetchProductNumericCode(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, envelopeJSON("success", `{"code": 999999}`)))

	product, err := client.FetchProduct(context.Background(), "999999")
	require.NoError(t, err)
	assert.Equal(t, "999999", product.Barcode)
}

func newV2TestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewClient(Config{BaseURL: ts.URL + "/", APIVersion: "V2", UserAgent: "tests/1.0", HTTPClient: ts.Client()})
	require.NoError(t, err)
	return client
}

func TestFetchProductUsesConfiguredVersion(t *testing.T) {
	paths := make(chan string, 1)
	client := newV2TestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		respond(http.StatusOK, `{
			"code": "3017620422003",
			"product": {
				"code": "3017620422003",
				"product_name": "Nutella",
				"nutriments": {"fat_100g": 30.9, "sugars_100g": 56.3, "energy_100g": 2255}
			},
			"status": 1,
			"status_verbose": "product found"
		}`)(w, r)
	})

	product, err := client.FetchProduct(context.Background(), "3017620422003")
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/product/3017620422003.json", <-paths)
	assert.Equal(t, "3017620422003", product.Barcode)
	assert.Equal(t, "Nutella", product.Name)
	require.NotNil(t, product.Macronutrients.Sugars)
	assert.Equal(t, 56.3, *product.Macronutrients.Sugars)
	require.NotNil(t, product.Energy)
	assert.Equal(t, 2255.0, *product.Energy)
}

func TestFetchProductV2TopLevelCode(t *testing.T) {
	client := newV2TestClient(t, respond(http.StatusOK,
		`{"code": 42, "product": {"product_name": "Answer"}, "status": 1, "status_verbose": "product found"}`))

	product, err := client.FetchProduct(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", product.Barcode)
	assert.Equal(t, "Answer", product.Name)
}

func TestFetchProductV2ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "not found", status: http.StatusOK, body: `{"code": "42", "status": 0, "status_verbose": "product not found"}`, want: ErrProductNotFound},
		{name: "404 not found", status: http.StatusNotFound, body: `{"code": "42", "status": 0, "status_verbose": "product not found"}`, want: ErrProductNotFound},
		{name: "found without product", status: http.StatusOK, body: `{"code": "42", "status": 1}`, want: ErrUpstreamInconsistentSuccess},
		{name: "other barcode", status: http.StatusOK, body: `{"code": "42", "product": {"code": "111111"}, "status": 1}`, want: ErrBarcodeMismatch},
		{name: "v3 envelope", status: http.StatusOK, body: envelopeJSON("success", `{"code": "42"}`), want: ErrUpstreamSchemaViolation},
		{name: "unknown status", status: http.StatusOK, body: `{"code": "42", "status": 2}`, want: ErrUpstreamSchemaViolation},
		{name: "missing status", status: http.StatusOK, body: `{"code": "42"}`, want: ErrUpstreamSchemaViolation},
		{name: "verbose not a string", status: http.StatusOK, body: `{"code": "42", "status": 1, "status_verbose": 5}`, want: ErrUpstreamSchemaViolation},
		{name: "product without any code", status: http.StatusOK, body: `{"product": {"product_name": "x"}, "status": 1}`, want: ErrUpstreamSchemaViolation},
		{name: "product not an object", status: http.StatusOK, body: `{"code": "42", "product": [], "status": 1}`, want: ErrUpstreamSchemaViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newV2TestClient(t, respond(tt.status, tt.body))
			_, err := client.FetchProduct(context.Background(), "42")
			requireKind(t, err, tt.want)
		})
	}
}

func TestFetchProductRejectsOversizedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		padding := strings.Repeat(" ", maxBodyBytes)
		_, _ = w.Write([]byte(envelopeJSON("success", `{"code": "42"}`) + padding))
	})

	_, err := client.FetchProduct(context.Background(), "42")
	requireKind(t, err, ErrUpstreamError)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestFetchProductAcceptsBodyAtLimit(t *testing.T) {
	body := envelopeJSON("success", `{"code": "42"}`)
	body += strings.Repeat(" ", maxBodyBytes-len(body))
	client := newTestClient(t, respond(http.StatusOK, body))

	product, err := client.FetchProduct(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", product.Barcode)
}

func TestFetchProductErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error": "boom"}`, want: ErrUpstreamError},
		{name: "plain 404", status: http.StatusNotFound, body: `<html>not here</html>`, want: ErrUpstreamError},
		{name: "throttled", status: http.StatusTooManyRequests, body: ``, want: ErrUpstreamError},
		{name: "404 with failure envelope", status: http.StatusNotFound, body: envelopeJSON("failure", ""), want: ErrProductNotFound},
		{name: "body not json", status: http.StatusOK, body: `{"status": "success"`, want: ErrUpstreamMalformedResponse},
		{name: "empty body", status: http.StatusOK, body: ``, want: ErrUpstreamMalformedResponse},
		{name: "envelope is a list", status: http.StatusOK, body: `[]`, want: ErrUpstreamSchemaViolation},
		{name: "missing status", status: http.StatusOK, body: `{"result": {"id": "x"}}`, want: ErrUpstreamSchemaViolation},
		{name: "numeric status", status: http.StatusOK, body: `{"status": 1, "result": {"id": "x"}}`, want: ErrUpstreamSchemaViolation},
		{name: "unknown status", status: http.StatusOK, body: envelopeJSON("maybe", ""), want: ErrUpstreamSchemaViolation},
		{name: "missing result", status: http.StatusOK, body: `{"status": "success"}`, want: ErrUpstreamSchemaViolation},
		{name: "result without id", status: http.StatusOK, body: `{"status": "success", "result": {"name": "x"}}`, want: ErrUpstreamSchemaViolation},
		{name: "warnings not a list", status: http.StatusOK, body: `{"status": "success", "result": {"id": "x"}, "warnings": "bad"}`, want: ErrUpstreamSchemaViolation},
		{name: "warning without ids", status: http.StatusOK, body: `{"status": "success", "result": {"id": "x"}, "warnings": [{"field": {"id": "f", "value": "v"}}]}`, want: ErrUpstreamSchemaViolation},
		{name: "product not an object", status: http.StatusOK, body: envelopeJSON("success", `"nope"`), want: ErrUpstreamSchemaViolation},
		{name: "product without code", status: http.StatusOK, body: envelopeJSON("success", `{"product_name": "x"}`), want: ErrUpstreamSchemaViolation},
		{name: "product code empty", status: http.StatusOK, body: envelopeJSON("success", `{"code": ""}`), want: ErrUpstreamSchemaViolation},
		{name: "failure status", status: http.StatusOK, body: envelopeJSON("failure", ""), want: ErrProductNotFound},
		{name: "success without product", status: http.StatusOK, body: envelopeJSON("success", ""), want: ErrUpstreamInconsistentSuccess},
		{name: "success with null product", status: http.StatusOK, body: envelopeJSON("success", `null`), want: ErrUpstreamInconsistentSuccess},
		{name: "barcode mismatch", status: http.StatusOK, body: envelopeJSON("success", `{"code": "111111"}`), want: ErrBarcodeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, respond(tt.status, tt.body))

			_, err := client.FetchProduct(context.Background(), "999999")
			requireKind(t, err, tt.want)
		})
	}
}

func TestFetchProductStatusErrorCarriesCode(t *testing.T) {
	client := newTestClient(t, respond(http.StatusBadGateway, ``))

	_, err := client.FetchProduct(context.Background(), "999999")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestFetchProductBarcodeMismatchCarriesBoth(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, envelopeJSON("success", `{"code": "111111"}`)))

	_, err := client.FetchProduct(context.Background(), "999999")
	var mismatch *BarcodeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "999999", mismatch.Requested)
	assert.Equal(t, "111111", mismatch.Returned)
}

func TestFetchProductDataQualityCarriesEntries(t *testing.T) {
	body := `{
		"status": "success_with_warnings",
		"result": {"id": "product_found", "name": "Product found"},
		"warnings": [{
			"message": {"id": "sugars_exceed_carbohydrates", "name": "Sugars exceed carbohydrates"},
			"field": {"id": "nutriments.sugars_100g", "value": "80"},
			"impact": {"id": "warning", "name": "Warning"}
		}],
		"errors": [{
			"message": {"id": "invalid_unit", "name": "Invalid unit"},
			"field": {"id": "nutriments.fat_unit", "value": "lb"},
			"impact": {"id": "field_ignored", "name": "Field ignored"}
		}],
		"product": {"code": "999999"}
	}`
	client := newTestClient(t, respond(http.StatusOK, body))

	_, err := client.FetchProduct(context.Background(), "999999")
	requireKind(t, err, ErrUpstreamDataQuality)

	var quality *DataQualityError
	require.ErrorAs(t, err, &quality)
	assert.Equal(t, StatusSuccessWithWarnings, quality.Status)
	require.Len(t, quality.Warnings, 1)
	require.Len(t, quality.Errors, 1)
	assert.Equal(t, "sugars_exceed_carbohydrates", quality.Warnings[0].Message.ID)
	assert.Equal(t, "nutriments.fat_unit", quality.Errors[0].Field.ID)

	entries := quality.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "warning", entries[0].Impact.ID)
	assert.Equal(t, "field_ignored", entries[1].Impact.ID)
}

func TestFetchProductSuccessWithErrorsWithoutEntries(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, envelopeJSON("success_with_errors", `{"code": "999999"}`)))

	_, err := client.FetchProduct(context.Background(), "999999")
	requireKind(t, err, ErrUpstreamDataQuality)
}

func TestFetchProductConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	baseURL := ts.URL
	ts.Close()

	client, err := NewClient(Config{BaseURL: baseURL})
	require.NoError(t, err)

	_, err = client.FetchProduct(context.Background(), "999999")
	requireKind(t, err, ErrUpstreamUnreachable)
}

func TestFetchProductTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	client, err := NewClient(Config{BaseURL: ts.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.FetchProduct(context.Background(), "999999")
	requireKind(t, err, ErrUpstreamUnreachable)
}

func TestFetchProductCanceledContext(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, envelopeJSON("success", `{"code": "999999"}`)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchProduct(ctx, "999999")
	requireKind(t, err, ErrUpstreamUnreachable)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetchProductRateLimited(t *testing.T) {
	ts := httptest.NewServer(respond(http.StatusOK, envelopeJSON("success", `{"code": "999999"}`)))
	defer ts.Close()

	client, err := NewClient(Config{BaseURL: ts.URL, HTTPClient: ts.Client(), RatePerMinute: 1, RateBurst: 1})
	require.NoError(t, err)

	_, err = client.FetchProduct(context.Background(), "999999")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.FetchProduct(ctx, "999999")
	requireKind(t, err, ErrUpstreamUnreachable)
}

func TestFetchProductEmptyBarcode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL.Path)
	})

	_, err := client.FetchProduct(context.Background(), "  ")
	requireKind(t, err, ErrProductNotFound)
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "v2", cfg: Config{APIVersion: "v2"}},
		{name: "unknown version", cfg: Config{APIVersion: "v9"}, wantErr: true},
		{name: "negative rate", cfg: Config{RatePerMinute: -1}, wantErr: true},
		{name: "negative burst", cfg: Config{RatePerMinute: 10, RateBurst: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultBaseURL, client.baseURL)
			assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
		})
	}
}
