package openfoodfacts

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status is the business-level outcome reported by an upstream envelope.
// API v2 numeric statuses are translated into these values.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusSuccessWithWarnings Status = "success_with_warnings"
	StatusSuccessWithErrors   Status = "success_with_errors"
	StatusFailure             Status = "failure"
)

func (s Status) valid() bool {
	switch s {
	case StatusSuccess, StatusSuccessWithWarnings, StatusSuccessWithErrors, StatusFailure:
		return true
	default:
		return false
	}
}

// Result describes the outcome of the lookup, e.g. "product_found".
type Result struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	LCName string `json:"lc_name,omitempty"`
}

// Message is the human readable part of a warning or error entry.
type Message struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LCName        string `json:"lc_name,omitempty"`
	Description   string `json:"description,omitempty"`
	LCDescription string `json:"lc_description,omitempty"`
}

// Field names the product field an entry refers to.
type Field struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Impact states what upstream did about an entry.
type Impact struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LCName        string `json:"lc_name,omitempty"`
	Description   string `json:"description,omitempty"`
	LCDescription string `json:"lc_description,omitempty"`
}

// Entry is one warning or error reported by upstream.
type Entry struct {
	Message Message `json:"message"`
	Field   Field   `json:"field"`
	Impact  Impact  `json:"impact"`
}

type envelope struct {
	Status   Status
	Result   Result
	Warnings []Entry
	Errors   []Entry
	// Product is nil when upstream sent no product body.
	Product map[string]any
	Code    string
}

// decodeEnvelope validates the shape of an upstream response. body must
// already be known to be valid JSON.
func decodeEnvelope(body []byte) (envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return envelope{}, schemaViolation("envelope is not an object")
	}

	var env envelope

	statusRaw, ok := raw["status"]
	if !ok {
		return envelope{}, schemaViolation("status is missing")
	}
	var status string
	if err := json.Unmarshal(statusRaw, &status); err != nil {
		return envelope{}, schemaViolation("status is not a string")
	}
	env.Status = Status(status)
	if !env.Status.valid() {
		return envelope{}, schemaViolation("unknown status %q", status)
	}

	resultRaw, ok := raw["result"]
	if !ok || !isObject(resultRaw) {
		return envelope{}, schemaViolation("result must be an object")
	}
	if err := json.Unmarshal(resultRaw, &env.Result); err != nil {
		return envelope{}, schemaViolation("result: %v", err)
	}
	if env.Result.ID == "" {
		return envelope{}, schemaViolation("result.id is missing")
	}

	var err error
	if env.Warnings, err = decodeEntries(raw["warnings"], "warnings"); err != nil {
		return envelope{}, err
	}
	if env.Errors, err = decodeEntries(raw["errors"], "errors"); err != nil {
		return envelope{}, err
	}

	if err := decodeProductBody(raw["product"], "", &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}

// decodeEnvelopeV2 validates an API v2 response. v2 reports a numeric
// status (1 found, 0 not found), a free-text status_verbose and the
// requested code at the top level. It has no warnings or errors lists.
func decodeEnvelopeV2(body []byte) (envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return envelope{}, schemaViolation("envelope is not an object")
	}

	statusRaw, ok := raw["status"]
	if !ok {
		return envelope{}, schemaViolation("status is missing")
	}
	var status json.Number
	if err := json.Unmarshal(statusRaw, &status); err != nil {
		return envelope{}, schemaViolation("status is not a number")
	}

	var env envelope
	switch status.String() {
	case "1":
		env.Status = StatusSuccess
		env.Result = Result{ID: "product_found", Name: "Product found"}
	case "0":
		env.Status = StatusFailure
		env.Result = Result{ID: "product_not_found", Name: "Product not found"}
	default:
		return envelope{}, schemaViolation("unknown status %s", status)
	}

	if verboseRaw, ok := raw["status_verbose"]; ok && !isNull(verboseRaw) {
		var verbose string
		if err := json.Unmarshal(verboseRaw, &verbose); err != nil {
			return envelope{}, schemaViolation("status_verbose is not a string")
		}
		if verbose != "" {
			env.Result.Name = verbose
		}
	}

	var topCode string
	if codeRaw, ok := raw["code"]; ok && !isNull(codeRaw) {
		var code any
		decoder := json.NewDecoder(bytes.NewReader(codeRaw))
		decoder.UseNumber()
		if err := decoder.Decode(&code); err != nil {
			return envelope{}, schemaViolation("code: %v", err)
		}
		var valid bool
		if topCode, valid = productCode(map[string]any{"code": code}); !valid {
			return envelope{}, schemaViolation("code must be a non-empty string or number")
		}
	}

	if err := decodeProductBody(raw["product"], topCode, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}

// decodeProductBody fills env.Product and env.Code from an optional product
// object. fallbackCode is used when the product carries no code of its own.
func decodeProductBody(productRaw json.RawMessage, fallbackCode string, env *envelope) error {
	if len(productRaw) == 0 || isNull(productRaw) {
		return nil
	}
	if !isObject(productRaw) {
		return schemaViolation("product must be an object")
	}
	decoder := json.NewDecoder(bytes.NewReader(productRaw))
	decoder.UseNumber()
	if err := decoder.Decode(&env.Product); err != nil {
		return schemaViolation("product: %v", err)
	}
	code, ok := productCode(env.Product)
	if !ok {
		if _, present := env.Product["code"]; present || fallbackCode == "" {
			return schemaViolation("product.code must be a non-empty string")
		}
		code = fallbackCode
	}
	env.Code = code
	return nil
}

func decodeEntries(raw json.RawMessage, name string) ([]Entry, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, schemaViolation("%s: %v", name, err)
	}
	for idx, entry := range entries {
		if entry.Message.ID == "" || entry.Impact.ID == "" {
			return nil, schemaViolation("%s[%d] lacks message or impact id", name, idx)
		}
	}
	return entries, nil
}

// productCode accepts numeric codes as well, since older records carry them.
func productCode(product map[string]any) (string, bool) {
	switch v := product["code"].(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (e envelope) String() string {
	return fmt.Sprintf("status=%s result=%s", e.Status, e.Result.ID)
}
