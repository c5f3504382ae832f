package openfoodfacts

import (
	"errors"
	"fmt"
)

// Every failed FetchProduct matches exactly one of these with errors.Is.
var (
	ErrUpstreamUnreachable         = errors.New("openfoodfacts: upstream unreachable")
	ErrUpstreamError               = errors.New("openfoodfacts: upstream returned an error status")
	ErrUpstreamMalformedResponse   = errors.New("openfoodfacts: upstream response is not valid JSON")
	ErrUpstreamSchemaViolation     = errors.New("openfoodfacts: upstream response does not match the envelope schema")
	ErrUpstreamInconsistentSuccess = errors.New("openfoodfacts: upstream reported success without a product")
	ErrUpstreamDataQuality         = errors.New("openfoodfacts: upstream reported data quality issues")
	ErrProductNotFound             = errors.New("openfoodfacts: product not found")
	ErrBarcodeMismatch             = errors.New("openfoodfacts: returned barcode does not match request")
)

// StatusError carries the HTTP status of a rejected upstream request.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openfoodfacts: upstream returned status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstreamError
}

// DataQualityError carries the warning and error entries of a
// success_with_warnings or success_with_errors envelope.
type DataQualityError struct {
	Status   Status
	Warnings []Entry
	Errors   []Entry
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("openfoodfacts: upstream status %s with %d warnings and %d errors", e.Status, len(e.Warnings), len(e.Errors))
}

func (e *DataQualityError) Unwrap() error {
	return ErrUpstreamDataQuality
}

// Entries returns warnings followed by errors.
func (e *DataQualityError) Entries() []Entry {
	entries := make([]Entry, 0, len(e.Warnings)+len(e.Errors))
	entries = append(entries, e.Warnings...)
	return append(entries, e.Errors...)
}

// BarcodeMismatchError records both barcodes when upstream answers for a
// different product than the one requested.
type BarcodeMismatchError struct {
	Requested string
	Returned  string
}

func (e *BarcodeMismatchError) Error() string {
	return fmt.Sprintf("openfoodfacts: requested barcode %s but upstream returned %s", e.Requested, e.Returned)
}

func (e *BarcodeMismatchError) Unwrap() error {
	return ErrBarcodeMismatch
}

func schemaViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUpstreamSchemaViolation, fmt.Sprintf(format, args...))
}
