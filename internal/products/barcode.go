package products

import (
	"errors"
	"fmt"
)

// ErrInvalidBarcode is returned by ValidateEAN13.
var ErrInvalidBarcode = errors.New("products: invalid EAN-13 barcode")

// ValidateEAN13 checks length, digits and the check digit of code.
func ValidateEAN13(code string) error {
	if len(code) != 13 {
		return fmt.Errorf("%w: %q must have 13 digits", ErrInvalidBarcode, code)
	}

	sum := 0
	for i := 0; i < 12; i++ {
		c := code[i]
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %q contains a non-digit", ErrInvalidBarcode, code)
		}
		digit := int(c - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}

	last := code[12]
	if last < '0' || last > '9' {
		return fmt.Errorf("%w: %q contains a non-digit", ErrInvalidBarcode, code)
	}
	if want := (10 - sum%10) % 10; int(last-'0') != want {
		return fmt.Errorf("%w: %q has check digit %c, want %d", ErrInvalidBarcode, code, last, want)
	}
	return nil
}
