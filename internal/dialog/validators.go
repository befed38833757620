package dialog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/m3rciful/aviabot/internal/reference"
)

// Validator turns raw text into a step value. Recoverable failures are
// *InputError; any other error is a fault of a collaborator.
type Validator func(ctx context.Context, text string) (any, error)

var (
	monthRe      = regexp.MustCompile(`^\d{4}-\d{2}$`)
	priceRangeRe = regexp.MustCompile(`^(\d+)-(\d+)$`)
)

// CityValidator looks text up by localized name, exactly as stored.
func CityValidator(step StepName, store reference.Store) Validator {
	return func(ctx context.Context, text string) (any, error) {
		city, err := store.CityByName(ctx, text)
		if errors.Is(err, reference.ErrNotFound) {
			return nil, notFound(step)
		}
		if err != nil {
			return nil, fmt.Errorf("dialog: city lookup: %w", err)
		}
		return city, nil
	}
}

// ValidateMonth accepts YYYY-MM by pattern only; 2024-13 passes.
func ValidateMonth(_ context.Context, text string) (any, error) {
	if !monthRe.MatchString(text) {
		return nil, invalid(StepMonth)
	}
	return text, nil
}

// ValidatePriceRange accepts "<digits>-<digits>" without ordering the bounds.
// A bound too large for int saturates to math.MaxInt.
func ValidatePriceRange(_ context.Context, text string) (any, error) {
	m := priceRangeRe.FindStringSubmatch(text)
	if m == nil {
		return nil, invalid(StepPriceRange)
	}
	return PriceRange{Low: parseBound(m[1]), High: parseBound(m[2])}, nil
}

// parseBound reads a run of ASCII digits; only overflow can fail.
func parseBound(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return math.MaxInt
	}
	return n
}
