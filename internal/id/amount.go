package id

import (
	"regexp"
	"strconv"

	clierr "github.com/monkfishlabs/koi-cli/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseAmount validates a decimal SOL amount like "0.5" and rejects
// signs, exponents and zero so malformed values never reach the wire.
func ParseAmount(input string) (float64, error) {
	if !decimalPattern.MatchString(input) {
		return 0, clierr.New(clierr.CodeUsage, "amount must be in decimal form like 1.23")
	}
	v, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUsage, "parse amount", err)
	}
	if v <= 0 {
		return 0, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	return v, nil
}
