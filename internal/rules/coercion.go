// internal/rules/coercion.go
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/mailrules/internal/types"
)

/*
 * Value coercion for date conditions.
 *
 * Date conditions carry their comparison value as text ("30 D", "2 m").
 * ParseWindow turns that text into a duration; the record side is the
 * Record.ReceivedAt pointer, where nil means the source could not parse the
 * Date header.
 *
 * Units:
 *   - D: days (24h)
 *   - M: months, approximated as 30 days
 *
 * Malformed values (wrong arity, non-integer, negative, unknown unit,
 * absolute dates like "01/04/2023") return ErrMalformedDate. The caller
 * turns that into a false condition plus a warning; it never fails a run.
 *
 * Upper bound: MaxWindowDays keeps n * 24h far away from time.Duration
 * overflow (~292 years).
 */

const (
	day = 24 * time.Hour

	// daysPerMonth approximates a calendar month.
	daysPerMonth = 30

	// MaxWindowDays caps a window at roughly 270 years.
	MaxWindowDays = 100_000
)

// ParseWindow converts a relative date value "<integer> <unit>" to a duration.
func ParseWindow(value string) (time.Duration, error) {
	parts := strings.Fields(strings.ToLower(value))
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q (want \"<n> D\" or \"<n> M\")", types.ErrMalformedDate, value)
	}

	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q has invalid count", types.ErrMalformedDate, value)
	}

	var days int
	switch parts[1] {
	case "d":
		days = n
	case "m":
		if n > MaxWindowDays/daysPerMonth {
			return 0, fmt.Errorf("%w: %q exceeds maximum window", types.ErrMalformedDate, value)
		}
		days = n * daysPerMonth
	default:
		return 0, fmt.Errorf("%w: %q has unknown unit %q", types.ErrMalformedDate, value, parts[1])
	}

	if days > MaxWindowDays {
		return 0, fmt.Errorf("%w: %q exceeds maximum window", types.ErrMalformedDate, value)
	}
	return time.Duration(days) * day, nil
}
