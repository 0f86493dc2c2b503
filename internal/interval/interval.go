// Package interval parses the vendor's bracket-notation percentage intervals
// such as "[ 90 - 100% ]", "] 0 - 10% [" or the literal "None".
//
// Open and closed ends are accepted but not distinguished; only the numeric
// bounds are kept.
package interval

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"esgdata/internal/domain"
	"esgdata/internal/logging"
)

// None is the taxonomy's "no value" marker.
const None = "None"

// ErrTokenCount is returned when the text does not split into two bounds.
var ErrTokenCount = errors.New("expected exactly two bounds")

// ParseError reports interval text that could not be converted.
// It indicates a format change upstream and must not be swallowed.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("interval: unable to convert %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var stripper = strings.NewReplacer("[", "", "]", "", "%", "")

// Parse converts v into (lower, upper) percent bounds.
//
// Non-string input is logged and yields (0, 0) without error so that a bad
// cell does not abort a batch. "None" yields (0, 0). Any other text that does
// not parse is logged and returned as a *ParseError.
func Parse(log *zap.Logger, v any) (lower, upper int, err error) {
	log = logging.OrNop(log)

	s, ok := v.(string)
	if !ok {
		log.Error("interval: didn't get a string", zap.String("input", fmt.Sprint(v)))
		return 0, 0, nil
	}
	if s == None {
		return 0, 0, nil
	}

	tokens := strings.Split(stripper.Replace(s), "-")
	if len(tokens) != 2 {
		return 0, 0, fail(log, s, ErrTokenCount)
	}
	lower, err = strconv.Atoi(strings.TrimSpace(tokens[0]))
	if err != nil {
		return 0, 0, fail(log, s, err)
	}
	upper, err = strconv.Atoi(strings.TrimSpace(tokens[1]))
	if err != nil {
		return 0, 0, fail(log, s, err)
	}
	return lower, upper, nil
}

func fail(log *zap.Logger, input string, err error) error {
	log.Error("interval: unable to convert", zap.String("input", input), zap.Error(err))
	return &ParseError{Input: input, Err: err}
}

// Bounds is the labelled result of Parse, in percent.
type Bounds struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
}

// ParseBounds is Parse returning a Bounds record.
func ParseBounds(log *zap.Logger, v any) (Bounds, error) {
	lower, upper, err := Parse(log, v)
	if err != nil {
		return Bounds{}, err
	}
	return Bounds{Lower: lower, Upper: upper}, nil
}

// Indicator converts the percent bounds into the stored fractional form.
func (b Bounds) Indicator() domain.IntervalIndicator {
	lower := float64(b.Lower) / 100
	upper := float64(b.Upper) / 100
	return domain.IntervalIndicator{
		Lower: lower,
		Mean:  (lower + upper) / 2,
		Upper: upper,
	}
}
