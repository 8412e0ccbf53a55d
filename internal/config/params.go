package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/sensitivity-calculator/model"
)

const spreadDelim = "+/-"

// Unit factors from the file units to SI.
const (
	UnitNone        = 1.0
	UnitGHz         = 1e9
	UnitMM          = 1e-3
	UnitUM          = 1e-6
	UnitPW          = 1e-12
	UnitPAPerRtHz   = 1e-12
	UnitLossTangent = 1e-4
	UnitMSPerM      = 1e6
	UnitYear        = 365.25 * 24 * 3600
)

// ParseParameter parses a parameter in the file notation and scales it by
// unit. Accepted forms are "NA", "0.95", "0.95 +/- 0.02", "[0.1, 0.2]" and
// "[0.1, 0.2] +/- [0.01, 0.02]". A scalar spread next to a per-band mean
// applies to every band. An empty string is NA.
func ParseParameter(s string, unit float64) (model.Parameter, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return model.NotApplicableParam(), nil
	}
	meanStr, spreadStr, hasSpread := strings.Cut(s, spreadDelim)
	mean, err := parseList(meanStr)
	if err != nil {
		return model.Parameter{}, fmt.Errorf("parameter %q: %w", s, err)
	}
	spread := make([]float64, len(mean))
	if hasSpread {
		sp, err := parseList(spreadStr)
		if err != nil {
			return model.Parameter{}, fmt.Errorf("parameter %q spread: %w", s, err)
		}
		switch {
		case len(sp) == len(mean):
			spread = sp
		case len(sp) == 1:
			for i := range spread {
				spread[i] = sp[0]
			}
		default:
			return model.Parameter{}, fmt.Errorf("parameter %q: %d means but %d spreads: %w", s, len(mean), len(sp), ErrInvalidConfig)
		}
	}
	p := model.PerBand(mean, spread).Scale(unit)
	if err := p.Validate(); err != nil {
		return model.Parameter{}, fmt.Errorf("parameter %q: %v: %w", s, err, ErrInvalidConfig)
	}
	return p, nil
}

// parseList parses "x" or "[x, y, ...]".
func parseList(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("unterminated list %q: %w", s, ErrInvalidConfig)
		}
		var out []float64
		for _, f := range strings.Split(s[1:len(s)-1], ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("%v: %w", err, ErrInvalidConfig)
			}
			out = append(out, v)
		}
		return out, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidConfig)
	}
	return []float64{v}, nil
}
