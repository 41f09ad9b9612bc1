package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const day = 24 * time.Hour

// Only d and w contain those letters among duration units, so any match is one of ours.
var dayWeekUnit = regexp.MustCompile(`(\d+(?:\.\d+)?)([dw])`)

// ParseDuration accepts everything time.ParseDuration does plus d (24h) and w (7d),
// e.g. "7d", "1w2d3h", "1.5d".
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("duration is required")
	}
	var convErr error
	expanded := dayWeekUnit.ReplaceAllStringFunc(raw, func(m string) string {
		parts := dayWeekUnit.FindStringSubmatch(m)
		n, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			convErr = err
			return m
		}
		if parts[2] == "w" {
			n *= 7
		}
		return strconv.FormatFloat(n*24, 'f', -1, 64) + "h"
	})
	if convErr != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, convErr)
	}
	d, err := time.ParseDuration(expanded)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}

// Duration is a time.Duration that also accepts d and w units in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// String prints whole days as "Nd" so round-tripped documents keep their units.
func (d Duration) String() string {
	std := time.Duration(d)
	if std != 0 && std%day == 0 {
		return strconv.FormatInt(int64(std/day), 10) + "d"
	}
	return std.String()
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
