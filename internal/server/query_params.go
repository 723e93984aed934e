package server

import (
	"errors"
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidTime = errors.New("invalid_time")

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errInvalidTime
}

func parseRequiredTime(c queryGetter, key string, endOfDay bool) (time.Time, error) {
	raw := c.Query(key)
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, newValidationError(key, "required", key+" is required")
	}
	parsed, err := parseOptionalTime(raw, endOfDay)
	if err != nil {
		return time.Time{}, newValidationError(key, "invalid_time", key+" must be RFC3339 or YYYY-MM-DD")
	}
	return *parsed, nil
}

type queryGetter interface {
	Query(key string) string
}
