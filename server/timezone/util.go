// Package timezone validates IANA timezone names coming in from
// clients.
package timezone

import (
	"time"
)

// Normalize returns name when it is a loadable IANA timezone, the
// fallback otherwise. An empty fallback means UTC.
func Normalize(name, fallback string) string {
	if name != "" {
		if _, err := time.LoadLocation(name); err == nil {
			return name
		}
	}
	if fallback == "" {
		return "UTC"
	}
	return fallback
}

// Location loads the named timezone, falling back to UTC when the
// name is empty or unknown.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
