package creds

import "time"

// Named US time zones users pick from when registering. Anything unset or
// unrecognized falls back to the default (east).
var zones = map[string]string{
	"east":     "America/New_York",
	"central":  "America/Chicago",
	"mountain": "America/Denver",
	"west":     "America/Los_Angeles",
}

const defaultZone = "east"

// ZoneNames lists the accepted zone names for forms and flag help.
func ZoneNames() []string {
	return []string{"east", "central", "mountain", "west"}
}

// ResolveZone maps a named zone to its location. Unknown or empty names
// resolve to the default rather than erroring; a bad preference should not
// block a snipe.
func ResolveZone(name string) *time.Location {
	iana, ok := zones[name]
	if !ok {
		iana = zones[defaultZone]
	}
	loc, err := time.LoadLocation(iana)
	if err != nil {
		return time.UTC
	}
	return loc
}
