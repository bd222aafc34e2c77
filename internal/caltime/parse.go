package caltime

import (
	"errors"
	"strings"
	"time"
)

// localLayouts are the zone-naive literals accepted by ParseLocalString.
var localLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseLocalString interprets a zone-naive date-time literal as wall-clock
// time in zone.
func ParseLocalString(text, zone string) (Instant, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, &UnparsableTimeError{Text: text, Err: errors.New("empty input")}
	}
	var lastErr error
	for _, layout := range localLayouts {
		if len(s) != len(layout) {
			continue
		}
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			y, m, d := t.Date()
			return FromTime(wallClock(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)), nil
		}
		lastErr = err
	}
	return 0, &UnparsableTimeError{Text: text, Err: lastErr}
}
