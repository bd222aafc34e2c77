package caltime

import "time"

// Projection is the wall-clock breakdown of an Instant in a zone.
type Projection struct {
	Year        int          `json:"year"`
	Month       time.Month   `json:"month"`
	Day         int          `json:"day"`
	Hour        int          `json:"hour"`
	Minute      int          `json:"minute"`
	Second      int          `json:"second"`
	Millisecond int          `json:"millisecond"`
	Weekday     time.Weekday `json:"weekday"`
	// Offset is the zone's UTC offset in seconds at the projected instant.
	Offset int    `json:"offset"`
	Zone   string `json:"zone"`
}

// Project converts instant into wall-clock fields in zone, using the zone
// offset in effect at that instant.
func Project(instant Instant, zone string) (Projection, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return Projection{}, err
	}
	return project(instant.In(loc), zone), nil
}

func project(t time.Time, zone string) Projection {
	_, offset := t.Zone()
	return Projection{
		Year:        t.Year(),
		Month:       t.Month(),
		Day:         t.Day(),
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		Second:      t.Second(),
		Millisecond: t.Nanosecond() / int(time.Millisecond),
		Weekday:     t.Weekday(),
		Offset:      offset,
		Zone:        zone,
	}
}

// ToInstant rebuilds an Instant from wall-clock fields interpreted in zone.
// Wall times skipped by a DST gap move forward by the size of the gap;
// repeated wall times resolve the way time.Date does.
func ToInstant(p Projection, zone string) (Instant, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, err
	}
	return FromTime(p.time(loc)), nil
}

func (p Projection) time(loc *time.Location) time.Time {
	return wallClock(p.Year, p.Month, p.Day, p.Hour, p.Minute, p.Second,
		p.Millisecond*int(time.Millisecond), loc)
}

// Date returns the local calendar date as a YYYY-MM-DD string.
func (p Projection) Date() string {
	return time.Date(p.Year, p.Month, p.Day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}

// DayOfWeek returns the local weekday of instant in zone.
func DayOfWeek(instant Instant, zone string) (time.Weekday, error) {
	p, err := Project(instant, zone)
	if err != nil {
		return 0, err
	}
	return p.Weekday, nil
}
