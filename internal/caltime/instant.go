package caltime

import "time"

// Instant is an absolute point in time in milliseconds since the Unix epoch.
type Instant int64

// FromTime truncates t to millisecond precision.
func FromTime(t time.Time) Instant {
	return Instant(t.UnixMilli())
}

// Time returns the instant as a UTC time.Time.
func (i Instant) Time() time.Time {
	return time.UnixMilli(int64(i)).UTC()
}

// In returns the instant as a time.Time in loc.
func (i Instant) In(loc *time.Location) time.Time {
	return time.UnixMilli(int64(i)).In(loc)
}

func (i Instant) String() string {
	return i.Time().Format("2006-01-02T15:04:05.000Z07:00")
}
