package caltime

import "time"

// LocalMidnight returns the first instant of the local date y-m-d in loc.
// Where a DST change skips midnight, that is the moment of the change.
// Out-of-range days and months are normalized like time.Date.
func LocalMidnight(y int, m time.Month, d int, loc *time.Location) time.Time {
	return wallClock(y, m, d, 0, 0, 0, 0, loc)
}

// wallClock is time.Date, except that a wall time skipped by a DST gap is
// moved forward by the size of the gap instead of falling back into the
// previous calendar day.
func wallClock(y int, m time.Month, d, hh, mm, ss, ns int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, hh, mm, ss, ns, loc)
	want := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if civilDay(t) >= civilDay(want) {
		return t
	}
	_, end := t.ZoneBounds()
	if end.IsZero() {
		return t
	}
	_, before := t.Zone()
	_, after := end.Zone()
	return t.Add(time.Duration(after-before) * time.Second)
}
