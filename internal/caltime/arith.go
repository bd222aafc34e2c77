package caltime

import (
	"time"
)

// AddTime adds amount units to instant. Year and month arithmetic clamps the
// day to the length of the target month; week and day arithmetic moves the
// local calendar date and keeps the wall time; hour and finer units add
// elapsed time.
func AddTime(instant Instant, amount int, unit Unit, zone string) (Instant, error) {
	if err := unit.check(); err != nil {
		return 0, err
	}
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, err
	}
	return FromTime(addTime(instant.In(loc), amount, unit)), nil
}

func addTime(t time.Time, amount int, unit Unit) time.Time {
	switch unit {
	case Year:
		return addMonths(t, amount*12)
	case Month:
		return addMonths(t, amount)
	case Week:
		return shiftDate(t, amount*7)
	case Day:
		return shiftDate(t, amount)
	case Hour:
		return t.Add(time.Duration(amount) * time.Hour)
	case Minute:
		return t.Add(time.Duration(amount) * time.Minute)
	case Second:
		return t.Add(time.Duration(amount) * time.Second)
	default:
		return t.Add(time.Duration(amount) * time.Millisecond)
	}
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return wallClock(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// shiftDate moves t by days local calendar days, keeping the wall time.
func shiftDate(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	return wallClock(y, m, d+days, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOf truncates instant to the beginning of unit in zone. Weeks start on
// Monday; see StartOfWeek for other first weekdays.
func StartOf(instant Instant, unit Unit, zone string) (Instant, error) {
	return StartOfWeekday(instant, unit, zone, time.Monday)
}

// EndOf returns the last millisecond of unit containing instant in zone.
// EndOf(Day) is 23:59:59.999 local time.
func EndOf(instant Instant, unit Unit, zone string) (Instant, error) {
	return EndOfWeekday(instant, unit, zone, time.Monday)
}

// StartOfWeek is StartOf(Week) with a configurable first weekday.
func StartOfWeek(instant Instant, zone string, weekStart time.Weekday) (Instant, error) {
	return StartOfWeekday(instant, Week, zone, weekStart)
}

// EndOfWeek is EndOf(Week) with a configurable first weekday.
func EndOfWeek(instant Instant, zone string, weekStart time.Weekday) (Instant, error) {
	return EndOfWeekday(instant, Week, zone, weekStart)
}

// StartOfWeekday is StartOf with an explicit first weekday for Week.
func StartOfWeekday(instant Instant, unit Unit, zone string, weekStart time.Weekday) (Instant, error) {
	if err := unit.check(); err != nil {
		return 0, err
	}
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, err
	}
	return FromTime(startOf(instant.In(loc), unit, weekStart)), nil
}

// EndOfWeekday is EndOf with an explicit first weekday for Week.
func EndOfWeekday(instant Instant, unit Unit, zone string, weekStart time.Weekday) (Instant, error) {
	if err := unit.check(); err != nil {
		return 0, err
	}
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, err
	}
	return FromTime(endOf(instant.In(loc), unit, weekStart)), nil
}

func startOf(t time.Time, unit Unit, weekStart time.Weekday) time.Time {
	loc := t.Location()
	y, m, d := t.Date()
	switch unit {
	case Year:
		return LocalMidnight(y, time.January, 1, loc)
	case Month:
		return LocalMidnight(y, m, 1, loc)
	case Week:
		back := (int(t.Weekday()) - int(weekStart) + 7) % 7
		return LocalMidnight(y, m, d-back, loc)
	case Day:
		return LocalMidnight(y, m, d, loc)
	case Hour:
		// Subtract elapsed fields instead of rebuilding with time.Date so the
		// repeated hour of a DST fall-back keeps its own offset.
		return t.Add(-(time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())))
	case Minute:
		return t.Add(-(time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())))
	case Second:
		return t.Add(-time.Duration(t.Nanosecond()))
	default:
		return t.Truncate(time.Millisecond)
	}
}

func endOf(t time.Time, unit Unit, weekStart time.Weekday) time.Time {
	switch unit {
	case Hour, Minute, Second:
		// Sub-day units never straddle an offset change at their own
		// granularity, so elapsed arithmetic is exact.
		return startOf(t, unit, weekStart).Add(unitDuration(unit) - time.Millisecond)
	case Millisecond:
		return t.Truncate(time.Millisecond)
	}
	y, m, d := startOf(t, unit, weekStart).Date()
	switch unit {
	case Year:
		y++
	case Month:
		m++
	case Week:
		d += 7
	default:
		d++
	}
	return LocalMidnight(y, m, d, t.Location()).Add(-time.Millisecond)
}

func unitDuration(u Unit) time.Duration {
	switch u {
	case Hour:
		return time.Hour
	case Minute:
		return time.Minute
	case Second:
		return time.Second
	default:
		return time.Millisecond
	}
}

// DayWindowFor returns the first and last millisecond of the local day that
// contains instant.
func DayWindowFor(instant Instant, zone string) (Instant, Instant, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, 0, err
	}
	t := instant.In(loc)
	return FromTime(startOf(t, Day, time.Monday)), FromTime(endOf(t, Day, time.Monday)), nil
}

// DayCountBetween returns the signed number of local calendar-day boundaries
// from a to b. With includeStartDay the magnitude grows by one in the
// direction of the sign; a zero count counts as forward.
func DayCountBetween(a, b Instant, zone string, includeStartDay bool) (int, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, err
	}
	n := civilDay(b.In(loc)) - civilDay(a.In(loc))
	if includeStartDay {
		if n >= 0 {
			n++
		} else {
			n--
		}
	}
	return n, nil
}

// civilDay numbers local calendar dates consecutively, independent of the
// length of any particular day.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
