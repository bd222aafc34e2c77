package caltime

// DurationParts is a numeric breakdown of a span. Localized phrasing such as
// "1 hr" belongs to the rendering layer.
type DurationParts struct {
	Hours        int64 `json:"hours"`
	Minutes      int64 `json:"minutes"`
	Seconds      int64 `json:"seconds"`
	Milliseconds int64 `json:"milliseconds"`
}

// SplitDuration breaks ms into hours, minutes, seconds and milliseconds.
// Negative spans yield negative components.
func SplitDuration(ms int64) DurationParts {
	sign := int64(1)
	if ms < 0 {
		sign, ms = -1, -ms
	}
	return DurationParts{
		Hours:        sign * (ms / 3_600_000),
		Minutes:      sign * (ms / 60_000 % 60),
		Seconds:      sign * (ms / 1000 % 60),
		Milliseconds: sign * (ms % 1000),
	}
}
