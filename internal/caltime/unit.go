package caltime

import (
	"strconv"
	"strings"
)

// Unit is a calendar granularity, ordered from coarsest to finest.
type Unit int

const (
	Year Unit = iota + 1
	Month
	Week
	Day
	Hour
	Minute
	Second
	Millisecond
)

var unitNames = map[Unit]string{
	Year:        "year",
	Month:       "month",
	Week:        "week",
	Day:         "day",
	Hour:        "hour",
	Minute:      "minute",
	Second:      "second",
	Millisecond: "millisecond",
}

// Short aliases are case sensitive ("M" is month, "m" is minute).
var unitAliases = map[string]Unit{
	"y":  Year,
	"M":  Month,
	"w":  Week,
	"d":  Day,
	"h":  Hour,
	"m":  Minute,
	"s":  Second,
	"ms": Millisecond,
}

func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return "unit(" + strconv.Itoa(int(u)) + ")"
}

func (u Unit) valid() bool {
	return u >= Year && u <= Millisecond
}

func (u Unit) check() error {
	if !u.valid() {
		return &InvalidUnitError{Unit: u.String()}
	}
	return nil
}

// ParseUnit accepts singular and plural unit names (case insensitive) and the
// short aliases y, M, w, d, h, m, s, ms.
func ParseUnit(s string) (Unit, error) {
	if u, ok := unitAliases[s]; ok {
		return u, nil
	}
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "s")
	for u, n := range unitNames {
		if n == name {
			return u, nil
		}
	}
	return 0, &InvalidUnitError{Unit: s}
}
