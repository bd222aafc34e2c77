package caltime

import "time"

// Ordering is the result of Compare.
type Ordering int

const (
	Before Ordering = -1
	Same   Ordering = 0
	After  Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "same"
	}
}

// Compare orders a and b after projecting both into zone and truncating to
// granularity. At Millisecond granularity distinct instants never compare
// Same.
func Compare(a, b Instant, zone string, granularity Unit) (Ordering, error) {
	if err := granularity.check(); err != nil {
		return Same, err
	}
	loc, err := LoadZone(zone)
	if err != nil {
		return Same, err
	}
	ta := startOf(a.In(loc), granularity, time.Monday)
	tb := startOf(b.In(loc), granularity, time.Monday)
	switch {
	case ta.Before(tb):
		return Before, nil
	case ta.After(tb):
		return After, nil
	default:
		return Same, nil
	}
}
