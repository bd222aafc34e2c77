package agenda

import (
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"agendacal/internal/caltime"
)

var (
	parserOnce sync.Once
	parser     *when.Parser
)

func dateParser() *when.Parser {
	parserOnce.Do(func() {
		parser = when.New(nil)
		parser.Add(en.All...)
		parser.Add(common.All...)
	})
	return parser
}

// weekPhrases map to a week offset from the current week.
var weekPhrases = map[string]int{
	"week":          0,
	"this week":     0,
	"next week":     1,
	"last week":     -1,
	"previous week": -1,
}

// ParseDate reads a user-supplied day reference relative to now in zone.
// Empty text is now. Canonical local literals ("2024-03-10",
// "2024-03-10T08:30") are tried first, then week phrases ("this week",
// "next week") starting on weekStart, then English phrases such as
// "tomorrow" or "next friday".
func ParseDate(text, zone string, now caltime.Instant, weekStart time.Weekday) (caltime.Instant, error) {
	from, _, err := ParseSpan(text, zone, now, weekStart)
	return from, err
}

// ParseSpan is ParseDate that also reports how many days the reference
// covers: 7 for a week phrase, 0 when it names a single instant.
func ParseSpan(text, zone string, now caltime.Instant, weekStart time.Weekday) (caltime.Instant, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return now, 0, nil
	}
	if in, err := caltime.ParseLocalString(text, zone); err == nil {
		return in, 0, nil
	}

	if offset, ok := weekPhrases[strings.ToLower(strings.Join(strings.Fields(text), " "))]; ok {
		start, err := caltime.StartOfWeek(now, zone, weekStart)
		if err != nil {
			return 0, 0, err
		}
		start, err = caltime.AddTime(start, offset, caltime.Week, zone)
		if err != nil {
			return 0, 0, err
		}
		return start, 7, nil
	}

	loc, err := caltime.LoadZone(zone)
	if err != nil {
		return 0, 0, err
	}
	r, err := dateParser().Parse(text, now.In(loc))
	if err != nil {
		return 0, 0, &caltime.UnparsableTimeError{Text: text, Err: err}
	}
	if r == nil {
		return 0, 0, &caltime.UnparsableTimeError{Text: text}
	}
	return caltime.FromTime(r.Time), 0, nil
}
