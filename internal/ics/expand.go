package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"agendacal/internal/caltime"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation anchors all-day occurrences and labels the output.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the expanded records plus the UIDs whose expansion hit
// the cap.
type ExpandResult struct {
	Events          []model.RawEvent
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed VEVENTs into concrete raw event records
// within the configured range. It handles single events, RRULE recurrences,
// EXDATE exclusions and RECURRENCE-ID overrides.
//
// All-day occurrences start at local midnight in DisplayLocation and end at
// the last millisecond of their final day, so a one-day all-day event
// coincides exactly with that day's window.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uids := make([]string, 0)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]occurrence, 0)
	// Iterate in input order so that the output is deterministic.
	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			out = append(out, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences",
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].start.Before(out[j].start)
	})
	result.Events = make([]model.RawEvent, len(out))
	for i, o := range out {
		result.Events[i] = o.event
	}
	return result, nil
}

type occurrence struct {
	start time.Time
	event model.RawEvent
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []occurrence {
	if o, ok := findOverride(ev, overrides, ev.Start); ok {
		ev = o
	}
	start, end := occurrenceSpan(ev, ev.Start, ev.End, cfg.DisplayLocation)
	if !rangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []occurrence{{start: start, event: makeRawEvent(ev, ev.UID, start, end)}}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// All-day placeholders live in UTC; widen by a day so that occurrences
	// near the range edges survive re-anchoring in the display zone.
	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	if ev.AllDay {
		rangeStart = rangeStart.AddDate(0, 0, -1)
		rangeEnd = rangeEnd.AddDate(0, 0, 1)
	}
	// Include occurrences that started before the range but are still running.
	rangeStart = rangeStart.Add(-ev.End.Sub(ev.Start))

	occTimes := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]occurrence, 0, len(occTimes))
	dur := ev.End.Sub(ev.Start)
	for _, occStart := range occTimes {
		key := ev.UID + "/" + occStart.UTC().Format("20060102T150405Z")
		base, occEnd := ev, occStart.Add(dur)
		if o, ok := findOverride(ev, overrides, occStart); ok {
			base, occStart, occEnd = o, o.Start, o.End
		}
		start, end := occurrenceSpan(base, occStart, occEnd, cfg.DisplayLocation)
		if !rangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, occurrence{start: start, event: makeRawEvent(base, key, start, end)})
	}
	return out, hitCap
}

// findOverride finds the override whose RECURRENCE-ID matches occStart.
// All-day overrides match on the calendar date.
func findOverride(base ParsedEvent, overrides []ParsedEvent, occStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if base.AllDay {
			ry, rm, rd := ov.Recurrence.Date()
			oy, om, od := occStart.Date()
			if ry == oy && rm == om && rd == od {
				return ov, true
			}
			continue
		}
		if ov.Recurrence.Equal(occStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// occurrenceSpan maps an occurrence to absolute start/end times. All-day
// spans are re-anchored on the calendar dates in loc and get an inclusive
// end (23:59:59.999 of the last day).
func occurrenceSpan(ev ParsedEvent, start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	if !ev.AllDay {
		return start.In(loc), end.In(loc)
	}
	days := civilDays(start, end)
	if days < 1 {
		days = 1
	}
	y, m, d := start.Date()
	localStart := caltime.LocalMidnight(y, m, d, loc)
	localEnd := caltime.LocalMidnight(y, m, d+days, loc).Add(-time.Millisecond)
	return localStart, localEnd
}

func civilDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func makeRawEvent(ev ParsedEvent, key string, start, end time.Time) model.RawEvent {
	return model.RawEvent{
		ID:          key,
		CalendarID:  ev.Source.ID,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       model.FromTime(start),
		End:         model.FromTime(end),
		Color:       ev.Source.Color,
	}
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
