package schedule

import (
	"agendacal/internal/caltime"
	"agendacal/internal/model"
)

// Schedule classifies, orders and buckets one day's events.
//
// An event lands in Before when it is all-day, multi-day or already ended
// (EndMS < now); everything else, including events in progress, lands in
// After. Both buckets keep the sorted order. The input slice is not
// reordered, but the events' flags are overwritten.
func Schedule(events []*model.CalendarEvent, w model.DayWindow, now caltime.Instant) model.Buckets {
	ordered := make([]*model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		Classify(ev, w)
		ordered = append(ordered, ev)
	}
	Sort(ordered)

	b := model.Buckets{
		Before: make([]*model.CalendarEvent, 0),
		After:  make([]*model.CalendarEvent, 0),
	}
	for _, ev := range ordered {
		if ev.Flagged() || ev.EndMS < now {
			b.Before = append(b.Before, ev)
		} else {
			b.After = append(b.After, ev)
		}
	}
	return b
}

// Overlaps reports whether ev intersects w. Events ending exactly at the
// window start only count when they are zero-length events at that instant.
func Overlaps(ev *model.CalendarEvent, w model.DayWindow) bool {
	if ev.StartMS > w.End {
		return false
	}
	return ev.EndMS > w.Start || (ev.StartMS == ev.EndMS && ev.StartMS == w.Start)
}
