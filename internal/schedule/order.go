package schedule

import (
	"cmp"
	"slices"

	"agendacal/internal/model"
)

// Classify sets the all-day/multi-day flags of ev relative to w. Multi-day is
// checked first, so an event touching a boundary while also extending past
// the window is multi-day only.
func Classify(ev *model.CalendarEvent, w model.DayWindow) {
	ev.IsMultiDay = ev.StartMS < w.Start || ev.EndMS > w.End
	ev.IsAllDay = !ev.IsMultiDay && (ev.StartMS == w.Start || ev.EndMS == w.End)
}

// Compare orders flagged (all-day/multi-day) events before timed ones, then
// by start, then by duration. Equal results are left to the stable sort.
func Compare(a, b *model.CalendarEvent) int {
	if af, bf := a.Flagged(), b.Flagged(); af != bf {
		if af {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.StartMS, b.StartMS); c != 0 {
		return c
	}
	return cmp.Compare(a.DurationMS(), b.DurationMS())
}

// Sort orders events in place with Compare. It must stay stable: identical
// inputs have to render identically across passes.
func Sort(events []*model.CalendarEvent) {
	slices.SortStableFunc(events, Compare)
}
