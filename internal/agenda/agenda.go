// Package agenda schedules a horizon of local days and keeps a periodically
// refreshed snapshot of it.
package agenda

import (
	"errors"
	"fmt"

	"agendacal/internal/caltime"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
	"agendacal/internal/schedule"
)

// MaxDays bounds the horizon of a single Build.
const MaxDays = 366

var ErrTooManyDays = errors.New("agenda: too many days")

// Options configures Build.
type Options struct {
	Zone   string
	Locale string

	// From is any instant inside the first day.
	From caltime.Instant
	// Days is the number of local days. Zero means one.
	Days int
	Now  caltime.Instant

	TimeLayout string
	DateLayout string

	// HideAllDay drops all-day events from the output.
	HideAllDay bool
}

// Day is the schedule of one local calendar day.
type Day struct {
	Date   string          `json:"date"`
	Label  string          `json:"label"`
	Window model.DayWindow `json:"window"`
	model.Buckets
}

// Agenda is the result of Build.
type Agenda struct {
	Zone     string            `json:"zone"`
	Locale   string            `json:"locale"`
	Now      caltime.Instant   `json:"now"`
	Days     []Day             `json:"days"`
	Rejected []model.Rejection `json:"rejected"`
}

// Build normalizes raws once and schedules every day of the horizon.
// Windows come from calendar arithmetic in opts.Zone, so days across a DST
// change are 23 or 25 hours long. An event spanning several days appears
// on each of them, classified against that day's window.
func Build(raws []model.RawEvent, opts Options) (Agenda, error) {
	if err := opts.normalize(); err != nil {
		return Agenda{}, err
	}

	sopts := schedule.Options{
		Zone:       opts.Zone,
		Locale:     opts.Locale,
		Now:        opts.Now,
		TimeLayout: opts.TimeLayout,
		DateLayout: opts.DateLayout,
	}

	out := Agenda{
		Zone:     opts.Zone,
		Locale:   caltime.LocaleName(opts.Locale),
		Now:      opts.Now,
		Days:     make([]Day, 0, opts.Days),
		Rejected: make([]model.Rejection, 0),
	}

	events := make([]*model.CalendarEvent, 0, len(raws))
	for i, raw := range raws {
		raw.EnsureID()
		ev, err := schedule.Normalize(raw, i, sopts)
		if err != nil {
			var merr *schedule.MalformedEventError
			if !errors.As(err, &merr) {
				return Agenda{}, err
			}
			appLog.Debug("agenda: rejected event", "id", merr.ID, "index", i, "reason", merr.Reason)
			out.Rejected = append(out.Rejected, model.Rejection{ID: merr.ID, Index: i, Reason: merr.Detail()})
			continue
		}
		events = append(events, ev)
	}

	first, err := caltime.StartOf(opts.From, caltime.Day, opts.Zone)
	if err != nil {
		return Agenda{}, err
	}
	for i := 0; i < opts.Days; i++ {
		dayStart, err := caltime.AddTime(first, i, caltime.Day, opts.Zone)
		if err != nil {
			return Agenda{}, err
		}
		day, err := buildDay(events, dayStart, opts)
		if err != nil {
			return Agenda{}, err
		}
		out.Days = append(out.Days, day)
	}
	return out, nil
}

func buildDay(events []*model.CalendarEvent, dayStart caltime.Instant, opts Options) (Day, error) {
	start, end, err := caltime.DayWindowFor(dayStart, opts.Zone)
	if err != nil {
		return Day{}, err
	}
	w := model.DayWindow{Start: start, End: end}

	p, err := caltime.Project(start, opts.Zone)
	if err != nil {
		return Day{}, err
	}
	label, err := caltime.Format(start, opts.Zone, opts.DateLayout, opts.Locale)
	if err != nil {
		return Day{}, err
	}

	// Flags depend on the window, so each day classifies its own copies.
	todays := make([]*model.CalendarEvent, 0)
	for _, ev := range events {
		if !schedule.Overlaps(ev, w) {
			continue
		}
		c := *ev
		todays = append(todays, &c)
	}

	b := schedule.Schedule(todays, w, opts.Now)
	if opts.HideAllDay {
		b.Before = dropAllDay(b.Before)
	}
	return Day{Date: p.Date(), Label: label, Window: w, Buckets: b}, nil
}

func dropAllDay(events []*model.CalendarEvent) []*model.CalendarEvent {
	kept := events[:0]
	for _, ev := range events {
		if ev.IsAllDay && !ev.IsMultiDay {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

func (o *Options) normalize() error {
	if _, err := caltime.LoadZone(o.Zone); err != nil {
		return err
	}
	if o.Days <= 0 {
		o.Days = 1
	}
	if o.Days > MaxDays {
		return fmt.Errorf("%w: %d > %d", ErrTooManyDays, o.Days, MaxDays)
	}
	if o.TimeLayout == "" {
		o.TimeLayout = schedule.DefaultTimeLayout
	}
	if o.DateLayout == "" {
		o.DateLayout = schedule.DefaultDateLayout
	}
	if err := caltime.ValidatePattern(o.TimeLayout); err != nil {
		return err
	}
	return caltime.ValidatePattern(o.DateLayout)
}
