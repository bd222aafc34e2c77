package schedule

import (
	"errors"
	"fmt"

	"agendacal/internal/caltime"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

const (
	DefaultTimeLayout = "HH:mm"
	DefaultDateLayout = "dddd, MMMM D"
)

// Options is the context of one NormalizeAndSchedule call.
type Options struct {
	// Zone is the IANA display zone. Required.
	Zone string
	// Locale selects month/weekday names for labels, e.g. "en-US".
	Locale string

	// DayStart / DayEnd bound the day window. When both are zero the window
	// is the local day containing Now.
	DayStart caltime.Instant
	DayEnd   caltime.Instant

	// Now is supplied by the host clock so results are reproducible.
	Now caltime.Instant

	// TimeLayout / DateLayout are caltime.Format patterns for the labels.
	// Empty values use DefaultTimeLayout / DefaultDateLayout.
	TimeLayout string
	DateLayout string
}

// Result is the output of NormalizeAndSchedule. Buckets is embedded so the
// JSON shape is {"before": [...], "after": [...], "rejected": [...]}.
type Result struct {
	model.Buckets

	Rejected []model.Rejection `json:"rejected"`
	Window   model.DayWindow   `json:"window"`
	Zone     string            `json:"zone"`
	Locale   string            `json:"locale"`
	Now      caltime.Instant   `json:"now"`
}

// NormalizeAndSchedule resolves raw records in opts.Zone, schedules them into
// the day window and reports malformed records in Result.Rejected.
//
// Only an unusable context fails the whole call: an invalid zone, an invalid
// label layout, or a day window that is empty or longer than one local day.
func NormalizeAndSchedule(raws []model.RawEvent, opts Options) (Result, error) {
	if err := opts.normalize(); err != nil {
		return Result{}, err
	}
	w := model.DayWindow{Start: opts.DayStart, End: opts.DayEnd}

	res := Result{
		Rejected: make([]model.Rejection, 0),
		Window:   w,
		Zone:     opts.Zone,
		Locale:   caltime.LocaleName(opts.Locale),
		Now:      opts.Now,
	}

	events := make([]*model.CalendarEvent, 0, len(raws))
	for i, raw := range raws {
		raw.EnsureID()
		ev, err := Normalize(raw, i, opts)
		if err != nil {
			var merr *MalformedEventError
			if !errors.As(err, &merr) {
				return Result{}, err
			}
			appLog.Debug("schedule: rejected event", "id", merr.ID, "index", i, "reason", merr.Reason)
			res.Rejected = append(res.Rejected, model.Rejection{
				ID:     merr.ID,
				Index:  i,
				Reason: merr.Detail(),
			})
			continue
		}
		events = append(events, ev)
	}

	res.Buckets = Schedule(events, w, opts.Now)
	return res, nil
}

func (o *Options) normalize() error {
	if _, err := caltime.LoadZone(o.Zone); err != nil {
		return err
	}
	if o.TimeLayout == "" {
		o.TimeLayout = DefaultTimeLayout
	}
	if o.DateLayout == "" {
		o.DateLayout = DefaultDateLayout
	}
	if err := caltime.ValidatePattern(o.TimeLayout); err != nil {
		return err
	}
	if err := caltime.ValidatePattern(o.DateLayout); err != nil {
		return err
	}

	if o.DayStart == 0 && o.DayEnd == 0 {
		start, end, err := caltime.DayWindowFor(o.Now, o.Zone)
		if err != nil {
			return err
		}
		o.DayStart, o.DayEnd = start, end
	}
	return ValidateWindow(model.DayWindow{Start: o.DayStart, End: o.DayEnd}, o.Zone)
}

// ValidateWindow checks that w is non-empty and stays within one local
// calendar day in zone.
func ValidateWindow(w model.DayWindow, zone string) error {
	if err := w.Validate(); err != nil {
		return err
	}
	days, err := caltime.DayCountBetween(w.Start, w.End, zone, false)
	if err != nil {
		return err
	}
	if days != 0 {
		return fmt.Errorf("%w: start=%s end=%s zone=%s", ErrWindowTooLong, w.Start, w.End, zone)
	}
	return nil
}

// Normalize resolves a single raw record into a CalendarEvent with its
// projections, duration and labels. Record-level problems are returned as
// *MalformedEventError; anything else means the options are unusable.
func Normalize(raw model.RawEvent, index int, opts Options) (*model.CalendarEvent, error) {
	malformed := func(reason string, err error) error {
		return &MalformedEventError{ID: raw.ID, Index: index, Reason: reason, Err: err}
	}

	start, err := raw.Start.Resolve(opts.Zone)
	if err != nil {
		return nil, malformed("invalid start", err)
	}
	end, err := raw.End.Resolve(opts.Zone)
	if err != nil {
		return nil, malformed("invalid end", err)
	}
	if start > end {
		return nil, malformed("invalid range", ErrStartAfterEnd)
	}

	ev := &model.CalendarEvent{
		ID:          raw.ID,
		CalendarID:  raw.CalendarID,
		Title:       raw.Title,
		Description: raw.Description,
		Location:    raw.Location,
		StartMS:     start,
		EndMS:       end,
		Color:       raw.Color,
		BgColor:     raw.BgColor,
		BorderColor: raw.BorderColor,
		DragBgColor: raw.DragBgColor,
		Duration:    caltime.SplitDuration(int64(end - start)),
	}
	if err := describe(ev, opts); err != nil {
		return nil, err
	}
	return ev, nil
}

func describe(ev *model.CalendarEvent, opts Options) error {
	var err error
	if ev.Start, err = caltime.Project(ev.StartMS, opts.Zone); err != nil {
		return err
	}
	if ev.End, err = caltime.Project(ev.EndMS, opts.Zone); err != nil {
		return err
	}
	if ev.StartLabel, err = caltime.Format(ev.StartMS, opts.Zone, opts.TimeLayout, opts.Locale); err != nil {
		return err
	}
	if ev.EndLabel, err = caltime.Format(ev.EndMS, opts.Zone, opts.TimeLayout, opts.Locale); err != nil {
		return err
	}
	ev.DateLabel, err = caltime.Format(ev.StartMS, opts.Zone, opts.DateLayout, opts.Locale)
	return err
}
