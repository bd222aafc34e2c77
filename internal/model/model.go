package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"agendacal/internal/caltime"
)

// RawEvent is an event record as received from a feed or an API client,
// before any timestamp has been resolved.
type RawEvent struct {
	ID          string `json:"id"`
	CalendarID  string `json:"calendarId,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	Start Timestamp `json:"startMS"`
	End   Timestamp `json:"endMS"`

	Color       string `json:"color,omitempty"`
	BgColor     string `json:"bgColor,omitempty"`
	BorderColor string `json:"borderColor,omitempty"`
	DragBgColor string `json:"dragBgColor,omitempty"`
}

// EnsureID assigns a random identifier to records that arrived without one,
// so that rejections can always name the offending record.
func (r *RawEvent) EnsureID() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
}

// CalendarEvent is a resolved event ready for ordering and display.
//
// IsAllDay and IsMultiDay are relative to the day window of the most recent
// scheduling pass and are overwritten on every pass.
type CalendarEvent struct {
	ID          string `json:"id"`
	CalendarID  string `json:"calendarId,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	StartMS caltime.Instant `json:"startMS"`
	EndMS   caltime.Instant `json:"endMS"`

	Color       string `json:"color,omitempty"`
	BgColor     string `json:"bgColor,omitempty"`
	BorderColor string `json:"borderColor,omitempty"`
	DragBgColor string `json:"dragBgColor,omitempty"`

	IsAllDay   bool `json:"isAllDay"`
	IsMultiDay bool `json:"isMultiDay"`

	// Display data resolved by the scheduler in the requested zone/locale.
	Start      caltime.Projection    `json:"start"`
	End        caltime.Projection    `json:"end"`
	Duration   caltime.DurationParts `json:"duration"`
	StartLabel string                `json:"startLabel,omitempty"`
	EndLabel   string                `json:"endLabel,omitempty"`
	DateLabel  string                `json:"dateLabel,omitempty"`
}

// DurationMS is EndMS - StartMS.
func (e *CalendarEvent) DurationMS() int64 {
	return int64(e.EndMS - e.StartMS)
}

// Flagged reports whether the event belongs to the all-day/multi-day group.
func (e *CalendarEvent) Flagged() bool {
	return e.IsAllDay || e.IsMultiDay
}

// DayWindow is the inclusive [Start, End] span of one local calendar day.
type DayWindow struct {
	Start caltime.Instant `json:"start"`
	End   caltime.Instant `json:"end"`
}

var ErrEmptyWindow = errors.New("day window start must be before end")

func (w DayWindow) Validate() error {
	if w.Start >= w.End {
		return fmt.Errorf("%w: start=%s end=%s", ErrEmptyWindow, w.Start, w.End)
	}
	return nil
}

// Contains reports whether instant lies inside the window, bounds included.
func (w DayWindow) Contains(instant caltime.Instant) bool {
	return instant >= w.Start && instant <= w.End
}

// Buckets splits one day's ordered events around "now". Events are shared
// with the caller's collection, not copied.
type Buckets struct {
	Before []*CalendarEvent `json:"before"`
	After  []*CalendarEvent `json:"after"`
}

// All returns Before followed by After.
func (b Buckets) All() []*CalendarEvent {
	out := make([]*CalendarEvent, 0, len(b.Before)+len(b.After))
	out = append(out, b.Before...)
	return append(out, b.After...)
}

// Len is the number of events across both buckets.
func (b Buckets) Len() int {
	return len(b.Before) + len(b.After)
}

// Rejection names a record that could not be scheduled.
type Rejection struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}
