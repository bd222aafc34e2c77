package schedule

import (
	"fmt"
	"strings"

	"agendacal/internal/caltime"
	"agendacal/internal/model"
)

// Renderer turns one scheduled event into view markup. Each view variant
// (agenda list, timeline, column) supplies its own implementation.
type Renderer interface {
	Render(ev *model.CalendarEvent, p caltime.Projection) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ev *model.CalendarEvent, p caltime.Projection) (string, error)

func (f RendererFunc) Render(ev *model.CalendarEvent, p caltime.Projection) (string, error) {
	return f(ev, p)
}

// RenderBuckets renders both buckets in order, passing each event's start
// projection.
func RenderBuckets(r Renderer, b model.Buckets) (before, after []string, err error) {
	render := func(events []*model.CalendarEvent) ([]string, error) {
		out := make([]string, 0, len(events))
		for _, ev := range events {
			s, err := r.Render(ev, ev.Start)
			if err != nil {
				return nil, fmt.Errorf("render %q: %w", ev.ID, err)
			}
			out = append(out, s)
		}
		return out, nil
	}
	if before, err = render(b.Before); err != nil {
		return nil, nil, err
	}
	if after, err = render(b.After); err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// TextRenderer renders one plain-text line per event, used by the CLI.
type TextRenderer struct{}

func (TextRenderer) Render(ev *model.CalendarEvent, _ caltime.Projection) (string, error) {
	var b strings.Builder
	switch {
	case ev.IsMultiDay:
		b.WriteString("[multi-day] ")
	case ev.IsAllDay:
		b.WriteString("[all day]   ")
	default:
		fmt.Fprintf(&b, "%s-%s ", ev.StartLabel, ev.EndLabel)
	}
	b.WriteString(ev.Title)
	if ev.Location != "" {
		b.WriteString(" @ ")
		b.WriteString(ev.Location)
	}
	return b.String(), nil
}
