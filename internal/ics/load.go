package ics

import (
	"context"
	"errors"
	"time"

	"agendacal/internal/caltime"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

// LoadAll fetches, parses and expands every source. A source that fails to
// fetch or parse is logged and reported; the others still contribute.
func LoadAll(ctx context.Context, f *Fetcher, sources []Source, cfg ExpandConfig) (ExpandResult, []error) {
	results, errs := f.FetchAll(ctx, sources)

	parsed := make([]ParsedEvent, 0)
	for _, res := range results {
		events, err := ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, events...)
	}

	out, err := ExpandOccurrences(parsed, cfg)
	if err != nil {
		errs = append(errs, err)
	}
	return out, errs
}

// LoaderConfig sets the range a Loader expands, in whole local days around
// the current day.
type LoaderConfig struct {
	Zone         string
	BackfillDays int
	HorizonDays  int
	// MaxOccurrencesPerEvent is passed through to ExpandConfig.
	MaxOccurrencesPerEvent int
	Clock                  func() time.Time
}

// NewLoader returns a function that loads the current raw events of all
// sources. It only fails when every source failed.
func NewLoader(f *Fetcher, sources []Source, cfg LoaderConfig) func(context.Context) ([]model.RawEvent, error) {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return func(ctx context.Context) ([]model.RawEvent, error) {
		if len(sources) == 0 {
			return []model.RawEvent{}, nil
		}
		loc, err := caltime.LoadZone(cfg.Zone)
		if err != nil {
			return nil, err
		}

		now := cfg.Clock().In(loc)
		y, m, d := now.Date()

		res, errs := LoadAll(ctx, f, sources, ExpandConfig{
			DisplayLocation:        loc,
			RangeStart:             caltime.LocalMidnight(y, m, d-cfg.BackfillDays, loc),
			RangeEnd:               caltime.LocalMidnight(y, m, d+cfg.HorizonDays+1, loc).Add(-time.Millisecond),
			MaxOccurrencesPerEvent: cfg.MaxOccurrencesPerEvent,
		})
		if len(errs) > 0 {
			appLog.Warn("ics load completed with errors", "errors", len(errs), "sources", len(sources))
		}
		if len(errs) >= len(sources) && len(res.Events) == 0 {
			return nil, errors.Join(errs...)
		}
		return res.Events, nil
	}
}
