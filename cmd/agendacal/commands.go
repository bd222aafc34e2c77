package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"agendacal/internal/agenda"
	"agendacal/internal/caltime"
	"agendacal/internal/config"
	"agendacal/internal/ics"
	appLog "agendacal/internal/log"
	"agendacal/internal/metrics"
	"agendacal/internal/model"
	"agendacal/internal/schedule"
	"agendacal/internal/web"
)

const backfillDays = 1

type ServeCmd struct {
	Listen string `help:"HTTP listen address. Overrides the config file." env:"AGENDACAL_LISTEN"`
}

func (c *ServeCmd) Run(app *appContext) error {
	cfg := app.cfg
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}

	appLog.Info("agendacal starting",
		"version", version,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"locale", cfg.Locale,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"ics_count", len(cfg.ICS),
	)

	m := metrics.New()
	opts := []web.Option{web.WithMetrics(m)}

	if len(cfg.ICS) > 0 {
		fetcher := ics.NewFetcher(cfg.CacheDir, ics.WithObserver(func(src ics.Source, o ics.Outcome) {
			m.ObserveFetch(src.ID, string(o))
		}))
		r, err := agenda.NewRefresher(agenda.RefresherConfig{
			Spec:    cfg.RefreshCron,
			Options: agendaOptions(cfg, 0, cfg.HorizonDays),
			Load:    feedLoader(cfg, fetcher),
			OnRefresh: func(s agenda.Snapshot, _ time.Duration, err error) {
				m.ObserveRefresh(s.UpdatedAt, err)
			},
		})
		if err != nil {
			return err
		}
		if err := r.Start(app.ctx); err != nil {
			return err
		}
		defer r.Stop()
		opts = append(opts, web.WithRefresher(r))
	} else {
		appLog.Warn("no ICS sources configured; only POST /api/schedule has data", "config_path", app.configPath)
	}

	return web.NewServer(cfg, opts...).Run(app.ctx)
}

type AgendaCmd struct {
	Date string `help:"First day: YYYY-MM-DD, 'today', 'tomorrow', 'next friday', 'this week', ..." default:"today"`
	Days int    `help:"Number of days. Defaults to 7 for a week, otherwise horizon_days from the config."`
	File string `help:"Read events from a JSON file instead of the configured ICS feeds." type:"existingfile"`
	JSON bool   `help:"Print JSON instead of text."`
}

func (c *AgendaCmd) Run(app *appContext) error {
	cfg := app.cfg
	now := caltime.FromTime(time.Now())

	from, span, err := agenda.ParseSpan(c.Date, cfg.Timezone, now, cfg.FirstWeekday())
	if err != nil {
		return err
	}
	days := c.Days
	if days <= 0 {
		days = span
	}
	if days <= 0 {
		days = cfg.HorizonDays
	}

	var (
		events    []model.RawEvent
		positions []int
		rejected  []model.Rejection
	)
	if c.File != "" {
		var records []json.RawMessage
		if records, err = readEventsFile(c.File); err != nil {
			return err
		}
		events, positions, rejected = schedule.DecodeBatch(records)
	} else if events, err = feedLoader(cfg, ics.NewFetcher(cfg.CacheDir))(app.ctx); err != nil {
		return err
	}

	opts := agendaOptions(cfg, from, days)
	opts.Now = now
	ag, err := agenda.Build(events, opts)
	if err != nil {
		return err
	}
	ag.Rejected = schedule.MergeRejections(rejected, positions, ag.Rejected)

	if c.JSON {
		return writeJSON(app.out, ag)
	}
	for _, day := range ag.Days {
		fmt.Fprintf(app.out, "== %s ==\n", day.Label)
		if err := printBuckets(app.out, day.Buckets); err != nil {
			return err
		}
	}
	printRejections(app.out, ag.Rejected)
	return nil
}

type ScheduleCmd struct {
	File string `arg:"" help:"JSON file with an array of events, or '-' for stdin."`
	Date string `help:"Day to schedule: YYYY-MM-DD, 'today', 'tomorrow', ..." default:"today"`
	Now  string `help:"Override the current time (RFC 3339 or local YYYY-MM-DDTHH:mm)."`
	JSON bool   `help:"Print JSON instead of text."`
}

func (c *ScheduleCmd) Run(app *appContext) error {
	cfg := app.cfg

	now := caltime.FromTime(time.Now())
	if c.Now != "" {
		ts := model.Text(c.Now)
		var err error
		if now, err = ts.Resolve(cfg.Timezone); err != nil {
			return fmt.Errorf("--now: %w", err)
		}
	}

	day, err := agenda.ParseDate(c.Date, cfg.Timezone, now, cfg.FirstWeekday())
	if err != nil {
		return err
	}
	start, end, err := caltime.DayWindowFor(day, cfg.Timezone)
	if err != nil {
		return err
	}

	var records []json.RawMessage
	if c.File == "-" {
		records, err = decodeEvents(os.Stdin)
	} else {
		records, err = readEventsFile(c.File)
	}
	if err != nil {
		return err
	}

	res, err := schedule.NormalizeAndScheduleBatch(records, schedule.Options{
		Zone:       cfg.Timezone,
		Locale:     cfg.Locale,
		DayStart:   start,
		DayEnd:     end,
		Now:        now,
		TimeLayout: cfg.TimeFormat,
		DateLayout: cfg.DateFormat,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		return writeJSON(app.out, res)
	}
	if err := printBuckets(app.out, res.Buckets); err != nil {
		return err
	}
	printRejections(app.out, res.Rejected)
	return nil
}

func agendaOptions(cfg *config.Config, from caltime.Instant, days int) agenda.Options {
	return agenda.Options{
		Zone:       cfg.Timezone,
		Locale:     cfg.Locale,
		From:       from,
		Days:       days,
		TimeLayout: cfg.TimeFormat,
		DateLayout: cfg.DateFormat,
		HideAllDay: !cfg.ShowAllDay,
	}
}

func feedLoader(cfg *config.Config, f *ics.Fetcher) agenda.Loader {
	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, s := range cfg.ICS {
		if s.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: s.ID, Name: s.Name, URL: s.URL, Color: s.Color})
	}
	return ics.NewLoader(f, sources, ics.LoaderConfig{
		Zone:         cfg.Timezone,
		BackfillDays: backfillDays,
		HorizonDays:  cfg.HorizonDays,
	})
}

func readEventsFile(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeEvents(f)
}

// decodeEvents accepts either a bare array or an {"events": [...]} object.
// Records stay undecoded so one bad record cannot fail the batch.
func decodeEvents(r io.Reader) ([]json.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	var events []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		return events, nil
	}
	var wrapped struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return wrapped.Events, nil
}

func printBuckets(w io.Writer, b model.Buckets) error {
	before, after, err := schedule.RenderBuckets(schedule.TextRenderer{}, b)
	if err != nil {
		return err
	}
	for _, line := range before {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if len(before) > 0 && len(after) > 0 {
		fmt.Fprintln(w, "  -- now --")
	}
	for _, line := range after {
		fmt.Fprintf(w, "  %s\n", line)
	}
	return nil
}

func printRejections(w io.Writer, rejected []model.Rejection) {
	for _, r := range rejected {
		fmt.Fprintf(w, "skipped #%d %s: %s\n", r.Index, r.ID, r.Reason)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
