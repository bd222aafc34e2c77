package agenda

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"agendacal/internal/caltime"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

// Loader produces the current raw event set, typically by fetching and
// expanding ICS feeds.
type Loader func(ctx context.Context) ([]model.RawEvent, error)

// Snapshot is the latest computed agenda plus the events it was built from.
type Snapshot struct {
	Agenda    Agenda           `json:"agenda"`
	Events    []model.RawEvent `json:"events"`
	UpdatedAt time.Time        `json:"updated_at"`
	// LoadError is set when the last load failed and Events are from an
	// earlier successful load.
	LoadError string `json:"load_error,omitempty"`
}

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	// Spec is a standard 5-field cron expression, e.g. "*/15 * * * *".
	Spec string
	// Options is the Build template. From and Now are set on every refresh.
	Options Options
	Load    Loader
	// Clock defaults to time.Now.
	Clock func() time.Time
	// OnRefresh, if set, is called after every refresh attempt.
	OnRefresh func(s Snapshot, took time.Duration, err error)
}

// Refresher recomputes the agenda on a cron schedule and on demand. The
// periodic tick moves "now" forward so ended events migrate to the Before
// bucket even when the underlying feeds did not change.
type Refresher struct {
	cfg  RefresherConfig
	cron *cron.Cron

	refreshMu sync.Mutex // serializes Refresh

	mu   sync.RWMutex
	snap *Snapshot
}

func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if cfg.Load == nil {
		return nil, errors.New("agenda: refresher needs a loader")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	loc, err := caltime.LoadZone(cfg.Options.Zone)
	if err != nil {
		return nil, err
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("agenda: invalid refresh schedule %q: %w", cfg.Spec, err)
	}
	return &Refresher{
		cfg:  cfg,
		cron: cron.New(cron.WithLocation(loc)),
	}, nil
}

// Refresh loads events and rebuilds the agenda. When loading fails but an
// earlier snapshot exists, the agenda is rebuilt from the earlier events and
// the load error is returned alongside the new snapshot.
func (r *Refresher) Refresh(ctx context.Context) (Snapshot, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	began := time.Now()
	now := caltime.FromTime(r.cfg.Clock())

	events, loadErr := r.cfg.Load(ctx)
	if loadErr != nil {
		prev, ok := r.Snapshot()
		if !ok {
			r.notify(Snapshot{}, began, loadErr)
			return Snapshot{}, loadErr
		}
		appLog.Error("agenda: load failed, reusing previous events", loadErr, "events", len(prev.Events))
		events = prev.Events
	}

	opts := r.cfg.Options
	opts.From, opts.Now = now, now
	ag, err := Build(events, opts)
	if err != nil {
		r.notify(Snapshot{}, began, err)
		return Snapshot{}, err
	}

	snap := Snapshot{Agenda: ag, Events: events, UpdatedAt: now.Time()}
	if loadErr != nil {
		snap.LoadError = loadErr.Error()
	}

	r.mu.Lock()
	r.snap = &snap
	r.mu.Unlock()

	r.notify(snap, began, loadErr)
	appLog.Info("agenda refreshed",
		"events", len(events),
		"days", len(ag.Days),
		"rejected", len(ag.Rejected),
		"took", time.Since(began),
	)
	return snap, loadErr
}

func (r *Refresher) notify(s Snapshot, began time.Time, err error) {
	if r.cfg.OnRefresh != nil {
		r.cfg.OnRefresh(s, time.Since(began), err)
	}
}

// Snapshot returns the latest snapshot, if any refresh has succeeded.
func (r *Refresher) Snapshot() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return Snapshot{}, false
	}
	return *r.snap, true
}

// Start runs one refresh immediately, then schedules the cron job. The
// scheduler stops when ctx is done or Stop is called.
func (r *Refresher) Start(ctx context.Context) error {
	if _, err := r.Refresh(ctx); err != nil {
		appLog.Error("agenda: initial refresh failed", err)
	}

	_, err := r.cron.AddFunc(r.cfg.Spec, func() {
		if _, err := r.Refresh(ctx); err != nil {
			appLog.Error("agenda: scheduled refresh failed", err)
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	appLog.Info("agenda refresher started", "schedule", r.cfg.Spec, "zone", r.cfg.Options.Zone)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}
