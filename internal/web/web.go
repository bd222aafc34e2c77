package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"agendacal/internal/agenda"
	"agendacal/internal/caltime"
	"agendacal/internal/config"
	appLog "agendacal/internal/log"
	"agendacal/internal/metrics"
	"agendacal/internal/model"
	"agendacal/internal/schedule"
)

const maxBodyBytes = 4 << 20

// Server exposes the scheduler and the refreshed agenda over HTTP.
type Server struct {
	cfg       *config.Config
	mux       *http.ServeMux
	metrics   *metrics.Metrics
	refresher *agenda.Refresher
	clock     func() time.Time
}

type Option func(*Server)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRefresher backs /api/agenda, /api/events and /api/refresh with r.
func WithRefresher(r *agenda.Refresher) Option {
	return func(s *Server) { s.refresher = r }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Server) { s.clock = clock }
}

func NewServer(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:   cfg,
		mux:   http.NewServeMux(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the mux, wrapped with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.handle("POST /api/schedule", s.handleSchedule)
	s.handle("GET /api/agenda", s.handleAgenda)
	s.handle("GET /api/events", s.handleEvents)
	s.handle("POST /api/refresh", s.handleRefresh)
}

// handle registers h and records its latency and status under pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.ObserveRequest(pattern, rec.status, time.Since(began))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects everything except /health and /metrics.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="agendacal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// scheduleRequest is the body of POST /api/schedule. Every field except
// Events is optional and defaults to the server config.
type scheduleRequest struct {
	// Events are decoded one by one so a bad record is rejected on its own.
	Events []json.RawMessage `json:"events"`

	Zone   string `json:"zone"`
	Locale string `json:"locale"`

	// Date picks the day ("2024-03-10", "tomorrow"). DayStart/DayEnd give
	// the window explicitly and win over Date.
	Date     string           `json:"date"`
	DayStart caltime.Instant  `json:"dayStart"`
	DayEnd   caltime.Instant  `json:"dayEnd"`
	Now      *caltime.Instant `json:"now"`

	TimeFormat string `json:"timeFormat"`
	DateFormat string `json:"dateFormat"`

	// Text adds plain-text lines for each bucket.
	Text bool `json:"text"`
}

type scheduleResponse struct {
	schedule.Result
	Lines *textLines `json:"lines,omitempty"`
}

type textLines struct {
	Before []string `json:"before"`
	After  []string `json:"after"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	opts := schedule.Options{
		Zone:       firstNonEmpty(req.Zone, s.cfg.Timezone),
		Locale:     firstNonEmpty(req.Locale, s.cfg.Locale),
		DayStart:   req.DayStart,
		DayEnd:     req.DayEnd,
		Now:        caltime.FromTime(s.clock()),
		TimeLayout: firstNonEmpty(req.TimeFormat, s.cfg.TimeFormat),
		DateLayout: firstNonEmpty(req.DateFormat, s.cfg.DateFormat),
	}
	if req.Now != nil {
		opts.Now = *req.Now
	}
	if req.Date != "" && req.DayStart == 0 && req.DayEnd == 0 {
		day, err := agenda.ParseDate(req.Date, opts.Zone, opts.Now, s.cfg.FirstWeekday())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if opts.DayStart, opts.DayEnd, err = caltime.DayWindowFor(day, opts.Zone); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	began := time.Now()
	res, err := schedule.NormalizeAndScheduleBatch(req.Events, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.ObserveSchedule(res.Buckets, len(res.Rejected), time.Since(began))

	resp := scheduleResponse{Result: res}
	if req.Text {
		before, after, err := schedule.RenderBuckets(schedule.TextRenderer{}, res.Buckets)
		if err != nil {
			appLog.Error("api schedule: render failed", err)
			writeError(w, http.StatusInternalServerError, "failed to render events")
			return
		}
		resp.Lines = &textLines{Before: before, After: after}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAgenda builds the agenda from the latest loaded events.
//
// GET /api/agenda?date=tomorrow&days=3
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := caltime.FromTime(s.clock())

	from, span, err := agenda.ParseSpan(q.Get("date"), s.cfg.Timezone, now, s.cfg.FirstWeekday())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if span == 0 {
		span = s.cfg.HorizonDays
	}
	days := parseIntDefault(q.Get("days"), span)

	var events []model.RawEvent
	if snap, ok := s.snapshot(); ok {
		events = snap.Events
	}

	began := time.Now()
	ag, err := agenda.Build(events, s.agendaOptions(from, days, now))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var all model.Buckets
	for _, d := range ag.Days {
		all.Before = append(all.Before, d.Before...)
		all.After = append(all.After, d.After...)
	}
	s.metrics.ObserveSchedule(all, len(ag.Rejected), time.Since(began))
	writeJSON(w, http.StatusOK, ag)
}

func (s *Server) agendaOptions(from caltime.Instant, days int, now caltime.Instant) agenda.Options {
	return agenda.Options{
		Zone:       s.cfg.Timezone,
		Locale:     s.cfg.Locale,
		From:       from,
		Days:       days,
		Now:        now,
		TimeLayout: s.cfg.TimeFormat,
		DateLayout: s.cfg.DateFormat,
		HideAllDay: !s.cfg.ShowAllDay,
	}
}

type eventsResponse struct {
	Events    []model.RawEvent `json:"events"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
	LoadError string           `json:"load_error,omitempty"`
	Zone      string           `json:"zone"`
	WeekStart string           `json:"week_start"`
}

// handleEvents returns the raw events of the last refresh.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	resp := eventsResponse{
		Events:    []model.RawEvent{},
		Zone:      s.cfg.Timezone,
		WeekStart: s.cfg.WeekStart,
	}
	if snap, ok := s.snapshot(); ok {
		resp.Events = snap.Events
		resp.UpdatedAt = &snap.UpdatedAt
		resp.LoadError = snap.LoadError
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "no calendar sources configured")
		return
	}
	snap, err := s.refresher.Refresh(r.Context())
	if err != nil && snap.UpdatedAt.IsZero() {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) snapshot() (agenda.Snapshot, bool) {
	if s.refresher == nil {
		return agenda.Snapshot{}, false
	}
	return s.refresher.Snapshot()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
