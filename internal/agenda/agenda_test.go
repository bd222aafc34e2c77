package agenda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/caltime"
	"agendacal/internal/model"
)

const denver = "America/Denver"

func local(t *testing.T, s string) caltime.Instant {
	t.Helper()
	in, err := caltime.ParseLocalString(s, denver)
	require.NoError(t, err)
	return in
}

func dstWeekend() []model.RawEvent {
	return []model.RawEvent{
		{ID: "conference", Title: "Conference", Start: model.Text("2024-03-09T12:00"), End: model.Text("2024-03-11T12:00")},
		{ID: "standup", Title: "Standup", Start: model.Text("2024-03-10T09:00"), End: model.Text("2024-03-10T10:00")},
		{ID: "holiday", Title: "Holiday", Start: model.Text("2024-03-11"), End: model.Text("2024-03-11T23:59:59.999")},
		{ID: "broken", Title: "Broken", Start: model.Text("2024-03-10T11:00"), End: model.Text("2024-03-10T10:00")},
	}
}

func ids(events []*model.CalendarEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

func TestBuildAcrossDSTChange(t *testing.T) {
	ag, err := Build(dstWeekend(), Options{
		Zone: denver,
		From: local(t, "2024-03-09T15:00"),
		Days: 3,
		Now:  local(t, "2024-03-10T09:30"),
	})
	require.NoError(t, err)
	require.Len(t, ag.Days, 3)
	assert.Equal(t, "en", ag.Locale)

	require.Len(t, ag.Rejected, 1)
	assert.Equal(t, "broken", ag.Rejected[0].ID)
	assert.Equal(t, 3, ag.Rejected[0].Index)

	hour := caltime.Instant(time.Hour.Milliseconds())
	lengths := []caltime.Instant{24 * hour, 23 * hour, 24 * hour}
	dates := []string{"2024-03-09", "2024-03-10", "2024-03-11"}
	for i, day := range ag.Days {
		assert.Equal(t, dates[i], day.Date)
		assert.Equal(t, lengths[i]-1, day.Window.End-day.Window.Start, "day %s", day.Date)
	}
	assert.Equal(t, "Sunday, March 10", ag.Days[1].Label)

	sat := ag.Days[0]
	assert.Equal(t, []string{"conference"}, ids(sat.Before))
	assert.Empty(t, sat.After)

	sun := ag.Days[1]
	assert.Equal(t, []string{"conference"}, ids(sun.Before))
	assert.True(t, sun.Before[0].IsMultiDay)
	assert.Equal(t, []string{"standup"}, ids(sun.After))

	mon := ag.Days[2]
	assert.Equal(t, []string{"conference", "holiday"}, ids(mon.Before))
	assert.True(t, mon.Before[1].IsAllDay)
	assert.False(t, mon.Before[1].IsMultiDay)
}

func TestBuildCopiesEventsPerDay(t *testing.T) {
	ag, err := Build(dstWeekend()[:1], Options{Zone: denver, From: local(t, "2024-03-09"), Days: 3})
	require.NoError(t, err)

	first := ag.Days[0].Before[0]
	last := ag.Days[2].Before[0]
	assert.NotSame(t, first, last)
	assert.True(t, first.IsMultiDay)
	assert.True(t, last.IsMultiDay)
}

func TestBuildHideAllDay(t *testing.T) {
	ag, err := Build(dstWeekend(), Options{
		Zone:       denver,
		From:       local(t, "2024-03-11"),
		HideAllDay: true,
	})
	require.NoError(t, err)
	require.Len(t, ag.Days, 1)
	assert.Equal(t, []string{"conference"}, ids(ag.Days[0].Before))
}

func TestBuildRejectsBadOptions(t *testing.T) {
	_, err := Build(nil, Options{Zone: "Mars/Olympus"})
	var zerr *caltime.InvalidZoneError
	assert.ErrorAs(t, err, &zerr)

	_, err = Build(nil, Options{Zone: denver, Days: MaxDays + 1})
	assert.ErrorIs(t, err, ErrTooManyDays)

	_, err = Build(nil, Options{Zone: denver, DateLayout: "QQQ"})
	var perr *caltime.InvalidPatternError
	assert.ErrorAs(t, err, &perr)
}

func TestParseDate(t *testing.T) {
	now := local(t, "2024-03-10T09:30")

	got, err := ParseDate("", denver, now, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = ParseDate("2024-03-12", denver, now, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, local(t, "2024-03-12"), got)

	got, err = ParseDate("tomorrow", denver, now, time.Monday)
	require.NoError(t, err)
	p, err := caltime.Project(got, denver)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", p.Date())

	_, err = ParseDate("zzzz qqqq", denver, now, time.Monday)
	var uerr *caltime.UnparsableTimeError
	assert.ErrorAs(t, err, &uerr)
}

func TestParseSpanWeekPhrases(t *testing.T) {
	// Sunday 2024-03-10, the spring-forward day.
	now := local(t, "2024-03-10T09:30")

	from, days, err := ParseSpan("this week", denver, now, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, 7, days)
	assert.Equal(t, local(t, "2024-03-04"), from)

	from, _, err = ParseSpan("This  Week", denver, now, time.Sunday)
	require.NoError(t, err)
	assert.Equal(t, local(t, "2024-03-10"), from)

	from, _, err = ParseSpan("next week", denver, now, time.Sunday)
	require.NoError(t, err)
	assert.Equal(t, local(t, "2024-03-17"), from)

	from, _, err = ParseSpan("last week", denver, now, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, local(t, "2024-02-26"), from)

	_, days, err = ParseSpan("tomorrow", denver, now, time.Monday)
	require.NoError(t, err)
	assert.Zero(t, days)

	from, err = ParseDate("week", denver, now, time.Sunday)
	require.NoError(t, err)
	assert.Equal(t, local(t, "2024-03-10"), from)
}

func TestRefresherReusesEventsWhenLoadFails(t *testing.T) {
	fail := false
	clock := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	var refreshes int

	r, err := NewRefresher(RefresherConfig{
		Spec:    "*/15 * * * *",
		Options: Options{Zone: denver, Days: 2},
		Load: func(context.Context) ([]model.RawEvent, error) {
			if fail {
				return nil, errors.New("feed unavailable")
			}
			return dstWeekend(), nil
		},
		Clock:     func() time.Time { return clock },
		OnRefresh: func(Snapshot, time.Duration, error) { refreshes++ },
	})
	require.NoError(t, err)

	_, ok := r.Snapshot()
	assert.False(t, ok)

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Events, 4)
	assert.Equal(t, "2024-03-10", snap.Agenda.Days[0].Date)
	assert.Equal(t, []string{"standup"}, ids(snap.Agenda.Days[0].After))

	// An hour later the standup has ended and moves to Before.
	fail = true
	clock = clock.Add(time.Hour)
	snap, err = r.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, "feed unavailable", snap.LoadError)
	assert.Len(t, snap.Events, 4)
	assert.Empty(t, snap.Agenda.Days[0].After)
	assert.Equal(t, []string{"conference", "standup"}, ids(snap.Agenda.Days[0].Before))

	latest, ok := r.Snapshot()
	require.True(t, ok)
	assert.Equal(t, snap.UpdatedAt, latest.UpdatedAt)
	assert.Equal(t, 2, refreshes)
}

func TestNewRefresherValidates(t *testing.T) {
	load := func(context.Context) ([]model.RawEvent, error) { return nil, nil }

	_, err := NewRefresher(RefresherConfig{Spec: "every now and then", Options: Options{Zone: denver}, Load: load})
	assert.Error(t, err)

	_, err = NewRefresher(RefresherConfig{Spec: "* * * * *", Options: Options{Zone: denver}})
	assert.Error(t, err)

	_, err = NewRefresher(RefresherConfig{Spec: "* * * * *", Options: Options{Zone: "Nowhere/Land"}, Load: load})
	assert.Error(t, err)
}

func TestRefresherStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := NewRefresher(RefresherConfig{
		Spec:    "@every 1h",
		Options: Options{Zone: denver},
		Load:    func(context.Context) ([]model.RawEvent, error) { return nil, nil },
	})
	require.NoError(t, err)
	require.NoError(t, r.Start(ctx))

	_, ok := r.Snapshot()
	assert.True(t, ok)
	r.Stop()
}
