package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/caltime"
	"agendacal/internal/model"
)

const denver = "America/Denver"

func at(t *testing.T, rfc3339 string) caltime.Instant {
	t.Helper()
	tm, err := time.Parse(time.RFC3339Nano, rfc3339)
	require.NoError(t, err)
	return caltime.FromTime(tm)
}

// springForward is 2024-03-10 in Denver, a 23-hour local day.
func springForward(t *testing.T) model.DayWindow {
	t.Helper()
	return model.DayWindow{
		Start: at(t, "2024-03-10T07:00:00Z"),
		End:   at(t, "2024-03-11T05:59:59.999Z"),
	}
}

func event(id string, start, end caltime.Instant) *model.CalendarEvent {
	return &model.CalendarEvent{ID: id, Title: id, StartMS: start, EndMS: end}
}

func ids(events []*model.CalendarEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

func TestClassify(t *testing.T) {
	w := springForward(t)
	hour := caltime.Instant(time.Hour / time.Millisecond)

	tests := []struct {
		name      string
		ev        *model.CalendarEvent
		wantAll   bool
		wantMulti bool
	}{
		{"exact window is all-day", event("full", w.Start, w.End), true, false},
		{"starts at window start", event("morning", w.Start, w.Start+hour), true, false},
		{"ends at window end", event("night", w.End-hour, w.End), true, false},
		{"starts before window", event("overnight", w.Start-hour, w.Start+hour), false, true},
		{"ends after window", event("late", w.End-hour, w.End+hour), false, true},
		{"boundary plus overflow is multi-day only", event("both", w.Start, w.End+hour), false, true},
		{"inside window is timed", event("timed", w.Start+hour, w.Start+2*hour), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ev.IsAllDay, tt.ev.IsMultiDay = true, true // stale flags from a previous pass
			Classify(tt.ev, w)
			assert.Equal(t, tt.wantAll, tt.ev.IsAllDay)
			assert.Equal(t, tt.wantMulti, tt.ev.IsMultiDay)
		})
	}
}

func TestScheduleDSTDayTimedEvent(t *testing.T) {
	w := springForward(t)
	// 01:30 MST to 03:30 MDT local.
	ev := event("dst", at(t, "2024-03-10T08:30:00Z"), at(t, "2024-03-10T09:30:00Z"))

	b := Schedule([]*model.CalendarEvent{ev}, w, at(t, "2024-03-10T08:00:00Z"))
	assert.False(t, ev.IsMultiDay)
	assert.False(t, ev.IsAllDay)
	assert.Equal(t, []string{"dst"}, ids(b.After))

	next, err := caltime.AddTime(w.Start, 1, caltime.Day, denver)
	require.NoError(t, err)
	days, err := caltime.DayCountBetween(w.Start, next, denver, false)
	require.NoError(t, err)
	assert.Equal(t, 1, days)
}

func TestScheduleOrdering(t *testing.T) {
	w := springForward(t)
	minute := caltime.Instant(time.Minute / time.Millisecond)
	nine := at(t, "2024-03-10T15:00:00Z")

	long := event("long", nine, nine+60*minute)
	short := event("short", nine, nine+30*minute)
	early := event("early", nine-120*minute, nine-90*minute)
	allDay := event("allday", w.Start, w.End)
	multi := event("multi", w.Start-24*60*minute, w.Start+60*minute)
	twinA := event("twin-a", nine+120*minute, nine+150*minute)
	twinB := event("twin-b", nine+120*minute, nine+150*minute)

	input := []*model.CalendarEvent{twinA, long, allDay, short, twinB, early, multi}
	b := Schedule(input, w, w.Start)

	assert.Equal(t, []string{"multi", "allday", "early", "short", "long", "twin-a", "twin-b"}, ids(b.All()))
	assert.Equal(t, []string{"multi", "allday"}, ids(b.Before))
	// Input order is untouched.
	assert.Equal(t, "twin-a", input[0].ID)

	// Swapping tied events swaps their output order: the sort is stable.
	input[0], input[4] = input[4], input[0]
	b = Schedule(input, w, w.Start)
	assert.Equal(t, []string{"multi", "allday", "early", "short", "long", "twin-b", "twin-a"}, ids(b.All()))
}

func TestScheduleBuckets(t *testing.T) {
	w := springForward(t)
	minute := caltime.Instant(time.Minute / time.Millisecond)
	now := at(t, "2024-03-10T18:00:00Z")

	past := event("past", now-90*minute, now-30*minute)
	endsNow := event("ends-now", now-60*minute, now)
	ongoing := event("ongoing", now-10*minute, now+10*minute)
	future := event("future", now+60*minute, now+90*minute)
	allDay := event("allday", w.Start, w.End)

	b := Schedule([]*model.CalendarEvent{future, ongoing, endsNow, past, allDay}, w, now)
	assert.Equal(t, []string{"allday", "past"}, ids(b.Before))
	assert.Equal(t, []string{"ends-now", "ongoing", "future"}, ids(b.After))
}

func TestScheduleEmpty(t *testing.T) {
	b := Schedule(nil, springForward(t), 0)
	require.NotNil(t, b.Before)
	require.NotNil(t, b.After)
	assert.Empty(t, b.Before)
	assert.Empty(t, b.After)

	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"before":[],"after":[]}`, string(out))
}

func TestOverlaps(t *testing.T) {
	w := springForward(t)
	assert.True(t, Overlaps(event("a", w.Start-10, w.Start+10), w))
	assert.True(t, Overlaps(event("b", w.End, w.End+10), w))
	assert.True(t, Overlaps(event("c", w.Start, w.Start), w))
	assert.False(t, Overlaps(event("d", w.Start-10, w.Start), w))
	assert.False(t, Overlaps(event("e", w.End+1, w.End+10), w))
}

func rawBatch(t *testing.T) []model.RawEvent {
	t.Helper()
	base := at(t, "2024-03-10T14:00:00Z") // 08:00 MDT
	raws := make([]model.RawEvent, 0, 11)
	for i := 0; i < 10; i++ {
		start := int64(base) + int64(i)*45*60_000
		raws = append(raws, model.RawEvent{
			ID:    fmt.Sprintf("evt-%02d", i),
			Title: fmt.Sprintf("Event %d", i),
			Start: model.Millis(start),
			End:   model.Millis(start + int64(30+i%3*15)*60_000),
		})
	}
	raws = append(raws, model.RawEvent{
		ID:    "backwards",
		Title: "Broken",
		Start: model.Millis(int64(base) + 3_600_000),
		End:   model.Millis(int64(base)),
	})
	return raws
}

func TestNormalizeAndScheduleMalformedTolerance(t *testing.T) {
	w := springForward(t)
	res, err := NormalizeAndSchedule(rawBatch(t), Options{
		Zone:     denver,
		Locale:   "en-US",
		DayStart: w.Start,
		DayEnd:   w.End,
		Now:      at(t, "2024-03-10T17:00:00Z"),
	})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Len())
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "backwards", res.Rejected[0].ID)
	assert.Equal(t, 10, res.Rejected[0].Index)
	assert.Contains(t, res.Rejected[0].Reason, "start is after end")

	// Partition completeness: every accepted id appears exactly once.
	seen := map[string]int{}
	for _, ev := range res.All() {
		seen[ev.ID]++
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, 1, seen[fmt.Sprintf("evt-%02d", i)])
	}

	first := res.All()[0]
	assert.Equal(t, "08:00", first.StartLabel)
	assert.Equal(t, "08:30", first.EndLabel)
	assert.Equal(t, "Sunday, March 10", first.DateLabel)
	assert.Equal(t, caltime.DurationParts{Minutes: 30}, first.Duration)
	assert.Equal(t, 8, first.Start.Hour)
	assert.Equal(t, "en", res.Locale)
}

func TestNormalizeAndScheduleDeterministic(t *testing.T) {
	w := springForward(t)
	opts := Options{Zone: denver, DayStart: w.Start, DayEnd: w.End, Now: at(t, "2024-03-10T19:00:00Z")}
	raws := rawBatch(t)
	raws = append(raws, model.RawEvent{ID: "allday", Start: model.Millis(int64(w.Start)), End: model.Millis(int64(w.End))})

	a, err := NormalizeAndSchedule(raws, opts)
	require.NoError(t, err)
	b, err := NormalizeAndSchedule(raws, opts)
	require.NoError(t, err)

	assert.Equal(t, ids(a.Before), ids(b.Before))
	assert.Equal(t, ids(a.After), ids(b.After))

	all := a.All()
	for i := 1; i < len(all); i++ {
		if !all[i-1].Flagged() {
			assert.False(t, all[i].Flagged(), "flagged event %s after timed event %s", all[i].ID, all[i-1].ID)
		}
	}
	assert.Equal(t, "allday", all[0].ID)
	assert.True(t, all[0].IsAllDay)
	assert.False(t, all[0].IsMultiDay)
}

func TestNormalizeAndScheduleRejectsBadRecords(t *testing.T) {
	payload := `[
		{"title":"no id, no start","endMS":1710079200000},
		{"id":"words","startMS":"tomorrowish","endMS":1710079200000},
		{"id":"bool","startMS":1710075600000,"endMS":false},
		{"id":"local","startMS":"2024-03-10T09:00","endMS":"2024-03-10T10:15"}
	]`
	var raws []model.RawEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &raws))

	res, err := NormalizeAndSchedule(raws, Options{Zone: denver, Now: at(t, "2024-03-10T12:00:00Z")})
	require.NoError(t, err)

	require.Len(t, res.Rejected, 3)
	assert.Len(t, res.Rejected[0].ID, 36)
	assert.Contains(t, res.Rejected[0].Reason, "missing")
	assert.Equal(t, "words", res.Rejected[1].ID)
	assert.Equal(t, "bool", res.Rejected[2].ID)
	assert.Contains(t, res.Rejected[2].Reason, "invalid end")

	require.Equal(t, []string{"local"}, ids(res.After))
	assert.Equal(t, caltime.DurationParts{Hours: 1, Minutes: 15}, res.After[0].Duration)
	// The default window is the local day containing Now.
	assert.Equal(t, springForward(t), res.Window)
}

func TestNormalizeAndScheduleContextErrors(t *testing.T) {
	w := springForward(t)

	_, err := NormalizeAndSchedule(nil, Options{Zone: "Not/AZone", DayStart: w.Start, DayEnd: w.End})
	var zerr *caltime.InvalidZoneError
	assert.True(t, errors.As(err, &zerr))

	_, err = NormalizeAndSchedule(nil, Options{Zone: denver, DayStart: w.End, DayEnd: w.Start})
	assert.ErrorIs(t, err, model.ErrEmptyWindow)

	_, err = NormalizeAndSchedule(nil, Options{Zone: denver, DayStart: w.Start, DayEnd: w.End + 1})
	assert.ErrorIs(t, err, ErrWindowTooLong)

	_, err = NormalizeAndSchedule(nil, Options{Zone: denver, DayStart: w.Start, DayEnd: w.End, TimeLayout: "HH:qq"})
	var perr *caltime.InvalidPatternError
	assert.True(t, errors.As(err, &perr))

	res, err := NormalizeAndSchedule(nil, Options{Zone: denver, DayStart: w.Start, DayEnd: w.End})
	require.NoError(t, err)
	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"before":[]`)
	assert.Contains(t, string(out), `"after":[]`)
	assert.Contains(t, string(out), `"rejected":[]`)
}

func TestNormalizeAndScheduleBatchUndecodableRecords(t *testing.T) {
	payload := `[
		{"id":"ok","startMS":"2024-03-10T09:00","endMS":"2024-03-10T10:00"},
		{"id":7,"startMS":"2024-03-10T09:00","endMS":"2024-03-10T10:00"},
		"not an event",
		{"id":"backwards","startMS":"2024-03-10T11:00","endMS":"2024-03-10T10:00"},
		{"id":"titled","title":["a","b"],"startMS":"2024-03-10T09:00","endMS":"2024-03-10T10:00"},
		{"id":"late","startMS":"2024-03-10T20:00","endMS":"2024-03-10T21:00"}
	]`
	var records []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &records))

	res, err := NormalizeAndScheduleBatch(records, Options{Zone: denver, Now: at(t, "2024-03-10T18:00:00Z")})
	require.NoError(t, err)

	require.Len(t, res.Rejected, 4)
	assert.Equal(t, model.Rejection{ID: "7", Index: 1, Reason: res.Rejected[0].Reason}, res.Rejected[0])
	assert.Contains(t, res.Rejected[0].Reason, "invalid record")
	assert.Equal(t, "", res.Rejected[1].ID)
	assert.Equal(t, 2, res.Rejected[1].Index)
	assert.Equal(t, "backwards", res.Rejected[2].ID)
	assert.Equal(t, 3, res.Rejected[2].Index)
	assert.Contains(t, res.Rejected[2].Reason, "start is after end")
	assert.Equal(t, "titled", res.Rejected[3].ID)
	assert.Equal(t, 4, res.Rejected[3].Index)

	assert.Equal(t, []string{"ok"}, ids(res.Before))
	assert.Equal(t, []string{"late"}, ids(res.After))
}

func TestDecodeBatchKeepsPositions(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"id":null}`),
		json.RawMessage(`{"id":"a","startMS":1,"endMS":2}`),
		json.RawMessage(`{"id":{"nested":true}}`),
		json.RawMessage(`{"id":"b","startMS":1,"endMS":2}`),
	}
	events, positions, rejected := DecodeBatch(records)

	require.Len(t, events, 3)
	assert.Equal(t, []int{0, 1, 3}, positions)
	assert.Equal(t, "a", events[1].ID)
	require.Len(t, rejected, 1)
	assert.Equal(t, `{"nested":true}`, rejected[0].ID)
	assert.Equal(t, 2, rejected[0].Index)

	merged := MergeRejections(rejected, positions, []model.Rejection{{ID: "b", Index: 2}, {ID: "", Index: 0}})
	require.Len(t, merged, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{merged[0].Index, merged[1].Index, merged[2].Index})
	assert.Equal(t, "b", merged[2].ID)
}

// America/Santiago skips local midnight on 2024-09-08.
func TestNormalizeAndScheduleMidnightGapDefaultWindow(t *testing.T) {
	const santiago = "America/Santiago"
	res, err := NormalizeAndSchedule([]model.RawEvent{
		{ID: "brunch", Start: model.Text("2024-09-08T11:00"), End: model.Text("2024-09-08T12:00")},
	}, Options{Zone: santiago, Now: at(t, "2024-09-08T16:00:00Z")})
	require.NoError(t, err)

	assert.Equal(t, at(t, "2024-09-08T04:00:00Z"), res.Window.Start)
	assert.Equal(t, at(t, "2024-09-09T02:59:59.999Z"), res.Window.End)
	assert.Equal(t, []string{"brunch"}, ids(res.Before))
}

func TestRenderBuckets(t *testing.T) {
	w := springForward(t)
	res, err := NormalizeAndSchedule([]model.RawEvent{
		{ID: "standup", Title: "Standup", Location: "Room 4", Start: model.Text("2024-03-10T09:00"), End: model.Text("2024-03-10T09:15")},
		{ID: "holiday", Title: "Holiday", Start: model.Millis(int64(w.Start)), End: model.Millis(int64(w.End))},
	}, Options{Zone: denver, DayStart: w.Start, DayEnd: w.End, Now: w.Start})
	require.NoError(t, err)

	before, after, err := RenderBuckets(TextRenderer{}, res.Buckets)
	require.NoError(t, err)
	assert.Equal(t, []string{"[all day]   Holiday"}, before)
	assert.Equal(t, []string{"09:00-09:15 Standup @ Room 4"}, after)

	boom := RendererFunc(func(ev *model.CalendarEvent, p caltime.Projection) (string, error) {
		return "", errors.New("boom")
	})
	_, _, err = RenderBuckets(boom, res.Buckets)
	assert.ErrorContains(t, err, "holiday")
}
