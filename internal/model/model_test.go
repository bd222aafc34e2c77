package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/caltime"
)

func TestTimestampDecodeIsTolerant(t *testing.T) {
	payload := `[
		{"id":"a","title":"ms","startMS":1710054000000,"endMS":"1710057600000"},
		{"id":"b","title":"iso","startMS":"2024-03-10T08:30:00Z","endMS":"2024-03-10T03:30"},
		{"id":"c","title":"broken","startMS":"soon","endMS":true},
		{"id":"d","title":"missing","endMS":null},
		{"id":"e","title":"float","startMS":1710054000000.0,"endMS":1.5}
	]`

	var raws []RawEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &raws))
	require.Len(t, raws, 5)

	in, err := raws[0].Start.Resolve("UTC")
	require.NoError(t, err)
	assert.Equal(t, caltime.Instant(1710054000000), in)
	in, err = raws[0].End.Resolve("UTC")
	require.NoError(t, err)
	assert.Equal(t, caltime.Instant(1710057600000), in)

	in, err = raws[1].Start.Resolve("America/Denver")
	require.NoError(t, err)
	assert.Equal(t, caltime.Instant(1710059400000), in)
	in, err = raws[1].End.Resolve("America/Denver")
	require.NoError(t, err)
	assert.Equal(t, caltime.Instant(1710063000000), in)

	_, err = raws[2].Start.Resolve("UTC")
	var perr *caltime.UnparsableTimeError
	assert.True(t, errors.As(err, &perr))
	_, err = raws[2].End.Resolve("UTC")
	assert.ErrorIs(t, err, ErrTimestampInvalid)

	assert.False(t, raws[3].Start.IsSet())
	_, err = raws[3].Start.Resolve("UTC")
	assert.ErrorIs(t, err, ErrTimestampMissing)

	in, err = raws[4].Start.Resolve("UTC")
	require.NoError(t, err)
	assert.Equal(t, caltime.Instant(1710054000000), in)
	_, err = raws[4].End.Resolve("UTC")
	assert.ErrorIs(t, err, ErrTimestampInvalid)
}

func TestTimestampMarshal(t *testing.T) {
	b, err := json.Marshal(struct {
		A Timestamp `json:"a"`
		B Timestamp `json:"b"`
		C Timestamp `json:"c"`
	}{Millis(42), Text("2024-03-10T01:30"), Timestamp{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":42,"b":"2024-03-10T01:30","c":null}`, string(b))
}

func TestEnsureID(t *testing.T) {
	r := RawEvent{Title: "anonymous"}
	r.EnsureID()
	assert.Len(t, r.ID, 36)

	keep := RawEvent{ID: "evt-1"}
	keep.EnsureID()
	assert.Equal(t, "evt-1", keep.ID)
}

func TestDayWindow(t *testing.T) {
	w := DayWindow{Start: 100, End: 200}
	require.NoError(t, w.Validate())
	assert.True(t, w.Contains(100))
	assert.True(t, w.Contains(200))
	assert.False(t, w.Contains(201))

	assert.ErrorIs(t, DayWindow{Start: 5, End: 5}.Validate(), ErrEmptyWindow)
}

func TestBucketsAll(t *testing.T) {
	a, b, c := &CalendarEvent{ID: "a"}, &CalendarEvent{ID: "b"}, &CalendarEvent{ID: "c"}
	bk := Buckets{Before: []*CalendarEvent{a}, After: []*CalendarEvent{b, c}}
	assert.Equal(t, []*CalendarEvent{a, b, c}, bk.All())
	assert.Equal(t, 3, bk.Len())
}
