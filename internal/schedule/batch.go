package schedule

import (
	"encoding/json"
	"slices"
	"strings"

	"agendacal/internal/model"
)

// DecodeBatch decodes each record of a JSON batch on its own. A record that
// does not decode into a RawEvent becomes a rejection at its batch index;
// positions[i] is the batch index of events[i].
func DecodeBatch(records []json.RawMessage) (events []model.RawEvent, positions []int, rejected []model.Rejection) {
	events = make([]model.RawEvent, 0, len(records))
	positions = make([]int, 0, len(records))
	for i, rec := range records {
		var raw model.RawEvent
		if err := json.Unmarshal(rec, &raw); err != nil {
			merr := &MalformedEventError{ID: recordID(rec), Index: i, Reason: "invalid record", Err: err}
			rejected = append(rejected, model.Rejection{ID: merr.ID, Index: i, Reason: merr.Detail()})
			continue
		}
		events = append(events, raw)
		positions = append(positions, i)
	}
	return events, positions, rejected
}

// NormalizeAndScheduleBatch is NormalizeAndSchedule over undecoded records.
// Records that fail to decode are rejected like any other malformed record.
func NormalizeAndScheduleBatch(records []json.RawMessage, opts Options) (Result, error) {
	events, positions, rejected := DecodeBatch(records)
	res, err := NormalizeAndSchedule(events, opts)
	if err != nil {
		return Result{}, err
	}
	res.Rejected = MergeRejections(rejected, positions, res.Rejected)
	return res, nil
}

// MergeRejections maps rejections indexed into a DecodeBatch result back to
// batch positions and merges them with the decode rejections, ordered by
// index. A nil positions leaves indexes as they are.
func MergeRejections(decoded []model.Rejection, positions []int, later []model.Rejection) []model.Rejection {
	out := make([]model.Rejection, 0, len(decoded)+len(later))
	out = append(out, decoded...)
	for _, r := range later {
		if positions != nil && r.Index >= 0 && r.Index < len(positions) {
			r.Index = positions[r.Index]
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b model.Rejection) int {
		return a.Index - b.Index
	})
	return out
}

// recordID recovers the "id" of an undecodable record for the rejection,
// whatever its JSON type.
func recordID(rec json.RawMessage) string {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(rec, &head) != nil || len(head.ID) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(head.ID, &s) == nil {
		return s
	}
	if id := strings.TrimSpace(string(head.ID)); id != "null" {
		return id
	}
	return ""
}
