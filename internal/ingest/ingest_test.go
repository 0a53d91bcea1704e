package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
	"github.com/eventlake/eventlake/internal/observability"
	"github.com/eventlake/eventlake/internal/store"
	"github.com/eventlake/eventlake/internal/stream"
	"github.com/eventlake/eventlake/pkg/types"
)

type fakeStore struct {
	events []types.RawEvent
	err    error
}

func (f *fakeStore) PutEvent(ctx context.Context, ev types.RawEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type fakePublisher struct {
	keys  []string
	datas [][]byte
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, partitionKey string, data []byte) error {
	f.keys = append(f.keys, partitionKey)
	f.datas = append(f.datas, data)
	return f.err
}

var fixedNow = time.Date(2024, 3, 5, 14, 22, 7, 0, time.UTC)

func clock() time.Time { return fixedNow }

func mustParse(t *testing.T, body string) Submission {
	t.Helper()
	sub, err := ParseSubmission([]byte(body))
	if err != nil {
		t.Fatalf("ParseSubmission(%s) failed: %v", body, err)
	}
	return sub
}

func TestIngest_Defaults(t *testing.T) {
	st := &fakeStore{}
	ing := New(st, WithClock(clock))

	ev, err := ing.Ingest(context.Background(), mustParse(t, `{}`))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	want := types.RawEvent{
		UserID:    "anonymous",
		EventTime: fixedNow.UnixMilli(),
		EventType: "unknown",
		ItemID:    "none",
	}
	if ev != want {
		t.Errorf("Ingest = %+v, want %+v", ev, want)
	}
	if len(st.events) != 1 || st.events[0] != want {
		t.Errorf("expected exactly one store write of %+v, got %+v", want, st.events)
	}
}

func TestIngest_Normalize(t *testing.T) {
	ing := New(&fakeStore{}, WithClock(clock))
	now := fixedNow.UnixMilli()

	tests := []struct {
		name string
		body string
		want types.RawEvent
	}{
		{
			name: "full",
			body: `{"user_id":"u1","event_type":"view","item_id":"i9","timestamp":1700000000000}`,
			want: types.RawEvent{UserID: "u1", EventTime: 1700000000000, EventType: "view", ItemID: "i9"},
		},
		{
			name: "numeric user id",
			body: `{"user_id":42,"item_id":7}`,
			want: types.RawEvent{UserID: "42", EventTime: now, EventType: "unknown", ItemID: "7"},
		},
		{
			name: "timestamp as text",
			body: `{"timestamp":"1700000000123"}`,
			want: types.RawEvent{UserID: "anonymous", EventTime: 1700000000123, EventType: "unknown", ItemID: "none"},
		},
		{
			name: "fractional timestamp truncates",
			body: `{"timestamp":1700000000123.9}`,
			want: types.RawEvent{UserID: "anonymous", EventTime: 1700000000123, EventType: "unknown", ItemID: "none"},
		},
		{
			name: "non-numeric timestamp defaults to now",
			body: `{"timestamp":"yesterday"}`,
			want: types.RawEvent{UserID: "anonymous", EventTime: now, EventType: "unknown", ItemID: "none"},
		},
		{
			name: "timestamp at int64 overflow defaults to now",
			body: `{"timestamp":9223372036854775808}`,
			want: types.RawEvent{UserID: "anonymous", EventTime: now, EventType: "unknown", ItemID: "none"},
		},
		{
			name: "timestamp beyond int64 defaults to now",
			body: `{"timestamp":1e19}`,
			want: types.RawEvent{UserID: "anonymous", EventTime: now, EventType: "unknown", ItemID: "none"},
		},
		{
			name: "null counts as absent",
			body: `{"user_id":null,"timestamp":null}`,
			want: types.RawEvent{UserID: "anonymous", EventTime: now, EventType: "unknown", ItemID: "none"},
		},
		{
			name: "empty string is kept",
			body: `{"item_id":""}`,
			want: types.RawEvent{UserID: "anonymous", EventTime: now, EventType: "unknown", ItemID: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ing.Normalize(mustParse(t, tt.body)); got != tt.want {
				t.Errorf("Normalize = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseSubmission_Envelope(t *testing.T) {
	sub := mustParse(t, `{"body":"{\"user_id\":\"u7\"}","headers":{}}`)
	if sub["user_id"] != "u7" {
		t.Errorf("expected envelope body to be unwrapped, got %#v", sub)
	}
}

func TestParseSubmission_Invalid(t *testing.T) {
	for _, body := range []string{`not json`, `[1,2]`, `"text"`, `{"body":"not json"}`, ``,
		`{"user_id":"u1"} this is not json`, `{"user_id":"u1"}{"user_id":"u2"}`, `{"body":"{\"user_id\":\"u1\"} trailing"}`} {
		_, err := ParseSubmission([]byte(body))
		if err == nil {
			t.Errorf("expected error for %q", body)
			continue
		}
		if pipeerrors.HTTPStatus(err) != 400 {
			t.Errorf("expected client error for %q, got %v", body, err)
		}
	}
}

func TestIngest_NoPublisher(t *testing.T) {
	st := &fakeStore{}
	m := observability.NewMetrics()
	ing := New(st, WithPublisher(nil), WithMetrics(m))

	if _, err := ing.Ingest(context.Background(), Submission{"user_id": "u1"}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(st.events) != 1 {
		t.Errorf("expected one store write, got %d", len(st.events))
	}
}

func TestIngest_Publishes(t *testing.T) {
	st := &fakeStore{}
	pub := &fakePublisher{}
	ing := New(st, WithPublisher(pub), WithClock(clock))

	ev, err := ing.Ingest(context.Background(), Submission{"user_id": "u1", "item_id": "i1"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(pub.keys) != 1 || pub.keys[0] != "u1" {
		t.Fatalf("expected one publish keyed by user id, got %v", pub.keys)
	}

	var published types.RawEvent
	if err := json.Unmarshal(pub.datas[0], &published); err != nil {
		t.Fatalf("published data is not JSON: %v", err)
	}
	if published != ev {
		t.Errorf("published %+v, stored %+v", published, ev)
	}
}

func TestIngest_StoreFailureSkipsPublish(t *testing.T) {
	st := &fakeStore{err: errors.New("throttled")}
	pub := &fakePublisher{}
	ing := New(st, WithPublisher(pub))

	_, err := ing.Ingest(context.Background(), Submission{})
	if err == nil {
		t.Fatal("expected error")
	}
	if pipeerrors.HTTPStatus(err) != 500 {
		t.Errorf("expected backend status, got %d", pipeerrors.HTTPStatus(err))
	}
	if pipeerrors.GetCategory(err) != pipeerrors.ErrCategoryStore {
		t.Errorf("expected store category, got %v", pipeerrors.GetCategory(err))
	}
	if len(pub.keys) != 0 {
		t.Error("publish must not happen after a failed store write")
	}
}

func TestIngest_PublishFailureKeepsStoredRecord(t *testing.T) {
	st := &fakeStore{}
	pub := &fakePublisher{err: errors.New("stream gone")}
	ing := New(st, WithPublisher(pub))

	_, err := ing.Ingest(context.Background(), Submission{})
	if pipeerrors.GetCategory(err) != pipeerrors.ErrCategoryStream {
		t.Errorf("expected stream error, got %v", err)
	}
	if len(st.events) != 1 {
		t.Errorf("expected stored record to remain, got %d writes", len(st.events))
	}
}

func TestIngest_SQLiteAndLocalStream(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"), nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	ls := stream.NewLocalStream(2)
	ing := New(st, WithPublisher(ls), WithClock(clock))

	ctx := context.Background()
	ev, err := ing.Ingest(ctx, Submission{"user_id": "u1", "event_type": "click"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	got, ok, err := st.GetEvent(ctx, "u1", ev.EventTime)
	if err != nil || !ok || got != ev {
		t.Errorf("stored event = %+v (found=%v, err=%v), want %+v", got, ok, err, ev)
	}
	if recs := ls.Records(ls.ShardFor("u1")); len(recs) != 1 {
		t.Errorf("expected one stream record, got %d", len(recs))
	}
}
