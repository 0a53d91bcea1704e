package batch

import (
	"context"
	"testing"
	"time"

	"github.com/eventlake/eventlake/pkg/types"
)

func TestPipeline_Process(t *testing.T) {
	store := newRecordingStorage()
	now := time.Date(2024, 3, 5, 14, 22, 7, 0, time.UTC)
	p := NewPipeline(NewWriter(store, WithIDGenerator(func() string { return "id" })), func() time.Time { return now }, nil)

	records := []types.ChangeRecord{
		{OperationKind: types.OpInsert, PostImage: types.Map{"user_id": types.String("u1")}},
		{OperationKind: types.OpDelete},
		{OperationKind: types.OpUpdate, PostImage: types.Map{"user_id": types.String("u2")}},
	}

	res, err := p.Process(context.Background(), records)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Status != StatusOK || res.Count != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Key != "events/year=2024/month=03/day=05/142207-id.json" {
		t.Errorf("unexpected key %q", res.Key)
	}
}

func TestPipeline_NoItems(t *testing.T) {
	store := newRecordingStorage()
	p := NewPipeline(NewWriter(store), nil, nil)

	res, err := p.Process(context.Background(), []types.ChangeRecord{{OperationKind: types.OpDelete}})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Status != StatusNoItems || res.Key != "" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(store.puts) != 0 {
		t.Errorf("expected no storage calls, got %d", len(store.puts))
	}
}
