package saga

import (
	"context"
	"errors"
	"testing"
)

func TestSagaLogsTargetEvents(t *testing.T) {
	store := NewMemoryStore()
	sg := New(store, "run-1", "dispatcher", "dispatch")
	ctx := context.Background()

	sg.TargetStart(ctx, "fnA")
	sg.TargetUpdated(ctx, "fnA", "7", 1200)
	sg.TargetFailed(ctx, "fnB", errors.New("publish timed out"))

	events, err := store.ListBySaga(ctx, sg.ID)
	if err != nil {
		t.Fatalf("ListBySaga: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Action != "target.start" || events[0].Metadata["target"] != "fnA" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Action != "target.updated" || events[1].Metadata["version"] != "7" {
		t.Errorf("events[1] = %+v", events[1])
	}
	if events[2].Action != "target.failed" || events[2].Metadata["error"] != "publish timed out" {
		t.Errorf("events[2] = %+v", events[2])
	}
}

func TestMemoryStoreListRecent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, run := range []string{"run-1", "run-2", "run-3"} {
		sg := New(store, run, "dispatcher", "dispatch")
		sg.Log(ctx, "run.start", "start", nil)
	}

	events, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Run != "run-3" {
		t.Errorf("newest event run = %q, want run-3", events[0].Run)
	}
}
