package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/zksync-go/mempoold/internal/txmodel"
)

func TestFake_ClientRoundTrip_RespectsChunkBudget(t *testing.T) {
	ops := []txmodel.PriorityOp{
		{SerialID: 1, Chunks: 4},
		{SerialID: 2, Chunks: 4},
		{SerialID: 3, Chunks: 4},
	}
	fake := NewFake(ops)
	client := NewClient(fake.Requests())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fake.Run(ctx)

	got, err := client.GetPriorityQueueOps(ctx, 0, 8)
	if err != nil {
		t.Fatalf("GetPriorityQueueOps: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d ops, want 2 (budget 8 / 4 each)", len(got))
	}
}

func TestFake_ClientRoundTrip_FiltersByStartID(t *testing.T) {
	ops := []txmodel.PriorityOp{
		{SerialID: 1, Chunks: 1},
		{SerialID: 2, Chunks: 1},
		{SerialID: 3, Chunks: 1},
	}
	fake := NewFake(ops)
	client := NewClient(fake.Requests())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fake.Run(ctx)

	got, err := client.GetPriorityQueueOps(ctx, 2, 100)
	if err != nil {
		t.Fatalf("GetPriorityQueueOps: %v", err)
	}
	if len(got) != 2 || got[0].SerialID != 2 {
		t.Fatalf("got %+v, want ops with SerialID >= 2", got)
	}
}

func TestFake_SetOpsChangesSubsequentResponses(t *testing.T) {
	fake := NewFake(nil)
	client := NewClient(fake.Requests())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fake.Run(ctx)

	first, err := client.GetPriorityQueueOps(ctx, 0, 10)
	if err != nil {
		t.Fatalf("GetPriorityQueueOps: %v", err)
	}
	if len(first) != 0 {
		t.Fatalf("expected no ops before SetOps, got %+v", first)
	}

	fake.SetOps([]txmodel.PriorityOp{{SerialID: 1, Chunks: 1}})
	second, err := client.GetPriorityQueueOps(ctx, 0, 10)
	if err != nil {
		t.Fatalf("GetPriorityQueueOps: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected one op after SetOps, got %+v", second)
	}
}

func TestClient_GetPriorityQueueOps_TimesOutIfWatcherNeverRuns(t *testing.T) {
	fake := NewFake(nil)
	client := NewClient(fake.Requests()) // fake.Run is never started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.GetPriorityQueueOps(ctx, 0, 10); err == nil {
		t.Fatal("expected a context-deadline error when nothing answers the request")
	}
}
