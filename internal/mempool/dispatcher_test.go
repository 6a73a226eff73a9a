package mempool

import (
	"context"
	"testing"
	"time"

	"github.com/zksync-go/mempoold/internal/metrics"
)

// recordingHandler is a minimal Handler whose WithInbox records which
// inbox it was cloned with, letting Workers() be inspected without
// running a full AdmissionWorker.
type recordingHandler struct {
	inbox <-chan AdmissionRequest
	seen  chan AdmissionRequest
}

func (h *recordingHandler) WithInbox(inbox <-chan AdmissionRequest) Handler {
	return &recordingHandler{inbox: inbox, seen: h.seen}
}

func (h *recordingHandler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-h.inbox:
			if !ok {
				return
			}
			h.seen <- req
		}
	}
}

func TestDispatcher_RoundRobinFanout(t *testing.T) {
	const numWorkers = 3
	seen := make(chan AdmissionRequest, 64)
	template := &recordingHandler{seen: seen}

	inbox := make(chan AdmissionRequest, 64)
	dispatcher := NewDispatcher(template, inbox, numWorkers, 8, metrics.NoOp{})

	workers := dispatcher.Workers()
	if len(workers) != numWorkers {
		t.Fatalf("Workers() len = %d, want %d", len(workers), numWorkers)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(ctx)
	for _, w := range workers {
		go w.Run(ctx)
	}

	const n = 9
	for i := 0; i < n; i++ {
		reply := make(chan error, 1)
		inbox <- AdmissionRequest{NewTx: &NewTxRequest{Reply: reply}}
	}

	got := 0
	timeout := time.After(2 * time.Second)
	for got < n {
		select {
		case <-seen:
			got++
		case <-timeout:
			t.Fatalf("only observed %d/%d dispatched requests before timeout", got, n)
		}
	}
}

func TestDispatcher_ClosesOutboxesWhenInboxCloses(t *testing.T) {
	seen := make(chan AdmissionRequest, 8)
	template := &recordingHandler{seen: seen}
	inbox := make(chan AdmissionRequest)
	dispatcher := NewDispatcher(template, inbox, 2, 4, metrics.NoOp{})

	done := make(chan struct{})
	go func() {
		dispatcher.Run(context.Background())
		close(done)
	}()

	close(inbox)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after inbox closed")
	}

	for i, w := range dispatcher.Workers() {
		rh := w.(*recordingHandler)
		if _, ok := <-rh.inbox; ok {
			t.Fatalf("outbox %d was not closed", i)
		}
	}
}
