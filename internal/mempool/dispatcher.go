package mempool

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zksync-go/mempoold/internal/metrics"
)

// Dispatcher is the Balancer of spec.md §4.3: it owns the single
// inbound admission channel and fans requests out to N worker inboxes
// in cyclic round-robin, starting at index 0. The policy is
// content-blind by design — the mempool's only ordering authority is
// the per-address nonce and the single shared ready queue, so workers
// need no sender affinity (spec.md's "round-robin fairness" design
// note).
type Dispatcher struct {
	inbox    <-chan AdmissionRequest
	outboxes []chan AdmissionRequest
	workers  []Handler
	metrics  metrics.Recorder
}

// NewDispatcher clones template once per worker with a fresh bounded
// inbox, the Go analogue of the original's Balancer::new +
// Balanced::clone_with_receiver.
func NewDispatcher(template Handler, inbox <-chan AdmissionRequest, numWorkers, channelCapacity int, rec metrics.Recorder) *Dispatcher {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	outboxes := make([]chan AdmissionRequest, numWorkers)
	workers := make([]Handler, numWorkers)
	for i := 0; i < numWorkers; i++ {
		ch := make(chan AdmissionRequest, channelCapacity)
		outboxes[i] = ch
		workers[i] = template.WithInbox(ch)
	}
	return &Dispatcher{inbox: inbox, outboxes: outboxes, workers: workers, metrics: rec}
}

// Workers returns the N cloned handlers; callers start each as its own
// task (e.g. via an errgroup.Group), mirroring run_mempool_tasks
// spawning one tokio task per balanced_items entry.
func (d *Dispatcher) Workers() []Handler {
	return d.workers
}

// Run drains the inbound channel and forwards each request to the next
// outbox in rotation. Back-pressure on a full outbox naturally throttles
// admission before the next request is even looked at. Go channels
// have no way to observe "receiver dropped" the way the original's
// mpsc::Sender::send does (it would simply return an error there); this
// adaptation instead relies on ctx cancellation to stop forwarding once
// a worker's task has exited.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.closeOutboxes()

	next := 0
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-d.inbox:
			if !ok {
				return
			}
			start := time.Now()
			if req.RequestID == "" {
				req.RequestID = uuid.NewString()
			}
			select {
			case d.outboxes[next] <- req:
			case <-ctx.Done():
				return
			}
			d.metrics.ObserveDispatch(time.Since(start))
			next = (next + 1) % len(d.outboxes)
		}
	}
}

func (d *Dispatcher) closeOutboxes() {
	for _, ch := range d.outboxes {
		close(ch)
	}
}
