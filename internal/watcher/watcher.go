// Package watcher defines the outbound interface to the priority-op
// watcher: a bounded request/response channel, as spec.md §6 describes.
// The watcher itself (observing on-chain deposits) is out of scope; this
// package only carries the request shape and a thin client BlockAssembler
// uses to perform the round-trip.
package watcher

import (
	"context"
	"fmt"

	"github.com/zksync-go/mempoold/internal/txmodel"
)

// Request is GetPriorityQueueOps: the watcher is obligated to return a
// prefix of its queue starting at OpStartID whose summed chunk cost is
// at most MaxChunks.
type Request struct {
	OpStartID uint64
	MaxChunks int
	Reply     chan<- []txmodel.PriorityOp
}

// Client performs the watcher round-trip on behalf of BlockAssembler.
type Client struct {
	requests chan<- Request
}

func NewClient(requests chan<- Request) *Client {
	return &Client{requests: requests}
}

// GetPriorityQueueOps sends the request and awaits the reply. A reply
// channel the watcher never answers on is a fatal condition for the
// caller (spec.md §7 class 3); ctx cancellation is how that shows up
// here instead of a dropped-channel panic.
func (c *Client) GetPriorityQueueOps(ctx context.Context, opStartID uint64, maxChunks int) ([]txmodel.PriorityOp, error) {
	reply := make(chan []txmodel.PriorityOp, 1)
	req := Request{OpStartID: opStartID, MaxChunks: maxChunks, Reply: reply}

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("watcher: request not accepted: %w", ctx.Err())
	}

	select {
	case ops := <-reply:
		return ops, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("watcher: reply not received: %w", ctx.Err())
	}
}
