package watcher

import (
	"context"

	"github.com/zksync-go/mempoold/internal/txmodel"
)

// Fake serves a fixed or programmable queue of priority ops for tests
// and local development, honoring the max_chunks contract: it returns
// the longest prefix whose summed chunk cost is at most MaxChunks.
type Fake struct {
	requests chan Request
	ops      []txmodel.PriorityOp
}

func NewFake(ops []txmodel.PriorityOp) *Fake {
	return &Fake{requests: make(chan Request, 8), ops: ops}
}

// Requests exposes the inbound channel so callers can build a *Client
// against it.
func (f *Fake) Requests() chan<- Request { return f.requests }

// SetOps updates the queue the fake serves; useful for simulating new
// deposits arriving between GetBlock calls.
func (f *Fake) SetOps(ops []txmodel.PriorityOp) { f.ops = ops }

// Run answers requests until ctx is cancelled.
func (f *Fake) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-f.requests:
			req.Reply <- f.prefixFrom(req.OpStartID, req.MaxChunks)
		}
	}
}

func (f *Fake) prefixFrom(opStartID uint64, maxChunks int) []txmodel.PriorityOp {
	var out []txmodel.PriorityOp
	used := 0
	for _, op := range f.ops {
		if op.SerialID < opStartID {
			continue
		}
		if used+op.Chunks > maxChunks {
			break
		}
		out = append(out, op)
		used += op.Chunks
	}
	return out
}
