package mempool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zksync-go/mempoold/internal/metrics"
	"github.com/zksync-go/mempoold/internal/txmodel"
)

// WatcherClient is the round-trip BlockAssembler performs against the
// priority-op watcher (spec.md §6). internal/watcher.Client implements
// it; tests use a fake.
type WatcherClient interface {
	GetPriorityQueueOps(ctx context.Context, opStartID uint64, maxChunks int) ([]txmodel.PriorityOp, error)
}

// BlockAssembler is the single serial processor of BlockRequest
// (spec.md §4.4): it assembles proposed blocks under the chunk budget
// and applies commit-pipeline nonce updates, both off the same inbox so
// callers can sequence "apply this commit, then propose next block" by
// enqueue order alone.
type BlockAssembler struct {
	state          *State
	watcher        WatcherClient
	maxBlockChunks int
	logger         zerolog.Logger
	metrics        metrics.Recorder

	inbox <-chan BlockRequest
}

func NewBlockAssembler(state *State, watcherClient WatcherClient, maxBlockChunks int, logger zerolog.Logger, rec metrics.Recorder, inbox <-chan BlockRequest) *BlockAssembler {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &BlockAssembler{
		state:          state,
		watcher:        watcherClient,
		maxBlockChunks: maxBlockChunks,
		logger:         logger,
		metrics:        rec,
		inbox:          inbox,
	}
}

// Run processes requests one at a time until the inbox closes.
func (a *BlockAssembler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-a.inbox:
			if !ok {
				return
			}
			a.handle(ctx, req)
		}
	}
}

func (a *BlockAssembler) handle(ctx context.Context, req BlockRequest) {
	switch {
	case req.GetBlock != nil:
		block, err := a.proposeBlock(ctx, req.GetBlock.LastPriorityOpNumber)
		if err != nil {
			// A watcher contract violation or a dropped reply channel
			// are both fatal invariant violations (spec.md §7 class 3).
			panic(fmt.Sprintf("mempool: block assembler fatal error: %v", err))
		}
		select {
		case req.GetBlock.Reply <- block:
		default:
			panic("mempool: block reply channel dropped")
		}
	case req.UpdateNonces != nil:
		a.applyUpdates(req.UpdateNonces)
	}
}

// proposeBlock implements the algorithm of spec.md §4.4: select
// priority ops up to the chunk budget, then drain the ready queue for
// whatever budget remains.
func (a *BlockAssembler) proposeBlock(ctx context.Context, lastPriorityOpNumber uint64) (txmodel.ProposedBlock, error) {
	start := time.Now()
	attemptID := uuid.NewString()
	defer func() { a.metrics.ObserveProposeBlock(time.Since(start)) }()

	priorityOps, err := a.watcher.GetPriorityQueueOps(ctx, lastPriorityOpNumber, a.maxBlockChunks)
	if err != nil {
		return txmodel.ProposedBlock{}, fmt.Errorf("watcher round-trip failed (attempt %s): %w", attemptID, err)
	}

	usedByPriorityOps := 0
	for _, op := range priorityOps {
		usedByPriorityOps += op.Chunks
	}
	if usedByPriorityOps > a.maxBlockChunks {
		return txmodel.ProposedBlock{}, fmt.Errorf(
			"watcher violated its chunk contract: used %d chunks of a %d budget",
			usedByPriorityOps, a.maxBlockChunks)
	}
	chunksLeft := a.maxBlockChunks - usedByPriorityOps

	txs := a.state.DrainForBlock(chunksLeft)

	a.logger.Trace().Str("attempt_id", attemptID).Int("priority_ops", len(priorityOps)).Int("txs", len(txs)).Msg("mempool: proposed block")
	return txmodel.ProposedBlock{PriorityOps: priorityOps, Txs: txs}, nil
}

// applyUpdates applies one batch of commit-pipeline account updates.
// See spec.md §4.4 for the per-kind effect and §9 for the "unknown id"
// open question.
func (a *BlockAssembler) applyUpdates(updates []txmodel.AccountUpdate) {
	for _, u := range updates {
		switch u.Kind {
		case txmodel.UpdateCreate:
			a.state.Create(u.ID, u.Address, u.Nonce)
		case txmodel.UpdateDelete:
			a.state.Delete(u.ID, u.Address)
		case txmodel.UpdateBalance, txmodel.UpdateChangePubKeyHash:
			a.state.UpdateNonce(u.ID, u.Nonce)
		}
	}
}
