package mempool

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/zksync-go/mempoold/internal/txmodel"
)

// Handler is the shape the Dispatcher's Balancer fans out to: WithInbox
// is "clone me with a different inbox" (spec.md §4.3's design note),
// mirroring the original system's Balanced<REQUESTS> trait, and Run
// serves the cloned inbox.
type Handler interface {
	WithInbox(inbox <-chan AdmissionRequest) Handler
	Run(ctx context.Context)
}

// AdmissionWorker consumes one inbox of AdmissionRequest, persists each
// accepted item durably, and admits it into the shared MempoolState
// (spec.md §4.2). N instances run independently; relative order
// between admissions routed to different workers is not guaranteed.
type AdmissionWorker struct {
	id int

	store          Storage
	state          *State
	maxBlockChunks int
	maxWithdrawals int
	logger         zerolog.Logger

	inbox <-chan AdmissionRequest
}

// NewAdmissionWorker builds the template worker the Dispatcher clones
// per shard. id is used only for log correlation.
func NewAdmissionWorker(id int, store Storage, state *State, maxBlockChunks, maxWithdrawals int, logger zerolog.Logger) *AdmissionWorker {
	return &AdmissionWorker{
		id:             id,
		store:          store,
		state:          state,
		maxBlockChunks: maxBlockChunks,
		maxWithdrawals: maxWithdrawals,
		logger:         logger,
	}
}

func (w *AdmissionWorker) WithInbox(inbox <-chan AdmissionRequest) Handler {
	clone := *w
	clone.inbox = inbox
	return &clone
}

// Run drains the inbox until it is closed, handling one request at a
// time (strict FIFO from inbox to ready queue within this worker).
func (w *AdmissionWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-w.inbox:
			if !ok {
				return
			}
			w.handle(req)
		}
	}
}

func (w *AdmissionWorker) handle(req AdmissionRequest) {
	switch {
	case req.NewTx != nil:
		err := w.addTx(req.NewTx.Tx)
		if err != nil {
			w.logger.Debug().Str("request_id", req.RequestID).Err(err).Msg("mempool: new tx rejected")
		}
		reply(req.NewTx.Reply, err)
	case req.NewBatch != nil:
		err := w.addBatch(req.NewBatch.Txs, req.NewBatch.EthSignature)
		if err != nil {
			w.logger.Debug().Str("request_id", req.RequestID).Err(err).Msg("mempool: new batch rejected")
		}
		reply(req.NewBatch.Reply, err)
	}
}

// addTx implements the NewTx protocol: persist, then admit. A storage
// failure leaves the in-memory state untouched; a NonceMismatch after a
// successful insert leaves the persisted row for the next restart's
// collect_garbage (SPEC_FULL.md §9).
func (w *AdmissionWorker) addTx(tx txmodel.SignedTx) error {
	stx, err := w.store.Begin()
	if err != nil {
		w.logger.Warn().Err(err).Msg("mempool: storage access error")
		return ErrDbError
	}
	if err := stx.InsertTx(&tx); err != nil {
		stx.Close()
		w.logger.Warn().Err(err).Msg("mempool: storage access error")
		return ErrDbError
	}
	if err := stx.Commit(); err != nil {
		w.logger.Warn().Err(err).Msg("mempool: storage access error")
		return ErrDbError
	}

	if err := w.state.AddTx(tx); err != nil {
		w.logger.Debug().Hex("sender", tx.Sender[:]).Uint32("nonce", uint32(tx.Nonce)).Msg("mempool: rejected stale tx")
		return err
	}
	return nil
}

// addBatch implements the NewBatch protocol: cost under the lock,
// release, count withdrawals, persist, then admit under a second,
// independent critical section (spec.md §5's two-critical-sections
// discipline — the chunk check and add_batch are separated by storage
// I/O, and add_batch re-validates nonces to stay safe across that
// window).
func (w *AdmissionWorker) addBatch(txs []txmodel.SignedTx, ethSignature []byte) error {
	if len(txs) == 0 {
		return ErrEmptyBatch
	}

	provisional := txmodel.SignedTxsBatch{BatchID: 0, Txs: txs, EthSignature: ethSignature}
	if w.state.ChunksForBatch(&provisional) > w.maxBlockChunks {
		return ErrBatchTooBig
	}

	withdrawals := 0
	for i := range txs {
		if txs[i].Kind.IsWithdraw() {
			withdrawals++
		}
	}
	if withdrawals > w.maxWithdrawals {
		return ErrBatchWithdrawalsOverload
	}

	stx, err := w.store.Begin()
	if err != nil {
		w.logger.Warn().Err(err).Msg("mempool: storage access error")
		return ErrDbError
	}
	batchID, err := stx.InsertBatch(txs, ethSignature)
	if err != nil {
		stx.Close()
		w.logger.Warn().Err(err).Msg("mempool: storage access error")
		return ErrDbError
	}
	if err := stx.Commit(); err != nil {
		w.logger.Warn().Err(err).Msg("mempool: storage access error")
		return ErrDbError
	}
	if batchID == 0 {
		// Programming error in Storage: insert_batch must assign a
		// nonzero id once persisted (I2).
		return ErrOther
	}

	provisional.BatchID = batchID
	if err := w.state.AddBatch(provisional); err != nil {
		w.logger.Debug().Uint64("batch_id", batchID).Msg("mempool: rejected stale batch")
		return err
	}
	return nil
}

// reply sends res on ch without blocking the worker if the caller has
// already given up on the response (admission replies are lossy per
// spec.md §5). Callers are expected to give Reply a buffer of at least
// one slot; this select is a defensive backstop, not the primary
// mechanism.
func reply(ch chan<- error, res error) {
	select {
	case ch <- res:
	default:
	}
}
