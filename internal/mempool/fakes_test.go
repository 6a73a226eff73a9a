package mempool

import (
	"context"
	"errors"
	"sync"

	"github.com/zksync-go/mempoold/internal/txmodel"
)

// fakeStorage is an in-memory stand-in for internal/storage.Store,
// used so mempool package tests never touch a real pebble database.
type fakeStorage struct {
	mu          sync.Mutex
	accounts    map[txmodel.AccountID]txmodel.Account
	entries     []txmodel.SignedTxVariant
	nextBatchID uint64
	gcCalls     []map[txmodel.Address]txmodel.Nonce
	beginErr    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{accounts: make(map[txmodel.AccountID]txmodel.Account)}
}

func (s *fakeStorage) LoadCommittedState() (map[txmodel.AccountID]txmodel.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[txmodel.AccountID]txmodel.Account, len(s.accounts))
	for k, v := range s.accounts {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStorage) LoadTxs() ([]txmodel.SignedTxVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]txmodel.SignedTxVariant(nil), s.entries...), nil
}

func (s *fakeStorage) CollectGarbage(committed map[txmodel.Address]txmodel.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcCalls = append(s.gcCalls, committed)
	return nil
}

func (s *fakeStorage) Begin() (StorageTx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &fakeTx{s: s}, nil
}

type fakeTx struct {
	s         *fakeStorage
	pending   []txmodel.SignedTxVariant
	insertErr error
}

func (t *fakeTx) InsertTx(tx *txmodel.SignedTx) error {
	if t.insertErr != nil {
		return t.insertErr
	}
	t.pending = append(t.pending, txmodel.Single(*tx))
	return nil
}

func (t *fakeTx) InsertBatch(txs []txmodel.SignedTx, ethSignature []byte) (uint64, error) {
	if t.insertErr != nil {
		return 0, t.insertErr
	}
	t.s.mu.Lock()
	t.s.nextBatchID++
	id := t.s.nextBatchID
	t.s.mu.Unlock()
	t.pending = append(t.pending, txmodel.Batch(txmodel.SignedTxsBatch{BatchID: id, Txs: txs, EthSignature: ethSignature}))
	return id, nil
}

func (t *fakeTx) Commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.entries = append(t.s.entries, t.pending...)
	return nil
}

func (t *fakeTx) Close() error { return nil }

var errFakeStorage = errors.New("fake storage failure")

// failStorage always fails whichever Storage method is asked of it, to
// exercise Restore's fail-fast paths.
type failStorage struct {
	failLoadCommitted bool
	failGC            bool
	failLoadTxs       bool
}

func (f *failStorage) LoadCommittedState() (map[txmodel.AccountID]txmodel.Account, error) {
	if f.failLoadCommitted {
		return nil, errFakeStorage
	}
	return nil, nil
}

func (f *failStorage) CollectGarbage(map[txmodel.Address]txmodel.Nonce) error {
	if f.failGC {
		return errFakeStorage
	}
	return nil
}

func (f *failStorage) LoadTxs() ([]txmodel.SignedTxVariant, error) {
	if f.failLoadTxs {
		return nil, errFakeStorage
	}
	return nil, nil
}

func (f *failStorage) Begin() (StorageTx, error) {
	return nil, errFakeStorage
}

// fakeWatcher serves a fixed prefix-by-chunk-budget queue, mirroring
// internal/watcher.Fake without importing it (avoiding a test-only
// import cycle risk).
type fakeWatcher struct {
	ops     []txmodel.PriorityOp
	failErr error
}

func (w *fakeWatcher) GetPriorityQueueOps(ctx context.Context, opStartID uint64, maxChunks int) ([]txmodel.PriorityOp, error) {
	if w.failErr != nil {
		return nil, w.failErr
	}
	var out []txmodel.PriorityOp
	used := 0
	for _, op := range w.ops {
		if op.SerialID < opStartID {
			continue
		}
		if used+op.Chunks > maxChunks {
			break
		}
		out = append(out, op)
		used += op.Chunks
	}
	return out, nil
}

// overbudgetWatcher always returns ops that exceed whatever budget is
// asked for, to exercise the fatal watcher-contract-violation path.
type overbudgetWatcher struct {
	ops []txmodel.PriorityOp
}

func (w *overbudgetWatcher) GetPriorityQueueOps(ctx context.Context, opStartID uint64, maxChunks int) ([]txmodel.PriorityOp, error) {
	return w.ops, nil
}

func addr(b byte) txmodel.Address {
	var a txmodel.Address
	a[19] = b
	return a
}
