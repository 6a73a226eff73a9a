// Package mempool implements the concurrent transaction mempool core:
// MempoolState (this file), AdmissionWorker, the Dispatcher/Balancer,
// and BlockAssembler.
package mempool

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/zksync-go/mempoold/internal/txmodel"
)

// State is the synchronous, single-owner record shared by one
// BlockAssembler and N AdmissionWorkers behind one exclusion lock
// (§5). Every method here is synchronous and does not suspend once
// the lock is held; callers are responsible for doing any I/O (storage
// writes, watcher round-trips) before acquiring it.
type State struct {
	mu sync.Mutex

	accountNonces map[txmodel.Address]txmodel.Nonce
	accountIDs    map[txmodel.AccountID]txmodel.Address
	ready         *list.List // of txmodel.SignedTxVariant
}

// NewEmpty builds a State with no accounts and an empty ready queue.
// Used by tests; production start-up goes through Restore.
func NewEmpty() *State {
	return &State{
		accountNonces: make(map[txmodel.Address]txmodel.Nonce),
		accountIDs:    make(map[txmodel.AccountID]txmodel.Address),
		ready:         list.New(),
	}
}

// Restore loads committed account state and any persisted pending
// transactions from storage, running collect_garbage first. Any
// storage failure here is a start-up invariant violation and is
// returned, wrapped with the step that failed, to the caller, who is
// expected to abort the process (spec.md §4.1).
func Restore(store Storage) (*State, error) {
	accounts, err := store.LoadCommittedState()
	if err != nil {
		return nil, fmt.Errorf("mempool: restore: load committed state: %w", err)
	}

	committedByAddr := make(map[txmodel.Address]txmodel.Nonce, len(accounts))
	accountIDs := make(map[txmodel.AccountID]txmodel.Address, len(accounts))
	accountNonces := make(map[txmodel.Address]txmodel.Nonce, len(accounts))
	for id, acct := range accounts {
		accountIDs[id] = acct.Address
		accountNonces[acct.Address] = acct.Nonce
		committedByAddr[acct.Address] = acct.Nonce
	}

	if err := store.CollectGarbage(committedByAddr); err != nil {
		return nil, fmt.Errorf("mempool: restore: collect garbage: %w", err)
	}

	pending, err := store.LoadTxs()
	if err != nil {
		return nil, fmt.Errorf("mempool: restore: load txs: %w", err)
	}

	ready := list.New()
	for _, v := range pending {
		variant := v
		ready.PushBack(variant)
	}

	return &State{
		accountNonces: accountNonces,
		accountIDs:    accountIDs,
		ready:         ready,
	}, nil
}

// Nonce returns the committed nonce recorded for addr, or 0 if addr has
// never been seen.
func (s *State) Nonce(addr txmodel.Address) txmodel.Nonce {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce(addr)
}

func (s *State) nonce(addr txmodel.Address) txmodel.Nonce {
	return s.accountNonces[addr] // zero value if absent
}

// AddTx appends tx to the back of the ready queue if its nonce is not
// stale (I1). Signature and fee correctness are assumed already
// checked upstream.
func (s *State) AddTx(tx txmodel.SignedTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.Nonce < s.nonce(tx.Sender) {
		return ErrNonceMismatch
	}
	s.ready.PushBack(txmodel.Single(tx))
	return nil
}

// AddBatch appends an atomic batch to the ready queue if every member's
// nonce is not stale. batch.BatchID must already be nonzero (I2) —
// violating this is a programming error in the caller (AdmissionWorker
// must have persisted the batch and set its id first), so this panics
// rather than returning an error, mirroring the original's
// assert_ne!(batch.batch_id, 0, ...).
func (s *State) AddBatch(batch txmodel.SignedTxsBatch) error {
	if batch.BatchID == 0 {
		panic("mempool: add_batch called with unset batch id")
	}
	if len(batch.Txs) == 0 {
		panic("mempool: add_batch called with empty batch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range batch.Txs {
		tx := &batch.Txs[i]
		if tx.Nonce < s.nonce(tx.Sender) {
			return ErrNonceMismatch
		}
	}
	s.ready.PushBack(txmodel.Batch(batch))
	return nil
}

// Create registers a brand-new account in both maps (AccountUpdate
// Create event).
func (s *State) Create(id txmodel.AccountID, addr txmodel.Address, nonce txmodel.Nonce) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountIDs[id] = addr
	s.accountNonces[addr] = nonce
}

// Delete removes an account from both maps (AccountUpdate Delete
// event).
func (s *State) Delete(id txmodel.AccountID, addr txmodel.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accountIDs, id)
	delete(s.accountNonces, addr)
}

// UpdateNonce overwrites the nonce for the address bound to id. If id
// is unknown — e.g. an UpdateBalance/ChangePubKeyHash event arriving
// for an account the mempool never saw a Create for — the update is
// silently dropped, preserving the original system's behavior (see
// SPEC_FULL.md §9 "Open question — lost nonce update").
func (s *State) UpdateNonce(id txmodel.AccountID, newNonce txmodel.Nonce) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.accountIDs[id]
	if !ok {
		return
	}
	s.accountNonces[addr] = newNonce
}

// DrainForBlock pops ready-queue entries from the front while they fit
// chunksLeft, in the order spec.md §4.4 step 3 describes: on the first
// entry that does not fit, it is pushed back to the front and draining
// stops. Runs as a single critical section — the whole loop holds the
// lock, since it never suspends (no I/O, no channel ops).
func (s *State) DrainForBlock(chunksLeft int) []txmodel.SignedTxVariant {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []txmodel.SignedTxVariant
	for {
		front := s.ready.Front()
		if front == nil {
			break
		}
		variant := front.Value.(txmodel.SignedTxVariant)
		cost := s.requiredChunks(&variant)
		if cost > chunksLeft {
			break
		}
		s.ready.Remove(front)
		out = append(out, variant)
		chunksLeft -= cost
	}
	return out
}

// Len reports the number of entries currently in the ready queue.
// Used by tests and by restart-time logging.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready.Len()
}
