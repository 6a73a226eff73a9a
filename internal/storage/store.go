// Package storage is the durable side of the mempool_schema /
// account-state interface described in SPEC_FULL.md §6: it backs
// load_committed_state, collect_garbage, load_txs, insert_tx and
// insert_batch with an embedded pebble KV store, and offers begin/
// commit semantics around the two mempool writes via pebble's atomic
// write batches.
package storage

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/zksync-go/mempoold/internal/txmodel"
)

var (
	keyEntrySeq = []byte("meta:entry_seq")
	keyBatchSeq = []byte("meta:batch_seq")
	prefixEntry = []byte("entry:")
	prefixAcct  = []byte("acct:")
)

const (
	entryKindTx    byte = 0
	entryKindBatch byte = 1
)

// Store is the mempool node's durable storage handle. Safe for
// concurrent use by multiple AdmissionWorkers and the start-up restore
// path.
type Store struct {
	db *pebble.DB

	mu       sync.Mutex
	entrySeq uint64
	batchSeq uint64
}

// Open opens (creating if absent) the pebble database at dir and
// primes the in-memory sequence counters from their persisted values.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dir, err)
	}
	s := &Store{db: db}
	s.entrySeq, err = readSeq(db, keyEntrySeq)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.batchSeq, err = readSeq(db, keyBatchSeq)
	if err != nil {
		db.Close()
		return nil, err
	}
	// Concurrent commits may persist an older entry_seq after a newer
	// one, so never resume below the highest sequence that keys an entry.
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefixEntry, UpperBound: prefixUpperBound(prefixEntry)})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: scan entries: %w", err)
	}
	if iter.Last() {
		if seq := binary.BigEndian.Uint64(iter.Key()[len(prefixEntry):]); seq > s.entrySeq {
			s.entrySeq = seq
		}
	}
	iter.Close()
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func readSeq(db *pebble.DB, key []byte) (uint64, error) {
	v, closer, err := db.Get(key)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: read %s: %w", key, err)
	}
	defer closer.Close()
	return binary.BigEndian.Uint64(v), nil
}

func seqKey(prefix []byte, seq uint64) []byte {
	key := make([]byte, 0, len(prefix)+8)
	key = append(key, prefix...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(key, b[:]...)
}

// Tx is a durable mempool-schema write transaction: one or more
// inserts collected into a single atomic pebble batch, applied on
// Commit. AdmissionWorker opens exactly one per admission request.
type Tx struct {
	store *Store
	batch *pebble.Batch
}

func (s *Store) Begin() (*Tx, error) {
	return &Tx{store: s, batch: s.db.NewBatch()}, nil
}

func (t *Tx) Commit() error {
	if err := t.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func (t *Tx) Close() error {
	return t.batch.Close()
}

// InsertTx appends a single transaction to the ready-entry log.
func (t *Tx) InsertTx(tx *txmodel.SignedTx) error {
	s := t.store
	s.mu.Lock()
	s.entrySeq++
	seq := s.entrySeq
	s.mu.Unlock()

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	if err := t.batch.Set(keyEntrySeq, seqBuf[:], nil); err != nil {
		return err
	}

	record := append([]byte{entryKindTx}, encodeTx(tx)...)
	return t.batch.Set(seqKey(prefixEntry, seq), record, nil)
}

// InsertBatch allocates a nonzero batch id, stores the batch atomically
// in the same ready-entry log, and returns the assigned id.
func (t *Tx) InsertBatch(txs []txmodel.SignedTx, ethSignature []byte) (uint64, error) {
	s := t.store
	s.mu.Lock()
	s.entrySeq++
	entrySeq := s.entrySeq
	s.batchSeq++
	batchID := s.batchSeq
	s.mu.Unlock()

	var entryBuf, batchBuf [8]byte
	binary.BigEndian.PutUint64(entryBuf[:], entrySeq)
	binary.BigEndian.PutUint64(batchBuf[:], batchID)
	if err := t.batch.Set(keyEntrySeq, entryBuf[:], nil); err != nil {
		return 0, err
	}
	if err := t.batch.Set(keyBatchSeq, batchBuf[:], nil); err != nil {
		return 0, err
	}

	batch := txmodel.SignedTxsBatch{BatchID: batchID, Txs: txs, EthSignature: ethSignature}
	record := append([]byte{entryKindBatch}, encodeBatch(&batch)...)
	if err := t.batch.Set(seqKey(prefixEntry, entrySeq), record, nil); err != nil {
		return 0, err
	}
	return batchID, nil
}

// LoadCommittedState returns the account tree's committed accounts,
// keyed by numeric id, as restore() needs to seed account_nonces and
// account_ids.
func (s *Store) LoadCommittedState() (map[txmodel.AccountID]txmodel.Account, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefixAcct, UpperBound: prefixUpperBound(prefixAcct)})
	if err != nil {
		return nil, fmt.Errorf("storage: load committed state: %w", err)
	}
	defer iter.Close()

	out := make(map[txmodel.AccountID]txmodel.Account)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		id := binary.BigEndian.Uint32(key[len(prefixAcct):])
		acct, err := decodeAccount(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("storage: decode account %d: %w", id, err)
		}
		out[txmodel.AccountID(id)] = acct
	}
	return out, iter.Error()
}

// PutAccount is used by the commit-pipeline's account-tree writer (out
// of scope) and by tests to seed committed state ahead of restore().
func (s *Store) PutAccount(id txmodel.AccountID, acct txmodel.Account) error {
	var idBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], uint32(id))
	key := append(append([]byte(nil), prefixAcct...), idBuf[:]...)
	return s.db.Set(key, encodeAccount(acct), pebble.Sync)
}

// LoadTxs returns every pending ready-entry in insertion order, as
// restore() needs to rebuild the ready queue.
func (s *Store) LoadTxs() ([]txmodel.SignedTxVariant, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefixEntry, UpperBound: prefixUpperBound(prefixEntry)})
	if err != nil {
		return nil, fmt.Errorf("storage: load txs: %w", err)
	}
	defer iter.Close()

	var out []txmodel.SignedTxVariant
	for iter.First(); iter.Valid(); iter.Next() {
		variant, err := decodeEntry(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("storage: decode entry: %w", err)
		}
		out = append(out, variant)
	}
	return out, iter.Error()
}

func decodeEntry(b []byte) (txmodel.SignedTxVariant, error) {
	if len(b) == 0 {
		return txmodel.SignedTxVariant{}, fmt.Errorf("storage: empty entry record")
	}
	switch b[0] {
	case entryKindTx:
		tx, _, err := decodeTx(b[1:])
		if err != nil {
			return txmodel.SignedTxVariant{}, err
		}
		return txmodel.Single(tx), nil
	case entryKindBatch:
		batch, err := decodeBatch(b[1:])
		if err != nil {
			return txmodel.SignedTxVariant{}, err
		}
		return txmodel.Batch(batch), nil
	default:
		return txmodel.SignedTxVariant{}, fmt.Errorf("storage: unknown entry kind %d", b[0])
	}
}

// deleteEntry removes the single ready-entry stored under seq. Only
// CollectGarbage calls it; entries drained by block assembly are not
// deleted (the in-memory ready queue and storage diverge once a block
// is proposed, per spec.md's description of draining happening against
// the in-memory queue).
func (s *Store) deleteEntry(seq uint64) error {
	return s.db.Delete(seqKey(prefixEntry, seq), pebble.Sync)
}

// CollectGarbage removes ready-entries that are already stale against
// the given committed nonces: a single tx whose nonce is below the
// sender's committed nonce, or a batch all of whose members are below
// their sender's committed nonce. Batches with at least one
// still-valid member are left in place whole, since batches are
// indivisible (I5); LoadTxs then returns such a batch unchanged and
// restore puts it back in the ready queue without a nonce re-check.
func (s *Store) CollectGarbage(committed map[txmodel.Address]txmodel.Nonce) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefixEntry, UpperBound: prefixUpperBound(prefixEntry)})
	if err != nil {
		return fmt.Errorf("storage: collect garbage: %w", err)
	}
	defer iter.Close()

	var stale []uint64
	for iter.First(); iter.Valid(); iter.Next() {
		seq := binary.BigEndian.Uint64(iter.Key()[len(prefixEntry):])
		variant, err := decodeEntry(iter.Value())
		if err != nil {
			return fmt.Errorf("storage: decode entry: %w", err)
		}
		if isStale(variant, committed) {
			stale = append(stale, seq)
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}
	for _, seq := range stale {
		if err := s.deleteEntry(seq); err != nil {
			return fmt.Errorf("storage: delete stale entry %d: %w", seq, err)
		}
	}
	return nil
}

func isStale(v txmodel.SignedTxVariant, committed map[txmodel.Address]txmodel.Nonce) bool {
	if v.Tx != nil {
		return v.Tx.Nonce < committed[v.Tx.Sender]
	}
	for i := range v.Batch.Txs {
		tx := &v.Batch.Txs[i]
		if tx.Nonce >= committed[tx.Sender] {
			return false
		}
	}
	return true
}

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil // prefix was all 0xff; unbounded
}
