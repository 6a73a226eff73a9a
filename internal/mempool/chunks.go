package mempool

import "github.com/zksync-go/mempoold/internal/txmodel"

// Chunk costs for a transfer, depending on whether the recipient
// address is already present in the account-nonce map at the moment of
// costing. A brand-new recipient needs the larger "to-new" operation.
const (
	TransferToKnown = 2
	TransferToNew   = 6
)

// chunksForTx prices a single transaction against the current
// account-nonce map, applying the "known recipient" rule for transfers
// and the fixed per-kind cost for everything else.
func (s *State) chunksForTx(tx *txmodel.SignedTx) int {
	if tx.Kind == txmodel.OpTransfer {
		if _, known := s.accountNonces[tx.Recipient]; known {
			return TransferToKnown
		}
		return TransferToNew
	}
	return tx.Kind.MinChunks()
}

// chunksForBatch sums the per-member cost of a batch under the same
// "known recipient" rule, evaluated at assembly/admission time.
func (s *State) chunksForBatch(batch *txmodel.SignedTxsBatch) int {
	total := 0
	for i := range batch.Txs {
		total += s.chunksForTx(&batch.Txs[i])
	}
	return total
}

// requiredChunks prices whichever variant is at the front of the ready
// queue.
func (s *State) requiredChunks(v *txmodel.SignedTxVariant) int {
	if v.Batch != nil {
		return s.chunksForBatch(v.Batch)
	}
	return s.chunksForTx(v.Tx)
}

// ChunksForTx and ChunksForBatch are exported wrappers used by
// AdmissionWorker, which must cost a prospective batch before it holds
// the state lock for admission (see add_batch's two-critical-section
// design in SPEC_FULL.md §4.2).
func (s *State) ChunksForTx(tx *txmodel.SignedTx) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunksForTx(tx)
}

func (s *State) ChunksForBatch(batch *txmodel.SignedTxsBatch) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunksForBatch(batch)
}

func (s *State) RequiredChunks(v *txmodel.SignedTxVariant) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requiredChunks(v)
}
