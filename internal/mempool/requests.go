package mempool

import "github.com/zksync-go/mempoold/internal/txmodel"

// AdmissionRequest is one inbound message on the admission surface
// (spec.md §6). Exactly one of NewTx / NewBatch is populated. RequestID
// is assigned by the Dispatcher purely for log correlation across the
// Dispatcher -> AdmissionWorker hop; it carries no protocol meaning.
type AdmissionRequest struct {
	RequestID string
	NewTx     *NewTxRequest
	NewBatch  *NewBatchRequest
}

type NewTxRequest struct {
	Tx    txmodel.SignedTx
	Reply chan<- error
}

type NewBatchRequest struct {
	Txs          []txmodel.SignedTx
	EthSignature []byte
	Reply        chan<- error
}

// BlockRequest is one inbound message on the block-assembly surface.
// GetBlock and UpdateNonces share one inbox so callers can enforce
// "apply this commit, then propose next block" via enqueue order.
type BlockRequest struct {
	GetBlock     *GetBlockRequest
	UpdateNonces []txmodel.AccountUpdate
}

type GetBlockRequest struct {
	LastPriorityOpNumber uint64
	Reply                chan<- txmodel.ProposedBlock
}
