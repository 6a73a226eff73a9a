// Package txmodel defines the wire types the mempool reasons about:
// signed transactions, atomic batches, priority operations and the
// account-nonce update stream from the commit pipeline.
package txmodel

import "fmt"

// OperationKind tags what a SignedTx actually does. The mempool only
// needs to distinguish transfers (which have a variable chunk cost
// depending on recipient novelty) and withdrawals (which are capped
// per block); every other kind is priced by MinChunks.
type OperationKind uint8

const (
	OpTransfer OperationKind = iota
	OpWithdraw
	OpChangePubKey
	OpForcedExit
	OpSwap
	OpMintNFT
	OpWithdrawNFT
)

func (k OperationKind) String() string {
	switch k {
	case OpTransfer:
		return "Transfer"
	case OpWithdraw:
		return "Withdraw"
	case OpChangePubKey:
		return "ChangePubKey"
	case OpForcedExit:
		return "ForcedExit"
	case OpSwap:
		return "Swap"
	case OpMintNFT:
		return "MintNFT"
	case OpWithdrawNFT:
		return "WithdrawNFT"
	default:
		return fmt.Sprintf("OperationKind(%d)", uint8(k))
	}
}

// IsWithdraw reports whether this operation counts against the
// per-block withdrawal cap.
func (k OperationKind) IsWithdraw() bool {
	return k == OpWithdraw || k == OpForcedExit || k == OpWithdrawNFT
}

// MinChunks is the fixed chunk cost for operation kinds whose cost does
// not depend on mempool state. Transfer is priced separately by the
// "known recipient" rule (see chunks.go).
func (k OperationKind) MinChunks() int {
	switch k {
	case OpWithdraw:
		return 6
	case OpChangePubKey:
		return 6
	case OpForcedExit:
		return 6
	case OpSwap:
		return 5
	case OpMintNFT:
		return 5
	case OpWithdrawNFT:
		return 10
	default:
		// OpTransfer has no fixed cost; callers must use chunks.go.
		return 0
	}
}

// Address is a 20-byte account address, matching the L1/L2 address
// format this node's accounts are keyed by.
type Address [20]byte

// AccountID is the numeric id assigned to an address once it is
// registered in the account tree. Nonce-update events arrive keyed by
// AccountID, not by Address.
type AccountID uint32

// Nonce is a per-account monotone counter.
type Nonce uint32

// SignedTx is one individually signed transaction. Signature and fee
// checks happen upstream of the mempool (out of scope).
type SignedTx struct {
	Hash      [32]byte
	Sender    Address
	Recipient Address // zero value if the operation kind has no recipient
	Nonce     Nonce
	Kind      OperationKind
	Payload   []byte // serialized operation-specific fields
}

func (tx *SignedTx) Account() Address { return tx.Sender }

// SignedTxsBatch is an atomic group of transactions. BatchID is 0 until
// the batch has been durably inserted; add_batch asserts it is nonzero.
type SignedTxsBatch struct {
	BatchID      uint64
	Txs          []SignedTx
	EthSignature []byte // optional; nil if not supplied
}

// SignedTxVariant is either a single transaction or an atomic batch.
// Exactly one of Tx / Batch is non-nil.
type SignedTxVariant struct {
	Tx    *SignedTx
	Batch *SignedTxsBatch
}

func Single(tx SignedTx) SignedTxVariant {
	return SignedTxVariant{Tx: &tx}
}

func Batch(batch SignedTxsBatch) SignedTxVariant {
	return SignedTxVariant{Batch: &batch}
}

func (v SignedTxVariant) IsBatch() bool { return v.Batch != nil }

// PriorityOp is an on-chain-originated deposit or exit observed by the
// watcher. It consumes block chunks like a transaction but never passes
// through admission.
type PriorityOp struct {
	SerialID uint64
	Chunks   int
}

// AccountUpdateKind tags the four ways the commit pipeline can mutate
// the account-nonce bookkeeping.
type AccountUpdateKind uint8

const (
	UpdateCreate AccountUpdateKind = iota
	UpdateDelete
	UpdateBalance
	UpdateChangePubKeyHash
)

// AccountUpdate is one entry of a commit-pipeline nonce update. Address
// is only meaningful for Create/Delete; Balance/ChangePubKeyHash events
// look the address up via the AccountID they carry.
type AccountUpdate struct {
	ID      AccountID
	Kind    AccountUpdateKind
	Address Address // used by Create/Delete
	Nonce   Nonce   // used by Create/UpdateBalance/ChangePubKeyHash
}

// Account is the committed state the mempool restores on start-up.
type Account struct {
	Address Address
	Nonce   Nonce
}

// ProposedBlock is the tuple handed to the block-production pipeline.
type ProposedBlock struct {
	PriorityOps []PriorityOp
	Txs         []SignedTxVariant
}

func (b ProposedBlock) IsEmpty() bool {
	return len(b.PriorityOps) == 0 && len(b.Txs) == 0
}
