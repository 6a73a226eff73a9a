package mempool

import "errors"

// TxAddError is the taxonomy of rejections the mempool core itself can
// produce. The admission surface as a whole defines additional
// caller-visible variants (IncorrectTx, TxFeeTooLow, ...) that belong
// to upstream signature/fee checking and never originate here; they
// have no sentinel in this package.
var (
	// ErrNonceMismatch: tx.nonce < the state's recorded nonce for the
	// sender at admission time.
	ErrNonceMismatch = errors.New("mempool: tx nonce is too low")

	// ErrDbError collapses any storage failure surfaced during
	// admission. No automatic retry happens inside the mempool.
	ErrDbError = errors.New("mempool: database unavailable")

	// ErrEmptyBatch: a NewBatch request arrived with zero transactions.
	ErrEmptyBatch = errors.New("mempool: transaction batch is empty")

	// ErrBatchTooBig: the batch's summed chunk cost exceeds
	// max_block_size_chunks, so it can never fit in any block.
	ErrBatchTooBig = errors.New("mempool: batch will not fit in any of supported block sizes")

	// ErrBatchWithdrawalsOverload: the batch contains more withdrawal
	// operations than max_number_of_withdrawals_per_block allows.
	ErrBatchWithdrawalsOverload = errors.New("mempool: number of withdrawals in batch is too big")

	// ErrOther is a catch-all for internal errors that are not one of
	// the above and not a storage error.
	ErrOther = errors.New("mempool: internal error")
)
