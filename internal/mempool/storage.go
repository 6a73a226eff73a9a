package mempool

import "github.com/zksync-go/mempoold/internal/txmodel"

// Storage is the durable collaborator MempoolState and AdmissionWorker
// depend on. internal/storage.Store implements it; tests use a fake.
// Keeping this as an interface (rather than importing internal/storage
// directly) matches spec.md's framing of storage as an external
// collaborator "specified only by interface".
type Storage interface {
	LoadCommittedState() (map[txmodel.AccountID]txmodel.Account, error)
	LoadTxs() ([]txmodel.SignedTxVariant, error)
	CollectGarbage(committed map[txmodel.Address]txmodel.Nonce) error
	Begin() (StorageTx, error)
}

// StorageTx is one begin/commit-scoped mempool_schema write.
type StorageTx interface {
	InsertTx(tx *txmodel.SignedTx) error
	InsertBatch(txs []txmodel.SignedTx, ethSignature []byte) (uint64, error)
	Commit() error
	Close() error
}
