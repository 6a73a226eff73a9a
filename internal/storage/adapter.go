package storage

import "github.com/zksync-go/mempoold/internal/mempool"

// Adapter narrows *Store to the mempool.Storage interface. *Store's
// Begin returns the package's own *Tx for callers that want the
// concrete type (tests, restore tooling); Adapter.Begin re-exposes it
// as the mempool.StorageTx interface spec.md frames storage behind.
type Adapter struct {
	*Store
}

func (a Adapter) Begin() (mempool.StorageTx, error) {
	return a.Store.Begin()
}
