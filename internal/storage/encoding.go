package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/zksync-go/mempoold/internal/txmodel"
)

// The mempool and account schemas are encoded by hand with
// encoding/binary rather than a general-purpose serialization library:
// the retrieval pack's only prior art for wire encoding in this domain
// is go-ethereum's rlp package, which is not present in this checkout,
// and tinylib/msgp (seen in BridgeAtWestRoad-mjoy-go), which needs
// struct-tag code generation this repo has no generator target for.
// The schema below is small, fixed, and internal to this node, so a
// direct varint-prefixed encoding/binary layout is the least surprising choice
// available from the pack.

func putUvarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

func putBytes(dst []byte, b []byte) []byte {
	dst = putUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

type byteReader struct {
	b   []byte
	off int
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("storage: corrupt varint at offset %d", r.off)
	}
	r.off += n
	return v, nil
}

func (r *byteReader) bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if r.off+int(n) > len(r.b) {
		return nil, fmt.Errorf("storage: truncated bytes field")
	}
	out := r.b[r.off : r.off+int(n)]
	r.off += int(n)
	return out, nil
}

func encodeAccount(a txmodel.Account) []byte {
	buf := make([]byte, 0, 24)
	buf = append(buf, a.Address[:]...)
	buf = putUvarint(buf, uint64(a.Nonce))
	return buf
}

func decodeAccount(b []byte) (txmodel.Account, error) {
	if len(b) < 20 {
		return txmodel.Account{}, fmt.Errorf("storage: short account record")
	}
	var a txmodel.Account
	copy(a.Address[:], b[:20])
	r := &byteReader{b: b, off: 20}
	nonce, err := r.uvarint()
	if err != nil {
		return txmodel.Account{}, err
	}
	a.Nonce = txmodel.Nonce(nonce)
	return a, nil
}

func encodeTx(tx *txmodel.SignedTx) []byte {
	buf := make([]byte, 0, 64+len(tx.Payload))
	buf = append(buf, tx.Hash[:]...)
	buf = append(buf, tx.Sender[:]...)
	buf = append(buf, tx.Recipient[:]...)
	buf = putUvarint(buf, uint64(tx.Nonce))
	buf = append(buf, byte(tx.Kind))
	buf = putBytes(buf, tx.Payload)
	return buf
}

func decodeTx(b []byte) (txmodel.SignedTx, int, error) {
	if len(b) < 32+20+20+1+1 {
		return txmodel.SignedTx{}, 0, fmt.Errorf("storage: short tx record")
	}
	var tx txmodel.SignedTx
	copy(tx.Hash[:], b[0:32])
	copy(tx.Sender[:], b[32:52])
	copy(tx.Recipient[:], b[52:72])
	r := &byteReader{b: b, off: 72}
	nonce, err := r.uvarint()
	if err != nil {
		return txmodel.SignedTx{}, 0, err
	}
	tx.Nonce = txmodel.Nonce(nonce)
	if r.off >= len(b) {
		return txmodel.SignedTx{}, 0, fmt.Errorf("storage: missing operation kind")
	}
	tx.Kind = txmodel.OperationKind(b[r.off])
	r.off++
	payload, err := r.bytes()
	if err != nil {
		return txmodel.SignedTx{}, 0, err
	}
	tx.Payload = append([]byte(nil), payload...)
	return tx, r.off, nil
}

func encodeBatch(batch *txmodel.SignedTxsBatch) []byte {
	buf := make([]byte, 0, 128)
	buf = putUvarint(buf, batch.BatchID)
	buf = putBytes(buf, batch.EthSignature)
	buf = putUvarint(buf, uint64(len(batch.Txs)))
	for i := range batch.Txs {
		buf = append(buf, encodeTx(&batch.Txs[i])...)
	}
	return buf
}

func decodeBatch(b []byte) (txmodel.SignedTxsBatch, error) {
	r := &byteReader{b: b}
	id, err := r.uvarint()
	if err != nil {
		return txmodel.SignedTxsBatch{}, err
	}
	ethSig, err := r.bytes()
	if err != nil {
		return txmodel.SignedTxsBatch{}, err
	}
	count, err := r.uvarint()
	if err != nil {
		return txmodel.SignedTxsBatch{}, err
	}
	txs := make([]txmodel.SignedTx, 0, count)
	for i := uint64(0); i < count; i++ {
		tx, n, err := decodeTx(b[r.off:])
		if err != nil {
			return txmodel.SignedTxsBatch{}, err
		}
		r.off += n
		txs = append(txs, tx)
	}
	var sig []byte
	if len(ethSig) > 0 {
		sig = append([]byte(nil), ethSig...)
	}
	return txmodel.SignedTxsBatch{BatchID: id, Txs: txs, EthSignature: sig}, nil
}
