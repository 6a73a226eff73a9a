package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zksync-go/mempoold/internal/txmodel"
)

func TestEncodeDecodeAccount_RoundTrip(t *testing.T) {
	want := txmodel.Account{Address: [20]byte{1, 2, 3}, Nonce: 42}
	got, err := decodeAccount(encodeAccount(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestEncodeDecodeTx_RoundTrip(t *testing.T) {
	want := txmodel.SignedTx{
		Hash:      [32]byte{9, 9, 9},
		Sender:    [20]byte{1},
		Recipient: [20]byte{2},
		Nonce:     7,
		Kind:      txmodel.OpTransfer,
		Payload:   []byte("payload-bytes"),
	}
	encoded := encodeTx(&want)
	got, n, err := decodeTx(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.Equal(t, want.Hash, got.Hash)
	require.Equal(t, want.Sender, got.Sender)
	require.Equal(t, want.Recipient, got.Recipient)
	require.Equal(t, want.Nonce, got.Nonce)
	require.Equal(t, want.Kind, got.Kind)
	require.Equal(t, want.Payload, got.Payload)
}

func TestEncodeDecodeTx_EmptyPayload(t *testing.T) {
	want := txmodel.SignedTx{Kind: txmodel.OpWithdraw}
	got, _, err := decodeTx(encodeTx(&want))
	require.NoError(t, err)
	require.Empty(t, got.Payload)
}

func TestEncodeDecodeBatch_RoundTrip(t *testing.T) {
	want := txmodel.SignedTxsBatch{
		BatchID:      12,
		EthSignature: []byte("sig-bytes"),
		Txs: []txmodel.SignedTx{
			{Sender: [20]byte{1}, Nonce: 1, Kind: txmodel.OpChangePubKey},
			{Sender: [20]byte{2}, Nonce: 2, Kind: txmodel.OpTransfer, Recipient: [20]byte{3}, Payload: []byte("x")},
		},
	}
	got, err := decodeBatch(encodeBatch(&want))
	require.NoError(t, err)
	require.Equal(t, want.BatchID, got.BatchID)
	require.Equal(t, want.EthSignature, got.EthSignature)
	require.Len(t, got.Txs, len(want.Txs))
	for i := range want.Txs {
		require.Equal(t, want.Txs[i].Sender, got.Txs[i].Sender)
		require.Equal(t, want.Txs[i].Nonce, got.Txs[i].Nonce)
	}
}

func TestEncodeDecodeBatch_NoEthSignature(t *testing.T) {
	want := txmodel.SignedTxsBatch{BatchID: 1, Txs: []txmodel.SignedTx{{Kind: txmodel.OpSwap}}}
	got, err := decodeBatch(encodeBatch(&want))
	require.NoError(t, err)
	require.Nil(t, got.EthSignature)
}

func TestDecodeAccount_RejectsShortRecord(t *testing.T) {
	_, err := decodeAccount([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeTx_RejectsTruncatedBytesField(t *testing.T) {
	encoded := encodeTx(&txmodel.SignedTx{Payload: []byte("abcdef")})
	_, _, err := decodeTx(encoded[:len(encoded)-3])
	require.Error(t, err)
}
