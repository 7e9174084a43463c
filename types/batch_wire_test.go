package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatchEncodeDecodeRoundTrip(t *testing.T) {
	b := Batch{
		ID: 7,
		Txs: []Tx{
			NewTx(Transfer{From: "alice", To: "bob", Amount: 5, Nonce: 1}),
			NewTx(Transfer{From: "alice", To: "carol", Amount: 0, Nonce: 2, Payload: []byte{1, 2, 3}}),
		},
	}
	encoded := EncodeBatch(b)
	require.NotEqual(t, byte(0x00), encoded[len(encoded)-1])

	got, err := DecodeBatch(encoded)
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestBatchEncodeEmptyTxs(t *testing.T) {
	b := Batch{ID: 1, Txs: nil}
	encoded := EncodeBatch(b)
	got, err := DecodeBatch(encoded)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.ID)
	require.Empty(t, got.Txs)
}
