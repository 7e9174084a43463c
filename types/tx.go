// Package types holds the transfer/transaction/batch/receipt data model
// shared by the mempool, consensus, and executor layers.
package types

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/vireo-chain/core/crypto"
)

// TxId is the 32-byte content hash of a transfer's fields.
type TxId [32]byte

// Transfer is a balance-transfer instruction between two opaque
// account identifiers.
type Transfer struct {
	From    string
	To      string
	Amount  uint64
	Nonce   uint64
	Payload []byte
}

// Tx wraps a Transfer with its content-addressed id and submission
// timestamp.
type Tx struct {
	ID               TxId
	Transfer         Transfer
	SubmittedUnixMs  int64
}

// NewTx builds a Tx, computing its id and stamping the current time.
func NewTx(t Transfer) Tx {
	return Tx{
		ID:              MakeTxID(t),
		Transfer:        t,
		SubmittedUnixMs: NowMs(),
	}
}

// MakeTxID computes id = BLAKE3(from || to || amount_le64 || nonce_le64 || payload?).
func MakeTxID(t Transfer) TxId {
	buf := make([]byte, 0, len(t.From)+len(t.To)+16+len(t.Payload))
	buf = append(buf, []byte(t.From)...)
	buf = append(buf, []byte(t.To)...)
	var amt, nonce [8]byte
	binary.LittleEndian.PutUint64(amt[:], t.Amount)
	binary.LittleEndian.PutUint64(nonce[:], t.Nonce)
	buf = append(buf, amt[:]...)
	buf = append(buf, nonce[:]...)
	if t.Payload != nil {
		buf = append(buf, t.Payload...)
	}
	return TxId(crypto.Digest(buf))
}

// Batch is an ordered sequence of transactions, tagged with a
// monotonically increasing per-mempool-instance id.
type Batch struct {
	ID  uint64
	Txs []Tx
}

// Status is the terminal disposition of a transaction.
type Status struct {
	Committed bool
	Reason    string // non-empty iff !Committed
}

// Committed is the canonical accepted status.
var Committed = Status{Committed: true}

// Rejected builds a rejection status carrying a human-readable reason.
func Rejected(reason string) Status {
	return Status{Committed: false, Reason: reason}
}

// Receipt records the terminal outcome of one transaction.
type Receipt struct {
	TxID        TxId
	Status      Status
	BlockHeight uint64
	LatencyMs   int64
}

// NowMs returns the current Unix time in milliseconds.
func NowMs() int64 { return time.Now().UnixMilli() }

// SubmitApi is the RPC contract the core exposes to the (external,
// out-of-scope) client-facing server: submit a transfer and block up to
// a bounded timeout for its commit, or query a balance.
type SubmitApi interface {
	SubmitTransfer(ctx context.Context, t Transfer) (Receipt, error)
	GetBalance(ctx context.Context, addr string) (uint64, error)
}
