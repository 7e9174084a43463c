package types

import (
	"encoding/binary"
	"fmt"
)

// EncodeBatch produces the canonical byte encoding of a Batch used as
// the DA payload. A single 0x01 tail byte is always appended after the
// real content, which guarantees the encoding never ends in 0x00 —
// satisfying the DA codec's trailing-zero-trim assumption by
// construction rather than by accident (see da.Reconstruct).
func EncodeBatch(b Batch) []byte {
	buf := make([]byte, 0, 64+64*len(b.Txs))
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], b.ID)
	buf = append(buf, id[:]...)

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b.Txs)))
	buf = append(buf, n[:]...)

	for _, tx := range b.Txs {
		buf = append(buf, tx.ID[:]...)
		buf = appendString(buf, tx.Transfer.From)
		buf = appendString(buf, tx.Transfer.To)

		var amt, nonce [8]byte
		binary.BigEndian.PutUint64(amt[:], tx.Transfer.Amount)
		binary.BigEndian.PutUint64(nonce[:], tx.Transfer.Nonce)
		buf = append(buf, amt[:]...)
		buf = append(buf, nonce[:]...)
		buf = appendBytes(buf, tx.Transfer.Payload)

		var ts [8]byte
		binary.BigEndian.PutUint64(ts[:], uint64(tx.SubmittedUnixMs))
		buf = append(buf, ts[:]...)
	}
	return append(buf, 0x01)
}

func appendString(buf []byte, s string) []byte { return appendBytes(buf, []byte(s)) }

func appendBytes(buf []byte, b []byte) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	buf = append(buf, n[:]...)
	return append(buf, b...)
}

// DecodeBatch parses bytes produced by EncodeBatch.
func DecodeBatch(data []byte) (Batch, error) {
	if len(data) < 1 || data[len(data)-1] != 0x01 {
		return Batch{}, fmt.Errorf("types: decode batch: missing tail marker")
	}
	data = data[:len(data)-1]

	off := 0
	need := func(n int) error {
		if off+n > len(data) {
			return fmt.Errorf("types: decode batch: truncated")
		}
		return nil
	}
	if err := need(12); err != nil {
		return Batch{}, err
	}
	id := binary.BigEndian.Uint64(data[off:])
	off += 8
	n := binary.BigEndian.Uint32(data[off:])
	off += 4

	readBytes := func() ([]byte, error) {
		if err := need(4); err != nil {
			return nil, err
		}
		l := binary.BigEndian.Uint32(data[off:])
		off += 4
		if err := need(int(l)); err != nil {
			return nil, err
		}
		if l == 0 {
			return nil, nil
		}
		out := make([]byte, l)
		copy(out, data[off:off+int(l)])
		off += int(l)
		return out, nil
	}

	txs := make([]Tx, n)
	for i := range txs {
		if err := need(32); err != nil {
			return Batch{}, err
		}
		var txID TxId
		copy(txID[:], data[off:off+32])
		off += 32

		from, err := readBytes()
		if err != nil {
			return Batch{}, err
		}
		to, err := readBytes()
		if err != nil {
			return Batch{}, err
		}
		if err := need(16); err != nil {
			return Batch{}, err
		}
		amount := binary.BigEndian.Uint64(data[off:])
		off += 8
		nonce := binary.BigEndian.Uint64(data[off:])
		off += 8
		payload, err := readBytes()
		if err != nil {
			return Batch{}, err
		}
		if err := need(8); err != nil {
			return Batch{}, err
		}
		submitted := int64(binary.BigEndian.Uint64(data[off:]))
		off += 8

		txs[i] = Tx{
			ID: txID,
			Transfer: Transfer{
				From:    string(from),
				To:      string(to),
				Amount:  amount,
				Nonce:   nonce,
				Payload: payload,
			},
			SubmittedUnixMs: submitted,
		}
	}

	return Batch{ID: id, Txs: txs}, nil
}
