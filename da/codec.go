// Package da implements the erasure-coded data-availability layer: a
// systematic Reed-Solomon codec over GF(2^8) committed to with a
// BLAKE3 Merkle tree.
package da

import (
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/vireo-chain/core/crypto"
)

// ErrNotReconstructable is returned when fewer than k distinct,
// proof-verified shards are available for a root. It is not a fault —
// the caller should retry once more shards arrive.
var ErrNotReconstructable = errors.New("da: not yet reconstructable")

// DaProof witnesses that at least 2f+1 validators have committed to
// deliver the payload with this Merkle root.
type DaProof struct {
	ReadySigners []uint32
	MerkleRoot   [32]byte
	K            uint32
	M            uint32
}

// Shard is one erasure-coded piece of a payload, together with its
// Merkle authentication path against the payload's commitment root.
type Shard struct {
	Index uint32
	K     uint32
	M     uint32
	Bytes []byte
	Proof MerkleProof
}

// Digest returns the BLAKE3 leaf digest of a shard's bytes.
func Digest(b []byte) [32]byte { return crypto.Digest(b) }

// Encode splits payload into k data shards (zero-padded to a common
// length) and m parity shards, and commits to all k+m shards with a
// Merkle tree. Shard length is ceil(len(payload)/k), minimum 1.
func Encode(payload []byte, k, m uint32) ([]Shard, error) {
	if k == 0 {
		return nil, fmt.Errorf("da: encode: k must be > 0")
	}
	enc, err := reedsolomon.New(int(k), int(m))
	if err != nil {
		return nil, fmt.Errorf("da: encode: new reedsolomon: %w", err)
	}

	shardLen := (len(payload) + int(k) - 1) / int(k)
	if shardLen < 1 {
		shardLen = 1
	}

	shards := make([][]byte, k+m)
	for i := range shards {
		shards[i] = make([]byte, shardLen)
	}
	for i := 0; i < int(k); i++ {
		start := i * shardLen
		end := start + shardLen
		if end > len(payload) {
			end = len(payload)
		}
		if start < end {
			copy(shards[i], payload[start:end])
		}
	}

	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("da: encode: rs encode: %w", err)
	}

	leaves := make([][32]byte, len(shards))
	for i, s := range shards {
		leaves[i] = Digest(s)
	}
	root := merkleRoot(leaves)

	out := make([]Shard, len(shards))
	for i, b := range shards {
		out[i] = Shard{
			Index: uint32(i),
			K:     k,
			M:     m,
			Bytes: b,
			Proof: MerkleProof{Root: root, Index: uint32(i), Path: merklePath(leaves, i)},
		}
	}
	return out, nil
}

// Reconstruct decodes the original payload from any k of the k+m
// shards, given they are distinct indices and their Merkle proofs have
// already been verified by the caller (rbc.State does this on receipt).
// Trailing zero bytes are trimmed to recover the original length; this
// assumes the serialized payload never ends in a zero byte (true for the
// canonical Batch encoding used by this repo — see types.EncodeBatch).
func Reconstruct(k, m uint32, have map[uint32][]byte) ([]byte, error) {
	if uint32(len(have)) < k {
		return nil, ErrNotReconstructable
	}
	total := int(k + m)
	shards := make([][]byte, total)
	var shardLen int
	for idx, b := range have {
		if int(idx) >= total {
			continue
		}
		shards[idx] = b
		if shardLen == 0 {
			shardLen = len(b)
		}
	}
	present := 0
	for _, s := range shards {
		if s != nil {
			present++
		}
	}
	if uint32(present) < k {
		return nil, ErrNotReconstructable
	}

	enc, err := reedsolomon.New(int(k), int(m))
	if err != nil {
		return nil, fmt.Errorf("da: reconstruct: new reedsolomon: %w", err)
	}
	if err := enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("da: reconstruct: %w", err)
	}

	out := make([]byte, 0, int(k)*shardLen)
	for i := 0; i < int(k); i++ {
		out = append(out, shards[i]...)
	}
	for len(out) > 0 && out[len(out)-1] == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}
