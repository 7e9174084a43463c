package da

import "github.com/vireo-chain/core/crypto"

// MerkleProof is an authentication path for one shard against a root.
type MerkleProof struct {
	Root  [32]byte
	Index uint32
	Path  [][32]byte
}

func merkleHash(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return crypto.Digest(buf)
}

func merkleRoot(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	level := leaves
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			l := level[i]
			r := l
			if i+1 < len(level) {
				r = level[i+1]
			}
			next = append(next, merkleHash(l, r))
		}
		level = next
	}
	return level[0]
}

func merklePath(leaves [][32]byte, idx int) [][32]byte {
	var path [][32]byte
	level := leaves
	i := idx
	for len(level) > 1 {
		var sib [32]byte
		if i%2 == 0 {
			if i+1 < len(level) {
				sib = level[i+1]
			} else {
				sib = level[i]
			}
		} else {
			sib = level[i-1]
		}
		path = append(path, sib)
		i /= 2

		next := make([][32]byte, 0, (len(level)+1)/2)
		for j := 0; j < len(level); j += 2 {
			l := level[j]
			r := l
			if j+1 < len(level) {
				r = level[j+1]
			}
			next = append(next, merkleHash(l, r))
		}
		level = next
	}
	return path
}

// VerifyProof recomputes the root from leaf along the proof's path; the
// current node is on the left when its index is even, right when odd,
// halving the index each step.
func VerifyProof(p MerkleProof, leaf [32]byte) bool {
	cur := leaf
	idx := p.Index
	for _, sib := range p.Path {
		if idx%2 == 0 {
			cur = merkleHash(cur, sib)
		} else {
			cur = merkleHash(sib, cur)
		}
		idx /= 2
	}
	return cur == p.Root
}
