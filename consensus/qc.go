// Package consensus implements the single-vote HotStuff-style driver:
// view progression, proposal, vote aggregation, timeout, and commit.
package consensus

import (
	"encoding/binary"

	"github.com/vireo-chain/core/crypto"
	"github.com/vireo-chain/core/validator"
)

// Signed pairs a voter id with its signature.
type Signed struct {
	Voter uint32
	Sig   crypto.Sig
}

// QuorumCert proves that at least 2f+1 validators voted for (view, root).
type QuorumCert struct {
	View   uint64
	Root   [32]byte
	Voters []uint32
	Sigs   []Signed
}

// TimeoutCert proves that at least 2f+1 validators timed out view.
type TimeoutCert struct {
	View uint64
	Sigs []Signed
}

func viewBytes(view uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], view)
	return b[:]
}

func voteDigestInput(view uint64, root [32]byte) []byte {
	b := make([]byte, 0, 40)
	b = append(b, viewBytes(view)...)
	b = append(b, root[:]...)
	return b
}

// VerifyQC checks that a QuorumCert meets quorum and every signature is
// valid against the VOTE domain for (view, root).
func VerifyQC(set *validator.Set, qc QuorumCert) bool {
	if len(qc.Sigs) < set.Quorum() {
		return false
	}
	data := voteDigestInput(qc.View, qc.Root)
	seen := make(map[uint32]bool, len(qc.Sigs))
	valid := 0
	for _, s := range qc.Sigs {
		if seen[s.Voter] {
			continue
		}
		seen[s.Voter] = true
		pk, ok := set.GetPub(s.Voter)
		if !ok {
			return false
		}
		if !crypto.VerifyTagged(pk, crypto.DomainVote, data, s.Sig) {
			return false
		}
		valid++
	}
	return valid >= set.Quorum()
}

// VerifyTC checks that a TimeoutCert carries at least a quorum of valid
// signatures from distinct known validators over the TIMEOUT domain for
// view. Signatures from unknown validators or that fail to verify are
// not counted; they do not by themselves invalidate the certificate.
func VerifyTC(set *validator.Set, tc TimeoutCert) bool {
	if len(tc.Sigs) < set.Quorum() {
		return false
	}
	data := viewBytes(tc.View)
	seen := make(map[uint32]bool, len(tc.Sigs))
	valid := 0
	for _, s := range tc.Sigs {
		if seen[s.Voter] {
			continue
		}
		seen[s.Voter] = true
		pk, ok := set.GetPub(s.Voter)
		if !ok {
			continue
		}
		if crypto.VerifyTagged(pk, crypto.DomainTimeout, data, s.Sig) {
			valid++
		}
	}
	return valid >= set.Quorum()
}
