// Package rbc implements the Bracha-style reliable-broadcast state
// machine: shard/echo/ready dissemination converging on a reconstructed
// payload that is byte-identical at every honest replica.
package rbc

import (
	"time"

	"github.com/vireo-chain/core/da"
)

// rootState is the per-root bookkeeping: received shards, echo/ready
// signer sets, and the reconstructed payload once available.
type rootState struct {
	shards       map[uint32][]byte
	echo         map[uint32]bool
	ready        map[uint32]bool
	payload      []byte
	lastActivity time.Time
}

// State is the RBC state machine for one node, keyed by Merkle root.
// Entries are never garbage-collected automatically; call Prune
// periodically to bound memory on long-running nodes.
type State struct {
	roots map[[32]byte]*rootState
}

// New returns an empty RBC state machine.
func New() *State {
	return &State{roots: make(map[[32]byte]*rootState)}
}

func (s *State) get(root [32]byte) *rootState {
	st, ok := s.roots[root]
	if !ok {
		st = &rootState{
			shards: make(map[uint32][]byte),
			echo:   make(map[uint32]bool),
			ready:  make(map[uint32]bool),
		}
		s.roots[root] = st
	}
	st.lastActivity = time.Now()
	return st
}

// OnShard verifies bytes against proof and, if valid, records the shard
// and attempts reconstruction. Returns true if the shard was accepted
// (a failing proof is a silent rejection, not an error, per the
// failure-semantics contract).
func (s *State) OnShard(root [32]byte, idx uint32, bytes []byte, proof da.MerkleProof, k, m uint32) bool {
	if !da.VerifyProof(proof, da.Digest(bytes)) {
		return false
	}
	st := s.get(root)
	if st.payload == nil {
		st.shards[idx] = bytes
		s.tryReconstruct(root, k, m)
	}
	return true
}

func (s *State) tryReconstruct(root [32]byte, k, m uint32) bool {
	st := s.roots[root]
	if st == nil {
		return false
	}
	if st.payload != nil {
		return true
	}
	if uint32(len(st.shards)) < k {
		return false
	}
	payload, err := da.Reconstruct(k, m, st.shards)
	if err != nil {
		return false
	}
	st.payload = payload
	return true
}

// OnEcho records a verified Echo signer. The caller is responsible for
// signature verification before calling this (echo set membership is
// idempotent). Returns the current echo-set size for the driver to
// compare against its n-f threshold.
func (s *State) OnEcho(root [32]byte, sender uint32) int {
	st := s.get(root)
	st.echo[sender] = true
	return len(st.echo)
}

// OnReady records a verified Ready signer and returns the current
// ready-set size plus whether the payload is reconstructed locally —
// together these are the delivery predicate (|Ready| >= 2f+1 AND
// reconstructed).
func (s *State) OnReady(root [32]byte, sender uint32) (readyCount int, hasPayload bool) {
	st := s.get(root)
	st.ready[sender] = true
	return len(st.ready), st.payload != nil
}

// HasPayload reports whether root has been reconstructed locally.
func (s *State) HasPayload(root [32]byte) bool {
	st, ok := s.roots[root]
	return ok && st.payload != nil
}

// Payload returns the reconstructed payload for root, if any.
func (s *State) Payload(root [32]byte) ([]byte, bool) {
	st, ok := s.roots[root]
	if !ok || st.payload == nil {
		return nil, false
	}
	return st.payload, true
}

// ReadySigners returns the current Ready signer set for root, used to
// build a DaProof once the delivery predicate holds.
func (s *State) ReadySigners(root [32]byte) []uint32 {
	st, ok := s.roots[root]
	if !ok {
		return nil
	}
	out := make([]uint32, 0, len(st.ready))
	for id := range st.ready {
		out = append(out, id)
	}
	return out
}

// Prune drops root entries whose last activity is older than
// olderThan. This bounds the otherwise-unbounded root map on
// long-running nodes; roots still actively accumulating shards/echoes/
// readies are untouched regardless of age.
func (s *State) Prune(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for root, st := range s.roots {
		if st.lastActivity.Before(cutoff) {
			delete(s.roots, root)
			removed++
		}
	}
	return removed
}

// Len reports the number of roots currently tracked, for tests and
// metrics.
func (s *State) Len() int { return len(s.roots) }
