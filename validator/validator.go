// Package validator holds the fixed validator set: identities, quorum
// arithmetic, and leader rotation.
package validator

import (
	"fmt"

	"github.com/vireo-chain/core/crypto"
)

// Validator is one member of the fixed validator set.
type Validator struct {
	ID   uint32
	Addr string
	Pub  crypto.PubKey
}

// Set is the fixed validator registry for one node. self_id plus an
// ordered sequence of validators; f = floor((n-1)/3), quorum = 2f+1,
// leader(view) = validators[(view-1) mod n] with views starting at 1.
type Set struct {
	SelfID uint32
	Nodes  []Validator
}

// Len returns the number of validators in the set.
func (s *Set) Len() int { return len(s.Nodes) }

// F is the maximum tolerated number of Byzantine faults.
func (s *Set) F() int {
	n := s.Len()
	if n == 0 {
		return 0
	}
	return (n - 1) / 3
}

// Quorum is the number of validators required to form a certificate.
func (s *Set) Quorum() int { return 2*s.F() + 1 }

// LeaderFor returns the leader validator for the given view (views
// start at 1).
func (s *Set) LeaderFor(view uint64) Validator {
	idx := int((view - 1) % uint64(s.Len()))
	return s.Nodes[idx]
}

// Peers returns every validator except self.
func (s *Set) Peers() []Validator {
	out := make([]Validator, 0, len(s.Nodes)-1)
	for _, v := range s.Nodes {
		if v.ID != s.SelfID {
			out = append(out, v)
		}
	}
	return out
}

// GetPub looks up a validator's public key by id.
func (s *Set) GetPub(id uint32) (crypto.PubKey, bool) {
	for _, v := range s.Nodes {
		if v.ID == id {
			return v.Pub, true
		}
	}
	return crypto.PubKey{}, false
}

// KeySet holds this node's secret key, its public key, and the
// set-wide public key map needed to verify peer signatures.
type KeySet struct {
	MySK crypto.SecretKey
	MyPK crypto.PubKey
	PKs  map[uint32]crypto.PubKey
}

// Sign signs bytes with this node's secret key.
func (k *KeySet) Sign(domain string, data []byte) crypto.Sig {
	return crypto.SignTagged(k.MySK, domain, data)
}

// Verify checks a signature against a voter's registered public key.
func (k *KeySet) Verify(voter uint32, domain string, data []byte, sig crypto.Sig) bool {
	pk, ok := k.PKs[voter]
	if !ok {
		return false
	}
	return crypto.VerifyTagged(pk, domain, data, sig)
}

// NewKeySet builds a KeySet from a Set, deriving the public-key map from
// the validator list.
func NewKeySet(sk crypto.SecretKey, pk crypto.PubKey, set *Set) *KeySet {
	pks := make(map[uint32]crypto.PubKey, len(set.Nodes))
	for _, v := range set.Nodes {
		pks[v.ID] = v.Pub
	}
	return &KeySet{MySK: sk, MyPK: pk, PKs: pks}
}

// Validate checks basic well-formedness of the set: self must be a
// member, and ids must be unique.
func (s *Set) Validate() error {
	seen := make(map[uint32]bool, len(s.Nodes))
	foundSelf := false
	for _, v := range s.Nodes {
		if seen[v.ID] {
			return fmt.Errorf("validator: duplicate id %d", v.ID)
		}
		seen[v.ID] = true
		if v.ID == s.SelfID {
			foundSelf = true
		}
	}
	if !foundSelf {
		return fmt.Errorf("validator: self id %d not present in set", s.SelfID)
	}
	return nil
}
