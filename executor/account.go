// Package executor applies committed batches to account state: a
// serial reference implementation and a Block-STM-style optimistic
// parallel implementation that must produce identical receipts and
// final state for any batch whose conflict graph is acyclic within the
// retry bound.
package executor

import (
	"errors"
	"sync"

	"github.com/vireo-chain/core/types"
)

// ErrInsufficientFunds is the deterministic rejection reason for a debit
// that exceeds the sender's balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrConflict is the deterministic rejection reason for a transaction
// that still conflicts with a concurrent mutation after MaxRetries
// optimistic rounds.
var ErrConflict = errors.New("conflict")

// AccountState is one account's externally visible snapshot: address,
// per-block OCC version, balance, and the height it was last mutated at.
type AccountState struct {
	Addr             string
	Ver              uint64
	Bal              uint64
	LastUpdateHeight uint64
}

// record is the internal (ver, bal, last_update_height) triple kept
// under accounts.mu.
type record struct {
	ver uint64
	bal uint64
	h   uint64
}

// Executor is the interface both the serial and optimistic-parallel
// implementations satisfy; node.Node depends only on this.
type Executor interface {
	Balance(addr string) uint64
	ApplyBatchBlocking(batch types.Batch, blockHeight uint64) []types.Receipt
	LastHeight() uint64
	Snapshot() []AccountState
	DiffSince(since uint64) []AccountState
	Restore(replace bool, items []AccountState)
}

// accounts is the shared map guarded by a single reader/writer lock,
// matching the teacher's own sync.RWMutex-guarded counters
// (metrics/metric.go) translated from the original's parking_lot::RwLock.
type accounts struct {
	mu   sync.RWMutex
	m    map[string]record
	hMu  sync.RWMutex
	last uint64
}

func newAccounts() *accounts {
	return &accounts{m: make(map[string]record)}
}

func (a *accounts) get(addr string) record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.m[addr]
}

func (a *accounts) snapshotMap() map[string]record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]record, len(a.m))
	for k, v := range a.m {
		out[k] = v
	}
	return out
}

func (a *accounts) credit(addr string, amount, h uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.m[addr]
	r.ver++
	r.bal += amount
	r.h = h
	a.m[addr] = r
}

func (a *accounts) debit(addr string, amount, h uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.m[addr]
	if r.bal < amount {
		return ErrInsufficientFunds
	}
	r.ver++
	r.bal -= amount
	r.h = h
	a.m[addr] = r
	return nil
}

func (a *accounts) setLastHeight(h uint64) {
	a.hMu.Lock()
	a.last = h
	a.hMu.Unlock()
}

func (a *accounts) lastHeight() uint64 {
	a.hMu.RLock()
	defer a.hMu.RUnlock()
	return a.last
}

func (a *accounts) snapshotStates() []AccountState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]AccountState, 0, len(a.m))
	for addr, r := range a.m {
		out = append(out, AccountState{Addr: addr, Ver: r.ver, Bal: r.bal, LastUpdateHeight: r.h})
	}
	return out
}

func (a *accounts) diffSince(since uint64) []AccountState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]AccountState, 0)
	for addr, r := range a.m {
		if r.h > since {
			out = append(out, AccountState{Addr: addr, Ver: r.ver, Bal: r.bal, LastUpdateHeight: r.h})
		}
	}
	return out
}

func (a *accounts) restore(replace bool, items []AccountState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if replace {
		a.m = make(map[string]record, len(items))
	}
	for _, it := range items {
		a.m[it.Addr] = record{ver: it.Ver, bal: it.Bal, h: it.LastUpdateHeight}
	}
}
