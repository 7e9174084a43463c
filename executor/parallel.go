package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vireo-chain/core/metrics"
	"github.com/vireo-chain/core/types"
)

// MaxRetries bounds the number of optimistic re-execution rounds
// BlockStmExecutor runs before finalizing any still-unfilled tx as
// Rejected("conflict").
const MaxRetries = 5

// BlockStmExecutor is the default executor: an optimistic multi-version
// parallel applier over a shared accounts map, with bounded
// conflict-retry. It shares its account store with a SimpleExecutor so
// both can be pointed at the same live state (e.g. during a migration
// from one execution strategy to the other), though in normal operation
// a node runs exactly one of the two.
type BlockStmExecutor struct {
	accounts *accounts
	log      *zap.SugaredLogger
	metrics  *metrics.Executor
}

// NewBlockStmExecutor builds an optimistic-parallel executor sharing
// account state with inner.
func NewBlockStmExecutor(inner *SimpleExecutor, log *zap.SugaredLogger, m *metrics.Executor) *BlockStmExecutor {
	return &BlockStmExecutor{accounts: inner.accounts, log: log, metrics: m}
}

// Balance returns an address's current balance, or 0 if unknown.
func (e *BlockStmExecutor) Balance(addr string) uint64 { return e.accounts.get(addr).bal }

// ApplyBatchBlocking applies batch optimistically: each round takes a
// read-snapshot of the account map, attempts every still-unfilled tx
// against it, and commits only those whose source/destination versions
// are unchanged from the snapshot at write time. Txs that keep
// conflicting past MaxRetries rounds are rejected rather than silently
// reordered.
func (e *BlockStmExecutor) ApplyBatchBlocking(batch types.Batch, blockHeight uint64) []types.Receipt {
	if e.metrics != nil {
		timer := prometheus.NewTimer(e.metrics.ApplyBatch)
		defer timer.ObserveDuration()
	}

	e.accounts.setLastHeight(blockHeight)
	txs := batch.Txs
	receipts := make([]*types.Receipt, len(txs))

	for round := 0; round < MaxRetries; round++ {
		snapshot := e.accounts.snapshotMap()
		remaining := false
		blocked := false
		for i, tx := range txs {
			if receipts[i] != nil {
				continue
			}
			from := snapshot[tx.Transfer.From]
			to := snapshot[tx.Transfer.To]

			if from.bal < tx.Transfer.Amount {
				// A commit earlier in this round, or an earlier tx still
				// unfilled, may yet fund the sender: reject only when every
				// earlier tx is final and the live balance is still short.
				if !blocked && e.accounts.get(tx.Transfer.From).bal < tx.Transfer.Amount {
					receipts[i] = e.reject(tx, blockHeight, ErrInsufficientFunds)
					continue
				}
				remaining = true
				blocked = true
				continue
			}

			if e.tryCommit(tx, from, to, blockHeight) {
				receipts[i] = e.commit(tx, blockHeight)
			} else {
				remaining = true
				blocked = true
				if e.metrics != nil && round > 0 {
					e.metrics.Retries.Inc()
				} else if e.metrics != nil {
					e.metrics.Conflicts.Inc()
				}
			}
		}
		if !remaining {
			break
		}
	}

	for i, tx := range txs {
		if receipts[i] == nil {
			receipts[i] = e.reject(tx, blockHeight, ErrConflict)
		}
	}

	out := make([]types.Receipt, len(receipts))
	for i, r := range receipts {
		out[i] = *r
	}
	return out
}

// tryCommit re-reads the live (ver, bal) for both addresses under the
// write lock; if both versions still match the read-snapshot and the
// sender still has sufficient balance, it applies both mutations
// atomically and reports success.
func (e *BlockStmExecutor) tryCommit(tx types.Tx, fromSnap, toSnap record, blockHeight uint64) bool {
	e.accounts.mu.Lock()
	defer e.accounts.mu.Unlock()

	from := e.accounts.m[tx.Transfer.From]
	to := e.accounts.m[tx.Transfer.To]
	if from.ver != fromSnap.ver || to.ver != toSnap.ver || from.bal < tx.Transfer.Amount {
		return false
	}

	from.ver++
	from.bal -= tx.Transfer.Amount
	from.h = blockHeight
	e.accounts.m[tx.Transfer.From] = from

	to.ver++
	to.bal += tx.Transfer.Amount
	to.h = blockHeight
	e.accounts.m[tx.Transfer.To] = to
	return true
}

func (e *BlockStmExecutor) commit(tx types.Tx, blockHeight uint64) *types.Receipt {
	return &types.Receipt{
		TxID:        tx.ID,
		Status:      types.Committed,
		BlockHeight: blockHeight,
		LatencyMs:   types.NowMs() - tx.SubmittedUnixMs,
	}
}

func (e *BlockStmExecutor) reject(tx types.Tx, blockHeight uint64, err error) *types.Receipt {
	return &types.Receipt{
		TxID:        tx.ID,
		Status:      types.Rejected(err.Error()),
		BlockHeight: blockHeight,
		LatencyMs:   types.NowMs() - tx.SubmittedUnixMs,
	}
}

// LastHeight returns the height of the most recently applied batch.
func (e *BlockStmExecutor) LastHeight() uint64 { return e.accounts.lastHeight() }

// Snapshot returns every account's current state.
func (e *BlockStmExecutor) Snapshot() []AccountState { return e.accounts.snapshotStates() }

// DiffSince returns accounts mutated after height since.
func (e *BlockStmExecutor) DiffSince(since uint64) []AccountState {
	return e.accounts.diffSince(since)
}

// Restore clears (if replace) and upserts the given account states.
func (e *BlockStmExecutor) Restore(replace bool, items []AccountState) {
	e.accounts.restore(replace, items)
}
