package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vireo-chain/core/metrics"
	"github.com/vireo-chain/core/types"
)

// SimpleExecutor applies a batch's transactions one at a time, in
// order, under the shared accounts lock. It is the serial reference
// implementation: its receipts and final state must match
// BlockStmExecutor's for any batch.
type SimpleExecutor struct {
	accounts *accounts
	log      *zap.SugaredLogger
	metrics  *metrics.Executor
}

// NewSimpleExecutor builds an executor with an empty account map.
func NewSimpleExecutor(log *zap.SugaredLogger, m *metrics.Executor) *SimpleExecutor {
	return &SimpleExecutor{accounts: newAccounts(), log: log, metrics: m}
}

// Balance returns an address's current balance, or 0 if unknown.
func (e *SimpleExecutor) Balance(addr string) uint64 {
	return e.accounts.get(addr).bal
}

// ApplyBatchBlocking debits each tx's sender and credits its recipient
// in order, rejecting a tx whose sender balance is insufficient.
func (e *SimpleExecutor) ApplyBatchBlocking(batch types.Batch, blockHeight uint64) []types.Receipt {
	if e.metrics != nil {
		timer := prometheus.NewTimer(e.metrics.ApplyBatch)
		defer timer.ObserveDuration()
	}

	e.accounts.setLastHeight(blockHeight)
	receipts := make([]types.Receipt, len(batch.Txs))
	for i, tx := range batch.Txs {
		status := types.Committed
		if err := e.accounts.debit(tx.Transfer.From, tx.Transfer.Amount, blockHeight); err != nil {
			status = types.Rejected(err.Error())
		} else {
			e.accounts.credit(tx.Transfer.To, tx.Transfer.Amount, blockHeight)
		}
		receipts[i] = types.Receipt{
			TxID:        tx.ID,
			Status:      status,
			BlockHeight: blockHeight,
			LatencyMs:   types.NowMs() - tx.SubmittedUnixMs,
		}
	}
	return receipts
}

// LastHeight returns the height of the most recently applied batch.
func (e *SimpleExecutor) LastHeight() uint64 { return e.accounts.lastHeight() }

// Snapshot returns every account's current state.
func (e *SimpleExecutor) Snapshot() []AccountState { return e.accounts.snapshotStates() }

// DiffSince returns accounts mutated after height since.
func (e *SimpleExecutor) DiffSince(since uint64) []AccountState { return e.accounts.diffSince(since) }

// Restore clears (if replace) and upserts the given account states.
func (e *SimpleExecutor) Restore(replace bool, items []AccountState) {
	e.accounts.restore(replace, items)
}

// Credit is an administrative helper for seeding initial balances
// (genesis allocation); it is not part of the Executor interface.
func (e *SimpleExecutor) Credit(addr string, amount uint64) {
	e.accounts.credit(addr, amount, 0)
}
