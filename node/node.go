// Package node supplies the orchestration §2's data-flow line names but
// the distilled spec never defines: a waiter table that bridges the
// executor's asynchronous Receipt stream back to a blocking
// types.SubmitApi call, fed by a commit listener goroutine.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vireo-chain/core/executor"
	"github.com/vireo-chain/core/types"
)

// CommitTimeout is the bound spec.md §5 and §6 name for an RPC submit
// call awaiting commit.
const CommitTimeout = 5 * time.Second

// Node owns the mempool's inbound channel, the waiter table, and a
// handle to the executor for balance queries. It implements
// types.SubmitApi.
type Node struct {
	toMempool chan<- types.Tx
	executor  executor.Executor
	log       *zap.SugaredLogger

	mu      sync.Mutex
	waiters map[types.TxId]chan types.Receipt
}

// New builds a Node. toMempool is the channel the mempool's
// fromClients side reads from; executor answers balance queries.
func New(toMempool chan<- types.Tx, exec executor.Executor, log *zap.SugaredLogger) *Node {
	return &Node{
		toMempool: toMempool,
		executor:  exec,
		log:       log,
		waiters:   make(map[types.TxId]chan types.Receipt),
	}
}

// SpawnCommitListener runs until committed closes, delivering each
// Receipt to its registered waiter (if one is still present — a waiter
// whose RPC call already timed out is simply dropped, matching
// §7 "client timeout... underlying transaction may still commit later").
func (n *Node) SpawnCommitListener(ctx context.Context, committed <-chan types.Receipt) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-committed:
			if !ok {
				return
			}
			n.mu.Lock()
			ch, found := n.waiters[r.TxID]
			if found {
				delete(n.waiters, r.TxID)
			}
			n.mu.Unlock()
			if found {
				ch <- r
			}
		}
	}
}

func (n *Node) registerWaiter(id types.TxId) chan types.Receipt {
	ch := make(chan types.Receipt, 1)
	n.mu.Lock()
	n.waiters[id] = ch
	n.mu.Unlock()
	return ch
}

func (n *Node) forgetWaiter(id types.TxId) {
	n.mu.Lock()
	delete(n.waiters, id)
	n.mu.Unlock()
}

// SubmitTransfer enqueues t as a Tx, registers a waiter for its id, and
// blocks up to CommitTimeout for the matching Receipt. On timeout the
// waiter is dropped but the transaction continues through the pipeline
// (it may still commit; the caller simply never learns the outcome
// through this call).
func (n *Node) SubmitTransfer(ctx context.Context, t types.Transfer) (types.Receipt, error) {
	tx := types.NewTx(t)
	wait := n.registerWaiter(tx.ID)

	select {
	case n.toMempool <- tx:
	case <-ctx.Done():
		n.forgetWaiter(tx.ID)
		return types.Receipt{}, ctx.Err()
	}

	timeout := time.NewTimer(CommitTimeout)
	defer timeout.Stop()
	select {
	case r := <-wait:
		return r, nil
	case <-timeout.C:
		n.forgetWaiter(tx.ID)
		return types.Receipt{}, fmt.Errorf("node: timed out waiting for commit of tx %x", tx.ID)
	case <-ctx.Done():
		n.forgetWaiter(tx.ID)
		return types.Receipt{}, ctx.Err()
	}
}

// GetBalance answers directly from the executor's live account state.
func (n *Node) GetBalance(ctx context.Context, addr string) (uint64, error) {
	return n.executor.Balance(addr), nil
}

var _ types.SubmitApi = (*Node)(nil)
