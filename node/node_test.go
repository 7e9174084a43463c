package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vireo-chain/core/consensus"
	"github.com/vireo-chain/core/executor"
	"github.com/vireo-chain/core/types"
)

func nopLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func TestSubmitTransferHappyPath(t *testing.T) {
	toMempool := make(chan types.Tx, 1)
	exec := executor.NewSimpleExecutor(nopLogger(), nil)
	exec.Credit("alice", 1_000_000_000_000)

	n := New(toMempool, exec, nopLogger())
	committed := make(chan types.Receipt, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.SpawnCommitListener(ctx, committed)

	// Simulate the pipeline: dequeue the submitted tx, apply it, and
	// report its Receipt back through the commit channel, exactly as
	// the consensus->executor->node wiring would in a running node.
	done := make(chan types.Receipt, 1)
	go func() {
		tx := <-toMempool
		batch := types.Batch{ID: 1, Txs: []types.Tx{tx}}
		receipts := exec.ApplyBatchBlocking(batch, 1)
		committed <- receipts[0]
		done <- receipts[0]
	}()

	r, err := n.SubmitTransfer(context.Background(), types.Transfer{From: "alice", To: "bob", Amount: 5, Nonce: 1})
	require.NoError(t, err)
	require.Equal(t, types.Committed, r.Status)
	require.Equal(t, uint64(1), r.BlockHeight)
	<-done

	bal, err := n.GetBalance(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, uint64(5), bal)
}

func TestSubmitTransferTimesOutWithoutBlockingPipeline(t *testing.T) {
	toMempool := make(chan types.Tx, 1)
	exec := executor.NewSimpleExecutor(nopLogger(), nil)
	n := New(toMempool, exec, nopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := n.SubmitTransfer(ctx, types.Transfer{From: "a", To: "b", Amount: 1, Nonce: 1})
	require.Error(t, err)

	// The tx still made it into the mempool channel even though the
	// caller gave up waiting for commit.
	select {
	case <-toMempool:
	default:
		t.Fatal("tx should still be enqueued even after the caller's context expired")
	}
}

func TestRunExecutorConsumerAppliesCommitJobs(t *testing.T) {
	exec := executor.NewSimpleExecutor(nopLogger(), nil)
	exec.Credit("alice", 100)

	jobs := make(chan consensus.CommitJob, 1)
	out := make(chan types.Receipt, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunExecutorConsumer(ctx, jobs, exec, out, nopLogger())

	tx := types.NewTx(types.Transfer{From: "alice", To: "bob", Amount: 10, Nonce: 1})
	jobs <- consensus.CommitJob{Batch: types.Batch{ID: 1, Txs: []types.Tx{tx}}, Height: 3}

	select {
	case r := <-out:
		require.Equal(t, types.Committed, r.Status)
		require.Equal(t, uint64(3), r.BlockHeight)
	case <-time.After(time.Second):
		t.Fatal("expected the consumer to apply the job and forward a receipt")
	}
}
