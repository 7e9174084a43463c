package node

import (
	"context"

	"go.uber.org/zap"

	"github.com/vireo-chain/core/consensus"
	"github.com/vireo-chain/core/executor"
	"github.com/vireo-chain/core/types"
)

// RunExecutorConsumer is the dedicated consumer task spec.md §5 names:
// it dequeues CommitJobs the consensus driver forwards after QC
// formation, applies each synchronously via
// executor.ApplyBatchBlocking, and forwards the resulting Receipts to
// out (read by Node's commit listener). It runs until ctx is cancelled
// or jobs closes.
func RunExecutorConsumer(
	ctx context.Context,
	jobs <-chan consensus.CommitJob,
	exec executor.Executor,
	out chan<- types.Receipt,
	log *zap.SugaredLogger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			receipts := exec.ApplyBatchBlocking(job.Batch, job.Height)
			for _, r := range receipts {
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
