// Package mempool batches incoming client transactions into ordered
// Batches for the consensus driver, fed by a client channel and an
// optional gossip-inbound channel, flushed on size or a timer tick.
package mempool

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vireo-chain/core/metrics"
	"github.com/vireo-chain/core/types"
)

// Config holds the mempool's tunable parameters.
type Config struct {
	MaxBatchLen int
	FlushPeriod time.Duration
}

// Mempool accepts Tx from clients (and, optionally, gossip) and emits
// Batches on the toConsensus channel. One Mempool owns its buffer
// exclusively; Run's select loop is the only mutator, so cur and
// batchID need no lock.
type Mempool struct {
	cfg         Config
	log         *zap.SugaredLogger
	metrics     *metrics.Mempool
	fromClients <-chan types.Tx
	fromGossip  <-chan types.Tx
	toConsensus chan<- types.Batch

	cur     []types.Tx
	batchID uint64
}

// New builds a Mempool ready to Run. fromGossip may be nil, in which
// case only fromClients feeds the buffer.
func New(
	cfg Config,
	log *zap.SugaredLogger,
	m *metrics.Mempool,
	fromClients <-chan types.Tx,
	fromGossip <-chan types.Tx,
	toConsensus chan<- types.Batch,
) *Mempool {
	if cfg.MaxBatchLen <= 0 {
		cfg.MaxBatchLen = 500
	}
	if cfg.FlushPeriod <= 0 {
		cfg.FlushPeriod = 200 * time.Millisecond
	}
	return &Mempool{
		cfg:         cfg,
		log:         log,
		metrics:     m,
		fromClients: fromClients,
		fromGossip:  fromGossip,
		toConsensus: toConsensus,
		cur:         make([]types.Tx, 0, cfg.MaxBatchLen),
		batchID:     1,
	}
}

// InboundCapacity is the fixed capacity of the client-facing inbound
// channel per spec.md §4.5: a bounded buffer of 64,000 transactions.
const InboundCapacity = 64_000

// Run drives the fan-in loop until ctx is cancelled or fromClients
// closes. A nil fromGossip degrades the select to two cases so a lone
// node with no gossip wiring never blocks on a channel that will never
// fire.
func (mp *Mempool) Run(ctx context.Context) {
	ticker := time.NewTicker(mp.cfg.FlushPeriod)
	defer ticker.Stop()
	lastFlush := time.Now()

	for {
		if mp.metrics != nil {
			mp.metrics.QueueLength.Set(float64(len(mp.cur)))
		}

		select {
		case <-ctx.Done():
			return
		case tx, ok := <-mp.fromClients:
			if !ok {
				return
			}
			mp.cur = append(mp.cur, tx)
			if len(mp.cur) >= mp.cfg.MaxBatchLen {
				lastFlush = mp.flush(lastFlush)
			}
		case tx, ok := <-mp.fromGossip:
			if ok {
				mp.cur = append(mp.cur, tx)
				if len(mp.cur) >= mp.cfg.MaxBatchLen {
					lastFlush = mp.flush(lastFlush)
				}
			}
		case <-ticker.C:
			if len(mp.cur) > 0 {
				lastFlush = mp.flush(lastFlush)
			}
		}
	}
}

// flush emits the current buffer as a Batch, resets it, and reports
// the elapsed time since the previous flush. The send blocks until the
// consensus driver accepts it, mirroring the original's
// mpsc::Sender::send().await in run_mempool.
func (mp *Mempool) flush(lastFlush time.Time) time.Time {
	batch := types.Batch{ID: mp.batchID, Txs: mp.cur}
	mp.batchID++
	mp.cur = make([]types.Tx, 0, mp.cfg.MaxBatchLen)

	mp.toConsensus <- batch

	now := time.Now()
	if mp.metrics != nil {
		mp.metrics.FlushInterval.Observe(now.Sub(lastFlush).Seconds())
	}
	return now
}
