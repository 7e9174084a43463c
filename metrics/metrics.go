// Package metrics wires every counter and histogram this repo exposes
// into a caller-supplied prometheus.Registerer, following the teacher's
// own registration pattern (metrics/metric.go: construct, register,
// return an error on name collision) rather than package-level globals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Consensus holds every metric the consensus driver touches.
type Consensus struct {
	ProposalsSent    prometheus.Counter
	VotesSent        prometheus.Counter
	QCsFormed        prometheus.Counter
	Commits          prometheus.Counter
	TimeoutsSent     prometheus.Counter
	NewViewsSent     prometheus.Counter
	ProposalToCommit prometheus.Histogram
}

// NewConsensus constructs and registers the consensus metric set.
func NewConsensus(reg prometheus.Registerer) (*Consensus, error) {
	c := &Consensus{
		ProposalsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_proposals_sent_total",
			Help: "Proposals broadcast by this node as leader.",
		}),
		VotesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_votes_sent_total",
			Help: "Votes signed and sent by this node.",
		}),
		QCsFormed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_qcs_formed_total",
			Help: "Quorum certificates formed by this node as leader.",
		}),
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_commits_total",
			Help: "Batches forwarded to the executor after QC formation.",
		}),
		TimeoutsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_timeouts_sent_total",
			Help: "Timeout messages broadcast on pacemaker expiry.",
		}),
		NewViewsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_newviews_sent_total",
			Help: "NewView messages broadcast on pacemaker expiry.",
		}),
		ProposalToCommit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "consensus_proposal_to_commit_seconds",
			Help:    "Latency from broadcasting a Proposal to forwarding its batch to the executor.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	for _, m := range []prometheus.Collector{
		c.ProposalsSent, c.VotesSent, c.QCsFormed, c.Commits,
		c.TimeoutsSent, c.NewViewsSent, c.ProposalToCommit,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Mempool holds the metrics the batching loop touches.
type Mempool struct {
	QueueLength   prometheus.Gauge
	FlushInterval prometheus.Histogram
}

// NewMempool constructs and registers the mempool metric set.
func NewMempool(reg prometheus.Registerer) (*Mempool, error) {
	m := &Mempool{
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mempool_queue_length",
			Help: "Number of transactions currently buffered awaiting a flush.",
		}),
		FlushInterval: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mempool_flush_interval_seconds",
			Help:    "Time between consecutive batch flushes.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{m.QueueLength, m.FlushInterval} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Executor holds the metrics the batch-application path touches.
type Executor struct {
	ApplyBatch prometheus.Histogram
	Conflicts  prometheus.Counter
	Retries    prometheus.Counter
}

// NewExecutor constructs and registers the executor metric set.
func NewExecutor(reg prometheus.Registerer) (*Executor, error) {
	e := &Executor{
		ApplyBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "executor_apply_batch_seconds",
			Help:    "Wall time to apply one committed batch.",
			Buckets: prometheus.DefBuckets,
		}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "executor_conflicts_total",
			Help: "Transactions that failed the write-version check on first attempt.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "executor_retries_total",
			Help: "Transaction re-executions due to a detected read/write conflict.",
		}),
	}
	for _, c := range []prometheus.Collector{e.ApplyBatch, e.Conflicts, e.Retries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}
