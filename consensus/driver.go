package consensus

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vireo-chain/core/crypto"
	"github.com/vireo-chain/core/da"
	"github.com/vireo-chain/core/metrics"
	"github.com/vireo-chain/core/net"
	"github.com/vireo-chain/core/rbc"
	"github.com/vireo-chain/core/types"
	"github.com/vireo-chain/core/validator"
)

// CommitJob is one batch handed from the consensus driver to the
// executor once its QuorumCert has formed.
type CommitJob struct {
	Batch  types.Batch
	Height uint64
}

// Config holds the driver's tunable parameters. Zero values are not
// valid; use NewDriver, which applies defaults for K/M/Pacemaker/
// RBCRetention when left unset.
type Config struct {
	K            uint32
	M            uint32
	Pacemaker    time.Duration
	RBCRetention time.Duration
}

// Driver runs the single-vote HotStuff-style state machine for one
// validator: RBC shard/echo/ready handling, proposal composition, vote
// aggregation into a QuorumCert, commit forwarding, and pacemaker-driven
// view changes. One Driver owns its state exclusively; Run's select
// loop is the only place that mutates it, so no locking is needed here.
type Driver struct {
	cfg        Config
	validators *validator.Set
	keys       *validator.KeySet
	store      QcTcStore
	transport  net.Transport
	log        *zap.SugaredLogger
	metrics    *metrics.Consensus

	rbcState   *rbc.State
	selfEchoed map[[32]byte]bool

	fromMempool <-chan types.Batch
	toExec      chan<- CommitJob

	view        uint64
	height      uint64
	pendingRoot *[32]byte
	votes       map[uint32]Signed
	timeouts    map[uint32]Signed
	votedView   map[uint64]bool
	highQC      *QuorumCert
	highTC      *TimeoutCert
	propStart   map[[32]byte]time.Time
}

// NewDriver builds a Driver ready to Run. fromMempool delivers batches
// this node should try to disseminate; toExec receives committed
// batches in commit order. store may be nil, in which case QC/TC
// persistence is skipped.
func NewDriver(
	cfg Config,
	validators *validator.Set,
	keys *validator.KeySet,
	store QcTcStore,
	transport net.Transport,
	log *zap.SugaredLogger,
	m *metrics.Consensus,
	fromMempool <-chan types.Batch,
	toExec chan<- CommitJob,
) *Driver {
	if cfg.K == 0 {
		cfg.K = 2
	}
	if cfg.M == 0 {
		cfg.M = 1
	}
	if cfg.Pacemaker <= 0 {
		cfg.Pacemaker = 2 * time.Second
	}
	if cfg.RBCRetention <= 0 {
		cfg.RBCRetention = 10 * time.Minute
	}
	d := &Driver{
		cfg:         cfg,
		validators:  validators,
		keys:        keys,
		store:       store,
		transport:   transport,
		log:         log,
		metrics:     m,
		rbcState:    rbc.New(),
		fromMempool: fromMempool,
		toExec:      toExec,
		view:        1,
		height:      0,
		votes:       make(map[uint32]Signed),
		timeouts:    make(map[uint32]Signed),
		votedView:   make(map[uint64]bool),
		propStart:   make(map[[32]byte]time.Time),
	}
	if store != nil {
		if qc, err := store.LoadHighQC(); err == nil {
			d.highQC = qc
		}
		if tc, err := store.LoadHighTC(); err == nil {
			d.highTC = tc
		}
	}
	return d
}

// Run drives the event loop until ctx is cancelled or an input channel
// closes. The pacemaker timer is recreated fresh after every handled
// event (batch, timer fire, or inbound message) so a timeout only fires
// after a full idle Pacemaker interval with no progress of any kind.
func (d *Driver) Run(ctx context.Context) {
	timer := time.NewTimer(d.cfg.Pacemaker)
	defer timer.Stop()
	netIn := d.transport.Recv()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-d.fromMempool:
			if !ok {
				return
			}
			d.onBatch(ctx, batch)
		case <-timer.C:
			d.onPacemakerExpiry(ctx)
		case in, ok := <-netIn:
			if !ok {
				return
			}
			msg, err := DecodeMsg(in.Data)
			if err != nil {
				d.log.Debugw("dropping malformed wire message", "err", err)
			} else {
				d.dispatch(ctx, msg)
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.cfg.Pacemaker)
	}
}

// broadcast sends msg to every peer and, symmetrically, feeds it through
// the same dispatch path this node uses for inbound messages. Every
// message this node emits is therefore processed locally exactly as a
// replica receiving it over the wire would process it — including by
// the originator itself. This is what makes the single-validator
// boundary case (f=0, no peers) work without a special case: a lone
// validator's own Shard/Echo/Ready/Proposal/Vote/Timeout messages are
// the only votes it will ever see, and they must count.
func (d *Driver) broadcast(ctx context.Context, msg ConsensusMsg) {
	data := EncodeMsg(msg)
	for _, v := range d.validators.Peers() {
		if err := d.transport.Send(ctx, net.Out{Addr: v.Addr, Data: data}); err != nil {
			d.log.Warnw("transport send failed", "peer", v.ID, "err", err)
		}
	}
	d.dispatch(ctx, msg)
}

// unicast is broadcast's single-recipient counterpart, used for Vote
// messages addressed to one view's leader. If that leader is this node,
// the transport send is skipped (no self-addressed network hop) and
// only the local dispatch runs.
func (d *Driver) unicast(ctx context.Context, msg ConsensusMsg, to validator.Validator) {
	if to.ID != d.validators.SelfID {
		data := EncodeMsg(msg)
		if err := d.transport.Send(ctx, net.Out{Addr: to.Addr, Data: data}); err != nil {
			d.log.Warnw("transport send failed", "peer", to.ID, "err", err)
		}
	}
	d.dispatch(ctx, msg)
}

func (d *Driver) dispatch(ctx context.Context, msg ConsensusMsg) {
	switch m := msg.(type) {
	case MsgRbcShard:
		d.rbcState.OnShard(m.Root, m.ShardIndex, m.Bytes, m.Proof, d.cfg.K, d.cfg.M)
	case MsgRbcEcho:
		d.onEcho(ctx, m)
	case MsgRbcReady:
		d.onReady(ctx, m)
	case MsgProposal:
		d.onProposal(ctx, m)
	case MsgVote:
		d.onVote(ctx, m)
	case MsgNewView:
		d.onNewView(m)
	case MsgTimeout:
		d.onTimeout(ctx, m)
	}
}

// onBatch is the leader path's entry point: encode the batch into
// shards, disseminate them, and echo the commitment root. If this node
// is the leader of the current view, it remembers root as the payload
// it is waiting to propose once RBC delivery completes.
func (d *Driver) onBatch(ctx context.Context, batch types.Batch) {
	payload := types.EncodeBatch(batch)
	shards, err := da.Encode(payload, d.cfg.K, d.cfg.M)
	if err != nil {
		d.log.Warnw("da encode failed", "err", err)
		return
	}
	root := shards[0].Proof.Root

	// Mark the pending root before broadcasting: broadcast dispatches
	// locally and synchronously, so the delivery predicate can already
	// hold inside the Echo broadcast below.
	if d.validators.LeaderFor(d.view).ID == d.validators.SelfID {
		r := root
		d.pendingRoot = &r
	}

	for _, sh := range shards {
		d.broadcast(ctx, MsgRbcShard{
			Sender:     d.validators.SelfID,
			Root:       root,
			ShardIndex: sh.Index,
			Bytes:      sh.Bytes,
			Proof:      sh.Proof,
		})
	}

	echoSig := d.keys.Sign(crypto.DomainRbcEcho, root[:])
	d.broadcast(ctx, MsgRbcEcho{Sender: d.validators.SelfID, Root: root, Sig: echoSig})
}

func (d *Driver) onEcho(ctx context.Context, m MsgRbcEcho) {
	if !d.keys.Verify(m.Sender, crypto.DomainRbcEcho, m.Root[:], m.Sig) {
		return
	}
	count := d.rbcState.OnEcho(m.Root, m.Sender)
	threshold := d.validators.Len() - d.validators.F()
	if count >= threshold {
		readySig := d.keys.Sign(crypto.DomainRbcReady, m.Root[:])
		d.broadcast(ctx, MsgRbcReady{Sender: d.validators.SelfID, Root: m.Root, Sig: readySig})
	}
}

func (d *Driver) onReady(ctx context.Context, m MsgRbcReady) {
	if !d.keys.Verify(m.Sender, crypto.DomainRbcReady, m.Root[:], m.Sig) {
		return
	}
	readyCount, hasPayload := d.rbcState.OnReady(m.Root, m.Sender)
	if readyCount < d.validators.Quorum() || !hasPayload {
		return
	}
	if d.pendingRoot == nil || *d.pendingRoot != m.Root {
		return
	}
	if d.validators.LeaderFor(d.view).ID != d.validators.SelfID {
		return
	}

	proof := da.DaProof{
		ReadySigners: d.rbcState.ReadySigners(m.Root),
		MerkleRoot:   m.Root,
		K:            d.cfg.K,
		M:            d.cfg.M,
	}
	sig := d.keys.Sign(crypto.DomainProposal, voteDigestInput(d.view, m.Root))
	d.propStart[m.Root] = time.Now()
	d.broadcast(ctx, MsgProposal{
		View:     d.view,
		Proposer: d.validators.SelfID,
		Root:     m.Root,
		DaProof:  proof,
		HighQC:   d.highQC,
		Sig:      sig,
	})
	if d.metrics != nil {
		d.metrics.ProposalsSent.Inc()
	}
}

// onProposal implements the replica path. Per the tie-break behavior
// this repo intentionally reproduces: the view is adopted unconditionally
// from the Proposal, even if it is older than the node's current view.
// A stale Proposal's resulting Vote is not separately rejected here —
// it is silently dropped downstream, because the leader it is unicast to
// will by then have moved its own view forward and onVote's view check
// will no longer match.
func (d *Driver) onProposal(ctx context.Context, m MsgProposal) {
	if !d.keys.Verify(m.Proposer, crypto.DomainProposal, voteDigestInput(m.View, m.Root), m.Sig) {
		return
	}
	d.view = m.View

	if m.HighQC != nil && VerifyQC(d.validators, *m.HighQC) {
		if d.highQC == nil || m.HighQC.View > d.highQC.View {
			qc := *m.HighQC
			d.highQC = &qc
			if d.store != nil {
				if err := d.store.SaveHighQC(qc); err != nil {
					d.log.Warnw("persist high qc failed", "err", err)
				}
			}
		}
	}

	if !d.rbcState.HasPayload(m.Root) {
		return
	}
	if d.votedView[d.view] {
		return
	}

	sig := d.keys.Sign(crypto.DomainVote, voteDigestInput(d.view, m.Root))
	d.votedView[d.view] = true
	vote := MsgVote{View: d.view, Voter: d.validators.SelfID, Root: m.Root, Sig: sig}
	d.unicast(ctx, vote, d.validators.LeaderFor(d.view))
	if d.metrics != nil {
		d.metrics.VotesSent.Inc()
	}
}

// onVote implements vote aggregation into a QuorumCert. Only the
// addressed view's leader accumulates votes; everyone else's dispatch of
// a Vote they happened to self-process (as a non-leader unicast target)
// is a no-op via the leader check below.
func (d *Driver) onVote(ctx context.Context, m MsgVote) {
	if !d.keys.Verify(m.Voter, crypto.DomainVote, voteDigestInput(m.View, m.Root), m.Sig) {
		return
	}
	if d.validators.LeaderFor(m.View).ID != d.validators.SelfID || m.View != d.view {
		return
	}
	d.votes[m.Voter] = Signed{Voter: m.Voter, Sig: m.Sig}
	if len(d.votes) < d.validators.Quorum() {
		return
	}

	qc := QuorumCert{View: d.view, Root: m.Root}
	for voter, s := range d.votes {
		qc.Voters = append(qc.Voters, voter)
		qc.Sigs = append(qc.Sigs, s)
	}
	if d.highQC == nil || qc.View > d.highQC.View {
		d.highQC = &qc
	}
	if d.store != nil {
		if err := d.store.SaveHighQC(qc); err != nil {
			d.log.Warnw("persist high qc failed", "err", err)
		}
	}
	if d.metrics != nil {
		d.metrics.QCsFormed.Inc()
	}

	d.tryCommit(m.Root)

	d.votes = make(map[uint32]Signed)
	d.pendingRoot = nil
	d.view++
}

// tryCommit forwards the batch behind root to the executor once its QC
// has formed. A failure to deliver (payload missing locally, batch
// undecodable, or the executor channel not ready to accept) aborts the
// commit of this batch but never blocks the driver and never advances
// height — the liveness hazard this leaves behind is that a validator
// can be one QC ahead of its own executor. Nothing replays the aborted
// batch: a restart reloads the persisted high QC but does not re-send
// its batch to the executor.
func (d *Driver) tryCommit(root [32]byte) {
	payload, ok := d.rbcState.Payload(root)
	if !ok {
		d.log.Warnw("qc formed but payload missing locally", "root", root)
		return
	}
	batch, err := types.DecodeBatch(payload)
	if err != nil {
		d.log.Warnw("failed to decode committed batch", "err", err)
		return
	}
	select {
	case d.toExec <- CommitJob{Batch: batch, Height: d.height}:
		d.height++
		if d.metrics != nil {
			d.metrics.Commits.Inc()
			if start, ok := d.propStart[root]; ok {
				d.metrics.ProposalToCommit.Observe(time.Since(start).Seconds())
			}
		}
		delete(d.propStart, root)
		d.rbcState.Prune(d.cfg.RBCRetention)
	default:
		d.log.Warnw("executor channel not ready; commit aborted for this batch", "root", root)
	}
}

// onNewView catches this node up to a later view a peer has already
// reached, and records any attached TimeoutCert. TC aggregation in this
// driver is additive only: forming or adopting a TC never gates QC
// formation or vote casting.
func (d *Driver) onNewView(m MsgNewView) {
	if !d.keys.Verify(m.Voter, crypto.DomainNewView, viewBytes(m.View), m.Sig) {
		return
	}
	if m.View > d.view {
		d.view = m.View
	}
	if m.TC != nil && VerifyTC(d.validators, *m.TC) {
		if d.highTC == nil || m.TC.View > d.highTC.View {
			tc := *m.TC
			d.highTC = &tc
			if d.store != nil {
				if err := d.store.SaveHighTC(tc); err != nil {
					d.log.Warnw("persist high tc failed", "err", err)
				}
			}
		}
	}
}

// onTimeout aggregates Timeout messages for the current view into a
// TimeoutCert, exactly like onVote aggregates votes into a QuorumCert.
func (d *Driver) onTimeout(ctx context.Context, m MsgTimeout) {
	if !d.keys.Verify(m.Voter, crypto.DomainTimeout, viewBytes(m.View), m.Sig) {
		return
	}
	if m.View != d.view {
		return
	}
	d.timeouts[m.Voter] = Signed{Voter: m.Voter, Sig: m.Sig}
	if len(d.timeouts) < d.validators.Quorum() {
		return
	}
	tc := TimeoutCert{View: m.View}
	for voter, s := range d.timeouts {
		tc.Sigs = append(tc.Sigs, Signed{Voter: voter, Sig: s.Sig})
	}
	if d.highTC == nil || tc.View > d.highTC.View {
		d.highTC = &tc
		if d.store != nil {
			if err := d.store.SaveHighTC(tc); err != nil {
				d.log.Warnw("persist high tc failed", "err", err)
			}
		}
	}
}

// onPacemakerExpiry fires when no event has arrived for a full
// Pacemaker interval: broadcast a Timeout for the current view, advance
// to the next, and broadcast a NewView carrying the highest QC known
// plus a TimeoutCert for the view just abandoned, if one formed in time.
func (d *Driver) onPacemakerExpiry(ctx context.Context) {
	prevView := d.view
	toSig := d.keys.Sign(crypto.DomainTimeout, viewBytes(prevView))
	d.broadcast(ctx, MsgTimeout{View: prevView, Voter: d.validators.SelfID, Sig: toSig})
	if d.metrics != nil {
		d.metrics.TimeoutsSent.Inc()
	}

	d.view = prevView + 1
	d.timeouts = make(map[uint32]Signed)

	var tc *TimeoutCert
	if d.highTC != nil && d.highTC.View == prevView {
		t := *d.highTC
		tc = &t
	}
	nvSig := d.keys.Sign(crypto.DomainNewView, viewBytes(d.view))
	d.broadcast(ctx, MsgNewView{View: d.view, Voter: d.validators.SelfID, HighQC: d.highQC, TC: tc, Sig: nvSig})
	if d.metrics != nil {
		d.metrics.NewViewsSent.Inc()
	}
}
