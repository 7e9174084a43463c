package consensus

import (
	"encoding/binary"
	"fmt"

	"github.com/vireo-chain/core/crypto"
	"github.com/vireo-chain/core/da"
)

// ConsensusMsg is the tagged union of every validator-to-validator
// message. Each concrete type below is one variant.
type ConsensusMsg interface {
	msgTag() byte
}

type MsgRbcShard struct {
	Sender     uint32
	Root       [32]byte
	ShardIndex uint32
	Bytes      []byte
	Proof      da.MerkleProof
}

type MsgRbcEcho struct {
	Sender uint32
	Root   [32]byte
	Sig    crypto.Sig
}

type MsgRbcReady struct {
	Sender uint32
	Root   [32]byte
	Sig    crypto.Sig
}

type MsgProposal struct {
	View     uint64
	Proposer uint32
	Root     [32]byte
	DaProof  da.DaProof
	HighQC   *QuorumCert
	Sig      crypto.Sig
}

type MsgVote struct {
	View  uint64
	Voter uint32
	Root  [32]byte
	Sig   crypto.Sig
}

type MsgNewView struct {
	View   uint64
	Voter  uint32
	HighQC *QuorumCert
	TC     *TimeoutCert
	Sig    crypto.Sig
}

type MsgTimeout struct {
	View  uint64
	Voter uint32
	Sig   crypto.Sig
}

const (
	tagRbcShard byte = iota
	tagRbcEcho
	tagRbcReady
	tagProposal
	tagVote
	tagNewView
	tagTimeout
)

func (MsgRbcShard) msgTag() byte  { return tagRbcShard }
func (MsgRbcEcho) msgTag() byte   { return tagRbcEcho }
func (MsgRbcReady) msgTag() byte  { return tagRbcReady }
func (MsgProposal) msgTag() byte  { return tagProposal }
func (MsgVote) msgTag() byte      { return tagVote }
func (MsgNewView) msgTag() byte   { return tagNewView }
func (MsgTimeout) msgTag() byte   { return tagTimeout }

// packer builds a deterministic, self-delimiting byte stream. Modeled on
// the teacher's utils/wrappers.Packer (explicit big-endian widths),
// generalized with length-prefixed variable fields. Packing cannot fail,
// so the packer keeps no error state.
type packer struct {
	buf []byte
}

func (p *packer) byte(b byte)        { p.buf = append(p.buf, b) }
func (p *packer) u32(v uint32)       { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); p.buf = append(p.buf, b[:]...) }
func (p *packer) u64(v uint64)       { var b [8]byte; binary.BigEndian.PutUint64(b[:], v); p.buf = append(p.buf, b[:]...) }
func (p *packer) hash(h [32]byte)    { p.buf = append(p.buf, h[:]...) }
func (p *packer) sig(s crypto.Sig)   { p.buf = append(p.buf, s[:]...) }
func (p *packer) bytes(b []byte)     { p.u32(uint32(len(b))); p.buf = append(p.buf, b...) }
func (p *packer) u32s(vs []uint32) {
	p.u32(uint32(len(vs)))
	for _, v := range vs {
		p.u32(v)
	}
}
func (p *packer) hashes(hs [][32]byte) {
	p.u32(uint32(len(hs)))
	for _, h := range hs {
		p.hash(h)
	}
}
func (p *packer) merkleProof(m da.MerkleProof) {
	p.hash(m.Root)
	p.u32(m.Index)
	p.hashes(m.Path)
}
func (p *packer) daProof(d da.DaProof) {
	p.u32s(d.ReadySigners)
	p.hash(d.MerkleRoot)
	p.u32(d.K)
	p.u32(d.M)
}
func (p *packer) signed(ss []Signed) {
	p.u32(uint32(len(ss)))
	for _, s := range ss {
		p.u32(s.Voter)
		p.sig(s.Sig)
	}
}
func (p *packer) qcOpt(qc *QuorumCert) {
	if qc == nil {
		p.byte(0)
		return
	}
	p.byte(1)
	p.u64(qc.View)
	p.hash(qc.Root)
	p.u32s(qc.Voters)
	p.signed(qc.Sigs)
}
func (p *packer) tcOpt(tc *TimeoutCert) {
	if tc == nil {
		p.byte(0)
		return
	}
	p.byte(1)
	p.u64(tc.View)
	p.signed(tc.Sigs)
}

// unpacker reads a byte stream produced by packer, erroring on any
// truncation rather than panicking on malformed input.
type unpacker struct {
	buf []byte
	off int
}

func (u *unpacker) need(n int) error {
	if u.off+n > len(u.buf) {
		return fmt.Errorf("consensus: wire: truncated message (need %d, have %d)", n, len(u.buf)-u.off)
	}
	return nil
}
func (u *unpacker) byte() (byte, error) {
	if err := u.need(1); err != nil {
		return 0, err
	}
	b := u.buf[u.off]
	u.off++
	return b, nil
}
func (u *unpacker) u32() (uint32, error) {
	if err := u.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(u.buf[u.off:])
	u.off += 4
	return v, nil
}
func (u *unpacker) u64() (uint64, error) {
	if err := u.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(u.buf[u.off:])
	u.off += 8
	return v, nil
}
func (u *unpacker) hash() ([32]byte, error) {
	var h [32]byte
	if err := u.need(32); err != nil {
		return h, err
	}
	copy(h[:], u.buf[u.off:])
	u.off += 32
	return h, nil
}
func (u *unpacker) sig() (crypto.Sig, error) {
	var s crypto.Sig
	if err := u.need(64); err != nil {
		return s, err
	}
	copy(s[:], u.buf[u.off:])
	u.off += 64
	return s, nil
}
func (u *unpacker) bytes() ([]byte, error) {
	n, err := u.u32()
	if err != nil {
		return nil, err
	}
	if err := u.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, u.buf[u.off:u.off+int(n)])
	u.off += int(n)
	return b, nil
}
func (u *unpacker) u32s() ([]uint32, error) {
	n, err := u.u32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		v, err := u.u32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
func (u *unpacker) hashes() ([][32]byte, error) {
	n, err := u.u32()
	if err != nil {
		return nil, err
	}
	out := make([][32]byte, n)
	for i := range out {
		h, err := u.hash()
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}
func (u *unpacker) merkleProof() (da.MerkleProof, error) {
	var m da.MerkleProof
	root, err := u.hash()
	if err != nil {
		return m, err
	}
	idx, err := u.u32()
	if err != nil {
		return m, err
	}
	path, err := u.hashes()
	if err != nil {
		return m, err
	}
	return da.MerkleProof{Root: root, Index: idx, Path: path}, nil
}
func (u *unpacker) daProof() (da.DaProof, error) {
	var d da.DaProof
	signers, err := u.u32s()
	if err != nil {
		return d, err
	}
	root, err := u.hash()
	if err != nil {
		return d, err
	}
	k, err := u.u32()
	if err != nil {
		return d, err
	}
	m, err := u.u32()
	if err != nil {
		return d, err
	}
	return da.DaProof{ReadySigners: signers, MerkleRoot: root, K: k, M: m}, nil
}
func (u *unpacker) signed() ([]Signed, error) {
	n, err := u.u32()
	if err != nil {
		return nil, err
	}
	out := make([]Signed, n)
	for i := range out {
		voter, err := u.u32()
		if err != nil {
			return nil, err
		}
		sig, err := u.sig()
		if err != nil {
			return nil, err
		}
		out[i] = Signed{Voter: voter, Sig: sig}
	}
	return out, nil
}
func (u *unpacker) qcOpt() (*QuorumCert, error) {
	tag, err := u.byte()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	view, err := u.u64()
	if err != nil {
		return nil, err
	}
	root, err := u.hash()
	if err != nil {
		return nil, err
	}
	voters, err := u.u32s()
	if err != nil {
		return nil, err
	}
	sigs, err := u.signed()
	if err != nil {
		return nil, err
	}
	return &QuorumCert{View: view, Root: root, Voters: voters, Sigs: sigs}, nil
}
func (u *unpacker) tcOpt() (*TimeoutCert, error) {
	tag, err := u.byte()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	view, err := u.u64()
	if err != nil {
		return nil, err
	}
	sigs, err := u.signed()
	if err != nil {
		return nil, err
	}
	return &TimeoutCert{View: view, Sigs: sigs}, nil
}

// EncodeMsg serializes a ConsensusMsg deterministically and
// self-delimiting (a 1-byte tag followed by the variant's fields in a
// fixed order).
func EncodeMsg(msg ConsensusMsg) []byte {
	p := &packer{}
	p.byte(msg.msgTag())
	switch m := msg.(type) {
	case MsgRbcShard:
		p.u32(m.Sender)
		p.hash(m.Root)
		p.u32(m.ShardIndex)
		p.bytes(m.Bytes)
		p.merkleProof(m.Proof)
	case MsgRbcEcho:
		p.u32(m.Sender)
		p.hash(m.Root)
		p.sig(m.Sig)
	case MsgRbcReady:
		p.u32(m.Sender)
		p.hash(m.Root)
		p.sig(m.Sig)
	case MsgProposal:
		p.u64(m.View)
		p.u32(m.Proposer)
		p.hash(m.Root)
		p.daProof(m.DaProof)
		p.qcOpt(m.HighQC)
		p.sig(m.Sig)
	case MsgVote:
		p.u64(m.View)
		p.u32(m.Voter)
		p.hash(m.Root)
		p.sig(m.Sig)
	case MsgNewView:
		p.u64(m.View)
		p.u32(m.Voter)
		p.qcOpt(m.HighQC)
		p.tcOpt(m.TC)
		p.sig(m.Sig)
	case MsgTimeout:
		p.u64(m.View)
		p.u32(m.Voter)
		p.sig(m.Sig)
	default:
		panic(fmt.Sprintf("consensus: wire: unknown message type %T", msg))
	}
	return p.buf
}

// DecodeMsg deserializes bytes produced by EncodeMsg back into a
// ConsensusMsg. Malformed input returns an error; callers must drop the
// message silently per the failure-semantics contract.
func DecodeMsg(b []byte) (ConsensusMsg, error) {
	u := &unpacker{buf: b}
	tag, err := u.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagRbcShard:
		sender, err := u.u32()
		if err != nil {
			return nil, err
		}
		root, err := u.hash()
		if err != nil {
			return nil, err
		}
		idx, err := u.u32()
		if err != nil {
			return nil, err
		}
		bts, err := u.bytes()
		if err != nil {
			return nil, err
		}
		proof, err := u.merkleProof()
		if err != nil {
			return nil, err
		}
		return MsgRbcShard{Sender: sender, Root: root, ShardIndex: idx, Bytes: bts, Proof: proof}, nil
	case tagRbcEcho:
		sender, err := u.u32()
		if err != nil {
			return nil, err
		}
		root, err := u.hash()
		if err != nil {
			return nil, err
		}
		sig, err := u.sig()
		if err != nil {
			return nil, err
		}
		return MsgRbcEcho{Sender: sender, Root: root, Sig: sig}, nil
	case tagRbcReady:
		sender, err := u.u32()
		if err != nil {
			return nil, err
		}
		root, err := u.hash()
		if err != nil {
			return nil, err
		}
		sig, err := u.sig()
		if err != nil {
			return nil, err
		}
		return MsgRbcReady{Sender: sender, Root: root, Sig: sig}, nil
	case tagProposal:
		view, err := u.u64()
		if err != nil {
			return nil, err
		}
		proposer, err := u.u32()
		if err != nil {
			return nil, err
		}
		root, err := u.hash()
		if err != nil {
			return nil, err
		}
		dp, err := u.daProof()
		if err != nil {
			return nil, err
		}
		qc, err := u.qcOpt()
		if err != nil {
			return nil, err
		}
		sig, err := u.sig()
		if err != nil {
			return nil, err
		}
		return MsgProposal{View: view, Proposer: proposer, Root: root, DaProof: dp, HighQC: qc, Sig: sig}, nil
	case tagVote:
		view, err := u.u64()
		if err != nil {
			return nil, err
		}
		voter, err := u.u32()
		if err != nil {
			return nil, err
		}
		root, err := u.hash()
		if err != nil {
			return nil, err
		}
		sig, err := u.sig()
		if err != nil {
			return nil, err
		}
		return MsgVote{View: view, Voter: voter, Root: root, Sig: sig}, nil
	case tagNewView:
		view, err := u.u64()
		if err != nil {
			return nil, err
		}
		voter, err := u.u32()
		if err != nil {
			return nil, err
		}
		qc, err := u.qcOpt()
		if err != nil {
			return nil, err
		}
		tc, err := u.tcOpt()
		if err != nil {
			return nil, err
		}
		sig, err := u.sig()
		if err != nil {
			return nil, err
		}
		return MsgNewView{View: view, Voter: voter, HighQC: qc, TC: tc, Sig: sig}, nil
	case tagTimeout:
		view, err := u.u64()
		if err != nil {
			return nil, err
		}
		voter, err := u.u32()
		if err != nil {
			return nil, err
		}
		sig, err := u.sig()
		if err != nil {
			return nil, err
		}
		return MsgTimeout{View: view, Voter: voter, Sig: sig}, nil
	default:
		return nil, fmt.Errorf("consensus: wire: unknown tag %d", tag)
	}
}
