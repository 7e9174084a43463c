// Package net specifies the transport contract the consensus driver
// depends on. The QUIC datagram channel itself is an external
// collaborator (out of scope for this core) — this package only
// describes the interface and event shapes the driver needs from it.
package net

import "context"

// Out is one outbound wire message addressed to a peer.
type Out struct {
	Addr string
	Data []byte
}

// In is one inbound wire message as delivered by the transport. The
// transport is expected to provide authenticated, reliable (at-least-
// once) datagrams; handlers in this repo are idempotent on
// set-membership semantics so duplicate delivery is harmless.
type In struct {
	Data []byte
}

// Transport is the contract supplied by the external QUIC/TLS
// collaborator. Implementations deliver messages in order per sender
// stream; cross-stream order is not guaranteed.
type Transport interface {
	// Send enqueues data for delivery to addr. Send errors are
	// transient-network failures: the driver logs and drops them rather
	// than blocking.
	Send(ctx context.Context, out Out) error

	// Recv returns the channel of inbound messages. Closing this channel
	// signals graceful shutdown; the driver observes EOF and terminates.
	Recv() <-chan In
}
