package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, pk, err := Generate()
	require.NoError(t, err)

	msg := []byte("hello validator")
	sig := Sign(sk, msg)
	require.True(t, Verify(pk, msg, sig))
	require.False(t, Verify(pk, []byte("tampered"), sig))
}

func TestDomainSeparation(t *testing.T) {
	sk, pk, err := Generate()
	require.NoError(t, err)

	view := []byte{0, 0, 0, 0, 0, 0, 0, 5}
	root := [32]byte{1, 2, 3}

	voteSig := SignTagged(sk, DomainVote, append(view, root[:]...))
	require.True(t, VerifyTagged(pk, DomainVote, append(view, root[:]...), voteSig))

	// A valid VOTE signature must not verify as a PROPOSAL signature for
	// the same underlying bytes.
	require.False(t, VerifyTagged(pk, DomainProposal, append(view, root[:]...), voteSig))
}

func TestDigestDeterministic(t *testing.T) {
	a := Digest([]byte("payload"))
	b := Digest([]byte("payload"))
	require.Equal(t, a, b)

	c := Digest([]byte("other"))
	require.NotEqual(t, a, c)
}
