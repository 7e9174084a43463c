package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreQCRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	got, err := fs.LoadHighQC()
	require.NoError(t, err)
	require.Nil(t, got)

	qc := QuorumCert{View: 3, Root: [32]byte{7}, Voters: []uint32{0, 1}, Sigs: []Signed{{Voter: 0}, {Voter: 1}}}
	require.NoError(t, fs.SaveHighQC(qc))

	got, err = fs.LoadHighQC()
	require.NoError(t, err)
	require.Equal(t, qc, *got)
}

func TestFileStoreTCRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	tc := TimeoutCert{View: 9, Sigs: []Signed{{Voter: 2}}}
	require.NoError(t, fs.SaveHighTC(tc))

	got, err := fs.LoadHighTC()
	require.NoError(t, err)
	require.Equal(t, tc, *got)
}
