package binfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildContainer(t *testing.T) []byte {
	w, err := NewWriter("wtns", 2)
	require.NoError(t, err)
	w.AddSection(1, []byte{0x20, 0, 0, 0})
	w.AddSection(2, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	return w.Encode()
}

func TestParseRoundTrip(t *testing.T) {
	data := buildContainer(t)

	f, err := Parse(data, "wtns")
	require.NoError(t, err)
	require.Equal(t, uint32(2), f.Version)
	require.Len(t, f.Sections, 2)

	s1 := f.Section(1)
	require.NotNil(t, s1)
	require.Equal(t, []byte{0x20, 0, 0, 0}, s1.Body)

	s2 := f.Section(2)
	require.NotNil(t, s2)
	require.Len(t, s2.Body, 8)

	require.Nil(t, f.Section(9))
}

func TestParseWrongMagic(t *testing.T) {
	data := buildContainer(t)

	_, err := Parse(data, "zkey")
	require.ErrorIs(t, err, ErrFormat)
}

func TestParseTruncated(t *testing.T) {
	data := buildContainer(t)

	// short header
	_, err := Parse(data[:8], "wtns")
	require.ErrorIs(t, err, ErrTruncated)

	// section body cut off
	_, err = Parse(data[:len(data)-3], "wtns")
	require.ErrorIs(t, err, ErrTruncated)
}

func TestParseKeepsFirstDuplicate(t *testing.T) {
	w, err := NewWriter("r1cs", 1)
	require.NoError(t, err)
	w.AddSection(1, []byte{0xaa})
	w.AddSection(1, []byte{0xbb})

	f, err := Parse(w.Encode(), "r1cs")
	require.NoError(t, err)
	require.Len(t, f.Sections, 1)
	require.Equal(t, []byte{0xaa}, f.Section(1).Body)
}

func TestReaderCursor(t *testing.T) {
	r := NewReader([]byte{
		0x2a, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0,
		0xde, 0xad,
	})

	require.Equal(t, uint32(42), r.U32())
	require.Equal(t, uint64(1), r.U64())
	require.Equal(t, []byte{0xde, 0xad}, r.Bytes(2))
	require.Zero(t, r.Remaining())
	require.NoError(t, r.Err())
}

func TestReaderStickyTruncation(t *testing.T) {
	r := NewReader([]byte{1, 2})

	require.Zero(t, r.U32())
	require.ErrorIs(t, r.Err(), ErrTruncated)

	// stays failed even though 2 bytes would fit
	require.Nil(t, r.Bytes(2))
	require.ErrorIs(t, r.Err(), ErrTruncated)
}
