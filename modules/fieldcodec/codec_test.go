package fieldcodec

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	c, err := New(fr.Modulus())
	require.NoError(t, err, "codec over the BN254 scalar field")
	return c
}

func TestCodecDimensions(t *testing.T) {
	c := newTestCodec(t)
	require.Equal(t, 32, c.ByteLen())
	require.Equal(t, 8, c.N32())
	require.Equal(t, 40, c.WireLen())
}

func TestWireRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	prime := c.Prime()

	shortBoundary := new(big.Int).Lsh(big.NewInt(1), 30)

	cases := []struct {
		name  string
		value *big.Int
	}{
		{"zero", big.NewInt(0)},
		{"short positive", big.NewInt(1_000_000)},
		{"short positive boundary", new(big.Int).Sub(shortBoundary, big.NewInt(1))},
		{"long just past short window", new(big.Int).Set(shortBoundary)},
		{"long", big.NewInt(500_000_000_000)},
		{"short negative", new(big.Int).Sub(prime, big.NewInt(1_000_000))},
		{"short negative boundary", new(big.Int).Sub(prime, shortBoundary)},
		{"long mid-range", new(big.Int).Lsh(big.NewInt(1), 31)},
		{"long just below negative window", new(big.Int).Sub(prime, new(big.Int).Add(shortBoundary, big.NewInt(1)))},
		{"prime minus one", new(big.Int).Sub(prime, big.NewInt(1))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			region := make([]byte, c.WireLen())
			require.NoError(t, c.EncodeWire(region, tc.value))

			got, err := c.DecodeWire(region)
			require.NoError(t, err)
			require.Zero(t, tc.value.Cmp(got), "decode(encode(x)) != x")
		})
	}
}

func TestShortFormsUseSingleWord(t *testing.T) {
	c := newTestCodec(t)

	region := make([]byte, c.WireLen())
	require.NoError(t, c.EncodeWire(region, big.NewInt(42)))
	require.Equal(t, byte(42), region[0])
	for _, b := range region[1:HeaderLen] {
		require.Zero(t, b)
	}

	// negative window: prime-2 encodes as two's complement of -2
	require.NoError(t, c.EncodeWire(region, new(big.Int).Sub(c.Prime(), big.NewInt(2))))
	require.Equal(t, []byte{0xfe, 0xff, 0xff, 0xff}, region[0:4])
	for _, b := range region[4:HeaderLen] {
		require.Zero(t, b)
	}
}

func TestDecodeMontgomeryForm(t *testing.T) {
	c := newTestCodec(t)

	// store v*R with the long+Montgomery markers set; decode must divide
	// the radix back out.
	v := big.NewInt(123456789)
	r := new(big.Int).Lsh(big.NewInt(1), uint(8*c.ByteLen()))
	stored := new(big.Int).Mul(v, r)
	stored.Mod(stored, c.Prime())

	region := make([]byte, c.WireLen())
	region[7] = 0x80 | 0x40
	copy(region[HeaderLen:], c.ToLEBytes(stored))

	got, err := c.DecodeWire(region)
	require.NoError(t, err)
	require.Zero(t, v.Cmp(got))
}

func TestFromMontgomeryBytes(t *testing.T) {
	c := newTestCodec(t)

	v := big.NewInt(77)
	r := new(big.Int).Lsh(big.NewInt(1), uint(8*c.ByteLen()))
	stored := new(big.Int).Mul(v, r)
	stored.Mod(stored, c.Prime())

	got := c.FromMontgomeryBytes(c.ToLEBytes(stored))
	require.Zero(t, v.Cmp(got))
}

func TestEncodeRejectsOutOfRange(t *testing.T) {
	c := newTestCodec(t)
	region := make([]byte, c.WireLen())

	require.Error(t, c.EncodeWire(region, big.NewInt(-1)))
	require.Error(t, c.EncodeWire(region, c.Prime()))
}

func TestShortBuffers(t *testing.T) {
	c := newTestCodec(t)

	require.ErrorIs(t, c.EncodeWire(make([]byte, 4), big.NewInt(1)), ErrShortBuffer)

	_, err := c.DecodeWire(make([]byte, 4))
	require.ErrorIs(t, err, ErrShortBuffer)

	// long marker but truncated limbs
	region := make([]byte, HeaderLen)
	region[7] = 0x80
	_, err = c.DecodeWire(region)
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestNewRejectsBadPrimes(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrBadPrime)

	_, err = New(big.NewInt(16))
	require.ErrorIs(t, err, ErrBadPrime)
}
