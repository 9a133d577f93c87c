package witness

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func TestParseInputsPreservesOrder(t *testing.T) {
	inputs, err := ParseInputsString(`{"b": 11, "a": 3, "c": 5}`)
	require.NoError(t, err)

	require.Len(t, inputs, 3)
	require.Equal(t, "b", inputs[0].Name)
	require.Equal(t, "a", inputs[1].Name)
	require.Equal(t, "c", inputs[2].Name)
	require.Zero(t, inputs[0].Values[0].Cmp(big.NewInt(11)))
}

func TestParseInputsFlattensRowMajor(t *testing.T) {
	inputs, err := ParseInputsString(`{"m": [[1, 2], [3, 4]], "v": [5, 6]}`)
	require.NoError(t, err)

	require.Len(t, inputs[0].Values, 4)
	for i, want := range []int64{1, 2, 3, 4} {
		require.Zero(t, inputs[0].Values[i].Cmp(big.NewInt(want)))
	}
	require.Len(t, inputs[1].Values, 2)
}

func TestParseInputsStringForms(t *testing.T) {
	inputs, err := ParseInputsString(`{"dec": "12345678901234567890123456789", "hex": "0xff", "flag": true}`)
	require.NoError(t, err)

	want, ok := new(big.Int).SetString("12345678901234567890123456789", 10)
	require.True(t, ok)
	require.Zero(t, inputs[0].Values[0].Cmp(want))
	require.Zero(t, inputs[1].Values[0].Cmp(big.NewInt(255)))
	require.Zero(t, inputs[2].Values[0].Cmp(big.NewInt(1)))
}

func TestParseInputsRejectsBadDocuments(t *testing.T) {
	for _, doc := range []string{
		`[1, 2]`,
		`{"a": {"nested": 1}}`,
		`{"a": "not a number"}`,
		`{"a": 1`,
	} {
		_, err := ParseInputsString(doc)
		require.ErrorIs(t, err, ErrInput, "document %s", doc)
	}
}

func TestWTNSRoundTrip(t *testing.T) {
	witness := []*big.Int{
		big.NewInt(1),
		big.NewInt(33),
		new(big.Int).Sub(fr.Modulus(), big.NewInt(1)),
		big.NewInt(11),
	}

	data, err := EncodeWTNS(witness, fr.Modulus())
	require.NoError(t, err)

	got, prime, err := ParseWTNS(data)
	require.NoError(t, err)
	require.Zero(t, prime.Cmp(fr.Modulus()))
	require.Len(t, got, len(witness))
	for i := range witness {
		require.Zero(t, witness[i].Cmp(got[i]))
	}
}

func TestWTNSRejectsOutOfRange(t *testing.T) {
	_, err := EncodeWTNS([]*big.Int{fr.Modulus()}, fr.Modulus())
	require.ErrorIs(t, err, ErrWTNS)
}

func TestWTNSRejectsTruncated(t *testing.T) {
	data, err := EncodeWTNS([]*big.Int{big.NewInt(1)}, fr.Modulus())
	require.NoError(t, err)

	_, _, err = ParseWTNS(data[:len(data)-4])
	require.ErrorIs(t, err, ErrWTNS)
}
