package zkey

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"CircomGnarkBridge/modules/binfile"
	"CircomGnarkBridge/modules/r1cs"
)

var radix = new(big.Int).Lsh(big.NewInt(1), 256)

func montLE(t *testing.T, v, modulus *big.Int) []byte {
	t.Helper()
	stored := new(big.Int).Mul(v, radix)
	stored.Mod(stored, modulus)

	out := make([]byte, 32)
	be := stored.Bytes()
	for i := 0; i < len(be); i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

func g1Bytes(t *testing.T, pt bn254.G1Affine) []byte {
	var x, y big.Int
	pt.X.BigInt(&x)
	pt.Y.BigInt(&y)
	return append(montLE(t, &x, fp.Modulus()), montLE(t, &y, fp.Modulus())...)
}

func g2Bytes(t *testing.T, pt bn254.G2Affine) []byte {
	var buf []byte
	for _, c := range []*fp.Element{&pt.X.A0, &pt.X.A1, &pt.Y.A0, &pt.Y.A1} {
		var v big.Int
		c.BigInt(&v)
		buf = append(buf, montLE(t, &v, fp.Modulus())...)
	}
	return buf
}

func leBytes(v *big.Int) []byte {
	out := make([]byte, 32)
	be := v.Bytes()
	for i := 0; i < len(be); i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// buildSample assembles a 4-variable, 1-public, domain-size-4 key from the
// curve generators. One IC slot is left at infinity to cover the all-zero
// point encoding.
func buildSample(t *testing.T) []byte {
	t.Helper()

	_, _, g1, g2 := bn254.Generators()
	var g1x2 bn254.G1Affine
	g1x2.Double(&g1)
	var g2x2 bn254.G2Affine
	g2x2.Double(&g2)
	var zeroG1 bn254.G1Affine

	w, err := binfile.NewWriter(Magic, 1)
	require.NoError(t, err)

	proverType := make([]byte, 4)
	binary.LittleEndian.PutUint32(proverType, proverGroth16)
	w.AddSection(sectionProverType, proverType)

	var header []byte
	header = binary.LittleEndian.AppendUint32(header, 32)
	header = append(header, leBytes(fp.Modulus())...)
	header = binary.LittleEndian.AppendUint32(header, 32)
	header = append(header, leBytes(fr.Modulus())...)
	header = binary.LittleEndian.AppendUint32(header, 4) // nVars
	header = binary.LittleEndian.AppendUint32(header, 1) // nPublic
	header = binary.LittleEndian.AppendUint32(header, 4) // domainSize
	header = append(header, g1Bytes(t, g1)...)           // alpha1
	header = append(header, g1Bytes(t, g1x2)...)         // beta1
	header = append(header, g2Bytes(t, g2)...)           // beta2
	header = append(header, g2Bytes(t, g2x2)...)         // gamma2
	header = append(header, g1Bytes(t, g1)...)           // delta1
	header = append(header, g2Bytes(t, g2)...)           // delta2
	w.AddSection(sectionHeader, header)

	ic := append(g1Bytes(t, g1), g1Bytes(t, zeroG1)...)
	w.AddSection(sectionIC, ic)

	// three synthetic binding rows (constraints 1 and 2) plus one circuit row
	var coeffs []byte
	coeffs = binary.LittleEndian.AppendUint32(coeffs, 3)
	rsq := new(big.Int).Mul(radix, radix)
	for _, rec := range []struct {
		matrix, constraint, signal uint32
		value                      int64
	}{
		{0, 0, 2, 3},
		{0, 1, 0, 1},
		{1, 2, 1, 1},
	} {
		coeffs = binary.LittleEndian.AppendUint32(coeffs, rec.matrix)
		coeffs = binary.LittleEndian.AppendUint32(coeffs, rec.constraint)
		coeffs = binary.LittleEndian.AppendUint32(coeffs, rec.signal)
		stored := new(big.Int).Mul(big.NewInt(rec.value), rsq)
		stored.Mod(stored, fr.Modulus())
		coeffs = append(coeffs, leBytes(stored)...)
	}
	w.AddSection(sectionCoeffs, coeffs)

	table := func(n int, bytes []byte) []byte {
		var out []byte
		for i := 0; i < n; i++ {
			out = append(out, bytes...)
		}
		return out
	}
	w.AddSection(sectionA, table(4, g1Bytes(t, g1)))
	w.AddSection(sectionB1, table(4, g1Bytes(t, g1x2)))
	w.AddSection(sectionB2, table(4, g2Bytes(t, g2)))
	w.AddSection(sectionC, table(2, g1Bytes(t, g1)))
	w.AddSection(sectionH, table(4, g1Bytes(t, g1)))

	return w.Encode()
}

func TestParseSample(t *testing.T) {
	pk, err := Parse(buildSample(t))
	require.NoError(t, err)

	_, _, g1, g2 := bn254.Generators()
	var g1x2 bn254.G1Affine
	g1x2.Double(&g1)
	var g2x2 bn254.G2Affine
	g2x2.Double(&g2)

	require.Equal(t, 4, pk.NVars)
	require.Equal(t, 1, pk.NPublic)
	require.Equal(t, uint32(4), pk.DomainSize)

	require.True(t, pk.VK.AlphaG1.Equal(&g1))
	require.True(t, pk.VK.BetaG1.Equal(&g1x2))
	require.True(t, pk.VK.BetaG2.Equal(&g2))
	require.True(t, pk.VK.GammaG2.Equal(&g2x2))
	require.True(t, pk.VK.DeltaG1.Equal(&g1))
	require.True(t, pk.VK.DeltaG2.Equal(&g2))

	require.Len(t, pk.VK.IC, 2)
	require.True(t, pk.VK.IC[0].Equal(&g1))
	require.True(t, pk.VK.IC[1].IsInfinity())

	require.Len(t, pk.A, 4)
	require.Len(t, pk.B1, 4)
	require.Len(t, pk.B2, 4)
	require.Len(t, pk.C, 2)
	require.Len(t, pk.H, 4)
	require.True(t, pk.B1[0].Equal(&g1x2))
}

func TestParseMatrices(t *testing.T) {
	pk, err := Parse(buildSample(t))
	require.NoError(t, err)

	// max constraint index 2, one public input: one circuit row survives
	require.Equal(t, 1, pk.Matrices.NumConstraints)
	require.Equal(t, 2, pk.Matrices.NumInstanceVariables)
	require.Equal(t, 3, pk.Matrices.NumWitnessVariables)
	require.Len(t, pk.Matrices.A, 1)
	require.Len(t, pk.Matrices.B, 1)

	require.Len(t, pk.Matrices.A[0], 1)
	require.Equal(t, 2, pk.Matrices.A[0][0].Signal)
	var three fr.Element
	three.SetUint64(3)
	require.True(t, pk.Matrices.A[0][0].Coeff.Equal(&three))

	require.Empty(t, pk.Matrices.B[0])
}

func TestParseCurveMismatch(t *testing.T) {
	data := buildSample(t)

	// corrupt the scalar modulus inside the header section; no partial key
	// may come back
	pos := 12 + 12 + 4 + 12 + 4 + 32 + 4
	data[pos+3] ^= 0xff

	pk, err := Parse(data)
	require.ErrorIs(t, err, ErrCurveMismatch)
	require.Nil(t, pk)
}

func TestParseWrongProverType(t *testing.T) {
	data := buildSample(t)
	// prover-type word sits right after the first section frame
	data[12+12] = 2

	_, err := Parse(data)
	require.ErrorIs(t, err, ErrFormat)
}

func TestParseTruncatedTable(t *testing.T) {
	data := buildSample(t)

	_, err := Parse(data[:len(data)-8])
	require.ErrorIs(t, err, ErrTruncated)
}

func TestConsistent(t *testing.T) {
	pk, err := Parse(buildSample(t))
	require.NoError(t, err)

	cs := &r1cs.ConstraintSystem{
		Prime:   fr.Modulus(),
		NWires:  4,
		NPubOut: 1,
	}
	require.NoError(t, pk.Consistent(cs))

	cs.NWires = 5
	require.Error(t, pk.Consistent(cs))

	cs.NWires = 4
	cs.NPubIn = 1
	require.Error(t, pk.Consistent(cs))
}
