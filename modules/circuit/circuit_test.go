package circuit

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	gnarkr1cs "github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/stretchr/testify/require"

	"CircomGnarkBridge/modules/r1cs"
)

// multiplierCS is the constraint system of a two-input multiplier:
// wires [1, a*b, a, b], one constraint w2 * w3 = w1.
func multiplierCS() *r1cs.ConstraintSystem {
	var one fr.Element
	one.SetOne()
	return &r1cs.ConstraintSystem{
		Prime:        fr.Modulus(),
		NWires:       4,
		NPubOut:      1,
		NPrvIn:       2,
		NLabels:      4,
		NConstraints: 1,
		Constraints: []r1cs.Constraint{{
			L: r1cs.LinearCombination{{Wire: 2, Coeff: one}},
			R: r1cs.LinearCombination{{Wire: 3, Coeff: one}},
			O: r1cs.LinearCombination{{Wire: 1, Coeff: one}},
		}},
		WireMapping: []uint64{0, 1, 2, 3},
	}
}

func multiplierWitness(a, b int64) []*big.Int {
	return []*big.Int{
		big.NewInt(1),
		big.NewInt(a * b),
		big.NewInt(a),
		big.NewInt(b),
	}
}

func TestAssembleLengthMismatch(t *testing.T) {
	cs := multiplierCS()

	_, err := Assemble(cs, multiplierWitness(3, 11)[:3])
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestAssembleRejectsBadConstantWire(t *testing.T) {
	cs := multiplierCS()
	w := multiplierWitness(3, 11)
	w[0] = big.NewInt(2)

	_, err := Assemble(cs, w)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestPublicInputs(t *testing.T) {
	c, err := Assemble(multiplierCS(), multiplierWitness(3, 11))
	require.NoError(t, err)

	pub := c.PublicInputs()
	require.Len(t, pub, 1)
	require.Zero(t, pub[0].Cmp(big.NewInt(33)))
}

func TestGroth16EndToEnd(t *testing.T) {
	cs := multiplierCS()

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), gnarkr1cs.NewBuilder, Placeholder(cs))
	require.NoError(t, err)

	pk, vk, err := groth16.Setup(ccs)
	require.NoError(t, err)

	assembled, err := Assemble(cs, multiplierWitness(3, 11))
	require.NoError(t, err)

	w, err := frontend.NewWitness(assembled, ecc.BN254.ScalarField())
	require.NoError(t, err)

	proof, err := groth16.Prove(ccs, pk, w)
	require.NoError(t, err)

	pub, err := w.Public()
	require.NoError(t, err)
	require.NoError(t, groth16.Verify(proof, vk, pub))
}

func TestGroth16RejectsBadAssignment(t *testing.T) {
	cs := multiplierCS()

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), gnarkr1cs.NewBuilder, Placeholder(cs))
	require.NoError(t, err)

	pk, _, err := groth16.Setup(ccs)
	require.NoError(t, err)

	bad := multiplierWitness(3, 11)
	bad[1] = big.NewInt(34)
	assembled, err := Assemble(cs, bad)
	require.NoError(t, err)

	w, err := frontend.NewWitness(assembled, ecc.BN254.ScalarField())
	require.NoError(t, err)

	_, err = groth16.Prove(ccs, pk, w)
	require.Error(t, err)
}

func TestBuilderMergesInputs(t *testing.T) {
	b := NewBuilder(&Config{CS: multiplierCS()})
	b.PushInput("a", big.NewInt(3))
	b.PushInput("v", big.NewInt(1))
	b.PushInput("v", big.NewInt(2), big.NewInt(3))

	require.Len(t, b.inputs, 2)
	require.Len(t, b.inputs[1].Values, 3)

	shape := b.Setup()
	require.Len(t, shape.Public, 1)
	require.Len(t, shape.Private, 2)
}
