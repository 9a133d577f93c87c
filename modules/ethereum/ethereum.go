// Package ethereum re-encodes BN254 proofs and verifying keys for the
// Solidity verifier convention: fixed-width 32-byte big-endian coordinates,
// with the c1 limb of a G2 coordinate serialized before c0. The conversions
// are pure transcoding; a round trip through this package is bit-identical.
package ethereum

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"CircomGnarkBridge/modules/zkey"
)

// ErrEncoding signals a value that does not fit the fixed-width encoding.
var ErrEncoding = errors.New("ethereum: value does not fit encoding")

// U256 is one EVM word, big-endian.
type U256 [32]byte

// U256FromBig encodes a non-negative integer of at most 256 bits.
func U256FromBig(v *big.Int) (U256, error) {
	var u U256
	if v.Sign() < 0 || v.BitLen() > 256 {
		return u, fmt.Errorf("%w: %s", ErrEncoding, v)
	}
	v.FillBytes(u[:])
	return u, nil
}

// Big returns the word as an integer.
func (u U256) Big() *big.Int {
	return new(big.Int).SetBytes(u[:])
}

// MarshalText renders the word as fixed-width 0x-prefixed hex.
func (u U256) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(u[:])), nil
}

// UnmarshalText parses a fixed-width 0x-prefixed hex word.
func (u *U256) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if len(b) != len(u) {
		return fmt.Errorf("%w: %d hex bytes", ErrEncoding, len(b))
	}
	copy(u[:], b)
	return nil
}

// G1 is an affine G1 point in EVM encoding.
type G1 struct {
	X U256 `json:"x"`
	Y U256 `json:"y"`
}

// G1FromAffine encodes a gnark-crypto point.
func G1FromAffine(pt *bn254.G1Affine) G1 {
	return G1{X: U256(pt.X.Bytes()), Y: U256(pt.Y.Bytes())}
}

// Affine decodes into a gnark-crypto point. Coordinates must be canonical
// base-field values.
func (g G1) Affine() (bn254.G1Affine, error) {
	var pt bn254.G1Affine
	if err := pt.X.SetBytesCanonical(g.X[:]); err != nil {
		return pt, fmt.Errorf("%w: G1 x: %v", ErrEncoding, err)
	}
	if err := pt.Y.SetBytesCanonical(g.Y[:]); err != nil {
		return pt, fmt.Errorf("%w: G1 y: %v", ErrEncoding, err)
	}
	return pt, nil
}

// AsTuple returns the calldata order (x, y).
func (g G1) AsTuple() [2]U256 {
	return [2]U256{g.X, g.Y}
}

// G2 is an affine G2 point in EVM encoding. Index 0 of each coordinate pair
// holds c0; serialization swaps to the Solidity c1-first order.
type G2 struct {
	X [2]U256 `json:"x"`
	Y [2]U256 `json:"y"`
}

// G2FromAffine encodes a gnark-crypto point.
func G2FromAffine(pt *bn254.G2Affine) G2 {
	return G2{
		X: [2]U256{U256(pt.X.A0.Bytes()), U256(pt.X.A1.Bytes())},
		Y: [2]U256{U256(pt.Y.A0.Bytes()), U256(pt.Y.A1.Bytes())},
	}
}

// Affine decodes into a gnark-crypto point.
func (g G2) Affine() (bn254.G2Affine, error) {
	var pt bn254.G2Affine
	for _, c := range []struct {
		dst  interface{ SetBytesCanonical([]byte) error }
		src  U256
		name string
	}{
		{&pt.X.A0, g.X[0], "x0"},
		{&pt.X.A1, g.X[1], "x1"},
		{&pt.Y.A0, g.Y[0], "y0"},
		{&pt.Y.A1, g.Y[1], "y1"},
	} {
		if err := c.dst.SetBytesCanonical(c.src[:]); err != nil {
			return pt, fmt.Errorf("%w: G2 %s: %v", ErrEncoding, c.name, err)
		}
	}
	return pt, nil
}

// AsTuple returns the calldata order: ([x1, x0], [y1, y0]).
func (g G2) AsTuple() [2][2]U256 {
	return [2][2]U256{
		{g.X[1], g.X[0]},
		{g.Y[1], g.Y[0]},
	}
}

// Proof is a Groth16 proof in EVM encoding.
type Proof struct {
	A G1 `json:"a"`
	B G2 `json:"b"`
	C G1 `json:"c"`
}

// FromProof encodes a gnark proof.
func FromProof(p *groth16_bn254.Proof) Proof {
	return Proof{
		A: G1FromAffine(&p.Ar),
		B: G2FromAffine(&p.Bs),
		C: G1FromAffine(&p.Krs),
	}
}

// ToGnark decodes back into a gnark proof.
func (p Proof) ToGnark() (*groth16_bn254.Proof, error) {
	var out groth16_bn254.Proof
	var err error
	if out.Ar, err = p.A.Affine(); err != nil {
		return nil, err
	}
	if out.Bs, err = p.B.Affine(); err != nil {
		return nil, err
	}
	if out.Krs, err = p.C.Affine(); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyingKey is a Groth16 verifying key in EVM encoding.
type VerifyingKey struct {
	Alpha1 G1   `json:"alpha1"`
	Beta2  G2   `json:"beta2"`
	Gamma2 G2   `json:"gamma2"`
	Delta2 G2   `json:"delta2"`
	IC     []G1 `json:"ic"`
}

// FromVerifyingKey encodes a gnark verifying key.
func FromVerifyingKey(vk *groth16_bn254.VerifyingKey) VerifyingKey {
	out := VerifyingKey{
		Alpha1: G1FromAffine(&vk.G1.Alpha),
		Beta2:  G2FromAffine(&vk.G2.Beta),
		Gamma2: G2FromAffine(&vk.G2.Gamma),
		Delta2: G2FromAffine(&vk.G2.Delta),
		IC:     make([]G1, len(vk.G1.K)),
	}
	for i := range vk.G1.K {
		out.IC[i] = G1FromAffine(&vk.G1.K[i])
	}
	return out
}

// FromZKey encodes the verifying half of a parsed snarkjs proving key.
func FromZKey(vk *zkey.VerifyingKey) VerifyingKey {
	out := VerifyingKey{
		Alpha1: G1FromAffine(&vk.AlphaG1),
		Beta2:  G2FromAffine(&vk.BetaG2),
		Gamma2: G2FromAffine(&vk.GammaG2),
		Delta2: G2FromAffine(&vk.DeltaG2),
		IC:     make([]G1, len(vk.IC)),
	}
	for i := range vk.IC {
		out.IC[i] = G1FromAffine(&vk.IC[i])
	}
	return out
}

// ToGnark decodes back into a gnark verifying key ready for verification.
func (vk VerifyingKey) ToGnark() (*groth16_bn254.VerifyingKey, error) {
	var out groth16_bn254.VerifyingKey
	var err error
	if out.G1.Alpha, err = vk.Alpha1.Affine(); err != nil {
		return nil, err
	}
	if out.G2.Beta, err = vk.Beta2.Affine(); err != nil {
		return nil, err
	}
	if out.G2.Gamma, err = vk.Gamma2.Affine(); err != nil {
		return nil, err
	}
	if out.G2.Delta, err = vk.Delta2.Affine(); err != nil {
		return nil, err
	}
	out.G1.K = make([]bn254.G1Affine, len(vk.IC))
	for i := range vk.IC {
		if out.G1.K[i], err = vk.IC[i].Affine(); err != nil {
			return nil, err
		}
	}
	if err := out.Precompute(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return &out, nil
}

// Inputs are the public inputs in EVM encoding, wire order, constant one
// excluded.
type Inputs []U256

// InputsFromFr encodes field elements.
func InputsFromFr(values []fr.Element) Inputs {
	out := make(Inputs, len(values))
	for i := range values {
		out[i] = U256(values[i].Bytes())
	}
	return out
}

// InputsFromBig encodes integers, rejecting any that overflow one word.
func InputsFromBig(values []*big.Int) (Inputs, error) {
	out := make(Inputs, len(values))
	for i, v := range values {
		u, err := U256FromBig(v)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		out[i] = u
	}
	return out, nil
}
