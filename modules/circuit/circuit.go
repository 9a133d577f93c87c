// Package circuit pairs a parsed constraint system with a computed
// assignment and re-expresses both for the gnark Groth16 backend.
package circuit

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"CircomGnarkBridge/modules/r1cs"
)

// ErrLengthMismatch signals an assignment whose length differs from the
// constraint system's wire count.
var ErrLengthMismatch = errors.New("circuit: witness length does not match wire count")

// Circuit implements frontend.Circuit by replaying every constraint triple
// of the source system. Wire 0 is the implicit constant one; the instance
// wires follow, then the private segment.
type Circuit struct {
	Public  []frontend.Variable `gnark:",public"`
	Private []frontend.Variable

	cs     *r1cs.ConstraintSystem
	public []*big.Int
}

// Placeholder builds the compile-time shape of the circuit: variable slots
// sized from the constraint system, no assignment.
func Placeholder(cs *r1cs.ConstraintSystem) *Circuit {
	return &Circuit{
		Public:  make([]frontend.Variable, cs.NumInputs()-1),
		Private: make([]frontend.Variable, cs.NumAux()),
		cs:      cs,
	}
}

// Assemble binds an assignment vector to the constraint system. The vector
// must carry one value per wire, wire 0 first.
func Assemble(cs *r1cs.ConstraintSystem, witness []*big.Int) (*Circuit, error) {
	if len(witness) != int(cs.NWires) {
		return nil, fmt.Errorf("%w: %d values for %d wires", ErrLengthMismatch, len(witness), cs.NWires)
	}
	if witness[0] == nil || witness[0].Cmp(big.NewInt(1)) != 0 {
		return nil, fmt.Errorf("%w: wire 0 must be 1", ErrLengthMismatch)
	}

	c := Placeholder(cs)
	numInputs := cs.NumInputs()
	c.public = make([]*big.Int, 0, numInputs-1)
	for i := 1; i < numInputs; i++ {
		c.Public[i-1] = witness[i]
		c.public = append(c.public, new(big.Int).Set(witness[i]))
	}
	for i := numInputs; i < int(cs.NWires); i++ {
		c.Private[i-numInputs] = witness[i]
	}
	return c, nil
}

// PublicInputs returns the verification inputs in wire order, constant one
// excluded. Only populated on assembled circuits.
func (c *Circuit) PublicInputs() []*big.Int {
	out := make([]*big.Int, len(c.public))
	for i, v := range c.public {
		out[i] = new(big.Int).Set(v)
	}
	return out
}

// Define replays each source constraint as Σaᵢwᵢ · Σbᵢwᵢ = Σcᵢwᵢ.
// Satisfaction is the backend's business; nothing is checked here beyond
// what the replayed constraints imply.
func (c *Circuit) Define(api frontend.API) error {
	if c.cs == nil {
		return errors.New("circuit: no constraint system bound")
	}

	numInputs := c.cs.NumInputs()
	wire := func(i uint32) frontend.Variable {
		switch {
		case i == 0:
			return 1
		case int(i) < numInputs:
			return c.Public[i-1]
		default:
			return c.Private[int(i)-numInputs]
		}
	}
	evalLC := func(lc r1cs.LinearCombination) frontend.Variable {
		acc := frontend.Variable(0)
		for _, term := range lc {
			var coeff big.Int
			term.Coeff.BigInt(&coeff)
			acc = api.Add(acc, api.Mul(coeff, wire(term.Wire)))
		}
		return acc
	}

	for _, con := range c.cs.Constraints {
		api.AssertIsEqual(api.Mul(evalLC(con.L), evalLC(con.R)), evalLC(con.O))
	}
	return nil
}
