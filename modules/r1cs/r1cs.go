// Package r1cs parses the circom .r1cs constraint-system container.
//
// The container is an iden3 binfile with magic "r1cs": section 1 holds the
// header (field width, prime, wire and constraint counts), section 2 the
// constraints as triples of sparse linear combinations, section 3 the
// wire-to-label map.
package r1cs

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"CircomGnarkBridge/modules/binfile"
	"CircomGnarkBridge/modules/fieldcodec"
)

const (
	// Magic is the container magic, "r1cs".
	Magic = "r1cs"

	sectionHeader      = 1
	sectionConstraints = 2
	sectionWireMap     = 3
)

var (
	// ErrFormat signals a structurally invalid container.
	ErrFormat = errors.New("r1cs: malformed container")
	// ErrTruncated signals a section shorter than its counts require.
	ErrTruncated = errors.New("r1cs: truncated container")
	// ErrCurveMismatch signals an embedded prime other than the BN254
	// scalar field.
	ErrCurveMismatch = errors.New("r1cs: embedded prime is not the BN254 scalar field")
	// ErrWireIndexOutOfRange signals a constraint term referencing a wire
	// at or beyond the declared wire count.
	ErrWireIndexOutOfRange = errors.New("r1cs: wire index out of range")
)

// Term is one sparse entry of a linear combination.
type Term struct {
	Wire  uint32
	Coeff fr.Element
}

// LinearCombination is a sparse Σ coeff·wire sum.
type LinearCombination []Term

// Constraint is one rank-1 constraint L · R = O.
type Constraint struct {
	L, R, O LinearCombination
}

// ConstraintSystem is a fully parsed .r1cs file. It is immutable after Parse.
type ConstraintSystem struct {
	Prime        *big.Int
	NWires       uint32
	NPubOut      uint32
	NPubIn       uint32
	NPrvIn       uint32
	NLabels      uint64
	NConstraints uint32

	Constraints []Constraint

	// WireMapping maps wire index to its circom label id. Diagnostic only;
	// snarkjs witness order already matches wire order.
	WireMapping []uint64
}

// NumInputs returns the size of the instance prefix: the constant-one wire
// plus all public outputs and public inputs.
func (cs *ConstraintSystem) NumInputs() int {
	return 1 + int(cs.NPubOut) + int(cs.NPubIn)
}

// NumAux returns the number of non-instance wires.
func (cs *ConstraintSystem) NumAux() int {
	return int(cs.NWires) - cs.NumInputs()
}

// Parse decodes a .r1cs container. The constraint order of the file is
// preserved.
func Parse(data []byte) (*ConstraintSystem, error) {
	f, err := binfile.Parse(data, Magic)
	if err != nil {
		if errors.Is(err, binfile.ErrTruncated) {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if f.Version != 1 {
		return nil, fmt.Errorf("%w: version %d", ErrFormat, f.Version)
	}

	header := f.Section(sectionHeader)
	if header == nil {
		return nil, fmt.Errorf("%w: missing header section", ErrFormat)
	}
	cs, fieldLen, err := parseHeader(header.Reader())
	if err != nil {
		return nil, err
	}

	constraints := f.Section(sectionConstraints)
	if constraints == nil {
		return nil, fmt.Errorf("%w: missing constraint section", ErrFormat)
	}
	codec, err := fieldcodec.New(cs.Prime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if err := parseConstraints(cs, constraints.Reader(), codec, fieldLen); err != nil {
		return nil, err
	}

	wireMap := f.Section(sectionWireMap)
	if wireMap == nil {
		return nil, fmt.Errorf("%w: missing wire map section", ErrFormat)
	}
	if err := parseWireMap(cs, wireMap.Reader()); err != nil {
		return nil, err
	}

	return cs, nil
}

func parseHeader(r *binfile.Reader) (*ConstraintSystem, int, error) {
	fieldLen := r.U32()
	if r.Err() != nil {
		return nil, 0, fmt.Errorf("%w: header", ErrTruncated)
	}
	if fieldLen%8 != 0 || fieldLen == 0 || fieldLen > 256 {
		return nil, 0, fmt.Errorf("%w: field width %d", ErrFormat, fieldLen)
	}

	primeLE := r.Bytes(int(fieldLen))
	cs := &ConstraintSystem{
		NWires:  r.U32(),
		NPubOut: r.U32(),
		NPubIn:  r.U32(),
		NPrvIn:  r.U32(),
		NLabels: r.U64(),
	}
	cs.NConstraints = r.U32()
	if r.Err() != nil {
		return nil, 0, fmt.Errorf("%w: header", ErrTruncated)
	}

	cs.Prime = leToBig(primeLE)
	if cs.Prime.Cmp(fr.Modulus()) != 0 {
		return nil, 0, fmt.Errorf("%w: got 0x%s", ErrCurveMismatch, cs.Prime.Text(16))
	}
	if cs.NWires == 0 {
		return nil, 0, fmt.Errorf("%w: zero wires", ErrFormat)
	}
	return cs, int(fieldLen), nil
}

func parseConstraints(cs *ConstraintSystem, r *binfile.Reader, codec *fieldcodec.Codec, fieldLen int) error {
	cs.Constraints = make([]Constraint, cs.NConstraints)
	for i := range cs.Constraints {
		for _, lc := range []*LinearCombination{
			&cs.Constraints[i].L, &cs.Constraints[i].R, &cs.Constraints[i].O,
		} {
			n := r.U32()
			if r.Err() != nil {
				return fmt.Errorf("%w: constraint %d", ErrTruncated, i)
			}
			terms := make(LinearCombination, n)
			for j := range terms {
				wire := r.U32()
				coeff := r.Bytes(fieldLen)
				if r.Err() != nil {
					return fmt.Errorf("%w: constraint %d term %d", ErrTruncated, i, j)
				}
				if wire >= cs.NWires {
					return fmt.Errorf("%w: constraint %d references wire %d of %d",
						ErrWireIndexOutOfRange, i, wire, cs.NWires)
				}
				terms[j].Wire = wire
				terms[j].Coeff.SetBigInt(codec.FromLEBytes(coeff))
			}
			*lc = terms
		}
	}
	return nil
}

func parseWireMap(cs *ConstraintSystem, r *binfile.Reader) error {
	cs.WireMapping = make([]uint64, cs.NWires)
	for i := range cs.WireMapping {
		cs.WireMapping[i] = r.U64()
		if r.Err() != nil {
			return fmt.Errorf("%w: wire map entry %d", ErrTruncated, i)
		}
	}
	if cs.WireMapping[0] != 0 {
		return fmt.Errorf("%w: wire 0 maps to label %d, want 0", ErrFormat, cs.WireMapping[0])
	}
	return nil
}

func leToBig(le []byte) *big.Int {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}
