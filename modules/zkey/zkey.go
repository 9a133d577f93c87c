// Package zkey parses snarkjs Groth16 .zkey proving-key containers.
//
// The container is an iden3 binfile with magic "zkey". Section 1 carries the
// prover type, section 2 the Groth16 header (field moduli, sizes, the
// verifying-key points), section 3 the IC points, section 4 the A/B
// coefficient matrix, sections 5-9 the A, B1, B2, C and H point tables, and
// section 10 the contribution transcript, which this parser skips.
//
// Curve points are stored as little-endian Montgomery-form coordinates
// (x·R mod q); the matrix coefficients carry a double factor (v·R² mod r).
// An all-zero point encodes the group identity.
package zkey

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"CircomGnarkBridge/modules/binfile"
	"CircomGnarkBridge/modules/fieldcodec"
	"CircomGnarkBridge/modules/r1cs"
)

const (
	// Magic is the container magic, "zkey".
	Magic = "zkey"

	proverGroth16 = 1

	sectionProverType = 1
	sectionHeader     = 2
	sectionIC         = 3
	sectionCoeffs     = 4
	sectionA          = 5
	sectionB1         = 6
	sectionB2         = 7
	sectionC          = 8
	sectionH          = 9
)

var (
	// ErrFormat signals a structurally invalid container.
	ErrFormat = errors.New("zkey: malformed container")
	// ErrTruncated signals a section shorter than its element count requires.
	ErrTruncated = errors.New("zkey: truncated container")
	// ErrCurveMismatch signals embedded moduli other than the BN254 base and
	// scalar fields.
	ErrCurveMismatch = errors.New("zkey: embedded moduli are not BN254")
)

const (
	g1Len = 2 * fp.Bytes
	g2Len = 4 * fp.Bytes
)

// MatrixTerm is one sparse entry of a constraint-matrix row.
type MatrixTerm struct {
	Signal int
	Coeff  fr.Element
}

// ConstraintMatrices holds the A and B matrices embedded in the zkey, with
// the public-input rows removed the way snarkjs consumers expect.
type ConstraintMatrices struct {
	NumInstanceVariables int
	NumWitnessVariables  int
	NumConstraints       int

	A, B [][]MatrixTerm
}

// VerifyingKey is the verification half of the proving key.
type VerifyingKey struct {
	AlphaG1 bn254.G1Affine
	BetaG1  bn254.G1Affine
	DeltaG1 bn254.G1Affine
	BetaG2  bn254.G2Affine
	GammaG2 bn254.G2Affine
	DeltaG2 bn254.G2Affine

	// IC holds one point per instance variable, constant-one wire included.
	IC []bn254.G1Affine
}

// ProvingKey is a fully parsed Groth16 zkey.
type ProvingKey struct {
	NVars      int
	NPublic    int
	DomainSize uint32

	VK VerifyingKey

	A  []bn254.G1Affine
	B1 []bn254.G1Affine
	B2 []bn254.G2Affine
	C  []bn254.G1Affine
	H  []bn254.G1Affine

	Matrices ConstraintMatrices
}

type parser struct {
	file   *binfile.File
	qCodec *fieldcodec.Codec
	rCodec *fieldcodec.Codec
}

// Parse decodes a .zkey container. The embedded moduli are checked against
// the compiled curve before any point is decoded, and every section length is
// checked against its element count before its contents are touched, so no
// partially decoded key ever escapes.
func Parse(data []byte) (*ProvingKey, error) {
	f, err := binfile.Parse(data, Magic)
	if err != nil {
		if errors.Is(err, binfile.ErrTruncated) {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	if err := checkProverType(f); err != nil {
		return nil, err
	}

	qCodec, err := fieldcodec.New(fp.Modulus())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	rCodec, err := fieldcodec.New(fr.Modulus())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	p := &parser{file: f, qCodec: qCodec, rCodec: rCodec}

	pk := &ProvingKey{}
	if err := p.header(pk); err != nil {
		return nil, err
	}
	if err := p.pointTables(pk); err != nil {
		return nil, err
	}
	if err := p.matrices(pk); err != nil {
		return nil, err
	}
	return pk, nil
}

func checkProverType(f *binfile.File) error {
	s := f.Section(sectionProverType)
	if s == nil {
		return fmt.Errorf("%w: missing prover-type section", ErrFormat)
	}
	r := s.Reader()
	proverType := r.U32()
	if r.Err() != nil {
		return fmt.Errorf("%w: prover-type section", ErrTruncated)
	}
	if proverType != proverGroth16 {
		return fmt.Errorf("%w: prover type %d, want Groth16", ErrFormat, proverType)
	}
	return nil
}

func (p *parser) header(pk *ProvingKey) error {
	s := p.file.Section(sectionHeader)
	if s == nil {
		return fmt.Errorf("%w: missing header section", ErrFormat)
	}
	r := s.Reader()

	n8q := r.U32()
	qLE := r.Bytes(int(n8q))
	n8r := r.U32()
	rLE := r.Bytes(int(n8r))
	if r.Err() != nil {
		return fmt.Errorf("%w: header moduli", ErrTruncated)
	}
	if n8q != fp.Bytes || n8r != fr.Bytes {
		return fmt.Errorf("%w: field widths %d/%d", ErrCurveMismatch, n8q, n8r)
	}
	if p.qCodec.FromLEBytes(qLE).Cmp(fp.Modulus()) != 0 {
		return fmt.Errorf("%w: base field", ErrCurveMismatch)
	}
	if p.rCodec.FromLEBytes(rLE).Cmp(fr.Modulus()) != 0 {
		return fmt.Errorf("%w: scalar field", ErrCurveMismatch)
	}

	pk.NVars = int(r.U32())
	pk.NPublic = int(r.U32())
	pk.DomainSize = r.U32()
	if r.Err() != nil {
		return fmt.Errorf("%w: header sizes", ErrTruncated)
	}
	if pk.NVars <= pk.NPublic {
		return fmt.Errorf("%w: nVars %d <= nPublic %d", ErrFormat, pk.NVars, pk.NPublic)
	}

	if r.Remaining() < 3*g1Len+3*g2Len {
		return fmt.Errorf("%w: header verifying key", ErrTruncated)
	}
	var err error
	if pk.VK.AlphaG1, err = p.readG1(r); err != nil {
		return err
	}
	if pk.VK.BetaG1, err = p.readG1(r); err != nil {
		return err
	}
	if pk.VK.BetaG2, err = p.readG2(r); err != nil {
		return err
	}
	if pk.VK.GammaG2, err = p.readG2(r); err != nil {
		return err
	}
	if pk.VK.DeltaG1, err = p.readG1(r); err != nil {
		return err
	}
	pk.VK.DeltaG2, err = p.readG2(r)
	return err
}

func (p *parser) pointTables(pk *ProvingKey) error {
	var err error
	if pk.VK.IC, err = p.g1Table(sectionIC, pk.NPublic+1); err != nil {
		return err
	}
	if pk.A, err = p.g1Table(sectionA, pk.NVars); err != nil {
		return err
	}
	if pk.B1, err = p.g1Table(sectionB1, pk.NVars); err != nil {
		return err
	}
	if pk.B2, err = p.g2Table(sectionB2, pk.NVars); err != nil {
		return err
	}
	if pk.C, err = p.g1Table(sectionC, pk.NVars-pk.NPublic-1); err != nil {
		return err
	}
	pk.H, err = p.g1Table(sectionH, int(pk.DomainSize))
	return err
}

func (p *parser) g1Table(id uint32, n int) ([]bn254.G1Affine, error) {
	r, err := p.sectionReader(id, n*g1Len)
	if err != nil {
		return nil, err
	}
	out := make([]bn254.G1Affine, n)
	for i := range out {
		if out[i], err = p.readG1(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *parser) g2Table(id uint32, n int) ([]bn254.G2Affine, error) {
	r, err := p.sectionReader(id, n*g2Len)
	if err != nil {
		return nil, err
	}
	out := make([]bn254.G2Affine, n)
	for i := range out {
		if out[i], err = p.readG2(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *parser) sectionReader(id uint32, need int) (*binfile.Reader, error) {
	s := p.file.Section(id)
	if s == nil {
		return nil, fmt.Errorf("%w: missing section %d", ErrFormat, id)
	}
	if len(s.Body) < need {
		return nil, fmt.Errorf("%w: section %d holds %d bytes, need %d",
			ErrTruncated, id, len(s.Body), need)
	}
	return s.Reader(), nil
}

// readG1 decodes one x||y pair of Montgomery-form base-field coordinates.
// The all-zero pair is the point at infinity, which is also the zero value
// of bn254.G1Affine.
func (p *parser) readG1(r *binfile.Reader) (bn254.G1Affine, error) {
	var pt bn254.G1Affine
	xLE := r.Bytes(fp.Bytes)
	yLE := r.Bytes(fp.Bytes)
	if r.Err() != nil {
		return pt, fmt.Errorf("%w: G1 point", ErrTruncated)
	}
	if allZero(xLE) && allZero(yLE) {
		return pt, nil
	}
	pt.X.SetBigInt(p.qCodec.FromMontgomeryBytes(xLE))
	pt.Y.SetBigInt(p.qCodec.FromMontgomeryBytes(yLE))
	return pt, nil
}

func (p *parser) readG2(r *binfile.Reader) (bn254.G2Affine, error) {
	var pt bn254.G2Affine
	limbs := r.Bytes(g2Len)
	if r.Err() != nil {
		return pt, fmt.Errorf("%w: G2 point", ErrTruncated)
	}
	if allZero(limbs) {
		return pt, nil
	}
	pt.X.A0.SetBigInt(p.qCodec.FromMontgomeryBytes(limbs[0:fp.Bytes]))
	pt.X.A1.SetBigInt(p.qCodec.FromMontgomeryBytes(limbs[fp.Bytes : 2*fp.Bytes]))
	pt.Y.A0.SetBigInt(p.qCodec.FromMontgomeryBytes(limbs[2*fp.Bytes : 3*fp.Bytes]))
	pt.Y.A1.SetBigInt(p.qCodec.FromMontgomeryBytes(limbs[3*fp.Bytes : 4*fp.Bytes]))
	return pt, nil
}

// matrices decodes section 4. snarkjs appends one synthetic row per instance
// variable to bind the public inputs; those rows are dropped here because the
// backend adds its own binding, leaving NumConstraints circuit rows.
func (p *parser) matrices(pk *ProvingKey) error {
	s := p.file.Section(sectionCoeffs)
	if s == nil {
		return fmt.Errorf("%w: missing coefficient section", ErrFormat)
	}
	r := s.Reader()
	numCoeffs := int(r.U32())
	if r.Err() != nil {
		return fmt.Errorf("%w: coefficient count", ErrTruncated)
	}
	recordLen := 12 + fr.Bytes
	if r.Remaining() < numCoeffs*recordLen {
		return fmt.Errorf("%w: coefficient section holds %d records, declares %d",
			ErrTruncated, r.Remaining()/recordLen, numCoeffs)
	}

	rows := [2][][]MatrixTerm{
		make([][]MatrixTerm, pk.DomainSize),
		make([][]MatrixTerm, pk.DomainSize),
	}
	maxConstraint := 0
	for i := 0; i < numCoeffs; i++ {
		matrix := r.U32()
		constraint := int(r.U32())
		signal := int(r.U32())
		valueLE := r.Bytes(fr.Bytes)
		if matrix > 1 || constraint >= int(pk.DomainSize) {
			return fmt.Errorf("%w: coefficient %d targets matrix %d row %d",
				ErrFormat, i, matrix, constraint)
		}
		if constraint > maxConstraint {
			maxConstraint = constraint
		}

		// double Montgomery factor: v·R² on disk
		var coeff fr.Element
		canonical := p.rCodec.FromMontgomery(p.rCodec.FromMontgomery(p.rCodec.FromLEBytes(valueLE)))
		coeff.SetBigInt(canonical)
		rows[matrix][constraint] = append(rows[matrix][constraint], MatrixTerm{
			Signal: signal,
			Coeff:  coeff,
		})
	}

	numConstraints := maxConstraint - pk.NPublic
	if numCoeffs == 0 {
		numConstraints = 0
	}
	if numConstraints < 0 {
		return fmt.Errorf("%w: %d coefficient rows for %d public inputs",
			ErrFormat, maxConstraint+1, pk.NPublic)
	}

	pk.Matrices = ConstraintMatrices{
		NumInstanceVariables: pk.NPublic + 1,
		NumWitnessVariables:  pk.NVars - pk.NPublic,
		NumConstraints:       numConstraints,
		A:                    rows[0][:numConstraints],
		B:                    rows[1][:numConstraints],
	}
	return nil
}

// Consistent cross-checks the key against the companion constraint system.
func (pk *ProvingKey) Consistent(cs *r1cs.ConstraintSystem) error {
	if cs.Prime.Cmp(fr.Modulus()) != 0 {
		return fmt.Errorf("%w: constraint system prime", ErrCurveMismatch)
	}
	if pk.NVars != int(cs.NWires) {
		return fmt.Errorf("%w: key has %d variables, constraint system %d wires",
			ErrFormat, pk.NVars, cs.NWires)
	}
	if pk.NPublic != int(cs.NPubOut+cs.NPubIn) {
		return fmt.Errorf("%w: key has %d public inputs, constraint system %d",
			ErrFormat, pk.NPublic, cs.NPubOut+cs.NPubIn)
	}
	return nil
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
