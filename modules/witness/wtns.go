package witness

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"CircomGnarkBridge/modules/binfile"
)

// WTNSMagic is the snarkjs witness container magic.
const WTNSMagic = "wtns"

const (
	wtnsVersion        = 2
	wtnsSectionHeader  = 1
	wtnsSectionWitness = 2
)

// ErrWTNS signals a malformed .wtns container.
var ErrWTNS = errors.New("witness: malformed wtns container")

// EncodeWTNS serializes an assignment vector as a snarkjs .wtns container.
// Every value must be canonical in [0, prime).
func EncodeWTNS(witness []*big.Int, prime *big.Int) ([]byte, error) {
	byteLen := (prime.BitLen() + 63) / 64 * 8

	var header []byte
	header = binary.LittleEndian.AppendUint32(header, uint32(byteLen))
	header = append(header, leLimbs(prime, byteLen)...)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(witness)))

	body := make([]byte, 0, len(witness)*byteLen)
	for i, v := range witness {
		if v.Sign() < 0 || v.Cmp(prime) >= 0 {
			return nil, fmt.Errorf("%w: value %d out of range", ErrWTNS, i)
		}
		body = append(body, leLimbs(v, byteLen)...)
	}

	w, err := binfile.NewWriter(WTNSMagic, wtnsVersion)
	if err != nil {
		return nil, err
	}
	w.AddSection(wtnsSectionHeader, header)
	w.AddSection(wtnsSectionWitness, body)
	return w.Encode(), nil
}

// ParseWTNS decodes a snarkjs .wtns container into the assignment vector
// and its prime.
func ParseWTNS(data []byte) ([]*big.Int, *big.Int, error) {
	f, err := binfile.Parse(data, WTNSMagic)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrWTNS, err)
	}

	header := f.Section(wtnsSectionHeader)
	if header == nil {
		return nil, nil, fmt.Errorf("%w: missing header section", ErrWTNS)
	}
	r := header.Reader()
	byteLen := int(r.U32())
	primeLE := r.Bytes(byteLen)
	count := int(r.U32())
	if r.Err() != nil {
		return nil, nil, fmt.Errorf("%w: header: %v", ErrWTNS, r.Err())
	}
	if byteLen == 0 || byteLen%8 != 0 {
		return nil, nil, fmt.Errorf("%w: element width %d", ErrWTNS, byteLen)
	}
	prime := leToBigInt(primeLE)

	body := f.Section(wtnsSectionWitness)
	if body == nil {
		return nil, nil, fmt.Errorf("%w: missing witness section", ErrWTNS)
	}
	if len(body.Body) < count*byteLen {
		return nil, nil, fmt.Errorf("%w: %d elements declared, %d bytes present",
			ErrWTNS, count, len(body.Body))
	}

	witness := make([]*big.Int, count)
	for i := range witness {
		witness[i] = leToBigInt(body.Body[i*byteLen : (i+1)*byteLen])
	}
	return witness, prime, nil
}

func leLimbs(v *big.Int, byteLen int) []byte {
	out := make([]byte, byteLen)
	be := v.Bytes()
	for i := 0; i < len(be); i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

func leToBigInt(le []byte) *big.Int {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}
