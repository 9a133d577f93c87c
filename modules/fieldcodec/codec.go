// Package fieldcodec converts between the circom sandbox's field-element
// wire representation and canonical big integers.
//
// The sandbox stores a field element as an 8-byte header followed by the
// little-endian limbs. Three forms exist on the wire:
//   - short positive: value in the first 32-bit word, second word zero;
//   - short negative: two's-complement 32-bit value for elements close to
//     the prime, second word zero;
//   - long: second word carries marker 0x80000000, limbs follow the header,
//     optionally in Montgomery form (marker bit 0x40 of the top byte).
package fieldcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrBadPrime signals a modulus the codec cannot operate over.
	ErrBadPrime = errors.New("fieldcodec: invalid prime")
	// ErrShortBuffer signals a caller-provided region too small for the
	// selected wire form.
	ErrShortBuffer = errors.New("fieldcodec: buffer too short")
)

const (
	// HeaderLen is the number of bytes preceding the limbs of a wire-form
	// field element.
	HeaderLen = 8

	longMarker       = 0x80
	montgomeryMarker = 0x40
	shortNegMarker   = 0x40
)

// Codec encodes and decodes field elements of a single prime field.
// It is immutable after construction and safe for concurrent use.
type Codec struct {
	prime    *big.Int
	byteLen  int
	n32      int
	rInv     *big.Int
	shortMax *big.Int // 2^30
	shortMin *big.Int // prime - 2^30
}

// New builds a codec for the given prime. The limb width is rounded up to
// whole 64-bit words, matching both the sandbox layout and the backend's
// Montgomery radix R = 2^(8*ByteLen).
func New(prime *big.Int) (*Codec, error) {
	if prime == nil || prime.Sign() <= 0 || prime.Bit(0) == 0 {
		return nil, ErrBadPrime
	}

	byteLen := (prime.BitLen() + 63) / 64 * 8

	r := new(big.Int).Lsh(big.NewInt(1), uint(8*byteLen))
	rInv := new(big.Int).ModInverse(r, prime)
	if rInv == nil {
		return nil, fmt.Errorf("%w: radix not invertible", ErrBadPrime)
	}

	// The decoder tells the short forms apart by bits 30/31 of the first
	// word, so only values whose encodings keep those marker bits
	// meaningful may encode short; everything else takes the long form.
	shortMax := new(big.Int).Lsh(big.NewInt(1), 30)

	return &Codec{
		prime:    new(big.Int).Set(prime),
		byteLen:  byteLen,
		n32:      byteLen / 4,
		rInv:     rInv,
		shortMax: shortMax,
		shortMin: new(big.Int).Sub(prime, shortMax),
	}, nil
}

// Prime returns the field modulus.
func (c *Codec) Prime() *big.Int { return new(big.Int).Set(c.prime) }

// ByteLen returns the limb width of one element in bytes.
func (c *Codec) ByteLen() int { return c.byteLen }

// N32 returns the limb width of one element in 32-bit words.
func (c *Codec) N32() int { return c.n32 }

// WireLen returns the full size of one wire-form element, header included.
func (c *Codec) WireLen() int { return HeaderLen + c.byteLen }

// Reduce maps an arbitrary integer (negative values included) into [0, prime).
func (c *Codec) Reduce(v *big.Int) *big.Int {
	r := new(big.Int).Mod(v, c.prime)
	if r.Sign() < 0 {
		r.Add(r, c.prime)
	}
	return r
}

// FromMontgomery removes one Montgomery factor: v * R^-1 mod prime.
// zkey curve coordinates are stored as x*R; scalar coefficients as v*R^2
// and need two applications.
func (c *Codec) FromMontgomery(v *big.Int) *big.Int {
	out := new(big.Int).Mul(v, c.rInv)
	return out.Mod(out, c.prime)
}

// FromLEBytes interprets b as a little-endian unsigned integer.
func (c *Codec) FromLEBytes(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, x := range b {
		be[len(b)-1-i] = x
	}
	return new(big.Int).SetBytes(be)
}

// FromMontgomeryBytes decodes little-endian Montgomery-form limbs into the
// canonical value. Used by the container parsers.
func (c *Codec) FromMontgomeryBytes(b []byte) *big.Int {
	return c.FromMontgomery(c.FromLEBytes(b))
}

// ToLEBytes serializes v as exactly ByteLen little-endian bytes.
func (c *Codec) ToLEBytes(v *big.Int) []byte {
	out := make([]byte, c.byteLen)
	be := v.Bytes()
	for i := 0; i < len(be) && i < c.byteLen; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// EncodeWire writes v into the caller-provided region, selecting among the
// three wire forms by magnitude. v must already be canonical in [0, prime).
// The region must hold WireLen() bytes for the long form, HeaderLen for the
// short forms. No state outside the region is touched.
func (c *Codec) EncodeWire(region []byte, v *big.Int) error {
	if len(region) < HeaderLen {
		return ErrShortBuffer
	}
	if v.Sign() < 0 || v.Cmp(c.prime) >= 0 {
		return fmt.Errorf("fieldcodec: value out of range [0, prime)")
	}

	switch {
	case v.Cmp(c.shortMax) < 0:
		binary.LittleEndian.PutUint32(region[0:4], uint32(v.Uint64()))
		binary.LittleEndian.PutUint32(region[4:8], 0)

	case v.Cmp(c.shortMin) >= 0:
		// prime-complement: v stands for the negative v-prime, stored as
		// its 32-bit two's complement.
		neg := new(big.Int).Sub(v, c.prime)
		neg.Add(neg, twoPow32)
		binary.LittleEndian.PutUint32(region[0:4], uint32(neg.Uint64()))
		binary.LittleEndian.PutUint32(region[4:8], 0)

	default:
		if len(region) < c.WireLen() {
			return ErrShortBuffer
		}
		binary.LittleEndian.PutUint32(region[0:4], 0)
		binary.LittleEndian.PutUint32(region[4:8], longMarker<<24)
		copy(region[HeaderLen:], c.ToLEBytes(v))
	}

	return nil
}

// DecodeWire reads a wire-form element from region and returns its canonical
// value in [0, prime). Montgomery-tagged long forms are converted via the
// stored radix inverse; short negatives are prime-complement adjusted.
func (c *Codec) DecodeWire(region []byte) (*big.Int, error) {
	if len(region) < HeaderLen {
		return nil, ErrShortBuffer
	}

	marker := region[7]
	if marker&longMarker != 0 {
		if len(region) < c.WireLen() {
			return nil, ErrShortBuffer
		}
		v := c.FromLEBytes(region[HeaderLen:c.WireLen()])
		if marker&montgomeryMarker != 0 {
			return c.FromMontgomery(v), nil
		}
		return c.Reduce(v), nil
	}

	word := binary.LittleEndian.Uint32(region[0:4])
	if region[3]&shortNegMarker != 0 {
		v := new(big.Int).SetUint64(uint64(word))
		v.Sub(v, twoPow32)
		return c.Reduce(v), nil
	}
	return new(big.Int).SetUint64(uint64(word)), nil
}

var twoPow32 = new(big.Int).Lsh(big.NewInt(1), 32)
