package witness

import (
	"errors"
	"fmt"
	"math/big"

	"CircomGnarkBridge/modules/fieldcodec"
)

// ErrMemoryAccess signals a read or write outside the sandbox's linear
// memory.
var ErrMemoryAccess = errors.New("witness: out-of-range memory access")

// LinearMemory is the byte-addressed memory of a sandbox. The wazero
// api.Memory type satisfies it directly; tests substitute a byte slice.
type LinearMemory interface {
	ReadByte(offset uint32) (byte, bool)
	ReadUint32Le(offset uint32) (uint32, bool)
	WriteUint32Le(offset, v uint32) bool
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// SafeMemory is a typed view over a sandbox's linear memory. Word 0 holds
// the module's free-position cursor; field elements live in wire form at
// 8-byte-header-plus-limbs regions handled by the codec.
type SafeMemory struct {
	mem   LinearMemory
	codec *fieldcodec.Codec
}

// NewSafeMemory wraps mem with the codec of the module's prime field.
func NewSafeMemory(mem LinearMemory, codec *fieldcodec.Codec) *SafeMemory {
	return &SafeMemory{mem: mem, codec: codec}
}

// FreePos returns the module's next free memory position.
func (m *SafeMemory) FreePos() (uint32, error) {
	return m.ReadUint32(0)
}

// SetFreePos rewinds the module's allocation cursor.
func (m *SafeMemory) SetFreePos(ptr uint32) error {
	return m.WriteUint32(0, ptr)
}

// AllocU32 reserves an 8-byte slot and returns its offset.
func (m *SafeMemory) AllocU32() (uint32, error) {
	p, err := m.FreePos()
	if err != nil {
		return 0, err
	}
	return p, m.SetFreePos(p + 8)
}

// AllocFr reserves one wire-form field element and returns its offset.
func (m *SafeMemory) AllocFr() (uint32, error) {
	p, err := m.FreePos()
	if err != nil {
		return 0, err
	}
	return p, m.SetFreePos(p + uint32(m.codec.WireLen()))
}

// ReadUint32 reads a little-endian u32 at ptr.
func (m *SafeMemory) ReadUint32(ptr uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(ptr)
	if !ok {
		return 0, fmt.Errorf("%w: u32 at %#x", ErrMemoryAccess, ptr)
	}
	return v, nil
}

// WriteUint32 writes a little-endian u32 at ptr.
func (m *SafeMemory) WriteUint32(ptr, v uint32) error {
	if !m.mem.WriteUint32Le(ptr, v) {
		return fmt.Errorf("%w: u32 at %#x", ErrMemoryAccess, ptr)
	}
	return nil
}

// ReadFr decodes the wire-form field element at ptr into its canonical
// value.
func (m *SafeMemory) ReadFr(ptr uint32) (*big.Int, error) {
	region, ok := m.mem.Read(ptr, uint32(m.codec.WireLen()))
	if !ok {
		// short forms only need the header
		region, ok = m.mem.Read(ptr, fieldcodec.HeaderLen)
		if !ok {
			return nil, fmt.Errorf("%w: element at %#x", ErrMemoryAccess, ptr)
		}
	}
	return m.codec.DecodeWire(region)
}

// WriteFr encodes v into wire form at ptr. v must be canonical in
// [0, prime).
func (m *SafeMemory) WriteFr(ptr uint32, v *big.Int) error {
	region := make([]byte, m.codec.WireLen())
	if err := m.codec.EncodeWire(region, v); err != nil {
		return err
	}
	if !m.mem.Write(ptr, region) {
		return fmt.Errorf("%w: element at %#x", ErrMemoryAccess, ptr)
	}
	return nil
}

// ReadBytes reads a raw byte range.
func (m *SafeMemory) ReadBytes(ptr, n uint32) ([]byte, error) {
	buf, ok := m.mem.Read(ptr, n)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes at %#x", ErrMemoryAccess, n, ptr)
	}
	out := make([]byte, n)
	copy(out, buf)
	return out, nil
}
