// Package binfile implements the iden3 binary container framing shared by
// the .zkey, .r1cs and .wtns formats: a 4-byte magic, a u32 version, a u32
// section count, then sections of (u32 type, u64 length, body).
package binfile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFormat signals a container that does not follow the framing at all
	// (wrong magic, impossible counts).
	ErrFormat = errors.New("binfile: malformed container")
	// ErrTruncated signals a declared length that overruns the available
	// bytes.
	ErrTruncated = errors.New("binfile: truncated container")
)

// Section is one framed section of a container. Body aliases the input
// buffer and must not be mutated.
type Section struct {
	ID   uint32
	Body []byte
}

// File is a parsed container.
type File struct {
	Magic    [4]byte
	Version  uint32
	Sections []Section
}

// Parse frames the container and checks the magic. Section bodies alias
// data. Duplicate section ids keep the first occurrence; unknown ids are
// retained for the consumer to ignore.
func Parse(data []byte, magic string) (*File, error) {
	if len(magic) != 4 {
		return nil, fmt.Errorf("%w: magic must be 4 bytes", ErrFormat)
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: %d-byte header", ErrTruncated, len(data))
	}
	if string(data[0:4]) != magic {
		return nil, fmt.Errorf("%w: magic %q, want %q", ErrFormat, data[0:4], magic)
	}

	f := &File{
		Version: binary.LittleEndian.Uint32(data[4:8]),
	}
	copy(f.Magic[:], data[0:4])

	nSections := binary.LittleEndian.Uint32(data[8:12])
	pos := uint64(12)
	seen := make(map[uint32]bool, nSections)

	for i := uint32(0); i < nSections; i++ {
		if uint64(len(data))-pos < 12 {
			return nil, fmt.Errorf("%w: section %d header", ErrTruncated, i)
		}
		id := binary.LittleEndian.Uint32(data[pos : pos+4])
		length := binary.LittleEndian.Uint64(data[pos+4 : pos+12])
		pos += 12

		if length > uint64(len(data))-pos {
			return nil, fmt.Errorf("%w: section %d declares %d bytes, %d remain",
				ErrTruncated, id, length, uint64(len(data))-pos)
		}
		body := data[pos : pos+length]
		pos += length

		if seen[id] {
			continue
		}
		seen[id] = true
		f.Sections = append(f.Sections, Section{ID: id, Body: body})
	}

	return f, nil
}

// Section returns the section with the given id, or nil.
func (f *File) Section(id uint32) *Section {
	for i := range f.Sections {
		if f.Sections[i].ID == id {
			return &f.Sections[i]
		}
	}
	return nil
}

// Reader returns a cursor over the section body.
func (s *Section) Reader() *Reader {
	return &Reader{buf: s.Body}
}

// Reader is a little-endian cursor with a sticky truncation error: after the
// first overrun every subsequent read returns zero values and Err() reports
// ErrTruncated.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader wraps a raw byte slice.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Err returns the sticky error, if any.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.Remaining() < n {
		r.err = fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, r.Remaining())
		return false
	}
	return true
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

// Bytes reads n bytes. The result aliases the section body.
func (r *Reader) Bytes(n int) []byte {
	if n < 0 || !r.need(n) {
		if r.err == nil {
			r.err = fmt.Errorf("%w: negative read", ErrFormat)
		}
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// Writer builds a container for export (the .wtns path).
type Writer struct {
	magic    [4]byte
	version  uint32
	sections []Section
}

// NewWriter starts a container with the given magic and version.
func NewWriter(magic string, version uint32) (*Writer, error) {
	if len(magic) != 4 {
		return nil, fmt.Errorf("%w: magic must be 4 bytes", ErrFormat)
	}
	w := &Writer{version: version}
	copy(w.magic[:], magic)
	return w, nil
}

// AddSection appends a section. The body is referenced, not copied.
func (w *Writer) AddSection(id uint32, body []byte) {
	w.sections = append(w.sections, Section{ID: id, Body: body})
}

// Encode serializes the container.
func (w *Writer) Encode() []byte {
	size := 12
	for _, s := range w.sections {
		size += 12 + len(s.Body)
	}

	out := make([]byte, 0, size)
	out = append(out, w.magic[:]...)
	out = binary.LittleEndian.AppendUint32(out, w.version)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(w.sections)))
	for _, s := range w.sections {
		out = binary.LittleEndian.AppendUint32(out, s.ID)
		out = binary.LittleEndian.AppendUint64(out, uint64(len(s.Body)))
		out = append(out, s.Body...)
	}
	return out
}
