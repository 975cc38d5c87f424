package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	mmap "github.com/blevesearch/mmap-go"
)

var (
	ErrUnexpectedEOF = errors.New("stream: unexpected end of input")
	ErrOutOfRange    = errors.New("stream: position out of range")
)

// Mapped reads from a byte region with its own cursor. Views created from
// the same region share memory but not cursors, so each job can own one.
type Mapped struct {
	buf []byte
	pos int

	// set only on the root of a file mapping
	mapping *mmap.MMap
	file    *os.File
}

func New(buf []byte) *Mapped {
	return &Mapped{buf: buf}
}

// Open maps path read-only.
func Open(path string) (*Mapped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		_ = f.Close()
		return New(nil), nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	return &Mapped{buf: m, mapping: &m, file: f}, nil
}

// Close releases a file mapping. Views must not be used afterwards.
func (m *Mapped) Close() error {
	if m.mapping == nil {
		return nil
	}
	err := m.mapping.Unmap()
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	m.mapping = nil
	m.file = nil
	m.buf = nil
	return err
}

// View returns an independent reader over [begin, end) of m.
func (m *Mapped) View(begin, end int) (*Mapped, error) {
	if begin < 0 || end < begin || end > len(m.buf) {
		return nil, fmt.Errorf("%w: view [%d, %d) of %d bytes", ErrOutOfRange, begin, end, len(m.buf))
	}
	return &Mapped{buf: m.buf[begin:end:end]}, nil
}

func (m *Mapped) Position() int {
	return m.pos
}

func (m *Mapped) Len() int {
	return len(m.buf)
}

func (m *Mapped) Remaining() int {
	return len(m.buf) - m.pos
}

func (m *Mapped) EOF() bool {
	return m.pos >= len(m.buf)
}

func (m *Mapped) Jump(pos int) error {
	if pos < 0 || pos > len(m.buf) {
		return fmt.Errorf("%w: jump to %d of %d bytes", ErrOutOfRange, pos, len(m.buf))
	}
	m.pos = pos
	return nil
}

func (m *Mapped) take(n int) ([]byte, error) {
	if n < 0 || m.pos+n > len(m.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at %d, have %d", ErrUnexpectedEOF, n, m.pos, m.Remaining())
	}
	b := m.buf[m.pos : m.pos+n]
	m.pos += n
	return b, nil
}

// Bytes returns the next n bytes without copying.
func (m *Mapped) Bytes(n int) ([]byte, error) {
	return m.take(n)
}

func (m *Mapped) I8() (int8, error) {
	b, err := m.take(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (m *Mapped) Bool() (bool, error) {
	v, err := m.I8()
	return v != 0, err
}

func (m *Mapped) I16() (int16, error) {
	b, err := m.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (m *Mapped) I32() (int32, error) {
	b, err := m.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (m *Mapped) I64() (int64, error) {
	b, err := m.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (m *Mapped) F32() (float32, error) {
	v, err := m.I32()
	return math.Float32frombits(uint32(v)), err
}

func (m *Mapped) F64() (float64, error) {
	v, err := m.I64()
	return math.Float64frombits(uint64(v)), err
}

// V64 reads a variable-length integer: little-endian groups of seven bits
// with a continuation bit, at most nine bytes, the ninth contributing all
// eight of its bits.
func (m *Mapped) V64() (int64, error) {
	var r uint64
	for i := 0; i < 9; i++ {
		b, err := m.take(1)
		if err != nil {
			return 0, err
		}
		c := uint64(b[0])
		if i == 8 {
			r |= c << 56
			break
		}
		r |= (c & 0x7f) << (7 * i)
		if c < 0x80 {
			break
		}
	}
	return int64(r), nil
}

// PutV64 appends the V64 encoding of v to dst.
func PutV64(dst []byte, v int64) []byte {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		if u < 0x80 {
			return append(dst, byte(u))
		}
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}
