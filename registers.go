package wg750

import (
	"fmt"
	"strings"
)

// Words is an ordered sequence of 16-bit register cells.
type Words []uint16

// NewWords returns a Words of the given size, filled from values.
// Shorter inputs are zero-padded, longer inputs are truncated.
// A size of 0 keeps the input length.
func NewWords(values []uint16, size int) (w Words) {
	if size == 0 {
		size = len(values)
	}

	w = make(Words, size)
	copy(w, values)

	return
}

// WordsFromUint is the inverse of Uint: it splits an unsigned integer
// into width cells, least significant cell first.
func WordsFromUint(value uint64, width int) (w Words) {
	w = make(Words, width)
	for i := 0; i < width; i++ {
		w[i] = uint16(value >> (16 * i))
	}

	return
}

// WordsFromBytes pairs bytes into cells, high byte first within each
// cell. An odd trailing byte is padded with 0x00.
func WordsFromBytes(in []byte) (w Words) {
	if len(in)%2 == 1 {
		in = append(in, 0x00)
	}

	for i := 0; i < len(in); i += 2 {
		w = append(w, uint16(in[i])<<8|uint16(in[i+1]))
	}

	return
}

// Copy returns an independent copy.
func (w Words) Copy() (out Words) {
	out = make(Words, len(w))
	copy(out, w)

	return
}

// Width returns the number of cells.
func (w Words) Width() int {
	return len(w)
}

// Slice returns a copy of the cells in [from, to).
func (w Words) Slice(from int, to int) Words {
	return w[from:to].Copy()
}

// Assign overwrites the cells starting at offset with values.
func (w Words) Assign(offset int, values []uint16) {
	copy(w[offset:], values)
}

// Equal compares width and content.
func (w Words) Equal(other Words) bool {
	if len(w) != len(other) {
		return false
	}
	for i := range w {
		if w[i] != other[i] {
			return false
		}
	}

	return true
}

// Bytes returns two bytes per cell, high byte first.
func (w Words) Bytes() (out []byte) {
	for _, word := range w {
		out = append(out, byte(word>>8), byte(word))
	}

	return
}

// Hex returns the content as a concatenation of 4-digit uppercase
// hexadecimal cell values.
func (w Words) Hex() (s string) {
	var b strings.Builder

	for _, word := range w {
		fmt.Fprintf(&b, "%04X", word)
	}

	return b.String()
}

// Bin returns the content as a concatenation of 16-digit binary cell
// values.
func (w Words) Bin() (s string) {
	var b strings.Builder

	for _, word := range w {
		fmt.Fprintf(&b, "%016b", word)
	}

	return b.String()
}

// Uint returns the content as an unsigned integer, least significant
// cell first: sum of cell[i] << (16*i).
func (w Words) Uint() (v uint64) {
	for i, word := range w {
		v |= uint64(word) << (16 * i)
	}

	return
}

// ASCII decodes each cell as two characters, low byte then high byte,
// skipping all-zero cells and trimming trailing NULs. This is the
// packing the controller uses for its firmware info strings.
func (w Words) ASCII() (s string) {
	var b strings.Builder

	for _, word := range w {
		if word == 0 {
			continue
		}
		b.WriteByte(byte(word))
		b.WriteByte(byte(word >> 8))
	}

	return strings.TrimRight(b.String(), "\x00")
}

// String implements fmt.Stringer.
func (w Words) String() string {
	return w.Hex()
}

// Bits is an ordered sequence of 1-bit cells.
type Bits []bool

// NewBits returns a Bits of the given size, filled from values.
// Shorter inputs are zero-padded, longer inputs are truncated.
// A size of 0 keeps the input length.
func NewBits(values []bool, size int) (b Bits) {
	if size == 0 {
		size = len(values)
	}

	b = make(Bits, size)
	copy(b, values)

	return
}

// Copy returns an independent copy.
func (b Bits) Copy() (out Bits) {
	out = make(Bits, len(b))
	copy(out, b)

	return
}

// Width returns the number of cells.
func (b Bits) Width() int {
	return len(b)
}

// Slice returns a copy of the cells in [from, to).
func (b Bits) Slice(from int, to int) Bits {
	return b[from:to].Copy()
}

// Assign overwrites the cells starting at offset with values.
func (b Bits) Assign(offset int, values []bool) {
	copy(b[offset:], values)
}

// Equal compares width and content.
func (b Bits) Equal(other Bits) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i] != other[i] {
			return false
		}
	}

	return true
}

// Uint returns the content as an unsigned integer, least significant
// bit first.
func (b Bits) Uint() (v uint64) {
	for i, bit := range b {
		if bit {
			v |= 1 << i
		}
	}

	return
}

// Bin returns the content as a string of 0s and 1s, cell order.
func (b Bits) Bin() (s string) {
	var sb strings.Builder

	for _, bit := range b {
		if bit {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}

	return sb.String()
}

// String implements fmt.Stringer.
func (b Bits) String() string {
	return b.Bin()
}

// Register is a Words with the controller address it was read from,
// used for the controller's fixed registers and their logging.
type Register struct {
	Address uint16
	Words
}

// NewRegister returns a register holding values read from address.
func NewRegister(address uint16, values []uint16) Register {
	return Register{
		Address: address,
		Words:   NewWords(values, 0),
	}
}

// Equal compares address and content.
func (r Register) Equal(other Register) bool {
	return r.Address == other.Address && r.Words.Equal(other.Words)
}

// String implements fmt.Stringer.
func (r Register) String() string {
	if r.Width() == 0 {
		return fmt.Sprintf("address: 0x%04X, value: n/a", r.Address)
	}

	return fmt.Sprintf("address: 0x%04X, value: 0x%s", r.Address, r.Hex())
}

// The controller exposes fixed self-test registers. A mismatch points
// at an addressing or byte-order fault between driver and controller.
var testConstants = []Register{
	NewRegister(0x2000, []uint16{0x0000}),
	NewRegister(0x2001, []uint16{0xFFFF}),
	NewRegister(0x2002, []uint16{0x1234}),
	NewRegister(0x2003, []uint16{0xAAAA}),
	NewRegister(0x2004, []uint16{0x5555}),
	NewRegister(0x2005, []uint16{0x7FFF}),
	NewRegister(0x2006, []uint16{0x8000}),
	NewRegister(0x2007, []uint16{0x3FFF}),
	NewRegister(0x2008, []uint16{0x4000}),
}
