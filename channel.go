package wg750

import (
	"fmt"
)

// Kind tags a typed channel with the address space it lives in.
type Kind int

const (
	KindCoil Kind = iota
	KindDiscrete
	KindHolding
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindCoil:
		return "coil"
	case KindDiscrete:
		return "discrete"
	case KindHolding:
		return "holding"
	case KindInput:
		return "input"
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Space returns the address space a channel of this kind occupies.
func (k Kind) Space() Space {
	switch k {
	case KindCoil:
		return SpaceCoil
	case KindDiscrete:
		return SpaceDiscrete
	case KindHolding:
		return SpaceHolding
	}

	return SpaceInput
}

// Writable reports whether channels of this kind accept writes.
func (k Kind) Writable() bool {
	return k == KindCoil || k == KindHolding
}

// Cell is a single typed channel: one cell of one address space, bound
// to the process image it reads through and writes through.
type Cell struct {
	Kind    Kind
	Address uint16
	image   *ProcessImage
}

func newCell(kind Kind, address uint16, image *ProcessImage) *Cell {
	return &Cell{
		Kind:    kind,
		Address: address,
		image:   image,
	}
}

func (c *Cell) String() string {
	return fmt.Sprintf("%s:0x%04x", c.Kind, c.Address)
}

// ReadBit reads a coil or discrete input cell, refreshing the cache
// first when update is set.
func (c *Cell) ReadBit(update bool) (value bool, err error) {
	switch c.Kind {
	case KindCoil:
		return c.image.ReadCoil(int(c.Address), update)
	case KindDiscrete:
		return c.image.ReadDiscreteInput(int(c.Address), update)
	}

	return false, fmt.Errorf("%w: bit read on %s channel", ErrInvalidArgument, c.Kind)
}

// Read reads a holding or input register cell, refreshing the cache
// first when update is set.
func (c *Cell) Read(update bool) (value uint16, err error) {
	switch c.Kind {
	case KindHolding:
		return c.image.ReadHoldingRegister(int(c.Address), update)
	case KindInput:
		return c.image.ReadInputRegister(int(c.Address), update)
	}

	return 0, fmt.Errorf("%w: register read on %s channel", ErrInvalidArgument, c.Kind)
}

// ReadLSB returns the low byte of a register cell.
func (c *Cell) ReadLSB(update bool) (value uint8, err error) {
	word, err := c.Read(update)
	if err != nil {
		return
	}

	return uint8(word & 0xFF), nil
}

// ReadMSB returns the high byte of a register cell.
func (c *Cell) ReadMSB(update bool) (value uint8, err error) {
	word, err := c.Read(update)
	if err != nil {
		return
	}

	return uint8(word >> 8), nil
}

// WriteBit writes a coil cell. Discrete inputs are read-only.
func (c *Cell) WriteBit(value bool) (err error) {
	switch c.Kind {
	case KindCoil:
		return c.image.WriteCoil(int(c.Address), value)
	case KindDiscrete:
		return fmt.Errorf("%w: discrete input 0x%04x", ErrWriteToReadOnly, c.Address)
	}

	return fmt.Errorf("%w: bit write on %s channel", ErrInvalidArgument, c.Kind)
}

// Write replaces a holding register cell. Input registers are
// read-only.
func (c *Cell) Write(value uint16) (err error) {
	switch c.Kind {
	case KindHolding:
		return c.image.WriteRegister(int(c.Address), value)
	case KindInput:
		return fmt.Errorf("%w: input register 0x%04x", ErrWriteToReadOnly, c.Address)
	}

	return fmt.Errorf("%w: register write on %s channel", ErrInvalidArgument, c.Kind)
}

// WriteLSB replaces the low byte of a holding register cell. The
// current word is fetched fresh from the wire first so the high byte
// is preserved.
func (c *Cell) WriteLSB(value uint8) (err error) {
	if err = c.writableRegister(); err != nil {
		return
	}

	msb, err := c.ReadMSB(true)
	if err != nil {
		return
	}

	return c.image.WriteRegister(int(c.Address), uint16(msb)<<8|uint16(value))
}

// WriteMSB replaces the high byte of a holding register cell. The
// current word is fetched fresh from the wire first so the low byte is
// preserved.
func (c *Cell) WriteMSB(value uint8) (err error) {
	if err = c.writableRegister(); err != nil {
		return
	}

	lsb, err := c.ReadLSB(true)
	if err != nil {
		return
	}

	return c.image.WriteRegister(int(c.Address), uint16(value)<<8|uint16(lsb))
}

func (c *Cell) writableRegister() (err error) {
	switch c.Kind {
	case KindHolding:
		return nil
	case KindInput:
		return fmt.Errorf("%w: input register 0x%04x", ErrWriteToReadOnly, c.Address)
	}

	return fmt.Errorf("%w: byte write on %s channel", ErrInvalidArgument, c.Kind)
}

// Listen registers fn to run when a refresh changes this cell.
func (c *Cell) Listen(fn ChangeListener) {
	c.image.RegisterListener(c.Kind.Space(), c.Address, fn)
}

// Unlisten removes this cell's change listener.
func (c *Cell) Unlisten() {
	c.image.UnregisterListener(c.Kind.Space(), c.Address)
}
