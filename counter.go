package wg750

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Control byte bits (holding word 0, low byte).
const (
	counterCtlSetDO1     = 1 << 2
	counterCtlSetDO2     = 1 << 3
	counterCtlLock       = 1 << 4
	counterCtlSetCounter = 1 << 5
)

// Status byte bits (input word 0, low byte).
const (
	counterStsClock      = 1 << 0
	counterStsUpDown     = 1 << 1
	counterStsDO1        = 1 << 2
	counterStsDO2        = 1 << 3
	counterStsLocked     = 1 << 4
	counterStsAckSet     = 1 << 5
)

const (
	defaultCounterTimeout = 5 * time.Second
	counterPollInterval   = 25 * time.Millisecond
)

// counterPort drives the 3 input + 3 holding words of an up/down
// counter module: a control/status byte pair plus a 32-bit value in
// little-word order.
type counterPort struct {
	image       *ProcessImage
	inputBase   uint16
	holdingBase uint16
	timeout     time.Duration
	logger      *log.Logger
}

func newCounterPort(image *ProcessImage, inputBase uint16, holdingBase uint16, sink *log.Logger) *counterPort {
	return &counterPort{
		image:       image,
		inputBase:   inputBase,
		holdingBase: holdingBase,
		timeout:     defaultCounterTimeout,
		logger:      newLogger(fmt.Sprintf("counter(0x%04x)", inputBase), sink),
	}
}

// Reads the status byte fresh from the wire.
func (p *counterPort) status() (value uint8, err error) {
	word, err := p.image.ReadInputRegister(int(p.inputBase), true)
	if err != nil {
		return
	}

	return uint8(word & 0xFF), nil
}

// Reads the current counter value fresh from input words 1..2, low
// word first.
func (p *counterPort) value() (value uint32, err error) {
	words, err := p.image.ReadInputRegisters(int(p.inputBase)+1, 2, true)
	if err != nil {
		return
	}

	return uint32(words.Uint()), nil
}

// Sets or clears one control bit, preserving the rest of the control
// byte, and writes it through.
func (p *counterPort) setControlBit(bit uint8, value bool) (err error) {
	word, err := p.image.ReadHoldingRegister(int(p.holdingBase), false)
	if err != nil {
		return
	}

	control := uint8(word & 0xFF)
	if value {
		control |= bit
	} else {
		control &^= bit
	}

	return p.image.WriteRegister(int(p.holdingBase), word&0xFF00|uint16(control))
}

// Waits for the given status bit to reach want, polling the input
// region. Fails with ErrTimeout on expiry.
func (p *counterPort) waitStatusBit(bit uint8, want bool) (err error) {
	deadline := time.Now().Add(p.timeout)

	for {
		status, err := p.status()
		if err != nil {
			return err
		}
		if (status&bit != 0) == want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: counter ack did not reach %v within %v",
				ErrTimeout, want, p.timeout)
		}
		time.Sleep(counterPollInterval)
	}
}

// Loads a new counter value: writes the value cells, raises
// set_counter, waits for the acknowledge bit to latch and lowers
// set_counter again.
func (p *counterPort) set(value uint32) (err error) {
	if err = p.image.WriteRegisters(int(p.holdingBase)+1, WordsFromUint(uint64(value), 2)); err != nil {
		return
	}
	if err = p.setControlBit(counterCtlSetCounter, true); err != nil {
		return
	}
	if err = p.waitStatusBit(counterStsAckSet, true); err != nil {
		return
	}

	return p.setControlBit(counterCtlSetCounter, false)
}

// Counter32 is the high-level channel of a 32-bit up/down counter
// module.
type Counter32 struct {
	channelBase
	port *counterPort
}

func newCounter32(index int, port *counterPort) *Counter32 {
	return &Counter32{
		channelBase: channelBase{channelType: ChannelCounter32, index: index},
		port:        port,
	}
}

// Read returns the current counter value.
func (ch *Counter32) Read() (uint32, error) {
	return ch.port.value()
}

// Set loads the counter with value and waits for the module to
// acknowledge the load.
func (ch *Counter32) Set(value uint32) error {
	return ch.port.set(value)
}

// Reset loads the counter with zero.
func (ch *Counter32) Reset() error {
	return ch.port.set(0)
}

// Lock freezes the counter value.
func (ch *Counter32) Lock() error {
	return ch.port.setControlBit(counterCtlLock, true)
}

// Unlock resumes counting.
func (ch *Counter32) Unlock() error {
	return ch.port.setControlBit(counterCtlLock, false)
}

// Clear lowers the set_counter control bit without loading a value.
func (ch *Counter32) Clear() error {
	return ch.port.setControlBit(counterCtlSetCounter, false)
}

// Locked reports whether the counter is currently locked.
func (ch *Counter32) Locked() (bool, error) {
	status, err := ch.port.status()
	if err != nil {
		return false, err
	}

	return status&counterStsLocked != 0, nil
}

// SetDO1 drives the module's first digital output.
func (ch *Counter32) SetDO1(value bool) error {
	return ch.port.setControlBit(counterCtlSetDO1, value)
}

// SetDO2 drives the module's second digital output.
func (ch *Counter32) SetDO2(value bool) error {
	return ch.port.setControlBit(counterCtlSetDO2, value)
}

// SetTimeout adjusts the acknowledge timeout of load operations.
func (ch *Counter32) SetTimeout(timeout time.Duration) {
	ch.port.timeout = timeout
}
