package wg750

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// testLogger returns a silent logger for tests.
func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// mockTransport emulates a 750-series controller: the four process
// image areas plus the fixed identification registers above 0x1000.
// Optional hooks let tests emulate module behavior (the DALI and
// counter handshakes) on holding writes.
type mockTransport struct {
	mu sync.Mutex

	input    Words
	holding  Words
	discrete Bits
	coil     Bits

	// fixed registers (widths, test constants, controller info,
	// module list)
	registers map[uint16]uint16
	// string registers (firmware strings) answer a multi-word read at
	// their start address with the whole string, like the controller
	strings map[uint16]Words

	// nextErrs is a queue of errors injected into the next calls
	nextErrs []error

	// onHoldingWrite runs after a holding write landed, with the
	// 0-based holding address
	onHoldingWrite func(address int)

	readCount  map[string]int
	writeCount map[string]int
	reopens    int
	closed     bool
}

func newMockTransport(widths SpaceWidths) (mt *mockTransport) {
	mt = &mockTransport{
		input:      make(Words, widths.Input),
		holding:    make(Words, widths.Holding),
		discrete:   make(Bits, widths.Discrete),
		coil:       make(Bits, widths.Coil),
		registers:  map[uint16]uint16{},
		strings:    map[uint16]Words{},
		readCount:  map[string]int{},
		writeCount: map[string]int{},
	}

	mt.registers[regWidthHolding] = uint16(widths.Holding * 16)
	mt.registers[regWidthInput] = uint16(widths.Input * 16)
	mt.registers[regWidthCoil] = uint16(widths.Coil)
	mt.registers[regWidthDiscrete] = uint16(widths.Discrete)

	for _, reg := range testConstants {
		mt.registers[reg.Address] = reg.Words[0]
	}

	return
}

// setModuleList announces the given identification words at 0x2030.
func (mt *mockTransport) setModuleList(ids ...uint16) {
	for i, id := range ids {
		mt.registers[regModuleList+uint16(i)] = id
	}
}

// setASCII stores a string register at address, two characters per
// word, low byte first.
func (mt *mockTransport) setASCII(address uint16, s string) {
	var words Words
	for i := 0; i < len(s); i += 2 {
		word := uint16(s[i])
		if i+1 < len(s) {
			word |= uint16(s[i+1]) << 8
		}
		words = append(words, word)
	}
	mt.strings[address] = words
}

// failNext queues errors returned by the next transport calls.
func (mt *mockTransport) failNext(errs ...error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.nextErrs = append(mt.nextErrs, errs...)
}

func (mt *mockTransport) popErr() error {
	if len(mt.nextErrs) == 0 {
		return nil
	}

	err := mt.nextErrs[0]
	mt.nextErrs = mt.nextErrs[1:]

	return err
}

func (mt *mockTransport) totalReads() (total int) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	for _, count := range mt.readCount {
		total += count
	}

	return
}

func (mt *mockTransport) ReadCoils(addr uint16, quantity uint16) (values []bool, err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.readCount["coil"]++
	if err = mt.popErr(); err != nil {
		return nil, err
	}

	base := int(addr - writableSpaceBase)
	if base < 0 || base+int(quantity) > len(mt.coil) {
		return nil, fmt.Errorf("coil read out of range: 0x%04x+%d", addr, quantity)
	}

	return mt.coil.Slice(base, base+int(quantity)), nil
}

func (mt *mockTransport) ReadDiscreteInputs(addr uint16, quantity uint16) (values []bool, err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.readCount["discrete"]++
	if err = mt.popErr(); err != nil {
		return nil, err
	}

	if int(addr)+int(quantity) > len(mt.discrete) {
		return nil, fmt.Errorf("discrete read out of range: 0x%04x+%d", addr, quantity)
	}

	return mt.discrete.Slice(int(addr), int(addr)+int(quantity)), nil
}

func (mt *mockTransport) ReadInputRegisters(addr uint16, quantity uint16) (values []uint16, err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.readCount["input"]++
	if err = mt.popErr(); err != nil {
		return nil, err
	}

	if s, ok := mt.strings[addr]; ok {
		return NewWords(s, int(quantity)), nil
	}

	// the fixed identification registers live above the process area
	if addr >= 0x1000 {
		values = make([]uint16, quantity)
		for i := range values {
			values[i] = mt.registers[addr+uint16(i)]
		}
		return
	}

	if int(addr)+int(quantity) > len(mt.input) {
		return nil, fmt.Errorf("input read out of range: 0x%04x+%d", addr, quantity)
	}

	return mt.input.Slice(int(addr), int(addr)+int(quantity)), nil
}

func (mt *mockTransport) ReadHoldingRegisters(addr uint16, quantity uint16) (values []uint16, err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.readCount["holding"]++
	if err = mt.popErr(); err != nil {
		return nil, err
	}

	base := int(addr - writableSpaceBase)
	if base < 0 || base+int(quantity) > len(mt.holding) {
		return nil, fmt.Errorf("holding read out of range: 0x%04x+%d", addr, quantity)
	}

	return mt.holding.Slice(base, base+int(quantity)), nil
}

func (mt *mockTransport) WriteCoil(addr uint16, value bool) (err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.writeCount["coil"]++
	if err = mt.popErr(); err != nil {
		return
	}

	base := int(addr - writableSpaceBase)
	if base < 0 || base >= len(mt.coil) {
		return fmt.Errorf("coil write out of range: 0x%04x", addr)
	}
	mt.coil[base] = value

	return
}

func (mt *mockTransport) WriteCoils(addr uint16, values []bool) (err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.writeCount["coil"]++
	if err = mt.popErr(); err != nil {
		return
	}

	base := int(addr - writableSpaceBase)
	if base < 0 || base+len(values) > len(mt.coil) {
		return fmt.Errorf("coil write out of range: 0x%04x+%d", addr, len(values))
	}
	mt.coil.Assign(base, values)

	return
}

func (mt *mockTransport) WriteRegister(addr uint16, value uint16) (err error) {
	return mt.WriteRegisters(addr, []uint16{value})
}

func (mt *mockTransport) WriteRegisters(addr uint16, values []uint16) (err error) {
	mt.mu.Lock()

	mt.writeCount["holding"]++
	if err = mt.popErr(); err != nil {
		mt.mu.Unlock()
		return
	}

	base := int(addr - writableSpaceBase)
	if base < 0 || base+len(values) > len(mt.holding) {
		mt.mu.Unlock()
		return fmt.Errorf("holding write out of range: 0x%04x+%d", addr, len(values))
	}
	mt.holding.Assign(base, values)
	hook := mt.onHoldingWrite
	mt.mu.Unlock()

	if hook != nil {
		hook(base)
	}

	return
}

func (mt *mockTransport) Close() (err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.closed = true

	return
}

// attachDaliEmulation wires a minimal 750-641 behind the given module
// base addresses: the transmit request bit is mirrored into the
// acknowledge bit, and presence queries answer with a fixed device
// population.
func (mt *mockTransport) attachDaliEmulation(inputBase int, holdingBase int) {
	mt.onHoldingWrite = func(address int) {
		mt.mu.Lock()
		defer mt.mu.Unlock()

		if address > holdingBase+2 || address < holdingBase {
			return
		}

		control := uint8(mt.holding[holdingBase] & 0xFF)
		extension := uint8(mt.holding[holdingBase] >> 8)

		if control&daliCtlTransmitRequest == 0 {
			// request lowered: complete the handshake
			mt.input[inputBase] &^= daliStsTransmitAck
			return
		}

		var response, m1, m2, m3 uint8
		if control&daliCtlMacro != 0 {
			switch extension {
			case daliExtPresentLow:
				response, m3, m2, m1 = 0x84, 0x44, 0x24, 0x14
			case daliExtPresentHigh:
				response, m3, m2, m1 = 0x11, 0x21, 0x41, 0x81
			case daliExtHwSwVersion:
				response, m1 = 0x21, 0x17
			}
		} else if control&daliCtlCommand != 0 {
			// answer queries with the command code, which is enough
			// for the tests to check plumbing
			response = uint8(mt.holding[holdingBase+1] & 0xFF)
		}

		mt.input[inputBase] = uint16(response)<<8 | daliStsTransmitAck
		mt.input[inputBase+1] = uint16(m2)<<8 | uint16(m1)
		mt.input[inputBase+2] = uint16(m3)
	}
}

// attachCounterEmulation wires a minimal 750-404 behind the given
// module base addresses: raising set_counter latches the value cells
// into the counter and acknowledges, lowering it clears the
// acknowledge.
func (mt *mockTransport) attachCounterEmulation(inputBase int, holdingBase int) {
	mt.onHoldingWrite = func(address int) {
		mt.mu.Lock()
		defer mt.mu.Unlock()

		if address > holdingBase+2 || address < holdingBase {
			return
		}

		control := uint8(mt.holding[holdingBase] & 0xFF)
		if control&counterCtlSetCounter != 0 {
			mt.input[inputBase+1] = mt.holding[holdingBase+1]
			mt.input[inputBase+2] = mt.holding[holdingBase+2]
			mt.input[inputBase] |= counterStsAckSet
		} else {
			mt.input[inputBase] &^= counterStsAckSet
		}

		if control&counterCtlLock != 0 {
			mt.input[inputBase] |= counterStsLocked
		} else {
			mt.input[inputBase] &^= counterStsLocked
		}
	}
}
