package wg750

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Space selects one of the four modbus address spaces of the process
// image.
type Space int

const (
	SpaceInput Space = iota
	SpaceHolding
	SpaceDiscrete
	SpaceCoil
)

func (s Space) String() string {
	switch s {
	case SpaceInput:
		return "input"
	case SpaceHolding:
		return "holding"
	case SpaceDiscrete:
		return "discrete"
	case SpaceCoil:
		return "coil"
	}

	return fmt.Sprintf("space(%d)", int(s))
}

// The controller maps its writable spaces (holding registers and
// coils) at 0x0200 on the wire. Cached addresses are 0-based; the
// offset is applied when talking to the transport only.
const writableSpaceBase uint16 = 0x0200

// SpaceWidths holds the populated width of each address space, in
// cells: words for the register spaces, bits for the bit spaces.
type SpaceWidths struct {
	Input    int
	Holding  int
	Discrete int
	Coil     int
}

type cellKey struct {
	space   Space
	address uint16
}

// ChangeListener receives the new cell value after a refresh changed
// it. Bit cells deliver 0 or 1. Listeners run on the poller context
// under the image mutex: they must not block and must not call back
// into the image — hand the value off to your own goroutine instead.
type ChangeListener func(value uint16)

// PollIntervals configures the continuous poller. Global, when set,
// applies to all four regions; the per-region fields override it.
// Unset (zero) fields keep the current interval.
type PollIntervals struct {
	Global   time.Duration
	Input    time.Duration
	Holding  time.Duration
	Discrete time.Duration
	Coil     time.Duration
}

const (
	defaultPollInterval = time.Second
	pollErrorPause      = 500 * time.Millisecond
	maxPollSleep        = 100 * time.Millisecond
)

// ProcessImage mirrors the controller's four address spaces. All reads
// are served from the cache; writes go through to the wire and refresh
// the written region before returning. A background poller keeps the
// regions fresh on a per-region cadence and fires change listeners.
type ProcessImage struct {
	mu     sync.Mutex
	tr     Transport
	logger *log.Logger

	input    Words
	holding  Words
	discrete Bits
	coil     Bits

	intervals  map[Space]time.Duration
	lastUpdate map[Space]time.Time
	listeners  map[cellKey]ChangeListener

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewProcessImage returns an image sized to the given widths, backed
// by tr. The cache starts zeroed; call UpdateAll to load it.
func NewProcessImage(tr Transport, widths SpaceWidths, sink *log.Logger) (pi *ProcessImage) {
	pi = &ProcessImage{
		tr:       tr,
		logger:   newLogger("image", sink),
		input:    make(Words, widths.Input),
		holding:  make(Words, widths.Holding),
		discrete: make(Bits, widths.Discrete),
		coil:     make(Bits, widths.Coil),
		intervals: map[Space]time.Duration{
			SpaceInput:    defaultPollInterval,
			SpaceHolding:  defaultPollInterval,
			SpaceDiscrete: defaultPollInterval,
			SpaceCoil:     defaultPollInterval,
		},
		lastUpdate: map[Space]time.Time{},
		listeners:  map[cellKey]ChangeListener{},
	}

	return
}

// Widths returns the populated width of each space, in cells.
func (pi *ProcessImage) Widths() SpaceWidths {
	return SpaceWidths{
		Input:    len(pi.input),
		Holding:  len(pi.holding),
		Discrete: len(pi.discrete),
		Coil:     len(pi.coil),
	}
}

// RegisterListener arranges for fn to be called whenever a refresh
// changes the cached value of the given cell.
func (pi *ProcessImage) RegisterListener(space Space, address uint16, fn ChangeListener) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.listeners[cellKey{space, address}] = fn
}

// UnregisterListener removes the listener of the given cell, if any.
func (pi *ProcessImage) UnregisterListener(space Space, address uint16) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	delete(pi.listeners, cellKey{space, address})
}

// UpdateInput refreshes width input registers starting at address. A
// width of 0 or less refreshes from address to the end of the space.
func (pi *ProcessImage) UpdateInput(address int, width int) (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	return pi.updateInput(address, width)
}

// UpdateHolding refreshes width holding registers starting at address.
// A width of 0 or less refreshes from address to the end of the space.
func (pi *ProcessImage) UpdateHolding(address int, width int) (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	return pi.updateHolding(address, width)
}

// UpdateDiscrete refreshes width discrete inputs starting at address.
// A width of 0 or less refreshes from address to the end of the space.
func (pi *ProcessImage) UpdateDiscrete(address int, width int) (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	return pi.updateDiscrete(address, width)
}

// UpdateCoil refreshes width coils starting at address. A width of 0
// or less refreshes from address to the end of the space.
func (pi *ProcessImage) UpdateCoil(address int, width int) (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	return pi.updateCoil(address, width)
}

// UpdateAll refreshes all four spaces.
func (pi *ProcessImage) UpdateAll() (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if err = pi.updateInput(0, 0); err != nil {
		return
	}
	if err = pi.updateHolding(0, 0); err != nil {
		return
	}
	if err = pi.updateDiscrete(0, 0); err != nil {
		return
	}

	return pi.updateCoil(0, 0)
}

// The update helpers below expect pi.mu to be held.

func (pi *ProcessImage) updateInput(address int, width int) (err error) {
	if width <= 0 {
		width = len(pi.input) - address
	}
	if width <= 0 {
		return
	}

	values, err := pi.tr.ReadInputRegisters(uint16(address), uint16(width))
	if err != nil {
		return
	}

	pi.logger.Debugf("input state 0x%04x+%d: %s", address, width, Words(values).Hex())
	pi.assignWords(SpaceInput, pi.input, address, values)

	return
}

func (pi *ProcessImage) updateHolding(address int, width int) (err error) {
	if width <= 0 {
		width = len(pi.holding) - address
	}
	if width <= 0 {
		return
	}

	values, err := pi.tr.ReadHoldingRegisters(writableSpaceBase+uint16(address), uint16(width))
	if err != nil {
		return
	}

	pi.logger.Debugf("holding state 0x%04x+%d: %s", address, width, Words(values).Hex())
	pi.assignWords(SpaceHolding, pi.holding, address, values)

	return
}

func (pi *ProcessImage) updateDiscrete(address int, width int) (err error) {
	if width <= 0 {
		width = len(pi.discrete) - address
	}
	if width <= 0 {
		return
	}

	values, err := pi.tr.ReadDiscreteInputs(uint16(address), uint16(width))
	if err != nil {
		return
	}

	pi.logger.Debugf("discrete state 0x%04x+%d: %s", address, width, Bits(values).Bin())
	pi.assignBits(SpaceDiscrete, pi.discrete, address, values)

	return
}

func (pi *ProcessImage) updateCoil(address int, width int) (err error) {
	if width <= 0 {
		width = len(pi.coil) - address
	}
	if width <= 0 {
		return
	}

	values, err := pi.tr.ReadCoils(writableSpaceBase+uint16(address), uint16(width))
	if err != nil {
		return
	}

	pi.logger.Debugf("coil state 0x%04x+%d: %s", address, width, Bits(values).Bin())
	pi.assignBits(SpaceCoil, pi.coil, address, values)

	return
}

// Overwrites a slice of a word space and fires listeners for changed
// cells, in ascending address order.
func (pi *ProcessImage) assignWords(space Space, cache Words, address int, values []uint16) {
	// clip reads longer than the cache (modbus reads are rounded up to
	// whole bytes on bit spaces, never on word spaces, but stay safe)
	if address+len(values) > len(cache) {
		values = values[:len(cache)-address]
	}

	for i, value := range values {
		cell := uint16(address + i)
		if cache[address+i] == value {
			continue
		}
		cache[address+i] = value
		if fn, ok := pi.listeners[cellKey{space, cell}]; ok {
			fn(value)
		}
	}
}

// Overwrites a slice of a bit space and fires listeners for changed
// cells, in ascending address order.
func (pi *ProcessImage) assignBits(space Space, cache Bits, address int, values []bool) {
	if address+len(values) > len(cache) {
		values = values[:len(cache)-address]
	}

	for i, value := range values {
		cell := uint16(address + i)
		if cache[address+i] == value {
			continue
		}
		cache[address+i] = value
		if fn, ok := pi.listeners[cellKey{space, cell}]; ok {
			if value {
				fn(1)
			} else {
				fn(0)
			}
		}
	}
}

// ReadInputRegister returns the cached value of one input register,
// refreshing it first when update is set.
func (pi *ProcessImage) ReadInputRegister(address int, update bool) (value uint16, err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if update {
		if err = pi.updateInput(address, 1); err != nil {
			return
		}
	}

	return pi.input[address], nil
}

// ReadInputRegisters returns the cached values of a range of input
// registers, refreshing them first when update is set.
func (pi *ProcessImage) ReadInputRegisters(address int, width int, update bool) (values Words, err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if update {
		if err = pi.updateInput(address, width); err != nil {
			return
		}
	}

	return pi.input.Slice(address, address+width), nil
}

// ReadHoldingRegister returns the cached value of one holding
// register, refreshing it first when update is set.
func (pi *ProcessImage) ReadHoldingRegister(address int, update bool) (value uint16, err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if update {
		if err = pi.updateHolding(address, 1); err != nil {
			return
		}
	}

	return pi.holding[address], nil
}

// ReadHoldingRegisters returns the cached values of a range of holding
// registers, refreshing them first when update is set.
func (pi *ProcessImage) ReadHoldingRegisters(address int, width int, update bool) (values Words, err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if update {
		if err = pi.updateHolding(address, width); err != nil {
			return
		}
	}

	return pi.holding.Slice(address, address+width), nil
}

// ReadDiscreteInput returns the cached value of one discrete input,
// refreshing it first when update is set.
func (pi *ProcessImage) ReadDiscreteInput(address int, update bool) (value bool, err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if update {
		if err = pi.updateDiscrete(address, 1); err != nil {
			return
		}
	}

	return pi.discrete[address], nil
}

// ReadDiscreteInputs returns the cached values of a range of discrete
// inputs, refreshing them first when update is set.
func (pi *ProcessImage) ReadDiscreteInputs(address int, width int, update bool) (values Bits, err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if update {
		if err = pi.updateDiscrete(address, width); err != nil {
			return
		}
	}

	return pi.discrete.Slice(address, address+width), nil
}

// ReadCoil returns the cached value of one coil, refreshing it first
// when update is set.
func (pi *ProcessImage) ReadCoil(address int, update bool) (value bool, err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if update {
		if err = pi.updateCoil(address, 1); err != nil {
			return
		}
	}

	return pi.coil[address], nil
}

// ReadCoils returns the cached values of a range of coils, refreshing
// them first when update is set.
func (pi *ProcessImage) ReadCoils(address int, width int, update bool) (values Bits, err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if update {
		if err = pi.updateCoil(address, width); err != nil {
			return
		}
	}

	return pi.coil.Slice(address, address+width), nil
}

// WriteCoil writes a single coil and refreshes the coil region so the
// cache reflects the write before the call returns.
func (pi *ProcessImage) WriteCoil(address int, value bool) (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.logger.Debugf("writing coil 0x%04x: %v", address, value)
	if err = pi.tr.WriteCoil(writableSpaceBase+uint16(address), value); err != nil {
		return
	}

	return pi.updateCoil(0, 0)
}

// WriteCoils writes a range of coils and refreshes the coil region.
func (pi *ProcessImage) WriteCoils(address int, values Bits) (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.logger.Debugf("writing coils 0x%04x+%d: %s", address, len(values), values.Bin())
	if err = pi.tr.WriteCoils(writableSpaceBase+uint16(address), values); err != nil {
		return
	}

	return pi.updateCoil(0, 0)
}

// WriteRegister writes a single holding register and refreshes the
// holding region.
func (pi *ProcessImage) WriteRegister(address int, value uint16) (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.logger.Debugf("writing register 0x%04x: 0x%04x", address, value)
	if err = pi.tr.WriteRegister(writableSpaceBase+uint16(address), value); err != nil {
		return
	}

	return pi.updateHolding(0, 0)
}

// WriteRegisters writes a range of holding registers and refreshes the
// holding region.
func (pi *ProcessImage) WriteRegisters(address int, values Words) (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.logger.Debugf("writing registers 0x%04x+%d: %s", address, len(values), values.Hex())
	if err = pi.tr.WriteRegisters(writableSpaceBase+uint16(address), values); err != nil {
		return
	}

	return pi.updateHolding(0, 0)
}

// StartPolling starts the continuous background poller. Each region is
// refreshed on its own cadence in the fixed order input, holding,
// discrete, coil. Errors are logged and polling continues.
func (pi *ProcessImage) StartPolling(intervals PollIntervals) (err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.running {
		return ErrPollerAlreadyRunning
	}

	if intervals.Global > 0 {
		for space := range pi.intervals {
			pi.intervals[space] = intervals.Global
		}
	}
	for space, interval := range map[Space]time.Duration{
		SpaceInput:    intervals.Input,
		SpaceHolding:  intervals.Holding,
		SpaceDiscrete: intervals.Discrete,
		SpaceCoil:     intervals.Coil,
	} {
		if interval > 0 {
			pi.intervals[space] = interval
		}
	}

	now := time.Now()
	for space := range pi.intervals {
		pi.lastUpdate[space] = now
	}

	pi.running = true
	pi.stop = make(chan struct{})
	pi.done = make(chan struct{})
	go pi.pollLoop(pi.stop, pi.done)

	pi.logger.Infof("started continuous polling (input %v, holding %v, discrete %v, coil %v)",
		pi.intervals[SpaceInput], pi.intervals[SpaceHolding],
		pi.intervals[SpaceDiscrete], pi.intervals[SpaceCoil])

	return
}

// Polling reports whether the continuous poller is running.
func (pi *ProcessImage) Polling() bool {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	return pi.running
}

// StopPolling asks the poller to stop and waits up to twice the
// shortest interval for it to finish. A worker stuck in a modbus call
// longer than that is abandoned and logged.
func (pi *ProcessImage) StopPolling() (err error) {
	pi.mu.Lock()
	if !pi.running {
		pi.mu.Unlock()
		pi.logger.Warn("no continuous poller running")
		return
	}

	stop, done := pi.stop, pi.done
	grace := 2 * pi.minInterval()
	pi.running = false
	pi.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(grace):
		pi.logger.Warn("continuous poller did not terminate gracefully")
	}

	return
}

// Expects pi.mu to be held.
func (pi *ProcessImage) minInterval() (min time.Duration) {
	for _, interval := range pi.intervals {
		if min == 0 || interval < min {
			min = interval
		}
	}

	return
}

func (pi *ProcessImage) pollLoop(stop chan struct{}, done chan struct{}) {
	defer close(done)

	pi.logger.Debug("poll loop starting")

	for {
		pi.mu.Lock()
		sleep := pi.minInterval() / 10
		if sleep > maxPollSleep {
			sleep = maxPollSleep
		}

		var pollErr error
		now := time.Now()
		// fixed refresh order: input, holding, discrete, coil
		for _, space := range []Space{SpaceInput, SpaceHolding, SpaceDiscrete, SpaceCoil} {
			if now.Sub(pi.lastUpdate[space]) < pi.intervals[space] {
				continue
			}
			switch space {
			case SpaceInput:
				pollErr = pi.updateInput(0, 0)
			case SpaceHolding:
				pollErr = pi.updateHolding(0, 0)
			case SpaceDiscrete:
				pollErr = pi.updateDiscrete(0, 0)
			case SpaceCoil:
				pollErr = pi.updateCoil(0, 0)
			}
			if pollErr != nil {
				break
			}
			pi.lastUpdate[space] = now
		}
		pi.mu.Unlock()

		if pollErr != nil {
			pi.logger.Errorf("continuous poll: %v", pollErr)
			sleep = pollErrorPause
		}

		select {
		case <-stop:
			pi.logger.Debug("poll loop stopping")
			return
		case <-time.After(sleep):
		}
	}
}
