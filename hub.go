package wg750

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Fixed controller register map (input register space).
const (
	regWidthHolding     uint16 = 0x1022
	regWidthInput       uint16 = 0x1023
	regWidthCoil        uint16 = 0x1024
	regWidthDiscrete    uint16 = 0x1025
	regModuleDiagnostic uint16 = 0x1050
	regRevision         uint16 = 0x2010
	regSeries           uint16 = 0x2011
	regItem             uint16 = 0x2012
	regFwVersionMajor   uint16 = 0x2013
	regFwVersionMinor   uint16 = 0x2014
	regFwBuildTime      uint16 = 0x2021
	regFwBuildDate      uint16 = 0x2022
	regFwInfo           uint16 = 0x2023
	regModuleList       uint16 = 0x2030
)

// The controller lists up to 192 module identification words, read in
// three 64-register chunks.
const (
	moduleListChunks    = 3
	moduleListChunkSize = 64
)

// ControllerInfo is the identity the head unit reports about itself.
type ControllerInfo struct {
	Revision          int
	Series            int
	Item              int
	FirmwareVersion   string
	FirmwareTimestamp string
	FirmwareInfo      string
}

func (i ControllerInfo) String() string {
	return fmt.Sprintf("750-%d rev %d (fw %s, %s)",
		i.Item, i.Revision, i.FirmwareVersion, i.FirmwareTimestamp)
}

// Hub is a connected 750-series controller: the modbus connection, the
// mirrored process image and the chain of discovered modules.
type Hub struct {
	config HubConfig
	logger *log.Logger

	tr      Transport
	image   *ProcessImage
	modules *Modules
	info    ControllerInfo
	cursor  AddressCursor

	connected  bool
	discovered bool
}

// NewHub dials the controller, sizes the process image, reads the
// controller identity and discovers the attached modules.
func NewHub(config HubConfig) (h *Hub, err error) {
	config = config.withDefaults()

	tr, err := newTCPTransport(config.url(), config.Timeout, config.Logger)
	if err != nil {
		return
	}

	return NewHubWithTransport(config, tr)
}

// NewHubWithTransport runs the hub over a caller-provided transport.
func NewHubWithTransport(config HubConfig, tr Transport) (h *Hub, err error) {
	config = config.withDefaults()

	h = &Hub{
		config:  config,
		logger:  newLogger(fmt.Sprintf("hub(%s)", config.Host), config.Logger),
		tr:      tr,
		modules: newModules(),
	}

	if err = h.initialize(); err != nil {
		return nil, err
	}

	return
}

func (h *Hub) initialize() (err error) {
	widths, err := h.readWidths()
	if err != nil {
		return fmt.Errorf("%w: reading process image widths: %v", ErrConnection, err)
	}
	h.logger.Debugf("process image widths: %+v", widths)

	h.image = NewProcessImage(h.tr, widths, h.config.Logger)
	if err = h.image.UpdateAll(); err != nil {
		return fmt.Errorf("%w: loading process image: %v", ErrConnection, err)
	}
	h.connected = true

	if h.info, err = h.readControllerInfo(); err != nil {
		return fmt.Errorf("reading controller info: %w", err)
	}
	h.logger.Infof("connected to %s", h.info)

	h.checkTestConstants()
	h.readModuleDiagnostic()

	return h.Discover(true)
}

// Reads one fixed register range from the controller.
func (h *Hub) readRegister(address uint16, width uint16) (reg Register, err error) {
	values, err := h.tr.ReadInputRegisters(address, width)
	if err != nil {
		return
	}

	return NewRegister(address, values), nil
}

// The controller reports the populated width of each address space in
// bits; the word spaces arrive as multiples of 16.
func (h *Hub) readWidths() (widths SpaceWidths, err error) {
	values, err := h.tr.ReadInputRegisters(regWidthHolding, 4)
	if err != nil {
		return
	}

	widths = SpaceWidths{
		Holding:  int(values[0]) / 16,
		Input:    int(values[1]) / 16,
		Coil:     int(values[2]),
		Discrete: int(values[3]),
	}

	return
}

// Compares the controller's self-test registers against their expected
// values. A mismatch points at an addressing fault and is logged, not
// fatal.
func (h *Hub) checkTestConstants() {
	for _, expected := range testConstants {
		reg, err := h.readRegister(expected.Address, 1)
		if err != nil {
			h.logger.Warnf("reading test constant 0x%04x: %v", expected.Address, err)
			return
		}
		if !reg.Equal(expected) {
			h.logger.Warnf("test constant mismatch: expected %s, got %s", expected, reg)
		}
	}
}

func (h *Hub) readModuleDiagnostic() {
	reg, err := h.readRegister(regModuleDiagnostic, 3)
	if err != nil {
		h.logger.Warnf("reading module diagnostic: %v", err)
		return
	}
	h.logger.Debugf("module diagnostic: %s", reg)
}

// Reads the controller identity registers. The firmware strings are
// ASCII packed two characters per word, low byte first.
func (h *Hub) readControllerInfo() (info ControllerInfo, err error) {
	read := func(address uint16, width uint16) Words {
		if err != nil {
			return nil
		}
		var reg Register
		if reg, err = h.readRegister(address, width); err != nil {
			return nil
		}
		return reg.Words
	}

	revision := read(regRevision, 1)
	series := read(regSeries, 1)
	item := read(regItem, 1)
	major := read(regFwVersionMajor, 1)
	minor := read(regFwVersionMinor, 1)
	date := read(regFwBuildDate, 8)
	buildTime := read(regFwBuildTime, 8)
	fwInfo := read(regFwInfo, 32)
	if err != nil {
		return
	}

	info = ControllerInfo{
		Revision:          int(revision.Uint()),
		Series:            int(series.Uint()),
		Item:              int(item.Uint()),
		FirmwareVersion:   fmt.Sprintf("%d.%d", major.Uint(), minor.Uint()),
		FirmwareTimestamp: fmt.Sprintf("%s %s", date.ASCII(), buildTime.ASCII()),
		FirmwareInfo:      fwInfo.ASCII(),
	}

	return
}

// Reads the module identification words from the controller.
func (h *Hub) readModuleList() (ids []Identifier, err error) {
	for chunk := 0; chunk < moduleListChunks; chunk++ {
		values, err := h.tr.ReadInputRegisters(
			regModuleList+uint16(chunk*moduleListChunkSize), moduleListChunkSize)
		if err != nil {
			return nil, err
		}
		for _, value := range values {
			ids = append(ids, Identifier(value))
		}
	}

	// the first zero terminates the chain
	for i, id := range ids {
		if id == 0 {
			return ids[:i], nil
		}
	}

	return
}

// Discover reads the controller's module list and lays the modules out
// over the four address spaces, in chassis order. With reset the
// existing chain is dropped first; without, discovery only runs on an
// empty chain.
func (h *Hub) Discover(reset bool) (err error) {
	if reset {
		h.modules.Reset()
		h.cursor = AddressCursor{}
	} else if h.modules.Len() > 0 {
		return
	}

	h.discovered = false

	ids, err := h.readModuleList()
	if err != nil {
		return fmt.Errorf("%w: reading module list: %v", ErrCommunication, err)
	}

	if err = h.checkLayout(ids); err != nil {
		return
	}

	for index, id := range ids {
		if !id.Digital() && !id.Known() {
			h.logger.Warnf("module %d: %v (%s), keeping zero-channel placeholder",
				index, ErrUnknownModule, id)
		}

		cfg := h.config.moduleConfig(index)
		m := newModule(index, id, h.cursor, h.image, cfg, h.config.Logger)

		if gw := m.Dali(); gw != nil {
			if derr := gw.setupChannels(); derr != nil {
				h.logger.Errorf("module %d: %v", index, derr)
			}
		}

		m.applyConfig(cfg)

		h.modules.Append(m)
		h.cursor = m.Next()
	}

	h.discovered = true
	h.logger.Infof("discovered %d modules", h.modules.Len())

	return
}

// Verifies that the announced modules fit into the process image the
// controller reported.
func (h *Hub) checkLayout(ids []Identifier) (err error) {
	var total ChannelCounts

	for _, id := range ids {
		counts := id.Spec().Channels
		total.Coil += counts.Coil
		total.Discrete += counts.Discrete
		total.Input += counts.Input
		total.Holding += counts.Holding
	}

	widths := h.image.Widths()
	if total.Coil > widths.Coil || total.Discrete > widths.Discrete ||
		total.Input > widths.Input || total.Holding > widths.Holding {
		return fmt.Errorf("%w: module map (%+v) exceeds reported process image (%+v)",
			ErrProtocol, total, widths)
	}

	return
}

// Modules returns the discovered module chain.
func (h *Hub) Modules() *Modules {
	return h.modules
}

// Connection returns the process image the hub polls and writes
// through.
func (h *Hub) Connection() *ProcessImage {
	return h.image
}

// Info returns the controller identity.
func (h *Hub) Info() ControllerInfo {
	return h.info
}

// Cursor returns the next free offset of each address space after the
// last module.
func (h *Hub) Cursor() AddressCursor {
	return h.cursor
}

// Discovered reports whether the last discovery run completed.
func (h *Hub) Discovered() bool {
	return h.discovered
}

// Connected reports whether the hub reached the controller.
func (h *Hub) Connected() bool {
	return h.connected
}

// Config returns the configuration the hub runs with.
func (h *Hub) Config() HubConfig {
	return h.config
}

// Start begins continuous polling with the configured intervals.
func (h *Hub) Start() (err error) {
	return h.image.StartPolling(h.config.Polling.intervals())
}

// Stop halts continuous polling.
func (h *Hub) Stop() (err error) {
	return h.image.StopPolling()
}

// Close stops polling and closes the connection to the controller.
func (h *Hub) Close() (err error) {
	if h.image != nil && h.image.Polling() {
		h.image.StopPolling()
	}
	h.connected = false

	return h.tr.Close()
}
