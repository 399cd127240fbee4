package wg750

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// AddressCursor tracks the next free offset of each address space
// while modules are laid out during discovery.
type AddressCursor struct {
	Coil     uint16
	Discrete uint16
	Input    uint16
	Holding  uint16
}

// advance returns the cursor moved past a module of the given channel
// counts.
func (c AddressCursor) advance(counts ChannelCounts) AddressCursor {
	return AddressCursor{
		Coil:     c.Coil + uint16(counts.Coil),
		Discrete: c.Discrete + uint16(counts.Discrete),
		Input:    c.Input + uint16(counts.Input),
		Holding:  c.Holding + uint16(counts.Holding),
	}
}

// Module is one plug-in I/O card in the chassis: its identification
// word, decoded descriptor, the slice of each address space it owns
// and the high-level channels built on top.
type Module struct {
	// Index is the module's position in the chassis, discovery order.
	Index      int
	Identifier Identifier
	Spec       ModuleSpec
	// Base is the first cell of this module in each address space.
	Base AddressCursor

	image  *ProcessImage
	logger *log.Logger
	config *ModuleConfig
	name   string

	cells    map[Kind][]*Cell
	channels []Channel

	counter *Counter32
	dali    *DaliGateway
}

// Builds a module: decodes the identifier, claims the typed cells
// starting at base and assembles the family's high-level channels.
// The config override, when present, selects the word-channel
// representation during assembly.
func newModule(index int, id Identifier, base AddressCursor, image *ProcessImage, cfg *ModuleConfig, sink *log.Logger) (m *Module) {
	m = &Module{
		Index:      index,
		Identifier: id,
		Spec:       id.Spec(),
		Base:       base,
		image:      image,
		logger:     newLogger(fmt.Sprintf("module[%d](%s)", index, id), sink),
		config:     cfg,
		cells:      map[Kind][]*Cell{},
	}

	m.createCells()
	m.assemble()

	return
}

// Next returns the address cursor for the module following this one.
func (m *Module) Next() AddressCursor {
	return m.Base.advance(m.Spec.Channels)
}

// Creates the typed cells of every populated space, consecutive from
// the module's base address.
func (m *Module) createCells() {
	for i := 0; i < m.Spec.Channels.Coil; i++ {
		m.cells[KindCoil] = append(m.cells[KindCoil],
			newCell(KindCoil, m.Base.Coil+uint16(i), m.image))
	}
	for i := 0; i < m.Spec.Channels.Discrete; i++ {
		m.cells[KindDiscrete] = append(m.cells[KindDiscrete],
			newCell(KindDiscrete, m.Base.Discrete+uint16(i), m.image))
	}
	for i := 0; i < m.Spec.Channels.Input; i++ {
		m.cells[KindInput] = append(m.cells[KindInput],
			newCell(KindInput, m.Base.Input+uint16(i), m.image))
	}
	for i := 0; i < m.Spec.Channels.Holding; i++ {
		m.cells[KindHolding] = append(m.cells[KindHolding],
			newCell(KindHolding, m.Base.Holding+uint16(i), m.image))
	}
}

// Builds the family's high-level channels on top of the typed cells.
// Counter and DALI modules are assembled by their sub-protocols,
// digital modules get one channel per bit. Word modules default to one
// Int16 channel per register; the configured module type picks another
// representation ("Int8" pairs two byte-half channels per word,
// "Float16" reinterprets the word, "Counter16" reinterprets input
// words only).
func (m *Module) assemble() {
	switch m.Spec.Family {
	case "404":
		port := newCounterPort(m.image, m.Base.Input, m.Base.Holding, m.logger)
		m.counter = newCounter32(0, port)
		m.channels = append(m.channels, m.counter)
		return

	case "641":
		m.dali = newDaliGateway(m.image, m.Base.Input, m.Base.Holding, m.logger)
		return
	}

	var representation string
	if m.config != nil {
		representation = m.config.Type
	}

	for i, cell := range m.cells[KindDiscrete] {
		m.channels = append(m.channels, newDigitalIn(i, cell))
	}
	for i, cell := range m.cells[KindCoil] {
		m.channels = append(m.channels, newDigitalOut(i, cell))
	}
	for i, cell := range m.cells[KindInput] {
		switch representation {
		case "Int8":
			m.channels = append(m.channels,
				newInt8In(2*i, cell, false), newInt8In(2*i+1, cell, true))
		case "Float16":
			m.channels = append(m.channels, newFloat16In(i, cell))
		case "Counter16":
			m.channels = append(m.channels, newCounter16(i, cell))
		default:
			m.channels = append(m.channels, newInt16In(i, cell))
		}
	}
	for i, cell := range m.cells[KindHolding] {
		switch representation {
		case "Int8":
			m.channels = append(m.channels,
				newInt8Out(2*i, cell, false), newInt8Out(2*i+1, cell, true))
		case "Float16":
			m.channels = append(m.channels, newFloat16Out(i, cell))
		default:
			m.channels = append(m.channels, newInt16Out(i, cell))
		}
	}
}

// Cells returns the module's typed channels in the given space,
// ascending addresses.
func (m *Module) Cells(kind Kind) []*Cell {
	return m.cells[kind]
}

// Channels returns the module's high-level channels. DALI bus
// channels live on the gateway (see Dali) and are appended here after
// bus discovery.
func (m *Module) Channels() []Channel {
	if m.dali != nil {
		channels := make([]Channel, 0, len(m.dali.channels))
		for _, ch := range m.dali.channels {
			channels = append(channels, ch)
		}
		return channels
	}

	return m.channels
}

// Counter returns the counter channel of a 750-404 module, nil for
// other families.
func (m *Module) Counter() *Counter32 {
	return m.counter
}

// Dali returns the gateway of a 750-641 module, nil for other
// families.
func (m *Module) Dali() *DaliGateway {
	return m.dali
}

// DigitalIns returns the module's digital input channels.
func (m *Module) DigitalIns() (channels []*DigitalIn) {
	for _, ch := range m.channels {
		if in, ok := ch.(*DigitalIn); ok {
			channels = append(channels, in)
		}
	}

	return
}

// DigitalOuts returns the module's digital output channels.
func (m *Module) DigitalOuts() (channels []*DigitalOut) {
	for _, ch := range m.channels {
		if out, ok := ch.(*DigitalOut); ok {
			channels = append(channels, out)
		}
	}

	return
}

// Name returns the configured module name, falling back to the
// catalogue display name.
func (m *Module) Name() string {
	if m.name != "" {
		return m.name
	}

	return m.Spec.DisplayName
}

// SetName overrides the module name.
func (m *Module) SetName(name string) {
	m.name = name
}

// Matches reports whether the module answers to the given alias.
func (m *Module) Matches(alias string) bool {
	if alias == m.Spec.Family {
		return true
	}
	for _, a := range m.Spec.Aliases {
		if a == alias {
			return true
		}
	}

	return false
}

// Rebuilds the channel at index as the requested semantic type over
// the same backing cell. Only the single-word representations can be
// exchanged; anything else is logged and left alone.
func (m *Module) retypeChannel(index int, typ ChannelType) {
	if index < 0 || index >= len(m.channels) {
		m.logger.Warnf("channel %d: not retypeable on this module", index)
		return
	}

	backed, ok := m.channels[index].(interface{ backingCell() *Cell })
	if !ok {
		m.logger.Warnf("channel %d: cannot retype a %s channel",
			index, m.channels[index].Type())
		return
	}

	cell := backed.backingCell()
	position := m.channels[index].Index()

	var replacement Channel
	switch {
	case cell.Kind == KindInput && typ == ChannelInt16In:
		replacement = newInt16In(position, cell)
	case cell.Kind == KindInput && typ == ChannelFloat16In:
		replacement = newFloat16In(position, cell)
	case cell.Kind == KindInput && typ == ChannelCounter16:
		replacement = newCounter16(position, cell)
	case cell.Kind == KindHolding && typ == ChannelInt16Out:
		replacement = newInt16Out(position, cell)
	case cell.Kind == KindHolding && typ == ChannelFloat16Out:
		replacement = newFloat16Out(position, cell)
	default:
		m.logger.Warnf("channel %d: no %s representation over a %s cell",
			index, typ, cell.Kind)
		return
	}

	if named, ok := m.channels[index].(interface{ rawName() string }); ok {
		replacement.SetName(named.rawName())
	}
	m.channels[index] = replacement
}

// Applies per-module configuration overrides: module and channel
// names, and per-channel type overrides.
func (m *Module) applyConfig(cfg *ModuleConfig) {
	if cfg == nil {
		return
	}
	if cfg.Name != "" {
		m.name = cfg.Name
	}

	for _, chCfg := range cfg.Channels {
		if chCfg.Index < 0 || chCfg.Index >= len(m.Channels()) {
			m.logger.Warnf("channel override index %d out of range", chCfg.Index)
			continue
		}
		if chCfg.Type != "" && chCfg.Type != string(m.Channels()[chCfg.Index].Type()) {
			m.retypeChannel(chCfg.Index, ChannelType(chCfg.Type))
		}
		if chCfg.Name != "" {
			m.Channels()[chCfg.Index].SetName(chCfg.Name)
		}
	}
}

func (m *Module) String() string {
	return fmt.Sprintf("module[%d] %s (%s)", m.Index, m.Name(), m.Identifier)
}

// Modules is the ordered collection of discovered modules, insertion
// order matching the chassis order, with a secondary index from alias
// to the first matching module.
type Modules struct {
	list    []*Module
	byAlias map[string]*Module
}

func newModules() *Modules {
	return &Modules{
		byAlias: map[string]*Module{},
	}
}

// Append adds a module at the end of the chain.
func (ms *Modules) Append(m *Module) {
	ms.list = append(ms.list, m)
	for _, alias := range m.Spec.Aliases {
		if _, taken := ms.byAlias[alias]; !taken {
			ms.byAlias[alias] = m
		}
	}
}

// Reset empties the collection.
func (ms *Modules) Reset() {
	ms.list = nil
	ms.byAlias = map[string]*Module{}
}

// Len returns the number of modules.
func (ms *Modules) Len() int {
	return len(ms.list)
}

// All returns the modules in chassis order.
func (ms *Modules) All() []*Module {
	return ms.list
}

// At returns the module at position i in the chassis.
func (ms *Modules) At(i int) *Module {
	return ms.list[i]
}

// Get returns the first module answering to the alias ("641",
// "dali", "DI", ...), nil when absent.
func (ms *Modules) Get(alias string) *Module {
	return ms.byAlias[alias]
}

// Select returns every module answering to the alias, chassis order.
func (ms *Modules) Select(alias string) (matching []*Module) {
	for _, m := range ms.list {
		if m.Matches(alias) {
			matching = append(matching, m)
		}
	}

	return
}

// ByIOType returns every module whose descriptor matches the given
// io type exactly.
func (ms *Modules) ByIOType(ioType IOType) (matching []*Module) {
	for _, m := range ms.list {
		if m.Spec.IOType == ioType {
			matching = append(matching, m)
		}
	}

	return
}

// Digital returns every digital module.
func (ms *Modules) Digital() (matching []*Module) {
	for _, m := range ms.list {
		if m.Spec.IOType.Digital {
			matching = append(matching, m)
		}
	}

	return
}

// Analog returns every non-digital module.
func (ms *Modules) Analog() (matching []*Module) {
	for _, m := range ms.list {
		if !m.Spec.IOType.Digital {
			matching = append(matching, m)
		}
	}

	return
}
