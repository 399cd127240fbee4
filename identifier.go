package wg750

import (
	"fmt"
	"strconv"
)

// IOType describes the direction and signal class of a module.
type IOType struct {
	Digital bool
	Input   bool
	Output  bool
}

func (t IOType) String() (s string) {
	if t.Digital {
		s += "Digital"
	}
	if t.Input {
		s += "Input"
	}
	if t.Output {
		s += "Output"
	}

	return
}

// ChannelCounts declares how many cells of each address space a module
// family occupies: bits for the bit spaces, words for the register
// spaces.
type ChannelCounts struct {
	Coil     int
	Discrete int
	Input    int
	Holding  int
}

// Total returns the number of typed channels across all spaces.
func (c ChannelCounts) Total() int {
	return c.Coil + c.Discrete + c.Input + c.Holding
}

// ModuleSpec is the decoded description of a module family.
type ModuleSpec struct {
	// Family is the catalogue key ("641", "404", "DI", "DO", ...).
	Family string
	// DisplayName is the human-readable module name.
	DisplayName string
	// Aliases are the keys user code may look a module up by.
	Aliases []string
	IOType  IOType
	// Channels holds the per-space cell counts.
	Channels ChannelCounts
}

// Identifier is one 16-bit module identification word as read from the
// controller's module list.
type Identifier uint16

// Digital reports whether the identifier uses the bitfield encoding
// for generic digital modules (bit 15 set).
func (id Identifier) Digital() bool {
	return id&0x8000 != 0
}

func (id Identifier) String() string {
	if id.Digital() {
		return fmt.Sprintf("0x%04X", uint16(id))
	}

	return strconv.Itoa(int(id))
}

// The static catalogue of known non-digital module families. Channel
// counts are bits for the bit spaces and words for the register
// spaces.
var catalogue = map[Identifier]ModuleSpec{
	352: {
		Family:      "352",
		DisplayName: "750-352 8 DI",
		Aliases:     []string{"352", "DI"},
		IOType:      IOType{Digital: true, Input: true},
		Channels:    ChannelCounts{Discrete: 8},
	},
	404: {
		Family:      "404",
		DisplayName: "750-404 Up/Down Counter 32Bit",
		Aliases:     []string{"404", "counter"},
		IOType:      IOType{Input: true, Output: true},
		Channels:    ChannelCounts{Input: 3, Holding: 3},
	},
	451: {
		Family:      "451",
		DisplayName: "750-451 8 AI",
		Aliases:     []string{"451", "AI"},
		IOType:      IOType{Input: true},
		Channels:    ChannelCounts{Input: 8},
	},
	453: {
		Family:      "453",
		DisplayName: "750-453 4 AI 4-20mA",
		Aliases:     []string{"453", "AI"},
		IOType:      IOType{Input: true},
		Channels:    ChannelCounts{Input: 4},
	},
	459: {
		Family:      "459",
		DisplayName: "750-459 4 AI 0-10V",
		Aliases:     []string{"459", "AI"},
		IOType:      IOType{Input: true},
		Channels:    ChannelCounts{Input: 4},
	},
	460: {
		Family:      "460",
		DisplayName: "750-460 4 AI RTD",
		Aliases:     []string{"460", "AI"},
		IOType:      IOType{Input: true},
		Channels:    ChannelCounts{Input: 4},
	},
	559: {
		Family:      "559",
		DisplayName: "750-559 4 AO 0-10V",
		Aliases:     []string{"559", "AO"},
		IOType:      IOType{Output: true},
		Channels:    ChannelCounts{Holding: 4},
	},
	641: {
		Family:      "641",
		DisplayName: "750-641 1-Channel DALI Master",
		Aliases:     []string{"641", "dali"},
		IOType:      IOType{Input: true, Output: true},
		Channels:    ChannelCounts{Input: 3, Holding: 3},
	},
}

// Known reports whether a non-digital identifier has a catalogue
// entry.
func (id Identifier) Known() bool {
	_, ok := catalogue[id]

	return ok
}

// Spec decodes the identifier into a module descriptor. The decoder is
// total: digital bitfield words decode structurally, known family
// numbers come from the catalogue and everything else yields a
// zero-channel generic descriptor.
func (id Identifier) Spec() (spec ModuleSpec) {
	if id.Digital() {
		return id.digitalSpec()
	}

	if spec, ok := catalogue[id]; ok {
		return spec
	}

	return ModuleSpec{
		Family:      strconv.Itoa(int(id)),
		DisplayName: fmt.Sprintf("unknown module %d", uint16(id)),
		Aliases:     []string{strconv.Itoa(int(id))},
	}
}

// Decodes the bitfield form: the low byte is the channel count in
// bits, with its lowest bit acting as the direction flag (set for
// input modules, clear for output modules); bits 13..8 are reserved
// flags. Inputs land in the discrete space, outputs in the coil
// space: 0x8408 is an 8-channel output, 0x8401 a 1-channel input.
func (id Identifier) digitalSpec() (spec ModuleSpec) {
	output := id&0x0001 == 0
	count := int(id & 0x00FF)

	spec = ModuleSpec{
		IOType: IOType{Digital: true, Input: !output, Output: output},
	}

	if output {
		spec.Family = "DO"
		spec.DisplayName = fmt.Sprintf("%d-channel digital out", count)
		spec.Aliases = []string{"DO", fmt.Sprintf("DO%d", count)}
		spec.Channels = ChannelCounts{Coil: count}
	} else {
		spec.Family = "DI"
		spec.DisplayName = fmt.Sprintf("%d-channel digital in", count)
		spec.Aliases = []string{"DI", fmt.Sprintf("DI%d", count)}
		spec.Channels = ChannelCounts{Discrete: count}
	}

	return
}
