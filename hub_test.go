package wg750

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHubTransport builds a controller mock with the standard test
// chassis: 8 DI (352), 8 DO (0x8408 bitfield) and a DALI master (641).
func testHubTransport() (mt *mockTransport) {
	mt = newMockTransport(SpaceWidths{Input: 3, Holding: 3, Discrete: 8, Coil: 8})
	mt.setModuleList(352, 0x8408, 641, 0)
	mt.attachDaliEmulation(0, 0)

	mt.registers[regRevision] = 19
	mt.registers[regSeries] = 750
	mt.registers[regItem] = 881
	mt.registers[regFwVersionMajor] = 1
	mt.registers[regFwVersionMinor] = 7
	mt.setASCII(regFwInfo, "WAGO-Ethernet TCP/IP PFC")

	return
}

func testHub(t *testing.T) (h *Hub, mt *mockTransport) {
	t.Helper()

	mt = testHubTransport()
	h, err := NewHubWithTransport(HubConfig{Host: "test", Logger: testLogger()}, mt)
	require.NoError(t, err)

	return
}

func TestHubDiscovery(t *testing.T) {
	h, _ := testHub(t)

	require.True(t, h.Discovered())
	require.Equal(t, 3, h.Modules().Len())

	// module 0: catalogue family 352, 8 discrete inputs from 0
	m := h.Modules().At(0)
	assert.Equal(t, Identifier(352), m.Identifier)
	assert.Len(t, m.Cells(KindDiscrete), 8)
	assert.Equal(t, uint16(0), m.Base.Discrete)

	// module 1: digital output bitfield 0x8408 (MSB set, direction
	// out, 8 channels), 8 coils from 0
	m = h.Modules().At(1)
	assert.True(t, m.Spec.IOType.Digital)
	assert.True(t, m.Spec.IOType.Output)
	assert.Len(t, m.Cells(KindCoil), 8)
	assert.Equal(t, uint16(0), m.Base.Coil)

	// module 2: DALI master, 3 input + 3 holding words from 0
	m = h.Modules().At(2)
	assert.Equal(t, "641", m.Spec.Family)
	assert.Len(t, m.Cells(KindInput), 3)
	assert.Len(t, m.Cells(KindHolding), 3)
	assert.Equal(t, uint16(0), m.Base.Input)
	assert.Equal(t, uint16(0), m.Base.Holding)

	// final cursor covers exactly the consumed widths
	assert.Equal(t, AddressCursor{Coil: 8, Discrete: 8, Input: 3, Holding: 3}, h.Cursor())
}

func TestHubModuleSlicesAreDisjoint(t *testing.T) {
	mt := newMockTransport(SpaceWidths{Input: 16, Holding: 8, Discrete: 16, Coil: 8})
	// two analog inputs (4 words each), one 8 DI, one 4 DO bitfield
	mt.setModuleList(459, 453, 352, 0x8404, 0)

	h, err := NewHubWithTransport(HubConfig{Host: "test", Logger: testLogger()}, mt)
	require.NoError(t, err)

	// slices are contiguous and non-decreasing in discovery order
	assert.Equal(t, uint16(0), h.Modules().At(0).Base.Input)
	assert.Equal(t, uint16(4), h.Modules().At(1).Base.Input)
	assert.Equal(t, uint16(0), h.Modules().At(2).Base.Discrete)
	assert.Equal(t, uint16(0), h.Modules().At(3).Base.Coil)

	// every input cell address falls inside its module's slice
	for _, m := range h.Modules().All() {
		for _, cell := range m.Cells(KindInput) {
			assert.GreaterOrEqual(t, cell.Address, m.Base.Input)
			assert.Less(t, int(cell.Address), int(m.Base.Input)+m.Spec.Channels.Input)
		}
	}
}

func TestHubControllerInfo(t *testing.T) {
	h, _ := testHub(t)

	info := h.Info()
	assert.Equal(t, 19, info.Revision)
	assert.Equal(t, 750, info.Series)
	assert.Equal(t, 881, info.Item)
	assert.Equal(t, "1.7", info.FirmwareVersion)
	assert.Equal(t, "WAGO-Ethernet TCP/IP PFC", info.FirmwareInfo)
}

func TestHubAliasLookup(t *testing.T) {
	h, _ := testHub(t)

	dali := h.Modules().Get("641")
	require.NotNil(t, dali)
	assert.Equal(t, 2, dali.Index)
	assert.Same(t, dali, h.Modules().Get("dali"))

	// the alias index points at the first matching module
	di := h.Modules().Get("DI")
	require.NotNil(t, di)
	assert.Equal(t, 0, di.Index)

	assert.Nil(t, h.Modules().Get("559"))

	assert.Len(t, h.Modules().Digital(), 2)
	assert.Len(t, h.Modules().Analog(), 1)
	assert.Len(t, h.Modules().Select("DO"), 1)
}

func TestHubDigitalOutWrite(t *testing.T) {
	h, mt := testHub(t)

	outs := h.Modules().At(1).DigitalOuts()
	require.Len(t, outs, 8)

	// the write lands on the wire as a single-coil write at
	// 0x0200+3, and a subsequent read sees the new value
	require.NoError(t, outs[3].Write(true))
	assert.True(t, bool(mt.coil[3]))

	value, err := outs[3].Read()
	require.NoError(t, err)
	assert.True(t, value)
}

func TestHubDiscoverResetSemantics(t *testing.T) {
	h, mt := testHub(t)

	first := h.Modules().At(0)

	// without reset, a populated chain is left alone
	require.NoError(t, h.Discover(false))
	assert.Equal(t, 3, h.Modules().Len())
	assert.Same(t, first, h.Modules().At(0))

	// with reset, the chain is rebuilt from the identification words
	mt.setModuleList(0x8102, 0, 0, 0)
	require.NoError(t, h.Discover(true))
	assert.Equal(t, 1, h.Modules().Len())
	assert.Equal(t, AddressCursor{Coil: 2}, h.Cursor())
}

func TestHubKeepsUnknownModulePlaceholder(t *testing.T) {
	mt := newMockTransport(SpaceWidths{Input: 4, Holding: 4, Discrete: 4, Coil: 4})
	mt.setModuleList(999, 0x8401, 0)

	h, err := NewHubWithTransport(HubConfig{Host: "test", Logger: testLogger()}, mt)
	require.NoError(t, err)

	require.Equal(t, 2, h.Modules().Len())
	unknown := h.Modules().At(0)
	assert.Equal(t, 0, unknown.Spec.Channels.Total())
	assert.Empty(t, unknown.Channels())

	// the placeholder consumes no address space
	assert.Equal(t, uint16(0), h.Modules().At(1).Base.Discrete)
}

func TestHubRejectsOversizedModuleMap(t *testing.T) {
	mt := newMockTransport(SpaceWidths{Input: 1, Holding: 1, Discrete: 4, Coil: 1})
	// 8 discrete bits announced, 4 available
	mt.setModuleList(352, 0)

	_, err := NewHubWithTransport(HubConfig{Host: "test", Logger: testLogger()}, mt)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestHubModuleConfigOverrides(t *testing.T) {
	mt := testHubTransport()

	config := HubConfig{
		Host:   "test",
		Logger: testLogger(),
		Modules: []ModuleConfig{
			{
				Index: 0,
				Name:  "hallway inputs",
				Channels: []ChannelConfig{
					{Index: 2, Name: "front door"},
				},
			},
		},
	}

	h, err := NewHubWithTransport(config, mt)
	require.NoError(t, err)

	m := h.Modules().At(0)
	assert.Equal(t, "hallway inputs", m.Name())
	assert.Equal(t, "front door", m.Channels()[2].Name())
	assert.Equal(t, "Digital In 1", m.Channels()[1].Name())
}

func TestHubModuleTypeOverride(t *testing.T) {
	mt := newMockTransport(SpaceWidths{Input: 4, Holding: 4, Discrete: 1, Coil: 1})
	mt.setModuleList(459, 559, 0)

	config := HubConfig{
		Host:   "test",
		Logger: testLogger(),
		Modules: []ModuleConfig{
			{Index: 0, Type: "Int8"},
			{Index: 1, Type: "Float16"},
		},
	}

	h, err := NewHubWithTransport(config, mt)
	require.NoError(t, err)

	// the analog input assembles as byte-half pairs: two channels per
	// word, low half first
	ai := h.Modules().At(0)
	require.Len(t, ai.Channels(), 8)

	low, ok := ai.Channels()[0].(*Int8In)
	require.True(t, ok)
	high, ok := ai.Channels()[1].(*Int8In)
	require.True(t, ok)

	mt.input[0] = 0xBEEF
	require.NoError(t, h.Connection().UpdateAll())

	value, err := low.Read()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xEF), value)
	value, err = high.Read()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xBE), value)

	// the analog output reinterprets each word as a float channel
	ao := h.Modules().At(1)
	require.Len(t, ao.Channels(), 4)

	fl, ok := ao.Channels()[2].(*Float16Out)
	require.True(t, ok)
	require.NoError(t, fl.Write(100))
	assert.Equal(t, uint16(100), mt.holding[2])
}

func TestHubChannelTypeOverride(t *testing.T) {
	mt := newMockTransport(SpaceWidths{Input: 4, Holding: 1, Discrete: 1, Coil: 2})
	mt.setModuleList(459, 0x8102, 0)

	config := HubConfig{
		Host:   "test",
		Logger: testLogger(),
		Modules: []ModuleConfig{
			{
				Index: 0,
				Channels: []ChannelConfig{
					{Index: 1, Type: "Counter 16Bit", Name: "flow pulses"},
					{Index: 2, Type: "Float16 In"},
				},
			},
			{
				Index: 1,
				Channels: []ChannelConfig{
					// bit channels keep their assembled type
					{Index: 0, Type: "Int16 In"},
				},
			},
		},
	}

	h, err := NewHubWithTransport(config, mt)
	require.NoError(t, err)

	ai := h.Modules().At(0)
	require.Len(t, ai.Channels(), 4)

	_, ok := ai.Channels()[0].(*Int16In)
	assert.True(t, ok, "unconfigured channels stay Int16")

	counter, ok := ai.Channels()[1].(*Counter16)
	require.True(t, ok)
	assert.Equal(t, "flow pulses", counter.Name())

	_, ok = ai.Channels()[2].(*Float16In)
	assert.True(t, ok)

	// the retyped channel reads through the same cell
	mt.input[1] = 0x0400
	require.NoError(t, h.Connection().UpdateAll())
	value, err := counter.Read()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0400), value)

	// the digital channel is left alone
	_, ok = h.Modules().At(1).Channels()[0].(*DigitalOut)
	assert.True(t, ok)
}

func TestHubWidthsFromController(t *testing.T) {
	h, _ := testHub(t)

	assert.Equal(t, SpaceWidths{Input: 3, Holding: 3, Discrete: 8, Coil: 8},
		h.Connection().Widths())
}

func TestHubClose(t *testing.T) {
	h, mt := testHub(t)

	require.NoError(t, h.Close())
	assert.True(t, mt.closed)
	assert.False(t, h.Connected())
}
