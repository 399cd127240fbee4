package wg750

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCounterHub(t *testing.T) (counter *Counter32, mt *mockTransport) {
	t.Helper()

	mt = newMockTransport(SpaceWidths{Input: 3, Holding: 3, Discrete: 1, Coil: 1})
	mt.setModuleList(404, 0)
	mt.attachCounterEmulation(0, 0)

	h, err := NewHubWithTransport(HubConfig{Host: "test", Logger: testLogger()}, mt)
	require.NoError(t, err)

	counter = h.Modules().Get("counter").Counter()
	require.NotNil(t, counter)

	return
}

func TestCounterSetAndAck(t *testing.T) {
	counter, mt := testCounterHub(t)

	require.NoError(t, counter.Set(0x00010000))

	// the load value travels through holding words 1..2 in
	// little-word order
	assert.Equal(t, uint16(0x0000), mt.holding[1])
	assert.Equal(t, uint16(0x0001), mt.holding[2])

	// the handshake finished: set_counter is lowered again
	assert.Zero(t, mt.holding[0]&counterCtlSetCounter)

	value, err := counter.Read()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00010000), value)
}

func TestCounterReset(t *testing.T) {
	counter, _ := testCounterHub(t)

	require.NoError(t, counter.Set(0xDEADBEEF))
	require.NoError(t, counter.Reset())

	value, err := counter.Read()
	require.NoError(t, err)
	assert.Zero(t, value)
}

func TestCounterLockUnlock(t *testing.T) {
	counter, mt := testCounterHub(t)

	require.NoError(t, counter.Lock())
	assert.NotZero(t, mt.holding[0]&counterCtlLock)

	locked, err := counter.Locked()
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, counter.Unlock())
	locked, err = counter.Locked()
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestCounterDigitalOutputs(t *testing.T) {
	counter, mt := testCounterHub(t)

	require.NoError(t, counter.SetDO1(true))
	assert.NotZero(t, mt.holding[0]&counterCtlSetDO1)

	require.NoError(t, counter.SetDO2(true))
	assert.NotZero(t, mt.holding[0]&counterCtlSetDO2)

	// the other control bits stay untouched
	require.NoError(t, counter.SetDO1(false))
	assert.Zero(t, mt.holding[0]&counterCtlSetDO1)
	assert.NotZero(t, mt.holding[0]&counterCtlSetDO2)
}

func TestCounterSetTimesOutWithoutAck(t *testing.T) {
	counter, mt := testCounterHub(t)

	// cut the module emulation: the acknowledge never latches
	mt.onHoldingWrite = nil
	counter.SetTimeout(80 * time.Millisecond)

	err := counter.Set(42)
	assert.ErrorIs(t, err, ErrTimeout)
}
