package wg750

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Control byte bits (holding word 0, low byte).
const (
	daliCtlTransmitRequest = 1 << 0
	// command class: a short-address command from the DIN IEC 60929
	// table (as opposed to direct arc power control)
	daliCtlCommand = 1 << 1
	// gateway-wide macro, selected by the extension byte
	daliCtlMacro = 1 << 2
)

// Status byte bits (input word 0, low byte).
const daliStsTransmitAck = 1 << 0

// Gateway macro extension selectors.
const (
	daliExtSaveSceneParameter   = 0x01
	daliExtReassignShortAddress = 0x02
	daliExtDeleteShortAddress   = 0x03
	daliExtReplaceShortAddress  = 0x04
	daliExtBlinkShowAddress     = 0x05
	daliExtPresentLow           = 0x06
	daliExtPresentHigh          = 0x07
	daliExtStatusPSULow         = 0x08
	daliExtStatusPSUHigh        = 0x09
	daliExtLampFailureLow       = 0x0A
	daliExtLampFailureHigh      = 0x0B
	daliExtLampPowerOnLow       = 0x0C
	daliExtLampPowerOnHigh      = 0x0D
	daliExtDaliDsiMode          = 0x0E
	daliExtReset                = 0x0F
	daliExtSaveSceneValue       = 0x10
	daliExtAutoPolling          = 0x11
	daliExtDeviceTypeSpecific   = 0x12
	daliExtActualLevel56        = 0x13
	daliExtActualLevel60        = 0x14
	daliExtSetLevelPollPeriod   = 0x15
	daliExtGetLevelPollPeriod   = 0x16
	daliExtHwSwVersion          = 0x17
	daliExtNetworkStatus        = 0x36
)

// DALI broadcast and group addressing as used by the gateway.
const (
	DaliBroadcastAddress = 0x3F
	daliFirstGroup       = 0x40
	daliGroupCount       = 16
)

const (
	defaultDaliTimeout = 5 * time.Second
	daliPollInterval   = 25 * time.Millisecond
)

// daliMessage is one request inside the 3 holding words of the
// gateway: control byte plus address-or-extension selector in word 0,
// command code / parameters in word 1, extended data or brightness in
// word 2.
type daliMessage struct {
	control  uint8
	address  uint8
	param1   uint8
	param2   uint8
	extended uint16
}

func daliBrightnessMessage(address uint8, level uint8) daliMessage {
	return daliMessage{
		address:  address,
		extended: uint16(level),
	}
}

func daliCommandMessage(address uint8, code uint8) daliMessage {
	return daliMessage{
		control: daliCtlCommand,
		address: address,
		param1:  code,
	}
}

func daliMacroMessage(extension uint8, param1 uint8, param2 uint8) daliMessage {
	return daliMessage{
		control: daliCtlMacro,
		address: extension,
		param1:  param1,
		param2:  param2,
	}
}

// words encodes the message for the holding layout, with the transmit
// request bit set or cleared.
func (m daliMessage) words(transmit bool) (w Words) {
	control := m.control
	if transmit {
		control |= daliCtlTransmitRequest
	} else {
		control &^= daliCtlTransmitRequest
	}

	return Words{
		uint16(m.address)<<8 | uint16(control),
		uint16(m.param2)<<8 | uint16(m.param1),
		m.extended,
	}
}

// daliResponse is one reply inside the 3 input words of the gateway:
// status byte and response byte in word 0, additional response bytes
// in words 1..2, low byte first.
type daliResponse struct {
	status   uint8
	response uint8
	message1 uint8
	message2 uint8
	message3 uint8
}

func decodeDaliResponse(words Words) daliResponse {
	return daliResponse{
		status:   uint8(words[0] & 0xFF),
		response: uint8(words[0] >> 8),
		message1: uint8(words[1] & 0xFF),
		message2: uint8(words[1] >> 8),
		message3: uint8(words[2] & 0xFF),
	}
}

// channelList expands the four response bytes of a presence-style
// query into the list of set bit positions. The gateway packs
// addresses offset+0..7 into the response byte, +8..15 into message
// byte 3, +16..23 into message byte 2 and +24..31 into message byte 1.
func (r daliResponse) channelList(offset int) (channels []int) {
	for i, b := range []uint8{r.response, r.message3, r.message2, r.message1} {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				channels = append(channels, offset+8*i+bit)
			}
		}
	}

	return
}

// daliPort drives the transmit/acknowledge handshake over the 3 input
// + 3 holding words of a DALI master module. One message is in flight
// at a time.
type daliPort struct {
	mu          sync.Mutex
	image       *ProcessImage
	inputBase   uint16
	holdingBase uint16
	timeout     time.Duration
	logger      *log.Logger
}

func newDaliPort(image *ProcessImage, inputBase uint16, holdingBase uint16, sink *log.Logger) *daliPort {
	return &daliPort{
		image:       image,
		inputBase:   inputBase,
		holdingBase: holdingBase,
		timeout:     defaultDaliTimeout,
		logger:      newLogger(fmt.Sprintf("dali(0x%04x)", inputBase), sink),
	}
}

// Reads the response registers fresh from the wire.
func (p *daliPort) response() (res daliResponse, err error) {
	words, err := p.image.ReadInputRegisters(int(p.inputBase), 3, true)
	if err != nil {
		return
	}

	return decodeDaliResponse(words), nil
}

// Polls the input region until the transmit acknowledge bit matches
// want. Fails with ErrTimeout on expiry.
func (p *daliPort) waitAck(want bool, timeout time.Duration) (err error) {
	deadline := time.Now().Add(timeout)

	for {
		word, err := p.image.ReadInputRegister(int(p.inputBase), true)
		if err != nil {
			return err
		}
		if (word&daliStsTransmitAck != 0) == want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: transmit ack did not reach %v within %v",
				ErrTimeout, want, timeout)
		}
		time.Sleep(daliPollInterval)
	}
}

// send runs one full transmit cycle: write the message with the
// transmit request raised, wait for the acknowledge, optionally pick
// up the response, then lower the request and wait for the handshake
// to complete. On timeout the bus is left ready for a fresh cycle.
func (p *daliPort) send(msg daliMessage, wantResponse bool, timeout time.Duration) (res daliResponse, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if timeout <= 0 {
		timeout = p.timeout
	}

	p.logger.Debugf("transmit %s", msg.words(true).Hex())
	if err = p.image.WriteRegisters(int(p.holdingBase), msg.words(true)); err != nil {
		return
	}
	if err = p.waitAck(true, timeout); err != nil {
		return
	}

	if wantResponse {
		if res, err = p.response(); err != nil {
			return
		}
		p.logger.Debugf("response 0x%02x", res.response)
	}

	if err = p.image.WriteRegisters(int(p.holdingBase), msg.words(false)); err != nil {
		return
	}
	err = p.waitAck(false, timeout)

	return
}

func checkRange(value int, min int, max int, name string) (err error) {
	if value < min || value > max {
		return fmt.Errorf("%w: %s must be between %d and %d, got %d",
			ErrInvalidArgument, name, min, max, value)
	}

	return
}

// DaliChannel addresses one device (or group, or the broadcast
// address) on the DALI bus behind a 750-641 master.
type DaliChannel struct {
	channelBase
	address uint8
	port    *daliPort
}

func newDaliChannel(address uint8, port *daliPort) *DaliChannel {
	return &DaliChannel{
		channelBase: channelBase{channelType: ChannelDali, index: int(address)},
		address:     address,
		port:        port,
	}
}

// Address returns the DALI short address this channel talks to.
func (ch *DaliChannel) Address() uint8 {
	return ch.address
}

// Sends a plain command from the DIN IEC 60929 table.
func (ch *DaliChannel) sendCommand(code uint8) (err error) {
	_, err = ch.port.send(daliCommandMessage(ch.address, code), false, 0)

	return
}

// Sends a configuration command. The gateway requires configuration
// commands twice back-to-back before it commits them.
func (ch *DaliChannel) sendConfigCommand(code uint8) (err error) {
	if err = ch.sendCommand(code); err != nil {
		return
	}

	return ch.sendCommand(code)
}

// Sends a query command and returns the response byte.
func (ch *DaliChannel) query(code uint8) (value uint8, err error) {
	res, err := ch.port.send(daliCommandMessage(ch.address, code), true, 0)
	if err != nil {
		return
	}

	return res.response, nil
}

// Sends a gateway macro carrying this channel's short address.
func (ch *DaliChannel) sendMacro(extension uint8, param1 uint8, param2 uint8, timeout time.Duration) (err error) {
	_, err = ch.port.send(daliMacroMessage(extension, param1, param2), false, timeout)

	return
}

// SetBrightness drives the channel to the given arc power level
// directly, bypassing the command table.
func (ch *DaliChannel) SetBrightness(level int) (err error) {
	if err = checkRange(level, 0, 254, "brightness"); err != nil {
		return
	}
	_, err = ch.port.send(daliBrightnessMessage(ch.address, uint8(level)), false, 0)

	return
}

// Brightness returns the current arc power level.
func (ch *DaliChannel) Brightness() (int, error) {
	value, err := ch.QueryCurrentValue()

	return int(value), err
}

// PowerOff switches the lamp off (command 0).
func (ch *DaliChannel) PowerOff() error {
	return ch.sendCommand(0b00000000)
}

// IncreaseBrightness fades the lamp up (command 1).
func (ch *DaliChannel) IncreaseBrightness() error {
	return ch.sendCommand(0b00000001)
}

// DecreaseBrightness fades the lamp down (command 2).
func (ch *DaliChannel) DecreaseBrightness() error {
	return ch.sendCommand(0b00000010)
}

// IncreaseBrightnessStep steps the lamp up (command 3).
func (ch *DaliChannel) IncreaseBrightnessStep() error {
	return ch.sendCommand(0b00000011)
}

// DecreaseBrightnessStep steps the lamp down (command 4).
func (ch *DaliChannel) DecreaseBrightnessStep() error {
	return ch.sendCommand(0b00000100)
}

// DecreaseBrightnessAndPowerOff steps down and switches off at the
// minimum level (command 7).
func (ch *DaliChannel) DecreaseBrightnessAndPowerOff() error {
	return ch.sendCommand(0b00000111)
}

// PowerOnAndIncreaseBrightness switches on and steps up (command 8).
func (ch *DaliChannel) PowerOnAndIncreaseBrightness() error {
	return ch.sendCommand(0b00001000)
}

// GoToScene recalls scene n (commands 16..31).
func (ch *DaliChannel) GoToScene(scene int) (err error) {
	if err = checkRange(scene, 1, 16, "scene"); err != nil {
		return
	}

	return ch.sendCommand(0b00010000 + uint8(scene-1))
}

// Reset restores the device's factory defaults (command 32).
func (ch *DaliChannel) Reset() error {
	return ch.sendConfigCommand(0b00100000)
}

// SaveCurrentValueToDTR stores the current level in the DTR
// (command 33).
func (ch *DaliChannel) SaveCurrentValueToDTR() error {
	return ch.sendConfigCommand(0b00100001)
}

// SaveDTRToMaxValue commits the DTR as maximum level (command 42).
func (ch *DaliChannel) SaveDTRToMaxValue() error {
	return ch.sendConfigCommand(0b00101010)
}

// SaveDTRToMinValue commits the DTR as minimum level (command 43).
func (ch *DaliChannel) SaveDTRToMinValue() error {
	return ch.sendConfigCommand(0b00101011)
}

// SaveDTRToSystemErrorValue commits the DTR as system failure level
// (command 44).
func (ch *DaliChannel) SaveDTRToSystemErrorValue() error {
	return ch.sendConfigCommand(0b00101100)
}

// SaveDTRToPowerOnValue commits the DTR as power-on level (command 45).
func (ch *DaliChannel) SaveDTRToPowerOnValue() error {
	return ch.sendConfigCommand(0b00101101)
}

// SaveDTRToStepTime commits the DTR as fade time (command 46).
func (ch *DaliChannel) SaveDTRToStepTime() error {
	return ch.sendConfigCommand(0b00101110)
}

// SaveDTRToStepSpeed commits the DTR as fade rate (command 47).
func (ch *DaliChannel) SaveDTRToStepSpeed() error {
	return ch.sendConfigCommand(0b00101111)
}

// SaveDTRToScene commits the DTR as the level of scene n
// (commands 64..79).
func (ch *DaliChannel) SaveDTRToScene(scene int) (err error) {
	if err = checkRange(scene, 1, 16, "scene"); err != nil {
		return
	}

	return ch.sendConfigCommand(0b01000000 + uint8(scene-1))
}

// RemoveFromScene removes the device from scene n (commands 80..95).
func (ch *DaliChannel) RemoveFromScene(scene int) (err error) {
	if err = checkRange(scene, 1, 16, "scene"); err != nil {
		return
	}

	return ch.sendConfigCommand(0b01010000 + uint8(scene-1))
}

// AddToGroup adds the device to group n (commands 96..111).
func (ch *DaliChannel) AddToGroup(group int) (err error) {
	if err = checkRange(group, 1, 16, "group"); err != nil {
		return
	}

	return ch.sendConfigCommand(0b01100000 + uint8(group-1))
}

// RemoveFromGroup removes the device from group n (commands 112..127).
func (ch *DaliChannel) RemoveFromGroup(group int) (err error) {
	if err = checkRange(group, 1, 16, "group"); err != nil {
		return
	}

	return ch.sendConfigCommand(0b01110000 + uint8(group-1))
}

// SaveDTRAsShortAddress commits the DTR as the device's short address
// (command 128).
func (ch *DaliChannel) SaveDTRAsShortAddress() error {
	return ch.sendConfigCommand(0b10000000)
}

// QueryStatus returns the device status byte (command 144).
func (ch *DaliChannel) QueryStatus() (uint8, error) {
	return ch.query(0b10010000)
}

// QueryPowerSupply reports ballast operability (command 145).
func (ch *DaliChannel) QueryPowerSupply() (uint8, error) {
	return ch.query(0b10010001)
}

// QueryLampFailure reports a lamp fault (command 146).
func (ch *DaliChannel) QueryLampFailure() (uint8, error) {
	return ch.query(0b10010010)
}

// QueryPowerSupplyLampOn reports ballast power with lamp on
// (command 147).
func (ch *DaliChannel) QueryPowerSupplyLampOn() (uint8, error) {
	return ch.query(0b10010011)
}

// QueryLimitError reports a level outside min/max (command 148).
func (ch *DaliChannel) QueryLimitError() (uint8, error) {
	return ch.query(0b10010100)
}

// QueryResetStatus reports reset state (command 149).
func (ch *DaliChannel) QueryResetStatus() (uint8, error) {
	return ch.query(0b10010101)
}

// QueryShortAddressMissing reports a missing short address
// (command 150).
func (ch *DaliChannel) QueryShortAddressMissing() (uint8, error) {
	return ch.query(0b10010110)
}

// QueryVersion returns the device's DALI version number (command 151).
func (ch *DaliChannel) QueryVersion() (uint8, error) {
	return ch.query(0b10010111)
}

// QueryDTRContent returns the DTR value (command 152).
func (ch *DaliChannel) QueryDTRContent() (uint8, error) {
	return ch.query(0b10011000)
}

// QueryDeviceType returns the device type (command 153).
func (ch *DaliChannel) QueryDeviceType() (uint8, error) {
	return ch.query(0b10011001)
}

// QueryPhysicalMinValue returns the physically possible minimum level
// (command 154).
func (ch *DaliChannel) QueryPhysicalMinValue() (uint8, error) {
	return ch.query(0b10011010)
}

// QueryPowerSupplyError reports a ballast fault (command 155).
func (ch *DaliChannel) QueryPowerSupplyError() (uint8, error) {
	return ch.query(0b10011011)
}

// QueryCurrentValue returns the current arc power level (command 160).
func (ch *DaliChannel) QueryCurrentValue() (uint8, error) {
	return ch.query(0b10100000)
}

// QueryMaxValue returns the maximum level (command 161).
func (ch *DaliChannel) QueryMaxValue() (uint8, error) {
	return ch.query(0b10100001)
}

// QueryMinValue returns the minimum level (command 162).
func (ch *DaliChannel) QueryMinValue() (uint8, error) {
	return ch.query(0b10100010)
}

// QueryPowerOnValue returns the power-on level (command 163).
func (ch *DaliChannel) QueryPowerOnValue() (uint8, error) {
	return ch.query(0b10100011)
}

// QuerySystemErrorValue returns the system failure level
// (command 164).
func (ch *DaliChannel) QuerySystemErrorValue() (uint8, error) {
	return ch.query(0b10100100)
}

// QueryStepTimeAndSpeed returns fade time and fade rate packed into
// one byte (command 165).
func (ch *DaliChannel) QueryStepTimeAndSpeed() (uint8, error) {
	return ch.query(0b10100101)
}

// QuerySceneValue returns the level of scene n (commands 176..191).
func (ch *DaliChannel) QuerySceneValue(scene int) (value uint8, err error) {
	if err = checkRange(scene, 0, 15, "scene"); err != nil {
		return
	}

	return ch.query(0b10110000 + uint8(scene))
}

// QueryGroups returns the groups the device is a member of, merging
// the two 8-bit membership queries (commands 192..193) into one
// 16-entry list of group indices.
func (ch *DaliChannel) QueryGroups() (groups []int, err error) {
	low, err := ch.query(0b11000000)
	if err != nil {
		return
	}
	high, err := ch.query(0b11000001)
	if err != nil {
		return
	}

	for bit := 0; bit < 8; bit++ {
		if low&(1<<bit) != 0 {
			groups = append(groups, bit)
		}
	}
	for bit := 0; bit < 8; bit++ {
		if high&(1<<bit) != 0 {
			groups = append(groups, 8+bit)
		}
	}

	return
}

// QueryDirectAddress returns the device's 24-bit random address,
// merging the three byte queries (commands 194..196) high to low.
func (ch *DaliChannel) QueryDirectAddress() (address int, err error) {
	high, err := ch.query(0b11000010)
	if err != nil {
		return
	}
	middle, err := ch.query(0b11000011)
	if err != nil {
		return
	}
	low, err := ch.query(0b11000100)
	if err != nil {
		return
	}

	return int(high)<<16 | int(middle)<<8 | int(low), nil
}

// QueryApplicationExtension sends an application specific extension
// query (commands 224..255) and returns the response byte.
func (ch *DaliChannel) QueryApplicationExtension(extension int) (value uint8, err error) {
	if err = checkRange(extension, 0, 31, "extension command"); err != nil {
		return
	}

	return ch.query(0b11100000 + uint8(extension))
}

// SaveSceneParameter stores the current scene/parameter set (macro 1).
func (ch *DaliChannel) SaveSceneParameter() error {
	return ch.sendMacro(daliExtSaveSceneParameter, 0, 0, 0)
}

// ReassignShortAddress starts short address reassignment (macro 2).
func (ch *DaliChannel) ReassignShortAddress() error {
	return ch.sendMacro(daliExtReassignShortAddress, 0, 0, 0)
}

// DeleteShortAddress removes the device's short address (macro 3).
func (ch *DaliChannel) DeleteShortAddress() error {
	return ch.sendMacro(daliExtDeleteShortAddress, 0, 0, 0)
}

// ReplaceShortAddress replaces the device's short address (macro 4).
func (ch *DaliChannel) ReplaceShortAddress() error {
	return ch.sendMacro(daliExtReplaceShortAddress, 0, 0, 0)
}

// BlinkShowAddress blinks the device for the given number of seconds
// (macro 5). The handshake timeout is stretched to cover the blink
// duration.
func (ch *DaliChannel) BlinkShowAddress(seconds int) (err error) {
	if err = checkRange(seconds, 0, 255, "seconds"); err != nil {
		return
	}

	return ch.sendMacro(daliExtBlinkShowAddress, uint8(seconds), 0,
		time.Duration(seconds+1)*time.Second)
}

// DaliGateway exposes the gateway-wide macro commands of a 750-641
// DALI master and owns the channels discovered on its bus.
type DaliGateway struct {
	port      *daliPort
	logger    *log.Logger
	channels  []*DaliChannel
	groups    []*DaliChannel
	broadcast *DaliChannel
}

func newDaliGateway(image *ProcessImage, inputBase uint16, holdingBase uint16, sink *log.Logger) (g *DaliGateway) {
	g = &DaliGateway{
		port:   newDaliPort(image, inputBase, holdingBase, sink),
		logger: newLogger(fmt.Sprintf("dali-gateway(0x%04x)", inputBase), sink),
	}

	g.broadcast = newDaliChannel(DaliBroadcastAddress, g.port)
	for i := 0; i < daliGroupCount; i++ {
		g.groups = append(g.groups, newDaliChannel(uint8(daliFirstGroup+i), g.port))
	}

	return
}

// Discovers the devices on the bus and creates one channel per present
// short address. A handshake timeout leaves the gateway without
// channels; the caller may retry later.
func (g *DaliGateway) setupChannels() (err error) {
	addresses, err := g.QueryShortAddressesPresent()
	if err != nil {
		return fmt.Errorf("dali channel setup: %w", err)
	}

	g.channels = g.channels[:0]
	for _, address := range addresses {
		g.channels = append(g.channels, newDaliChannel(uint8(address), g.port))
	}

	return
}

// Channels returns one channel per short address discovered on the
// bus, ascending.
func (g *DaliGateway) Channels() []*DaliChannel {
	return g.channels
}

// Channel returns the i-th discovered channel.
func (g *DaliGateway) Channel(i int) *DaliChannel {
	return g.channels[i]
}

// Groups returns the 16 group channels.
func (g *DaliGateway) Groups() []*DaliChannel {
	return g.groups
}

// Broadcast returns the channel addressing every device on the bus.
func (g *DaliGateway) Broadcast() *DaliChannel {
	return g.broadcast
}

// SetTimeout adjusts the default handshake timeout.
func (g *DaliGateway) SetTimeout(timeout time.Duration) {
	g.port.timeout = timeout
}

// Sends a presence-style macro and expands the response bytes into
// short addresses.
func (g *DaliGateway) queryChannelList(extension uint8, offset int) (channels []int, err error) {
	res, err := g.port.send(daliMacroMessage(extension, 0, 0), true, 0)
	if err != nil {
		return
	}

	return res.channelList(offset), nil
}

// QueryShortAddressesPresent returns the sorted list of short
// addresses answering on the bus, merging the two 32-address halves.
func (g *DaliGateway) QueryShortAddressesPresent() (addresses []int, err error) {
	low, err := g.queryChannelList(daliExtPresentLow, 0)
	if err != nil {
		return
	}
	high, err := g.queryChannelList(daliExtPresentHigh, 32)
	if err != nil {
		return
	}

	addresses = append(low, high...)
	sort.Ints(addresses)

	return
}

// QueryStatusPSU returns the short addresses reporting ballast status,
// both halves merged.
func (g *DaliGateway) QueryStatusPSU() (addresses []int, err error) {
	low, err := g.queryChannelList(daliExtStatusPSULow, 0)
	if err != nil {
		return
	}
	high, err := g.queryChannelList(daliExtStatusPSUHigh, 32)
	if err != nil {
		return
	}

	addresses = append(low, high...)
	sort.Ints(addresses)

	return
}

// QueryLampFailure returns the short addresses reporting a lamp
// failure, both halves merged.
func (g *DaliGateway) QueryLampFailure() (addresses []int, err error) {
	low, err := g.queryChannelList(daliExtLampFailureLow, 0)
	if err != nil {
		return
	}
	high, err := g.queryChannelList(daliExtLampFailureHigh, 32)
	if err != nil {
		return
	}

	addresses = append(low, high...)
	sort.Ints(addresses)

	return
}

// QueryLampPowerOn returns the short addresses reporting lamp power
// on, both halves merged.
func (g *DaliGateway) QueryLampPowerOn() (addresses []int, err error) {
	low, err := g.queryChannelList(daliExtLampPowerOnLow, 0)
	if err != nil {
		return
	}
	high, err := g.queryChannelList(daliExtLampPowerOnHigh, 32)
	if err != nil {
		return
	}

	addresses = append(low, high...)
	sort.Ints(addresses)

	return
}

// SetDaliDsiMode switches the gateway to DALI mode with polling
// enabled (macro 14).
func (g *DaliGateway) SetDaliDsiMode() (err error) {
	_, err = g.port.send(daliMacroMessage(daliExtDaliDsiMode, 0x01, 0x00), false, 0)

	return
}

// ResetGateway resets the gateway module itself (macro 15).
func (g *DaliGateway) ResetGateway() (err error) {
	_, err = g.port.send(daliMacroMessage(daliExtReset, 0x00, 0x00), false, 0)

	return
}

// SaveSceneValue stores a scene value on the gateway (macro 16).
func (g *DaliGateway) SaveSceneValue(value int) (err error) {
	if err = checkRange(value, 0, 0xBF, "scene value"); err != nil {
		return
	}
	_, err = g.port.send(daliMacroMessage(daliExtSaveSceneValue, uint8(value)+0x40, 0x00), false, 0)

	return
}

// EnableAutoPolling turns the gateway's automatic bus polling on
// (macro 17, 1000ms period).
func (g *DaliGateway) EnableAutoPolling() (err error) {
	_, err = g.port.send(daliMacroMessage(daliExtAutoPolling, 0xE8, 0x03), false, 0)

	return
}

// DisableAutoPolling turns the gateway's automatic bus polling off
// (macro 17).
func (g *DaliGateway) DisableAutoPolling() (err error) {
	_, err = g.port.send(daliMacroMessage(daliExtAutoPolling, 0xFF, 0xFF), false, 0)

	return
}

// SetLevelPollPeriod sets the gateway's level poll period (macro 21).
func (g *DaliGateway) SetLevelPollPeriod(period int) (err error) {
	if err = checkRange(period, 0, 255, "period"); err != nil {
		return
	}
	_, err = g.port.send(daliMacroMessage(daliExtSetLevelPollPeriod, uint8(period), 0x00), true, 0)

	return
}

// LevelPollPeriod returns the gateway's level poll period (macro 22).
func (g *DaliGateway) LevelPollPeriod() (period uint8, err error) {
	res, err := g.port.send(daliMacroMessage(daliExtGetLevelPollPeriod, 0x00, 0x00), true, 0)
	if err != nil {
		return
	}

	return res.response, nil
}

// QueryHwSwVersion returns the gateway's hardware and software
// versions (macro 23): hardware in the response byte, software in
// message byte 1.
func (g *DaliGateway) QueryHwSwVersion() (hardware uint8, software uint8, err error) {
	res, err := g.port.send(daliMacroMessage(daliExtHwSwVersion, 0x00, 0x00), true, 0)
	if err != nil {
		return
	}

	return res.response, res.message1, nil
}

// QueryNetworkStatus returns the gateway's bus status byte (macro 0x36).
func (g *DaliGateway) QueryNetworkStatus() (status uint8, err error) {
	res, err := g.port.send(daliMacroMessage(daliExtNetworkStatus, 0x00, 0x00), true, 0)
	if err != nil {
		return
	}

	return res.response, nil
}
