package wg750

import (
	"errors"
	"syscall"
	"testing"

	"github.com/simonvetter/modbus"
)

// flakyClient fails calls with a scripted error queue and counts
// reconnects.
type flakyClient struct {
	errs      []error
	opens     int
	closes    int
	registers []uint16
}

func (fc *flakyClient) popErr() error {
	if len(fc.errs) == 0 {
		return nil
	}

	err := fc.errs[0]
	fc.errs = fc.errs[1:]

	return err
}

func (fc *flakyClient) Open() error {
	fc.opens++
	return nil
}

func (fc *flakyClient) Close() error {
	fc.closes++
	return nil
}

func (fc *flakyClient) ReadCoils(addr uint16, quantity uint16, options ...func(*modbus.Client)) ([]bool, error) {
	if err := fc.popErr(); err != nil {
		return nil, err
	}
	return make([]bool, quantity), nil
}

func (fc *flakyClient) ReadDiscreteInputs(addr uint16, quantity uint16, options ...func(*modbus.Client)) ([]bool, error) {
	if err := fc.popErr(); err != nil {
		return nil, err
	}
	return make([]bool, quantity), nil
}

func (fc *flakyClient) ReadRegisters(addr uint16, quantity uint16, regType modbus.RegisterType, options ...func(*modbus.Client)) ([]uint16, error) {
	if err := fc.popErr(); err != nil {
		return nil, err
	}
	if fc.registers != nil {
		return fc.registers, nil
	}
	return make([]uint16, quantity), nil
}

func (fc *flakyClient) WriteCoil(addr uint16, value bool, options ...func(*modbus.Client)) error {
	return fc.popErr()
}

func (fc *flakyClient) WriteCoils(addr uint16, values []bool, options ...func(*modbus.Client)) error {
	return fc.popErr()
}

func (fc *flakyClient) WriteRegister(addr uint16, value uint16, options ...func(*modbus.Client)) error {
	return fc.popErr()
}

func (fc *flakyClient) WriteRegisters(addr uint16, values []uint16, options ...func(*modbus.Client)) error {
	return fc.popErr()
}

func newTestTransport(fc *flakyClient) *tcpTransport {
	return &tcpTransport{
		client:  fc,
		retries: defaultTransportRetries,
		logger:  newLogger("transport-test", nil),
	}
}

func TestTransportReconnectsOnBrokenPipe(t *testing.T) {
	var fc *flakyClient
	var tt *tcpTransport
	var err error

	fc = &flakyClient{
		errs:      []error{syscall.EPIPE},
		registers: []uint16{0x1234},
	}
	tt = newTestTransport(fc)

	// the first attempt fails with a broken pipe; the facade must
	// reconnect and succeed on the second attempt without surfacing
	// the error
	values, err := tt.ReadInputRegisters(0x0000, 1)
	if err != nil {
		t.Errorf("expected the retried read to succeed, got %v", err)
	}
	if len(values) != 1 || values[0] != 0x1234 {
		t.Errorf("expected [0x1234], got %v", values)
	}
	if fc.closes != 1 || fc.opens != 1 {
		t.Errorf("expected one close+open cycle, got %d/%d", fc.closes, fc.opens)
	}

	return
}

func TestTransportGivesUpAfterRetries(t *testing.T) {
	var fc *flakyClient
	var tt *tcpTransport
	var err error

	fc = &flakyClient{
		errs: []error{syscall.EPIPE, syscall.ECONNRESET, syscall.EPIPE},
	}
	tt = newTestTransport(fc)

	_, err = tt.ReadHoldingRegisters(0x0200, 1)
	if !errors.Is(err, ErrCommunication) {
		t.Errorf("expected ErrCommunication after %d attempts, got %v",
			defaultTransportRetries, err)
	}
	if fc.closes != 3 || fc.opens != 3 {
		t.Errorf("expected three reconnect cycles, got %d/%d", fc.closes, fc.opens)
	}

	return
}

func TestTransportDoesNotRetryProtocolErrors(t *testing.T) {
	var fc *flakyClient
	var tt *tcpTransport
	var err error

	fc = &flakyClient{
		errs: []error{modbus.ErrIllegalDataAddress},
	}
	tt = newTestTransport(fc)

	err = tt.WriteRegister(0x0200, 1)
	if !errors.Is(err, modbus.ErrIllegalDataAddress) {
		t.Errorf("expected the protocol error to surface unchanged, got %v", err)
	}
	if fc.closes != 0 || fc.opens != 0 {
		t.Errorf("expected no reconnect on a protocol error, got %d/%d",
			fc.closes, fc.opens)
	}

	return
}
