package wg750

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/simonvetter/modbus"
)

// Transport is the modbus access the process image and the hub are
// written against. Addresses are raw wire addresses; the process image
// applies the word/bit space base offsets before calling down here.
type Transport interface {
	ReadCoils(addr uint16, quantity uint16) ([]bool, error)
	ReadDiscreteInputs(addr uint16, quantity uint16) ([]bool, error)
	ReadInputRegisters(addr uint16, quantity uint16) ([]uint16, error)
	ReadHoldingRegisters(addr uint16, quantity uint16) ([]uint16, error)
	WriteCoil(addr uint16, value bool) error
	WriteCoils(addr uint16, values []bool) error
	WriteRegister(addr uint16, value uint16) error
	WriteRegisters(addr uint16, values []uint16) error
	Close() error
}

const defaultTransportRetries = 3

// clientAPI is the slice of *modbus.Client the facade relies on.
type clientAPI interface {
	Open() error
	Close() error
	ReadCoils(addr uint16, quantity uint16, options ...func(*modbus.Client)) ([]bool, error)
	ReadDiscreteInputs(addr uint16, quantity uint16, options ...func(*modbus.Client)) ([]bool, error)
	ReadRegisters(addr uint16, quantity uint16, regType modbus.RegisterType, options ...func(*modbus.Client)) ([]uint16, error)
	WriteCoil(addr uint16, value bool, options ...func(*modbus.Client)) error
	WriteCoils(addr uint16, values []bool, options ...func(*modbus.Client)) error
	WriteRegister(addr uint16, value uint16, options ...func(*modbus.Client)) error
	WriteRegisters(addr uint16, values []uint16, options ...func(*modbus.Client)) error
}

// tcpTransport wraps a modbus/TCP client with an auto-reconnect retry
// policy: a broken socket is closed and reopened, then the request is
// retried. Protocol-level errors are never retried.
type tcpTransport struct {
	client  clientAPI
	retries int
	logger  *log.Logger
}

// Dials a modbus/TCP endpoint and returns the transport facade.
func newTCPTransport(url string, timeout time.Duration, sink *log.Logger) (tt *tcpTransport, err error) {
	var client *modbus.Client

	client, err = modbus.NewClient(&modbus.Configuration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if err = client.Open(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	tt = &tcpTransport{
		client:  client,
		retries: defaultTransportRetries,
		logger:  newLogger(fmt.Sprintf("transport(%s)", url), sink),
	}

	return
}

// Closes the underlying socket.
func (tt *tcpTransport) Close() (err error) {
	return tt.client.Close()
}

// Reconnects the underlying socket. Close errors are ignored: the
// socket is assumed broken already.
func (tt *tcpTransport) reconnect() (err error) {
	tt.client.Close()

	return tt.client.Open()
}

// Runs op, reconnecting and retrying on transport-level disconnects.
// Gives up after tt.retries attempts with ErrCommunication.
func (tt *tcpTransport) withRetry(what string, op func() error) (err error) {
	for attempt := 0; attempt < tt.retries; attempt++ {
		err = op()
		if err == nil {
			return
		}
		if !isDisconnect(err) {
			return
		}

		tt.logger.Warnf("%s failed (%v), reconnecting", what, err)
		if rerr := tt.reconnect(); rerr != nil {
			tt.logger.Warnf("reconnect failed: %v", rerr)
		}
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %v",
		ErrCommunication, what, tt.retries, err)
}

// Reports whether err looks like a dead socket rather than a modbus
// protocol error.
func isDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "use of closed network connection")
}

func (tt *tcpTransport) ReadCoils(addr uint16, quantity uint16) (values []bool, err error) {
	err = tt.withRetry("read coils", func() (opErr error) {
		values, opErr = tt.client.ReadCoils(addr, quantity)
		return
	})

	return
}

func (tt *tcpTransport) ReadDiscreteInputs(addr uint16, quantity uint16) (values []bool, err error) {
	err = tt.withRetry("read discrete inputs", func() (opErr error) {
		values, opErr = tt.client.ReadDiscreteInputs(addr, quantity)
		return
	})

	return
}

func (tt *tcpTransport) ReadInputRegisters(addr uint16, quantity uint16) (values []uint16, err error) {
	err = tt.withRetry("read input registers", func() (opErr error) {
		values, opErr = tt.client.ReadRegisters(addr, quantity, modbus.InputRegister)
		return
	})

	return
}

func (tt *tcpTransport) ReadHoldingRegisters(addr uint16, quantity uint16) (values []uint16, err error) {
	err = tt.withRetry("read holding registers", func() (opErr error) {
		values, opErr = tt.client.ReadRegisters(addr, quantity, modbus.HoldingRegister)
		return
	})

	return
}

func (tt *tcpTransport) WriteCoil(addr uint16, value bool) (err error) {
	return tt.withRetry("write coil", func() error {
		return tt.client.WriteCoil(addr, value)
	})
}

func (tt *tcpTransport) WriteCoils(addr uint16, values []bool) (err error) {
	return tt.withRetry("write coils", func() error {
		return tt.client.WriteCoils(addr, values)
	})
}

func (tt *tcpTransport) WriteRegister(addr uint16, value uint16) (err error) {
	return tt.withRetry("write register", func() error {
		return tt.client.WriteRegister(addr, value)
	})
}

func (tt *tcpTransport) WriteRegisters(addr uint16, values []uint16) (err error) {
	return tt.withRetry("write registers", func() error {
		return tt.client.WriteRegisters(addr, values)
	})
}
