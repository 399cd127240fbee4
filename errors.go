package wg750

import (
	"errors"
)

var (
	// ErrConnection is returned when the initial connection to the
	// controller cannot be established.
	ErrConnection = errors.New("connection failed")
	// ErrCommunication is returned when a modbus request failed even
	// after the transport reconnected and retried.
	ErrCommunication = errors.New("communication failed")
	// ErrTimeout is returned when a DALI or counter handshake did not
	// complete in time.
	ErrTimeout = errors.New("handshake timed out")
	// ErrProtocol is returned on a modbus exception response or a
	// malformed reply.
	ErrProtocol = errors.New("protocol error")
	// ErrWriteToReadOnly is returned when writing to an input register
	// or discrete input channel.
	ErrWriteToReadOnly = errors.New("write to read-only channel")
	// ErrInvalidArgument is returned on out-of-range DALI parameters and
	// on operations applied to the wrong channel kind.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownModule flags an identifier word with no catalogue entry.
	// Discovery keeps the module as a zero-channel placeholder.
	ErrUnknownModule = errors.New("unknown module")
	// ErrPollerAlreadyRunning is returned when starting the continuous
	// poller twice.
	ErrPollerAlreadyRunning = errors.New("poller already running")
)
