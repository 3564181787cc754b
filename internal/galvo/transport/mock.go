package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/meerk40t/galvo/internal/galvoerr"
)

// ReplyFunc computes the status reply to return for the command most
// recently written. It lets tests model a board's state machine (busy,
// ready, footswitch) without a real device.
type ReplyFunc func(lastCommand [12]byte) [8]byte

// MockTransport is an in-memory Transport for protocol/engine tests. It
// records every command and block written and can be scripted to return
// arbitrary status replies.
type MockTransport struct {
	mu sync.Mutex

	Reply ReplyFunc

	Commands [][12]byte
	Blocks   [][]byte

	lastCommand [12]byte
	closed      bool

	// FailNextWrite, if non-nil, is returned (and cleared) by the next
	// WriteCommand or WriteBlock call.
	FailNextWrite error
}

// NewMockTransport returns a MockTransport that always replies with
// status word 0x0020 (ready, not busy) unless scripted otherwise. The
// status word occupies bytes 6-7 of the 8-byte reply frame.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Reply: func([12]byte) [8]byte {
			var r [8]byte
			r[6] = 0x20
			return r
		},
	}
}

func (m *MockTransport) WriteCommand(_ context.Context, frame [12]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: transport closed", galvoerr.ErrCommunication)
	}
	if m.FailNextWrite != nil {
		err := m.FailNextWrite
		m.FailNextWrite = nil
		return err
	}
	m.Commands = append(m.Commands, frame)
	m.lastCommand = frame
	return nil
}

func (m *MockTransport) ReadReply(_ context.Context) ([8]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return [8]byte{}, fmt.Errorf("%w: transport closed", galvoerr.ErrCommunication)
	}
	return m.Reply(m.lastCommand), nil
}

func (m *MockTransport) WriteBlock(_ context.Context, block []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: transport closed", galvoerr.ErrCommunication)
	}
	if m.FailNextWrite != nil {
		err := m.FailNextWrite
		m.FailNextWrite = nil
		return err
	}
	cp := make([]byte, len(block))
	copy(cp, block)
	m.Blocks = append(m.Blocks, cp)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
