package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meerk40t/galvo/internal/galvo/transport"
)

func TestCommandLatchesStatus(t *testing.T) {
	mt := transport.NewMockTransport()
	mt.Reply = func([12]byte) [8]byte {
		var r [8]byte
		r[2] = 0x11
		r[4] = 0x22
		r[6] = 0x20
		return r
	}
	d := New(mt)
	reply, err := d.GotoXY(context.Background(), 0x1234, 0x5678)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x11), reply.R0)
	assert.Equal(t, uint16(0x22), reply.R1)
	assert.Equal(t, uint16(0x20), reply.Status)
	assert.Equal(t, uint16(0x20), d.LastStatus)

	require.Len(t, mt.Commands, 1)
	frame := mt.Commands[0]
	assert.Equal(t, byte(OpGotoXY), frame[0])
	assert.Equal(t, byte(0x34), frame[2])
	assert.Equal(t, byte(0x12), frame[3])
	assert.Equal(t, byte(0x78), frame[4])
	assert.Equal(t, byte(0x56), frame[5])
}

func TestWriteCorrectionEntryNoReplyRead(t *testing.T) {
	mt := transport.NewMockTransport()
	d := New(mt)
	entry := [5]byte{1, 2, 3, 4, 5}
	require.NoError(t, d.WriteCorrectionEntry(context.Background(), entry))
	require.Len(t, mt.Commands, 1)
	frame := mt.Commands[0]
	assert.Equal(t, byte(OpWriteCorrectionTable), frame[0])
	assert.Equal(t, entry[:], frame[2:7])
}

func TestWaitReadySucceedsImmediatelyWhenReady(t *testing.T) {
	mt := transport.NewMockTransport()
	d := New(mt)
	err := d.WaitReady(context.Background(), time.Millisecond)
	assert.NoError(t, err)
}

func TestWaitReadyPollsUntilReady(t *testing.T) {
	mt := transport.NewMockTransport()
	calls := 0
	mt.Reply = func([12]byte) [8]byte {
		calls++
		var r [8]byte
		if calls >= 3 {
			r[6] = StatusReady
		}
		return r
	}
	d := New(mt)
	err := d.WaitReady(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestWaitReadyHonorsCancellation(t *testing.T) {
	mt := transport.NewMockTransport()
	mt.Reply = func([12]byte) [8]byte { return [8]byte{} } // never ready
	d := New(mt)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := d.WaitReady(ctx, time.Millisecond)
	assert.Error(t, err)
}

func TestWaitWhileBusyClearsOnReply(t *testing.T) {
	mt := transport.NewMockTransport()
	calls := 0
	mt.Reply = func([12]byte) [8]byte {
		calls++
		var r [8]byte
		if calls < 2 {
			r[6] = StatusBusy
		}
		return r
	}
	d := New(mt)
	err := d.WaitWhileBusy(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 2)
}
