package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransportRoundTrip(t *testing.T) {
	mt := NewMockTransport()
	ctx := context.Background()

	var frame [12]byte
	frame[0] = 0xAA
	require.NoError(t, mt.WriteCommand(ctx, frame))
	require.Len(t, mt.Commands, 1)
	assert.Equal(t, frame, mt.Commands[0])

	reply, err := mt.ReadReply(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0x20), reply[6])
}

func TestMockTransportWriteBlockCopiesData(t *testing.T) {
	mt := NewMockTransport()
	block := make([]byte, ListPacketSize)
	block[0] = 1
	require.NoError(t, mt.WriteBlock(context.Background(), block))
	block[0] = 2
	assert.Equal(t, byte(1), mt.Blocks[0][0], "stored block must not alias caller's buffer")
}

func TestMockTransportFailNextWrite(t *testing.T) {
	mt := NewMockTransport()
	want := errors.New("boom")
	mt.FailNextWrite = want

	var frame [12]byte
	err := mt.WriteCommand(context.Background(), frame)
	assert.ErrorIs(t, err, want)
	assert.Empty(t, mt.Commands)

	// error is cleared after firing once
	require.NoError(t, mt.WriteCommand(context.Background(), frame))
}

func TestMockTransportClosedRejectsIO(t *testing.T) {
	mt := NewMockTransport()
	require.NoError(t, mt.Close())

	var frame [12]byte
	assert.Error(t, mt.WriteCommand(context.Background(), frame))
	_, err := mt.ReadReply(context.Background())
	assert.Error(t, err)
}

func TestMockTransportScriptedReply(t *testing.T) {
	mt := NewMockTransport()
	mt.Reply = func(last [12]byte) [8]byte {
		var r [8]byte
		r[0] = last[0]
		return r
	}
	var frame [12]byte
	frame[0] = 0x42
	require.NoError(t, mt.WriteCommand(context.Background(), frame))
	reply, err := mt.ReadReply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), reply[0])
}
