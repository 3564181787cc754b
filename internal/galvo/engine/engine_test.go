package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meerk40t/galvo/internal/galvo/builder"
	"github.com/meerk40t/galvo/internal/galvo/listops"
	"github.com/meerk40t/galvo/internal/galvo/protocol"
	"github.com/meerk40t/galvo/internal/galvo/transport"
)

func fastSession(d *protocol.Device) *Session {
	s := New(d)
	s.ReadyInterval = time.Microsecond
	s.BusyInterval = time.Microsecond
	return s
}

func readyList(t *testing.T) *builder.CommandList {
	t.Helper()
	cl := builder.New(nil)
	cl.Ready()
	require.NoError(t, cl.SetTravelSpeed(100))
	require.NoError(t, cl.Goto(1, 1, false, nil))
	return cl
}

func TestRunOnceUploadsAndCompletes(t *testing.T) {
	mt := transport.NewMockTransport()
	d := protocol.New(mt)
	s := fastSession(d)

	cl := readyList(t)
	res, err := s.RunOnce(context.Background(), cl)
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res)

	require.Len(t, mt.Blocks, 1, "single-packet job uploads exactly one block")
	assert.Len(t, mt.Blocks[0], listops.PacketSizeBytes)

	var sawResetList, sawExecuteList, sawArm bool
	for _, cmd := range mt.Commands {
		switch cmd[0] {
		case protocol.OpResetList:
			sawResetList = true
		case protocol.OpExecuteList:
			sawExecuteList = true
		case protocol.OpWritePort:
			if cmd[2] == 0x01 && cmd[3] == 0x00 {
				sawArm = true
			}
		}
	}
	assert.True(t, sawResetList)
	assert.True(t, sawExecuteList)
	assert.True(t, sawArm)
}

func TestLoopAbortMidJobReturnsAborted(t *testing.T) {
	mt := transport.NewMockTransport()
	d := protocol.New(mt)
	s := fastSession(d)

	cl := readyList(t)
	var iterations int32
	cl.Tick = func(_ *builder.CommandList, iteration int) {
		atomic.AddInt32(&iterations, 1)
		if iteration == 1 {
			s.Abort()
		}
	}

	res, err := s.Loop(context.Background(), cl)
	require.NoError(t, err)
	assert.Equal(t, ResultAborted, res)
	assert.LessOrEqual(t, atomic.LoadInt32(&iterations), int32(3))

	last := mt.Blocks[len(mt.Blocks)-1]
	op, err := listops.Decode(last[:12])
	require.NoError(t, err)
	assert.Equal(t, listops.KindReadyMark, op.Kind, "abort sequence's packet starts with ReadyMark")

	var sawRecenter bool
	for _, cmd := range mt.Commands {
		if cmd[0] == protocol.OpGotoXY {
			sawRecenter = true
		}
	}
	assert.True(t, sawRecenter, "abort sequence recenters the galvo")
}

func TestAbortWithNoJobRunningDoesNotAffectNextExecute(t *testing.T) {
	mt := transport.NewMockTransport()
	d := protocol.New(mt)
	s := fastSession(d)

	s.Abort() // no job running yet; must not leak into the next Execute

	res, err := s.RunOnce(context.Background(), readyList(t))
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res)
}

func TestFootswitchFiresOnceThenClears(t *testing.T) {
	mt := transport.NewMockTransport()
	pressed := true
	mt.Reply = func([12]byte) [8]byte {
		var r [8]byte
		r[6] = 0x20 // always ready, never busy
		if pressed {
			r[3] = 0x80 // footswitch bit: R0 = bytes[2:4] little-endian, bit 15 set
		}
		return r
	}
	d := protocol.New(mt)
	s := fastSession(d)

	var fired int32
	s.SetFootswitchCallback(func() {
		atomic.AddInt32(&fired, 1)
	})

	res, err := s.RunOnce(context.Background(), readyList(t))
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res)
	assert.Equal(t, int32(1), fired, "callback fires exactly once even though the switch stays depressed across later polls")
}

func TestContextCancellationSurfacesAsError(t *testing.T) {
	mt := transport.NewMockTransport()
	mt.Reply = func([12]byte) [8]byte { return [8]byte{} } // never ready, never idle
	d := protocol.New(mt)
	s := fastSession(d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := s.RunOnce(ctx, readyList(t))
	assert.Error(t, err)
}

func TestEventHookReportsJobLifecycle(t *testing.T) {
	mt := transport.NewMockTransport()
	d := protocol.New(mt)
	s := fastSession(d)

	var kinds []EventKind
	var mu sync.Mutex
	s.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, s.ID, e.SessionID)
		kinds = append(kinds, e.Kind)
	}

	res, err := s.RunOnce(context.Background(), readyList(t))
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, EventJobStart)
	assert.Contains(t, kinds, EventJobFinish)
	assert.Contains(t, kinds, EventStatus)
}

func TestConcurrentExecuteIsSerialized(t *testing.T) {
	mt := transport.NewMockTransport()
	d := protocol.New(mt)
	s := fastSession(d)

	done := make(chan Result, 2)
	go func() {
		r, _ := s.RunOnce(context.Background(), readyList(t))
		done <- r
	}()
	go func() {
		r, _ := s.RunOnce(context.Background(), readyList(t))
		done <- r
	}()

	for i := 0; i < 2; i++ {
		select {
		case r := <-done:
			assert.Equal(t, ResultCompleted, r)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for concurrent executes")
		}
	}
}
