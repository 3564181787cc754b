// Package engine drives the execution state machine: uploading a command
// list packet by packet while honoring the board's ready/busy handshake,
// looping jobs, aborting cleanly, and dispatching footswitch events.
// Grounded on original_source/balor/sender.py's Sender.execute/abort
// methods.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meerk40t/galvo/internal/galvo/builder"
	"github.com/meerk40t/galvo/internal/galvo/listops"
	"github.com/meerk40t/galvo/internal/galvo/protocol"
	"github.com/meerk40t/galvo/internal/galvoerr"
)

// EventKind enumerates the lifecycle events a Session reports to an
// optional observer. The core itself never depends on how, or whether,
// events are persisted.
type EventKind string

const (
	EventJobStart   EventKind = "job_start"
	EventJobFinish  EventKind = "job_finish"
	EventAbort      EventKind = "abort"
	EventFootswitch EventKind = "footswitch"
	EventError      EventKind = "error"
	EventStatus     EventKind = "status"
)

// Event is one lifecycle notification, tagged with the session that
// raised it.
type Event struct {
	SessionID string
	Kind      EventKind
	Detail    string
	Status    uint16
}

// Result is execute's outcome: either the job ran to completion or it was
// aborted. Aborted is not an error: it is a first-class non-error
// return.
type Result int

const (
	ResultCompleted Result = iota
	ResultAborted
)

func (r Result) String() string {
	if r == ResultAborted {
		return "Aborted"
	}
	return "Completed"
}

// errAbortSignal distinguishes an internally requested abort (via
// Session.Abort) from context cancellation, so Execute can return
// (ResultAborted, nil) for the former and a real error for the latter.
var errAbortSignal = errors.New("engine: abort requested")

// Default poll intervals: tight inside ready-waits, coarser inside
// completion-waits.
const (
	DefaultReadyInterval = time.Millisecond
	DefaultBusyInterval  = 60 * time.Millisecond
)

// abortChunk is the preassembled 3072-byte packet sent during abort:
// one ReadyMark followed by 255 NoOps.
func abortChunk() []byte {
	cl := builder.New(nil)
	cl.Ready()
	buf := cl.Serialize()
	return buf[:listops.PacketSizeBytes]
}

// Session owns one opened board and serializes all device I/O behind a
// single lock.
type Session struct {
	Device *protocol.Device

	// ID uniquely identifies this session for diagnostics correlation. It
	// has no meaning on the wire.
	ID string

	ReadyInterval time.Duration
	BusyInterval  time.Duration

	// OnEvent, if set, is called for every lifecycle event this session
	// raises. It must not block for long — a diagnostics recorder should
	// buffer internally (see internal/diag).
	OnEvent func(Event)

	devMu sync.Mutex

	abortMu sync.Mutex
	abortCh chan struct{}

	fsMu       sync.Mutex
	footswitch func()
}

// New wraps an initialized protocol.Device in a Session.
func New(d *protocol.Device) *Session {
	return &Session{
		Device:        d,
		ID:            uuid.New().String(),
		ReadyInterval: DefaultReadyInterval,
		BusyInterval:  DefaultBusyInterval,
		abortCh:       make(chan struct{}),
	}
}

func (s *Session) emit(kind EventKind, detail string) {
	if s.OnEvent == nil {
		return
	}
	s.OnEvent(Event{SessionID: s.ID, Kind: kind, Detail: detail})
}

func (s *Session) emitStatus(status uint16) {
	if s.OnEvent == nil {
		return
	}
	s.OnEvent(Event{SessionID: s.ID, Kind: EventStatus, Status: status})
}

// SetFootswitchCallback registers fn to be invoked the next time a
// footswitch press is observed. The slot is cleared when it fires; call
// this again to re-arm.
func (s *Session) SetFootswitchCallback(fn func()) {
	s.fsMu.Lock()
	defer s.fsMu.Unlock()
	s.footswitch = fn
}

func (s *Session) fireFootswitch() {
	s.fsMu.Lock()
	fn := s.footswitch
	s.footswitch = nil
	s.fsMu.Unlock()
	s.emit(EventFootswitch, "")
	if fn != nil {
		fn()
	}
}

// Abort requests cancellation of any in-flight Execute/Loop call. It is
// idempotent and safe to call with no job running — a fresh abort
// channel is installed at the start of the next Execute, so a stale
// Abort never affects a later job.
func (s *Session) Abort() {
	s.abortMu.Lock()
	defer s.abortMu.Unlock()
	select {
	case <-s.abortCh:
	default:
		close(s.abortCh)
	}
}

func (s *Session) resetAbort() chan struct{} {
	s.abortMu.Lock()
	defer s.abortMu.Unlock()
	ch := make(chan struct{})
	s.abortCh = ch
	return ch
}

// pollUntil issues ReadPort until satisfied(status) is true, dispatching
// the footswitch callback whenever bit 15 is observed set. It returns
// errAbortSignal if abortCh fires, or a wrapped galvoerr.ErrCancelled if
// ctx is cancelled.
func (s *Session) pollUntil(ctx context.Context, abortCh <-chan struct{}, interval time.Duration, satisfied func(status uint16) bool) error {
	for {
		select {
		case <-abortCh:
			return errAbortSignal
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", galvoerr.ErrCancelled, ctx.Err())
		default:
		}

		reply, err := s.Device.ReadPort(ctx)
		if err != nil {
			return err
		}
		s.emitStatus(reply.Status)
		if reply.R0&protocol.PortFootswitch != 0 {
			s.fireFootswitch()
		}
		if satisfied(reply.Status) {
			return nil
		}

		select {
		case <-abortCh:
			return errAbortSignal
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", galvoerr.ErrCancelled, ctx.Err())
		case <-time.After(interval):
		}
	}
}

func (s *Session) waitReady(ctx context.Context, abortCh <-chan struct{}) error {
	return s.pollUntil(ctx, abortCh, s.ReadyInterval, func(status uint16) bool {
		return status&protocol.StatusReady != 0
	})
}

func (s *Session) waitWhileBusy(ctx context.Context, abortCh <-chan struct{}) error {
	return s.pollUntil(ctx, abortCh, s.BusyInterval, func(status uint16) bool {
		return status&protocol.StatusBusy == 0
	})
}

// RunOnce executes cl exactly once.
func (s *Session) RunOnce(ctx context.Context, cl *builder.CommandList) (Result, error) {
	return s.execute(ctx, cl, 1)
}

// Loop executes cl repeatedly until Abort is called.
func (s *Session) Loop(ctx context.Context, cl *builder.CommandList) (Result, error) {
	return s.execute(ctx, cl, -1)
}

// Execute runs cl loopCount times (loopCount < 0 means "until aborted").
func (s *Session) Execute(ctx context.Context, cl *builder.CommandList, loopCount int) (Result, error) {
	return s.execute(ctx, cl, loopCount)
}

func (s *Session) execute(ctx context.Context, cl *builder.CommandList, loopCount int) (Result, error) {
	s.devMu.Lock()
	defer s.devMu.Unlock()

	abortCh := s.resetAbort()
	s.emit(EventJobStart, "")

	if err := s.waitWhileBusy(ctx, abortCh); err != nil {
		return s.handlePollError(ctx, err)
	}
	if err := s.waitReady(ctx, abortCh); err != nil {
		return s.handlePollError(ctx, err)
	}
	if _, err := s.Device.WritePort(ctx, 0x0001, 0, 0); err != nil {
		return ResultCompleted, err
	}

	for iter := 0; loopCount < 0 || iter < loopCount; iter++ {
		select {
		case <-abortCh:
			return s.abortSequence(ctx)
		default:
		}

		if cl.Tick != nil {
			cl.Tick(cl, iter)
		}

		if _, err := s.Device.ResetList(ctx); err != nil {
			return ResultCompleted, err
		}

		for _, packet := range cl.PacketGenerator() {
			select {
			case <-abortCh:
				return s.abortSequence(ctx)
			default:
			}
			if err := s.waitReady(ctx, abortCh); err != nil {
				return s.handlePollError(ctx, err)
			}
			if err := s.Device.Transport.WriteBlock(ctx, packet); err != nil {
				return ResultCompleted, err
			}
			if _, err := s.Device.SetEndOfList(ctx, 0x8001, 0x8001); err != nil {
				return ResultCompleted, err
			}
			if _, err := s.Device.ExecuteList(ctx); err != nil {
				return ResultCompleted, err
			}
		}

		if _, err := s.Device.SetEndOfList(ctx, 0, 0); err != nil {
			return ResultCompleted, err
		}
		if _, err := s.Device.SetControlMode(ctx, 1, 0); err != nil {
			return ResultCompleted, err
		}
		if err := s.waitWhileBusy(ctx, abortCh); err != nil {
			return s.handlePollError(ctx, err)
		}
	}

	s.emit(EventJobFinish, ResultCompleted.String())
	return ResultCompleted, nil
}

func (s *Session) handlePollError(ctx context.Context, err error) (Result, error) {
	if errors.Is(err, errAbortSignal) {
		return s.abortSequence(ctx)
	}
	s.emit(EventError, err.Error())
	return ResultCompleted, err
}

// abortSequence resets the on-device list, pushes one
// ReadyMark+NoOp-padded packet, ends the list, executes it (so the
// board's list pointer is in a known state), waits for it to go idle,
// and recenters the galvo.
func (s *Session) abortSequence(ctx context.Context) (Result, error) {
	if _, err := s.Device.ResetList(ctx); err != nil {
		return ResultCompleted, err
	}
	if err := s.Device.Transport.WriteBlock(ctx, abortChunk()); err != nil {
		return ResultCompleted, err
	}
	if _, err := s.Device.SetEndOfList(ctx, 0, 0); err != nil {
		return ResultCompleted, err
	}
	if _, err := s.Device.ExecuteList(ctx); err != nil {
		return ResultCompleted, err
	}
	// Abort's own busy-wait does not observe the (already-fired) abort
	// channel — it runs to completion so the device is left idle.
	if err := s.pollUntil(ctx, neverClosed, s.BusyInterval, func(status uint16) bool {
		return status&protocol.StatusBusy == 0
	}); err != nil {
		return ResultCompleted, err
	}
	if _, err := s.Device.GotoXY(ctx, 0x8000, 0x8000); err != nil {
		return ResultCompleted, err
	}
	s.emit(EventAbort, "")
	return ResultAborted, nil
}

var neverClosed = make(chan struct{})
