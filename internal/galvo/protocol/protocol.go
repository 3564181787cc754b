// Package protocol implements the board's 12-byte command / 8-byte reply
// control plane: typed wrappers for every opcode the core uses, the
// strict device initialization sequence, and the ready/busy status-wait
// primitive. Grounded on original_source/balor/sender.py's Sender class
// (opcode constants, _init_machine, wait functions).
package protocol

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/meerk40t/galvo/internal/galvo/transport"
	"github.com/meerk40t/galvo/internal/galvoerr"
)

// Opcode values for the control-plane commands used by the core.
const (
	OpDisableLaser         = 0x02
	OpResetOrPoint         = 0x03
	OpEnableLaser          = 0x04
	OpExecuteList          = 0x05
	OpSetPwmPulseWidth     = 0x06
	OpGetVersion           = 0x07
	OpGetSerialNumber      = 0x09
	OpGetListStatus        = 0x0A
	OpGetXY                = 0x0C
	OpGotoXY               = 0x0D
	OpLaserSignalOff       = 0x0E
	OpLaserSignalOn        = 0x0F
	OpResetList            = 0x12
	OpWriteCorrectionTable = 0x15
	OpSetControlMode       = 0x16
	OpSetDelayMode         = 0x17
	OpSetEndOfList         = 0x19
	OpSetFirstPulseKiller  = 0x1A
	OpSetLaserMode         = 0x1B
	OpSetTiming            = 0x1C
	OpSetStandby           = 0x1D
	OpSetPwmHalfPeriod     = 0x1E
	OpWritePort            = 0x21
	OpWriteAnalogPort1     = 0x22
	OpReadPort             = 0x25
	OpSetFpkParam2         = 0x2E
	OpSetFlyRes            = 0x32
	OpFiberOpenMO          = 0x33
	OpFiberGetStMOAP       = 0x34
	OpEnableZ              = 0x3A
	OpIsLiteVersion        = 0x40
)

// Status word bit masks.
const (
	StatusReady = 0x20
	StatusBusy  = 0x04

	// PortFootswitch is bit 15 of the ReadPort register.
	PortFootswitch = 0x8000
)

// Reply is the parsed 8-byte status reply: {_, _, r0, r1, status}.
type Reply struct {
	R0     uint16
	R1     uint16
	Status uint16
}

// Device is the command/reply control plane for one opened board. It owns
// no abort flag or footswitch registration — that session-level state
// lives in internal/galvo/engine; Device only knows how to speak the wire
// protocol and latch the most recent status word.
type Device struct {
	Transport transport.Transport

	LastStatus uint16
}

// New wraps a transport in a protocol Device.
func New(t transport.Transport) *Device {
	return &Device{Transport: t}
}

func encodeFrame(op uint16, params ...uint16) [12]byte {
	var frame [12]byte
	binary.LittleEndian.PutUint16(frame[0:2], op)
	for i := 0; i < 5 && i < len(params); i++ {
		binary.LittleEndian.PutUint16(frame[2+2*i:4+2*i], params[i])
	}
	return frame
}

func decodeReply(b [8]byte) Reply {
	return Reply{
		R0:     binary.LittleEndian.Uint16(b[2:4]),
		R1:     binary.LittleEndian.Uint16(b[4:6]),
		Status: binary.LittleEndian.Uint16(b[6:8]),
	}
}

// Command sends a 12-byte frame for op with up to 5 params and returns the
// parsed reply, latching its status word.
func (d *Device) Command(ctx context.Context, op uint16, params ...uint16) (Reply, error) {
	frame := encodeFrame(op, params...)
	if err := d.Transport.WriteCommand(ctx, frame); err != nil {
		return Reply{}, err
	}
	raw, err := d.Transport.ReadReply(ctx)
	if err != nil {
		return Reply{}, err
	}
	reply := decodeReply(raw)
	d.LastStatus = reply.Status
	return reply, nil
}

// Typed wrappers, one per opcode.

func (d *Device) DisableLaser(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpDisableLaser)
}

func (d *Device) Reset(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpResetOrPoint)
}

func (d *Device) EnableLaser(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpEnableLaser)
}

func (d *Device) ExecuteList(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpExecuteList)
}

func (d *Device) SetPwmPulseWidth(ctx context.Context, stack, value uint16) (Reply, error) {
	return d.Command(ctx, OpSetPwmPulseWidth, stack, value)
}

func (d *Device) GetVersion(ctx context.Context, reg uint16) (Reply, error) {
	return d.Command(ctx, OpGetVersion, reg)
}

func (d *Device) GetSerialNumber(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpGetSerialNumber)
}

func (d *Device) GetListStatus(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpGetListStatus)
}

func (d *Device) GetXY(ctx context.Context) (x, y uint16, err error) {
	reply, err := d.Command(ctx, OpGetXY)
	if err != nil {
		return 0, 0, err
	}
	return reply.R0, reply.R1, nil
}

func (d *Device) GotoXY(ctx context.Context, x, y uint16) (Reply, error) {
	return d.Command(ctx, OpGotoXY, x, y)
}

func (d *Device) LaserSignalOff(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpLaserSignalOff)
}

func (d *Device) LaserSignalOn(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpLaserSignalOn)
}

func (d *Device) ResetList(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpResetList)
}

func (d *Device) WriteCorrectionTable(ctx context.Context, flag uint16) (Reply, error) {
	return d.Command(ctx, OpWriteCorrectionTable, flag)
}

func (d *Device) SetControlMode(ctx context.Context, s, v uint16) (Reply, error) {
	return d.Command(ctx, OpSetControlMode, s, v)
}

func (d *Device) SetDelayMode(ctx context.Context, s, v uint16) (Reply, error) {
	return d.Command(ctx, OpSetDelayMode, s, v)
}

func (d *Device) SetEndOfList(ctx context.Context, a, b uint16) (Reply, error) {
	return d.Command(ctx, OpSetEndOfList, a, b)
}

func (d *Device) SetFirstPulseKiller(ctx context.Context, s, v uint16) (Reply, error) {
	return d.Command(ctx, OpSetFirstPulseKiller, s, v)
}

func (d *Device) SetLaserMode(ctx context.Context, s, v uint16) (Reply, error) {
	return d.Command(ctx, OpSetLaserMode, s, v)
}

func (d *Device) SetTiming(ctx context.Context, s, v uint16) (Reply, error) {
	return d.Command(ctx, OpSetTiming, s, v)
}

func (d *Device) SetStandby(ctx context.Context, v1, v2, v3, v uint16) (Reply, error) {
	return d.Command(ctx, OpSetStandby, v1, v2, v3, v)
}

func (d *Device) SetPwmHalfPeriod(ctx context.Context, s, v uint16) (Reply, error) {
	return d.Command(ctx, OpSetPwmHalfPeriod, s, v)
}

// WritePort is a deliberately generic call: the board overloads it for
// both "aim LED on" and "arm execution", so callers choose the bit
// pattern rather than the builder baking in a magic literal.
func (d *Device) WritePort(ctx context.Context, v, s, v2 uint16) (Reply, error) {
	return d.Command(ctx, OpWritePort, v, s, v2)
}

func (d *Device) WriteAnalogPort1(ctx context.Context, s, v uint16) (Reply, error) {
	return d.Command(ctx, OpWriteAnalogPort1, s, v)
}

// ReadPort returns the raw port reply; bit 15 of R0 is the footswitch.
func (d *Device) ReadPort(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpReadPort)
}

func (d *Device) SetFpkParam2(ctx context.Context, v1, v2, v3, s uint16) (Reply, error) {
	return d.Command(ctx, OpSetFpkParam2, v1, v2, v3, s)
}

func (d *Device) SetFlyRes(ctx context.Context, v1, v2, v3, v4 uint16) (Reply, error) {
	return d.Command(ctx, OpSetFlyRes, v1, v2, v3, v4)
}

func (d *Device) FiberOpenMO(ctx context.Context, s, v uint16) (Reply, error) {
	return d.Command(ctx, OpFiberOpenMO, s, v)
}

func (d *Device) FiberGetStMOAP(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpFiberGetStMOAP)
}

func (d *Device) EnableZ(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpEnableZ)
}

func (d *Device) IsLiteVersion(ctx context.Context) (Reply, error) {
	return d.Command(ctx, OpIsLiteVersion, 1)
}

// WriteCorrectionEntry writes one 5-byte correction-table entry. The
// board expects it as a 12-byte frame whose first two bytes are the
// correction opcode and whose payload occupies the next five bytes;
// no reply is read for these writes.
func (d *Device) WriteCorrectionEntry(ctx context.Context, entry [5]byte) error {
	var frame [12]byte
	binary.LittleEndian.PutUint16(frame[0:2], OpWriteCorrectionTable)
	copy(frame[2:7], entry[:])
	return d.Transport.WriteCommand(ctx, frame)
}

// WaitStatus repeatedly issues queryOp until the latched status word
// satisfies (status & lowMask) == 0 && (status & highMask) != 0, sleeping
// interval between polls. It returns galvoerr.ErrCancelled if ctx is
// cancelled before the condition is met.
func (d *Device) WaitStatus(ctx context.Context, queryOp uint16, highMask, lowMask uint16, interval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for status", galvoerr.ErrCancelled)
		default:
		}
		reply, err := d.Command(ctx, queryOp)
		if err != nil {
			return err
		}
		status := reply.Status
		if status&lowMask == 0 && status&highMask != 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for status", galvoerr.ErrCancelled)
		case <-time.After(interval):
		}
	}
}

// WaitReady blocks until the device reports ready (status bit 0x20).
func (d *Device) WaitReady(ctx context.Context, interval time.Duration) error {
	return d.WaitStatus(ctx, OpGetListStatus, StatusReady, 0, interval)
}

// WaitWhileBusy polls ReadPort until the busy bit (0x04) clears. It is a
// distinct loop from WaitStatus because "wait while busy" has no
// high-bit condition to pair with the low-bit clear, unlike
// WaitReady/WaitStatus's (low==0 && high!=0) shape.
func (d *Device) WaitWhileBusy(ctx context.Context, interval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting while busy", galvoerr.ErrCancelled)
		default:
		}
		reply, err := d.Command(ctx, OpReadPort)
		if err != nil {
			return err
		}
		if reply.Status&StatusBusy == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting while busy", galvoerr.ErrCancelled)
		case <-time.After(interval):
		}
	}
}
