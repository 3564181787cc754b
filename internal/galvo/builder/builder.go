// Package builder implements the stateful command-list producer: a
// minimal goto/light/mark API that higher layers drive without knowing
// opcodes, with automatic setting dedup and distance back-fill.
// Grounded on
// original_source/balor/MSBF.py's CommandList class (ready/goto/mark/
// set_* methods, cached-setting dedup) and BalorJob.py's Job.laser_control.
package builder

import (
	"fmt"
	"math"

	"github.com/meerk40t/galvo/internal/galvo/listops"
	"github.com/meerk40t/galvo/internal/galvoerr"
)

// GalvoCenter is the default last-position used before any init(x,y)
// call: the mechanical center of the galvo's coordinate space.
const GalvoCenter = 0x8000

// Calibrator maps host-space millimeters to galvo-space coordinates. The
// internal/galvo/calibration package implements this; builder only
// depends on the interface so it never imports calibration directly.
type Calibrator interface {
	Interpolate(xmm, ymm float64) (x, y uint16, err error)
}

// identityCalibrator rounds mm values directly into the u16 space, like
// calibration's "disabled" mode; unlike that mode, which clamps, a value
// outside 0..0xFFFF is an ErrParameterOverflow.
type identityCalibrator struct{}

func (identityCalibrator) Interpolate(xmm, ymm float64) (uint16, uint16, error) {
	x, err := toU16(math.Round(xmm))
	if err != nil {
		return 0, 0, err
	}
	y, err := toU16(math.Round(ymm))
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// CommandList is a stateful, ordered sequence of list ops plus the cached
// setting state used to deduplicate set_* calls.
type CommandList struct {
	ops []listops.Op

	calibration Calibrator

	// Tick is invoked by the execution engine between loop iterations,
	// for animated light jobs; nil by default.
	Tick func(cl *CommandList, iteration int)

	readyEmitted bool

	initX, initY uint16

	light           bool
	travelSpeed     *uint16
	cutSpeed        *uint16
	power           *uint16
	qswitchPeriod   *uint16
	laserOnDelay    *uint16
	laserOffDelay   *uint16
	polygonDelay    *uint16
	markEndDelay    *uint16
	laserControlOn  *bool
	jumpCalibration *uint16
}

// New constructs an empty CommandList. cal may be nil, in which case
// coordinates are rounded directly with no field-distortion correction
// (calibration's disabled mode).
func New(cal Calibrator) *CommandList {
	if cal == nil {
		cal = identityCalibrator{}
	}
	return &CommandList{
		calibration: cal,
		initX:       GalvoCenter,
		initY:       GalvoCenter,
	}
}

// Ops returns a copy of the list's ops in emission order. The slice is
// owned by the caller; changing it does not affect the builder.
func (c *CommandList) Ops() []listops.Op {
	return append([]listops.Op(nil), c.ops...)
}

func (c *CommandList) append(op listops.Op) {
	c.ops = append(c.ops, op)
}

// Ready idempotently emits a ReadyMark op; every setter and geometric
// operation calls this first.
func (c *CommandList) Ready() {
	if c.readyEmitted {
		return
	}
	c.readyEmitted = true
	c.append(listops.New(listops.KindReadyMark))
}

// Init overrides the starting position used for distance back-fill,
// without emitting any op — used when the caller knows the galvo's
// physical position from a prior job.
func (c *CommandList) Init(x, y uint16) {
	c.initX = x
	c.initY = y
}

func toU16(v float64) (uint16, error) {
	if v < 0 || v > 0xFFFF {
		return 0, fmt.Errorf("%w: value %v out of u16 range", galvoerr.ErrParameterOverflow, v)
	}
	return uint16(v), nil
}

// Numeric conversions, matching the board's documented fixed scale factors.

func speedToUnits(mmPerSec float64) (uint16, error) {
	return toU16(math.Round(mmPerSec / 2))
}

// powerToUnits truncates rather than rounds: 50% must map to 0x07FF,
// which only holds under truncation since 50*40.95 rounds up to 2048
// under ordinary half-away-from-zero rounding. Truncating toward zero
// matches the board's documented result.
func powerToUnits(percent float64) (uint16, error) {
	v := percent * 40.95
	if v < 0 || v > 0xFFFF {
		return 0, fmt.Errorf("%w: power %v%% out of range", galvoerr.ErrParameterOverflow, percent)
	}
	return uint16(v), nil
}

func frequencyToQSwitchPeriod(khz float64) (uint16, error) {
	if khz <= 0 {
		return 0, fmt.Errorf("%w: frequency must be positive, got %v kHz", galvoerr.ErrParameterOverflow, khz)
	}
	periodUnits := math.Round(1 / (khz * 1e3) / 50e-9)
	return toU16(periodUnits)
}

// Setters. Each follows the dedup contract: if the requested value equals
// the last emitted one, no opcode is appended.

func (c *CommandList) SetTravelSpeed(mmPerSec float64) error {
	units, err := speedToUnits(mmPerSec)
	if err != nil {
		return err
	}
	if c.travelSpeed != nil && *c.travelSpeed == units {
		return nil
	}
	c.Ready()
	c.travelSpeed = &units
	c.append(listops.New(listops.KindJumpSpeed, units))
	return nil
}

func (c *CommandList) SetCutSpeed(mmPerSec float64) error {
	units, err := speedToUnits(mmPerSec)
	if err != nil {
		return err
	}
	if c.cutSpeed != nil && *c.cutSpeed == units {
		return nil
	}
	c.Ready()
	c.cutSpeed = &units
	c.append(listops.New(listops.KindMarkSpeed, units))
	return nil
}

func (c *CommandList) SetPower(percent float64) error {
	units, err := powerToUnits(percent)
	if err != nil {
		return err
	}
	if c.power != nil && *c.power == units {
		return nil
	}
	c.Ready()
	c.power = &units
	c.append(listops.New(listops.KindMarkPowerRatio, units))
	return nil
}

func (c *CommandList) SetFrequency(khz float64) error {
	units, err := frequencyToQSwitchPeriod(khz)
	if err != nil {
		return err
	}
	if c.qswitchPeriod != nil && *c.qswitchPeriod == units {
		return nil
	}
	c.Ready()
	c.qswitchPeriod = &units
	c.append(listops.New(listops.KindQSwitchPeriod, units))
	return nil
}

// SetLaserOnDelay emits the on-time compensation. The second param
// mirrors the fixed 0x8000 companion value seen in
// original_source/balor/MSBF.py's set_laser_on_delay(*args) call sites.
func (c *CommandList) SetLaserOnDelay(delayUs uint16) {
	if c.laserOnDelay != nil && *c.laserOnDelay == delayUs {
		return
	}
	c.Ready()
	c.laserOnDelay = &delayUs
	c.append(listops.New(listops.KindLaserOnDelay, delayUs, 0x8000))
}

func (c *CommandList) SetLaserOffDelay(delayUs uint16) {
	if c.laserOffDelay != nil && *c.laserOffDelay == delayUs {
		return
	}
	c.Ready()
	c.laserOffDelay = &delayUs
	c.append(listops.New(listops.KindLaserOffDelay, delayUs))
}

func (c *CommandList) SetPolygonDelay(delay uint16) {
	if c.polygonDelay != nil && *c.polygonDelay == delay {
		return
	}
	c.Ready()
	c.polygonDelay = &delay
	c.append(listops.New(listops.KindPolygonDelay, delay))
}

func (c *CommandList) SetMarkEndDelay(delay uint16) {
	if c.markEndDelay != nil && *c.markEndDelay == delay {
		return
	}
	c.Ready()
	c.markEndDelay = &delay
	c.append(listops.New(listops.KindMarkEndDelay, delay))
}

// SetLight turns the aim LED on or off. Weakly implemented upstream
// (original_source/balor/MSBF.py:set_light is flagged "WEAK
// IMPLEMENTATION" and emits nothing but ready()); this mirrors that: it
// only tracks state for Light()'s auto-enable and emits no op of its own
// beyond the Ready() prelude. Real LED control happens via WritePort at
// the engine/protocol layer.
func (c *CommandList) SetLight(on bool) {
	if c.light == on {
		return
	}
	c.Ready()
	c.light = on
}

// JumpCalibration emits the AltTravel-coded calibration-mode op
// (0x800D) used to select a jump-calibration profile ahead of travel
// moves. code defaults to 0x0008 upstream; callers here always pass it
// explicitly.
func (c *CommandList) JumpCalibration(code uint16) {
	if c.jumpCalibration != nil && *c.jumpCalibration == code {
		return
	}
	c.Ready()
	c.jumpCalibration = &code
	c.append(listops.New(listops.KindAltTravel, code))
}

// LaserControl gates the laser on/off, emitting the paired MarkEndDelay
// transition value alongside LaserControl, per
// original_source/balor/MSBF.py:CommandList.laser_control. The delay op
// precedes LaserControl on both edges.
func (c *CommandList) LaserControl(on bool) {
	if c.laserControlOn != nil && *c.laserControlOn == on {
		return
	}
	c.Ready()
	c.laserControlOn = &on
	if on {
		c.SetMarkEndDelay(0x0320)
		c.append(listops.New(listops.KindLaserControl, 1))
	} else {
		c.SetMarkEndDelay(0x001E)
		c.append(listops.New(listops.KindLaserControl, 0))
	}
}

// Goto travels (laser off) to (xmm, ymm). If light is true, SetLight(true)
// records the aim-LED state first (no op is emitted for it); if calCode
// is non-nil, JumpCalibration(*calCode) is emitted (deduped) before the
// travel op.
func (c *CommandList) Goto(xmm, ymm float64, light bool, calCode *uint16) error {
	if c.travelSpeed == nil {
		return fmt.Errorf("%w: travel speed must be set before goto", galvoerr.ErrMissingSetting)
	}
	c.Ready()
	if light {
		c.SetLight(true)
	}
	if calCode != nil {
		c.JumpCalibration(*calCode)
	}
	x, y, err := c.calibration.Interpolate(xmm, ymm)
	if err != nil {
		return err
	}
	op := listops.New(listops.KindJumpTo)
	op.SetXY(x, y)
	c.append(op)
	return nil
}

// Light is Goto with light set to true.
func (c *CommandList) Light(xmm, ymm float64) error {
	return c.Goto(xmm, ymm, true, nil)
}

// Mark cuts (laser on) to (xmm, ymm). All of power, frequency, cut speed,
// and the on/off/polygon delays must already be set.
func (c *CommandList) Mark(xmm, ymm float64) error {
	switch {
	case c.qswitchPeriod == nil:
		return fmt.Errorf("%w: frequency must be set before mark", galvoerr.ErrMissingSetting)
	case c.power == nil:
		return fmt.Errorf("%w: power must be set before mark", galvoerr.ErrMissingSetting)
	case c.cutSpeed == nil:
		return fmt.Errorf("%w: cut speed must be set before mark", galvoerr.ErrMissingSetting)
	case c.laserOnDelay == nil:
		return fmt.Errorf("%w: laser-on delay must be set before mark", galvoerr.ErrMissingSetting)
	case c.laserOffDelay == nil:
		return fmt.Errorf("%w: laser-off delay must be set before mark", galvoerr.ErrMissingSetting)
	case c.polygonDelay == nil:
		return fmt.Errorf("%w: polygon delay must be set before mark", galvoerr.ErrMissingSetting)
	}
	c.Ready()
	x, y, err := c.calibration.Interpolate(xmm, ymm)
	if err != nil {
		return err
	}
	op := listops.New(listops.KindMarkTo)
	op.SetXY(x, y)
	c.append(op)
	return nil
}

// DrawLine subdivides the segment (x0,y0)-(x1,y1) into enough vertices
// that each sub-segment is approximately segSizeMm long (at least two
// segments), emitting one op of kind per vertex after the first.
func (c *CommandList) DrawLine(x0, y0, x1, y1, segSizeMm float64, kind listops.Kind) error {
	length := math.Hypot(x1-x0, y1-y0)
	segments := int(math.Round(length / segSizeMm))
	if segments < 2 {
		segments = 2
	}
	emit := func(x, y float64) error {
		switch kind {
		case listops.KindMarkTo:
			return c.Mark(x, y)
		default:
			return c.Goto(x, y, false, nil)
		}
	}
	for i := 1; i <= segments; i++ {
		t := float64(i) / float64(segments)
		x := x0 + (x1-x0)*t
		y := y0 + (y1-y0)*t
		if err := emit(x, y); err != nil {
			return err
		}
	}
	return nil
}

// Duplicate repeats the already-appended half-open range [begin, end)
// repeats more times, appending the copies at the end of the list. It
// does not re-run setting dedup or validation — it is a structural copy
// of already-built ops.
func (c *CommandList) Duplicate(begin, end, repeats int) error {
	if begin < 0 || end > len(c.ops) || begin > end {
		return fmt.Errorf("%w: duplicate range [%d,%d) invalid for %d ops", galvoerr.ErrDataValidity, begin, end, len(c.ops))
	}
	chunk := append([]listops.Op(nil), c.ops[begin:end]...)
	for i := 0; i < repeats; i++ {
		c.ops = append(c.ops, append([]listops.Op(nil), chunk...)...)
	}
	return nil
}
