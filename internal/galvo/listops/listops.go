// Package listops models the BJJCZ list-format opcode stream: the 12-byte
// records that make up a command list uploaded to the galvo board. It is
// grounded on original_source/balor/MSBF.py and balor/BalorJob.py, which
// implement each opcode as a small class carrying up to five 16-bit
// parameters and knowing which of those parameters (if any) are X, Y, angle,
// or distance. Here that hierarchy collapses into one Op struct plus a
// Kind enum, so unknown opcodes round-trip without needing a new type.
package listops

import (
	"fmt"

	"github.com/meerk40t/galvo/internal/galvoerr"
)

// PacketSizeBytes is the fixed size of one uploaded list packet: 256
// twelve-byte ops.
const PacketSizeBytes = 256 * 12

// Kind identifies which opcode an Op carries. Recognized kinds expose
// typed accessors (XY, Distance); Unknown and the preserved-stub kinds
// carry their five raw params verbatim.
type Kind uint16

// Opcode values, matching the board's little-endian 16-bit opcode field.
const (
	KindJumpTo         Kind = 0x8001 // travel (laser off): params y, x, angle, distance
	KindNoOp           Kind = 0x8002 // padding / end-of-list filler
	KindMarkEndDelay   Kind = 0x8004 // dwell of p0 * 10us
	KindMarkTo         Kind = 0x8005 // cut (laser on): params y, x, angle, distance
	KindJumpSpeed      Kind = 0x8006 // travel speed, p0 * 1.9656 mm/s
	KindLaserOnDelay   Kind = 0x8007 // on-time compensation, microseconds
	KindLaserOffDelay  Kind = 0x8008 // off-time compensation, microseconds
	KindMarkSpeed      Kind = 0x800C // mark (cut) speed
	KindAltTravel      Kind = 0x800D // vendor variant of travel
	KindPolygonDelay   Kind = 0x800F // corner dwell
	KindMarkPowerRatio Kind = 0x8012 // power, p0 / 40.96 percent
	KindQSwitchPeriod  Kind = 0x801B // p0 * 50ns
	KindLaserControl   Kind = 0x8021 // laser on/off gating
	KindReadyMark      Kind = 0x8051 // begin-job marker

	// Preserved stub opcodes: present in original_source as undocumented
	// commands. Round-tripped verbatim, never synthesized.
	KindMarkFrequency      Kind = 0x800A
	KindMarkPulseWidth     Kind = 0x800B
	KindFlyEnable          Kind = 0x801A
	KindDirectLaserSwitch  Kind = 0x801C
	KindFlyDelay           Kind = 0x801D
	KindSetCo2FPK          Kind = 0x801E
	KindFlyWaitInput       Kind = 0x801F
	KindChangeMarkCount    Kind = 0x8023
	KindUnnamed8024        Kind = 0x8024
	KindUnnamed8025        Kind = 0x8025
	KindUnnamed8026        Kind = 0x8026
	KindUnnamed8028        Kind = 0x8028
	KindUnnamed8029        Kind = 0x8029
)

// stubNames labels the preserved-but-unsynthesized opcodes for text_decode,
// matching the "sets command {opcode}=..." style of
// original_source/balor/MSBF.py:OpMarkFrequency.text_decode.
var stubNames = map[Kind]string{
	KindMarkFrequency:     "mark frequency",
	KindMarkPulseWidth:    "mark pulse width",
	KindFlyEnable:         "fly enable",
	KindDirectLaserSwitch: "direct laser switch",
	KindFlyDelay:          "fly delay",
	KindSetCo2FPK:         "set co2 fpk",
	KindFlyWaitInput:      "fly wait input",
	KindChangeMarkCount:   "change mark count",
}

// layout describes which param indices (if any) a Kind treats as X, Y, or
// distance, mirroring the x/y/d class attributes in
// original_source/balor/MSBF.py. -1 means "not present."
type layout struct {
	x, y, d int
}

var layouts = map[Kind]layout{
	KindJumpTo:    {x: 1, y: 0, d: 3},
	KindMarkTo:    {x: 1, y: 0, d: 3},
	KindAltTravel: {x: 1, y: 0, d: 3},
}

func layoutFor(k Kind) layout {
	if l, ok := layouts[k]; ok {
		return l
	}
	return layout{x: -1, y: -1, d: -1}
}

// Op is one 12-byte list record: a 16-bit opcode and five 16-bit
// parameters. Tracking is an optional debug tag carried alongside the op
// for the builder's text-decode tooling; it has no wire representation.
type Op struct {
	Kind     Kind
	Params   [5]uint16
	Tracking string
}

// New constructs an Op of the given kind with the supplied leading
// parameters; trailing parameters default to zero. It panics if more than
// five parameters are given — that is a programming error, not a runtime
// condition, since every call site in this module supplies a fixed count.
func New(kind Kind, params ...uint16) Op {
	if len(params) > 5 {
		panic(fmt.Sprintf("listops: %d params given, max 5", len(params)))
	}
	var op Op
	op.Kind = kind
	copy(op.Params[:], params)
	return op
}

// Opcode returns the numeric opcode.
func (op Op) Opcode() uint16 { return uint16(op.Kind) }

// HasXY reports whether this op carries X/Y coordinate params.
func (op Op) HasXY() bool {
	l := layoutFor(op.Kind)
	return l.x >= 0 && l.y >= 0
}

// XY returns the op's (x, y) pair. Only meaningful when HasXY is true.
func (op Op) XY() (x, y uint16) {
	l := layoutFor(op.Kind)
	if l.x < 0 || l.y < 0 {
		return 0, 0
	}
	return op.Params[l.x], op.Params[l.y]
}

// SetXY stores an (x, y) pair into the op's coordinate params. It is a
// no-op for kinds without coordinate params.
func (op *Op) SetXY(x, y uint16) {
	l := layoutFor(op.Kind)
	if l.x < 0 || l.y < 0 {
		return
	}
	op.Params[l.x] = x
	op.Params[l.y] = y
}

// HasDistance reports whether this op carries a distance param.
func (op Op) HasDistance() bool {
	return layoutFor(op.Kind).d >= 0
}

// Distance returns the op's distance param. Only meaningful when
// HasDistance is true.
func (op Op) Distance() uint16 {
	l := layoutFor(op.Kind)
	if l.d < 0 {
		return 0
	}
	return op.Params[l.d]
}

// SetDistance stores a distance value into the op's distance param. It is
// a no-op for kinds without a distance param.
func (op *Op) SetDistance(d uint16) {
	l := layoutFor(op.Kind)
	if l.d < 0 {
		return
	}
	op.Params[l.d] = d
}

// Serialize encodes the op as its 12-byte little-endian wire record.
func (op Op) Serialize() [12]byte {
	var buf [12]byte
	opcode := uint16(op.Kind)
	buf[0] = byte(opcode)
	buf[1] = byte(opcode >> 8)
	for i, p := range op.Params {
		buf[2+2*i] = byte(p)
		buf[2+2*i+1] = byte(p >> 8)
	}
	return buf
}

// Decode parses a 12-byte record into an Op. Unknown opcodes are
// preserved with their Kind set to the raw numeric value and all five
// params intact, so Serialize(Decode(b)) == b for any 12-byte input.
func Decode(b []byte) (Op, error) {
	if len(b) != 12 {
		return Op{}, fmt.Errorf("%w: listops: record must be 12 bytes, got %d", galvoerr.ErrDataValidity, len(b))
	}
	var op Op
	op.Kind = Kind(uint16(b[0]) | uint16(b[1])<<8)
	for i := 0; i < 5; i++ {
		lo := 2 + 2*i
		op.Params[i] = uint16(b[lo]) | uint16(b[lo+1])<<8
	}
	return op, nil
}

// TextDecode renders a human-readable description of the op, scaled for
// display. scale is the host-units-per-galvo-unit factor used to print
// coordinate/distance fields in host units; pass 1 to print raw values.
// Mirrors the per-opcode text_decode methods in
// original_source/balor/MSBF.py.
func (op Op) TextDecode(scale float64) string {
	switch op.Kind {
	case KindNoOp:
		return "No operation"
	case KindJumpTo:
		return travelText("Travel", op, scale)
	case KindAltTravel:
		return travelText("Alt travel", op, scale)
	case KindMarkTo:
		return travelText("Cut", op, scale)
	case KindMarkEndDelay:
		return fmt.Sprintf("Wait %d microseconds", uint32(op.Params[0])*10)
	case KindJumpSpeed:
		return fmt.Sprintf("Set travel speed = %.2f mm/s", float64(op.Params[0])*1.9656)
	case KindMarkSpeed:
		return fmt.Sprintf("Set cut speed = %.2f mm/s", float64(op.Params[0])*1.9656)
	case KindLaserOnDelay:
		return fmt.Sprintf("Set on time compensation = %d us", op.Params[0])
	case KindLaserOffDelay:
		return fmt.Sprintf("Set off time compensation = %d us", op.Params[0])
	case KindPolygonDelay:
		return fmt.Sprintf("Set polygon delay, param=%d", op.Params[0])
	case KindMarkPowerRatio:
		return fmt.Sprintf("Set laser power = %.1f%%", float64(op.Params[0])/40.960)
	case KindQSwitchPeriod:
		periodNs := uint32(op.Params[0]) * 50
		var khz float64
		if periodNs > 0 {
			khz = 1.0 / (float64(periodNs) * 1e-9) / 1000.0
		}
		return fmt.Sprintf("Set Q-switch period = %d ns (%.0f kHz)", periodNs, khz)
	case KindLaserControl:
		state := "OFF"
		if op.Params[0] != 0 {
			state = "ON"
		}
		return "Laser control - turn " + state
	case KindReadyMark:
		return "Begin job"
	default:
		if name, ok := stubNames[op.Kind]; ok {
			return fmt.Sprintf("sets command %s=%d, %d, %d, %d", name, op.Params[1], op.Params[2], op.Params[3], op.Params[4])
		}
		return fmt.Sprintf("Unknown opcode 0x%04X", uint16(op.Kind))
	}
}

func travelText(verb string, op Op, scale float64) string {
	x, y := op.XY()
	d := op.Distance()
	if scale == 1 {
		return fmt.Sprintf("%s to x=%d y=%d angle=%04X dist=%d", verb, x, y, op.Params[2], d)
	}
	return fmt.Sprintf("%s to x=%.3f y=%.3f angle=%04X dist=%.3f", verb, float64(x)*scale, float64(y)*scale, op.Params[2], float64(d)*scale)
}

// TextDebug renders the op with its opcode and raw params in hex,
// optionally prefixed with its tracking tag, mirroring
// original_source/balor/MSBF.py:Operation.text_debug.
func (op Op) TextDebug(showTracking bool, position int) string {
	prefix := ""
	if showTracking {
		prefix = fmt.Sprintf("%s:%03X ", op.Tracking, position)
	}
	return fmt.Sprintf("%s| %04X | %04X %04X %04X %04X %04X | %s", prefix, uint16(op.Kind),
		op.Params[0], op.Params[1], op.Params[2], op.Params[3], op.Params[4], op.TextDecode(1))
}
