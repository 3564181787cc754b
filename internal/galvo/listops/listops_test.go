package listops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKinds = []Kind{
	KindJumpTo, KindNoOp, KindMarkEndDelay, KindMarkTo, KindJumpSpeed,
	KindLaserOnDelay, KindLaserOffDelay, KindMarkSpeed, KindAltTravel,
	KindPolygonDelay, KindMarkPowerRatio, KindQSwitchPeriod, KindLaserControl,
	KindReadyMark,
	KindMarkFrequency, KindMarkPulseWidth, KindFlyEnable, KindDirectLaserSwitch,
	KindFlyDelay, KindSetCo2FPK, KindFlyWaitInput, KindChangeMarkCount,
	KindUnnamed8024, KindUnnamed8025, KindUnnamed8026, KindUnnamed8028, KindUnnamed8029,
}

func TestRoundTripAllKinds(t *testing.T) {
	for _, k := range allKinds {
		op := New(k, 0x1111, 0x2222, 0x3333, 0x4444, 0x5555)
		buf := op.Serialize()
		require.Len(t, buf, 12)

		decoded, err := Decode(buf[:])
		require.NoError(t, err)
		assert.Equal(t, op.Kind, decoded.Kind)
		assert.Equal(t, op.Params, decoded.Params)
		assert.Equal(t, buf, decoded.Serialize())
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeUnknownOpcodePreservesRaw(t *testing.T) {
	raw := [12]byte{0xAB, 0xCD, 1, 0, 2, 0, 3, 0, 4, 0, 5, 0}
	op, err := Decode(raw[:])
	require.NoError(t, err)
	assert.Equal(t, Kind(0xCDAB), op.Kind)
	assert.Equal(t, raw, op.Serialize())
}

func TestHasXYAndSetXY(t *testing.T) {
	op := New(KindJumpTo)
	assert.True(t, op.HasXY())
	op.SetXY(100, 200)
	x, y := op.XY()
	assert.Equal(t, uint16(100), x)
	assert.Equal(t, uint16(200), y)

	noop := New(KindNoOp)
	assert.False(t, noop.HasXY())
	noop.SetXY(1, 2)
	x, y = noop.XY()
	assert.Equal(t, uint16(0), x)
	assert.Equal(t, uint16(0), y)
}

func TestHasDistanceAndSetDistance(t *testing.T) {
	op := New(KindMarkTo)
	require.True(t, op.HasDistance())
	op.SetDistance(42)
	assert.Equal(t, uint16(42), op.Distance())

	speed := New(KindMarkSpeed)
	assert.False(t, speed.HasDistance())
	speed.SetDistance(99)
	assert.Equal(t, uint16(0), speed.Distance())
}

func TestSerializeLittleEndian(t *testing.T) {
	op := New(KindJumpTo, 0x0034, 0x0012)
	buf := op.Serialize()
	assert.Equal(t, byte(0x01), buf[0])
	assert.Equal(t, byte(0x80), buf[1])
	assert.Equal(t, byte(0x34), buf[2])
	assert.Equal(t, byte(0x00), buf[3])
	assert.Equal(t, byte(0x12), buf[4])
	assert.Equal(t, byte(0x00), buf[5])
}

func TestTextDecodeKnownOpcodes(t *testing.T) {
	cases := []struct {
		op       Op
		contains string
	}{
		{New(KindNoOp), "No operation"},
		{New(KindMarkEndDelay, 100), "1000 microseconds"},
		{New(KindLaserControl, 1), "turn ON"},
		{New(KindLaserControl, 0), "turn OFF"},
		{New(KindReadyMark), "Begin job"},
	}
	for _, c := range cases {
		assert.Contains(t, c.op.TextDecode(1), c.contains)
	}
}

func TestTextDecodeStubOpcode(t *testing.T) {
	op := New(KindMarkFrequency, 1, 2, 3, 4)
	text := op.TextDecode(1)
	assert.Contains(t, text, "mark frequency")
}

func TestTextDecodeTrulyUnknownOpcode(t *testing.T) {
	op := Op{Kind: 0x9999}
	assert.Contains(t, op.TextDecode(1), "Unknown opcode")
}

func TestTextDebugIncludesTracking(t *testing.T) {
	op := New(KindNoOp)
	op.Tracking = "job-1"
	text := op.TextDebug(true, 5)
	assert.Contains(t, text, "job-1")
}

func TestNewPanicsOnTooManyParams(t *testing.T) {
	assert.Panics(t, func() {
		New(KindNoOp, 1, 2, 3, 4, 5, 6)
	})
}
