package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meerk40t/galvo/internal/config"
	"github.com/meerk40t/galvo/internal/galvo/transport"
	"github.com/meerk40t/galvo/internal/galvoerr"
)

func zeroTable() [][5]byte {
	return make([][5]byte, CorrectionTableEntries)
}

func TestInitRejectsWrongTableSize(t *testing.T) {
	mt := transport.NewMockTransport()
	d := New(mt)
	_, err := Init(context.Background(), d, nil, make([][5]byte, 10))
	assert.ErrorIs(t, err, galvoerr.ErrDataValidity)
}

func TestInitRunsStrictOrderAndSleepsOnce(t *testing.T) {
	mt := transport.NewMockTransport()
	d := New(mt)

	var slept time.Duration
	orig := Sleep
	Sleep = func(d time.Duration) { slept = d }
	defer func() { Sleep = orig }()

	cfg := config.EmptyInitConfig()
	id, err := Init(context.Background(), d, cfg, zeroTable())
	require.NoError(t, err)
	_ = id

	// opcode order: serial, version, condition, reset, correction-table-enable,
	// 4225 entries, enable laser, control mode, laser mode, delay mode,
	// timing, standby, killer, half period, pulse width, fiberOpenMO,
	// version(discarded), fpk2, flyres, writeport, enablez, analog, enablez
	require.GreaterOrEqual(t, len(mt.Commands), 20+CorrectionTableEntries)

	opcodes := make([]byte, 0, len(mt.Commands))
	for _, c := range mt.Commands {
		opcodes = append(opcodes, c[0])
	}

	assert.Equal(t, byte(OpGetSerialNumber), opcodes[0])
	assert.Equal(t, byte(OpGetVersion), opcodes[1])
	assert.Equal(t, byte(OpFiberGetStMOAP), opcodes[2])
	assert.Equal(t, byte(OpResetOrPoint), opcodes[3])
	assert.Equal(t, byte(OpWriteCorrectionTable), opcodes[4])

	for i := 0; i < CorrectionTableEntries; i++ {
		assert.Equal(t, byte(OpWriteCorrectionTable), opcodes[5+i])
	}

	tail := opcodes[5+CorrectionTableEntries:]
	assert.Equal(t, []byte{
		OpEnableLaser, OpSetControlMode, OpSetLaserMode, OpSetDelayMode,
		OpSetTiming, OpSetStandby, OpSetFirstPulseKiller, OpSetPwmHalfPeriod,
		OpSetPwmPulseWidth, OpFiberOpenMO, OpGetVersion, OpSetFpkParam2,
		OpSetFlyRes, OpWritePort, OpEnableZ, OpWriteAnalogPort1, OpEnableZ,
	}, tail)

	assert.Equal(t, cfg.GetSettleDelay(), slept)
}

func TestInitUsesConfiguredDefaults(t *testing.T) {
	mt := transport.NewMockTransport()
	d := New(mt)
	orig := Sleep
	Sleep = func(time.Duration) {}
	defer func() { Sleep = orig }()

	_, err := Init(context.Background(), d, config.EmptyInitConfig(), zeroTable())
	require.NoError(t, err)

	var killer [12]byte
	for _, c := range mt.Commands {
		if c[0] == OpSetFirstPulseKiller {
			killer = c
		}
	}
	assert.Equal(t, uint16(200), uint16(killer[2])|uint16(killer[3])<<8)
}
