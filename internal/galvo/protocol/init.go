package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/meerk40t/galvo/internal/config"
	"github.com/meerk40t/galvo/internal/galvoerr"
)

// CorrectionTableEntries is the fixed size of the 65x65 correction grid.
const CorrectionTableEntries = 4225

// Identity holds the values Init queries from the board before touching
// any configuration state.
type Identity struct {
	SerialNumber    uint32
	Version         uint16
	SourceCondition uint16
}

// Sleep is overridable so tests can run the init sequence without paying
// its real settle delay.
var Sleep = time.Sleep

// Init runs the board's strict device-initialization order.
// correctionTable must have exactly CorrectionTableEntries rows (pass a
// slice of zero entries for an identity table — "a zero table is
// valid").
func Init(ctx context.Context, d *Device, cfg *config.InitConfig, correctionTable [][5]byte) (Identity, error) {
	if cfg == nil {
		cfg = config.EmptyInitConfig()
	}
	if len(correctionTable) != CorrectionTableEntries {
		return Identity{}, fmt.Errorf("%w: correction table has %d entries, want %d",
			galvoerr.ErrDataValidity, len(correctionTable), CorrectionTableEntries)
	}

	var id Identity

	// 1. Query serial, version, source condition.
	serialReply, err := d.GetSerialNumber(ctx)
	if err != nil {
		return id, err
	}
	id.SerialNumber = uint32(serialReply.R0) | uint32(serialReply.R1)<<16

	versionReply, err := d.GetVersion(ctx, 0)
	if err != nil {
		return id, err
	}
	id.Version = versionReply.R0

	conditionReply, err := d.FiberGetStMOAP(ctx)
	if err != nil {
		return id, err
	}
	id.SourceCondition = conditionReply.Status

	// 2. Reset.
	if _, err := d.Reset(ctx); err != nil {
		return id, err
	}

	// 3. Correction table: one WriteCorrectionTable(1) then exactly
	// CorrectionTableEntries entry writes.
	if _, err := d.WriteCorrectionTable(ctx, 1); err != nil {
		return id, err
	}
	for _, entry := range correctionTable {
		if err := d.WriteCorrectionEntry(ctx, entry); err != nil {
			return id, err
		}
	}

	// 4. Laser/timing/standby/killer/pwm setup.
	if _, err := d.EnableLaser(ctx); err != nil {
		return id, err
	}
	if _, err := d.SetControlMode(ctx, cfg.GetControlMode(), 0); err != nil {
		return id, err
	}
	if _, err := d.SetLaserMode(ctx, cfg.GetLaserMode(), 0); err != nil {
		return id, err
	}
	if _, err := d.SetDelayMode(ctx, cfg.GetDelayMode(), 0); err != nil {
		return id, err
	}
	if _, err := d.SetTiming(ctx, cfg.GetTimingMode(), 0); err != nil {
		return id, err
	}
	if _, err := d.SetStandby(ctx, cfg.GetStandbyParam1(), cfg.GetStandbyParam2(), 0, 0); err != nil {
		return id, err
	}
	if _, err := d.SetFirstPulseKiller(ctx, cfg.GetFirstPulseKiller(), 0); err != nil {
		return id, err
	}
	if _, err := d.SetPwmHalfPeriod(ctx, cfg.GetPwmHalfPeriod(), 0); err != nil {
		return id, err
	}
	if _, err := d.SetPwmPulseWidth(ctx, cfg.GetPwmPulseWidth(), 0); err != nil {
		return id, err
	}

	// 5. FiberOpenMO(0,0), then a discarded GetVersion(0).
	if _, err := d.FiberOpenMO(ctx, 0, 0); err != nil {
		return id, err
	}
	if _, err := d.GetVersion(ctx, 0); err != nil {
		return id, err
	}

	// 6. Fpk2 / fly-res.
	fpk2 := cfg.GetFpk2()
	if _, err := d.SetFpkParam2(ctx, fpk2[0], fpk2[1], fpk2[2], fpk2[3]); err != nil {
		return id, err
	}
	flyRes := cfg.GetFlyRes()
	if _, err := d.SetFlyRes(ctx, flyRes[0], flyRes[1], flyRes[2], flyRes[3]); err != nil {
		return id, err
	}

	// 7. Port/analog setup.
	if _, err := d.WritePort(ctx, 0, 0, 0); err != nil {
		return id, err
	}
	if _, err := d.EnableZ(ctx); err != nil {
		return id, err
	}
	if _, err := d.WriteAnalogPort1(ctx, 0x07FF, 0); err != nil {
		return id, err
	}
	if _, err := d.EnableZ(ctx); err != nil {
		return id, err
	}

	// 8. Settling delay — a documented hardware quirk, not a race the
	// code is papering over.
	Sleep(cfg.GetSettleDelay())

	return id, nil
}
