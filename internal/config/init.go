package config

import "time"

// InitConfig holds the device-initialization knobs, with the exact
// defaults original_source/balor/sender.py's _init_machine uses. Every
// field is a pointer with a matching Get* accessor: a nil field means
// "use the hardware default" so a caller-supplied partial config never
// has to restate every knob.
type InitConfig struct {
	FirstPulseKiller *uint16 `json:"first_pulse_killer,omitempty"`
	PwmHalfPeriod    *uint16 `json:"pwm_half_period,omitempty"`
	PwmPulseWidth    *uint16 `json:"pwm_pulse_width,omitempty"`
	StandbyParam1    *uint16 `json:"standby_param_1,omitempty"`
	StandbyParam2    *uint16 `json:"standby_param_2,omitempty"`
	TimingMode       *uint16 `json:"timing_mode,omitempty"`
	DelayMode        *uint16 `json:"delay_mode,omitempty"`
	LaserMode        *uint16 `json:"laser_mode,omitempty"`
	ControlMode      *uint16 `json:"control_mode,omitempty"`

	// Fpk2 is SetFpkParam2(v1, v2, v3, s).
	Fpk2 *[4]uint16 `json:"fpk2,omitempty"`
	// FlyRes is SetFlyRes(v1, v2, v3, v4).
	FlyRes *[4]uint16 `json:"fly_res,omitempty"`

	// SettleDelay is the post-init sleep before the board is considered
	// ready for its first real job. original_source sleeps exactly
	// 50ms; SettleDelayMax is an independent, longer upper bound a
	// caller may wait up to on flaky boards.
	SettleDelay    *time.Duration `json:"settle_delay,omitempty"`
	SettleDelayMax *time.Duration `json:"settle_delay_max,omitempty"`
}

// EmptyInitConfig returns an InitConfig with every field nil, so every
// Get* accessor falls back to the hardware default.
func EmptyInitConfig() *InitConfig {
	return &InitConfig{}
}

func (c *InitConfig) GetFirstPulseKiller() uint16 {
	if c.FirstPulseKiller == nil {
		return 200
	}
	return *c.FirstPulseKiller
}

func (c *InitConfig) GetPwmHalfPeriod() uint16 {
	if c.PwmHalfPeriod == nil {
		return 125
	}
	return *c.PwmHalfPeriod
}

func (c *InitConfig) GetPwmPulseWidth() uint16 {
	if c.PwmPulseWidth == nil {
		return 125
	}
	return *c.PwmPulseWidth
}

func (c *InitConfig) GetStandbyParam1() uint16 {
	if c.StandbyParam1 == nil {
		return 2000
	}
	return *c.StandbyParam1
}

func (c *InitConfig) GetStandbyParam2() uint16 {
	if c.StandbyParam2 == nil {
		return 20
	}
	return *c.StandbyParam2
}

func (c *InitConfig) GetTimingMode() uint16 {
	if c.TimingMode == nil {
		return 1
	}
	return *c.TimingMode
}

func (c *InitConfig) GetDelayMode() uint16 {
	if c.DelayMode == nil {
		return 1
	}
	return *c.DelayMode
}

func (c *InitConfig) GetLaserMode() uint16 {
	if c.LaserMode == nil {
		return 1
	}
	return *c.LaserMode
}

func (c *InitConfig) GetControlMode() uint16 {
	if c.ControlMode == nil {
		return 0
	}
	return *c.ControlMode
}

func (c *InitConfig) GetFpk2() [4]uint16 {
	if c.Fpk2 == nil {
		return [4]uint16{0xFFB, 1, 409, 100}
	}
	return *c.Fpk2
}

func (c *InitConfig) GetFlyRes() [4]uint16 {
	if c.FlyRes == nil {
		return [4]uint16{0, 99, 1000, 25}
	}
	return *c.FlyRes
}

func (c *InitConfig) GetSettleDelay() time.Duration {
	if c.SettleDelay == nil {
		return 50 * time.Millisecond
	}
	return *c.SettleDelay
}

func (c *InitConfig) GetSettleDelayMax() time.Duration {
	if c.SettleDelayMax == nil {
		return 120 * time.Millisecond
	}
	return *c.SettleDelayMax
}
