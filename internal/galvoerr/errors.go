// Package galvoerr defines the sentinel error kinds raised by the galvo
// control stack. Callers should wrap these with context via fmt.Errorf's
// %w verb and unwrap with errors.Is, rather than switching on strings.
package galvoerr

import "errors"

var (
	// ErrNoDevice is returned when USB enumeration finds no matching
	// board, or the requested device index is out of range.
	ErrNoDevice = errors.New("galvo: no matching device")

	// ErrAccessDenied is returned when the OS refuses to claim or
	// configure the device (insufficient permissions, already claimed
	// by another process without release).
	ErrAccessDenied = errors.New("galvo: access denied")

	// ErrCommunication covers short reads/writes, transfer timeouts, and
	// malformed reply lengths. The transport is assumed unreliable after
	// this error; the caller should tear down the session.
	ErrCommunication = errors.New("galvo: communication error")

	// ErrDataValidity is returned for malformed input data: a list record
	// that is not 12 bytes, a correction table with the wrong number of
	// entries, an unparsable calibration file, or an invalid Duplicate
	// range. The size of a list packet handed to Transport.WriteBlock is
	// not checked.
	ErrDataValidity = errors.New("galvo: invalid list data")

	// ErrParameterOverflow is returned when a value being converted into
	// a list-op parameter (speed, power, Q-switch period, coordinate)
	// would not fit in 16 bits, or when a frequency is not positive. The
	// check happens when the builder's setter or geometric call converts
	// the value, not at serialization.
	ErrParameterOverflow = errors.New("galvo: parameter overflow")

	// ErrMissingSetting is returned by CommandList.Mark when a required
	// mark setting has not been configured yet.
	ErrMissingSetting = errors.New("galvo: missing required setting")

	// ErrOutOfEnvelope is returned by calibration lookups for points
	// outside the loaded table's bounds.
	ErrOutOfEnvelope = errors.New("galvo: point outside calibration envelope")

	// ErrCancelled is returned when a status wait or execution is cut
	// short by context cancellation. An abort requested through
	// engine.Session.Abort does not produce this error: Execute then
	// returns ResultAborted with a nil error.
	ErrCancelled = errors.New("galvo: cancelled")
)
