// Package transport abstracts the USB bulk transfer link to a BJJCZ
// LMCV4-FIBER-M board: 12-byte command frames and 8-byte status replies on
// the control endpoints, plus bulk writes of list packets.
// Grounded on the gousb usage pattern in
// _examples/other_examples/f5ae9b69_guiperry-HASHER__internal-driver-device-usb_device.go.go
// (Context/Device/Config/Interface/OutEndpoint/InEndpoint lifecycle).
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/meerk40t/galvo/internal/galvoerr"
)

// Board identification and endpoint addresses.
const (
	VendorID  = 0x9588
	ProductID = 0x9899

	EndpointCommandOut = 0x02
	EndpointStatusIn   = 0x88

	// TransferTimeout bounds every single bulk transfer.
	TransferTimeout = 100 * time.Millisecond
)

// CommandFrameSize and ReplyFrameSize are the fixed wire sizes for the
// control-plane exchange.
const (
	CommandFrameSize = 12
	ReplyFrameSize   = 8
	ListPacketSize   = 3072
)

// Transport is the link between the protocol layer and a physical or
// simulated board. All methods may block up to TransferTimeout and must be
// safe to call from one goroutine at a time — callers serialize access
// with the session lock in internal/galvo/engine.
type Transport interface {
	// WriteCommand sends a 12-byte command frame on the command endpoint.
	WriteCommand(ctx context.Context, frame [12]byte) error

	// ReadReply reads the 8-byte status reply for the most recent command.
	ReadReply(ctx context.Context) ([8]byte, error)

	// WriteBlock bulk-writes a full list packet on the command endpoint.
	// Callers pass exactly ListPacketSize bytes; the length is not
	// checked here.
	WriteBlock(ctx context.Context, block []byte) error

	// Close releases the underlying device handle. Idempotent.
	Close() error
}

// wrapShortWrite turns a byte-count mismatch into galvoerr.ErrCommunication.
func wrapShortWrite(wanted, got int) error {
	if wanted == got {
		return nil
	}
	return fmt.Errorf("%w: wrote %d of %d bytes", galvoerr.ErrCommunication, got, wanted)
}
