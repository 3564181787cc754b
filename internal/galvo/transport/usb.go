package transport

import (
	"context"
	"fmt"

	"github.com/google/gousb"

	"github.com/meerk40t/galvo/internal/galvoerr"
)

// USBTransport is the real Transport backed by github.com/google/gousb.
type USBTransport struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	out    *gousb.OutEndpoint
	in     *gousb.InEndpoint
}

// OpenUSB enumerates USB devices matching VendorID/ProductID and opens the
// one at the given zero-based index among matches (0 selects the first
// and is the common case of a single attached board).
func OpenUSB(index int) (*USBTransport, error) {
	ctx := gousb.NewContext()

	var matched []*gousb.Device
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(VendorID) && desc.Product == gousb.ID(ProductID)
	})
	matched = devs
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: enumerating USB devices: %v", galvoerr.ErrCommunication, err)
	}
	if index < 0 || index >= len(matched) {
		for _, d := range matched {
			d.Close()
		}
		ctx.Close()
		return nil, fmt.Errorf("%w: no board at index %d (found %d)", galvoerr.ErrNoDevice, index, len(matched))
	}
	device := matched[index]
	for i, d := range matched {
		if i != index {
			d.Close()
		}
	}

	config, err := device.Config(1)
	if err != nil {
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: claiming USB config: %v", galvoerr.ErrAccessDenied, err)
	}

	intf, err := config.Interface(0, 0)
	if err != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: claiming USB interface: %v", galvoerr.ErrAccessDenied, err)
	}

	out, err := intf.OutEndpoint(EndpointCommandOut)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: opening command endpoint: %v", galvoerr.ErrAccessDenied, err)
	}

	in, err := intf.InEndpoint(EndpointStatusIn)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: opening status endpoint: %v", galvoerr.ErrAccessDenied, err)
	}

	return &USBTransport{ctx: ctx, device: device, config: config, intf: intf, out: out, in: in}, nil
}

func (t *USBTransport) WriteCommand(ctx context.Context, frame [12]byte) error {
	ctx, cancel := context.WithTimeout(ctx, TransferTimeout)
	defer cancel()
	n, err := t.out.WriteContext(ctx, frame[:])
	if err != nil {
		return fmt.Errorf("%w: writing command: %v", galvoerr.ErrCommunication, err)
	}
	return wrapShortWrite(CommandFrameSize, n)
}

func (t *USBTransport) ReadReply(ctx context.Context) ([8]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, TransferTimeout)
	defer cancel()
	var reply [8]byte
	n, err := t.in.ReadContext(ctx, reply[:])
	if err != nil {
		return reply, fmt.Errorf("%w: reading reply: %v", galvoerr.ErrCommunication, err)
	}
	if n != ReplyFrameSize {
		return reply, fmt.Errorf("%w: reply was %d bytes, want %d", galvoerr.ErrCommunication, n, ReplyFrameSize)
	}
	return reply, nil
}

func (t *USBTransport) WriteBlock(ctx context.Context, block []byte) error {
	ctx, cancel := context.WithTimeout(ctx, TransferTimeout)
	defer cancel()
	n, err := t.out.WriteContext(ctx, block)
	if err != nil {
		return fmt.Errorf("%w: writing block: %v", galvoerr.ErrCommunication, err)
	}
	return wrapShortWrite(len(block), n)
}

func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.config != nil {
		t.config.Close()
		t.config = nil
	}
	if t.device != nil {
		t.device.Close()
		t.device = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
