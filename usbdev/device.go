package usbdev

import (
	"errors"
	"fmt"

	"github.com/google/gousb"
	"github.com/hashicorp/go-multierror"

	"github.com/moffa90/go-recovery/recovery"
)

// Standard GET_INTERFACE request (USB 2.0 section 9.4.4).
const (
	requestTypeInterfaceIn = 0x81
	requestGetInterface    = 0x0A
)

// ID identifies a device by vendor and product.
type ID struct {
	Vendor  gousb.ID
	Product gousb.ID
}

func (id ID) String() string {
	return fmt.Sprintf("%s:%s", id.Vendor, id.Product)
}

// Device is an open libusb device. It implements recovery.Device.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	id   ID
}

var _ recovery.Device = (*Device)(nil)

// newContext initializes libusb. gousb panics when libusb cannot be
// initialized, e.g. when no USB subsystem is available.
func newContext() (ctx *gousb.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("initialize libusb: %v", r)
		}
	}()
	return gousb.NewContext(), nil
}

// Open opens the first device matching vendor and product.
// It returns an error wrapping recovery.ErrDeviceNotFound when nothing matches;
// no transfer is attempted in that case.
func Open(vendor, product gousb.ID, opts ...Option) (*Device, error) {
	return OpenFirst([]ID{{Vendor: vendor, Product: product}}, opts...)
}

// OpenFirst tries each candidate in order and opens the first one present.
// A candidate that is present but cannot be opened is reported as a
// TransportError; if no candidate is present the error wraps
// recovery.ErrDeviceNotFound.
func OpenFirst(candidates []ID, opts ...Option) (*Device, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidate IDs", recovery.ErrInvalidArgument)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, err := newContext()
	if err != nil {
		return nil, &recovery.TransportError{Op: "open", Err: err}
	}
	if cfg.DebugLevel > 0 {
		ctx.Debug(cfg.DebugLevel)
	}

	dev, id, err := findDevice(ctx, candidates)
	if err != nil {
		if closeErr := ctx.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		return nil, err
	}

	dev.ControlTimeout = cfg.ControlTimeout
	if err := dev.SetAutoDetach(cfg.AutoDetach); err != nil {
		closeErr := multierror.Append(fmt.Errorf("set auto detach: %w", err), dev.Close(), ctx.Close())
		return nil, &recovery.TransportError{Op: "open " + id.String(), Err: closeErr.ErrorOrNil()}
	}

	return &Device{ctx: ctx, dev: dev, id: id}, nil
}

// enumerator is the part of *gousb.Context used to find devices.
type enumerator interface {
	OpenDevices(opener func(desc *gousb.DeviceDesc) bool) ([]*gousb.Device, error)
}

// findDevice opens the first candidate present on the bus.
//
// gousb keeps enumerating when a device descriptor cannot be read or a
// device cannot be opened, and returns the opened devices together with the
// last such error. Errors are only fatal when they belong to a device that
// matched a candidate; failures on unrelated devices are dropped.
func findDevice(e enumerator, candidates []ID) (*gousb.Device, ID, error) {
	var failures error
	for _, id := range candidates {
		matched := 0
		devs, err := e.OpenDevices(func(desc *gousb.DeviceDesc) bool {
			if desc.Vendor == id.Vendor && desc.Product == id.Product {
				matched++
				return true
			}
			return false
		})

		if len(devs) > 0 {
			for _, extra := range devs[1:] {
				extra.Close()
			}
			return devs[0], id, nil
		}
		if matched > 0 {
			if err == nil {
				err = errors.New("device matched but was not opened")
			}
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", id, err))
		}
	}

	if failures != nil {
		return nil, ID{}, &recovery.TransportError{Op: "open", Err: failures}
	}
	return nil, ID{}, fmt.Errorf("%s: %w", describe(candidates), recovery.ErrDeviceNotFound)
}

func describe(ids []ID) string {
	if len(ids) == 1 {
		return ids[0].String()
	}
	return fmt.Sprintf("%d candidate IDs", len(ids))
}

// ID returns the vendor and product the device was opened with.
func (d *Device) ID() ID {
	return d.id
}

// String describes the device's bus position and IDs.
func (d *Device) String() string {
	if d.dev == nil || d.dev.Desc == nil {
		return d.id.String()
	}
	return fmt.Sprintf("bus %d addr %d (%s)", d.dev.Desc.Bus, d.dev.Desc.Address, d.id)
}

// Configure activates the device's first configuration.
func (d *Device) Configure() error {
	num, ok := firstConfigNumber(d.dev.Desc.Configs)
	if !ok {
		return errors.New("device reports no configurations")
	}

	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.cfg != nil {
		if err := d.cfg.Close(); err != nil {
			return fmt.Errorf("release configuration %d: %w", d.cfg.Desc.Number, err)
		}
		d.cfg = nil
	}

	cfg, err := d.dev.Config(num)
	if err != nil {
		return fmt.Errorf("set configuration %d: %w", num, err)
	}
	d.cfg = cfg
	return nil
}

// ActiveConfig returns the descriptor of the active configuration.
func (d *Device) ActiveConfig() (recovery.ConfigDesc, error) {
	num, err := d.dev.ActiveConfigNum()
	if err != nil {
		return recovery.ConfigDesc{}, fmt.Errorf("get active configuration: %w", err)
	}

	desc, ok := d.dev.Desc.Configs[num]
	if !ok {
		return recovery.ConfigDesc{}, fmt.Errorf("active configuration %d has no descriptor", num)
	}
	return convertConfig(desc), nil
}

// AltSetting issues GET_INTERFACE for iface.
func (d *Device) AltSetting(iface int) (int, error) {
	buf := make([]byte, 1)
	n, err := d.dev.Control(requestTypeInterfaceIn, requestGetInterface, 0, uint16(iface), buf)
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, fmt.Errorf("GET_INTERFACE returned %d bytes", n)
	}
	return int(buf[0]), nil
}

// Control performs a control transfer on the default pipe.
func (d *Device) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	return d.dev.Control(rType, request, val, idx, data)
}

// OpenOut claims the interface setting and returns its OUT endpoint.
// A previously claimed interface is released first.
func (d *Device) OpenOut(setting recovery.InterfaceDesc, ep recovery.EndpointDesc) (recovery.BulkWriter, error) {
	if d.cfg == nil {
		return nil, errors.New("device is not configured")
	}

	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}

	intf, err := d.cfg.Interface(setting.Number, setting.Alternate)
	if err != nil {
		return nil, fmt.Errorf("claim interface %d alt %d: %w", setting.Number, setting.Alternate, err)
	}

	out, err := intf.OutEndpoint(ep.Number)
	if err != nil {
		intf.Close()
		return nil, fmt.Errorf("endpoint %d: %w", ep.Number, err)
	}

	d.intf = intf
	return out, nil
}

// Close releases the interface, configuration, device and libusb context.
// All resources are released even if some fail; the failures are combined.
func (d *Device) Close() error {
	var errs error

	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.cfg != nil {
		if err := d.cfg.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close configuration: %w", err))
		}
		d.cfg = nil
	}
	if d.dev != nil {
		if err := d.dev.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close device: %w", err))
		}
		d.dev = nil
	}
	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close context: %w", err))
		}
		d.ctx = nil
	}

	return errs
}
