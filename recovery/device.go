package recovery

import "context"

// Device is the USB capability set a Session consumes.
// The usbdev package provides an implementation backed by libusb; tests and
// simulators can provide their own.
type Device interface {
	// Configure activates the device's first (default) configuration.
	Configure() error

	// ActiveConfig returns the descriptor of the active configuration.
	ActiveConfig() (ConfigDesc, error)

	// AltSetting queries the currently selected alternate setting of an interface.
	AltSetting(iface int) (int, error)

	// Control performs a control transfer on the default pipe and returns the
	// number of bytes transferred in the data stage.
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)

	// OpenOut claims the interface setting and returns a writer for the bulk OUT endpoint.
	OpenOut(setting InterfaceDesc, ep EndpointDesc) (BulkWriter, error)
}

// BulkWriter writes to a bulk OUT endpoint. It may write fewer bytes than
// requested; the returned count is authoritative.
type BulkWriter interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// EndpointDirection is the data direction of an endpoint.
type EndpointDirection bool

const (
	// EndpointDirectionOut is host to device
	EndpointDirectionOut EndpointDirection = false

	// EndpointDirectionIn is device to host
	EndpointDirectionIn EndpointDirection = true
)

func (d EndpointDirection) String() string {
	if d == EndpointDirectionIn {
		return "IN"
	}
	return "OUT"
}

// TransferType is the USB transfer type of an endpoint.
type TransferType uint8

// Transfer types, numbered as in bmAttributes.
const (
	TransferTypeControl     TransferType = 0
	TransferTypeIsochronous TransferType = 1
	TransferTypeBulk        TransferType = 2
	TransferTypeInterrupt   TransferType = 3
)

func (t TransferType) String() string {
	switch t {
	case TransferTypeControl:
		return "control"
	case TransferTypeIsochronous:
		return "isochronous"
	case TransferTypeBulk:
		return "bulk"
	case TransferTypeInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// EndpointDesc describes one endpoint of an interface setting.
type EndpointDesc struct {
	// Address is bEndpointAddress, including the direction bit
	Address uint8

	// Number is the endpoint number without the direction bit
	Number int

	// Direction is the data direction
	Direction EndpointDirection

	// TransferType is the transfer type from bmAttributes
	TransferType TransferType

	// MaxPacketSize is wMaxPacketSize
	MaxPacketSize int
}

// InterfaceDesc describes one alternate setting of an interface.
type InterfaceDesc struct {
	// Number is bInterfaceNumber
	Number int

	// Alternate is bAlternateSetting
	Alternate int

	// Endpoints lists the endpoints of this setting
	Endpoints []EndpointDesc
}

// ConfigDesc describes a configuration. Interfaces holds every alternate
// setting of every interface, ordered by (Number, Alternate).
type ConfigDesc struct {
	// Number is bConfigurationValue
	Number int

	// Interfaces lists all interface settings of the configuration
	Interfaces []InterfaceDesc
}

// findInterface returns the setting matching number and alternate.
func (c ConfigDesc) findInterface(number, alternate int) (InterfaceDesc, bool) {
	for _, intf := range c.Interfaces {
		if intf.Number == number && intf.Alternate == alternate {
			return intf, true
		}
	}
	return InterfaceDesc{}, false
}

// findOutEndpoint returns the first OUT endpoint of the setting.
func (i InterfaceDesc) findOutEndpoint() (EndpointDesc, bool) {
	for _, ep := range i.Endpoints {
		if ep.Direction == EndpointDirectionOut {
			return ep, true
		}
	}
	return EndpointDesc{}, false
}
