package protocol

// Vendor control request parameters used by the recovery bootloader.
const (
	// RequestTypeOut is bmRequestType for host-to-device, vendor, device recipient (0x40)
	RequestTypeOut = 0x40

	// RequestTypeIn is bmRequestType for device-to-host, vendor, device recipient (0xC0)
	RequestTypeIn = 0xC0

	// Request is the bRequest code reserved for recovery commands (0x40)
	Request = 0x40

	// Index is the wIndex value sent with every command
	Index = 0
)

// Command codes carried in wValue.
const (
	// CmdLoad announces an upload of Length bytes to Address
	CmdLoad Command = 0

	// CmdRun jumps execution to Address
	CmdRun Command = 1
)

// Payload sizes in bytes.
const (
	// LoadPayloadSize is the size of the LOAD payload: address(4) + length(4)
	LoadPayloadSize = 8

	// RunPayloadSize is the size of the RUN payload: address(4)
	RunPayloadSize = 4
)

// ChunkSize is the number of bytes handed to a single bulk write (64 KiB).
const ChunkSize = 64 * 1024

// MaxRecvCount is the largest data stage a control read can request (wLength is 16 bits).
const MaxRecvCount = 0xFFFF

// DefaultRecvCount is the read length used when the caller has no better estimate.
const DefaultRecvCount = MaxRecvCount

// Identifiers the recovery firmware enumerates with.
const (
	// DefaultVendorID is the USB vendor ID of the recovery device
	DefaultVendorID = 0x0000

	// DefaultProductID is the USB product ID of the recovery device
	DefaultProductID = 0x7F20
)
