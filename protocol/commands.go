package protocol

import (
	"fmt"
	"math"
)

// Command is a recovery command code, sent as wValue of a vendor control transfer.
type Command uint16

// String returns the command mnemonic.
func (c Command) String() string {
	switch c {
	case CmdLoad:
		return "LOAD"
	case CmdRun:
		return "RUN"
	default:
		return fmt.Sprintf("CMD(0x%04X)", uint16(c))
	}
}

// OutSetup returns the setup fields for sending cmd to the device.
func OutSetup(cmd Command) Setup {
	return Setup{
		RequestType: RequestTypeOut,
		Request:     Request,
		Value:       uint16(cmd),
		Index:       Index,
	}
}

// InSetup returns the setup fields for reading the response to cmd.
func InSetup(cmd Command) Setup {
	return Setup{
		RequestType: RequestTypeIn,
		Request:     Request,
		Value:       uint16(cmd),
		Index:       Index,
	}
}

// BuildLoadPayload encodes the LOAD payload announcing length bytes at address.
// Returns an error if length does not fit the 32-bit length field.
//
// Example:
//
//	payload, err := protocol.BuildLoadPayload(0x80000000, len(image))
func BuildLoadPayload(address uint32, length int) ([]byte, error) {
	if length < 0 || uint64(length) > math.MaxUint32 {
		return nil, fmt.Errorf("length %d does not fit in 32 bits", length)
	}
	return LoadPayload{Address: address, Length: uint32(length)}.MarshalBinary()
}

// BuildRunPayload encodes the RUN payload for address.
func BuildRunPayload(address uint32) []byte {
	buf, _ := RunPayload{Address: address}.MarshalBinary()
	return buf
}

// ChunkCount returns how many full-size bulk writes are needed for length bytes.
func ChunkCount(length, chunkSize int) int {
	if length <= 0 || chunkSize <= 0 {
		return 0
	}
	return (length + chunkSize - 1) / chunkSize
}
