package protocol

import "encoding/binary"

// LoadPayload is the data stage of a LOAD command.
//
// Wire format (LoadPayloadSize bytes, little-endian):
//
//	[ADDRESS(4)][LENGTH(4)]
type LoadPayload struct {
	// Address is the target memory address of the first byte
	Address uint32

	// Length is the number of bytes that will follow on the bulk endpoint
	Length uint32
}

// MarshalBinary encodes the payload in its fixed little-endian layout.
func (p LoadPayload) MarshalBinary() ([]byte, error) {
	buf := make([]byte, LoadPayloadSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.Address)
	binary.LittleEndian.PutUint32(buf[4:8], p.Length)
	return buf, nil
}

// UnmarshalBinary decodes a LOAD payload. The input must be exactly LoadPayloadSize bytes.
func (p *LoadPayload) UnmarshalBinary(data []byte) error {
	if len(data) != LoadPayloadSize {
		return &PayloadSizeError{Command: CmdLoad, Expected: LoadPayloadSize, Actual: len(data)}
	}
	p.Address = binary.LittleEndian.Uint32(data[0:4])
	p.Length = binary.LittleEndian.Uint32(data[4:8])
	return nil
}

// RunPayload is the data stage of a RUN command.
//
// Wire format (RunPayloadSize bytes, little-endian):
//
//	[ADDRESS(4)]
type RunPayload struct {
	// Address is where the device should jump
	Address uint32
}

// MarshalBinary encodes the payload in its fixed little-endian layout.
func (p RunPayload) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RunPayloadSize)
	binary.LittleEndian.PutUint32(buf, p.Address)
	return buf, nil
}

// UnmarshalBinary decodes a RUN payload. The input must be exactly RunPayloadSize bytes.
func (p *RunPayload) UnmarshalBinary(data []byte) error {
	if len(data) != RunPayloadSize {
		return &PayloadSizeError{Command: CmdRun, Expected: RunPayloadSize, Actual: len(data)}
	}
	p.Address = binary.LittleEndian.Uint32(data)
	return nil
}

// Setup holds the fields of a control transfer setup packet, minus wLength.
type Setup struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
}
