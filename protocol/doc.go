// Package protocol implements the wire format of the USB recovery bootloader.
//
// # Protocol Overview
//
// The bootloader exposes two vendor commands on the default control pipe and a
// single bulk OUT endpoint for data:
//
//	OUT: bmRequestType=0x40 bRequest=0x40 wValue=<command> wIndex=0 data=<payload>
//	IN:  bmRequestType=0xC0 bRequest=0x40 wValue=<command> wIndex=0 wLength=<count>
//
// Commands:
//   - LOAD (0): payload [ADDRESS(4)][LENGTH(4)], followed by LENGTH bytes on the bulk endpoint
//   - RUN  (1): payload [ADDRESS(4)], the device jumps to ADDRESS
//
// All integers are unsigned 32-bit little-endian. There is no framing, padding
// or checksum.
//
// # Payload Builders
//
//	payload, err := protocol.BuildLoadPayload(addr, len(image))
//	payload := protocol.BuildRunPayload(addr)
//
// LoadPayload and RunPayload implement encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler for code that sits on the device side of the wire.
package protocol
