package recovery

import (
	"bytes"
	"context"
	"errors"

	"github.com/moffa90/go-recovery/protocol"
)

// controlCall records one control transfer
type controlCall struct {
	setup protocol.Setup
	data  []byte
}

// MockDevice simulates a recovery device for testing
type MockDevice struct {
	config ConfigDesc
	alt    int

	configureErr error
	configErr    error
	altErr       error
	openErr      error
	controlErr   error
	writeErr     error
	failAfter    int // fail bulk writes after this many succeeded (0 = never)

	// writeLimit caps the bytes accepted per bulk write (0 = no cap)
	writeLimit int

	// response is returned to IN control transfers
	response []byte

	// writer replaces the device's own bulk writer when set
	writer BulkWriter

	configured bool
	controls   []controlCall
	requests   []int
	writes     [][]byte
	received   *bytes.Buffer

	// events records "control" and "bulk" in arrival order
	events []string
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		config:   recoveryConfig(),
		received: new(bytes.Buffer),
	}
}

// recoveryConfig matches the descriptors the recovery firmware reports.
func recoveryConfig() ConfigDesc {
	return ConfigDesc{
		Number: 1,
		Interfaces: []InterfaceDesc{
			{
				Number:    0,
				Alternate: 0,
				Endpoints: []EndpointDesc{
					{
						Address:       0x01,
						Number:        1,
						Direction:     EndpointDirectionOut,
						TransferType:  TransferTypeBulk,
						MaxPacketSize: 512,
					},
				},
			},
		},
	}
}

func (m *MockDevice) Configure() error {
	if m.configureErr != nil {
		return m.configureErr
	}
	m.configured = true
	return nil
}

func (m *MockDevice) ActiveConfig() (ConfigDesc, error) {
	if m.configErr != nil {
		return ConfigDesc{}, m.configErr
	}
	return m.config, nil
}

func (m *MockDevice) AltSetting(iface int) (int, error) {
	if m.altErr != nil {
		return 0, m.altErr
	}
	return m.alt, nil
}

func (m *MockDevice) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	if m.controlErr != nil {
		return 0, m.controlErr
	}

	m.events = append(m.events, "control")
	m.controls = append(m.controls, controlCall{
		setup: protocol.Setup{RequestType: rType, Request: request, Value: val, Index: idx},
		data:  append([]byte(nil), data...),
	})

	if rType&0x80 != 0 {
		return copy(data, m.response), nil
	}
	return len(data), nil
}

func (m *MockDevice) OpenOut(setting InterfaceDesc, ep EndpointDesc) (BulkWriter, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	if m.writer != nil {
		return m.writer, nil
	}
	return m, nil
}

func (m *MockDevice) WriteContext(ctx context.Context, p []byte) (int, error) {
	m.requests = append(m.requests, len(p))
	if m.writeErr != nil && (m.failAfter == 0 || len(m.writes) >= m.failAfter) {
		return 0, m.writeErr
	}

	n := len(p)
	if m.writeLimit > 0 && n > m.writeLimit {
		n = m.writeLimit
	}

	m.events = append(m.events, "bulk")
	m.writes = append(m.writes, append([]byte(nil), p[:n]...))
	m.received.Write(p[:n])
	return n, nil
}

var errMockTransport = errors.New("mock transport failure")
