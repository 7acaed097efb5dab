package recovery

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-recovery/protocol"
)

// Mock logger for testing
type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.debugMsgs = append(l.debugMsgs, msg)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errorMsgs = append(l.errorMsgs, msg)
}

// mockWriter is a BulkWriter driven by testify expectations
type mockWriter struct {
	mock.Mock
}

func (w *mockWriter) WriteContext(ctx context.Context, p []byte) (int, error) {
	args := w.Called(ctx, p)
	return args.Int(0), args.Error(1)
}

func newSession(t *testing.T, dev *MockDevice, opts ...Option) *Session {
	t.Helper()
	sess, err := New(dev, opts...)
	require.NoError(t, err)
	return sess
}

func TestNew(t *testing.T) {
	dev := NewMockDevice()
	sess := newSession(t, dev)

	assert.True(t, dev.configured)
	assert.Equal(t, uint8(0x01), sess.Endpoint().Address)
	assert.Equal(t, EndpointDirectionOut, sess.Endpoint().Direction)
	assert.Equal(t, 0, sess.Interface().Number)
	assert.Empty(t, dev.controls, "construction must not send commands")
}

func TestNewNilDevicePanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = New(nil)
	})
}

func TestNewSelectsCurrentAlternateSetting(t *testing.T) {
	dev := NewMockDevice()
	dev.config = ConfigDesc{
		Number: 1,
		Interfaces: []InterfaceDesc{
			{
				Number:    0,
				Alternate: 0,
				Endpoints: []EndpointDesc{
					{Address: 0x81, Number: 1, Direction: EndpointDirectionIn, TransferType: TransferTypeBulk},
				},
			},
			{
				Number:    0,
				Alternate: 1,
				Endpoints: []EndpointDesc{
					{Address: 0x81, Number: 1, Direction: EndpointDirectionIn, TransferType: TransferTypeBulk},
					{Address: 0x02, Number: 2, Direction: EndpointDirectionOut, TransferType: TransferTypeBulk},
				},
			},
		},
	}
	dev.alt = 1

	sess := newSession(t, dev)
	assert.Equal(t, 1, sess.Interface().Alternate)
	assert.Equal(t, uint8(0x02), sess.Endpoint().Address)
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(*MockDevice)
		wantProtocol  bool
		wantTransport bool
		errMsg        string
	}{
		{
			name:         "configuration activation fails",
			setup:        func(m *MockDevice) { m.configureErr = errMockTransport },
			wantProtocol: true,
			errMsg:       "activate configuration",
		},
		{
			name:         "active configuration unreadable",
			setup:        func(m *MockDevice) { m.configErr = errMockTransport },
			wantProtocol: true,
			errMsg:       "read active configuration",
		},
		{
			name:         "no interfaces",
			setup:        func(m *MockDevice) { m.config.Interfaces = nil },
			wantProtocol: true,
			errMsg:       "has no interfaces",
		},
		{
			name:         "no OUT endpoint",
			setup:        func(m *MockDevice) { m.config.Interfaces[0].Endpoints[0].Direction = EndpointDirectionIn },
			wantProtocol: true,
			errMsg:       "has no OUT endpoint",
		},
		{
			name:         "no endpoints at all",
			setup:        func(m *MockDevice) { m.config.Interfaces[0].Endpoints = nil },
			wantProtocol: true,
			errMsg:       "has no OUT endpoint",
		},
		{
			name:         "alternate setting without descriptor",
			setup:        func(m *MockDevice) { m.alt = 3 },
			wantProtocol: true,
			errMsg:       "no descriptor for interface 0 alternate setting 3",
		},
		{
			name:          "get interface fails",
			setup:         func(m *MockDevice) { m.altErr = errMockTransport },
			wantTransport: true,
			errMsg:        "get interface 0",
		},
		{
			name:          "endpoint cannot be claimed",
			setup:         func(m *MockDevice) { m.openErr = errMockTransport },
			wantTransport: true,
			errMsg:        "open endpoint 0x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewMockDevice()
			tt.setup(dev)

			sess, err := New(dev)
			require.Error(t, err)
			assert.Nil(t, sess)
			assert.Equal(t, tt.wantProtocol, IsDeviceProtocolError(err), "error: %v", err)
			assert.Equal(t, tt.wantTransport, IsTransportError(err), "error: %v", err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Empty(t, dev.controls, "no command may be sent on failed construction")
		})
	}
}

func TestLoadFourMegabytesOfZeros(t *testing.T) {
	dev := NewMockDevice()
	sess := newSession(t, dev)

	data := make([]byte, 4096*1024)
	require.NoError(t, sess.Load(context.Background(), data, 0))

	require.Len(t, dev.controls, 1)
	assert.Equal(t, protocol.OutSetup(protocol.CmdLoad), dev.controls[0].setup)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00}, dev.controls[0].data)

	require.Len(t, dev.requests, 64)
	for i, n := range dev.requests {
		assert.Equal(t, 65536, n, "chunk %d", i)
	}
	assert.Equal(t, "control", dev.events[0])
	assert.Equal(t, len(data), dev.received.Len())
}

func TestLoadChunking(t *testing.T) {
	tests := []struct {
		name   string
		length int
		chunks int
	}{
		{"empty", 0, 0},
		{"single byte", 1, 1},
		{"just under a chunk", protocol.ChunkSize - 1, 1},
		{"exactly one chunk", protocol.ChunkSize, 1},
		{"one byte over", protocol.ChunkSize + 1, 2},
		{"several chunks with tail", 3*protocol.ChunkSize + 1234, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewMockDevice()
			sess := newSession(t, dev)

			data := make([]byte, tt.length)
			for i := range data {
				data[i] = byte(i * 7)
			}

			require.NoError(t, sess.Load(context.Background(), data, 0x80000000))

			assert.Len(t, dev.requests, tt.chunks)
			assert.Equal(t, protocol.ChunkCount(tt.length, protocol.ChunkSize), len(dev.requests))
			assert.True(t, bytes.Equal(data, dev.received.Bytes()), "data delivered out of order or incomplete")

			var payload protocol.LoadPayload
			require.NoError(t, payload.UnmarshalBinary(dev.controls[0].data))
			assert.Equal(t, uint32(0x80000000), payload.Address)
			assert.Equal(t, uint32(tt.length), payload.Length)

			require.NotEmpty(t, dev.events)
			assert.Equal(t, "control", dev.events[0])
			for _, ev := range dev.events[1:] {
				assert.Equal(t, "bulk", ev)
			}
		})
	}
}

func TestLoadPartialWrites(t *testing.T) {
	dev := NewMockDevice()
	dev.writeLimit = 1000
	sess := newSession(t, dev)

	data := make([]byte, 70000)
	for i := range data {
		data[i] = byte(i)
	}

	require.NoError(t, sess.Load(context.Background(), data, 0x1000))

	assert.True(t, bytes.Equal(data, dev.received.Bytes()))
	assert.Len(t, dev.writes, 70)
	// Each request restarts at the reported cursor.
	assert.Equal(t, protocol.ChunkSize, dev.requests[0])
	assert.Equal(t, 60000, dev.requests[10])
	assert.Equal(t, 1000, dev.requests[69])
}

func TestLoadWriteError(t *testing.T) {
	dev := NewMockDevice()
	dev.writeErr = errMockTransport
	dev.failAfter = 2
	sess := newSession(t, dev)

	err := sess.Load(context.Background(), make([]byte, 4*protocol.ChunkSize), 0)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, errMockTransport)
	assert.Contains(t, err.Error(), "bulk write at offset 131072")
	assert.Equal(t, 2*protocol.ChunkSize, dev.received.Len(), "prefix stays on the device")
}

func TestLoadControlError(t *testing.T) {
	dev := NewMockDevice()
	sess := newSession(t, dev)
	dev.controlErr = errMockTransport

	err := sess.Load(context.Background(), make([]byte, 10), 0)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Contains(t, err.Error(), "send LOAD")
	assert.Empty(t, dev.requests, "no data may follow a failed LOAD")
}

func TestLoadZeroProgressWrite(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteContext", mock.Anything, mock.Anything).Return(0, nil).Once()

	dev := NewMockDevice()
	dev.writer = w
	sess := newSession(t, dev)

	err := sess.Load(context.Background(), make([]byte, 16), 0)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, errShortWrite)
	w.AssertExpectations(t)
}

func TestLoadOverreportedWrite(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteContext", mock.Anything, mock.MatchedBy(func(p []byte) bool { return len(p) == 16 })).Return(17, nil).Once()

	dev := NewMockDevice()
	dev.writer = w
	sess := newSession(t, dev)

	err := sess.Load(context.Background(), make([]byte, 16), 0)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Contains(t, err.Error(), "17 bytes written, 16 requested")
	w.AssertExpectations(t)
}

func TestLoadCancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := NewMockDevice()
	sess := newSession(t, dev, WithProgressCallback(func(p Progress) {
		cancel()
	}))

	err := sess.Load(ctx, make([]byte, 3*protocol.ChunkSize), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, dev.requests, 1)
}

func TestLoadCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dev := NewMockDevice()
	sess := newSession(t, dev)

	err := sess.Load(ctx, make([]byte, 8), 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dev.controls)
}

func TestCommandsWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dev := NewMockDevice()
	sess := newSession(t, dev)

	err := sess.Run(ctx, 0x80000000)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "send RUN")
	assert.False(t, IsTransportError(err))

	err = sess.Load(ctx, nil, 0)
	assert.Contains(t, err.Error(), "send LOAD")

	_, err = sess.Recv(ctx, protocol.CmdLoad, 4)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "receive LOAD")

	assert.Empty(t, dev.controls)
}

func TestLoadProgress(t *testing.T) {
	var reports []Progress
	dev := NewMockDevice()
	sess := newSession(t, dev, WithProgressCallback(func(p Progress) {
		reports = append(reports, p)
	}))

	length := 2*protocol.ChunkSize + 10
	require.NoError(t, sess.Load(context.Background(), make([]byte, length), 0x40))

	require.Len(t, reports, 3)
	prev := 0
	for _, p := range reports {
		assert.Equal(t, PhaseLoading, p.Phase)
		assert.Equal(t, uint32(0x40), p.Address)
		assert.Equal(t, length, p.TotalBytes)
		assert.Greater(t, p.BytesWritten, prev)
		prev = p.BytesWritten
	}
	assert.Equal(t, length, reports[2].BytesWritten)
	assert.Equal(t, 100.0, reports[2].Percentage)
}

func TestWithChunkSize(t *testing.T) {
	dev := NewMockDevice()
	sess := newSession(t, dev, WithChunkSize(512), WithChunkSize(-1))

	require.NoError(t, sess.Load(context.Background(), make([]byte, 1500), 0))
	assert.Equal(t, []int{512, 512, 476}, dev.requests)
}

func TestRun(t *testing.T) {
	dev := NewMockDevice()
	sess := newSession(t, dev)

	require.NoError(t, sess.Run(context.Background(), 0xC0008000))

	require.Len(t, dev.controls, 1)
	assert.Equal(t, protocol.OutSetup(protocol.CmdRun), dev.controls[0].setup)
	assert.Equal(t, []byte{0x00, 0x80, 0x00, 0xC0}, dev.controls[0].data)
	assert.Empty(t, dev.requests)
}

func TestRunTransportError(t *testing.T) {
	dev := NewMockDevice()
	sess := newSession(t, dev)
	dev.controlErr = errMockTransport

	err := sess.Run(context.Background(), 0)
	assert.True(t, IsTransportError(err))
	assert.Contains(t, err.Error(), "send RUN")
}

func TestSendWithoutPayload(t *testing.T) {
	dev := NewMockDevice()
	sess := newSession(t, dev)

	require.NoError(t, sess.Send(context.Background(), protocol.CmdRun, nil))
	require.Len(t, dev.controls, 1)
	assert.Equal(t, protocol.Setup{RequestType: 0x40, Request: 0x40, Value: 1, Index: 0}, dev.controls[0].setup)
	assert.Empty(t, dev.controls[0].data)
}

func TestRecv(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		wantErr bool
	}{
		{"zero count", 0, true},
		{"negative count", -1, true},
		{"too large", protocol.MaxRecvCount + 1, true},
		{"single byte", 1, false},
		{"status word", 4, false},
		{"default count", protocol.DefaultRecvCount, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewMockDevice()
			dev.response = []byte{0xAA, 0xBB, 0xCC, 0xDD}
			sess := newSession(t, dev)

			got, err := sess.Recv(context.Background(), protocol.CmdLoad, tt.count)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				assert.Empty(t, dev.controls)
				return
			}

			require.NoError(t, err)
			require.Len(t, dev.controls, 1)
			assert.Equal(t, protocol.InSetup(protocol.CmdLoad), dev.controls[0].setup)
			assert.Len(t, dev.controls[0].data, tt.count)

			want := dev.response
			if tt.count < len(want) {
				want = want[:tt.count]
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestRecvTransportError(t *testing.T) {
	dev := NewMockDevice()
	sess := newSession(t, dev)
	dev.controlErr = errMockTransport

	_, err := sess.Recv(context.Background(), protocol.CmdRun, 8)
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, errMockTransport)
}

func TestProgram(t *testing.T) {
	var reports []Progress
	logger := &MockLogger{}
	dev := NewMockDevice()
	sess := newSession(t, dev,
		WithLogger(logger),
		WithProgressCallback(func(p Progress) { reports = append(reports, p) }),
	)

	first := bytes.Repeat([]byte{0x11}, protocol.ChunkSize+1)
	second := bytes.Repeat([]byte{0x22}, 100)
	entry := uint32(0x80000000)

	err := sess.Program(context.Background(), []Segment{
		{Name: "spl", Address: 0x0, Data: first},
		{Address: 0x80000000, Data: second},
	}, &entry)
	require.NoError(t, err)

	require.Len(t, dev.controls, 3)
	assert.Equal(t, uint16(protocol.CmdLoad), dev.controls[0].setup.Value)
	assert.Equal(t, uint16(protocol.CmdLoad), dev.controls[1].setup.Value)
	assert.Equal(t, uint16(protocol.CmdRun), dev.controls[2].setup.Value)
	assert.Equal(t, append(first, second...), dev.received.Bytes())

	require.NotEmpty(t, reports)
	prev := 0
	for _, p := range reports {
		assert.GreaterOrEqual(t, p.BytesWritten, prev)
		assert.Equal(t, len(first)+len(second), p.TotalBytes)
		prev = p.BytesWritten
	}
	assert.Equal(t, "spl", reports[0].Segment)
	assert.Equal(t, "segment 1", reports[2].Segment)
	assert.Equal(t, PhaseRunning, reports[len(reports)-2].Phase)
	assert.Equal(t, PhaseComplete, reports[len(reports)-1].Phase)

	assert.Contains(t, logger.infoMsgs, "programming complete")
	assert.Contains(t, logger.infoMsgs, "run sent")
	assert.Contains(t, logger.debugMsgs, "session ready")
}

func TestProgramWithoutRun(t *testing.T) {
	dev := NewMockDevice()
	sess := newSession(t, dev)

	require.NoError(t, sess.Program(context.Background(), []Segment{{Data: []byte{1, 2, 3}}}, nil))
	require.Len(t, dev.controls, 1)
	assert.Equal(t, uint16(protocol.CmdLoad), dev.controls[0].setup.Value)
}

func TestProgramNothingToDo(t *testing.T) {
	sess := newSession(t, NewMockDevice())

	err := sess.Program(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestProgramFailureNamesSegment(t *testing.T) {
	logger := &MockLogger{}
	dev := NewMockDevice()
	dev.writeErr = errMockTransport
	sess := newSession(t, dev, WithLogger(logger))

	entry := uint32(0)
	err := sess.Program(context.Background(), []Segment{{Name: "kernel", Data: []byte{1}}}, &entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load kernel")
	assert.True(t, IsTransportError(err))
	assert.Len(t, dev.controls, 1, "RUN must not follow a failed load")
	assert.Contains(t, logger.errorMsgs, "bulk write failed")
}

func TestIsErrorHelpers(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), &TransportError{Op: "x", Err: errMockTransport})
	assert.True(t, IsTransportError(wrapped))
	assert.False(t, IsDeviceProtocolError(wrapped))
}
