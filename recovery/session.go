package recovery

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-recovery/protocol"
)

// Session drives the recovery protocol on one claimed device.
// It resolves the bulk OUT endpoint once at construction; reconfiguring the
// device afterwards invalidates the session.
//
// Session is not safe for concurrent use. It assumes exclusive ownership of
// the device for its whole lifetime; closing the device is the caller's job.
type Session struct {
	device   Device
	out      BulkWriter
	setting  InterfaceDesc
	endpoint EndpointDesc
	config   Config
}

// Segment is one block of data to load at an address.
type Segment struct {
	// Name identifies the segment in logs and progress reports (optional)
	Name string

	// Address is the target address of the first byte
	Address uint32

	// Data is uploaded verbatim
	Data []byte
}

// New creates a Session on an already-open device.
// It activates the default configuration, reads the active configuration,
// looks up the current alternate setting of the first interface, and resolves
// the OUT endpoint of that setting. No command is sent.
//
// Example:
//
//	dev, err := usbdev.Open(protocol.DefaultVendorID, protocol.DefaultProductID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	sess, err := recovery.New(dev)
func New(device Device, opts ...Option) (*Session, error) {
	if device == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		device: device,
		config: cfg,
	}

	if err := device.Configure(); err != nil {
		return nil, &DeviceProtocolError{Reason: "activate configuration", Err: err}
	}

	config, err := device.ActiveConfig()
	if err != nil {
		return nil, &DeviceProtocolError{Reason: "read active configuration", Err: err}
	}
	if len(config.Interfaces) == 0 {
		return nil, &DeviceProtocolError{
			Reason: fmt.Sprintf("configuration %d has no interfaces", config.Number),
		}
	}

	number := config.Interfaces[0].Number
	alt, err := device.AltSetting(number)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("get interface %d", number), Err: err}
	}

	setting, ok := config.findInterface(number, alt)
	if !ok {
		return nil, &DeviceProtocolError{
			Reason: fmt.Sprintf("no descriptor for interface %d alternate setting %d", number, alt),
		}
	}

	ep, ok := setting.findOutEndpoint()
	if !ok {
		return nil, &DeviceProtocolError{
			Reason: fmt.Sprintf("interface %d alternate setting %d has no OUT endpoint", number, alt),
		}
	}

	out, err := device.OpenOut(setting, ep)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("open endpoint 0x%02X", ep.Address), Err: err}
	}

	s.out = out
	s.setting = setting
	s.endpoint = ep

	s.logDebug("session ready",
		"config", config.Number,
		"interface", setting.Number,
		"alternate", setting.Alternate,
		"endpoint", fmt.Sprintf("0x%02X", ep.Address),
		"transfer", ep.TransferType.String(),
	)

	return s, nil
}

// Interface returns the interface setting the session resolved.
func (s *Session) Interface() InterfaceDesc {
	return s.setting
}

// Endpoint returns the bulk OUT endpoint the session writes to.
func (s *Session) Endpoint() EndpointDesc {
	return s.endpoint
}

// Send issues cmd as a vendor OUT control transfer with payload as the data
// stage. A nil payload sends a zero-length data stage. No response is read.
func (s *Session) Send(ctx context.Context, cmd protocol.Command, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}

	setup := protocol.OutSetup(cmd)
	n, err := s.device.Control(setup.RequestType, setup.Request, setup.Value, setup.Index, payload)
	if err != nil {
		return &TransportError{Op: "send " + cmd.String(), Err: err}
	}
	if n != len(payload) {
		return &TransportError{
			Op:  "send " + cmd.String(),
			Err: fmt.Errorf("%w: %d of %d bytes", io.ErrShortWrite, n, len(payload)),
		}
	}

	s.logDebug("command sent", "command", cmd.String(), "payload", fmt.Sprintf("% X", payload))
	return nil
}

// Recv issues cmd as a vendor IN control transfer reading up to count bytes
// and returns what the device sent. count must be between 1 and
// protocol.MaxRecvCount.
func (s *Session) Recv(ctx context.Context, cmd protocol.Command, count int) ([]byte, error) {
	if count <= 0 || count > protocol.MaxRecvCount {
		return nil, fmt.Errorf("%w: receive count %d outside 1-%d", ErrInvalidArgument, count, protocol.MaxRecvCount)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("receive %s: %w", cmd, err)
	}

	setup := protocol.InSetup(cmd)
	buf := make([]byte, count)
	n, err := s.device.Control(setup.RequestType, setup.Request, setup.Value, setup.Index, buf)
	if err != nil {
		return nil, &TransportError{Op: "receive " + cmd.String(), Err: err}
	}

	s.logDebug("response received", "command", cmd.String(), "bytes", n)
	return buf[:n], nil
}

// Load announces data with a LOAD command and streams it to the OUT endpoint
// in chunks of at most ChunkSize bytes. The cursor advances by the count each
// bulk write reports, so short writes are continued from where they stopped.
//
// On error the device holds a prefix of data; the upload cannot be resumed and
// the device must be reset before loading again.
//
// Example:
//
//	image, _ := os.ReadFile("u-boot.bin")
//	err := sess.Load(ctx, image, 0x80000000)
func (s *Session) Load(ctx context.Context, data []byte, address uint32) error {
	startTime := time.Now()
	total := len(data)

	err := s.load(ctx, data, address, func(written int) {
		s.reportProgress(Progress{
			Phase:          PhaseLoading,
			CurrentSegment: 1,
			TotalSegments:  1,
			Address:        address,
			BytesWritten:   written,
			TotalBytes:     total,
			Percentage:     percentage(written, total),
			ElapsedTime:    time.Since(startTime),
		})
	})
	if err != nil {
		return err
	}

	s.logInfo("load complete",
		"address", fmt.Sprintf("0x%08X", address),
		"bytes", total,
		"elapsed", time.Since(startTime).String(),
	)
	return nil
}

// Run sends the RUN command for address. It returns once the command has been
// transmitted; whether the device actually jumped is not observable.
func (s *Session) Run(ctx context.Context, address uint32) error {
	if err := s.Send(ctx, protocol.CmdRun, protocol.BuildRunPayload(address)); err != nil {
		return err
	}

	s.logInfo("run sent", "address", fmt.Sprintf("0x%08X", address))
	return nil
}

// Program loads every segment in order and, if entry is non-nil, sends RUN
// for *entry afterwards. Progress is reported across the whole job.
//
// Example:
//
//	entry := uint32(0x80000000)
//	err := sess.Program(ctx, []recovery.Segment{
//	    {Name: "u-boot", Address: 0x80000000, Data: uboot},
//	}, &entry)
func (s *Session) Program(ctx context.Context, segments []Segment, entry *uint32) error {
	if len(segments) == 0 && entry == nil {
		return fmt.Errorf("%w: nothing to load or run", ErrInvalidArgument)
	}

	startTime := time.Now()
	total := 0
	for _, seg := range segments {
		total += len(seg.Data)
	}

	done := 0
	for i, seg := range segments {
		name := seg.Name
		if name == "" {
			name = fmt.Sprintf("segment %d", i)
		}

		s.logInfo("loading segment",
			"segment", name,
			"address", fmt.Sprintf("0x%08X", seg.Address),
			"bytes", len(seg.Data),
		)

		base := done
		err := s.load(ctx, seg.Data, seg.Address, func(written int) {
			s.reportProgress(Progress{
				Phase:          PhaseLoading,
				Segment:        name,
				CurrentSegment: i + 1,
				TotalSegments:  len(segments),
				Address:        seg.Address,
				BytesWritten:   base + written,
				TotalBytes:     total,
				Percentage:     percentage(base+written, total),
				ElapsedTime:    time.Since(startTime),
			})
		})
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		done += len(seg.Data)
	}

	if entry != nil {
		s.reportProgress(Progress{
			Phase:         PhaseRunning,
			TotalSegments: len(segments),
			Address:       *entry,
			BytesWritten:  done,
			TotalBytes:    total,
			Percentage:    percentage(done, total),
			ElapsedTime:   time.Since(startTime),
		})
		if err := s.Run(ctx, *entry); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	s.reportProgress(Progress{
		Phase:         PhaseComplete,
		TotalSegments: len(segments),
		BytesWritten:  done,
		TotalBytes:    total,
		Percentage:    100,
		ElapsedTime:   time.Since(startTime),
	})

	s.logInfo("programming complete",
		"segments", len(segments),
		"bytes", done,
		"elapsed", time.Since(startTime).String(),
	)
	return nil
}

// load sends LOAD and streams data, calling report with the cumulative byte
// count after every bulk write.
func (s *Session) load(ctx context.Context, data []byte, address uint32, report func(written int)) error {
	length := len(data)
	payload, err := protocol.BuildLoadPayload(address, length)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if err := s.Send(ctx, protocol.CmdLoad, payload); err != nil {
		return err
	}

	chunkSize := s.config.ChunkSize
	written := 0
	for written < length {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled after %d of %d bytes: %w", written, length, err)
		}

		end := written + chunkSize
		if end > length {
			end = length
		}
		requested := end - written

		n, err := s.out.WriteContext(ctx, data[written:end])
		if err != nil {
			s.logError("bulk write failed", "offset", written, "error", err)
			return &TransportError{Op: fmt.Sprintf("bulk write at offset %d", written), Err: err}
		}
		if n <= 0 {
			return &TransportError{Op: fmt.Sprintf("bulk write at offset %d", written), Err: errShortWrite}
		}
		if n > requested {
			return &TransportError{
				Op:  fmt.Sprintf("bulk write at offset %d", written),
				Err: fmt.Errorf("transport reported %d bytes written, %d requested", n, requested),
			}
		}

		written += n
		report(written)
	}

	return nil
}

// reportProgress calls the progress callback if configured.
func (s *Session) reportProgress(progress Progress) {
	if s.config.ProgressCallback != nil {
		s.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (s *Session) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (s *Session) logInfo(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (s *Session) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, keysAndValues...)
	}
}
