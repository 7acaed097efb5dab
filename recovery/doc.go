// Package recovery provides a session API for USB devices in recovery mode.
//
// # Overview
//
// A recovery bootloader accepts two vendor commands on the control pipe:
//   - LOAD: announce an address and a length, then receive the bytes on a bulk OUT endpoint
//   - RUN: jump to an address
//
// A Session owns one open device, resolves its bulk OUT endpoint, and
// implements the chunked upload loop.
//
// # Basic Usage
//
//	dev, err := usbdev.Open(protocol.DefaultVendorID, protocol.DefaultProductID)
//	if errors.Is(err, recovery.ErrDeviceNotFound) {
//	    log.Fatal("no device in recovery mode")
//	}
//	defer dev.Close()
//
//	sess, err := recovery.New(dev)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := sess.Load(ctx, image, 0x80000000); err != nil {
//	    log.Fatal(err)
//	}
//	if err := sess.Run(ctx, 0x80000000); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
//	sess, err := recovery.New(dev,
//	    recovery.WithProgressCallback(func(p recovery.Progress) {
//	        fmt.Printf("[%s] %.1f%% - %d/%d bytes\n",
//	            p.Phase, p.Percentage, p.BytesWritten, p.TotalBytes)
//	    }),
//	)
//
// # Logging
//
// Any type with Debug, Info and Error methods can be passed to WithLogger.
// NewSlogLogger wraps a *slog.Logger:
//
//	sess, err := recovery.New(dev, recovery.WithLogger(recovery.NewSlogLogger(logger)))
//
// # Error Handling
//
//   - ErrDeviceNotFound: no device matches the vendor/product IDs (returned by usbdev)
//   - DeviceProtocolError: descriptors lack the expected interface or OUT endpoint
//   - ErrInvalidArgument: a precondition was violated, e.g. a zero-length receive
//   - TransportError: a control or bulk transfer failed
//
// Errors are returned immediately. Nothing is retried and a failed upload is
// not rolled back.
//
// # Hardware Independence
//
// Session consumes the Device interface. The usbdev package implements it on
// top of libusb; tests and simulators can implement it in memory.
package recovery
