// Package usbdev opens recovery devices through libusb (github.com/google/gousb)
// and exposes them as recovery.Device.
//
// # Usage
//
//	dev, err := usbdev.Open(protocol.DefaultVendorID, protocol.DefaultProductID,
//	    usbdev.WithControlTimeout(2*time.Second),
//	)
//	if errors.Is(err, recovery.ErrDeviceNotFound) {
//	    // nothing plugged in, or not in recovery mode
//	}
//	defer dev.Close()
//
//	sess, err := recovery.New(dev)
//
// Building this package requires cgo and the libusb-1.0 development headers.
package usbdev
