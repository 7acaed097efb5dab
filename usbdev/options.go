package usbdev

import "time"

// Config holds the options used when opening a device.
type Config struct {
	// ControlTimeout bounds each control transfer (0 means libusb's default, no timeout)
	ControlTimeout time.Duration

	// AutoDetach detaches kernel drivers from claimed interfaces
	AutoDetach bool

	// DebugLevel is the libusb debug level (0..3)
	DebugLevel int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		ControlTimeout: 5 * time.Second,
		AutoDetach:     true,
	}
}

// Option is a functional option for opening a Device.
type Option func(*Config)

// WithControlTimeout sets the timeout for control transfers.
func WithControlTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout >= 0 {
			c.ControlTimeout = timeout
		}
	}
}

// WithAutoDetach enables or disables kernel driver auto-detach. Default is true.
func WithAutoDetach(detach bool) Option {
	return func(c *Config) {
		c.AutoDetach = detach
	}
}

// WithDebugLevel sets the libusb debug level (0..3).
func WithDebugLevel(level int) Option {
	return func(c *Config) {
		if level >= 0 && level <= 3 {
			c.DebugLevel = level
		}
	}
}
