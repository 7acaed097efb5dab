package recovery

import "github.com/moffa90/go-recovery/protocol"

// Config holds the session configuration.
type Config struct {
	// ProgressCallback is called during uploads to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// ChunkSize is the maximum number of bytes per bulk write
	// Default is protocol.ChunkSize (64 KiB)
	ChunkSize int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		ChunkSize: protocol.ChunkSize,
	}
}

// Option is a functional option for configuring the Session.
type Option func(*Config)

// WithProgressCallback sets a callback function to track upload progress.
//
// Example:
//
//	sess, err := recovery.New(dev,
//	    recovery.WithProgressCallback(func(p recovery.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the session operations.
//
// Example:
//
//	sess, err := recovery.New(dev, recovery.WithLogger(recovery.NewSlogLogger(slog.Default())))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithChunkSize sets the maximum number of bytes per bulk write.
// Non-positive values are ignored. Default is 64 KiB, which is what the
// recovery firmware expects; change it only for devices known to differ.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}
