// Command recovery uploads images to a USB device in recovery mode and
// optionally starts them.
//
// Usage:
//
//	recovery [flags] [image]
//
// Flags:
//
//	-vid value          USB vendor ID (default 0x0)
//	-pid value          USB product ID (default 0x7F20)
//	-addr value         Load address (default 0x0)
//	-run                Send RUN after loading
//	-run-addr value     Address for RUN (defaults to -addr)
//	-fill int           Upload this many KiB of zeros instead of an image
//	-manifest string    YAML manifest describing several segments
//	-timeout duration   Control transfer timeout (default 5s)
//	-usb-debug int      libusb debug level (0..3)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Upload u-boot and jump to it
//	recovery -addr 0x80000000 -run u-boot.bin
//
//	# Upload 4 MiB of zeros to address 0
//	recovery -fill 4096
//
//	# Run a manifest
//	recovery -manifest board.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gousb"

	"github.com/moffa90/go-recovery/protocol"
	"github.com/moffa90/go-recovery/recovery"
	"github.com/moffa90/go-recovery/usbdev"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitNotFound = 3
)

// Config holds the command configuration.
type Config struct {
	VendorID   *numberFlag
	ProductID  *numberFlag
	Address    *numberFlag
	RunAddress *numberFlag
	Run        bool
	FillKiB    int
	Manifest   string
	Image      string
	Timeout    time.Duration
	USBDebug   int
	LogLevel   string
}

// device is what the command needs from an opened device.
type device interface {
	recovery.Device
	Close() error
}

// openDevice is replaced in tests.
var openDevice = func(vendor, product uint16, cfg Config) (device, error) {
	return usbdev.Open(gousb.ID(vendor), gousb.ID(product),
		usbdev.WithControlTimeout(cfg.Timeout),
		usbdev.WithDebugLevel(cfg.USBDebug),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "recovery: %v\n", err)
		return exitUsage
	}

	logger, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "recovery: %v\n", err)
		return exitUsage
	}

	j, err := buildJob(cfg)
	if err != nil {
		logger.Error("invalid job", "error", err)
		return exitUsage
	}

	dev, err := openDevice(j.vendor, j.product, cfg)
	if err != nil {
		if errors.Is(err, recovery.ErrDeviceNotFound) {
			logger.Error("no device found", "vendor", fmt.Sprintf("0x%04X", j.vendor), "product", fmt.Sprintf("0x%04X", j.product))
			return exitNotFound
		}
		logger.Error("open device failed", "error", err)
		return exitFailure
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Error("close device failed", "error", err)
		}
	}()

	sess, err := recovery.New(dev,
		recovery.WithLogger(recovery.NewSlogLogger(logger)),
		recovery.WithProgressCallback(progressLogger(logger)),
	)
	if err != nil {
		logger.Error("device not usable", "error", err)
		return exitFailure
	}

	if err := sess.Program(ctx, j.segments, j.entry); err != nil {
		logger.Error("recovery failed", "error", err)
		return exitFailure
	}

	return exitOK
}

func parseFlags(args []string, output io.Writer) (Config, error) {
	cfg := Config{
		VendorID:   newNumberFlag(protocol.DefaultVendorID, 16),
		ProductID:  newNumberFlag(protocol.DefaultProductID, 16),
		Address:    newNumberFlag(0, 32),
		RunAddress: newNumberFlag(0, 32),
	}

	fs := flag.NewFlagSet("recovery", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Var(cfg.VendorID, "vid", "USB vendor ID")
	fs.Var(cfg.ProductID, "pid", "USB product ID")
	fs.Var(cfg.Address, "addr", "Load address")
	fs.Var(cfg.RunAddress, "run-addr", "Address for RUN (defaults to -addr)")
	fs.BoolVar(&cfg.Run, "run", false, "Send RUN after loading")
	fs.IntVar(&cfg.FillKiB, "fill", 0, "Upload this many KiB of zeros instead of an image")
	fs.StringVar(&cfg.Manifest, "manifest", "", "YAML manifest describing several segments")
	fs.DurationVar(&cfg.Timeout, "timeout", 5*time.Second, "Control transfer timeout")
	fs.IntVar(&cfg.USBDebug, "usb-debug", 0, "libusb debug level (0..3)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		cfg.Image = fs.Arg(0)
	default:
		return cfg, fmt.Errorf("expected at most one image, got %d arguments", fs.NArg())
	}

	if cfg.FillKiB < 0 {
		return cfg, fmt.Errorf("-fill must not be negative")
	}

	return cfg, nil
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid -log-level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// progressLogger logs progress at debug level, and at info level whenever
// another tenth of the job completes.
func progressLogger(logger *slog.Logger) recovery.ProgressCallback {
	lastDecile := -1
	return func(p recovery.Progress) {
		if p.Phase != recovery.PhaseLoading {
			return
		}
		logger.Debug("progress",
			"segment", p.Segment,
			"written", p.BytesWritten,
			"total", p.TotalBytes,
		)
		if decile := int(p.Percentage) / 10; decile != lastDecile {
			lastDecile = decile
			logger.Info("uploading",
				"percent", fmt.Sprintf("%.0f", p.Percentage),
				"elapsed", p.ElapsedTime.Round(time.Millisecond).String(),
			)
		}
	}
}
