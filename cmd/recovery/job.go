package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moffa90/go-recovery/manifest"
	"github.com/moffa90/go-recovery/recovery"
)

// job is everything the command will do once the device is open.
type job struct {
	vendor   uint16
	product  uint16
	segments []recovery.Segment
	entry    *uint32
}

func buildJob(cfg Config) (*job, error) {
	j := &job{
		vendor:  cfg.VendorID.uint16(),
		product: cfg.ProductID.uint16(),
	}

	if cfg.Manifest != "" {
		if cfg.Image != "" || cfg.FillKiB > 0 {
			return nil, errors.New("-manifest cannot be combined with an image or -fill")
		}
		return j, j.fromManifest(cfg)
	}

	switch {
	case cfg.Image != "" && cfg.FillKiB > 0:
		return nil, errors.New("an image and -fill are mutually exclusive")
	case cfg.Image != "":
		data, err := os.ReadFile(cfg.Image)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		j.segments = append(j.segments, recovery.Segment{
			Name:    filepath.Base(cfg.Image),
			Address: cfg.Address.uint32(),
			Data:    data,
		})
	case cfg.FillKiB > 0:
		j.segments = append(j.segments, recovery.Segment{
			Name:    "zero fill",
			Address: cfg.Address.uint32(),
			Data:    make([]byte, cfg.FillKiB*1024),
		})
	}

	if cfg.Run || cfg.RunAddress.set {
		entry := cfg.Address.uint32()
		if cfg.RunAddress.set {
			entry = cfg.RunAddress.uint32()
		}
		j.entry = &entry
	}

	if len(j.segments) == 0 && j.entry == nil {
		return nil, errors.New("nothing to do: give an image, -fill, -manifest or -run")
	}

	return j, nil
}

// fromManifest fills the job from a manifest. Explicit -vid/-pid/-run-addr
// flags take precedence over the manifest.
func (j *job) fromManifest(cfg Config) error {
	m, err := manifest.Parse(cfg.Manifest)
	if err != nil {
		return err
	}

	vendor, product := m.IDs(j.vendor, j.product)
	if !cfg.VendorID.set {
		j.vendor = vendor
	}
	if !cfg.ProductID.set {
		j.product = product
	}

	j.segments, err = m.Load()
	if err != nil {
		return err
	}

	j.entry = m.Run
	if j.entry == nil && cfg.Run {
		entry := cfg.Address.uint32()
		j.entry = &entry
	}
	if cfg.RunAddress.set {
		entry := cfg.RunAddress.uint32()
		j.entry = &entry
	}
	return nil
}
