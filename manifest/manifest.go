package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/moffa90/go-recovery/recovery"
)

// Manifest represents a parsed load manifest.
type Manifest struct {
	// Device optionally overrides the vendor and product IDs to open
	Device Device `yaml:"device"`

	// Segments are loaded in order
	Segments []Segment `yaml:"segments"`

	// Run is the address to jump to after loading (optional)
	Run *uint32 `yaml:"run"`

	// baseDir resolves relative segment files
	baseDir string
}

// Device holds optional USB identifiers.
type Device struct {
	// Vendor is the USB vendor ID
	Vendor *uint16 `yaml:"vendor"`

	// Product is the USB product ID
	Product *uint16 `yaml:"product"`
}

// Segment describes one block to upload.
type Segment struct {
	// Name labels the segment in logs (optional)
	Name string `yaml:"name"`

	// File is the image to upload, relative to the manifest directory
	File string `yaml:"file"`

	// Fill uploads this many zero bytes instead of a file
	Fill *uint32 `yaml:"fill"`

	// Address is the target address
	Address uint32 `yaml:"address"`
}

// IDs returns the manifest's vendor and product IDs, falling back to the
// given defaults for any that are absent.
func (m *Manifest) IDs(defaultVendor, defaultProduct uint16) (vendor, product uint16) {
	vendor, product = defaultVendor, defaultProduct
	if m.Device.Vendor != nil {
		vendor = *m.Device.Vendor
	}
	if m.Device.Product != nil {
		product = *m.Device.Product
	}
	return vendor, product
}

// Path resolves the segment's file against the manifest directory.
func (m *Manifest) Path(seg Segment) string {
	if seg.File == "" || filepath.IsAbs(seg.File) || m.baseDir == "" {
		return seg.File
	}
	return filepath.Join(m.baseDir, seg.File)
}

// Load reads every segment's data and returns them ready for
// recovery.Session.Program.
func (m *Manifest) Load() ([]recovery.Segment, error) {
	segments := make([]recovery.Segment, 0, len(m.Segments))

	for i, seg := range m.Segments {
		name := seg.Name
		if name == "" {
			name = fmt.Sprintf("segment %d", i)
		}

		var data []byte
		if seg.Fill != nil {
			data = make([]byte, *seg.Fill)
		} else {
			path := m.Path(seg)
			var err error
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, &LoadError{
					File:    path,
					Message: fmt.Sprintf("failed to read %s", name),
					Cause:   err,
				}
			}
		}

		segments = append(segments, recovery.Segment{
			Name:    name,
			Address: seg.Address,
			Data:    data,
		})
	}

	return segments, nil
}
