// Package manifest parses YAML load manifests for the recovery loader.
//
// A manifest lists the segments to upload, in order, and optionally the
// address to run afterwards:
//
//	device:
//	  vendor: 0x0000
//	  product: 0x7f20
//	segments:
//	  - name: u-boot
//	    file: u-boot.bin
//	    address: 0x80000000
//	  - name: scratch
//	    fill: 4194304
//	    address: 0x0
//	run: 0x80000000
//
// Relative file paths are resolved against the manifest's directory. A
// segment gives either file or fill (a count of zero bytes), never both.
//
// Example:
//
//	m, err := manifest.Parse("board.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	segments, err := m.Load()
//	err = sess.Program(ctx, segments, m.Run)
package manifest
