package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse parses the manifest at path. Relative segment files are resolved
// against the directory containing path.
//
// Example:
//
//	m, err := manifest.Parse("/etc/recovery/board.yaml")
func Parse(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to open file", Cause: err}
	}
	defer func() { _ = f.Close() }()

	m, err := ParseReader(f, filepath.Dir(path))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.File == "" {
			le.File = path
		}
		return nil, err
	}
	return m, nil
}

// ParseReader parses a manifest from any io.Reader. baseDir resolves relative
// segment files; pass "" to leave them relative to the working directory.
//
// Example:
//
//	m, err := manifest.ParseReader(strings.NewReader(doc), ".")
func ParseReader(r io.Reader, baseDir string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Message: "failed to read manifest", Cause: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Message: "empty manifest"}
		}
		return nil, &LoadError{Line: errorLine(err), Message: "failed to parse YAML", Cause: err}
	}

	if err := m.validate(data); err != nil {
		return nil, err
	}

	m.baseDir = baseDir
	return &m, nil
}

func (m *Manifest) validate(data []byte) error {
	if len(m.Segments) == 0 && m.Run == nil {
		return &LoadError{Message: "manifest must have at least one segment or a run address"}
	}

	for i, seg := range m.Segments {
		switch {
		case seg.File != "" && seg.Fill != nil:
			return &LoadError{
				Line:    segmentLine(data, i),
				Message: fmt.Sprintf("segment %d: file and fill are mutually exclusive", i),
			}
		case seg.File == "" && seg.Fill == nil:
			return &LoadError{
				Line:    segmentLine(data, i),
				Message: fmt.Sprintf("segment %d: one of file or fill is required", i),
			}
		}
	}

	return nil
}

// errorLine extracts the line yaml.v3 reports for syntax and type errors.
// yaml.v3 only carries the position in the message text.
func errorLine(err error) int {
	msg := err.Error()
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg = te.Errors[0]
	}
	msg = strings.TrimPrefix(msg, "yaml: ")

	var line int
	if _, err := fmt.Sscanf(msg, "line %d:", &line); err != nil {
		return 0
	}
	return line
}

// segmentLine returns the line of the i-th entry under segments, or 0.
func segmentLine(data []byte, i int) int {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return 0
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return 0
	}
	for k := 0; k+1 < len(root.Content); k += 2 {
		if root.Content[k].Value != "segments" {
			continue
		}
		seq := root.Content[k+1]
		if seq.Kind != yaml.SequenceNode || i >= len(seq.Content) {
			return 0
		}
		return seq.Content[i].Line
	}
	return 0
}
