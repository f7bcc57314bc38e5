// Package scenefile stores imported scenes on disk so they can be inspected
// or fed back to the exporter without the original archive.
package scenefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DataDog/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/scene"
)

// Version is bumped when File changes incompatibly.
const Version = 2

// File wraps a scene with where it came from.
type File struct {
	Version  int          `msgpack:"version" json:"version"`
	Source   string       `msgpack:"source" json:"source"`
	Scene    *scene.Scene `msgpack:"scene" json:"scene"`
	Warnings []Warning    `msgpack:"warnings,omitempty" json:"warnings,omitempty"`
}

// Warning is a stored scene warning. A zero Kind marks a plain error kept
// as text; otherwise it is an *hsd.Error with its cause chain.
type Warning struct {
	Kind   hsd.Kind `msgpack:"kind,omitempty" json:"kind,omitempty"`
	Offset int64    `msgpack:"offset" json:"offset"`
	Path   string   `msgpack:"path,omitempty" json:"path,omitempty"`
	Msg    string   `msgpack:"msg" json:"msg"`
	Cause  *Warning `msgpack:"cause,omitempty" json:"cause,omitempty"`
}

// NewWarning records err.
func NewWarning(err error) Warning {
	he, ok := err.(*hsd.Error)
	if !ok {
		return Warning{Offset: -1, Msg: err.Error()}
	}
	w := Warning{Kind: he.Kind, Offset: he.Offset, Path: he.Path, Msg: he.Msg}
	if he.Err != nil {
		c := NewWarning(he.Err)
		w.Cause = &c
	}
	return w
}

// Err rebuilds the error NewWarning recorded. Its text is unchanged and
// errors.Is matches the same hsd sentinels.
func (w Warning) Err() error {
	if w.Kind == 0 {
		return errors.New(w.Msg)
	}
	e := &hsd.Error{Kind: w.Kind, Offset: w.Offset, Path: w.Path, Msg: w.Msg}
	if w.Cause != nil {
		e.Err = w.Cause.Err()
	}
	return e
}

// New wraps sc for writing.
func New(source string, sc *scene.Scene) *File {
	f := &File{Version: Version, Source: source, Scene: sc}
	for _, w := range sc.Warnings {
		f.Warnings = append(f.Warnings, NewWarning(w))
	}
	return f
}

// Errors rebuilds the stored warnings.
func (f *File) Errors() []error {
	var out []error
	for _, w := range f.Warnings {
		out = append(out, w.Err())
	}
	return out
}

// Format selects the encoding of a scene file.
type Format int

const (
	Binary Format = iota // msgpack
	ASCII                // indented JSON
)

func (f Format) String() string {
	if f == ASCII {
		return "json"
	}
	return "msgpack"
}

// Ext is the file extension for the format, without compression.
func (f Format) Ext() string {
	if f == ASCII {
		return ".json"
	}
	return ".hsdscene"
}

// ParseFormat accepts "msgpack", "binary", "json" and "ascii".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "msgpack", "binary", "bin", "":
		return Binary, nil
	case "json", "ascii":
		return ASCII, nil
	}
	return 0, fmt.Errorf("scenefile: unknown format %q", s)
}

// FormatOf infers the format from a path. A trailing ".zst" marks the file
// as zstd-compressed.
func FormatOf(path string) (format Format, compressed bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zst" {
		compressed = true
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	}
	if ext == ".json" {
		return ASCII, compressed
	}
	return Binary, compressed
}

// Marshal encodes f.
func Marshal(f *File, format Format) ([]byte, error) {
	switch format {
	case ASCII:
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("scenefile: encode json: %w", err)
		}
		return append(data, '\n'), nil
	default:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.UseCompactInts(true)
		if err := enc.Encode(f); err != nil {
			return nil, fmt.Errorf("scenefile: encode msgpack: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// Unmarshal decodes data written by Marshal.
func Unmarshal(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case ASCII:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("scenefile: decode json: %w", err)
		}
	default:
		if err := msgpack.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("scenefile: decode msgpack: %w", err)
		}
	}
	if f.Version != Version {
		return nil, fmt.Errorf("scenefile: version %d, want %d", f.Version, Version)
	}
	if f.Scene == nil {
		return nil, fmt.Errorf("scenefile: no scene")
	}
	return &f, nil
}

// Save writes f to path in the format the path names.
func Save(path string, f *File) error {
	format, compressed := FormatOf(path)
	data, err := Marshal(f, format)
	if err != nil {
		return err
	}
	if compressed {
		if data, err = zstd.Compress(nil, data); err != nil {
			return fmt.Errorf("scenefile: compress %s: %w", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("scenefile: write %s: %w", path, err)
	}
	return nil
}

// Load reads a file written by Save.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenefile: read %s: %w", path, err)
	}
	format, compressed := FormatOf(path)
	if compressed {
		if data, err = zstd.Decompress(nil, data); err != nil {
			return nil, fmt.Errorf("scenefile: decompress %s: %w", path, err)
		}
	}
	f, err := Unmarshal(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return f, nil
}
