package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"hsd-scene-io/internal/export"
	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/scenefile"
)

// Config holds paths and the import/export settings of the CLI tools.
type Config struct {
	// Paths
	InputDir   string `json:"input_dir"`
	OutputDir  string `json:"output_dir"`
	CachePath  string `json:"cache_path"`
	TextureDir string `json:"texture_dir"`

	// Import settings
	Section         string  `json:"section"`
	Offset          int     `json:"offset"`
	DataKind        string  `json:"data_kind"`
	GlobalScale     float64 `json:"global_scale"`
	UnitScale       float64 `json:"unit_scale"`
	ImportAnimation *bool   `json:"import_animation"`
	IKHack          *bool   `json:"ik_hack"`
	UseMaxFrame     *bool   `json:"use_max_frame"`
	MaxFrame        int     `json:"max_frame"`
	AxisForward     string  `json:"axis_forward"`
	AxisUp          string  `json:"axis_up"`

	// Export settings
	ExportScale    float64 `json:"export_scale"`
	ExportForward  string  `json:"export_axis_forward"`
	ExportUp       string  `json:"export_axis_up"`
	ASCII          bool    `json:"ascii"`
	UseSelection   bool    `json:"use_selection"`
	ApplyModifiers *bool   `json:"apply_modifiers"`

	// Output settings
	Format    string `json:"format"`
	Compress  bool   `json:"compress"`
	Workers   int    `json:"workers"`
	KeepGoing bool   `json:"keep_going"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	InputDir  string
	OutputDir string
	CachePath string
	Section   string
	Format    string
	Workers   int
	KeepGoing bool
	ASCII     bool
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.InputDir != "" {
		c.InputDir = flags.InputDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.CachePath != "" {
		c.CachePath = flags.CachePath
	}
	if flags.Section != "" {
		c.Section = flags.Section
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	c.KeepGoing = c.KeepGoing || flags.KeepGoing
	c.ASCII = c.ASCII || flags.ASCII

	if c.InputDir == "" {
		c.InputDir, _ = os.Getwd()
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.InputDir, "out")
	} else if !filepath.IsAbs(c.OutputDir) {
		c.OutputDir = filepath.Join(c.InputDir, c.OutputDir)
	}
	if c.CachePath != "" && !filepath.IsAbs(c.CachePath) {
		c.CachePath = filepath.Join(c.InputDir, c.CachePath)
	}
	if c.TextureDir != "" && !filepath.IsAbs(c.TextureDir) {
		c.TextureDir = filepath.Join(c.InputDir, c.TextureDir)
	}

	// Import defaults
	if c.Section == "" {
		c.Section = scene.DefaultSection
	}
	if c.DataKind == "" {
		c.DataKind = node.DataScene.String()
	}
	if c.GlobalScale <= 0 {
		c.GlobalScale = 1
	}
	if c.UnitScale <= 0 {
		c.UnitScale = 1
	}
	if c.MaxFrame <= 0 {
		c.MaxFrame = scene.DefaultMaxFrame
	}
	setDefault(&c.ImportAnimation, true)
	setDefault(&c.IKHack, true)
	setDefault(&c.UseMaxFrame, true)
	if c.AxisForward == "" {
		c.AxisForward = mathutil.AxisY.String()
	}
	if c.AxisUp == "" {
		c.AxisUp = mathutil.AxisZ.String()
	}

	// Export defaults
	if c.ExportScale <= 0 {
		c.ExportScale = 1
	}
	if c.ExportForward == "" {
		c.ExportForward = mathutil.AxisY.String()
	}
	if c.ExportUp == "" {
		c.ExportUp = mathutil.AxisZ.String()
	}
	setDefault(&c.ApplyModifiers, true)

	if c.Format == "" {
		c.Format = scenefile.Binary.String()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

func setDefault(p **bool, v bool) {
	if *p == nil {
		*p = &v
	}
}

func flag(p *bool) bool {
	return p != nil && *p
}

// ImportOptions converts the resolved import settings.
func (c *Config) ImportOptions() (scene.ImportOptions, node.DataKind, error) {
	kind, err := node.ParseDataKind(c.DataKind)
	if err != nil {
		return scene.ImportOptions{}, 0, fmt.Errorf("config: %w", err)
	}
	fwd, err := mathutil.ParseAxis(c.AxisForward)
	if err != nil {
		return scene.ImportOptions{}, 0, fmt.Errorf("config: axis_forward: %w", err)
	}
	up, err := mathutil.ParseAxis(c.AxisUp)
	if err != nil {
		return scene.ImportOptions{}, 0, fmt.Errorf("config: axis_up: %w", err)
	}
	opts := scene.ImportOptions{
		GlobalScale:     c.GlobalScale,
		ImportAnimation: flag(c.ImportAnimation),
		IKHack:          flag(c.IKHack),
		MaxFrame:        c.MaxFrame,
		UseMaxFrame:     flag(c.UseMaxFrame),
		Units:           scene.Units(c.UnitScale),
		AxisForward:     fwd,
		AxisUp:          up,
	}
	if err := opts.Validate(); err != nil {
		return scene.ImportOptions{}, 0, fmt.Errorf("config: %w", err)
	}
	if _, err := opts.Conversion(); err != nil {
		return scene.ImportOptions{}, 0, fmt.Errorf("config: %w", err)
	}
	return opts, kind, nil
}

// ExportOptions converts the resolved export settings. Textures is left for
// the caller to fill in.
func (c *Config) ExportOptions() (export.Options, error) {
	fwd, err := mathutil.ParseAxis(c.ExportForward)
	if err != nil {
		return export.Options{}, fmt.Errorf("config: export_axis_forward: %w", err)
	}
	up, err := mathutil.ParseAxis(c.ExportUp)
	if err != nil {
		return export.Options{}, fmt.Errorf("config: export_axis_up: %w", err)
	}
	return export.Options{
		UseSelection:   c.UseSelection,
		GlobalScale:    c.ExportScale,
		ASCII:          c.ASCII,
		ApplyModifiers: flag(c.ApplyModifiers),
		AxisForward:    fwd,
		AxisUp:         up,
		Units:          scene.Units(c.UnitScale),
	}, nil
}

// OutputFormat is the scene file format and whether files are compressed.
func (c *Config) OutputFormat() (scenefile.Format, bool, error) {
	f, err := scenefile.ParseFormat(c.Format)
	if err != nil {
		return 0, false, fmt.Errorf("config: %w", err)
	}
	return f, c.Compress, nil
}
