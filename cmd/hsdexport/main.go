package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hsd-scene-io/internal/batch"
	"hsd-scene-io/internal/config"
	"hsd-scene-io/internal/export"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/scenefile"
	"hsd-scene-io/internal/texture"
)

func main() {
	configFile := flag.String("config", "", "Path to config.json file")
	output := flag.String("o", "", "Output file (default: input name with .dat, or .txt with -ascii)")
	ascii := flag.Bool("ascii", false, "Write an annotated hex listing instead of a binary archive")
	selection := flag.Bool("selection", false, "Write only models marked selected")
	textures := flag.String("textures", "", "Directory of replacement images named after the scene's textures")
	check := flag.Bool("check", false, "Re-import the result and verify it exports to the same bytes")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: hsdexport [flags] scene.{hsdscene,json}[.zst] | archive.dat\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(config.Flags{InputDir: filepath.Dir(input), ASCII: *ascii})
	cfg.UseSelection = cfg.UseSelection || *selection

	opts, err := cfg.ExportOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sc, err := load(&cfg, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, w := range sc.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", w)
	}

	texDir := *textures
	if texDir == "" {
		texDir = cfg.TextureDir
	}
	if texDir != "" {
		idx := texture.BuildIndex(texDir)
		fmt.Printf("Textures: %d indexed in %s\n", idx.Len(), texDir)
		texCache := texture.NewCache(idx)
		n, err := export.ReplaceTextures(sc, texCache)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, err := range texCache.Failed() {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		fmt.Printf("Textures: %d replaced\n", n)
	}

	data, err := export.Export(sc, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := *output
	if out == "" {
		ext := ".dat"
		if opts.ASCII {
			ext = ".txt"
		}
		base := strings.TrimSuffix(input, ".zst")
		out = strings.TrimSuffix(base, filepath.Ext(base)) + ext
		if out == input {
			out = strings.TrimSuffix(base, filepath.Ext(base)) + ".out" + ext
		}
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s → %s (%d bytes)\n", input, out, len(data))
	fmt.Printf("  %s\n", export.Describe(sc))

	if *check && !opts.ASCII {
		if err := verify(data, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("  check: re-import exports identically")
	}
}

// load reads a scene file, or imports an archive with the config's import
// settings.
func load(cfg *config.Config, path string) (*scene.Scene, error) {
	if !batch.Accept(path) {
		f, err := scenefile.Load(path)
		if err != nil {
			return nil, err
		}
		return f.Scene, nil
	}
	opts, kind, err := cfg.ImportOptions()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return scene.Import(data, cfg.Section, cfg.Offset, kind, opts)
}

func verify(data []byte, opts export.Options) error {
	io := scene.DefaultImportOptions()
	io.AxisForward, io.AxisUp = opts.AxisForward, opts.AxisUp
	io.GlobalScale, io.Units = opts.GlobalScale, opts.Units
	io.IKHack = false
	sc, err := scene.Import(data, export.RootSymbol, 0, node.DataScene, io)
	if err != nil {
		return fmt.Errorf("re-import: %w", err)
	}
	again, err := export.Export(sc, opts)
	if err != nil {
		return fmt.Errorf("re-export: %w", err)
	}
	if !bytes.Equal(again, data) {
		return fmt.Errorf("re-export differs (%d vs %d bytes)", len(again), len(data))
	}
	return nil
}
