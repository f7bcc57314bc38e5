package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hsd-scene-io/internal/batch"
	"hsd-scene-io/internal/cache"
	"hsd-scene-io/internal/config"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	inputDir := flag.String("input", "", "Directory holding the archives (default: current directory)")
	outputDir := flag.String("output", "", "Output directory (default: <input>/out)")
	cachePath := flag.String("cache", "", "Import cache file (default: no cache)")
	section := flag.String("section", "", "Root symbol to import (default: scene_data)")
	format := flag.String("format", "", "Scene file format: msgpack or json (default: msgpack)")
	workers := flag.Int("workers", 0, "Number of worker goroutines with -keep-going (default: NumCPU)")
	keepGoing := flag.Bool("keep-going", false, "Import every file instead of stopping at the first failure")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: hsdimport [flags] [file.dat ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		InputDir:  *inputDir,
		OutputDir: *outputDir,
		CachePath: *cachePath,
		Section:   *section,
		Format:    *format,
		Workers:   *workers,
		KeepGoing: *keepGoing,
	})

	opts, kind, err := cfg.ImportOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	outFormat, compress, err := cfg.OutputFormat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	files, err := batch.Files(cfg.InputDir, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("No files to import.")
		os.Exit(0)
	}

	batchCfg := batch.Config{
		InputDir:  cfg.InputDir,
		OutputDir: cfg.OutputDir,
		Symbol:    cfg.Section,
		Offset:    cfg.Offset,
		Kind:      kind,
		Options:   opts,
		Format:    outFormat,
		Compress:  compress,
		Workers:   cfg.Workers,
		KeepGoing: cfg.KeepGoing,
	}
	if cfg.CachePath != "" {
		c, err := cache.Open(cfg.CachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (continuing without cache)\n", err)
		} else {
			defer c.Close()
			batchCfg.Cache = c
			if n, err := c.Len(); err == nil {
				fmt.Printf("Cache: %s (%d scenes)\n", cfg.CachePath, n)
			}
		}
	}

	// Print summary
	mode := "stop at first failure"
	if cfg.KeepGoing {
		mode = fmt.Sprintf("keep going, %d workers", cfg.Workers)
	}
	fmt.Printf("HSD scene import → %s (%s)\n", outFormat, mode)
	fmt.Printf("Files: %d, Symbol: %s, Kind: %s\n", len(files), cfg.Section, kind)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()
	results, runErr := batch.Run(batchCfg, files)
	elapsed := time.Since(start)

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	// Count results
	success, failed, cached := 0, 0, 0
	var errors []batch.Result
	for _, r := range results {
		if r.Success {
			success++
			if r.Cached {
				cached++
			}
			for _, w := range r.Warnings {
				fmt.Fprintf(os.Stderr, "Warning: %s: %s\n", filepath.Base(r.File), w)
			}
		} else {
			failed++
			errors = append(errors, r)
		}
	}

	fmt.Printf("Imported: %d/%d (%d from cache)\n", success, len(files), cached)

	if len(errors) > 0 {
		fmt.Printf("\nFailed (%d):\n", failed)
		limit := min(len(errors), 20)
		for _, e := range errors[:limit] {
			fmt.Printf("  %s: %s\n", e.File, e.Error)
		}
	}
	if runErr != nil && len(results) < len(files) {
		fmt.Printf("Stopped after %d of %d files.\n", len(results), len(files))
	}

	// Write manifest
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	os.MkdirAll(cfg.OutputDir, 0755)
	if err := batch.WriteManifest(manifestPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
