package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hsd-scene-io/internal/cache"
	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/scenefile"
)

// Extensions lists the archive extensions the importer accepts.
var Extensions = []string{".dat", ".fdat", ".rdat", ".pkx"}

// Accept reports whether name has an importable extension.
func Accept(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

// Config holds all shared resources for a batch run.
type Config struct {
	InputDir  string
	OutputDir string
	Symbol    string
	Offset    int
	Kind      node.DataKind
	Options   scene.ImportOptions
	Format    scenefile.Format
	Compress  bool
	// Cache is optional.
	Cache   *cache.Cache
	Workers int
	// KeepGoing runs every file on the worker pool instead of stopping at
	// the first failure.
	KeepGoing bool
	// Quiet disables the progress ticker.
	Quiet bool
}

// Result holds the outcome of processing one file.
type Result struct {
	File       string
	Output     string
	Success    bool
	Cached     bool
	Models     int
	Bones      int
	Meshes     int
	Animations int
	Warnings   []string
	// Err is the failure with the file path attached; Error is its text.
	Err   error
	Error string
}

// Files lists the archives to import. With no names, every accepted file in
// dir is taken in name order; otherwise names are resolved against dir.
func Files(dir string, names []string) ([]string, error) {
	if len(names) > 0 {
		out := make([]string, len(names))
		for i, n := range names {
			if !filepath.IsAbs(n) {
				n = filepath.Join(dir, n)
			}
			out[i] = n
		}
		return out, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("batch: list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && Accept(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// Run imports files in order and stops at the first failure, returning the
// results so far and an error naming the file. With cfg.KeepGoing the files
// are spread over a worker pool and every file gets a result.
func Run(cfg Config, files []string) ([]Result, error) {
	if !cfg.KeepGoing {
		results := make([]Result, 0, len(files))
		for _, f := range files {
			r := processFile(cfg, f)
			results = append(results, r)
			if !r.Success {
				return results, fmt.Errorf("batch: %w", r.Err)
			}
		}
		return results, nil
	}
	return runPool(cfg, files), nil
}

func runPool(cfg Config, files []string) []Result {
	total := len(files)
	results := make([]Result, total)
	var processed atomic.Int64
	workers := max(cfg.Workers, 1)

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		if cfg.Quiet {
			return
		}
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					rate := float64(p) / elapsed
					fmt.Printf("  [%d/%d] %.1f files/sec\n", p, total, rate)
				}
			}
		}
	}()

	// Worker pool
	fileChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range fileChan {
				results[idx] = processFile(cfg, files[idx])
				processed.Add(1)
			}
		}()
	}

	// Send work
	for i := range files {
		fileChan <- i
	}
	close(fileChan)

	wg.Wait()
	close(done)

	return results
}

// OutputPath maps an input archive to its scene file under outDir.
func OutputPath(outDir, file string, format scenefile.Format, compress bool) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + format.Ext()
	if compress {
		name += ".zst"
	}
	return filepath.Join(outDir, name)
}

func processFile(cfg Config, file string) Result {
	res := Result{File: file}
	fail := func(err error) Result {
		res.Err = hsd.WithPath(err, file)
		res.Error = res.Err.Error()
		return res
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fail(err)
	}

	var sc *scene.Scene
	if cfg.Cache != nil {
		sc, res.Cached, err = cfg.Cache.Import(file, data, cfg.Symbol, cfg.Offset, cfg.Kind, cfg.Options)
	} else {
		sc, err = scene.Import(data, cfg.Symbol, cfg.Offset, cfg.Kind, cfg.Options)
	}
	if err != nil {
		return fail(err)
	}

	res.Models = len(sc.Models)
	res.Meshes = len(sc.Meshes)
	for _, m := range sc.Models {
		if m.Skeleton != nil {
			res.Bones += len(m.Skeleton.Bones)
		}
		res.Animations += len(m.Animations)
	}
	for _, w := range sc.Warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}

	res.Output = OutputPath(cfg.OutputDir, file, cfg.Format, cfg.Compress)
	if err := scenefile.Save(res.Output, scenefile.New(file, sc)); err != nil {
		return fail(err)
	}
	res.Success = true
	return res
}
