package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"

	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
)

func writeImage(path, format string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	switch format {
	case "tga":
		err = tga.Encode(f, img)
	default:
		err = nativewebp.Encode(f, img, nil)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func dumpTextures(path, section, outDir, format string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	opts := scene.DefaultImportOptions()
	opts.ImportAnimation = false
	sc, err := scene.Import(data, section, 0, node.DataScene, opts)
	if err != nil {
		return 0, err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Join(outDir, stem)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	n := 0
	for i := range sc.Textures {
		t := &sc.Textures[i]
		name := sc.TextureName(i)
		if !t.HasImage {
			fmt.Printf("SKIP %s/%s (no image)\n", stem, name)
			continue
		}
		img, err := t.Image()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERR  %s/%s: %v\n", stem, name, err)
			continue
		}
		dst := filepath.Join(dir, name+"."+format)
		if err := writeImage(dst, format, img); err != nil {
			return n, err
		}
		fmt.Printf("OK   %s/%s -> %s (%dx%d fmt %d)\n", stem, name, dst, t.Width, t.Height, t.Format)
		n++
	}
	return n, nil
}

func main() {
	section := flag.String("section", scene.DefaultSection, "Root symbol to decode")
	outDir := flag.String("out", ".", "Output directory; one sub-directory per archive")
	format := flag.String("format", "webp", "Image format: webp or tga")
	flag.Parse()

	if *format != "webp" && *format != "tga" {
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(2)
	}

	errors, total := 0, 0
	for _, arg := range flag.Args() {
		n, err := dumpTextures(arg, *section, *outDir, *format)
		total += n
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERR %s: %v\n", arg, err)
			errors++
		}
	}
	if errors > 0 {
		fmt.Printf("\nDone with %d error(s), %d textures written.\n", errors, total)
		os.Exit(1)
	}
	fmt.Printf("\nDone. %d textures written.\n", total)
}
