package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"hsd-scene-io/internal/export"
	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/skeleton"
)

func main() {
	section := flag.String("section", scene.DefaultSection, "Root symbol to decode")
	offset := flag.Int("offset", 0, "Offset of the archive inside the file")
	kind := flag.String("kind", "scene", "Data kind of the symbol: scene or bone")
	hex := flag.Bool("hex", false, "Print the annotated hex listing instead")
	flag.Parse()

	dk, err := node.ParseDataKind(*kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	failed := 0
	for _, arg := range flag.Args() {
		if err := inspect(arg, *section, *offset, dk, *hex); err != nil {
			fmt.Fprintf(os.Stderr, "Inspect error %s: %v\n", arg, err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func inspect(path, section string, offset int, kind node.DataKind, hex bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if hex {
		out, err := export.Dump(data[offset:])
		if err != nil {
			return err
		}
		os.Stdout.Write(out)
		return nil
	}

	a, err := hsd.Open(data, offset)
	if err != nil {
		return err
	}
	h := a.Header
	fmt.Printf("\n=== %s (file=%d data=%d relocs=%d roots=%d refs=%d) ===\n",
		path, h.FileSize, h.DataSize, h.RelocCount, h.RootCount, h.RefCount)
	for _, s := range a.Roots {
		fmt.Printf("  root 0x%06x %s\n", s.Offset, s.Name)
	}
	for _, s := range a.Refs {
		fmt.Printf("  ref  0x%06x %s\n", s.Offset, s.Name)
	}

	g, err := node.Build(a, section, kind)
	if err != nil {
		return err
	}
	counts := make(map[node.Kind]int)
	for _, n := range g.Nodes {
		counts[n.Kind()]++
	}
	fmt.Printf("--- graph: %d nodes ---\n", len(g.Nodes))
	for k := node.KindJoint; k <= node.KindSymbol; k++ {
		if counts[k] > 0 {
			fmt.Printf("  %-14s %d\n", k, counts[k])
		}
	}
	shared := 0
	for _, c := range g.ParentsOf() {
		if c > 1 {
			shared++
		}
	}
	fmt.Printf("  shared nodes   %d\n", shared)

	opts := scene.DefaultImportOptions()
	opts.IKHack = false
	sc, err := scene.Import(data, section, offset, kind, opts)
	if err != nil {
		return err
	}
	for mi, m := range sc.Models {
		fmt.Printf("--- model %d ---\n", mi)
		if m.Skeleton != nil {
			printBones(m.Skeleton)
		}
		for ai, an := range m.Animations {
			tracks := 0
			for _, b := range an.Bones {
				tracks += len(b.Tracks)
			}
			fmt.Printf("  anim %d: %d joints, %d tracks, %d frames\n", ai, len(an.Bones), tracks, an.FrameCount)
		}
	}
	fmt.Println("--- meshes ---")
	for i, m := range sc.Meshes {
		verts, tris := 0, 0
		var flags []string
		for _, p := range m.Polygons {
			verts += len(p.Vertices)
			tris += len(p.Triangles)
			switch p.Flags & node.PolygonTypeMask {
			case node.PolygonEnvelope:
				flags = append(flags, fmt.Sprintf("envelope(%d)", len(p.Envelopes)))
			case node.PolygonSkin:
				if p.SkinBone >= 0 {
					flags = append(flags, fmt.Sprintf("skin(%d)", p.SkinBone))
				}
			}
		}
		fmt.Printf("  Mesh[%d] %q: polys=%d verts=%d tris=%d mat=%d %s\n",
			i, m.Name, len(m.Polygons), verts, tris, m.Material, strings.Join(flags, " "))
	}
	for i, m := range sc.Materials {
		fmt.Printf("  Mat[%d] %q: flags=0x%08x diffuse=%v alpha=%.2f textures=%v\n",
			i, m.Name, m.RenderFlags, m.Diffuse, m.Alpha, m.Textures)
	}
	for i, t := range sc.Textures {
		info := "no image"
		if t.HasImage {
			info = fmt.Sprintf("%dx%d fmt=%d", t.Width, t.Height, t.Format)
			if t.HasPalette {
				info += fmt.Sprintf(" pal=%d×%d", t.PaletteFormat, t.PaletteEntries)
			}
		}
		fmt.Printf("  Tex[%d] %s: %s wrap=%d/%d\n", i, sc.TextureName(i), info, t.WrapS, t.WrapT)
	}
	for _, w := range sc.Warnings {
		fmt.Printf("  warning: %v\n", w)
	}
	return nil
}

func printBones(sk *skeleton.Skeleton) {
	depth := make([]int, len(sk.Bones))
	for i, b := range sk.Bones {
		if b.Parent >= 0 {
			depth[i] = depth[b.Parent] + 1
		}
		t := b.World.Translation()
		alias := ""
		if b.Alias >= 0 {
			alias = fmt.Sprintf(" =%d", b.Alias)
		}
		fmt.Printf("  %s%s%s flags=0x%08x world=(%.2f, %.2f, %.2f) meshes=%v\n",
			strings.Repeat("  ", depth[i]), b.Name, alias, b.Flags, t[0], t[1], t[2], b.Meshes)
	}
}
