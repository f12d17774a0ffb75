// q3dtool is a CLI utility for inspecting, converting and rendering quick3d
// scenes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/quick3d/internal/assets"
	"github.com/Faultbox/quick3d/internal/scene"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "convert":
		cmdConvert(args)
	case "snapshot", "snap":
		cmdSnapshot(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`q3dtool - quick3d scene utility

Usage:
  q3dtool <command> [options]

Commands:
  info <scene>                           Show materials, meshes and images
  convert [options] <in> <out>           Convert between .bin, .bin.gz and .db
  snapshot [options] <scene> <out.png>   Render one frame in software

Convert options:
  -compress           zlib-compress Q3D output
  -recompute-bounds   recompute every bounding sphere from the vertices

Snapshot options:
  -width, -height     image size (default 800x600)
  -distance           how far the camera backs away from its start (default 6)
  -yaw, -pitch        camera rotation in degrees
  -ss                 supersampling factor (default 2)
  -offset             include the plane offset in the sphere test
  -no-cull            draw every mesh

Examples:
  q3dtool info scene.db
  q3dtool convert -compress scene.db scene.bin.gz
  q3dtool snapshot -yaw 30 scene.db shot.png`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: q3dtool info <scene>")
		os.Exit(1)
	}

	sc, err := assets.LoadScene(context.Background(), args[0])
	if err != nil {
		fail(err)
	}
	printInfo(args[0], sc)
}

func printInfo(path string, sc *scene.Scene) {
	fmt.Printf("Scene: %s\n", path)
	fmt.Printf("Vertices: %d\n", sc.VertexCount())

	fmt.Printf("\nMaterials (%d):\n", len(sc.Materials))
	for i, m := range sc.Materials {
		tex := m.DiffuseTexture
		if tex == "" {
			tex = "-"
		}
		fmt.Printf("  %3d  %-24s diffuse (%.2f, %.2f, %.2f)  texture %s\n",
			i+1, m.Name, m.Diffuse[0], m.Diffuse[1], m.Diffuse[2], tex)
	}

	fmt.Printf("\nMeshes (%d):\n", len(sc.Meshes))
	for _, m := range sc.Meshes {
		material := "?"
		if mat, err := sc.Material(m); err == nil {
			material = mat.Name
		}
		fmt.Printf("  %-24s %8d vertices  material %-16s center (%.2f, %.2f, %.2f)  radius %.2f\n",
			m.Name, len(m.Vertices), material, m.Center[0], m.Center[1], m.Center[2], m.Radius)
	}

	fmt.Printf("\nImages (%d):\n", len(sc.Images))
	for _, img := range sc.Images {
		fmt.Printf("  %-32s %10d bytes\n", img.Name, len(img.Data))
	}
}

func cmdConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	compress := fs.Bool("compress", false, "zlib-compress Q3D output")
	recompute := fs.Bool("recompute-bounds", false, "recompute bounding spheres")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: q3dtool convert [-compress] [-recompute-bounds] <in> <out>")
		os.Exit(1)
	}

	n, err := convert(context.Background(), fs.Arg(0), fs.Arg(1), *compress, *recompute)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Converted %d meshes: %s -> %s\n", n, fs.Arg(0), fs.Arg(1))
}

// convert copies the scene at in to out and returns the mesh count.
func convert(ctx context.Context, in, out string, compress, recompute bool) (int, error) {
	sc, err := assets.LoadScene(ctx, in)
	if err != nil {
		return 0, err
	}
	if recompute {
		sc.RecomputeBounds()
	}
	if err := assets.SaveScene(ctx, sc, out, compress); err != nil {
		return 0, err
	}
	return len(sc.Meshes), nil
}
