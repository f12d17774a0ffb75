package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	gomath "math"
	"os"

	"github.com/Faultbox/quick3d/internal/assets"
	"github.com/Faultbox/quick3d/internal/engine/camera"
	"github.com/Faultbox/quick3d/internal/engine/frustum"
	"github.com/Faultbox/quick3d/internal/engine/gpu/softbackend"
	"github.com/Faultbox/quick3d/internal/engine/renderer"
	"github.com/Faultbox/quick3d/internal/engine/shader"
)

type snapshotOptions struct {
	width, height int
	distance      float64
	yaw, pitch    float64 // degrees
	supersample   int
	offset        bool
	cull          bool
}

func cmdSnapshot(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	opts := snapshotOptions{}
	fs.IntVar(&opts.width, "width", 800, "image width")
	fs.IntVar(&opts.height, "height", 600, "image height")
	fs.Float64Var(&opts.distance, "distance", 6, "distance to back away from the start position")
	fs.Float64Var(&opts.yaw, "yaw", 0, "camera yaw in degrees")
	fs.Float64Var(&opts.pitch, "pitch", 0, "camera pitch in degrees")
	fs.IntVar(&opts.supersample, "ss", 2, "supersampling factor")
	fs.BoolVar(&opts.offset, "offset", false, "include the plane offset in the sphere test")
	noCull := fs.Bool("no-cull", false, "draw every mesh")
	fs.Parse(args)
	opts.cull = !*noCull

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: q3dtool snapshot [options] <scene> <out.png>")
		os.Exit(1)
	}

	stats, err := snapshot(context.Background(), fs.Arg(0), fs.Arg(1), opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Drawn %d of %d meshes (%d culled, %d vertices) -> %s\n",
		stats.Drawn, stats.Meshes, stats.Culled, stats.Vertices, fs.Arg(1))
}

// snapshot renders one frame of the scene at in with the software device
// and writes it to out as PNG.
func snapshot(ctx context.Context, in, out string, opts snapshotOptions) (renderer.FrameStats, error) {
	if opts.width <= 0 || opts.height <= 0 {
		return renderer.FrameStats{}, fmt.Errorf("invalid image size %dx%d", opts.width, opts.height)
	}

	sc, err := assets.LoadScene(ctx, in)
	if err != nil {
		return renderer.FrameStats{}, err
	}

	dev := softbackend.New(opts.width, opts.height, softbackend.WithSupersampling(opts.supersample))
	src, err := shader.Select(shader.Default(), dev.ShadingLanguageVersion())
	if err != nil {
		return renderer.FrameStats{}, err
	}
	prog, err := dev.NewProgram(src)
	if err != nil {
		return renderer.FrameStats{}, err
	}
	defer prog.Release()

	rendererOpts := []renderer.Option{renderer.WithCulling(opts.cull)}
	if opts.offset {
		rendererOpts = append(rendererOpts, renderer.WithFrustumOptions(frustum.WithSphereOffset()))
	}
	r, err := renderer.New(dev, sc, rendererOpts...)
	if err != nil {
		return renderer.FrameStats{}, err
	}
	defer r.Close()

	cam := camera.New(opts.width, opts.height)
	toAim := func(deg float64) float64 { return deg * gomath.Pi / 180 / camera.AimSensitivity }
	cam.Aim(toAim(opts.yaw), toAim(opts.pitch))
	cam.MoveBackward(float32(opts.distance))
	cam.Update()

	if err := r.Render(cam, prog); err != nil {
		return renderer.FrameStats{}, err
	}

	f, err := os.Create(out)
	if err != nil {
		return renderer.FrameStats{}, err
	}
	if err := png.Encode(f, dev.Image()); err != nil {
		f.Close()
		return renderer.FrameStats{}, fmt.Errorf("encoding %s: %w", out, err)
	}
	return r.Stats(), f.Close()
}
