package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"seehuhn.de/go/geom/vec"

	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/psf"
)

var (
	// ErrRadiusExceedsKernel is returned when an item's effective radius lies
	// outside [0, R] of the camera's kernel.
	ErrRadiusExceedsKernel = errors.New("renderer: effective radius outside kernel")
	// ErrChannelMismatch is returned when list, buffer and kernel disagree on channel count.
	ErrChannelMismatch = errors.New("renderer: channel count mismatch")
)

// CompositorConfig contains configuration for tile compositing
type CompositorConfig struct {
	TileSize   int // Size of each tile (64x64 recommended)
	NumWorkers int // Number of parallel workers (0 = use CPU count)
}

// DefaultCompositorConfig returns sensible default values
func DefaultCompositorConfig() CompositorConfig {
	return CompositorConfig{
		TileSize:   64,
		NumWorkers: 0,
	}
}

// Compositor splats render items through the camera's kernels into a frame
// buffer. A Compositor holds no per-frame state and may run concurrent
// Render calls on different buffers.
type Compositor struct {
	camera Camera
	config CompositorConfig
	logger core.Logger
}

// NewCompositor creates a compositor for camera
func NewCompositor(camera Camera, config CompositorConfig, logger core.Logger) *Compositor {
	if config.TileSize <= 0 {
		config.TileSize = DefaultCompositorConfig().TileSize
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Compositor{camera: camera, config: config, logger: logger}
}

// frameJob is the immutable per-call state shared by all tile tasks
type frameJob struct {
	list      *RenderList
	fb        *FrameBuffer
	frame     image.Rectangle
	radius    int
	hasKernel bool

	tiles  []Tile
	bins   [][]int32
	pixels []vec.Vec2 // projected position per item, valid for binned items only
}

// Render adds the power of every item in list to fb. An empty list or a
// buffer without a power layer is a no-op. If any tile task fails the whole
// frame is abandoned and fb is left untouched.
func (c *Compositor) Render(ctx context.Context, list *RenderList, fb *FrameBuffer) (RenderStats, error) {
	start := time.Now()
	stats := RenderStats{}
	if list == nil || list.Len() == 0 || fb == nil || !fb.HasPower() {
		return stats, nil
	}
	stats.Items = list.Len()

	job, err := c.prepare(list, fb)
	if err != nil {
		return stats, err
	}

	// binning runs to completion before any tile task starts
	stats.Dropped = c.bin(job)
	stats.Tiles = len(job.tiles)

	locals := make([]*localBuffer, len(job.tiles))
	perTile := make([]tileStats, len(job.tiles))
	err = core.ParallelFor(ctx, len(job.tiles), c.config.NumWorkers, func(ctx context.Context, t int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(job.bins[t]) == 0 {
			return nil
		}
		local, ts, err := c.splatTile(job, t)
		if err != nil {
			return err
		}
		locals[t] = local
		perTile[t] = ts
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("compositing tiles: %w", err)
	}

	for t, ts := range perTile {
		if locals[t] != nil {
			stats.ActiveTiles++
		}
		stats.add(ts)
	}

	// all tile tasks are done; the merge must not be interrupted half way
	err = core.ParallelFor(context.WithoutCancel(ctx), fb.height, c.config.NumWorkers, func(_ context.Context, y int) error {
		mergeRow(fb, locals, y)
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("merging tiles: %w", err)
	}

	stats.Duration = time.Since(start)
	c.logger.Printf("Composited %d items (%d dropped, %d occluded) over %d/%d tiles in %v\n",
		stats.Splatted, stats.Dropped, stats.Occluded, stats.ActiveTiles, stats.Tiles, stats.Duration)
	return stats, nil
}

// prepare checks the frame's invariants and builds the shared job
func (c *Compositor) prepare(list *RenderList, fb *FrameBuffer) (*frameJob, error) {
	if list.Channels() != fb.Channels() {
		return nil, fmt.Errorf("%w: list has %d, buffer has %d", ErrChannelMismatch, list.Channels(), fb.Channels())
	}

	job := &frameJob{
		list:      list,
		fb:        fb,
		frame:     image.Rect(0, 0, fb.width, fb.height),
		hasKernel: c.camera.HasKernel(),
	}

	if job.hasKernel {
		job.radius = c.camera.KernelRadius()
		k, err := c.camera.KernelForPhase(0, 0)
		if err != nil {
			return nil, fmt.Errorf("fetching kernel: %w", err)
		}
		if k.Channels() != list.Channels() {
			return nil, fmt.Errorf("%w: kernel has %d, list has %d", ErrChannelMismatch, k.Channels(), list.Channels())
		}
		if k.Radius() != job.radius {
			return nil, fmt.Errorf("%w: kernel radius %d, camera reports %d", ErrRadiusExceedsKernel, k.Radius(), job.radius)
		}
		for i, it := range list.items {
			if it.EffectiveRadius < 0 || it.EffectiveRadius > job.radius {
				return nil, fmt.Errorf("%w: item %d has radius %d, kernel radius is %d",
					ErrRadiusExceedsKernel, i, it.EffectiveRadius, job.radius)
			}
		}
	}

	job.tiles = NewTileGrid(fb.width, fb.height, c.config.TileSize)
	job.bins = make([][]int32, len(job.tiles))
	job.pixels = make([]vec.Vec2, list.Len())
	return job, nil
}

// bin projects every item and files it under the tile holding its anchor
// pixel. It returns the number of dropped items.
func (c *Compositor) bin(job *frameJob) int {
	w, h := float64(job.fb.width), float64(job.fb.height)
	size := c.config.TileSize
	tilesX := (job.fb.width + size - 1) / size
	tilesY := (job.fb.height + size - 1) / size

	dropped := 0
	for i, it := range job.list.items {
		p, ok := c.camera.Project(it.Position)
		if !ok || !isFinite(p.X) || !isFinite(p.Y) ||
			p.X < 0 || p.X > w || p.Y < 0 || p.Y > h {
			dropped++
			continue
		}
		job.pixels[i] = p

		// the anchor is the kernel origin, or the target pixel without a kernel
		var ax, ay int
		if job.hasKernel {
			ax, ay = int(math.Floor(p.X)), int(math.Floor(p.Y))
		} else {
			ax, ay = nearestPixel(p, job.frame)
		}
		tx := min(max(ax/size, 0), tilesX-1)
		ty := min(max(ay/size, 0), tilesY-1)
		t := ty*tilesX + tx
		job.bins[t] = append(job.bins[t], int32(i))
	}
	return dropped
}

// splatTile accumulates one tile's items into a fresh local buffer covering
// the tile plus a kernel-radius margin.
func (c *Compositor) splatTile(job *frameJob, t int) (*localBuffer, tileStats, error) {
	var ts tileStats
	channels := job.list.channels
	local := newLocalBuffer(job.tiles[t].Expanded(job.radius, job.frame), channels)
	power := core.NewSpectrum(channels)

	for _, idx := range job.bins[t] {
		it := job.list.items[idx]
		p := job.pixels[idx]
		px, py := nearestPixel(p, job.frame)

		if job.fb.depth != nil && job.fb.depth[py*job.fb.width+px] < it.Depth {
			ts.occluded++
			continue
		}

		area := c.camera.ProjectedApertureArea(it.Position)
		irr := job.list.Irradiance(int(idx))
		floats.ScaleTo(power, area, irr)
		ts.splatted++
		if power.IsZero() {
			continue
		}

		if !job.hasKernel {
			addPixel(local, px, py, power)
			continue
		}

		ax, ay := math.Floor(p.X), math.Floor(p.Y)
		k, err := c.camera.KernelForPhase(p.X-ax, p.Y-ay)
		if err != nil {
			return nil, ts, fmt.Errorf("item %d: %w", idx, err)
		}
		splatKernel(local, k, int(ax), int(ay), it.EffectiveRadius, power)
	}
	return local, ts, nil
}

// splatKernel adds power × kernel over the centred (2e+1)² window of k,
// anchored at pixel (ax, ay) and clipped to the local buffer.
func splatKernel(local *localBuffer, k *psf.Kernel, ax, ay, effectiveRadius int, power core.Spectrum) {
	R := k.Radius()
	off, size := k.Window(effectiveRadius)

	// kernel cell (kx, ky) lands on pixel (ax+kx-R, ay+ky-R)
	win := image.Rect(ax+off-R, ay+off-R, ax+off-R+size, ay+off-R+size).Intersect(local.bounds)
	if win.Empty() {
		return
	}

	ks := k.Size()
	n := win.Dx()
	for y := win.Min.Y; y < win.Max.Y; y++ {
		krow := (y-ay+R)*ks + (win.Min.X - ax + R)
		lrow := local.offset(win.Min.X, y)
		for c, pw := range power {
			if pw == 0 {
				continue
			}
			floats.AddScaled(local.planes[c][lrow:lrow+n], pw, k.Plane(c)[krow:krow+n])
		}
	}
}

func addPixel(local *localBuffer, x, y int, power core.Spectrum) {
	if !(image.Point{X: x, Y: y}).In(local.bounds) {
		return
	}
	idx := local.offset(x, y)
	for c, pw := range power {
		local.planes[c][idx] += pw
	}
}

// mergeRow adds row y of every overlapping local buffer into fb. Only this
// call writes row y, so no locking is needed.
func mergeRow(fb *FrameBuffer, locals []*localBuffer, y int) {
	row := y * fb.width
	for _, lb := range locals {
		if lb == nil || y < lb.bounds.Min.Y || y >= lb.bounds.Max.Y {
			continue
		}
		src := lb.offset(lb.bounds.Min.X, y)
		dst := row + lb.bounds.Min.X
		n := lb.bounds.Dx()
		for c, plane := range lb.planes {
			out := fb.power[c][dst : dst+n]
			for x, v := range plane[src : src+n] {
				if v != 0 {
					out[x] += v
				}
			}
		}
	}
}

// nearestPixel rounds p to the closest pixel centre inside frame
func nearestPixel(p vec.Vec2, frame image.Rectangle) (int, int) {
	x := int(math.Round(p.X))
	y := int(math.Round(p.Y))
	return min(max(x, frame.Min.X), frame.Max.X-1), min(max(y, frame.Min.Y), frame.Max.Y-1)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
