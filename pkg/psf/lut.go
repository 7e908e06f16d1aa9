package psf

import (
	"context"
	"math"

	"github.com/df07/go-starfield/pkg/core"
)

// responseLUT is a res×res table of the evaluator sampled on a regular grid
// spanning [-extent, +extent] on both axes, endpoints included. Values are kept
// as float32 planes to halve the footprint of large tables.
type responseLUT struct {
	res    int
	extent float64
	step   float64
	planes [][]float32
}

func newResponseLUT(res int, extent float64, channels int) *responseLUT {
	planes := make([][]float32, channels)
	for c := range planes {
		planes[c] = make([]float32, res*res)
	}
	return &responseLUT{
		res:    res,
		extent: extent,
		step:   2 * extent / float64(res-1),
		planes: planes,
	}
}

// fill evaluates eval once per cell. Rows are independent; each task writes
// only its own row.
func (l *responseLUT) fill(ctx context.Context, eval Evaluator, numWorkers int) error {
	channels := len(l.planes)
	return core.ParallelFor(ctx, l.res, numWorkers, func(ctx context.Context, j int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		value := core.NewSpectrum(channels)
		y := -l.extent + float64(j)*l.step
		row := j * l.res
		for i := 0; i < l.res; i++ {
			x := -l.extent + float64(i)*l.step
			eval.Evaluate(value, x, y)
			for c, v := range value {
				l.planes[c][row+i] = float32(v)
			}
		}
		return nil
	})
}

// locate returns the lower-left grid index of the bilinear cell containing
// (x, y) and the interpolation weights. Positions outside the table are
// clamped to its edge.
func (l *responseLUT) locate(x, y float64) (idx int, tx, ty float64) {
	fx := (x + l.extent) / l.step
	fy := (y + l.extent) / l.step

	i0, tx := splitCoord(fx, l.res)
	j0, ty := splitCoord(fy, l.res)
	return j0*l.res + i0, tx, ty
}

func splitCoord(f float64, res int) (int, float64) {
	if !(f > 0) {
		return 0, 0
	}
	limit := float64(res - 1)
	if f >= limit {
		return res - 2, 1
	}
	i := int(math.Floor(f))
	return i, f - float64(i)
}

// accumulate adds the bilinear interpolation at (x, y) into acc.
func (l *responseLUT) accumulate(x, y float64, acc []float64) {
	idx, tx, ty := l.locate(x, y)
	w00 := (1 - tx) * (1 - ty)
	w10 := tx * (1 - ty)
	w01 := (1 - tx) * ty
	w11 := tx * ty
	for c, p := range l.planes {
		acc[c] += w00*float64(p[idx]) +
			w10*float64(p[idx+1]) +
			w01*float64(p[idx+l.res]) +
			w11*float64(p[idx+l.res+1])
	}
}
