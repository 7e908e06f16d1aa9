// Package psf builds discretised point-spread-function kernels from continuous
// optical response models and estimates how much of a kernel a source needs.
package psf

import (
	"github.com/df07/go-starfield/pkg/core"
)

// Evaluator is a continuous point response. Evaluate writes the per-channel
// response at offset (x, y), measured in output pixels from the source, into
// dst (len(dst) == Channels()). Implementations must be safe for concurrent use;
// the cache builder calls Evaluate from many goroutines.
type Evaluator interface {
	Evaluate(dst core.Spectrum, x, y float64)
	Channels() int
}

// EvaluatorFunc is a plain function response.
type EvaluatorFunc func(dst core.Spectrum, x, y float64)

type funcEvaluator struct {
	channels int
	fn       EvaluatorFunc
}

// FuncEvaluator adapts fn into an Evaluator with the given channel count.
func FuncEvaluator(channels int, fn EvaluatorFunc) Evaluator {
	return &funcEvaluator{channels: channels, fn: fn}
}

func (f *funcEvaluator) Evaluate(dst core.Spectrum, x, y float64) { f.fn(dst, x, y) }
func (f *funcEvaluator) Channels() int                            { return f.channels }
