package renderer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/df07/go-starfield/pkg/core"
)

// FrameSource supplies the render items of each frame in a sequence.
// Frame must reset list and fill it for the given frame index.
type FrameSource interface {
	Frames() int
	Frame(ctx context.Context, index int, list *RenderList) error
}

// DepthSource is implemented by sources that place foreground occluders in
// the depth layer before items are composited.
type DepthSource interface {
	FillDepth(index int, fb *FrameBuffer) error
}

// SequenceConfig describes the buffers produced for each frame
type SequenceConfig struct {
	Width      int
	Height     int
	Channels   int
	WithDepth  bool // allocate an (empty) depth layer per frame
	BufferSize int  // result channel capacity
}

// FrameResult is one finished frame
type FrameResult struct {
	Index  int
	ID     string // unique per rendered frame
	Buffer *FrameBuffer
	Stats  RenderStats
	IsLast bool
}

// SequenceRenderer renders a FrameSource frame by frame through a Compositor
type SequenceRenderer struct {
	compositor *Compositor
	source     FrameSource
	estimator  RadiusEstimator
	config     SequenceConfig
	logger     core.Logger
}

// NewSequenceRenderer creates a sequence renderer. A nil estimator gives every
// item the camera's full kernel radius.
func NewSequenceRenderer(compositor *Compositor, source FrameSource, estimator RadiusEstimator, config SequenceConfig, logger core.Logger) (*SequenceRenderer, error) {
	if compositor == nil || source == nil {
		return nil, fmt.Errorf("sequence renderer needs a compositor and a frame source")
	}
	if config.Width <= 0 || config.Height <= 0 || config.Channels <= 0 {
		return nil, fmt.Errorf("invalid frame shape %dx%dx%d", config.Width, config.Height, config.Channels)
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &SequenceRenderer{
		compositor: compositor,
		source:     source,
		estimator:  estimator,
		config:     config,
		logger:     logger,
	}, nil
}

// RenderFrame renders a single frame into a new buffer
func (sr *SequenceRenderer) RenderFrame(ctx context.Context, index int, list *RenderList) (FrameResult, error) {
	if list == nil {
		list = NewRenderList(sr.config.Channels, 0)
	}
	if err := sr.source.Frame(ctx, index, list); err != nil {
		return FrameResult{}, fmt.Errorf("frame %d: %w", index, err)
	}

	radius := 0
	if sr.compositor.camera.HasKernel() {
		radius = sr.compositor.camera.KernelRadius()
	}
	list.AssignRadii(sr.estimator, radius)

	fb, err := NewFrameBuffer(sr.config.Width, sr.config.Height, sr.config.Channels)
	if err != nil {
		return FrameResult{}, err
	}
	fb.EnablePower()
	if sr.config.WithDepth {
		fb.EnableDepth()
		if ds, ok := sr.source.(DepthSource); ok {
			if err := ds.FillDepth(index, fb); err != nil {
				return FrameResult{}, fmt.Errorf("frame %d depth: %w", index, err)
			}
		}
	}

	stats, err := sr.compositor.Render(ctx, list, fb)
	if err != nil {
		return FrameResult{}, fmt.Errorf("frame %d: %w", index, err)
	}

	return FrameResult{
		Index:  index,
		ID:     uuid.New().String(),
		Buffer: fb,
		Stats:  stats,
		IsLast: index == sr.source.Frames()-1,
	}, nil
}

// RenderSequence renders every frame with channel-based communication.
// Frames arrive in order on the first channel; the error channel receives at
// most one error. Both channels are closed when rendering stops.
func (sr *SequenceRenderer) RenderSequence(ctx context.Context) (<-chan FrameResult, <-chan error) {
	frameChan := make(chan FrameResult, max(sr.config.BufferSize, 1))
	errChan := make(chan error, 1)

	go func() {
		defer close(frameChan)
		defer close(errChan)

		total := sr.source.Frames()
		sr.logger.Printf("Starting sequence of %d frames...\n", total)

		// one list reused across frames; each frame resets it
		list := NewRenderList(sr.config.Channels, 0)
		for i := 0; i < total; i++ {
			// Check if the caller gave up before starting this frame
			select {
			case <-ctx.Done():
				sr.logger.Printf("Rendering cancelled before frame %d\n", i)
				errChan <- ctx.Err()
				return
			default:
			}

			startTime := time.Now()
			result, err := sr.RenderFrame(ctx, i, list)
			if err != nil {
				errChan <- err
				return
			}
			sr.logger.Printf("Frame %d (%s) completed in %v: %d sources\n",
				i, result.ID, time.Since(startTime), result.Stats.Splatted)

			select {
			case frameChan <- result:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return frameChan, errChan
}
