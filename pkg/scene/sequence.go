package scene

import (
	"context"
	"fmt"

	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/loaders"
	"github.com/df07/go-starfield/pkg/renderer"
)

// Occluder is a camera-fixed foreground mask at a constant depth
type Occluder struct {
	Mask  *loaders.OccluderMask
	Depth float64
}

// Slew renders the scene from an observer rotating at a constant rate
type Slew struct {
	Scene    *Scene
	Start    core.Frame
	Rate     core.Vec3 // Euler angles per frame, radians
	Count    int
	Occluder *Occluder
}

// Frames returns the sequence length
func (s *Slew) Frames() int { return s.Count }

// Observer returns the pose for the given frame
func (s *Slew) Observer(index int) core.Frame {
	return s.Start.Rotated(s.Rate.Multiply(float64(index)))
}

// Frame fills list with the view for the given frame
func (s *Slew) Frame(ctx context.Context, index int, list *renderer.RenderList) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if index < 0 || index >= s.Count {
		return fmt.Errorf("frame %d out of range [0, %d)", index, s.Count)
	}
	return s.Scene.View(s.Observer(index), list)
}

// FillDepth writes the occluder into the depth layer of fb
func (s *Slew) FillDepth(index int, fb *renderer.FrameBuffer) error {
	if s.Occluder == nil || s.Occluder.Mask == nil {
		return nil
	}
	m := s.Occluder.Mask
	if m.Width != fb.Width() || m.Height != fb.Height() {
		return fmt.Errorf("occluder mask %dx%d does not match frame %dx%d", m.Width, m.Height, fb.Width(), fb.Height())
	}
	for y := range m.Height {
		for x := range m.Width {
			if m.Covered[y*m.Width+x] {
				fb.SetDepth(x, y, s.Occluder.Depth)
			}
		}
	}
	return nil
}
