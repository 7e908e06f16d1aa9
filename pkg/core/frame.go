package core

// Frame is an orthonormal observer basis. Local coordinates follow the camera
// convention used throughout the renderer: +Z along the boresight, +X to the
// right of the image and +Y down the image.
type Frame struct {
	Origin  Vec3
	Right   Vec3
	Down    Vec3
	Forward Vec3
}

// NewLookAtFrame builds a frame at center looking towards lookAt with the
// given approximate up vector.
func NewLookAtFrame(center, lookAt, up Vec3) Frame {
	forward := lookAt.Subtract(center).Normalize()
	right := forward.Cross(up).Normalize()
	if right.LengthSquared() == 0 {
		// up is parallel to the view direction; pick any perpendicular axis
		alt := NewVec3(1, 0, 0)
		if forward.X > 0.9 || forward.X < -0.9 {
			alt = NewVec3(0, 1, 0)
		}
		right = forward.Cross(alt).Normalize()
	}
	down := forward.Cross(right)

	return Frame{
		Origin:  center,
		Right:   right,
		Down:    down,
		Forward: forward,
	}
}

// Rotated returns a frame whose axes are rotated by the given Euler angles.
func (f Frame) Rotated(rotation Vec3) Frame {
	return Frame{
		Origin:  f.Origin,
		Right:   f.Right.Rotate(rotation),
		Down:    f.Down.Rotate(rotation),
		Forward: f.Forward.Rotate(rotation),
	}
}

// ToLocalPoint maps a world position into frame coordinates.
func (f Frame) ToLocalPoint(p Vec3) Vec3 {
	return f.ToLocalDirection(p.Subtract(f.Origin))
}

// ToLocalDirection maps a world direction into frame coordinates; translation
// does not apply.
func (f Frame) ToLocalDirection(d Vec3) Vec3 {
	return Vec3{
		X: d.Dot(f.Right),
		Y: d.Dot(f.Down),
		Z: d.Dot(f.Forward),
	}
}
