package components

import (
	"github.com/spaghettifunk/framegraph/engine/math"
)

/**
 * @brief A perspective camera. The view matrix is rebuilt lazily when the
 * position or rotation changed.
 */
type Camera struct {
	Position math.Vec3
	/** @brief Pitch, yaw and roll in radians. */
	EulerRotation math.Vec3

	FOV      float32
	NearClip float32
	FarClip  float32
	Aspect   float32

	isDirty    bool
	viewMatrix math.Mat4
}

const DEFAULT_CAMERA_NAME string = "default"

// pitchLimit is 89 degrees.
const pitchLimit float32 = 1.55334306

func NewCamera() *Camera {
	c := &Camera{}
	c.Reset()
	return c
}

func (c *Camera) Reset() {
	c.Position = math.Vec3{}
	c.EulerRotation = math.Vec3{}
	c.FOV = math.DegToRad(45)
	c.NearClip = 0.1
	c.FarClip = 1000
	c.Aspect = 16.0 / 9.0
	c.viewMatrix = math.NewMat4Identity()
	c.isDirty = false
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.EulerRotation = rotation
	c.isDirty = true
}

// Resize keeps the projection in step with the render size.
func (c *Camera) Resize(width, height uint32) {
	if height == 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

func (c *Camera) View() math.Mat4 {
	if c.isDirty {
		// The view is the inverse of the camera transform: undo the
		// translation, then the rotation in reverse order.
		r := c.EulerRotation
		inverseRotation := math.NewMat4EulerXYZ(0, 0, -r.Z).
			Mul(math.NewMat4EulerXYZ(0, -r.Y, 0)).
			Mul(math.NewMat4EulerXYZ(-r.X, 0, 0))
		c.viewMatrix = math.NewMat4Translation(c.Position.MulScalar(-1)).Mul(inverseRotation)
		c.isDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) Projection() math.Mat4 {
	return math.NewMat4Perspective(c.FOV, c.Aspect, c.NearClip, c.FarClip)
}

func (c *Camera) ViewProjection() math.Mat4 {
	return c.View().Mul(c.Projection())
}

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation.Y += amount
	c.isDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation.X = math.Clamp(c.EulerRotation.X+amount, -pitchLimit, pitchLimit)
	c.isDirty = true
}
