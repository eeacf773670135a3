package components

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/framegraph/engine/math"
)

func TestCameraViewUndoesPosition(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math.NewVec3(1, 2, 3))
	p := c.View().TransformPoint(math.NewVec3(1, 2, 3))
	assert.True(t, p.Compare(math.Vec3{}, 1e-5), "got %+v", p)
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.Pitch(10)
	assert.Equal(t, pitchLimit, c.EulerRotation.X)
	c.Pitch(-20)
	assert.Equal(t, -pitchLimit, c.EulerRotation.X)
}

func TestCameraResize(t *testing.T) {
	c := NewCamera()
	c.Resize(800, 400)
	assert.Equal(t, float32(2), c.Aspect)
	c.Resize(800, 0)
	assert.Equal(t, float32(2), c.Aspect)
}
