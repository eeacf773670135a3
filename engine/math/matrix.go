package math

import (
	"encoding/binary"
	m "math"
)

/** @brief A column major 4x4 matrix. */
type Mat4 struct {
	Data [16]float32
}

func NewMat4Identity() Mat4 {
	var out Mat4
	out.Data[0] = 1
	out.Data[5] = 1
	out.Data[10] = 1
	out.Data[15] = 1
	return out
}

// Mul returns the transform applying mt first and other second. Points are
// row vectors.
func (mt Mat4) Mul(other Mat4) Mat4 {
	var out Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

/**
 * @brief Right handed perspective projection with a [0, 1] depth range.
 */
func NewMat4Perspective(fovRadians, aspect, near, far float32) Mat4 {
	f := 1 / float32(m.Tan(float64(fovRadians)*0.5))
	var out Mat4
	out.Data[0] = f / aspect
	out.Data[5] = f
	out.Data[10] = far / (near - far)
	out.Data[11] = -1
	out.Data[14] = (far * near) / (near - far)
	return out
}

func NewMat4Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = 2 / (right - left)
	out.Data[5] = 2 / (top - bottom)
	out.Data[10] = 1 / (near - far)
	out.Data[12] = -(right + left) / (right - left)
	out.Data[13] = -(top + bottom) / (top - bottom)
	out.Data[14] = near / (near - far)
	return out
}

/**
 * @brief A view matrix looking at target from position.
 */
func NewMat4LookAt(position, target, up Vec3) Mat4 {
	z := position.Sub(target).Normalized()
	x := up.Cross(z).Normalized()
	y := z.Cross(x)

	out := NewMat4Identity()
	out.Data[0], out.Data[4], out.Data[8] = x.X, x.Y, x.Z
	out.Data[1], out.Data[5], out.Data[9] = y.X, y.Y, y.Z
	out.Data[2], out.Data[6], out.Data[10] = z.X, z.Y, z.Z
	out.Data[12] = -x.Dot(position)
	out.Data[13] = -y.Dot(position)
	out.Data[14] = -z.Dot(position)
	return out
}

func NewMat4Translation(position Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[12] = position.X
	out.Data[13] = position.Y
	out.Data[14] = position.Z
	return out
}

func NewMat4EulerXYZ(x, y, z float32) Mat4 {
	return rotationX(x).Mul(rotationY(y)).Mul(rotationZ(z))
}

func rotationX(angle float32) Mat4 {
	c, s := sincos(angle)
	out := NewMat4Identity()
	out.Data[5], out.Data[6] = c, s
	out.Data[9], out.Data[10] = -s, c
	return out
}

func rotationY(angle float32) Mat4 {
	c, s := sincos(angle)
	out := NewMat4Identity()
	out.Data[0], out.Data[2] = c, -s
	out.Data[8], out.Data[10] = s, c
	return out
}

func rotationZ(angle float32) Mat4 {
	c, s := sincos(angle)
	out := NewMat4Identity()
	out.Data[0], out.Data[1] = c, s
	out.Data[4], out.Data[5] = -s, c
	return out
}

func sincos(angle float32) (float32, float32) {
	s, c := m.Sincos(float64(angle))
	return float32(c), float32(s)
}

// TransformPoint applies the matrix to p with w = 1 and divides by w.
func (mt Mat4) TransformPoint(p Vec3) Vec3 {
	d := &mt.Data
	x := p.X*d[0] + p.Y*d[4] + p.Z*d[8] + d[12]
	y := p.X*d[1] + p.Y*d[5] + p.Z*d[9] + d[13]
	z := p.X*d[2] + p.Y*d[6] + p.Z*d[10] + d[14]
	w := p.X*d[3] + p.Y*d[7] + p.Z*d[11] + d[15]
	if w != 0 && w != 1 {
		x, y, z = x/w, y/w, z/w
	}
	return Vec3{x, y, z}
}

// Bytes encodes the matrix the way shaders read it from push constants.
func (mt Mat4) Bytes() []byte {
	out := make([]byte, 64)
	for i, v := range mt.Data {
		binary.LittleEndian.PutUint32(out[i*4:], m.Float32bits(v))
	}
	return out
}
