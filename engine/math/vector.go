package math

import m "math"

const (
	K_PI                 float32 = 3.14159265358979323846
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	K_FLOAT_EPSILON      float32 = 1.192092896e-07
)

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

/** @brief A 3D vector. */
type Vec3 struct {
	X, Y, Z float32
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func NewVec3Up() Vec3 {
	return Vec3{Y: 1}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) MulScalar(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float32 {
	return float32(m.Sqrt(float64(v.Dot(v))))
}

// Normalized returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l < K_FLOAT_EPSILON {
		return v
	}
	return v.MulScalar(1 / l)
}

// Compare reports whether every component differs by at most tolerance.
func (v Vec3) Compare(o Vec3, tolerance float32) bool {
	return abs(v.X-o.X) <= tolerance && abs(v.Y-o.Y) <= tolerance && abs(v.Z-o.Z) <= tolerance
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
