package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a Z-up perspective camera.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32

	FovY   float32 // radians
	Aspect float32
	Near   float32
	Far    float32
}

func NewCamera() *Camera {
	return &Camera{
		Position: mgl32.Vec3{0, 2, 20},
		FovY:     mgl32.DegToRad(60),
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      1000,
	}
}

func (c *Camera) Forward() mgl32.Vec3 {
	// Z-up: Forward in XY plane, Z for pitch
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
	}
}

func (c *Camera) Right() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(-math.Sin(float64(c.Yaw))),
		float32(math.Cos(float64(c.Yaw))),
		0,
	}
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.Forward()), mgl32.Vec3{0, 0, 1})
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

// Frustum returns the planes of the camera's current view volume.
func (c *Camera) Frustum() Frustum {
	return ExtractFrustum(c.ViewProjection())
}

// Frustum holds the six planes Left, Right, Bottom, Top, Near, Far as
// Ax + By + Cz + D = 0 with normals pointing inside.
type Frustum [6]mgl32.Vec4

// ExtractFrustum extracts the normalized frustum planes of a
// view-projection matrix with an OpenGL-style -1..1 depth range.
func ExtractFrustum(vp mgl32.Mat4) Frustum {
	var planes Frustum
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[0] = r3.Add(r0)
	planes[1] = r3.Sub(r0)
	planes[2] = r3.Add(r1)
	planes[3] = r3.Sub(r1)
	planes[4] = r3.Add(r2)
	planes[5] = r3.Sub(r2)

	for i := range planes {
		p := planes[i]
		length := float32(math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])))
		if length > 0 {
			planes[i] = p.Mul(1.0 / length)
		}
	}
	return planes
}

// ContainsAABB reports whether box is at least partly inside f.
func (f Frustum) ContainsAABB(box AABB) bool {
	for _, plane := range f {
		// most inside corner along the plane normal; if it is behind the
		// plane the whole box is
		var p mgl32.Vec3
		for axis := range 3 {
			if plane[axis] > 0 {
				p[axis] = box.Max[axis]
			} else {
				p[axis] = box.Min[axis]
			}
		}
		if plane[0]*p[0]+plane[1]*p[1]+plane[2]*p[2]+plane[3] < 0 {
			return false
		}
	}
	return true
}
