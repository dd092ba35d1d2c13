package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis aligned bounding box in world space.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Extents() mgl32.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Translate returns b moved by d.
func (b AABB) Translate(d mgl32.Vec3) AABB {
	return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Object is anything a cull pass can test against a camera.
type Object struct {
	Name   string
	Bounds AABB
	// Static objects are always kept by culling.
	Static bool
}

// ObjectList is the input and output of cull passes.
type ObjectList struct {
	objects []*Object
}

func NewObjectList(objects ...*Object) *ObjectList {
	return &ObjectList{objects: append([]*Object(nil), objects...)}
}

func (l *ObjectList) Add(objects ...*Object) {
	l.objects = append(l.objects, objects...)
}

func (l *ObjectList) Len() int {
	return len(l.objects)
}

func (l *ObjectList) At(i int) *Object {
	return l.objects[i]
}

// Objects returns the backing slice; callers must not keep it across a
// Reset of the list.
func (l *ObjectList) Objects() []*Object {
	return l.objects
}

// Reset empties the list and keeps its capacity.
func (l *ObjectList) Reset() {
	clear(l.objects)
	l.objects = l.objects[:0]
}

func (l *ObjectList) Names() []string {
	out := make([]string, len(l.objects))
	for i, o := range l.objects {
		out[i] = o.Name
	}
	return out
}

// Cull fills dst with the objects of src inside f, in order, and returns
// how many were kept. dst and src may not be the same list.
func Cull(f Frustum, src, dst *ObjectList) int {
	dst.Reset()
	for _, o := range src.objects {
		if o.Static || f.ContainsAABB(o.Bounds) {
			dst.objects = append(dst.objects, o)
		}
	}
	return len(dst.objects)
}
