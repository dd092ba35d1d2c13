package softgpu

import (
	"fmt"
	"image/color"
	"sync/atomic"

	"github.com/gekko3d/framegraph"
)

// ShadeFunc computes one output texel from the input texels sampled at the
// same normalized position.
type ShadeFunc func(x, y int, inputs []color.RGBA) color.RGBA

// Effect is a per pixel program applied to the bound render target.
type Effect struct {
	name  string
	shade ShadeFunc
	ready atomic.Bool
}

var _ framegraph.Effect = (*Effect)(nil)

func NewEffect(name string, shade ShadeFunc) *Effect {
	fx := &Effect{name: name, shade: shade}
	fx.ready.Store(true)
	return fx
}

func (fx *Effect) Name() string {
	return fx.name
}

func (fx *Effect) IsReady() bool {
	return fx.ready.Load()
}

// SetReady simulates asynchronous compilation in tests.
func (fx *Effect) SetReady(ready bool) {
	fx.ready.Store(ready)
}

// ApplyEffect runs a softgpu Effect over every color attachment of the
// bound target. Inputs are sampled with nearest filtering.
func (e *Engine) ApplyEffect(effect framegraph.Effect, inputs []framegraph.Texture) error {
	fx, ok := effect.(*Effect)
	if !ok {
		return fmt.Errorf("softgpu: %T is not a softgpu effect", effect)
	}
	if !fx.ready.Load() {
		return fmt.Errorf("softgpu: effect %q is not ready", fx.name)
	}
	srcs := make([]*Texture, len(inputs))
	for i, in := range inputs {
		t, err := e.texture(in)
		if err != nil {
			return fmt.Errorf("effect %q input %d: %w", fx.name, i, err)
		}
		if t.rgba == nil {
			return fmt.Errorf("softgpu: effect %q input %d is a depth texture", fx.name, i)
		}
		srcs[i] = t
	}
	colors, _, err := e.targets()
	if err != nil {
		return err
	}

	texels := make([]color.RGBA, len(srcs))
	for _, dst := range colors {
		if dst.rgba == nil {
			continue
		}
		for _, s := range srcs {
			if s == dst {
				return fmt.Errorf("softgpu: effect %q reads its own target %q", fx.name, dst.label)
			}
		}
		for y := range dst.height {
			for x := range dst.width {
				for i, s := range srcs {
					texels[i] = s.rgba.RGBAAt(x*s.width/dst.width, y*s.height/dst.height)
				}
				dst.rgba.SetRGBA(x, y, fx.shade(x, y, texels))
			}
		}
	}
	e.stats.Effects++
	return nil
}

// Invert returns an effect inverting the color channels of its first input.
func Invert() *Effect {
	return NewEffect("invert", func(_, _ int, in []color.RGBA) color.RGBA {
		c := in[0]
		return color.RGBA{R: 255 - c.R, G: 255 - c.G, B: 255 - c.B, A: c.A}
	})
}

// Blend returns an effect mixing its two inputs, weight being the share of
// the second one.
func Blend(weight float64) *Effect {
	return NewEffect("blend", func(_, _ int, in []color.RGBA) color.RGBA {
		mix := func(a, b uint8) uint8 {
			return uint8(float64(a)*(1-weight) + float64(b)*weight + 0.5)
		}
		a, b := in[0], in[1]
		return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
	})
}

// Grayscale returns a luminance effect over its first input.
func Grayscale() *Effect {
	return NewEffect("grayscale", func(_, _ int, in []color.RGBA) color.RGBA {
		c := in[0]
		l := uint8(0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B) + 0.5)
		return color.RGBA{R: l, G: l, B: l, A: c.A}
	})
}
