// Package softgpu is a CPU implementation of framegraph.Engine. It renders
// into image.RGBA textures and is meant for tests and headless tools.
package softgpu

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/gekko3d/framegraph"
)

type Option func(*Engine)

func WithLogger(logger framegraph.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithBackbufferFormat sets the color format of the backbuffer, RGBA8Unorm by default.
func WithBackbufferFormat(f framegraph.TextureFormat) Option {
	return func(e *Engine) {
		e.backbufferFormat = f
	}
}

// WithoutDepth creates the backbuffer without a depth attachment.
func WithoutDepth() Option {
	return func(e *Engine) {
		e.noDepth = true
	}
}

// Stats counts engine calls.
type Stats struct {
	TexturesCreated  int
	TexturesReleased int
	DoubleReleases   int
	Binds            int
	Clears           int
	Copies           int
	Effects          int
	MipGenerations   int
	TargetsReleased  int
}

type Engine struct {
	logger framegraph.Logger

	width, height    int
	backbufferFormat framegraph.TextureFormat
	noDepth          bool
	backColor        *Texture
	backDepth        *Texture

	bound *framegraph.RenderTargetWrapper
	live  map[*Texture]struct{}
	next  int
	stats Stats
}

var _ framegraph.Engine = (*Engine)(nil)

func NewEngine(width, height int, opts ...Option) *Engine {
	e := &Engine{
		width:            width,
		height:           height,
		backbufferFormat: framegraph.TextureFormatRGBA8Unorm,
		live:             make(map[*Texture]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = framegraph.NewNopLogger()
	}
	e.createBackbuffer()
	return e
}

func (e *Engine) createBackbuffer() {
	e.next++
	e.backColor = newTexture(e.next, framegraph.TextureDescriptor{
		Label:  "backbuffer",
		Width:  e.width,
		Height: e.height,
		Format: e.backbufferFormat,
	})
	e.backDepth = nil
	if !e.noDepth {
		e.next++
		e.backDepth = newTexture(e.next, framegraph.TextureDescriptor{
			Label:  "backbuffer depth",
			Width:  e.width,
			Height: e.height,
			Format: framegraph.TextureFormatDepth24PlusStencil8,
		})
	}
}

// Resize changes the render size and recreates the backbuffer. Percentage
// sized textures follow on the next frame graph build.
func (e *Engine) Resize(width, height int) {
	if width == e.width && height == e.height {
		return
	}
	e.width, e.height = width, height
	e.createBackbuffer()
	e.bound = nil
}

func (e *Engine) RenderSize() (int, int) {
	return e.width, e.height
}

func (e *Engine) Stats() Stats {
	return e.stats
}

// LiveTextures is the number of created textures not yet released.
func (e *Engine) LiveTextures() int {
	return len(e.live)
}

// BackbufferTexture is the color texture passes render to when the
// backbuffer is bound.
func (e *Engine) BackbufferTexture() *Texture {
	return e.backColor
}

func (e *Engine) Backbuffer() (framegraph.Texture, framegraph.Texture) {
	if e.backDepth == nil {
		return e.backColor, nil
	}
	return e.backColor, e.backDepth
}

func (e *Engine) CreateTexture(desc framegraph.TextureDescriptor) (framegraph.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("softgpu: texture %q has invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if desc.Format == framegraph.TextureFormatUndefined {
		return nil, fmt.Errorf("softgpu: texture %q has no format", desc.Label)
	}
	e.next++
	t := newTexture(e.next, desc)
	e.live[t] = struct{}{}
	e.stats.TexturesCreated++
	e.logger.Debugf("softgpu: created %q %dx%d %s", desc.Label, desc.Width, desc.Height, desc.Format)
	return t, nil
}

func (e *Engine) ReleaseTexture(tex framegraph.Texture) {
	t, ok := tex.(*Texture)
	if !ok || t == nil {
		return
	}
	if t.released {
		e.stats.DoubleReleases++
		e.logger.Errorf("softgpu: texture %q released twice", t.label)
		return
	}
	t.released = true
	delete(e.live, t)
	e.stats.TexturesReleased++
}

func (e *Engine) ReleaseRenderTarget(rt *framegraph.RenderTargetWrapper) {
	if rt == nil {
		return
	}
	if e.bound == rt {
		e.bound = nil
	}
	e.stats.TargetsReleased++
}

func (e *Engine) BindRenderTarget(rt *framegraph.RenderTargetWrapper) error {
	if rt != nil {
		for i := range rt.ColorCount() {
			if _, err := e.texture(rt.Texture(i)); err != nil {
				return fmt.Errorf("color attachment %d: %w", i, err)
			}
		}
		if rt.Depth() != nil {
			if _, err := e.texture(rt.Depth()); err != nil {
				return fmt.Errorf("depth attachment: %w", err)
			}
		}
	}
	e.bound = rt
	e.stats.Binds++
	return nil
}

// BoundRenderTarget is the wrapper bound last, nil for the backbuffer.
func (e *Engine) BoundRenderTarget() *framegraph.RenderTargetWrapper {
	return e.bound
}

func (e *Engine) texture(tex framegraph.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || t == nil {
		return nil, fmt.Errorf("softgpu: %T is not a softgpu texture", tex)
	}
	if t.released {
		return nil, fmt.Errorf("softgpu: texture %q used after release", t.label)
	}
	return t, nil
}

// targets returns the color and depth attachments currently bound.
func (e *Engine) targets() ([]*Texture, *Texture, error) {
	if e.bound == nil {
		return []*Texture{e.backColor}, e.backDepth, nil
	}
	colors := make([]*Texture, 0, e.bound.ColorCount())
	for i := range e.bound.ColorCount() {
		t, err := e.texture(e.bound.Texture(i))
		if err != nil {
			return nil, nil, err
		}
		colors = append(colors, t)
	}
	var depth *Texture
	if e.bound.Depth() != nil {
		t, err := e.texture(e.bound.Depth())
		if err != nil {
			return nil, nil, err
		}
		depth = t
	}
	return colors, depth, nil
}

func toRGBA(c framegraph.Color) color.RGBA {
	conv := func(v float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return color.RGBA{R: conv(c.R), G: conv(c.G), B: conv(c.B), A: conv(c.A)}
}

func (e *Engine) Clear(c framegraph.Color, clearColor, clearDepth, clearStencil bool) error {
	colors, depth, err := e.targets()
	if err != nil {
		return err
	}
	if clearColor {
		rgba := toRGBA(c)
		for _, t := range colors {
			if t.rgba != nil {
				draw.Draw(t.rgba, t.rgba.Bounds(), image.NewUniform(rgba), image.Point{}, draw.Src)
			}
		}
	}
	if (clearDepth || clearStencil) && depth != nil {
		depth.fillDepth(1)
	}
	e.stats.Clears++
	return nil
}

// CopyTexture draws src over every color attachment of the bound target,
// scaling bilinearly when the sizes differ.
func (e *Engine) CopyTexture(src framegraph.Texture) error {
	s, err := e.texture(src)
	if err != nil {
		return err
	}
	if s.rgba == nil {
		return fmt.Errorf("softgpu: cannot copy depth texture %q", s.label)
	}
	colors, _, err := e.targets()
	if err != nil {
		return err
	}
	for _, dst := range colors {
		if dst == s {
			return fmt.Errorf("softgpu: texture %q copied onto itself", s.label)
		}
		if dst.rgba == nil {
			continue
		}
		if dst.rgba.Bounds().Size() == s.rgba.Bounds().Size() {
			draw.Draw(dst.rgba, dst.rgba.Bounds(), s.rgba, image.Point{}, draw.Src)
		} else {
			draw.BiLinear.Scale(dst.rgba, dst.rgba.Bounds(), s.rgba, s.rgba.Bounds(), draw.Src, nil)
		}
	}
	e.stats.Copies++
	return nil
}

// GenerateMipmaps fills every mip level of tex by halving the previous one.
func (e *Engine) GenerateMipmaps(tex framegraph.Texture) error {
	t, err := e.texture(tex)
	if err != nil {
		return err
	}
	if t.rgba == nil {
		return fmt.Errorf("softgpu: cannot generate mipmaps of depth texture %q", t.label)
	}
	prev := t.rgba
	for i := range t.mips {
		w := max(1, prev.Bounds().Dx()/2)
		h := max(1, prev.Bounds().Dy()/2)
		level := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(level, level.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		t.mips[i] = level
		prev = level
	}
	e.stats.MipGenerations++
	return nil
}
