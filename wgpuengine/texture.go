package wgpuengine

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/framegraph"
)

// Texture is a GPU texture plus the views the engine needs: one over the
// whole mip chain for sampling and one over level 0 for rendering.
type Texture struct {
	label    string
	format   framegraph.TextureFormat
	width    int
	height   int
	samples  uint32
	mips     uint32
	usage    framegraph.TextureUsage
	sampling framegraph.SamplingMode

	texture    *wgpu.Texture
	view       *wgpu.TextureView
	renderView *wgpu.TextureView

	// external textures (swapchain images) are released by their owner
	external bool
	released bool
}

var _ framegraph.Texture = (*Texture)(nil)

func (t *Texture) Label() string                    { return t.label }
func (t *Texture) Width() int                       { return t.width }
func (t *Texture) Height() int                      { return t.height }
func (t *Texture) Format() framegraph.TextureFormat { return t.format }
func (t *Texture) MipLevels() uint32                { return t.mips }
func (t *Texture) Released() bool                   { return t.released }

// Raw exposes the wgpu texture for tasks issuing their own commands.
func (t *Texture) Raw() *wgpu.Texture {
	return t.texture
}

func (t *Texture) View() *wgpu.TextureView {
	return t.view
}

func toWgpuFormat(f framegraph.TextureFormat) wgpu.TextureFormat {
	return wgpu.TextureFormat(f)
}

func fromWgpuFormat(f wgpu.TextureFormat) framegraph.TextureFormat {
	return framegraph.TextureFormat(f)
}

func toWgpuUsage(u framegraph.TextureUsage) wgpu.TextureUsage {
	return wgpu.TextureUsage(u)
}

func aspectOf(f framegraph.TextureFormat) wgpu.TextureAspect {
	if f.IsDepth() && !f.HasStencil() {
		return wgpu.TextureAspectDepthOnly
	}
	return wgpu.TextureAspectAll
}

func newTexture(device *wgpu.Device, desc framegraph.TextureDescriptor) (*Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("wgpuengine: texture %q has size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	samples := max(desc.Samples, 1)
	mips := max(desc.MipLevelCount, 1)
	usage := desc.Usage
	if usage == 0 {
		usage = framegraph.DefaultTextureUsage
	}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          wgpu.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: mips,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        toWgpuFormat(desc.Format),
		Usage:         toWgpuUsage(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuengine: create texture %q: %w", desc.Label, err)
	}
	t := &Texture{
		label:    desc.Label,
		format:   desc.Format,
		width:    desc.Width,
		height:   desc.Height,
		samples:  samples,
		mips:     mips,
		usage:    usage,
		sampling: desc.Sampling,
		texture:  tex,
	}
	if err := t.createViews(); err != nil {
		tex.Release()
		return nil, err
	}
	return t, nil
}

// wrapSurfaceTexture wraps the swapchain image of the current frame.
func wrapSurfaceTexture(tex *wgpu.Texture, format framegraph.TextureFormat) (*Texture, error) {
	t := &Texture{
		label:    "surface",
		format:   format,
		width:    int(tex.GetWidth()),
		height:   int(tex.GetHeight()),
		samples:  1,
		mips:     1,
		usage:    framegraph.TextureUsageRenderAttachment,
		texture:  tex,
		external: true,
	}
	if err := t.createViews(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Texture) createViews() error {
	view, err := t.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           t.label,
		Format:          toWgpuFormat(t.format),
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   t.mips,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          aspectOf(t.format),
	})
	if err != nil {
		return fmt.Errorf("wgpuengine: view of %q: %w", t.label, err)
	}
	t.view = view
	t.renderView = view
	if t.mips > 1 {
		t.renderView, err = t.mipView(0)
		if err != nil {
			view.Release()
			t.view = nil
			return err
		}
	}
	return nil
}

// mipView returns a view over a single mip level. The caller releases it.
func (t *Texture) mipView(level uint32) (*wgpu.TextureView, error) {
	v, err := t.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s mip %d", t.label, level),
		Format:          toWgpuFormat(t.format),
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    level,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          aspectOf(t.format),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuengine: view of %q mip %d: %w", t.label, level, err)
	}
	return v, nil
}

func (t *Texture) release() {
	if t.released {
		return
	}
	t.released = true
	if t.renderView != nil && t.renderView != t.view {
		t.renderView.Release()
	}
	if t.view != nil {
		t.view.Release()
	}
	t.renderView, t.view = nil, nil
	if t.texture != nil && !t.external {
		t.texture.Release()
	}
	t.texture = nil
}
