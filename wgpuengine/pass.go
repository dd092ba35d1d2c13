package wgpuengine

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/framegraph"
)

// attachments are the textures of the bound render target.
type attachments struct {
	colors []*Texture
	depth  *Texture
}

func (a attachments) formats() []framegraph.TextureFormat {
	out := make([]framegraph.TextureFormat, len(a.colors))
	for i, c := range a.colors {
		out[i] = c.format
	}
	return out
}

func (a attachments) samples() uint32 {
	if len(a.colors) > 0 {
		return a.colors[0].samples
	}
	return 1
}

func asTexture(tex framegraph.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || t == nil {
		return nil, fmt.Errorf("wgpuengine: %T is not a wgpuengine texture", tex)
	}
	if t.released {
		return nil, fmt.Errorf("wgpuengine: texture %q used after release", t.label)
	}
	return t, nil
}

func (e *Engine) BindRenderTarget(rt *framegraph.RenderTargetWrapper) error {
	e.bound = rt
	_, err := e.targets()
	return err
}

func (e *Engine) ReleaseRenderTarget(rt *framegraph.RenderTargetWrapper) {
	if e.bound == rt {
		e.bound = nil
	}
	rt.SetEngineData(nil)
}

func (e *Engine) targets() (attachments, error) {
	var a attachments
	if e.bound == nil {
		color, depth := e.Backbuffer()
		if color == nil {
			return a, ErrNoFrame
		}
		a.colors = []*Texture{color.(*Texture)}
		if depth != nil {
			a.depth = depth.(*Texture)
		}
		return a, nil
	}
	for i := range e.bound.ColorCount() {
		t, err := asTexture(e.bound.Texture(i))
		if err != nil {
			return a, fmt.Errorf("render target %q color %d: %w", e.bound.Label(), i, err)
		}
		a.colors = append(a.colors, t)
	}
	if d := e.bound.Depth(); d != nil {
		t, err := asTexture(d)
		if err != nil {
			return a, fmt.Errorf("render target %q depth: %w", e.bound.Label(), err)
		}
		a.depth = t
	}
	return a, nil
}

type clearOps struct {
	color   *framegraph.Color
	depth   bool
	stencil bool
}

// beginPass opens a render pass on the bound target. Attachments not
// cleared are loaded. The depth attachment is only bound when withDepth is
// set, since the blit and effect pipelines have no depth state.
func (e *Engine) beginPass(a attachments, ops clearOps, withDepth bool) (*wgpu.RenderPassEncoder, error) {
	enc, err := e.commandEncoder()
	if err != nil {
		return nil, err
	}
	desc := &wgpu.RenderPassDescriptor{Label: "frame graph pass"}
	for _, c := range a.colors {
		att := wgpu.RenderPassColorAttachment{
			View:    c.renderView,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if ops.color != nil {
			att.LoadOp = wgpu.LoadOpClear
			att.ClearValue = wgpu.Color{R: ops.color.R, G: ops.color.G, B: ops.color.B, A: ops.color.A}
		}
		desc.ColorAttachments = append(desc.ColorAttachments, att)
	}
	if withDepth && a.depth != nil {
		ds := &wgpu.RenderPassDepthStencilAttachment{
			View:            a.depth.renderView,
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
		if ops.depth {
			ds.DepthLoadOp = wgpu.LoadOpClear
		}
		if a.depth.format.HasStencil() {
			ds.StencilLoadOp = wgpu.LoadOpLoad
			ds.StencilStoreOp = wgpu.StoreOpStore
			if ops.stencil {
				ds.StencilLoadOp = wgpu.LoadOpClear
			}
		}
		desc.DepthStencilAttachment = ds
	}
	e.stats.RenderPasses++
	return enc.BeginRenderPass(desc), nil
}

func (e *Engine) Clear(color framegraph.Color, clearColor, clearDepth, clearStencil bool) error {
	a, err := e.targets()
	if err != nil {
		return err
	}
	ops := clearOps{depth: clearDepth, stencil: clearStencil}
	if clearColor {
		ops.color = &color
	}
	pass, err := e.beginPass(a, ops, true)
	if err != nil {
		return err
	}
	defer pass.Release()
	return pass.End()
}

// blitPipeline returns the copy pipeline for the given target formats.
// Only the first attachment is written.
func (e *Engine) blitPipeline(formats []framegraph.TextureFormat, samples uint32) (*wgpu.RenderPipeline, error) {
	key := pipelineKey(formats, samples)
	if p, ok := e.blits[key]; ok {
		return p, nil
	}
	p, err := e.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "blit " + key,
		Vertex: wgpu.VertexState{
			Module:     e.blit,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     e.blit,
			EntryPoint: "fs_main",
			Targets:    colorTargets(formats),
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuengine: blit pipeline %s: %w", key, err)
	}
	e.blits[key] = p
	return p, nil
}

func pipelineKey(formats []framegraph.TextureFormat, samples uint32) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s x%d", strings.Join(parts, "+"), samples)
}

func colorTargets(formats []framegraph.TextureFormat) []wgpu.ColorTargetState {
	out := make([]wgpu.ColorTargetState, len(formats))
	for i, f := range formats {
		out[i] = wgpu.ColorTargetState{Format: toWgpuFormat(f), WriteMask: wgpu.ColorWriteMaskNone}
	}
	if len(out) > 0 {
		out[0].WriteMask = wgpu.ColorWriteMaskAll
	}
	return out
}

// draw runs a full screen triangle with the given inputs bound after the sampler.
func (e *Engine) draw(a attachments, pipeline *wgpu.RenderPipeline, sampling framegraph.SamplingMode, inputs []*wgpu.TextureView) error {
	s, err := e.sampler(sampling)
	if err != nil {
		return err
	}
	layout := pipeline.GetBindGroupLayout(0)
	defer layout.Release()
	entries := []wgpu.BindGroupEntry{{Binding: 0, Sampler: s}}
	for i, v := range inputs {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i + 1), TextureView: v})
	}
	bg, err := e.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpuengine: bind group: %w", err)
	}
	defer bg.Release()

	pass, err := e.beginPass(a, clearOps{}, false)
	if err != nil {
		return err
	}
	defer pass.Release()
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Draw(3, 1, 0, 0)
	return pass.End()
}

func sampledBy(t *Texture, a attachments) bool {
	for _, c := range a.colors {
		if c == t {
			return true
		}
	}
	return a.depth == t
}

// CopyTexture copies src into the first color attachment of the bound
// target. Equal sizes and formats use a texture copy, anything else is
// drawn with a filtered blit.
func (e *Engine) CopyTexture(src framegraph.Texture) error {
	s, err := asTexture(src)
	if err != nil {
		return err
	}
	a, err := e.targets()
	if err != nil {
		return err
	}
	if len(a.colors) == 0 {
		return fmt.Errorf("wgpuengine: copy of %q into a target without color attachment", s.label)
	}
	if sampledBy(s, a) {
		return fmt.Errorf("wgpuengine: copy of %q onto itself", s.label)
	}
	if s.format.IsDepth() {
		return fmt.Errorf("wgpuengine: cannot copy depth texture %q", s.label)
	}

	dst := a.colors[0]
	if len(a.colors) == 1 && s.width == dst.width && s.height == dst.height && s.format == dst.format &&
		s.samples == dst.samples && s.usage&framegraph.TextureUsageCopySrc != 0 && dst.usage&framegraph.TextureUsageCopyDst != 0 {
		enc, err := e.commandEncoder()
		if err != nil {
			return err
		}
		enc.CopyTextureToTexture(
			&wgpu.ImageCopyTexture{Texture: s.texture, Aspect: wgpu.TextureAspectAll},
			&wgpu.ImageCopyTexture{Texture: dst.texture, Aspect: wgpu.TextureAspectAll},
			&wgpu.Extent3D{Width: uint32(s.width), Height: uint32(s.height), DepthOrArrayLayers: 1},
		)
		e.stats.TextureCopies++
		return nil
	}

	if s.usage&framegraph.TextureUsageTextureBinding == 0 {
		return fmt.Errorf("wgpuengine: %q cannot be sampled", s.label)
	}
	pipeline, err := e.blitPipeline(a.formats(), a.samples())
	if err != nil {
		return err
	}
	return e.draw(a, pipeline, framegraph.SamplingLinear, []*wgpu.TextureView{s.view})
}

// GenerateMipmaps downsamples level i-1 into level i for the whole chain.
func (e *Engine) GenerateMipmaps(tex framegraph.Texture) error {
	t, err := asTexture(tex)
	if err != nil {
		return err
	}
	if t.mips <= 1 {
		return nil
	}
	if t.format.IsDepth() {
		return fmt.Errorf("wgpuengine: cannot generate mipmaps of depth texture %q", t.label)
	}
	formats := []framegraph.TextureFormat{t.format}
	pipeline, err := e.blitPipeline(formats, 1)
	if err != nil {
		return err
	}
	prev := t.renderView
	for level := uint32(1); level < t.mips; level++ {
		dst, err := t.mipView(level)
		if err != nil {
			return err
		}
		// a bare Texture lets beginPass render into the level view
		a := attachments{colors: []*Texture{{label: t.label, format: t.format, samples: 1, renderView: dst}}}
		err = e.draw(a, pipeline, framegraph.SamplingLinear, []*wgpu.TextureView{prev})
		if prev != t.renderView {
			prev.Release()
		}
		if err != nil {
			dst.Release()
			return fmt.Errorf("mip %d of %q: %w", level, t.label, err)
		}
		prev = dst
	}
	if prev != t.renderView {
		prev.Release()
	}
	return nil
}
