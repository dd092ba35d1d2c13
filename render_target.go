package framegraph

import (
	"fmt"
	"slices"
)

// RenderTargetWrapper is the physical side of a render target: the textures
// an Engine binds as color and depth attachments. Engines may keep their own
// per-wrapper objects (views, framebuffers) in EngineData.
type RenderTargetWrapper struct {
	label      string
	colors     []Texture
	depth      Texture
	backbuffer bool
	engineData any
}

// NewRenderTargetWrapper wraps physical textures directly. Frame graph code
// gets its wrappers from RenderTarget.Wrapper; this is for engines and tools
// driving an Engine by hand.
func NewRenderTargetWrapper(label string, colors []Texture, depth Texture) *RenderTargetWrapper {
	return &RenderTargetWrapper{
		label:  label,
		colors: slices.Clone(colors),
		depth:  depth,
	}
}

func (w *RenderTargetWrapper) Label() string {
	return w.label
}

func (w *RenderTargetWrapper) ColorCount() int {
	return len(w.colors)
}

func (w *RenderTargetWrapper) Texture(i int) Texture {
	return w.colors[i]
}

func (w *RenderTargetWrapper) Depth() Texture {
	return w.depth
}

func (w *RenderTargetWrapper) IsBackbuffer() bool {
	return w.backbuffer
}

func (w *RenderTargetWrapper) EngineData() any {
	return w.engineData
}

func (w *RenderTargetWrapper) SetEngineData(d any) {
	w.engineData = d
}

// SetTexture repoints color attachment i. Engines must not cache anything
// derived from the texture across calls without checking identity.
func (w *RenderTargetWrapper) SetTexture(i int, tex Texture) {
	w.colors[i] = tex
}

// Size returns the size of the first attachment.
func (w *RenderTargetWrapper) Size() Dimensions {
	switch {
	case len(w.colors) > 0 && w.colors[0] != nil:
		return Dimensions{Width: w.colors[0].Width(), Height: w.colors[0].Height()}
	case w.depth != nil:
		return Dimensions{Width: w.depth.Width(), Height: w.depth.Height()}
	}
	return Dimensions{}
}

// RenderTarget is the logical render target of a render pass: a set of color
// handles and an optional depth handle. Its wrapper is built on first use
// once textures are allocated.
type RenderTarget struct {
	name     string
	manager  *TextureManager
	colors   []TextureHandle
	depth    TextureHandle
	hasDepth bool
	wrapper  *RenderTargetWrapper
}

func (rt *RenderTarget) Name() string { return rt.name }

func (rt *RenderTarget) ColorHandles() []TextureHandle {
	return slices.Clone(rt.colors)
}

func (rt *RenderTarget) DepthHandle() (TextureHandle, bool) {
	return rt.depth, rt.hasDepth
}

// IsBackbuffer reports whether the target only uses the backbuffer attachments.
func (rt *RenderTarget) IsBackbuffer() bool {
	if len(rt.colors) > 1 {
		return false
	}
	if len(rt.colors) == 1 && !IsBackbufferColor(rt.colors[0]) {
		return false
	}
	if rt.hasDepth && !IsBackbufferDepthStencil(rt.depth) {
		return false
	}
	return len(rt.colors) == 1 || rt.hasDepth
}

// Equals reports whether both targets bind the same handles.
func (rt *RenderTarget) Equals(other *RenderTarget) bool {
	if other == nil {
		return false
	}
	return sameTargetHandles(rt.colors, rt.depth, rt.hasDepth, other.colors, other.depth, other.hasDepth)
}

func sameTargetHandles(c1 []TextureHandle, d1 TextureHandle, hasD1 bool, c2 []TextureHandle, d2 TextureHandle, hasD2 bool) bool {
	if hasD1 != hasD2 || (hasD1 && d1 != d2) {
		return false
	}
	return slices.Equal(c1, c2)
}

// Wrapper returns the physical render target, building it on first call.
// Imported attachments (the backbuffer) are refreshed on every call since
// the imported texture changes from frame to frame.
func (rt *RenderTarget) Wrapper() (*RenderTargetWrapper, error) {
	if rt.wrapper == nil {
		w, err := rt.manager.buildWrapper(rt)
		if err != nil {
			return nil, err
		}
		rt.wrapper = w
		return w, nil
	}
	for i, h := range rt.colors {
		if e := rt.manager.resolveEntry(h); e != nil && e.namespace == NamespaceExternal {
			rt.wrapper.colors[i] = e.texture
		}
	}
	if rt.hasDepth {
		if e := rt.manager.resolveEntry(rt.depth); e != nil && e.namespace == NamespaceExternal {
			rt.wrapper.depth = e.texture
		}
	}
	return rt.wrapper, nil
}

func (rt *RenderTarget) String() string {
	if rt.hasDepth {
		return fmt.Sprintf("%s%v+depth(%v)", rt.name, rt.colors, rt.depth)
	}
	return fmt.Sprintf("%s%v", rt.name, rt.colors)
}
