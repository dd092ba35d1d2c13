package framegraph

import (
	"fmt"
	"slices"

	"github.com/gekko3d/framegraph/scene"
)

// PassKind tags the variant of a recorded pass.
type PassKind uint8

const (
	PassKindGeneric PassKind = iota
	PassKindRender
	PassKindCull
)

func (k PassKind) String() string {
	switch k {
	case PassKindGeneric:
		return "generic"
	case PassKindRender:
		return "render"
	case PassKindCull:
		return "cull"
	}
	return fmt.Sprintf("PassKind(%d)", uint8(k))
}

// Pass is the unit of work recorded by a task. A generic pass runs its
// function with the shared pass context and is always valid.
type Pass struct {
	name             string
	task             Task
	kind             PassKind
	whenTaskDisabled bool
	fn               func(ctx *PassContext) error
}

func (p *Pass) Name() string {
	return p.name
}

func (p *Pass) Task() Task {
	return p.task
}

func (p *Pass) Kind() PassKind {
	return p.kind
}

// WhenTaskDisabled reports whether the pass belongs to the disabled path of its task.
func (p *Pass) WhenTaskDisabled() bool {
	return p.whenTaskDisabled
}

// SetExecuteFunc sets the function run on every execution. A nil function
// makes the pass a no-op.
func (p *Pass) SetExecuteFunc(fn func(ctx *PassContext) error) *Pass {
	p.fn = fn
	return p
}

func (p *Pass) run(ctx *PassContext) error {
	if p.fn == nil {
		return nil
	}
	return p.fn(ctx)
}

// RenderPass renders into a render target and may sample other textures.
type RenderPass struct {
	Pass

	colors   []TextureHandle
	depth    TextureHandle
	hasDepth bool
	used     []TextureHandle
	renderFn func(ctx *RenderContext) error

	target *RenderTarget
}

// SetRenderTarget binds color attachments. No handles leaves the pass
// without color attachments, which is valid when a depth target is set.
func (p *RenderPass) SetRenderTarget(handles ...TextureHandle) *RenderPass {
	p.colors = slices.Clone(handles)
	p.target = nil
	return p
}

func (p *RenderPass) SetRenderTargetDepth(h TextureHandle) *RenderPass {
	p.depth = h
	p.hasDepth = true
	p.target = nil
	return p
}

// UseTexture declares that the pass samples h.
func (p *RenderPass) UseTexture(h TextureHandle) *RenderPass {
	if !slices.Contains(p.used, h) {
		p.used = append(p.used, h)
	}
	return p
}

func (p *RenderPass) SetExecuteFunc(fn func(ctx *RenderContext) error) *RenderPass {
	p.renderFn = fn
	return p
}

func (p *RenderPass) RenderTargetHandles() []TextureHandle {
	return slices.Clone(p.colors)
}

func (p *RenderPass) RenderTargetDepth() (TextureHandle, bool) {
	return p.depth, p.hasDepth
}

func (p *RenderPass) UsedTextures() []TextureHandle {
	return slices.Clone(p.used)
}

// RenderTarget returns the memoized render target of the pass, nil before
// the first execution.
func (p *RenderPass) RenderTarget() *RenderTarget {
	return p.target
}

func (p *RenderPass) sameTarget(other *RenderPass) bool {
	return sameTargetHandles(p.colors, p.depth, p.hasDepth, other.colors, other.depth, other.hasDepth)
}

// handles lists every handle the pass touches, targets first.
func (p *RenderPass) handles() []TextureHandle {
	out := slices.Clone(p.colors)
	if p.hasDepth {
		out = append(out, p.depth)
	}
	return append(out, p.used...)
}

func (p *RenderPass) validate(m *TextureManager) error {
	if len(p.colors) == 0 && !p.hasDepth {
		return fmt.Errorf("%w: render pass %q has no render target", ErrInvalidArgument, p.name)
	}
	targets := slices.Clone(p.colors)
	if p.hasDepth {
		targets = append(targets, p.depth)
	}
	for _, u := range p.used {
		if m.IsHistoryTexture(u) {
			continue
		}
		ru := m.rootHandle(u)
		for _, t := range targets {
			if ru == m.rootHandle(t) {
				return fmt.Errorf("%w: render pass %q samples %v while rendering into it", ErrResourceConflict, p.name, u)
			}
		}
	}
	if p.hasDepth && !m.IsBackbufferDepthStencil(p.depth) {
		if e := m.resolveEntry(p.depth); e != nil {
			if f := e.options.Format(); f != TextureFormatUndefined && !f.IsDepth() {
				return fmt.Errorf("%w: render pass %q uses %v (%s) as depth target", ErrResourceConflict, p.name, p.depth, f)
			}
		}
	}
	return nil
}

func (p *RenderPass) run(ctx *RenderContext) error {
	if p.target == nil {
		var depth *TextureHandle
		if p.hasDepth {
			depth = p.depth.Ptr()
		}
		rt, err := ctx.textures.CreateRenderTarget(p.name, p.colors, depth)
		if err != nil {
			return err
		}
		p.target = rt
	}
	if err := ctx.BindRenderTarget(p.target); err != nil {
		return err
	}
	if p.renderFn == nil {
		return nil
	}
	return p.renderFn(ctx)
}

// CullPass works on an object list, typically filtering it against a camera.
type CullPass struct {
	Pass

	objects *scene.ObjectList
}

func (p *CullPass) SetObjectList(list *scene.ObjectList) *CullPass {
	p.objects = list
	return p
}

func (p *CullPass) ObjectList() *scene.ObjectList {
	return p.objects
}

func (p *CullPass) SetExecuteFunc(fn func(ctx *PassContext) error) *CullPass {
	p.fn = fn
	return p
}

func (p *CullPass) validate() error {
	if p.objects == nil {
		return fmt.Errorf("%w: cull pass %q has no object list", ErrInvalidArgument, p.name)
	}
	return nil
}

// passNode is one entry of a task's pass list. Exactly one of the variant
// pointers is set, matching kind.
type passNode struct {
	kind    PassKind
	generic *Pass
	render  *RenderPass
	cull    *CullPass
}

func (n passNode) pass() *Pass {
	switch n.kind {
	case PassKindRender:
		return &n.render.Pass
	case PassKindCull:
		return &n.cull.Pass
	}
	return n.generic
}

func (n passNode) validate(m *TextureManager) error {
	switch n.kind {
	case PassKindRender:
		return n.render.validate(m)
	case PassKindCull:
		return n.cull.validate()
	}
	return nil
}

func (n passNode) execute(ctx *RenderContext) error {
	switch n.kind {
	case PassKindRender:
		return n.render.run(ctx)
	case PassKindCull:
		return n.cull.run(&ctx.PassContext)
	}
	return n.generic.run(&ctx.PassContext)
}
