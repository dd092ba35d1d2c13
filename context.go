package framegraph

import (
	"fmt"
)

// PassContext is shared by every pass of one Execute call.
type PassContext struct {
	graph    *FrameGraph
	engine   Engine
	textures *TextureManager
	logger   Logger

	task string
	pass string
}

func (c *PassContext) Graph() *FrameGraph {
	return c.graph
}

func (c *PassContext) Engine() Engine {
	return c.engine
}

func (c *PassContext) Textures() *TextureManager {
	return c.textures
}

func (c *PassContext) Logger() Logger {
	return c.logger
}

// TaskName and PassName identify the pass being executed.
func (c *PassContext) TaskName() string {
	return c.task
}

func (c *PassContext) PassName() string {
	return c.pass
}

// Texture returns the physical texture to read for h; for a history texture
// that is the previous frame's slot.
func (c *PassContext) Texture(h TextureHandle) Texture {
	return c.textures.GetTextureFromHandle(h)
}

func (c *PassContext) readTexture(h TextureHandle) (Texture, error) {
	tex := c.textures.GetTextureFromHandle(h)
	if tex == nil {
		return nil, fmt.Errorf("%w: %v has no physical texture", ErrUnknownHandle, h)
	}
	return tex, nil
}

// RenderContext extends PassContext with the currently bound render target.
// The binding carries over from one pass to the next.
type RenderContext struct {
	PassContext

	current *RenderTarget
	bound   bool
}

func newRenderContext(g *FrameGraph) *RenderContext {
	return &RenderContext{
		PassContext: PassContext{
			graph:    g,
			engine:   g.engine,
			textures: g.textures,
			logger:   g.logger,
		},
	}
}

func (c *RenderContext) reset() {
	c.current = nil
	c.bound = false
	c.task = ""
	c.pass = ""
}

// CurrentRenderTarget is the target bound last, nil for the backbuffer.
func (c *RenderContext) CurrentRenderTarget() *RenderTarget {
	return c.current
}

// BindRenderTarget binds rt, or the backbuffer when rt is nil. Binding the
// target already bound is a no-op.
func (c *RenderContext) BindRenderTarget(rt *RenderTarget) error {
	if c.bound && c.current == rt {
		return nil
	}
	var w *RenderTargetWrapper
	if rt != nil {
		var err error
		if w, err = rt.Wrapper(); err != nil {
			return err
		}
	}
	if err := c.engine.BindRenderTarget(w); err != nil {
		return fmt.Errorf("bind render target %v: %w", rt, err)
	}
	c.current = rt
	c.bound = true
	return nil
}

func (c *RenderContext) RestoreDefaultRenderTarget() error {
	return c.BindRenderTarget(nil)
}

// Clear clears the attachments of the bound render target.
func (c *RenderContext) Clear(color Color, clearColor, clearDepth, clearStencil bool) error {
	if err := c.ensureBound(); err != nil {
		return err
	}
	return c.engine.Clear(color, clearColor, clearDepth, clearStencil)
}

// CopyTexture copies src into the bound render target.
func (c *RenderContext) CopyTexture(src TextureHandle) error {
	tex, err := c.readTexture(src)
	if err != nil {
		return err
	}
	if err := c.ensureBound(); err != nil {
		return err
	}
	return c.engine.CopyTexture(tex)
}

// CopyCurrentTexture is CopyTexture reading the slot h is rendered into
// this frame. It only differs from CopyTexture for history textures.
func (c *RenderContext) CopyCurrentTexture(src TextureHandle) error {
	e := c.textures.resolveEntry(src)
	if e == nil || e.texture == nil {
		return fmt.Errorf("%w: %v has no physical texture", ErrUnknownHandle, src)
	}
	if err := c.ensureBound(); err != nil {
		return err
	}
	return c.engine.CopyTexture(e.texture)
}

// GenerateMipmaps fills the mip chain of the texture h renders into.
func (c *PassContext) GenerateMipmaps(h TextureHandle) error {
	e := c.textures.resolveEntry(h)
	if e == nil || e.texture == nil {
		return fmt.Errorf("%w: %v has no physical texture", ErrUnknownHandle, h)
	}
	return c.engine.GenerateMipmaps(e.texture)
}

// ApplyEffect draws effect into the bound render target with inputs bound in order.
func (c *RenderContext) ApplyEffect(effect Effect, inputs ...TextureHandle) error {
	if effect == nil {
		return fmt.Errorf("%w: nil effect", ErrInvalidArgument)
	}
	texs := make([]Texture, len(inputs))
	for i, h := range inputs {
		tex, err := c.readTexture(h)
		if err != nil {
			return fmt.Errorf("effect %s input %d: %w", effect.Name(), i, err)
		}
		texs[i] = tex
	}
	if err := c.ensureBound(); err != nil {
		return err
	}
	return c.engine.ApplyEffect(effect, texs)
}

func (c *RenderContext) ensureBound() error {
	if c.bound {
		return nil
	}
	return c.BindRenderTarget(nil)
}
