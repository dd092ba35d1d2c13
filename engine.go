package framegraph

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float64
}

var (
	ColorBlack       = Color{0, 0, 0, 1}
	ColorTransparent = Color{0, 0, 0, 0}
)

// Effect is an engine-specific full screen program, applied by
// RenderContext.ApplyEffect to the bound render target.
type Effect interface {
	Name() string
	IsReady() bool
}

// Engine is the graphics backend a FrameGraph drives. Implementations are
// not required to be safe for concurrent use: the graph calls them from the
// goroutine that calls Build and Execute.
type Engine interface {
	// RenderSize is the current render (canvas) size, used for percentage sized textures.
	RenderSize() (width, height int)

	CreateTexture(desc TextureDescriptor) (Texture, error)
	ReleaseTexture(tex Texture)

	// Backbuffer returns the textures to render into for the current frame.
	// depth may be nil.
	Backbuffer() (color Texture, depth Texture)

	// BindRenderTarget makes rt the target of subsequent Clear, CopyTexture
	// and ApplyEffect calls. A nil rt binds the backbuffer.
	BindRenderTarget(rt *RenderTargetWrapper) error
	ReleaseRenderTarget(rt *RenderTargetWrapper)

	Clear(color Color, clearColor, clearDepth, clearStencil bool) error
	// CopyTexture copies src into the bound render target, scaling if the sizes differ.
	CopyTexture(src Texture) error
	GenerateMipmaps(tex Texture) error
	ApplyEffect(effect Effect, inputs []Texture) error
}
