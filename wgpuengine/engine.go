// Package wgpuengine implements framegraph.Engine on WebGPU. Every engine
// call records into one command encoder per frame, submitted by EndFrame.
package wgpuengine

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/framegraph"
	"github.com/gekko3d/framegraph/wgpuengine/shaders"
)

var ErrNoFrame = errors.New("wgpuengine: no frame in progress")

type Option func(*Engine)

func WithLogger(logger framegraph.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSurface presents to surface instead of rendering into an offscreen
// backbuffer.
func WithSurface(surface *wgpu.Surface, adapter *wgpu.Adapter, config *wgpu.SurfaceConfiguration) Option {
	return func(e *Engine) {
		e.surface = surface
		e.adapter = adapter
		e.surfaceConfig = config
	}
}

// WithDepthFormat sets the backbuffer depth format, Depth24PlusStencil8 by default.
// TextureFormatUndefined disables the backbuffer depth attachment.
func WithDepthFormat(f framegraph.TextureFormat) Option {
	return func(e *Engine) {
		e.depthFormat = f
	}
}

type Stats struct {
	TexturesCreated  int
	TexturesReleased int
	RenderPasses     int
	TextureCopies    int
	Submits          int
}

type Engine struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	logger framegraph.Logger

	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	surfaceConfig *wgpu.SurfaceConfiguration

	width, height int
	colorFormat   framegraph.TextureFormat
	depthFormat   framegraph.TextureFormat

	offscreen *Texture
	frame     *Texture
	depth     *Texture

	encoder  *wgpu.CommandEncoder
	bound    *framegraph.RenderTargetWrapper
	samplers map[framegraph.SamplingMode]*wgpu.Sampler
	blit     *wgpu.ShaderModule
	blits    map[string]*wgpu.RenderPipeline
	effects  []*Effect

	stats Stats
}

var _ framegraph.Engine = (*Engine)(nil)

// NewEngine renders with device at width x height. Without WithSurface the
// backbuffer is an offscreen RGBA8 texture.
func NewEngine(device *wgpu.Device, width, height int, opts ...Option) (*Engine, error) {
	e := &Engine{
		device:      device,
		queue:       device.GetQueue(),
		width:       width,
		height:      height,
		colorFormat: framegraph.TextureFormatRGBA8Unorm,
		depthFormat: framegraph.TextureFormatDepth24PlusStencil8,
		samplers:    make(map[framegraph.SamplingMode]*wgpu.Sampler),
		blits:       make(map[string]*wgpu.RenderPipeline),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = framegraph.NewNopLogger()
	}
	if e.surfaceConfig != nil {
		e.colorFormat = fromWgpuFormat(e.surfaceConfig.Format)
	}

	blit, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "blit",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FullscreenWGSL + shaders.BlitWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuengine: blit shader: %w", err)
	}
	e.blit = blit

	if err := e.createBackbuffer(); err != nil {
		e.Release()
		return nil, err
	}
	return e, nil
}

func (e *Engine) Device() *wgpu.Device {
	return e.device
}

func (e *Engine) Stats() Stats {
	return e.stats
}

func (e *Engine) createBackbuffer() error {
	if e.surface == nil {
		if e.offscreen != nil {
			e.offscreen.release()
		}
		tex, err := newTexture(e.device, framegraph.TextureDescriptor{
			Label:  "backbuffer",
			Width:  e.width,
			Height: e.height,
			Format: e.colorFormat,
			Usage:  framegraph.DefaultTextureUsage,
		})
		if err != nil {
			return err
		}
		e.offscreen = tex
	}

	if e.depth != nil {
		e.depth.release()
		e.depth = nil
	}
	if e.depthFormat == framegraph.TextureFormatUndefined {
		return nil
	}
	depth, err := newTexture(e.device, framegraph.TextureDescriptor{
		Label:  "backbuffer depth",
		Width:  e.width,
		Height: e.height,
		Format: e.depthFormat,
		Usage:  framegraph.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	e.depth = depth
	return nil
}

// Resize reconfigures the surface and recreates the backbuffer. The frame
// graph must be built again to follow the new size.
func (e *Engine) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	e.width, e.height = width, height
	if e.surface != nil {
		e.surfaceConfig.Width = uint32(width)
		e.surfaceConfig.Height = uint32(height)
		e.surface.Configure(e.adapter, e.device, e.surfaceConfig)
	}
	return e.createBackbuffer()
}

func (e *Engine) RenderSize() (int, int) {
	return e.width, e.height
}

func (e *Engine) CreateTexture(desc framegraph.TextureDescriptor) (framegraph.Texture, error) {
	t, err := newTexture(e.device, desc)
	if err != nil {
		return nil, err
	}
	e.stats.TexturesCreated++
	return t, nil
}

func (e *Engine) ReleaseTexture(tex framegraph.Texture) {
	t, ok := tex.(*Texture)
	if !ok || t.released {
		e.logger.Warnf("wgpuengine: release of unknown or released texture %v", tex)
		return
	}
	t.release()
	e.stats.TexturesReleased++
}

func (e *Engine) Backbuffer() (framegraph.Texture, framegraph.Texture) {
	var color, depth framegraph.Texture
	switch {
	case e.frame != nil:
		color = e.frame
	case e.offscreen != nil:
		color = e.offscreen
	}
	if e.depth != nil {
		depth = e.depth
	}
	return color, depth
}

// BackbufferTexture is the offscreen backbuffer, nil when presenting to a surface.
func (e *Engine) BackbufferTexture() *Texture {
	return e.offscreen
}

// BeginFrame acquires the next swapchain image and opens the frame's
// command encoder. Call it before FrameGraph.Execute.
func (e *Engine) BeginFrame() error {
	if e.surface != nil {
		st, err := e.surface.GetCurrentTexture()
		if err != nil {
			return fmt.Errorf("wgpuengine: acquire surface texture: %w", err)
		}
		frame, err := wrapSurfaceTexture(st, e.colorFormat)
		if err != nil {
			st.Release()
			return err
		}
		e.frame = frame
	}
	_, err := e.commandEncoder()
	return err
}

// EndFrame submits the recorded commands and presents the swapchain image.
func (e *Engine) EndFrame() error {
	err := e.Flush()
	if e.frame != nil {
		if err == nil {
			e.surface.Present()
		}
		tex := e.frame.texture
		e.frame.release()
		tex.Release()
		e.frame = nil
	}
	e.bound = nil
	return err
}

// Flush submits the commands recorded so far.
func (e *Engine) Flush() error {
	if e.encoder == nil {
		return nil
	}
	enc := e.encoder
	e.encoder = nil
	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return fmt.Errorf("wgpuengine: finish commands: %w", err)
	}
	defer cmd.Release()
	e.queue.Submit(cmd)
	e.stats.Submits++
	return nil
}

func (e *Engine) commandEncoder() (*wgpu.CommandEncoder, error) {
	if e.encoder != nil {
		return e.encoder, nil
	}
	enc, err := e.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "frame graph"})
	if err != nil {
		return nil, fmt.Errorf("wgpuengine: create command encoder: %w", err)
	}
	e.encoder = enc
	return enc, nil
}

func (e *Engine) sampler(mode framegraph.SamplingMode) (*wgpu.Sampler, error) {
	if s, ok := e.samplers[mode]; ok {
		return s, nil
	}
	filter, mip := wgpu.FilterModeLinear, wgpu.MipmapFilterModeNearest
	switch mode {
	case framegraph.SamplingNearest:
		filter = wgpu.FilterModeNearest
	case framegraph.SamplingTrilinear:
		mip = wgpu.MipmapFilterModeLinear
	}
	s, err := e.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  mip,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuengine: create sampler: %w", err)
	}
	e.samplers[mode] = s
	return s, nil
}

// Release frees every GPU object the engine created itself.
func (e *Engine) Release() {
	if e.encoder != nil {
		e.encoder.Release()
		e.encoder = nil
	}
	for _, fx := range e.effects {
		fx.release()
	}
	e.effects = nil
	for _, p := range e.blits {
		p.Release()
	}
	clear(e.blits)
	for _, s := range e.samplers {
		s.Release()
	}
	clear(e.samplers)
	if e.blit != nil {
		e.blit.Release()
		e.blit = nil
	}
	if e.offscreen != nil {
		e.offscreen.release()
		e.offscreen = nil
	}
	if e.depth != nil {
		e.depth.release()
		e.depth = nil
	}
}
