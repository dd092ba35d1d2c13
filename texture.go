package framegraph

import (
	"fmt"
)

// TextureHandle names a logical texture slot of a TextureManager. It is not a
// texture: the physical texture behind a handle can change between builds
// (Task namespace), between frames (history textures, backbuffer) or never
// exist (unresolved dangling handles).
type TextureHandle int32

const (
	// BackbufferColor is the reserved handle of the backbuffer color attachment.
	BackbufferColor TextureHandle = 0
	// BackbufferDepthStencil is the reserved handle of the backbuffer depth/stencil attachment.
	BackbufferDepthStencil TextureHandle = 1

	// InvalidTextureHandle is never returned by a TextureManager.
	InvalidTextureHandle TextureHandle = -1

	firstUserHandle TextureHandle = 2
)

func IsBackbuffer(h TextureHandle) bool {
	return h == BackbufferColor || h == BackbufferDepthStencil
}

func IsBackbufferColor(h TextureHandle) bool {
	return h == BackbufferColor
}

func IsBackbufferDepthStencil(h TextureHandle) bool {
	return h == BackbufferDepthStencil
}

// Ptr returns a pointer to a copy of h, for the optional handle arguments of
// the TextureManager.
func (h TextureHandle) Ptr() *TextureHandle {
	return &h
}

func (h TextureHandle) String() string {
	switch h {
	case BackbufferColor:
		return "backbuffer-color"
	case BackbufferDepthStencil:
		return "backbuffer-depth"
	case InvalidTextureHandle:
		return "invalid"
	}
	return fmt.Sprintf("#%d", int32(h))
}

// TextureGroup is a run of contiguous handles created together for a
// multi-render-target texture. Sub-textures are reached with At, never by
// adding to the base handle.
type TextureGroup struct {
	base  TextureHandle
	count int
}

func (g TextureGroup) Base() TextureHandle { return g.base }
func (g TextureGroup) Len() int            { return g.count }

// At returns the handle of the i-th sub-texture. It panics if i is out of range.
func (g TextureGroup) At(i int) TextureHandle {
	if i < 0 || i >= g.count {
		panic(fmt.Sprintf("framegraph: texture group index %d out of range [0,%d)", i, g.count))
	}
	return g.base + TextureHandle(i)
}

// Handles returns every handle of the group in order.
func (g TextureGroup) Handles() []TextureHandle {
	out := make([]TextureHandle, g.count)
	for i := range out {
		out[i] = g.base + TextureHandle(i)
	}
	return out
}

// TextureNamespace is the ownership class of a texture entry.
type TextureNamespace uint8

const (
	// NamespaceTask entries are created while a task records and are dropped on every build.
	NamespaceTask TextureNamespace = iota
	// NamespaceGraph entries belong to the frame graph and survive rebuilds until Clear.
	NamespaceGraph
	// NamespaceExternal entries are imported and never allocated or freed by the manager.
	NamespaceExternal
)

func (ns TextureNamespace) String() string {
	switch ns {
	case NamespaceTask:
		return "Task"
	case NamespaceGraph:
		return "Graph"
	case NamespaceExternal:
		return "External"
	}
	return fmt.Sprintf("TextureNamespace(%d)", uint8(ns))
}

// TextureFormat values mirror the WebGPU texture format enum so engines can
// convert with a plain cast.
type TextureFormat uint32

const (
	TextureFormatUndefined           TextureFormat = 0x00000000
	TextureFormatR8Unorm             TextureFormat = 0x00000001
	TextureFormatR8Uint              TextureFormat = 0x00000003
	TextureFormatR32Float            TextureFormat = 0x0000000C
	TextureFormatRG16Float           TextureFormat = 0x00000011
	TextureFormatRGBA8Unorm          TextureFormat = 0x00000012
	TextureFormatRGBA8UnormSrgb      TextureFormat = 0x00000013
	TextureFormatRGBA8Uint           TextureFormat = 0x00000015
	TextureFormatBGRA8Unorm          TextureFormat = 0x00000017
	TextureFormatBGRA8UnormSrgb      TextureFormat = 0x00000018
	TextureFormatRGBA16Float         TextureFormat = 0x00000022
	TextureFormatRGBA32Float         TextureFormat = 0x00000023
	TextureFormatDepth16Unorm        TextureFormat = 0x00000027
	TextureFormatDepth24Plus         TextureFormat = 0x00000028
	TextureFormatDepth24PlusStencil8 TextureFormat = 0x00000029
	TextureFormatDepth32Float        TextureFormat = 0x0000002A
)

func (f TextureFormat) IsDepth() bool {
	switch f {
	case TextureFormatDepth16Unorm, TextureFormatDepth24Plus, TextureFormatDepth24PlusStencil8, TextureFormatDepth32Float:
		return true
	}
	return false
}

func (f TextureFormat) HasStencil() bool {
	return f == TextureFormatDepth24PlusStencil8
}

func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatR8Unorm, TextureFormatR8Uint:
		return 1
	case TextureFormatDepth16Unorm:
		return 2
	case TextureFormatRGBA16Float:
		return 8
	case TextureFormatRGBA32Float:
		return 16
	}
	return 4
}

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatUndefined:
		return "Undefined"
	case TextureFormatR8Unorm:
		return "R8Unorm"
	case TextureFormatR8Uint:
		return "R8Uint"
	case TextureFormatR32Float:
		return "R32Float"
	case TextureFormatRG16Float:
		return "RG16Float"
	case TextureFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case TextureFormatRGBA8UnormSrgb:
		return "RGBA8UnormSrgb"
	case TextureFormatRGBA8Uint:
		return "RGBA8Uint"
	case TextureFormatBGRA8Unorm:
		return "BGRA8Unorm"
	case TextureFormatBGRA8UnormSrgb:
		return "BGRA8UnormSrgb"
	case TextureFormatRGBA16Float:
		return "RGBA16Float"
	case TextureFormatRGBA32Float:
		return "RGBA32Float"
	case TextureFormatDepth16Unorm:
		return "Depth16Unorm"
	case TextureFormatDepth24Plus:
		return "Depth24Plus"
	case TextureFormatDepth24PlusStencil8:
		return "Depth24PlusStencil8"
	case TextureFormatDepth32Float:
		return "Depth32Float"
	}
	return fmt.Sprintf("TextureFormat(0x%x)", uint32(f))
}

// TextureUsage flags mirror the WebGPU texture usage bits.
type TextureUsage uint32

const (
	TextureUsageCopySrc          TextureUsage = 0x01
	TextureUsageCopyDst          TextureUsage = 0x02
	TextureUsageTextureBinding   TextureUsage = 0x04
	TextureUsageStorageBinding   TextureUsage = 0x08
	TextureUsageRenderAttachment TextureUsage = 0x10

	// DefaultTextureUsage is applied when the creation options leave Usage empty.
	DefaultTextureUsage = TextureUsageRenderAttachment | TextureUsageTextureBinding | TextureUsageCopySrc | TextureUsageCopyDst
)

type SamplingMode uint8

const (
	SamplingLinear SamplingMode = iota
	SamplingNearest
	SamplingTrilinear
)

// TextureSize is either an absolute size in pixels or, when Percentage is
// set, a percentage of the render size (100 = full screen).
type TextureSize struct {
	Width      int
	Height     int
	Percentage bool
}

// FullScreen is a 100% x 100% percentage size.
var FullScreen = TextureSize{Width: 100, Height: 100, Percentage: true}

type Dimensions struct {
	Width  int
	Height int
}

// AbsoluteDimensions converts size into pixels against the given screen size.
// Absolute sizes are returned unchanged.
func AbsoluteDimensions(size TextureSize, screenWidth, screenHeight int) Dimensions {
	if !size.Percentage {
		return Dimensions{Width: size.Width, Height: size.Height}
	}
	return Dimensions{
		Width:  size.Width * screenWidth / 100,
		Height: size.Height * screenHeight / 100,
	}
}

// DefaultHistoryLength is the number of slots of a history texture when
// TextureCreationOptions.HistoryLength is not set.
const DefaultHistoryLength = 2

// TextureCreationOptions describe a texture the manager allocates itself.
// More than one format describes a multi-render-target texture, one handle
// per format.
type TextureCreationOptions struct {
	Size          TextureSize
	Formats       []TextureFormat
	Samples       uint32
	MipMaps       bool
	Sampling      SamplingMode
	Usage         TextureUsage
	IsHistory     bool
	HistoryLength int
}

// NewTextureOptions returns options for a single texture of the given size and format.
func NewTextureOptions(size TextureSize, format TextureFormat) TextureCreationOptions {
	return TextureCreationOptions{
		Size:    size,
		Formats: []TextureFormat{format},
		Samples: 1,
	}
}

func (o TextureCreationOptions) textureCount() int {
	if len(o.Formats) == 0 {
		return 1
	}
	return len(o.Formats)
}

func (o TextureCreationOptions) historyLength() int {
	if !o.IsHistory {
		return 1
	}
	if o.HistoryLength < 2 {
		return DefaultHistoryLength
	}
	return o.HistoryLength
}

// single returns a copy of o describing only the i-th texture of a
// multi-render-target set.
func (o TextureCreationOptions) single(i int) TextureCreationOptions {
	c := o
	if len(o.Formats) > 0 {
		c.Formats = []TextureFormat{o.Formats[i]}
	}
	return c
}

func (o TextureCreationOptions) clone() TextureCreationOptions {
	c := o
	c.Formats = append([]TextureFormat(nil), o.Formats...)
	return c
}

// Format returns the first format, or Undefined.
func (o TextureCreationOptions) Format() TextureFormat {
	if len(o.Formats) == 0 {
		return TextureFormatUndefined
	}
	return o.Formats[0]
}

// TextureDescriptor is what an Engine receives to create one physical texture.
type TextureDescriptor struct {
	Label         string
	Width         int
	Height        int
	Format        TextureFormat
	Samples       uint32
	MipLevelCount uint32
	Sampling      SamplingMode
	Usage         TextureUsage
}

// MipLevels returns the full mip chain length for the given dimensions.
func MipLevels(width, height int) uint32 {
	dim := width
	if height > dim {
		dim = height
	}
	levels := uint32(0)
	for dim > 0 {
		levels++
		dim >>= 1
	}
	if levels == 0 {
		levels = 1
	}
	return levels
}

// Texture is a physical texture created by an Engine or imported from outside.
type Texture interface {
	Label() string
	Width() int
	Height() int
	Format() TextureFormat
}

// TextureDescription is the resolved view of a handle: absolute size and options.
type TextureDescription struct {
	Size    Dimensions
	Options TextureCreationOptions
}
