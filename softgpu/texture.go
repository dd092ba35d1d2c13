package softgpu

import (
	"image"
	"image/color"

	"github.com/gekko3d/framegraph"
)

// Texture is a CPU texture. Color formats are stored as 8 bit RGBA whatever
// their declared precision; depth formats as one float32 per texel.
type Texture struct {
	id       int
	label    string
	format   framegraph.TextureFormat
	width    int
	height   int
	released bool

	rgba  *image.RGBA
	mips  []*image.RGBA
	depth []float32
}

func newTexture(id int, desc framegraph.TextureDescriptor) *Texture {
	t := &Texture{
		id:     id,
		label:  desc.Label,
		format: desc.Format,
		width:  desc.Width,
		height: desc.Height,
	}
	if desc.Format.IsDepth() {
		t.depth = make([]float32, desc.Width*desc.Height)
		for i := range t.depth {
			t.depth[i] = 1
		}
	} else {
		t.rgba = image.NewRGBA(image.Rect(0, 0, desc.Width, desc.Height))
	}
	if desc.MipLevelCount > 1 {
		t.mips = make([]*image.RGBA, desc.MipLevelCount-1)
	}
	return t
}

func (t *Texture) Label() string                    { return t.label }
func (t *Texture) Width() int                       { return t.width }
func (t *Texture) Height() int                      { return t.height }
func (t *Texture) Format() framegraph.TextureFormat { return t.format }
func (t *Texture) ID() int                          { return t.id }
func (t *Texture) Released() bool                   { return t.released }
func (t *Texture) IsDepth() bool                    { return t.depth != nil }

// Image is the level 0 image of a color texture, nil for depth textures.
func (t *Texture) Image() *image.RGBA {
	return t.rgba
}

// MipLevels is the number of levels including level 0.
func (t *Texture) MipLevels() int {
	return len(t.mips) + 1
}

// Mip returns level i, nil until GenerateMipmaps filled it.
func (t *Texture) Mip(i int) *image.RGBA {
	if i == 0 {
		return t.rgba
	}
	return t.mips[i-1]
}

func (t *Texture) At(x, y int) color.RGBA {
	if t.rgba == nil {
		return color.RGBA{}
	}
	return t.rgba.RGBAAt(x, y)
}

func (t *Texture) Set(x, y int, c color.RGBA) {
	if t.rgba != nil {
		t.rgba.SetRGBA(x, y, c)
	}
}

func (t *Texture) DepthAt(x, y int) float32 {
	if t.depth == nil {
		return 0
	}
	return t.depth[y*t.width+x]
}

// Fill sets every texel of a color texture to c.
func (t *Texture) Fill(c color.RGBA) {
	if t.rgba == nil {
		return
	}
	for y := range t.height {
		for x := range t.width {
			t.rgba.SetRGBA(x, y, c)
		}
	}
}

func (t *Texture) fillDepth(v float32) {
	for i := range t.depth {
		t.depth[i] = v
	}
}
