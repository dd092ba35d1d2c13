package softgpu

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/framegraph"
)

func createColor(t *testing.T, e *Engine, w, h int) *Texture {
	t.Helper()
	tex, err := e.CreateTexture(framegraph.TextureDescriptor{
		Label:  "tex",
		Width:  w,
		Height: h,
		Format: framegraph.TextureFormatRGBA8Unorm,
	})
	require.NoError(t, err)
	return tex.(*Texture)
}

func TestEngine_CreateAndRelease(t *testing.T) {
	e := NewEngine(8, 4)

	_, err := e.CreateTexture(framegraph.TextureDescriptor{Label: "bad", Width: 0, Height: 4, Format: framegraph.TextureFormatRGBA8Unorm})
	assert.Error(t, err)
	_, err = e.CreateTexture(framegraph.TextureDescriptor{Label: "noformat", Width: 4, Height: 4})
	assert.Error(t, err)

	tex := createColor(t, e, 4, 4)
	assert.Equal(t, 1, e.LiveTextures())

	e.ReleaseTexture(tex)
	e.ReleaseTexture(tex)
	assert.True(t, tex.Released())
	assert.Equal(t, 0, e.LiveTextures())
	assert.Equal(t, 1, e.Stats().TexturesReleased)
	assert.Equal(t, 1, e.Stats().DoubleReleases)
}

func TestEngine_ClearBackbuffer(t *testing.T) {
	e := NewEngine(4, 4)
	require.NoError(t, e.BindRenderTarget(nil))
	require.NoError(t, e.Clear(framegraph.Color{R: 1, G: 0, B: 0, A: 1}, true, true, true))

	assert.Equal(t, color.RGBA{R: 255, A: 255}, e.BackbufferTexture().At(3, 3))
	_, depth := e.Backbuffer()
	require.NotNil(t, depth)
	assert.Equal(t, float32(1), depth.(*Texture).DepthAt(0, 0))
}

func TestEngine_CopyScales(t *testing.T) {
	e := NewEngine(8, 8)
	src := createColor(t, e, 2, 2)
	src.Fill(color.RGBA{G: 200, A: 255})

	require.NoError(t, e.BindRenderTarget(nil))
	require.NoError(t, e.CopyTexture(src))

	bb := e.BackbufferTexture()
	assert.Equal(t, color.RGBA{G: 200, A: 255}, bb.At(0, 0))
	assert.Equal(t, color.RGBA{G: 200, A: 255}, bb.At(7, 7))
}

func TestEngine_CopyIntoRenderTarget(t *testing.T) {
	e := NewEngine(8, 8)
	src := createColor(t, e, 4, 4)
	dst := createColor(t, e, 4, 4)
	src.Set(1, 2, color.RGBA{B: 99, A: 255})

	rt := framegraph.NewRenderTargetWrapper("dst", []framegraph.Texture{dst}, nil)
	require.NoError(t, e.BindRenderTarget(rt))
	require.NoError(t, e.CopyTexture(src))

	assert.Equal(t, color.RGBA{B: 99, A: 255}, dst.At(1, 2))
	assert.Equal(t, color.RGBA{}, e.BackbufferTexture().At(1, 2))

	assert.Error(t, e.CopyTexture(dst), "copy onto itself")
}

func TestEngine_UseAfterRelease(t *testing.T) {
	e := NewEngine(4, 4)
	dst := createColor(t, e, 4, 4)
	e.ReleaseTexture(dst)

	rt := framegraph.NewRenderTargetWrapper("dst", []framegraph.Texture{dst}, nil)
	assert.Error(t, e.BindRenderTarget(rt))
}

func TestEngine_GenerateMipmaps(t *testing.T) {
	e := NewEngine(4, 4)
	tex, err := e.CreateTexture(framegraph.TextureDescriptor{
		Label:         "mipped",
		Width:         8,
		Height:        4,
		Format:        framegraph.TextureFormatRGBA8Unorm,
		MipLevelCount: framegraph.MipLevels(8, 4),
	})
	require.NoError(t, err)
	st := tex.(*Texture)
	st.Fill(color.RGBA{R: 10, G: 20, B: 30, A: 255})
	require.Equal(t, 4, st.MipLevels())

	require.NoError(t, e.GenerateMipmaps(st))
	last := st.Mip(3)
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Bounds().Dx())
	assert.Equal(t, 1, last.Bounds().Dy())
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, last.RGBAAt(0, 0))
}

func TestEngine_ApplyEffect(t *testing.T) {
	e := NewEngine(4, 4)
	a := createColor(t, e, 4, 4)
	b := createColor(t, e, 2, 2)
	a.Fill(color.RGBA{R: 100, A: 255})
	b.Fill(color.RGBA{R: 200, A: 255})

	require.NoError(t, e.BindRenderTarget(nil))
	require.NoError(t, e.ApplyEffect(Blend(0.5), []framegraph.Texture{a, b}))
	assert.Equal(t, color.RGBA{R: 150, A: 255}, e.BackbufferTexture().At(2, 2))

	require.NoError(t, e.ApplyEffect(Invert(), []framegraph.Texture{a}))
	assert.Equal(t, color.RGBA{R: 155, G: 255, B: 255, A: 255}, e.BackbufferTexture().At(0, 0))

	fx := Grayscale()
	fx.SetReady(false)
	assert.Error(t, e.ApplyEffect(fx, []framegraph.Texture{a}))
}

func TestEngine_Resize(t *testing.T) {
	e := NewEngine(4, 4)
	before := e.BackbufferTexture()
	e.Resize(16, 9)

	w, h := e.RenderSize()
	assert.Equal(t, 16, w)
	assert.Equal(t, 9, h)
	assert.NotSame(t, before, e.BackbufferTexture())
	assert.Equal(t, 16, e.BackbufferTexture().Width())
}
