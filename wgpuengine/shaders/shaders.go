package shaders

import (
	_ "embed"
)

//go:embed fullscreen.wgsl
var FullscreenWGSL string

//go:embed blit.wgsl
var BlitWGSL string

//go:embed invert.wgsl
var InvertWGSL string

//go:embed grayscale.wgsl
var GrayscaleWGSL string

//go:embed blend.wgsl
var BlendWGSL string
