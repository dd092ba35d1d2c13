package wgpuengine

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/framegraph"
	"github.com/gekko3d/framegraph/wgpuengine/shaders"
)

// Effect is a full screen fragment program. The fragment source declares
// fs_main and reads its inputs as input0..inputN-1 through input_sampler;
// consts are prepended as WGSL constants.
type Effect struct {
	name     string
	inputs   int
	sampling framegraph.SamplingMode
	source   string

	ready  atomic.Bool
	mu     sync.Mutex
	err    error
	module *wgpu.ShaderModule

	pipelines map[string]*wgpu.RenderPipeline
}

var _ framegraph.Effect = (*Effect)(nil)

func (fx *Effect) Name() string {
	return fx.name
}

// IsReady reports whether the shader module finished compiling.
func (fx *Effect) IsReady() bool {
	return fx.ready.Load()
}

// Err is the compilation error, if any.
func (fx *Effect) Err() error {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return fx.err
}

// SetSampling picks the sampler used for the inputs. Linear by default.
func (fx *Effect) SetSampling(mode framegraph.SamplingMode) *Effect {
	fx.sampling = mode
	return fx
}

// EffectSource assembles the WGSL of an effect with n inputs.
func EffectSource(fragment string, inputs int, consts map[string]float64) string {
	var sb strings.Builder
	sb.WriteString(shaders.FullscreenWGSL)
	sb.WriteString("\n@group(0) @binding(0) var input_sampler: sampler;\n")
	for i := range inputs {
		fmt.Fprintf(&sb, "@group(0) @binding(%d) var input%d: texture_2d<f32>;\n", i+1, i)
	}
	for _, name := range slices.Sorted(maps.Keys(consts)) {
		fmt.Fprintf(&sb, "const %s: f32 = %s;\n", name, wgslFloat(consts[name]))
	}
	sb.WriteString("\n")
	sb.WriteString(fragment)
	return sb.String()
}

func wgslFloat(v float64) string {
	s := fmt.Sprintf("%g", v)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// NewEffect compiles the effect on its own goroutine; IsReady turns true
// once the module exists.
func (e *Engine) NewEffect(name, fragment string, inputs int, consts map[string]float64) *Effect {
	fx := &Effect{
		name:      name,
		inputs:    inputs,
		source:    EffectSource(fragment, inputs, consts),
		pipelines: make(map[string]*wgpu.RenderPipeline),
	}
	e.effects = append(e.effects, fx)
	go func() {
		module, err := e.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          name,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: fx.source},
		})
		fx.mu.Lock()
		fx.module, fx.err = module, err
		fx.mu.Unlock()
		if err != nil {
			e.logger.Errorf("wgpuengine: effect %q: %v", name, err)
			return
		}
		fx.ready.Store(true)
	}()
	return fx
}

func (e *Engine) Invert() *Effect {
	return e.NewEffect("invert", shaders.InvertWGSL, 1, nil)
}

func (e *Engine) Grayscale() *Effect {
	return e.NewEffect("grayscale", shaders.GrayscaleWGSL, 1, nil)
}

// Blend mixes two inputs, weight being the share of the second one.
func (e *Engine) Blend(weight float64) *Effect {
	return e.NewEffect("blend", shaders.BlendWGSL, 2, map[string]float64{"weight": weight})
}

func (fx *Effect) pipeline(device *wgpu.Device, formats []framegraph.TextureFormat, samples uint32) (*wgpu.RenderPipeline, error) {
	key := pipelineKey(formats, samples)
	if p, ok := fx.pipelines[key]; ok {
		return p, nil
	}
	fx.mu.Lock()
	module := fx.module
	fx.mu.Unlock()
	p, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: fx.name + " " + key,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
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
		return nil, fmt.Errorf("wgpuengine: effect %q pipeline %s: %w", fx.name, key, err)
	}
	fx.pipelines[key] = p
	return p, nil
}

func (fx *Effect) release() {
	for _, p := range fx.pipelines {
		p.Release()
	}
	clear(fx.pipelines)
	fx.mu.Lock()
	if fx.module != nil {
		fx.module.Release()
		fx.module = nil
	}
	fx.mu.Unlock()
}

func (e *Engine) ApplyEffect(effect framegraph.Effect, inputs []framegraph.Texture) error {
	fx, ok := effect.(*Effect)
	if !ok {
		return fmt.Errorf("wgpuengine: %T is not a wgpuengine effect", effect)
	}
	if !fx.IsReady() {
		if err := fx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("wgpuengine: effect %q is not ready", fx.name)
	}
	if len(inputs) != fx.inputs {
		return fmt.Errorf("wgpuengine: effect %q takes %d inputs, got %d", fx.name, fx.inputs, len(inputs))
	}
	a, err := e.targets()
	if err != nil {
		return err
	}
	views := make([]*wgpu.TextureView, len(inputs))
	for i, in := range inputs {
		t, err := asTexture(in)
		if err != nil {
			return fmt.Errorf("effect %q input %d: %w", fx.name, i, err)
		}
		if sampledBy(t, a) {
			return fmt.Errorf("wgpuengine: effect %q reads its own target %q", fx.name, t.label)
		}
		views[i] = t.view
	}
	pipeline, err := fx.pipeline(e.device, a.formats(), a.samples())
	if err != nil {
		return err
	}
	return e.draw(a, pipeline, fx.sampling, views)
}
