package tasks

import (
	"fmt"

	"github.com/gekko3d/framegraph"
)

// EffectTask applies a full screen effect to Source. Its Output handle is
// known from construction on so later tasks can be wired before any build;
// it aliases Target when one is set and is a new texture shaped like Source
// otherwise. A disabled EffectTask copies Source to Output unchanged.
type EffectTask struct {
	framegraph.TaskBase

	Effect framegraph.Effect
	Source framegraph.TextureHandle
	Target *framegraph.TextureHandle
	// Inputs are extra textures bound after Source.
	Inputs []framegraph.TextureHandle

	output framegraph.TextureHandle
}

func NewEffectTask(name string, fg *framegraph.FrameGraph, effect framegraph.Effect, source framegraph.TextureHandle) *EffectTask {
	return &EffectTask{
		TaskBase: framegraph.NewTaskBase(name),
		Effect:   effect,
		Source:   source,
		output:   fg.TextureManager().CreateDanglingHandle(),
	}
}

func (t *EffectTask) Output() framegraph.TextureHandle {
	return t.output
}

func (t *EffectTask) IsReady() bool {
	return t.Effect != nil && t.Effect.IsReady()
}

func (t *EffectTask) Record(rec *framegraph.Recorder) error {
	if t.Effect == nil {
		return fmt.Errorf("%w: effect task %q has no effect", framegraph.ErrInvalidArgument, t.Name())
	}
	if err := resolveOutput(rec.Textures(), t.output, t.Target, t.Source, t.Name()); err != nil {
		return err
	}

	inputs := append([]framegraph.TextureHandle{t.Source}, t.Inputs...)
	pass := rec.AddRenderPass(t.Name(), false).SetRenderTarget(t.output)
	for _, in := range inputs {
		pass.UseTexture(in)
	}
	pass.SetExecuteFunc(func(ctx *framegraph.RenderContext) error {
		return ctx.ApplyEffect(t.Effect, inputs...)
	})

	rec.AddRenderPass(t.Name()+"_disabled", true).
		SetRenderTarget(t.output).
		UseTexture(t.Source).
		SetExecuteFunc(func(ctx *framegraph.RenderContext) error {
			return ctx.CopyTexture(t.Source)
		})
	return nil
}

// resolveOutput points output at target, or at a new texture with the size
// and format of source.
func resolveOutput(m *framegraph.TextureManager, output framegraph.TextureHandle, target *framegraph.TextureHandle, source framegraph.TextureHandle, name string) error {
	if target != nil {
		return m.ResolveDanglingHandle(output, target, "", nil)
	}
	desc, err := m.GetTextureDescription(source)
	if err != nil {
		return fmt.Errorf("task %q source: %w", name, err)
	}
	opts := desc.Options
	opts.IsHistory = false
	opts.HistoryLength = 0
	if !opts.Size.Percentage {
		opts.Size = framegraph.TextureSize{Width: desc.Size.Width, Height: desc.Size.Height}
	}
	return m.ResolveDanglingHandle(output, nil, name+" output", &opts)
}
