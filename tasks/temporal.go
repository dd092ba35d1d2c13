package tasks

import (
	"fmt"

	"github.com/gekko3d/framegraph"
)

// TemporalBlendTask blends Source with the result of previous frames kept
// in a history texture, the usual accumulation step of temporal effects.
//
// Each frame the blend effect reads Source and the history written last
// frame and renders into the current history slot, which is then copied to
// Output. A disabled task copies Source to Output.
type TemporalBlendTask struct {
	framegraph.TaskBase

	// Blend receives Source then the history texture.
	Blend  framegraph.Effect
	Source framegraph.TextureHandle
	Target *framegraph.TextureHandle
	// HistoryLength is the number of history slots, 2 when zero.
	HistoryLength int

	output  framegraph.TextureHandle
	history framegraph.TextureHandle
}

func NewTemporalBlendTask(name string, fg *framegraph.FrameGraph, blend framegraph.Effect, source framegraph.TextureHandle) *TemporalBlendTask {
	return &TemporalBlendTask{
		TaskBase: framegraph.NewTaskBase(name),
		Blend:    blend,
		Source:   source,
		output:   fg.TextureManager().CreateDanglingHandle(),
		history:  framegraph.InvalidTextureHandle,
	}
}

func (t *TemporalBlendTask) Output() framegraph.TextureHandle {
	return t.output
}

// History is the history texture of the last build, InvalidTextureHandle
// before the first one.
func (t *TemporalBlendTask) History() framegraph.TextureHandle {
	return t.history
}

func (t *TemporalBlendTask) IsReady() bool {
	return t.Blend != nil && t.Blend.IsReady()
}

func (t *TemporalBlendTask) Record(rec *framegraph.Recorder) error {
	if t.Blend == nil {
		return fmt.Errorf("%w: temporal task %q has no blend effect", framegraph.ErrInvalidArgument, t.Name())
	}
	m := rec.Textures()
	if err := resolveOutput(m, t.output, t.Target, t.Source, t.Name()); err != nil {
		return err
	}

	opts, err := m.GetTextureCreationOptions(t.output)
	if err != nil {
		return err
	}
	desc, err := m.GetTextureDescription(t.output)
	if err != nil {
		return err
	}
	if !opts.Size.Percentage {
		opts.Size = framegraph.TextureSize{Width: desc.Size.Width, Height: desc.Size.Height}
	}
	opts.IsHistory = true
	opts.HistoryLength = t.HistoryLength
	opts.MipMaps = false
	group, err := rec.CreateTexture(t.Name()+" history", opts)
	if err != nil {
		return err
	}
	t.history = group.Base()

	rec.AddRenderPass(t.Name()+"_blend", false).
		SetRenderTarget(t.history).
		UseTexture(t.Source).
		UseTexture(t.history).
		SetExecuteFunc(func(ctx *framegraph.RenderContext) error {
			return ctx.ApplyEffect(t.Blend, t.Source, t.history)
		})
	rec.AddRenderPass(t.Name()+"_output", false).
		SetRenderTarget(t.output).
		UseTexture(t.history).
		SetExecuteFunc(func(ctx *framegraph.RenderContext) error {
			return ctx.CopyCurrentTexture(t.history)
		})

	rec.AddRenderPass(t.Name()+"_disabled", true).
		SetRenderTarget(t.output).
		UseTexture(t.Source).
		SetExecuteFunc(func(ctx *framegraph.RenderContext) error {
			return ctx.CopyTexture(t.Source)
		})
	return nil
}
