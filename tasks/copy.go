package tasks

import (
	"fmt"

	"github.com/gekko3d/framegraph"
)

// CopyToTextureTask copies Source into Target, scaling when sizes differ.
type CopyToTextureTask struct {
	framegraph.TaskBase

	Source framegraph.TextureHandle
	Target framegraph.TextureHandle
}

func NewCopyToTextureTask(name string, source, target framegraph.TextureHandle) *CopyToTextureTask {
	return &CopyToTextureTask{
		TaskBase: framegraph.NewTaskBase(name),
		Source:   source,
		Target:   target,
	}
}

func (t *CopyToTextureTask) Output() framegraph.TextureHandle {
	return t.Target
}

func (t *CopyToTextureTask) Record(rec *framegraph.Recorder) error {
	if t.Source == framegraph.InvalidTextureHandle || t.Target == framegraph.InvalidTextureHandle {
		return fmt.Errorf("%w: copy task %q needs a source and a target", framegraph.ErrInvalidArgument, t.Name())
	}
	rec.AddRenderPass(t.Name(), false).
		SetRenderTarget(t.Target).
		UseTexture(t.Source).
		SetExecuteFunc(func(ctx *framegraph.RenderContext) error {
			return ctx.CopyTexture(t.Source)
		})
	return nil
}
