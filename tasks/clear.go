// Package tasks holds ready made frame graph tasks.
package tasks

import (
	"fmt"

	"github.com/gekko3d/framegraph"
)

// ClearTask clears a render target. When disabled the target is left as is.
type ClearTask struct {
	framegraph.TaskBase

	Target framegraph.TextureHandle
	// Depth is cleared along with Target when set.
	Depth *framegraph.TextureHandle

	Color        framegraph.Color
	ClearColor   bool
	ClearDepth   bool
	ClearStencil bool
}

func NewClearTask(name string, target framegraph.TextureHandle, color framegraph.Color) *ClearTask {
	return &ClearTask{
		TaskBase:     framegraph.NewTaskBase(name),
		Target:       target,
		Color:        color,
		ClearColor:   true,
		ClearDepth:   true,
		ClearStencil: true,
	}
}

// Output is the handle later tasks should read.
func (t *ClearTask) Output() framegraph.TextureHandle {
	return t.Target
}

func (t *ClearTask) Record(rec *framegraph.Recorder) error {
	if t.Target == framegraph.InvalidTextureHandle {
		return fmt.Errorf("%w: clear task %q has no target", framegraph.ErrInvalidArgument, t.Name())
	}
	pass := rec.AddRenderPass(t.Name(), false).SetRenderTarget(t.Target)
	disabled := rec.AddRenderPass(t.Name()+"_disabled", true).SetRenderTarget(t.Target)
	if t.Depth != nil {
		pass.SetRenderTargetDepth(*t.Depth)
		disabled.SetRenderTargetDepth(*t.Depth)
	}
	pass.SetExecuteFunc(func(ctx *framegraph.RenderContext) error {
		return ctx.Clear(t.Color, t.ClearColor, t.ClearDepth, t.ClearStencil)
	})
	return nil
}
