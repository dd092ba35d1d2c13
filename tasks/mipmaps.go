package tasks

import (
	"fmt"

	"github.com/gekko3d/framegraph"
)

// GenerateMipmapsTask fills the mip chain of Target, which must have been
// created with MipMaps set.
type GenerateMipmapsTask struct {
	framegraph.TaskBase

	Target framegraph.TextureHandle
}

func NewGenerateMipmapsTask(name string, target framegraph.TextureHandle) *GenerateMipmapsTask {
	return &GenerateMipmapsTask{
		TaskBase: framegraph.NewTaskBase(name),
		Target:   target,
	}
}

func (t *GenerateMipmapsTask) Output() framegraph.TextureHandle {
	return t.Target
}

func (t *GenerateMipmapsTask) Record(rec *framegraph.Recorder) error {
	opts, err := rec.Textures().GetTextureCreationOptions(t.Target)
	if err != nil {
		return err
	}
	if !opts.MipMaps {
		return fmt.Errorf("%w: task %q: texture %v has no mipmaps", framegraph.ErrInvalidArgument, t.Name(), t.Target)
	}
	rec.AddPass(t.Name(), false).SetExecuteFunc(func(ctx *framegraph.PassContext) error {
		return ctx.GenerateMipmaps(t.Target)
	})
	return nil
}
