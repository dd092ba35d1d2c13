package tasks

import (
	"fmt"

	"github.com/gekko3d/framegraph"
	"github.com/gekko3d/framegraph/scene"
)

// CullObjectsTask fills Output with the objects of Objects visible from
// Camera. A disabled task keeps every object.
type CullObjectsTask struct {
	framegraph.TaskBase

	Camera  *scene.Camera
	Objects *scene.ObjectList
	Output  *scene.ObjectList
}

func NewCullObjectsTask(name string, camera *scene.Camera, objects *scene.ObjectList) *CullObjectsTask {
	return &CullObjectsTask{
		TaskBase: framegraph.NewTaskBase(name),
		Camera:   camera,
		Objects:  objects,
		Output:   scene.NewObjectList(),
	}
}

func (t *CullObjectsTask) Record(rec *framegraph.Recorder) error {
	if t.Camera == nil {
		return fmt.Errorf("%w: cull task %q has no camera", framegraph.ErrInvalidArgument, t.Name())
	}
	if t.Output == nil || t.Output == t.Objects {
		return fmt.Errorf("%w: cull task %q needs an output list distinct from its input", framegraph.ErrInvalidArgument, t.Name())
	}

	rec.AddCullPass(t.Name(), false).
		SetObjectList(t.Objects).
		SetExecuteFunc(func(ctx *framegraph.PassContext) error {
			visible := scene.Cull(t.Camera.Frustum(), t.Objects, t.Output)
			ctx.Graph().Profiler().SetCount(t.Name()+" visible", visible)
			return nil
		})
	rec.AddCullPass(t.Name()+"_disabled", true).
		SetObjectList(t.Objects).
		SetExecuteFunc(func(ctx *framegraph.PassContext) error {
			t.Output.Reset()
			t.Output.Add(t.Objects.Objects()...)
			return nil
		})
	return nil
}
