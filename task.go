package framegraph

import (
	"fmt"

	"github.com/google/uuid"
)

// Task declares passes. Record runs once per Build; the passes it adds run
// on every Execute until the next Build.
//
// Implementations embed TaskBase:
//
//	type BlurTask struct {
//		framegraph.TaskBase
//		Source framegraph.TextureHandle
//	}
type Task interface {
	Name() string
	Record(rec *Recorder) error
	IsReady() bool
	Dispose()
	base() *TaskBase
}

// TexturesAllocatedHandler is implemented by tasks that need the physical
// textures of the graph once a build has allocated them, for example to
// build engine bind groups.
type TexturesAllocatedHandler interface {
	OnTexturesAllocated(ctx *RenderContext) error
}

// TaskBase carries the state shared by every task.
type TaskBase struct {
	name     string
	id       uuid.UUID
	disabled bool
	graph    *FrameGraph

	passes         []passNode
	passesDisabled []passNode
}

func NewTaskBase(name string) TaskBase {
	return TaskBase{name: name, id: uuid.New()}
}

func (t *TaskBase) base() *TaskBase {
	return t
}

func (t *TaskBase) Name() string {
	return t.name
}

func (t *TaskBase) ID() uuid.UUID {
	return t.id
}

func (t *TaskBase) Disabled() bool {
	return t.disabled
}

// SetDisabled selects which pass list Execute runs. It never triggers a
// new record.
func (t *TaskBase) SetDisabled(disabled bool) {
	t.disabled = disabled
}

func (t *TaskBase) IsReady() bool {
	return true
}

func (t *TaskBase) Dispose() {}

// FrameGraph is the graph the task was added to, nil before AddTask.
func (t *TaskBase) FrameGraph() *FrameGraph {
	return t.graph
}

// Passes returns the passes recorded for the enabled path.
func (t *TaskBase) Passes() []*Pass {
	return passesOf(t.passes)
}

// DisabledPasses returns the passes recorded for the disabled path.
func (t *TaskBase) DisabledPasses() []*Pass {
	return passesOf(t.passesDisabled)
}

func passesOf(nodes []passNode) []*Pass {
	out := make([]*Pass, len(nodes))
	for i, n := range nodes {
		out[i] = n.pass()
	}
	return out
}

func (t *TaskBase) reset() {
	t.passes = nil
	t.passesDisabled = nil
}

func (t *TaskBase) appendPass(n passNode, whenTaskDisabled bool) {
	if whenTaskDisabled {
		t.passesDisabled = append(t.passesDisabled, n)
	} else {
		t.passes = append(t.passes, n)
	}
}

// Recorder is handed to Task.Record and is only valid during that call.
// Using it afterwards panics with ErrRecordTimeViolation.
type Recorder struct {
	graph  *FrameGraph
	task   Task
	closed bool
}

func (r *Recorder) check() {
	if r.closed {
		panic(fmt.Errorf("%w: recorder of task %q used after Record returned", ErrRecordTimeViolation, r.task.Name()))
	}
}

func (r *Recorder) Graph() *FrameGraph {
	return r.graph
}

func (r *Recorder) Task() Task {
	return r.task
}

func (r *Recorder) Textures() *TextureManager {
	return r.graph.textures
}

// CreateTexture registers a texture that lives until the next Build.
func (r *Recorder) CreateTexture(name string, opts TextureCreationOptions) (TextureGroup, error) {
	r.check()
	return r.graph.textures.createTexture(name, opts, nil, NamespaceTask)
}

// AddPass records a generic pass.
func (r *Recorder) AddPass(name string, whenTaskDisabled bool) *Pass {
	r.check()
	p := &Pass{name: name, task: r.task, kind: PassKindGeneric, whenTaskDisabled: whenTaskDisabled}
	r.task.base().appendPass(passNode{kind: PassKindGeneric, generic: p}, whenTaskDisabled)
	return p
}

func (r *Recorder) AddRenderPass(name string, whenTaskDisabled bool) *RenderPass {
	r.check()
	p := &RenderPass{Pass: Pass{name: name, task: r.task, kind: PassKindRender, whenTaskDisabled: whenTaskDisabled}}
	r.task.base().appendPass(passNode{kind: PassKindRender, render: p}, whenTaskDisabled)
	return p
}

func (r *Recorder) AddCullPass(name string, whenTaskDisabled bool) *CullPass {
	r.check()
	p := &CullPass{Pass: Pass{name: name, task: r.task, kind: PassKindCull, whenTaskDisabled: whenTaskDisabled}}
	r.task.base().appendPass(passNode{kind: PassKindCull, cull: p}, whenTaskDisabled)
	return p
}

func lastRenderPass(nodes []passNode) *RenderPass {
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].kind == PassKindRender {
			return nodes[i].render
		}
	}
	return nil
}

// checkTask validates the passes recorded by t. Invalid passes and enabled
// and disabled paths ending on different targets fail the build; consecutive
// render passes on one target without sampled textures only log a warning.
func checkTask(t Task, m *TextureManager, logger Logger) error {
	tb := t.base()
	for _, list := range [][]passNode{tb.passes, tb.passesDisabled} {
		for _, n := range list {
			if err := n.validate(m); err != nil {
				return err
			}
		}
	}

	if len(tb.passesDisabled) > 0 {
		enabled, disabled := lastRenderPass(tb.passes), lastRenderPass(tb.passesDisabled)
		if enabled != nil && disabled != nil && !enabled.sameTarget(disabled) {
			return fmt.Errorf("%w: enabled pass %q and disabled pass %q render into different targets",
				ErrResourceConflict, enabled.name, disabled.name)
		}
	}

	for _, list := range [][]passNode{tb.passes, tb.passesDisabled} {
		var prev *RenderPass
		for _, n := range list {
			if n.kind != PassKindRender {
				continue
			}
			if prev != nil && prev.sameTarget(n.render) && len(n.render.used) == 0 {
				logger.Warnf("task %q: passes %q and %q render into the same target and %q samples nothing",
					t.Name(), prev.name, n.render.name, n.render.name)
			}
			prev = n.render
		}
	}
	return nil
}
