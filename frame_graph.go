package framegraph

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateBuilding
	StateBuilt
	StateReady
	StateFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateBuilt:
		return "built"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Option func(*FrameGraph)

func WithName(name string) Option {
	return func(g *FrameGraph) {
		g.config.Name = name
	}
}

func WithLogger(logger Logger) Option {
	return func(g *FrameGraph) {
		g.logger = logger
	}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override single fields.
func WithConfig(cfg Config) Option {
	return func(g *FrameGraph) {
		g.config = cfg
	}
}

func WithOptimizeTextureAllocation(enabled bool) Option {
	return func(g *FrameGraph) {
		g.config.OptimizeTextureAllocation = enabled
	}
}

// FrameGraph runs an ordered list of tasks against an Engine. Tasks run in
// the order they were added and their passes in the order they were
// recorded; producers must be added before their consumers.
//
// Build and Execute must be called from a single goroutine. Only WhenReady
// and WhenReadyAsync may run concurrently with them.
type FrameGraph struct {
	id       uuid.UUID
	engine   Engine
	logger   Logger
	config   Config
	textures *TextureManager
	profiler *Profiler
	ctx      *RenderContext

	tasks []Task
	built bool

	mu    sync.Mutex
	state State

	// OnBuild fires after every successful Build.
	OnBuild Observable[*FrameGraph]
	// OnBuildError fires with the error of every failed Build.
	OnBuildError Observable[*BuildError]
}

func New(engine Engine, opts ...Option) *FrameGraph {
	g := &FrameGraph{
		id:       uuid.New(),
		engine:   engine,
		config:   DefaultConfig(),
		profiler: NewProfiler(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = NewDefaultLogger(g.config.LogPrefix, g.config.Debug)
	} else if g.config.Debug {
		g.logger.SetDebug(true)
	}
	g.textures = NewTextureManager(engine, g.logger)
	g.textures.SetOptimizeTextureAllocation(g.config.OptimizeTextureAllocation)
	g.ctx = newRenderContext(g)
	return g
}

func (g *FrameGraph) ID() uuid.UUID {
	return g.id
}

func (g *FrameGraph) Name() string {
	return g.config.Name
}

func (g *FrameGraph) Engine() Engine {
	return g.engine
}

func (g *FrameGraph) TextureManager() *TextureManager {
	return g.textures
}

func (g *FrameGraph) Config() Config {
	return g.config
}

func (g *FrameGraph) Logger() Logger {
	return g.logger
}

func (g *FrameGraph) Profiler() *Profiler {
	return g.profiler
}

func (g *FrameGraph) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *FrameGraph) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// AddTask appends t to the graph. The graph must be built again before the
// next Execute.
func (g *FrameGraph) AddTask(t Task) error {
	if t == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidArgument)
	}
	switch g.State() {
	case StateDisposed:
		return ErrDisposed
	case StateBuilding:
		return fmt.Errorf("%w: cannot add task %q while building", ErrInvalidArgument, t.Name())
	}
	if slices.Contains(g.tasks, t) {
		return fmt.Errorf("%w: task %q already added", ErrInvalidArgument, t.Name())
	}
	t.base().graph = g
	g.tasks = append(g.tasks, t)
	g.built = false
	g.setState(StateIdle)
	return nil
}

// GetTaskByName returns the first task named name, or nil.
func (g *FrameGraph) GetTaskByName(name string) Task {
	for _, t := range g.tasks {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func (g *FrameGraph) Tasks() []Task {
	return slices.Clone(g.tasks)
}

// Build records every task, validates the result and allocates the
// textures. Any failure leaves no pass executable until the next
// successful Build.
func (g *FrameGraph) Build() error {
	switch g.State() {
	case StateDisposed:
		return ErrDisposed
	case StateBuilding:
		return fmt.Errorf("%w: build already in progress", ErrInvalidArgument)
	}
	g.setState(StateBuilding)
	g.built = false
	g.profiler.BeginScope("build")
	g.logger.Debugf("building %s (%s): %d tasks", g.config.Name, g.id, len(g.tasks))

	g.textures.releaseTextures(false)
	g.textures.importBackbuffer()
	g.textures.resetLifespans()

	for _, t := range g.tasks {
		if err := g.recordTask(t); err != nil {
			return g.failBuild(asBuildError(err, t.Name()))
		}
		if err := checkTask(t, g.textures, g.logger); err != nil {
			return g.failBuild(asBuildError(err, t.Name()))
		}
	}

	if unresolved := g.textures.unresolvedDanglingHandles(); len(unresolved) > 0 {
		return g.failBuild(buildErrorf(ErrUnresolvedHandle, "", "dangling handles %v were never resolved", unresolved))
	}

	g.markTextureUsage()
	g.profiler.BeginScope("build/allocate")
	err := g.textures.allocateTextures()
	g.profiler.EndScope("build/allocate")
	if err != nil {
		return g.failBuild(asBuildError(err, ""))
	}

	g.ctx.reset()
	for _, t := range g.tasks {
		h, ok := t.(TexturesAllocatedHandler)
		if !ok {
			continue
		}
		g.ctx.task = t.Name()
		if err := h.OnTexturesAllocated(g.ctx); err != nil {
			return g.failBuild(asBuildError(err, t.Name()))
		}
	}
	g.ctx.reset()

	g.built = true
	g.setState(StateBuilt)
	g.profiler.EndScope("build")
	g.profiler.SetCount("textures", g.textures.Len())
	elapsed, _ := g.profiler.Scope("build")
	g.logger.Debugf("built %s in %s", g.config.Name, elapsed)
	g.OnBuild.Notify(g)
	return nil
}

func (g *FrameGraph) recordTask(t Task) error {
	t.base().reset()
	rec := &Recorder{graph: g, task: t}
	g.textures.recording = true
	defer func() {
		g.textures.recording = false
		rec.closed = true
	}()
	return t.Record(rec)
}

// markTextureUsage computes the lifespan of every handle touched by a render
// pass, for both paths since toggling a task does not rebuild.
func (g *FrameGraph) markTextureUsage() {
	for i, t := range g.tasks {
		tb := t.base()
		for _, list := range [][]passNode{tb.passes, tb.passesDisabled} {
			for _, n := range list {
				if n.kind != PassKindRender {
					continue
				}
				for _, h := range n.render.handles() {
					g.textures.markUsed(h, i)
				}
			}
		}
	}
}

func (g *FrameGraph) failBuild(be *BuildError) error {
	for _, t := range g.tasks {
		t.base().reset()
	}
	g.textures.releaseTextures(false)
	g.built = false
	g.setState(StateFailed)
	g.logger.Errorf("build of %s failed: %v", g.config.Name, be)
	g.OnBuildError.Notify(be)
	return be
}

// Execute runs the recorded passes once: the disabled path for disabled
// tasks, the enabled path otherwise. The first pass error stops the frame.
// History textures advance after the last task.
func (g *FrameGraph) Execute() error {
	if g.State() == StateDisposed {
		return ErrDisposed
	}
	if !g.built {
		return ErrNotBuilt
	}

	g.textures.importBackbuffer()
	g.ctx.reset()
	profile := g.logger.DebugEnabled()

	for _, t := range g.tasks {
		tb := t.base()
		list := tb.passes
		if tb.disabled {
			list = tb.passesDisabled
		}
		for _, n := range list {
			p := n.pass()
			g.ctx.task, g.ctx.pass = t.Name(), p.name
			var start time.Time
			if profile {
				start = time.Now()
			}
			if err := n.execute(g.ctx); err != nil {
				return fmt.Errorf("task %q pass %q: %w", t.Name(), p.name, err)
			}
			if profile {
				g.profiler.Record(t.Name()+"/"+p.name, time.Since(start))
			}
		}
	}

	g.textures.updateHistoryTextures()
	return nil
}

// Clear disposes every task and releases every texture. The graph can be
// filled and built again afterwards.
func (g *FrameGraph) Clear() {
	if g.State() == StateDisposed {
		return
	}
	for _, t := range g.tasks {
		t.Dispose()
		t.base().reset()
		t.base().graph = nil
	}
	g.tasks = nil
	g.textures.releaseTextures(true)
	g.ctx.reset()
	g.built = false
	g.setState(StateIdle)
}

// Dispose clears the graph and drops its observers. Build and Execute fail
// with ErrDisposed afterwards.
func (g *FrameGraph) Dispose() {
	if g.State() == StateDisposed {
		return
	}
	g.Clear()
	g.textures.dispose()
	g.OnBuild.Clear()
	g.OnBuildError.Clear()
	g.setState(StateDisposed)
}
