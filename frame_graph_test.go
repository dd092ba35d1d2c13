package framegraph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/framegraph/scene"
)

// logTask records one generic pass appending its name to log, and a
// disabled path appending name+"-disabled".
func logTask(name string, log *[]string) *funcTask {
	return newFuncTask(name, func(t *funcTask, rec *Recorder) error {
		rec.AddPass(name, false).SetExecuteFunc(func(*PassContext) error {
			*log = append(*log, name)
			return nil
		})
		rec.AddPass(name+"-disabled", true).SetExecuteFunc(func(*PassContext) error {
			*log = append(*log, name+"-disabled")
			return nil
		})
		return nil
	})
}

func TestFrameGraph_ExecutionOrder(t *testing.T) {
	for _, order := range [][]string{{"A", "B", "C"}, {"C", "A", "B"}} {
		var log []string
		g, _ := newTestGraph(newFakeEngine(8, 8))
		for _, name := range order {
			require.NoError(t, g.AddTask(logTask(name, &log)))
		}
		require.NoError(t, g.Build())
		require.NoError(t, g.Execute())
		assert.Equal(t, order, log)
	}
}

func TestFrameGraph_PassOrderWithinTask(t *testing.T) {
	var log []string
	g, _ := newTestGraph(newFakeEngine(8, 8))
	task := newFuncTask("multi", func(t *funcTask, rec *Recorder) error {
		for _, name := range []string{"first", "second", "third"} {
			rec.AddPass(name, false).SetExecuteFunc(func(*PassContext) error {
				log = append(log, name)
				return nil
			})
		}
		return nil
	})
	require.NoError(t, g.AddTask(task))
	require.NoError(t, g.Build())
	require.NoError(t, g.Execute())
	assert.Equal(t, []string{"first", "second", "third"}, log)
	assert.Len(t, task.Passes(), 3)
	assert.Equal(t, PassKindGeneric, task.Passes()[0].Kind())
}

func TestFrameGraph_DisabledTaskPath(t *testing.T) {
	var log []string
	g, _ := newTestGraph(newFakeEngine(8, 8))
	a := logTask("A", &log)
	b := logTask("B", &log)
	require.NoError(t, g.AddTask(a))
	require.NoError(t, g.AddTask(b))
	require.NoError(t, g.Build())

	b.SetDisabled(true)
	require.NoError(t, g.Execute())
	assert.Equal(t, []string{"A", "B-disabled"}, log)
	assert.Equal(t, 1, b.records)

	b.SetDisabled(false)
	log = nil
	require.NoError(t, g.Execute())
	assert.Equal(t, []string{"A", "B"}, log)
	assert.Equal(t, 1, a.records)
	assert.Equal(t, 1, b.records)
	assert.True(t, b.DisabledPasses()[0].WhenTaskDisabled())
}

func TestFrameGraph_EndToEnd(t *testing.T) {
	engine := newFakeEngine(64, 48)
	engine.backColor = &fakeTexture{label: "backbuffer", width: 2, height: 2, format: TextureFormatBGRA8Unorm}
	g, _ := newTestGraph(engine)

	importer := newFuncTask("import", func(t *funcTask, rec *Recorder) error {
		rec.Textures().ImportTexture("backbuffer color", engine.backColor, BackbufferColor.Ptr())
		return nil
	})

	scratch := InvalidTextureHandle
	creator := newFuncTask("scratch", func(t *funcTask, rec *Recorder) error {
		group, err := rec.CreateTexture("scratch", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm))
		if err != nil {
			return err
		}
		scratch = group.Base()
		rec.AddRenderPass("scratch clear", false).
			SetRenderTarget(scratch).
			SetExecuteFunc(func(ctx *RenderContext) error {
				return ctx.Clear(ColorBlack, true, false, false)
			})
		return nil
	})

	copies := 0
	copier := newFuncTask("copy", func(t *funcTask, rec *Recorder) error {
		rec.AddRenderPass("copy to backbuffer", false).
			SetRenderTarget(BackbufferColor).
			UseTexture(scratch).
			SetExecuteFunc(func(ctx *RenderContext) error {
				copies++
				return ctx.CopyTexture(scratch)
			})
		return nil
	})

	for _, task := range []Task{importer, creator, copier} {
		require.NoError(t, g.AddTask(task))
	}
	require.NoError(t, g.Build())

	tex := g.TextureManager().GetTextureFromHandle(scratch)
	require.NotNil(t, tex)
	assert.Equal(t, 64, tex.Width())
	assert.Equal(t, 48, tex.Height())

	require.NoError(t, g.Execute())
	assert.Equal(t, 1, copies)
	assert.Equal(t, []string{"bind scratch clear", "clear", "bind copy to backbuffer", "copy scratch"}, engine.ops)
	assert.Same(t, engine.backColor, engine.bound.Texture(0))
	assert.True(t, engine.bound.IsBackbuffer())
}

func TestFrameGraph_MissingRenderTargetFailsBuild(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	var messages []string
	g.OnBuildError.Add(func(be *BuildError) { messages = append(messages, be.Error()) })
	built := 0
	g.OnBuild.Add(func(*FrameGraph) { built++ })

	var log []string
	require.NoError(t, g.AddTask(logTask("ok", &log)))
	broken := newFuncTask("broken", func(t *funcTask, rec *Recorder) error {
		rec.AddRenderPass("no target", false)
		return nil
	})
	require.NoError(t, g.AddTask(broken))

	err := g.Build()
	require.Error(t, err)
	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "broken", be.Task)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	require.Len(t, messages, 1)
	assert.NotEmpty(t, messages[0])
	assert.Contains(t, messages[0], "no target")
	assert.Zero(t, built)
	assert.Equal(t, StateFailed, g.State())

	assert.ErrorIs(t, g.Execute(), ErrNotBuilt)
	assert.Empty(t, log, "no pass of a failed build may run")
	assert.Empty(t, g.GetTaskByName("ok").(*funcTask).Passes())
}

func TestFrameGraph_ExecuteBeforeBuild(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	assert.ErrorIs(t, g.Execute(), ErrNotBuilt)

	var log []string
	require.NoError(t, g.AddTask(logTask("A", &log)))
	require.NoError(t, g.Build())
	require.NoError(t, g.AddTask(logTask("B", &log)))
	assert.ErrorIs(t, g.Execute(), ErrNotBuilt)
}

func TestFrameGraph_UnresolvedDanglingHandle(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	d := g.TextureManager().CreateDanglingHandle()
	require.NoError(t, g.AddTask(newFuncTask("reader", func(t *funcTask, rec *Recorder) error {
		rec.AddRenderPass("read", false).SetRenderTarget(BackbufferColor).UseTexture(d)
		return nil
	})))

	var failures []*BuildError
	g.OnBuildError.Add(func(be *BuildError) { failures = append(failures, be) })

	err := g.Build()
	require.ErrorIs(t, err, ErrUnresolvedHandle)
	require.Len(t, failures, 1)

	opts := NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm)
	require.NoError(t, g.TextureManager().ResolveDanglingHandle(d, nil, "late", &opts))
	require.NoError(t, g.Build())
	assert.Len(t, failures, 1)
	assert.Equal(t, StateBuilt, g.State())
}

func TestFrameGraph_DanglingResolvedDuringRecord(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	d := g.TextureManager().CreateDanglingHandle()
	task := newFuncTask("writer", func(t *funcTask, rec *Recorder) error {
		if err := rec.Textures().ResolveDanglingHandle(d, BackbufferColor.Ptr(), "", nil); err != nil {
			return err
		}
		rec.AddRenderPass("write", false).SetRenderTarget(d)
		return nil
	})
	require.NoError(t, g.AddTask(task))

	require.NoError(t, g.Build())
	require.NoError(t, g.Build(), "the handle is resolved again by every record")
	assert.Equal(t, 2, task.records)
	assert.True(t, g.TextureManager().IsBackbuffer(d))
}

func TestFrameGraph_RecordTimeDanglingSurvivesRebuild(t *testing.T) {
	engine := newFakeEngine(8, 8)
	g, _ := newTestGraph(engine)
	var outs []TextureHandle
	task := newFuncTask("alias", func(t *funcTask, rec *Recorder) error {
		scratch, err := rec.CreateTexture("scratch", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm))
		if err != nil {
			return err
		}
		out := rec.Textures().CreateDanglingHandle()
		if err := rec.Textures().ResolveDanglingHandle(out, scratch.Base().Ptr(), "", nil); err != nil {
			return err
		}
		outs = append(outs, out)
		rec.AddRenderPass("write", false).SetRenderTarget(out)
		return nil
	})
	require.NoError(t, g.AddTask(task))

	for i := range 3 {
		require.NoError(t, g.Build(), "build %d", i)
		assert.Empty(t, g.TextureManager().unresolvedDanglingHandles())
		require.NoError(t, g.Execute())
	}
	require.Len(t, outs, 3)
	assert.Len(t, g.TextureManager().dangling, 1, "only the latest record's handle is tracked")

	engine.width, engine.height = 16, 16
	require.NoError(t, g.Build(), "resize rebuild")
	assert.Empty(t, g.TextureManager().unresolvedDanglingHandles())
}

func TestFrameGraph_GraphDanglingKeptAcrossRebuild(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	d := g.TextureManager().CreateDanglingHandle()
	require.NoError(t, g.AddTask(newFuncTask("writer", func(t *funcTask, rec *Recorder) error {
		rec.AddRenderPass("write", false).SetRenderTarget(d)
		return nil
	})))

	require.ErrorIs(t, g.Build(), ErrUnresolvedHandle)
	require.ErrorIs(t, g.Build(), ErrUnresolvedHandle, "handles created outside a record stay tracked")
}

func TestFrameGraph_SampleAndWriteConflict(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	require.NoError(t, g.AddTask(newFuncTask("feedback", func(t *funcTask, rec *Recorder) error {
		group, err := rec.CreateTexture("loop", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm))
		if err != nil {
			return err
		}
		alias := rec.Textures().CreateDanglingHandle()
		if err := rec.Textures().ResolveDanglingHandle(alias, group.Base().Ptr(), "", nil); err != nil {
			return err
		}
		rec.AddRenderPass("loop", false).SetRenderTarget(group.Base()).UseTexture(alias)
		return nil
	})))

	err := g.Build()
	assert.ErrorIs(t, err, ErrResourceConflict)
}

func TestFrameGraph_HistoryMaySampleItself(t *testing.T) {
	engine := newFakeEngine(8, 8)
	g, _ := newTestGraph(engine)
	var history TextureHandle
	require.NoError(t, g.AddTask(newFuncTask("accumulate", func(t *funcTask, rec *Recorder) error {
		opts := NewTextureOptions(FullScreen, TextureFormatRGBA16Float)
		opts.IsHistory = true
		group, err := rec.CreateTexture("accum", opts)
		if err != nil {
			return err
		}
		history = group.Base()
		rec.AddRenderPass("accumulate", false).
			SetRenderTarget(history).
			UseTexture(history).
			SetExecuteFunc(func(ctx *RenderContext) error {
				return ctx.ApplyEffect(&fakeEffect{name: "blend", ready: true}, history)
			})
		return nil
	})))
	require.NoError(t, g.Build())

	require.NoError(t, g.Execute())
	require.NoError(t, g.Execute())
	assert.Equal(t, []string{
		"bind accumulate", "effect blend(accum (history 1))",
		"bind accumulate", "effect blend(accum (history 0))",
	}, engine.ops)
}

func TestFrameGraph_DepthTargetNeedsDepthFormat(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	require.NoError(t, g.AddTask(newFuncTask("depth", func(t *funcTask, rec *Recorder) error {
		color, err := rec.CreateTexture("color", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm))
		if err != nil {
			return err
		}
		rec.AddRenderPass("bad depth", false).SetRenderTarget(BackbufferColor).SetRenderTargetDepth(color.Base())
		return nil
	})))
	assert.ErrorIs(t, g.Build(), ErrResourceConflict)

	g.Clear()
	require.NoError(t, g.AddTask(newFuncTask("depth", func(t *funcTask, rec *Recorder) error {
		rec.AddRenderPass("backbuffer depth", false).SetRenderTargetDepth(BackbufferDepthStencil)
		return nil
	})))
	assert.NoError(t, g.Build())
}

func TestFrameGraph_EnabledAndDisabledOutputsMustMatch(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	require.NoError(t, g.AddTask(newFuncTask("post", func(t *funcTask, rec *Recorder) error {
		out, err := rec.CreateTexture("out", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm))
		if err != nil {
			return err
		}
		rec.AddRenderPass("effect", false).SetRenderTarget(out.Base())
		rec.AddRenderPass("copy", true).SetRenderTarget(BackbufferColor)
		return nil
	})))
	err := g.Build()
	require.ErrorIs(t, err, ErrResourceConflict)
	assert.Contains(t, err.Error(), "different targets")
}

func TestFrameGraph_SameTargetWarnsOnly(t *testing.T) {
	g, logs := newTestGraph(newFakeEngine(8, 8))
	require.NoError(t, g.AddTask(newFuncTask("twice", func(t *funcTask, rec *Recorder) error {
		rec.AddRenderPass("first", false).SetRenderTarget(BackbufferColor)
		rec.AddRenderPass("second", false).SetRenderTarget(BackbufferColor)
		return nil
	})))
	require.NoError(t, g.Build())
	assert.Contains(t, logs.String(), "WARN")
	assert.Contains(t, logs.String(), `"second"`)
}

func TestFrameGraph_CullPassNeedsObjectList(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	var list *scene.ObjectList
	require.NoError(t, g.AddTask(newFuncTask("cull", func(t *funcTask, rec *Recorder) error {
		rec.AddCullPass("cull", false).SetObjectList(list)
		return nil
	})))
	assert.ErrorIs(t, g.Build(), ErrInvalidArgument)

	list = scene.NewObjectList(&scene.Object{Name: "box"})
	require.NoError(t, g.Build())
	passes := g.GetTaskByName("cull").(*funcTask).Passes()
	require.Len(t, passes, 1)
	assert.Equal(t, PassKindCull, passes[0].Kind())
}

func TestFrameGraph_RecorderIsScopedToRecord(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	var kept *Recorder
	require.NoError(t, g.AddTask(newFuncTask("leaky", func(t *funcTask, rec *Recorder) error {
		kept = rec
		return nil
	})))
	require.NoError(t, g.Build())

	require.NotNil(t, kept)
	assert.Panics(t, func() { kept.AddRenderPass("late", false) })
	assert.Panics(t, func() { kept.AddCullPass("late", false) })
	assert.Panics(t, func() { kept.AddPass("late", false) })

	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrRecordTimeViolation)
	}()
	kept.AddPass("late", false)
}

func TestFrameGraph_RecordErrorFailsBuild(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	boom := errors.New("boom")
	require.NoError(t, g.AddTask(newFuncTask("failing", func(t *funcTask, rec *Recorder) error {
		return boom
	})))
	err := g.Build()
	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "failing", be.Task)
	assert.Contains(t, be.Message, "boom")
}

func TestFrameGraph_AllocationErrorFailsBuild(t *testing.T) {
	engine := newFakeEngine(8, 8)
	g, _ := newTestGraph(engine)
	require.NoError(t, g.AddTask(newFuncTask("zero", func(t *funcTask, rec *Recorder) error {
		_, err := rec.CreateTexture("zero", NewTextureOptions(TextureSize{Width: 0, Height: 4}, TextureFormatRGBA8Unorm))
		return err
	})))
	assert.ErrorIs(t, g.Build(), ErrInvalidTextureOptions)
	assert.Equal(t, StateFailed, g.State())
}

func TestFrameGraph_TaskTexturesRecreatedEachBuild(t *testing.T) {
	engine := newFakeEngine(8, 8)
	g, _ := newTestGraph(engine)
	graphTex, err := g.TextureManager().CreateRenderTargetTexture("persistent", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm), nil)
	require.NoError(t, err)

	var scratch TextureHandle
	require.NoError(t, g.AddTask(newFuncTask("scratch", func(t *funcTask, rec *Recorder) error {
		group, err := rec.CreateTexture("scratch", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm))
		scratch = group.Base()
		return err
	})))

	require.NoError(t, g.Build())
	firstScratch := g.TextureManager().GetTextureFromHandle(scratch).(*fakeTexture)
	firstHandle := scratch
	persistent := g.TextureManager().GetTextureFromHandle(graphTex.Base())

	require.NoError(t, g.Build())
	assert.Equal(t, 1, firstScratch.released)
	assert.Nil(t, g.TextureManager().GetTextureFromHandle(firstHandle))
	assert.NotNil(t, g.TextureManager().GetTextureFromHandle(scratch))
	assert.Same(t, persistent, g.TextureManager().GetTextureFromHandle(graphTex.Base()))
}

func TestFrameGraph_OptimizedAllocationThroughBuild(t *testing.T) {
	engine := newFakeEngine(16, 16)
	g, _ := newTestGraph(engine, WithOptimizeTextureAllocation(true))

	handles := map[string]TextureHandle{}
	stage := func(name, input string) *funcTask {
		return newFuncTask(name, func(t *funcTask, rec *Recorder) error {
			group, err := rec.CreateTexture(name, NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm))
			if err != nil {
				return err
			}
			handles[name] = group.Base()
			pass := rec.AddRenderPass(name, false).SetRenderTarget(group.Base())
			if input != "" {
				pass.UseTexture(handles[input])
			}
			return nil
		})
	}
	for _, task := range []*funcTask{stage("a", ""), stage("b", "a"), stage("c", "b"), stage("d", "c")} {
		require.NoError(t, g.AddTask(task))
	}
	require.NoError(t, g.Build())

	m := g.TextureManager()
	// a lives in tasks 0-1, c in 2-3: they can share; b (1-2) and d (3) likewise
	assert.Same(t, m.GetTextureFromHandle(handles["a"]), m.GetTextureFromHandle(handles["c"]))
	assert.Same(t, m.GetTextureFromHandle(handles["b"]), m.GetTextureFromHandle(handles["d"]))
	assert.NotSame(t, m.GetTextureFromHandle(handles["a"]), m.GetTextureFromHandle(handles["b"]))
	assert.Len(t, engine.created, 2)

	g.Clear()
	assert.Empty(t, engine.live())
	assert.Empty(t, engine.overReleased())
}

func TestFrameGraph_OnTexturesAllocated(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	task := &allocTask{funcTask: *newFuncTask("alloc", nil)}
	task.record = func(_ *funcTask, rec *Recorder) error {
		group, err := rec.CreateTexture("tex", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm))
		task.h = group.Base()
		return err
	}
	require.NoError(t, g.AddTask(task))
	require.NoError(t, g.Build())
	assert.Equal(t, 1, task.allocs)
	assert.Same(t, g.TextureManager().GetTextureFromHandle(task.h), task.seen)
}

func TestFrameGraph_ExecuteStopsAtFirstError(t *testing.T) {
	engine := newFakeEngine(8, 8)
	g, _ := newTestGraph(engine)
	var log []string
	boom := errors.New("boom")
	require.NoError(t, g.AddTask(newFuncTask("fails", func(t *funcTask, rec *Recorder) error {
		rec.AddPass("bad", false).SetExecuteFunc(func(*PassContext) error { return boom })
		return nil
	})))
	require.NoError(t, g.AddTask(logTask("after", &log)))
	require.NoError(t, g.Build())

	err := g.Execute()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"fails"`)
	assert.Contains(t, err.Error(), `"bad"`)
	assert.Empty(t, log)
}

func TestFrameGraph_NilExecuteFuncIsNoop(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	require.NoError(t, g.AddTask(newFuncTask("empty", func(t *funcTask, rec *Recorder) error {
		rec.AddPass("nothing", false)
		return nil
	})))
	require.NoError(t, g.Build())
	assert.NoError(t, g.Execute())
}

func TestFrameGraph_AddTask(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	assert.ErrorIs(t, g.AddTask(nil), ErrInvalidArgument)

	task := newFuncTask("once", nil)
	require.NoError(t, g.AddTask(task))
	assert.ErrorIs(t, g.AddTask(task), ErrInvalidArgument)
	assert.Same(t, g, task.FrameGraph())
	assert.Equal(t, Task(task), g.GetTaskByName("once"))
	assert.Nil(t, g.GetTaskByName("missing"))
	assert.Len(t, g.Tasks(), 1)

	var inner error
	require.NoError(t, g.AddTask(newFuncTask("adder", func(t *funcTask, rec *Recorder) error {
		inner = rec.Graph().AddTask(newFuncTask("nested", nil))
		return nil
	})))
	require.NoError(t, g.Build())
	assert.ErrorIs(t, inner, ErrInvalidArgument)
}

func TestFrameGraph_ClearAndDispose(t *testing.T) {
	engine := newFakeEngine(8, 8)
	g, _ := newTestGraph(engine)
	disposed := 0
	task := &disposeTask{funcTask: *newFuncTask("disposable", func(t *funcTask, rec *Recorder) error {
		_, err := rec.CreateTexture("tex", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm))
		return err
	}), disposed: &disposed}
	_, err := g.TextureManager().CreateRenderTargetTexture("graph", NewTextureOptions(FullScreen, TextureFormatRGBA8Unorm), nil)
	require.NoError(t, err)

	require.NoError(t, g.AddTask(task))
	require.NoError(t, g.Build())
	require.Len(t, engine.live(), 2)

	g.Clear()
	assert.Equal(t, 1, disposed)
	assert.Empty(t, g.Tasks())
	assert.Empty(t, engine.live())
	assert.Equal(t, StateIdle, g.State())
	assert.Equal(t, 2, g.TextureManager().Len())

	var log []string
	require.NoError(t, g.AddTask(logTask("again", &log)))
	require.NoError(t, g.Build())
	require.NoError(t, g.Execute())
	assert.Equal(t, []string{"again"}, log)

	g.OnBuild.Add(func(*FrameGraph) {})
	g.Dispose()
	assert.Equal(t, StateDisposed, g.State())
	assert.Zero(t, g.OnBuild.Len())
	assert.ErrorIs(t, g.Build(), ErrDisposed)
	assert.ErrorIs(t, g.Execute(), ErrDisposed)
	assert.ErrorIs(t, g.AddTask(newFuncTask("late", nil)), ErrDisposed)
	assert.Empty(t, engine.overReleased())
}

type disposeTask struct {
	funcTask
	disposed *int
}

func (t *disposeTask) Dispose() {
	*t.disposed++
}

func TestFrameGraph_BackbufferReimportedEachFrame(t *testing.T) {
	engine := newFakeEngine(8, 8)
	g, _ := newTestGraph(engine)
	require.NoError(t, g.AddTask(newFuncTask("present", func(t *funcTask, rec *Recorder) error {
		rec.AddRenderPass("present", false).SetRenderTarget(BackbufferColor).
			SetExecuteFunc(func(ctx *RenderContext) error {
				return ctx.Clear(ColorBlack, true, false, false)
			})
		return nil
	})))
	require.NoError(t, g.Build())

	require.NoError(t, g.Execute())
	first := engine.bound.Texture(0)

	engine.backColor = &fakeTexture{label: "next swapchain image", width: 8, height: 8, format: TextureFormatBGRA8Unorm}
	require.NoError(t, g.Execute())
	assert.NotSame(t, first, engine.bound.Texture(0))
	assert.Same(t, engine.backColor, engine.bound.Texture(0))
}

func TestFrameGraph_WhenReady(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadyTimeout = Duration{50 * time.Millisecond}
	g, _ := newTestGraph(newFakeEngine(8, 8), WithConfig(cfg))

	ready := false
	task := newFuncTask("slow", nil)
	task.ready = func() bool { return ready }
	require.NoError(t, g.AddTask(task))
	require.NoError(t, g.Build())

	err := g.WhenReady(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, ErrReadyTimeout)
	assert.Equal(t, StateBuilt, g.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.WhenReady(ctx, time.Millisecond), context.Canceled)

	ready = true
	require.NoError(t, <-g.WhenReadyAsync(context.Background(), 0))
	assert.Equal(t, StateReady, g.State())
	require.NoError(t, g.Execute())
}

func TestFrameGraph_ProfilesUnderDebug(t *testing.T) {
	g, _ := newTestGraph(newFakeEngine(8, 8))
	g.Logger().SetDebug(true)
	var log []string
	require.NoError(t, g.AddTask(logTask("A", &log)))
	require.NoError(t, g.Build())
	require.NoError(t, g.Execute())

	_, ok := g.Profiler().Scope("build")
	assert.True(t, ok)
	_, ok = g.Profiler().Scope("build/allocate")
	assert.True(t, ok)
	_, ok = g.Profiler().Scope("A/A")
	assert.True(t, ok)
	assert.Contains(t, g.Profiler().StatsString(), "A/A")
}

func TestFrameGraph_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug = true
	g, _ := newTestGraph(newFakeEngine(8, 8), WithConfig(cfg), WithName("post"), WithOptimizeTextureAllocation(true))
	assert.Equal(t, "post", g.Name())
	assert.True(t, g.TextureManager().OptimizeTextureAllocation())
	assert.True(t, g.Logger().DebugEnabled())
	assert.NotEqual(t, g.ID(), New(newFakeEngine(1, 1), WithLogger(NewNopLogger())).ID())
}
