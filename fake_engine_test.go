package framegraph

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
)

type fakeTexture struct {
	label    string
	width    int
	height   int
	format   TextureFormat
	desc     TextureDescriptor
	released int
}

func (t *fakeTexture) Label() string         { return t.label }
func (t *fakeTexture) Width() int            { return t.width }
func (t *fakeTexture) Height() int           { return t.height }
func (t *fakeTexture) Format() TextureFormat { return t.format }

type fakeEngine struct {
	width, height int

	backColor *fakeTexture
	backDepth *fakeTexture

	created         []*fakeTexture
	bound           *RenderTargetWrapper
	binds           int
	targetsReleased int
	ops             []string
	createErr       error
}

func newFakeEngine(width, height int) *fakeEngine {
	return &fakeEngine{
		width:     width,
		height:    height,
		backColor: &fakeTexture{label: "backbuffer", width: width, height: height, format: TextureFormatBGRA8Unorm},
		backDepth: &fakeTexture{label: "backbuffer depth", width: width, height: height, format: TextureFormatDepth24PlusStencil8},
	}
}

func (e *fakeEngine) RenderSize() (int, int) {
	return e.width, e.height
}

func (e *fakeEngine) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if e.createErr != nil {
		return nil, e.createErr
	}
	t := &fakeTexture{label: desc.Label, width: desc.Width, height: desc.Height, format: desc.Format, desc: desc}
	e.created = append(e.created, t)
	return t, nil
}

func (e *fakeEngine) ReleaseTexture(tex Texture) {
	tex.(*fakeTexture).released++
}

func (e *fakeEngine) Backbuffer() (Texture, Texture) {
	return e.backColor, e.backDepth
}

func (e *fakeEngine) BindRenderTarget(rt *RenderTargetWrapper) error {
	e.bound = rt
	e.binds++
	label := "backbuffer"
	if rt != nil {
		label = rt.Label()
	}
	e.ops = append(e.ops, "bind "+label)
	return nil
}

func (e *fakeEngine) ReleaseRenderTarget(rt *RenderTargetWrapper) {
	e.targetsReleased++
}

func (e *fakeEngine) Clear(color Color, clearColor, clearDepth, clearStencil bool) error {
	e.ops = append(e.ops, "clear")
	return nil
}

func (e *fakeEngine) CopyTexture(src Texture) error {
	e.ops = append(e.ops, "copy "+src.Label())
	return nil
}

func (e *fakeEngine) GenerateMipmaps(tex Texture) error {
	e.ops = append(e.ops, "mips "+tex.Label())
	return nil
}

func (e *fakeEngine) ApplyEffect(effect Effect, inputs []Texture) error {
	labels := make([]string, len(inputs))
	for i, in := range inputs {
		labels[i] = in.Label()
	}
	e.ops = append(e.ops, fmt.Sprintf("effect %s(%s)", effect.Name(), strings.Join(labels, ",")))
	return nil
}

// live returns the created textures not released yet.
func (e *fakeEngine) live() []*fakeTexture {
	var out []*fakeTexture
	for _, t := range e.created {
		if t.released == 0 {
			out = append(out, t)
		}
	}
	return out
}

func (e *fakeEngine) overReleased() []*fakeTexture {
	var out []*fakeTexture
	for _, t := range e.created {
		if t.released > 1 {
			out = append(out, t)
		}
	}
	return out
}

type fakeEffect struct {
	name  string
	ready bool
}

func (fx *fakeEffect) Name() string  { return fx.name }
func (fx *fakeEffect) IsReady() bool { return fx.ready }

// funcTask records through a closure.
type funcTask struct {
	TaskBase
	record  func(t *funcTask, rec *Recorder) error
	records int
	ready   func() bool
	allocs  int
}

func newFuncTask(name string, record func(t *funcTask, rec *Recorder) error) *funcTask {
	return &funcTask{TaskBase: NewTaskBase(name), record: record}
}

func (t *funcTask) Record(rec *Recorder) error {
	t.records++
	if t.record == nil {
		return nil
	}
	return t.record(t, rec)
}

func (t *funcTask) IsReady() bool {
	if t.ready == nil {
		return true
	}
	return t.ready()
}

// allocTask also observes texture allocation.
type allocTask struct {
	funcTask
	seen Texture
	h    TextureHandle
}

func (t *allocTask) OnTexturesAllocated(ctx *RenderContext) error {
	t.allocs++
	t.seen = ctx.Texture(t.h)
	if t.seen == nil {
		return errors.New("texture not allocated")
	}
	return nil
}

type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestGraph(engine Engine, opts ...Option) (*FrameGraph, *logBuffer) {
	buf := &logBuffer{}
	logger := NewWriterLogger("test", false, buf, buf)
	g := New(engine, append([]Option{WithLogger(logger)}, opts...)...)
	return g, buf
}
