package framegraph

import (
	"fmt"
	"maps"
	"slices"
)

type textureEntry struct {
	texture   Texture
	name      string
	options   TextureCreationOptions
	namespace TextureNamespace

	// refHandle is set for entries that alias another entry (resolved
	// dangling handles). They never own a physical texture.
	refHandle TextureHandle
	hasRef    bool

	// shared marks a texture borrowed from another entry by the allocation
	// optimizer; only the owner releases it.
	shared bool

	// Task indices of the first and last use, -1 when never used.
	firstUse int
	lastUse  int
}

// TextureManager owns the texture handles of a frame graph, their creation
// options and the physical textures behind them.
//
// It is not safe for concurrent use.
type TextureManager struct {
	engine Engine
	logger Logger

	textures      map[TextureHandle]*textureEntry
	history       map[TextureHandle]*historyTexture
	renderTargets []*RenderTarget

	// dangling maps each dangling handle to whether it was created while a
	// task was recording.
	dangling map[TextureHandle]bool

	nextHandle TextureHandle
	optimize   bool
	recording  bool
}

func NewTextureManager(engine Engine, logger Logger) *TextureManager {
	if logger == nil {
		logger = NewNopLogger()
	}
	m := &TextureManager{
		engine:     engine,
		logger:     logger,
		textures:   make(map[TextureHandle]*textureEntry),
		history:    make(map[TextureHandle]*historyTexture),
		dangling:   make(map[TextureHandle]bool),
		nextHandle: firstUserHandle,
	}
	m.addSystemTextures()
	return m
}

func (m *TextureManager) addSystemTextures() {
	m.textures[BackbufferColor] = &textureEntry{
		name:      "backbuffer color",
		namespace: NamespaceExternal,
		firstUse:  -1,
		lastUse:   -1,
	}
	m.textures[BackbufferDepthStencil] = &textureEntry{
		name:      "backbuffer depth/stencil",
		namespace: NamespaceExternal,
		firstUse:  -1,
		lastUse:   -1,
	}
}

// SetOptimizeTextureAllocation enables sharing of physical textures between
// Task textures with equal descriptors and disjoint lifespans.
func (m *TextureManager) SetOptimizeTextureAllocation(enabled bool) {
	m.optimize = enabled
}

func (m *TextureManager) OptimizeTextureAllocation() bool {
	return m.optimize
}

func (m *TextureManager) newHandles(n int) TextureHandle {
	base := m.nextHandle
	m.nextHandle += TextureHandle(n)
	return base
}

func (m *TextureManager) IsBackbuffer(h TextureHandle) bool {
	return IsBackbuffer(m.rootHandle(h))
}

func (m *TextureManager) IsBackbufferColor(h TextureHandle) bool {
	return IsBackbufferColor(m.rootHandle(h))
}

func (m *TextureManager) IsBackbufferDepthStencil(h TextureHandle) bool {
	return IsBackbufferDepthStencil(m.rootHandle(h))
}

func (m *TextureManager) IsHistoryTexture(h TextureHandle) bool {
	_, ok := m.history[m.rootHandle(h)]
	return ok
}

// Len is the number of registered handles, system textures included.
func (m *TextureManager) Len() int {
	return len(m.textures)
}

// Handles returns the registered handles in ascending order.
func (m *TextureManager) Handles() []TextureHandle {
	return slices.Sorted(maps.Keys(m.textures))
}

func (m *TextureManager) TextureName(h TextureHandle) string {
	if e, ok := m.textures[h]; ok {
		return e.name
	}
	return ""
}

func (m *TextureManager) Namespace(h TextureHandle) (TextureNamespace, bool) {
	e, ok := m.textures[h]
	if !ok {
		return 0, false
	}
	return e.namespace, true
}

// rootHandle follows alias entries to the handle owning the texture. Unknown
// handles are returned unchanged.
func (m *TextureManager) rootHandle(h TextureHandle) TextureHandle {
	for range len(m.textures) + 1 {
		e, ok := m.textures[h]
		if !ok || !e.hasRef {
			return h
		}
		h = e.refHandle
	}
	return h
}

func (m *TextureManager) resolveEntry(h TextureHandle) *textureEntry {
	return m.textures[m.rootHandle(h)]
}

// GetTextureHandleOrCreateTexture returns handle when it is given. Otherwise
// it registers a new Task texture named name; its physical texture is
// created by the next allocation.
func (m *TextureManager) GetTextureHandleOrCreateTexture(handle *TextureHandle, name string, opts *TextureCreationOptions) (TextureHandle, error) {
	if handle != nil {
		return *handle, nil
	}
	if name == "" || opts == nil {
		return InvalidTextureHandle, fmt.Errorf("%w: GetTextureHandleOrCreateTexture needs either a handle or a name and creation options", ErrInvalidArgument)
	}
	g, err := m.createTexture(name, *opts, nil, NamespaceTask)
	if err != nil {
		return InvalidTextureHandle, err
	}
	return g.Base(), nil
}

// ImportTexture registers a texture owned by the caller. With a handle, the
// entry behind it is replaced in place, which is how the backbuffer handles
// are rebound to the current frame's textures.
func (m *TextureManager) ImportTexture(name string, tex Texture, handle *TextureHandle) TextureHandle {
	opts := TextureCreationOptions{Samples: 1}
	if tex != nil {
		opts.Size = TextureSize{Width: tex.Width(), Height: tex.Height()}
		opts.Formats = []TextureFormat{tex.Format()}
	}
	var h TextureHandle
	if handle != nil {
		h = *handle
		m.releaseEntry(h)
		delete(m.history, h)
	} else {
		h = m.newHandles(1)
	}
	m.textures[h] = &textureEntry{
		texture:   tex,
		name:      name,
		options:   opts,
		namespace: NamespaceExternal,
		firstUse:  -1,
		lastUse:   -1,
	}
	return h
}

// importBackbuffer rebinds the reserved handles to the engine's current backbuffer.
func (m *TextureManager) importBackbuffer() {
	if m.engine == nil {
		return
	}
	color, depth := m.engine.Backbuffer()
	m.ImportTexture("backbuffer color", color, BackbufferColor.Ptr())
	m.ImportTexture("backbuffer depth/stencil", depth, BackbufferDepthStencil.Ptr())
}

// CreateRenderTargetTexture registers a texture allocated by the manager. A
// multi-target options set yields one handle per format. Outside of a task
// record the textures belong to the graph and survive rebuilds; while a
// task records they are Task textures.
func (m *TextureManager) CreateRenderTargetTexture(name string, opts TextureCreationOptions, handle *TextureHandle) (TextureGroup, error) {
	ns := NamespaceGraph
	if m.recording {
		ns = NamespaceTask
	}
	return m.createTexture(name, opts, handle, ns)
}

func (m *TextureManager) createTexture(name string, opts TextureCreationOptions, handle *TextureHandle, ns TextureNamespace) (TextureGroup, error) {
	if name == "" {
		return TextureGroup{}, fmt.Errorf("%w: texture name is required", ErrInvalidArgument)
	}
	count := opts.textureCount()
	if opts.IsHistory && count > 1 {
		return TextureGroup{}, fmt.Errorf("%w: history texture %q cannot have several formats", ErrInvalidArgument, name)
	}

	var base TextureHandle
	if handle != nil {
		if count > 1 {
			return TextureGroup{}, fmt.Errorf("%w: multi-target texture %q cannot reuse handle %v", ErrInvalidArgument, name, *handle)
		}
		base = *handle
		m.releaseEntry(base)
	} else {
		base = m.newHandles(count)
	}

	for i := range count {
		entryName := name
		if count > 1 {
			entryName = fmt.Sprintf("%s[%d]", name, i)
		}
		m.textures[base+TextureHandle(i)] = &textureEntry{
			name:      entryName,
			options:   opts.single(i).clone(),
			namespace: ns,
			firstUse:  -1,
			lastUse:   -1,
		}
	}
	if opts.IsHistory {
		m.history[base] = newHistoryTexture(opts.historyLength())
	}
	return TextureGroup{base: base, count: count}, nil
}

// releaseEntry frees whatever physical textures h owns before the entry is
// replaced.
func (m *TextureManager) releaseEntry(h TextureHandle) {
	e, ok := m.textures[h]
	if !ok {
		return
	}
	if hist, ok := m.history[h]; ok {
		m.releaseHistory(hist)
		delete(m.history, h)
	} else if e.texture != nil && !e.hasRef && !e.shared && e.namespace != NamespaceExternal && m.engine != nil {
		m.engine.ReleaseTexture(e.texture)
	}
	e.texture = nil
}

// CreateRenderTarget returns the render target binding colors and depth.
// Equal targets are memoized so passes binding the same handles share one
// physical render target.
func (m *TextureManager) CreateRenderTarget(name string, colors []TextureHandle, depth *TextureHandle) (*RenderTarget, error) {
	if len(colors) == 0 && depth == nil {
		return nil, fmt.Errorf("%w: render target %q needs a color or a depth texture", ErrInvalidArgument, name)
	}
	rt := &RenderTarget{
		name:    name,
		manager: m,
		colors:  slices.Clone(colors),
	}
	if depth != nil {
		rt.depth = *depth
		rt.hasDepth = true
	}
	for _, existing := range m.renderTargets {
		if existing.Equals(rt) {
			return existing, nil
		}
	}
	m.renderTargets = append(m.renderTargets, rt)
	return rt, nil
}

func (m *TextureManager) buildWrapper(rt *RenderTarget) (*RenderTargetWrapper, error) {
	w := &RenderTargetWrapper{
		label:      rt.name,
		colors:     make([]Texture, len(rt.colors)),
		backbuffer: rt.IsBackbuffer(),
	}
	for i, h := range rt.colors {
		root := m.rootHandle(h)
		e, ok := m.textures[root]
		if !ok {
			return nil, fmt.Errorf("%w: render target %q uses %v", ErrUnknownHandle, rt.name, h)
		}
		w.colors[i] = e.texture
		if hist, ok := m.history[root]; ok {
			hist.refs = append(hist.refs, historyRef{wrapper: w, slot: i})
		}
	}
	if rt.hasDepth {
		root := m.rootHandle(rt.depth)
		e, ok := m.textures[root]
		if !ok {
			return nil, fmt.Errorf("%w: render target %q uses depth %v", ErrUnknownHandle, rt.name, rt.depth)
		}
		w.depth = e.texture
		if hist, ok := m.history[root]; ok {
			hist.refs = append(hist.refs, historyRef{wrapper: w, slot: depthSlot})
		}
	}
	return w, nil
}

// CreateDanglingHandle reserves a handle whose texture is decided later with
// ResolveDanglingHandle. A build fails while any dangling handle is unresolved.
// Handles created while a task records are forgotten when Task textures are
// released, since the next record creates them again.
func (m *TextureManager) CreateDanglingHandle() TextureHandle {
	h := m.newHandles(1)
	m.dangling[h] = m.recording
	return h
}

// ResolveDanglingHandle makes dangling an alias of handle, or, without a
// handle, a new texture created from name and opts.
func (m *TextureManager) ResolveDanglingHandle(dangling TextureHandle, handle *TextureHandle, name string, opts *TextureCreationOptions) error {
	if _, ok := m.dangling[dangling]; !ok {
		return fmt.Errorf("%w: %v is not a dangling handle", ErrInvalidArgument, dangling)
	}
	if handle == nil {
		if name == "" || opts == nil {
			return fmt.Errorf("%w: ResolveDanglingHandle needs either a handle or a name and creation options", ErrInvalidArgument)
		}
		ns := NamespaceGraph
		if m.recording {
			ns = NamespaceTask
		}
		_, err := m.createTexture(name, *opts, &dangling, ns)
		return err
	}
	if *handle == dangling {
		return fmt.Errorf("%w: dangling handle %v cannot alias itself", ErrInvalidArgument, dangling)
	}
	target, ok := m.textures[*handle]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownHandle, *handle)
	}
	if name == "" {
		name = target.name
	}
	ns := target.namespace
	if m.recording {
		ns = NamespaceTask
	}
	m.releaseEntry(dangling)
	m.textures[dangling] = &textureEntry{
		texture:   target.texture,
		name:      name,
		options:   target.options.clone(),
		namespace: ns,
		refHandle: *handle,
		hasRef:    true,
		firstUse:  -1,
		lastUse:   -1,
	}
	return nil
}

// unresolvedDanglingHandles returns the dangling handles without an entry, in order.
func (m *TextureManager) unresolvedDanglingHandles() []TextureHandle {
	var out []TextureHandle
	for h := range m.dangling {
		if _, ok := m.textures[h]; !ok {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out
}

// GetTextureFromHandle returns the physical texture behind h, or nil when it
// is not allocated. For a history texture this is the slot written by the
// previous frame, not the one being written now.
func (m *TextureManager) GetTextureFromHandle(h TextureHandle) Texture {
	root := m.rootHandle(h)
	if hist, ok := m.history[root]; ok {
		return hist.slots[hist.readIndex()]
	}
	if e, ok := m.textures[root]; ok {
		return e.texture
	}
	return nil
}

// GetTextureCreationOptions returns the options of h, following aliases.
func (m *TextureManager) GetTextureCreationOptions(h TextureHandle) (TextureCreationOptions, error) {
	e := m.resolveEntry(h)
	if e == nil {
		return TextureCreationOptions{}, fmt.Errorf("%w: %v", ErrUnknownHandle, h)
	}
	return e.options.clone(), nil
}

// GetTextureDescription returns the absolute size and the options of h.
func (m *TextureManager) GetTextureDescription(h TextureHandle) (TextureDescription, error) {
	e := m.resolveEntry(h)
	if e == nil {
		return TextureDescription{}, fmt.Errorf("%w: %v", ErrUnknownHandle, h)
	}
	size := m.GetAbsoluteDimensions(e.options.Size)
	if e.namespace == NamespaceExternal && e.texture != nil {
		size = Dimensions{Width: e.texture.Width(), Height: e.texture.Height()}
	}
	return TextureDescription{Size: size, Options: e.options.clone()}, nil
}

// GetAbsoluteDimensions converts size against the engine's current render size.
func (m *TextureManager) GetAbsoluteDimensions(size TextureSize) Dimensions {
	var w, h int
	if m.engine != nil {
		w, h = m.engine.RenderSize()
	}
	return AbsoluteDimensions(size, w, h)
}

// markUsed records that the task at index taskIndex touches h.
func (m *TextureManager) markUsed(h TextureHandle, taskIndex int) {
	e := m.resolveEntry(h)
	if e == nil {
		return
	}
	if e.firstUse < 0 || taskIndex < e.firstUse {
		e.firstUse = taskIndex
	}
	if taskIndex > e.lastUse {
		e.lastUse = taskIndex
	}
}

func (m *TextureManager) resetLifespans() {
	for _, e := range m.textures {
		e.firstUse = -1
		e.lastUse = -1
	}
}

// Lifespan returns the first and last task indices using h in the last build.
func (m *TextureManager) Lifespan(h TextureHandle) (first, last int, ok bool) {
	e := m.resolveEntry(h)
	if e == nil || e.firstUse < 0 {
		return -1, -1, false
	}
	return e.firstUse, e.lastUse, true
}

func (m *TextureManager) dispose() {
	m.releaseTextures(true)
}
