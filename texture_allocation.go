package framegraph

import (
	"cmp"
	"fmt"
	"slices"
)

// descriptor turns the options of e into the descriptor of a physical texture.
func (m *TextureManager) descriptor(e *textureEntry, screenWidth, screenHeight int) (TextureDescriptor, error) {
	dims := AbsoluteDimensions(e.options.Size, screenWidth, screenHeight)
	if dims.Width <= 0 || dims.Height <= 0 {
		return TextureDescriptor{}, fmt.Errorf("%w: texture %q resolves to %dx%d", ErrInvalidTextureOptions, e.name, dims.Width, dims.Height)
	}
	format := e.options.Format()
	if format == TextureFormatUndefined {
		return TextureDescriptor{}, fmt.Errorf("%w: texture %q has no format", ErrInvalidTextureOptions, e.name)
	}
	samples := e.options.Samples
	if samples == 0 {
		samples = 1
	}
	if e.options.MipMaps && samples > 1 {
		return TextureDescriptor{}, fmt.Errorf("%w: texture %q cannot be multisampled and mipmapped", ErrInvalidTextureOptions, e.name)
	}
	usage := e.options.Usage
	if usage == 0 {
		usage = DefaultTextureUsage
	}
	if format.IsDepth() && usage&TextureUsageStorageBinding != 0 {
		return TextureDescriptor{}, fmt.Errorf("%w: depth texture %q cannot be a storage texture", ErrInvalidTextureOptions, e.name)
	}
	mips := uint32(1)
	if e.options.MipMaps {
		mips = MipLevels(dims.Width, dims.Height)
	}
	return TextureDescriptor{
		Label:         e.name,
		Width:         dims.Width,
		Height:        dims.Height,
		Format:        format,
		Samples:       samples,
		MipLevelCount: mips,
		Sampling:      e.options.Sampling,
		Usage:         usage,
	}, nil
}

func sameDescriptor(a, b TextureDescriptor) bool {
	a.Label, b.Label = "", ""
	return a == b
}

// pooledTexture is a physical texture the optimizer may hand to another
// entry once lastUse has passed.
type pooledTexture struct {
	texture Texture
	desc    TextureDescriptor
	lastUse int
}

// allocateTextures creates the physical textures of every entry that has
// none yet. Graph textures already allocated are kept unless their
// percentage size no longer matches the render size. Alias entries then
// copy the texture of the entry they point to.
func (m *TextureManager) allocateTextures() error {
	if m.engine == nil {
		return fmt.Errorf("%w: texture manager has no engine", ErrInvalidArgument)
	}
	sw, sh := m.engine.RenderSize()

	var shareable []TextureHandle
	for _, h := range m.Handles() {
		e := m.textures[h]
		if e.hasRef || e.namespace == NamespaceExternal {
			continue
		}
		if _, ok := m.history[h]; !ok && m.optimize && e.namespace == NamespaceTask && e.firstUse >= 0 {
			shareable = append(shareable, h)
			continue
		}
		if err := m.allocateEntry(h, e, sw, sh); err != nil {
			return err
		}
	}

	if len(shareable) > 0 {
		slices.SortStableFunc(shareable, func(a, b TextureHandle) int {
			return cmp.Compare(m.textures[a].firstUse, m.textures[b].firstUse)
		})
		var pool []*pooledTexture
		for _, h := range shareable {
			e := m.textures[h]
			desc, err := m.descriptor(e, sw, sh)
			if err != nil {
				return err
			}
			var reused *pooledTexture
			for _, p := range pool {
				if p.lastUse < e.firstUse && sameDescriptor(p.desc, desc) {
					reused = p
					break
				}
			}
			if reused != nil {
				m.logger.Debugf("texture %q shares the physical texture of %q", e.name, reused.texture.Label())
				e.texture = reused.texture
				e.shared = true
				reused.lastUse = e.lastUse
				continue
			}
			tex, err := m.engine.CreateTexture(desc)
			if err != nil {
				return fmt.Errorf("create texture %q: %w", e.name, err)
			}
			e.texture = tex
			e.shared = false
			pool = append(pool, &pooledTexture{texture: tex, desc: desc, lastUse: e.lastUse})
		}
	}

	for _, h := range m.Handles() {
		e := m.textures[h]
		if !e.hasRef {
			continue
		}
		root := m.resolveEntry(h)
		if root == nil {
			return fmt.Errorf("%w: %q aliases %v which does not exist", ErrUnknownHandle, e.name, e.refHandle)
		}
		e.texture = root.texture
	}
	return nil
}

func (m *TextureManager) allocateEntry(h TextureHandle, e *textureEntry, sw, sh int) error {
	desc, err := m.descriptor(e, sw, sh)
	if err != nil {
		return err
	}
	if hist, ok := m.history[h]; ok {
		if hist.allocated() {
			if hist.slots[0].Width() == desc.Width && hist.slots[0].Height() == desc.Height {
				return nil
			}
			m.releaseHistory(hist)
		}
		for i := range hist.slots {
			d := desc
			d.Label = fmt.Sprintf("%s (history %d)", e.name, i)
			tex, err := m.engine.CreateTexture(d)
			if err != nil {
				return fmt.Errorf("create texture %q: %w", d.Label, err)
			}
			hist.slots[i] = tex
		}
		e.texture = hist.current()
		return nil
	}

	if e.texture != nil {
		if e.texture.Width() == desc.Width && e.texture.Height() == desc.Height {
			return nil
		}
		m.logger.Debugf("reallocating texture %q at %dx%d", e.name, desc.Width, desc.Height)
		m.engine.ReleaseTexture(e.texture)
		e.texture = nil
	}
	tex, err := m.engine.CreateTexture(desc)
	if err != nil {
		return fmt.Errorf("create texture %q: %w", e.name, err)
	}
	e.texture = tex
	e.shared = false
	return nil
}

func (m *TextureManager) releaseHistory(hist *historyTexture) {
	for i, tex := range hist.slots {
		if tex != nil && m.engine != nil {
			m.engine.ReleaseTexture(tex)
		}
		hist.slots[i] = nil
	}
	hist.index = 0
	hist.refs = nil
}

// releaseTextures drops every Task entry and its physical texture. With all
// set, Graph and External entries go too and the manager is back to its
// initial state. Without it, dangling handles created during a record are
// dropped too. Render targets are rebuilt on next use in both cases.
func (m *TextureManager) releaseTextures(all bool) {
	for _, rt := range m.renderTargets {
		if rt.wrapper != nil && m.engine != nil {
			m.engine.ReleaseRenderTarget(rt.wrapper)
		}
		rt.wrapper = nil
	}
	m.renderTargets = nil
	for _, hist := range m.history {
		hist.refs = nil
	}

	for h, e := range m.textures {
		if !all && e.namespace != NamespaceTask {
			continue
		}
		if e.namespace != NamespaceExternal {
			m.releaseEntry(h)
		}
		delete(m.textures, h)
		delete(m.history, h)
	}

	if all {
		clear(m.dangling)
		m.addSystemTextures()
		return
	}
	for h, recorded := range m.dangling {
		if recorded {
			delete(m.dangling, h)
		}
	}
}

// updateHistoryTextures advances every history texture by one slot. It runs
// once per executed frame, after all tasks.
func (m *TextureManager) updateHistoryTextures() {
	for h, hist := range m.history {
		if !hist.allocated() {
			continue
		}
		hist.advance()
		if e, ok := m.textures[h]; ok {
			e.texture = hist.current()
		}
	}
}
