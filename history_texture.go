package framegraph

// depthSlot marks a history reference bound as the depth attachment.
const depthSlot = -1

type historyRef struct {
	wrapper *RenderTargetWrapper
	slot    int
}

// historyTexture is a ring of physical textures behind one handle. Passes
// render into slots[index] while readers see the slot written by the
// previous frame.
type historyTexture struct {
	slots []Texture
	index int
	refs  []historyRef
}

func newHistoryTexture(n int) *historyTexture {
	if n < 2 {
		n = DefaultHistoryLength
	}
	return &historyTexture{slots: make([]Texture, n)}
}

func (h *historyTexture) readIndex() int {
	n := len(h.slots)
	return (h.index + n - 1) % n
}

func (h *historyTexture) current() Texture {
	return h.slots[h.index]
}

func (h *historyTexture) allocated() bool {
	return h.slots[0] != nil
}

// advance moves to the next slot and repoints every wrapper rendering into
// this texture.
func (h *historyTexture) advance() {
	h.index = (h.index + 1) % len(h.slots)
	cur := h.current()
	for _, ref := range h.refs {
		if ref.slot == depthSlot {
			ref.wrapper.depth = cur
		} else {
			ref.wrapper.SetTexture(ref.slot, cur)
		}
	}
}
