package framegraph

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservable(t *testing.T) {
	var o Observable[int]
	var got []string

	removeA := o.Add(func(v int) { got = append(got, "a") })
	o.Add(func(v int) {
		got = append(got, "b")
		if v == 1 {
			// registered during a notification, only seen by the next one
			o.Add(func(int) { got = append(got, "c") })
		}
	})

	o.Notify(1)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 3, o.Len())

	got = nil
	removeA()
	removeA()
	o.Notify(2)
	assert.Equal(t, []string{"b", "c"}, got)

	o.Clear()
	assert.Zero(t, o.Len())
}

func TestProfiler(t *testing.T) {
	p := NewProfiler()
	p.Record("second", 3*time.Millisecond)
	p.BeginScope("first")
	p.EndScope("first")
	p.EndScope("never started")
	p.Record("second", 2*time.Millisecond)

	d, ok := p.Scope("second")
	require.True(t, ok)
	assert.Equal(t, 2*time.Millisecond, d)
	_, ok = p.Scope("first")
	assert.True(t, ok)
	_, ok = p.Scope("never started")
	assert.False(t, ok)

	p.SetCount("textures", 4)
	p.AddCount("textures", 2)
	p.AddCount("visible", 1)
	assert.Equal(t, 6, p.Count("textures"))

	stats := p.StatsString()
	assert.Less(t, strings.Index(stats, "second"), strings.Index(stats, "first"), "scopes keep insertion order")
	assert.Contains(t, stats, "textures")
	assert.Contains(t, stats, ": 6")

	p.Reset()
	d, ok = p.Scope("second")
	assert.True(t, ok)
	assert.Zero(t, d)
	assert.Equal(t, 6, p.Count("textures"))
}
