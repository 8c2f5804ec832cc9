package container

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gompm/types"
)

type item struct {
	id types.Index
}

func (it *item) ID() types.Index { return it.id }

func TestContainer(t *testing.T) {
	c := NewContainer[*item]()
	a, b, d := &item{0}, &item{1}, &item{2}
	require.NoError(t, c.Add(a, true))
	require.NoError(t, c.Add(b, true))
	require.NoError(t, c.Add(d, true))
	assert.Equal(t, 3, c.Size())

	{ // Duplicates
		assert.ErrorIs(t, c.Add(a, false), ErrDuplicate) // same entity twice is never allowed
		assert.ErrorIs(t, c.Add(&item{1}, true), ErrDuplicate)
		assert.Equal(t, 3, c.Size())
		dup := &item{1}
		assert.NoError(t, c.Add(dup, false))
		assert.Equal(t, 4, c.Size())
		assert.NoError(t, c.Remove(dup))
	}
	{ // Swap with last removal
		require.NoError(t, c.Remove(a))
		assert.Equal(t, 2, c.Size())
		assert.Equal(t, d, c.At(0))
		assert.False(t, c.Has(a))
		assert.False(t, c.HasID(0))
		assert.True(t, c.HasID(1))
		assert.ErrorIs(t, c.Remove(a), ErrNotFound)
		assert.Equal(t, []types.Index{1, 2}, c.Ids())
	}
	c.Clear()
	assert.Equal(t, 0, c.Size())
	assert.NoError(t, c.Add(a, true))
}

func TestMap(t *testing.T) {
	m := NewMap[*item]()
	a := &item{7}
	require.NoError(t, m.Insert(a.ID(), a))
	assert.ErrorIs(t, m.Insert(a.ID(), &item{7}), ErrDuplicate)
	found, ok := m.Find(7)
	assert.True(t, ok)
	assert.Equal(t, a, found)
	_, ok = m.Find(8)
	assert.False(t, ok)
	assert.ErrorIs(t, m.Remove(8), ErrNotFound)
	assert.NoError(t, m.Remove(7))
	assert.Equal(t, 0, m.Size())
}

func TestContainerMapInSync(t *testing.T) {
	var (
		c    = NewContainer[*item]()
		m    = NewMap[*item]()
		live []*item
		rng  = rand.New(rand.NewSource(11))
	)
	add := func(e *item) {
		// paired insertion: the map is only touched when the container accepts the entity
		if err := c.Add(e, true); err == nil {
			if err = m.Insert(e.ID(), e); err != nil {
				_ = c.Remove(e)
				return
			}
			live = append(live, e)
		}
	}
	remove := func(k int) {
		e := live[k]
		if err := c.Remove(e); err == nil {
			_ = m.Remove(e.ID())
		}
		live[k] = live[len(live)-1]
		live = live[:len(live)-1]
	}
	for step := 0; step < 5000; step++ {
		switch op := rng.Intn(3); {
		case op < 2 || len(live) == 0:
			// ids collide on purpose to exercise duplicate refusal
			add(&item{types.Index(rng.Intn(500))})
		default:
			remove(rng.Intn(len(live)))
		}
		if !assert.Equal(t, c.Size(), m.Size()) {
			return
		}
	}
	assert.Equal(t, len(live), c.Size())
	for _, e := range live {
		found, ok := m.Find(e.ID())
		assert.True(t, ok)
		assert.Equal(t, e, found)
	}
}
