package container

import (
	"errors"
	"sort"

	"github.com/notargets/gompm/types"
)

var (
	ErrDuplicate = errors.New("duplicate entity")
	ErrNotFound  = errors.New("entity not found")
)

// Entity is anything with a stable integer id. Implementations are pointer types, the
// container tracks them by identity.
type Entity interface {
	comparable
	ID() types.Index
}

// Container is an unordered collection with O(1) add and swap-with-last removal.
// Iteration order changes when an entity is removed.
type Container[T Entity] struct {
	items []T
	pos   map[T]int
	ids   map[types.Index]int
}

func NewContainer[T Entity]() *Container[T] {
	return &Container[T]{
		pos: make(map[T]int),
		ids: make(map[types.Index]int),
	}
}

// Add appends e. The same entity is never added twice. When checkDuplicates is set, an
// entity sharing the id of a member is refused as well.
func (c *Container[T]) Add(e T, checkDuplicates bool) (err error) {
	if _, present := c.pos[e]; present {
		return ErrDuplicate
	}
	if checkDuplicates && c.ids[e.ID()] > 0 {
		return ErrDuplicate
	}
	c.pos[e] = len(c.items)
	c.ids[e.ID()]++
	c.items = append(c.items, e)
	return
}

// Remove erases e by identity, moving the last entity into its slot
func (c *Container[T]) Remove(e T) (err error) {
	k, present := c.pos[e]
	if !present {
		return ErrNotFound
	}
	last := len(c.items) - 1
	if k != last {
		moved := c.items[last]
		c.items[k] = moved
		c.pos[moved] = k
	}
	var zero T
	c.items[last] = zero
	c.items = c.items[:last]
	delete(c.pos, e)
	if c.ids[e.ID()]--; c.ids[e.ID()] == 0 {
		delete(c.ids, e.ID())
	}
	return
}

func (c *Container[T]) Size() int { return len(c.items) }

func (c *Container[T]) Has(e T) bool {
	_, present := c.pos[e]
	return present
}

func (c *Container[T]) HasID(id types.Index) bool { return c.ids[id] > 0 }

func (c *Container[T]) Clear() {
	clear(c.items)
	c.items = c.items[:0]
	clear(c.pos)
	clear(c.ids)
}

// Items exposes the backing slice for read only iteration
func (c *Container[T]) Items() []T { return c.items }

func (c *Container[T]) At(k int) T { return c.items[k] }

func (c *Container[T]) ForEach(fn func(e T)) {
	for _, e := range c.items {
		fn(e)
	}
}

// Ids returns the member ids in ascending order
func (c *Container[T]) Ids() (ids []types.Index) {
	ids = make([]types.Index, len(c.items))
	for k, e := range c.items {
		ids[k] = e.ID()
	}
	sort.Sort(types.IndexSlice(ids))
	return
}
