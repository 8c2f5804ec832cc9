package container

import (
	"github.com/notargets/gompm/types"
)

// Map is the identity map paired with a Container for lookup by id
type Map[T Entity] struct {
	m map[types.Index]T
}

func NewMap[T Entity]() *Map[T] {
	return &Map[T]{m: make(map[types.Index]T)}
}

// Insert fails if id is already mapped
func (mp *Map[T]) Insert(id types.Index, e T) (err error) {
	if _, present := mp.m[id]; present {
		return ErrDuplicate
	}
	mp.m[id] = e
	return
}

// Set maps id to e, replacing any previous entry
func (mp *Map[T]) Set(id types.Index, e T) { mp.m[id] = e }

func (mp *Map[T]) Find(id types.Index) (e T, ok bool) {
	e, ok = mp.m[id]
	return
}

func (mp *Map[T]) Has(id types.Index) bool {
	_, ok := mp.m[id]
	return ok
}

func (mp *Map[T]) Remove(id types.Index) (err error) {
	if _, present := mp.m[id]; !present {
		return ErrNotFound
	}
	delete(mp.m, id)
	return
}

func (mp *Map[T]) Size() int { return len(mp.m) }

func (mp *Map[T]) Clear() { clear(mp.m) }
