// Package api exposes the orchestration core through a flat, handle-based
// surface shaped like the original C ABI: opaque tokens instead of pointers,
// result codes instead of errors, one registration function per callback
// kind. Handles are arena indices with a generation counter, so a stale or
// fabricated handle fails the lookup instead of dereferencing freed memory.
package api

import "sync"

// Handle is an opaque token for an object owned by a handle table. The low
// 32 bits are the arena index, the high 32 bits the slot generation. The
// zero Handle is never valid.
type Handle uint64

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) split() (index, generation uint32) {
	return uint32(h), uint32(h >> 32)
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// table is a generation-checked arena. Freed slots are recycled with a
// bumped generation, invalidating all previously issued handles for the
// slot.
type table[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []uint32
}

func (t *table[T]) insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot[T]{})
		index = uint32(len(t.slots) - 1)
	}

	s := &t.slots[index]
	s.generation++
	s.value = v
	s.live = true
	return makeHandle(index, s.generation)
}

func (t *table[T]) get(h Handle) (T, bool) {
	var zero T
	index, generation := h.split()

	t.mu.Lock()
	defer t.mu.Unlock()
	if int(index) >= len(t.slots) {
		return zero, false
	}
	s := &t.slots[index]
	if !s.live || s.generation != generation {
		return zero, false
	}
	return s.value, true
}

func (t *table[T]) remove(h Handle) (T, bool) {
	var zero T
	index, generation := h.split()

	t.mu.Lock()
	defer t.mu.Unlock()
	if int(index) >= len(t.slots) {
		return zero, false
	}
	s := &t.slots[index]
	if !s.live || s.generation != generation {
		return zero, false
	}
	value := s.value
	s.value = zero
	s.live = false
	t.free = append(t.free, index)
	return value, true
}

// removeIf drops every live entry matching pred.
func (t *table[T]) removeIf(pred func(T) bool) {
	var zero T
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		s := &t.slots[i]
		if s.live && pred(s.value) {
			s.value = zero
			s.live = false
			t.free = append(t.free, uint32(i))
		}
	}
}

func (t *table[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.slots {
		if t.slots[i].live {
			n++
		}
	}
	return n
}
