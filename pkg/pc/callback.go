package pc

import "sync"

// callbackSlot holds a single user callback behind its own mutex. The slot
// keeps the "last registration wins, one observer" model: registering
// replaces any previous callback, registering nil unregisters. The invoke
// path loads the callback under the lock and calls it with the lock
// released, so user code may re-enter the API freely.
type callbackSlot[F any] struct {
	mu sync.Mutex
	fn F
	ok bool
}

func (s *callbackSlot[F]) register(fn F, ok bool) {
	s.mu.Lock()
	s.fn = fn
	s.ok = ok
	s.mu.Unlock()
}

func (s *callbackSlot[F]) load() (F, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fn, s.ok
}
