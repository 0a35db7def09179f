package capi

import "sync"

type table[T any] struct {
	mu    sync.Mutex
	next  Handle
	items map[Handle]T
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[Handle]T)}
}

func (t *table[T]) add(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	t.items[t.next] = v
	return t.next
}

func (t *table[T]) get(h Handle) (v T, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok = t.items[h]
	return v, ok
}

func (t *table[T]) remove(h Handle) (v T, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok = t.items[h]; ok {
		delete(t.items, h)
	}
	return v, ok
}
