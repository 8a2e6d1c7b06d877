// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package util

type setEntry[K comparable, V any] struct {
	k    K
	v    V
	next *setEntry[K, V]
	prev *setEntry[K, V]
}

// OrderedSet is a set that iterates in insertion order. Membership,
// insertion, and removal are O(1). Elements are identified by the key
// derived from them, so values that render to the same key are the
// same element.
type OrderedSet[K comparable, V any] struct {
	key   func(V) K
	table map[K]*setEntry[K, V]
	root  *setEntry[K, V]
}

// NewOrderedSet returns an empty OrderedSet that derives element
// identity with key.
func NewOrderedSet[K comparable, V any](key func(V) K) *OrderedSet[K, V] {
	root := &setEntry[K, V]{}
	root.next = root
	root.prev = root
	return &OrderedSet[K, V]{
		key:   key,
		table: map[K]*setEntry[K, V]{},
		root:  root,
	}
}

// Add inserts v if no element with the same key is present. The
// return value indicates whether the set changed.
func (s *OrderedSet[K, V]) Add(v V) bool {
	k := s.key(v)
	if _, ok := s.table[k]; ok {
		return false
	}
	entry := &setEntry[K, V]{k: k, v: v, next: s.root, prev: s.root.prev}
	s.root.prev.next = entry
	s.root.prev = entry
	s.table[k] = entry
	return true
}

// Discard removes the element with the same key as v if present. The
// return value indicates whether the set changed; discarding an
// absent element is a no-op.
func (s *OrderedSet[K, V]) Discard(v V) bool {
	entry, ok := s.table[s.key(v)]
	if !ok {
		return false
	}
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(s.table, entry.k)
	return true
}

// Contains returns true if an element with the same key as v is
// present.
func (s *OrderedSet[K, V]) Contains(v V) bool {
	_, ok := s.table[s.key(v)]
	return ok
}

// Get returns the stored element with the same key as v.
func (s *OrderedSet[K, V]) Get(v V) (V, bool) {
	if entry, ok := s.table[s.key(v)]; ok {
		return entry.v, true
	}
	var zero V
	return zero, false
}

// Len returns the number of elements in the set.
func (s *OrderedSet[K, V]) Len() int {
	return len(s.table)
}

// Iter invokes f on each element in insertion order until f returns
// true. Returns true if iteration was stopped early.
func (s *OrderedSet[K, V]) Iter(f func(V) bool) bool {
	for entry := s.root.next; entry != s.root; entry = entry.next {
		if f(entry.v) {
			return true
		}
	}
	return false
}

// Slice returns the elements in insertion order.
func (s *OrderedSet[K, V]) Slice() []V {
	sl := make([]V, 0, len(s.table))
	s.Iter(func(v V) bool {
		sl = append(sl, v)
		return false
	})
	return sl
}

// Copy returns a shallow copy of this set.
func (s *OrderedSet[K, V]) Copy() *OrderedSet[K, V] {
	cpy := NewOrderedSet[K, V](s.key)
	s.Iter(func(v V) bool {
		cpy.Add(v)
		return false
	})
	return cpy
}
