package util

import "sort"

// DefaultMap creates missing values on first access and remembers insertion order.
type DefaultMap[K comparable, V any] struct {
	internal map[K]V
	order    []K
	factory  func() V
}

func NewDefaultMap[K comparable, V any](factory func() V) *DefaultMap[K, V] {
	return &DefaultMap[K, V]{
		internal: make(map[K]V),
		factory:  factory,
	}
}

func (d *DefaultMap[K, V]) Get(key K) V {
	if val, ok := d.internal[key]; ok {
		return val
	}
	val := d.factory()
	d.Set(key, val)
	return val
}

func (d *DefaultMap[K, V]) Peek(key K) (V, bool) {
	val, ok := d.internal[key]
	return val, ok
}

func (d *DefaultMap[K, V]) Set(key K, value V) {
	if _, ok := d.internal[key]; !ok {
		d.order = append(d.order, key)
	}
	d.internal[key] = value
}

// Keys returns keys in insertion order.
func (d *DefaultMap[K, V]) Keys() []K {
	return append([]K(nil), d.order...)
}

func (d *DefaultMap[K, V]) Items() map[K]V {
	return d.internal
}

func (d *DefaultMap[K, V]) Len() int {
	return len(d.internal)
}

// SortedKeys returns the keys ordered by less.
func SortedKeys[K comparable, V any](d *DefaultMap[K, V], less func(a, b K) bool) []K {
	keys := d.Keys()
	sort.SliceStable(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}
