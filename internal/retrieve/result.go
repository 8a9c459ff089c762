package retrieve

import "encoding/json"

// Result is the outcome of a retrieval: local paths or open handles, in
// catalog order. A Result holding exactly one item behaves as a scalar.
type Result[T any] struct {
	items []T
}

// Collapse wraps items in a Result.
func Collapse[T any](items []T) Result[T] {
	return Result[T]{items: items}
}

// IsScalar reports whether the result holds exactly one item.
func (r Result[T]) IsScalar() bool {
	return len(r.items) == 1
}

// Scalar returns the single item. ok is false unless IsScalar.
func (r Result[T]) Scalar() (item T, ok bool) {
	if !r.IsScalar() {
		return item, false
	}
	return r.items[0], true
}

// Items returns all items, also for a scalar result.
func (r Result[T]) Items() []T {
	return r.items
}

// Len returns the number of items.
func (r Result[T]) Len() int {
	return len(r.items)
}

// MarshalJSON encodes a scalar result as its item and anything else as an
// array.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.IsScalar() {
		return json.Marshal(r.items[0])
	}
	if r.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.items)
}
