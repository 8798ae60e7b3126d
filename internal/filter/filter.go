// Package filter provides composable inclusion predicates over slices and a
// runner that threads items through an ordered list of them.
package filter

// Partition splits an input slice into the items a filter kept and the items
// it removed. Input order is preserved within each side.
type Partition[T any] struct {
	Kept    []T
	Removed []T
}

// Filter is a named, stateless predicate over a list of items.
type Filter[T any] interface {
	Name() string
	Description() string
	Apply(items []T) Partition[T]
}

type predicate[T any] struct {
	name string
	desc string
	keep func(T) bool
}

// New builds a primitive filter that keeps every item for which keep
// returns true.
func New[T any](name, description string, keep func(T) bool) Filter[T] {
	return predicate[T]{name: name, desc: description, keep: keep}
}

func (p predicate[T]) Name() string        { return p.name }
func (p predicate[T]) Description() string { return p.desc }

func (p predicate[T]) Apply(items []T) Partition[T] {
	return partition(items, p.keep)
}

type combinator[T any] struct {
	name    string
	desc    string
	filters []Filter[T]
	or      bool
}

// Union keeps an item iff at least one sub-filter, applied to that item
// alone, keeps it. A Union with no sub-filters keeps nothing.
func Union[T any](name, description string, filters ...Filter[T]) Filter[T] {
	return combinator[T]{name: name, desc: description, filters: filters, or: true}
}

// Intersection keeps an item iff every sub-filter, applied to that item
// alone, keeps it. An Intersection with no sub-filters keeps everything.
func Intersection[T any](name, description string, filters ...Filter[T]) Filter[T] {
	return combinator[T]{name: name, desc: description, filters: filters}
}

func (c combinator[T]) Name() string        { return c.name }
func (c combinator[T]) Description() string { return c.desc }

func (c combinator[T]) Apply(items []T) Partition[T] {
	return partition(items, c.keeps)
}

func (c combinator[T]) keeps(item T) bool {
	single := []T{item}
	for _, f := range c.filters {
		kept := len(f.Apply(single).Kept) == 1
		if c.or && kept {
			return true
		}
		if !c.or && !kept {
			return false
		}
	}
	return !c.or
}

func partition[T any](items []T, keep func(T) bool) Partition[T] {
	p := Partition[T]{
		Kept:    make([]T, 0, len(items)),
		Removed: make([]T, 0),
	}
	for _, it := range items {
		if keep(it) {
			p.Kept = append(p.Kept, it)
		} else {
			p.Removed = append(p.Removed, it)
		}
	}
	return p
}
