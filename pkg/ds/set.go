package ds

type void struct{}

var empty void

type Set[T comparable] interface {
	Add(item T)
	// AddIfAbsent adds item and reports whether it was not present before.
	AddIfAbsent(item T) bool
	Remove(item T)
	Contains(item T) bool
	Size() int
	ToSlice() []T
	Clear()
}

func NewSet[T comparable](items ...T) Set[T] {
	s := &mapSet[T]{data: make(map[T]void, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func NewSyncedSet[T comparable](items ...T) Set[T] {
	return &syncedSet[T]{set: NewSet(items...)}
}
