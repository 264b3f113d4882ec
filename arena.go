package tiny

// Arena is a page-chunked bump allocator. Once a *T is handed out it is
// never moved or reclaimed individually; the whole arena is dropped at
// once when its owner (the AST that allocates its Nodes here) goes away. Mirrors the
// original Tiny C arena's page-linked-list design, which exists specifically
// so that previously returned pointers stay valid across growth (unlike a
// single growing slice, whose backing array can relocate).
type Arena[T any] struct {
	pageSize int
	head     *arenaPage[T]
	tail     *arenaPage[T]
}

type arenaPage[T any] struct {
	data []T
	next *arenaPage[T]
}

const defaultArenaPageSize = 256

// NewArena creates an arena that grows in pages of pageSize elements. A
// pageSize <= 0 selects a sensible default.
func NewArena[T any](pageSize int) *Arena[T] {
	if pageSize <= 0 {
		pageSize = defaultArenaPageSize
	}
	return &Arena[T]{pageSize: pageSize}
}

// Alloc returns a pointer to a new zero-valued T, allocated from the
// arena's current page (or a freshly appended one).
func (a *Arena[T]) Alloc() *T {
	if a.tail == nil || len(a.tail.data) == cap(a.tail.data) {
		a.addPage()
	}
	a.tail.data = a.tail.data[:len(a.tail.data)+1]
	return &a.tail.data[len(a.tail.data)-1]
}

func (a *Arena[T]) addPage() {
	page := &arenaPage[T]{data: make([]T, 0, a.pageSize)}
	if a.tail == nil {
		a.head, a.tail = page, page
		return
	}
	a.tail.next = page
	a.tail = page
}

// Len reports how many elements have been allocated across all pages.
func (a *Arena[T]) Len() int {
	n := 0
	for p := a.head; p != nil; p = p.next {
		n += len(p.data)
	}
	return n
}
