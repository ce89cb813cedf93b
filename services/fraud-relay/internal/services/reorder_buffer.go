package services

// reorderBuffer releases items in dispatch sequence order regardless of completion order.
// Sequences start at 0 and must be unique. It is not safe for concurrent use; the emitter owns it.
type reorderBuffer[T any] struct {
	next    uint64
	pending map[uint64]T
}

func newReorderBuffer[T any]() *reorderBuffer[T] {
	return &reorderBuffer[T]{pending: make(map[uint64]T)}
}

// Push stores v under seq and returns every item that is now contiguous with the last released one.
func (b *reorderBuffer[T]) Push(seq uint64, v T) []T {
	if seq < b.next {
		return nil
	}
	b.pending[seq] = v

	var ready []T
	for {
		item, ok := b.pending[b.next]
		if !ok {
			return ready
		}
		delete(b.pending, b.next)
		ready = append(ready, item)
		b.next++
	}
}

// Len returns the number of items waiting on an earlier sequence.
func (b *reorderBuffer[T]) Len() int { return len(b.pending) }
