package channel

// DefaultFIFOSize is the capacity used for FIFO channels when none is given.
const DefaultFIFOSize = 16

// New creates a channel with the given policy. size only applies to FIFO.
func New[T any](policy Policy, size int) Channel[T] {
	if policy == Latest {
		return NewSingle[T]()
	}
	if size <= 0 {
		size = DefaultFIFOSize
	}
	return NewBuffered[T](size)
}
