package archiver

// buffer is a reusable byte buffer handed to blobSaver for encoding and
// packing. Release returns it to the pool it came from.
type buffer struct {
	Data []byte
	pool *bufferPool
}

// Release puts the buffer back into the pool it came from, unless it has
// grown past the pool's default size.
func (b *buffer) Release() {
	pool := b.pool
	if pool == nil || cap(b.Data) > pool.defaultSize {
		return
	}

	select {
	case pool.ch <- b:
	default:
	}
}

// bufferPool is a bounded set of reusable buffers sized for one chunk.
type bufferPool struct {
	ch          chan *buffer
	defaultSize int
}

// newBufferPool initializes a pool that holds at most max buffers, each
// newly allocated at defaultSize.
func newBufferPool(max int, defaultSize int) *bufferPool {
	return &bufferPool{
		ch:          make(chan *buffer, max),
		defaultSize: defaultSize,
	}
}

// Get returns a buffer from the pool, or a freshly allocated one if the
// pool is empty.
func (pool *bufferPool) Get() *buffer {
	select {
	case buf := <-pool.ch:
		return buf
	default:
	}

	return &buffer{
		Data: make([]byte, pool.defaultSize),
		pool: pool,
	}
}
