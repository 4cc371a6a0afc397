package pool

import (
	"bytes"
	"sync"
)

// BufferPool recycles byte buffers up to maxCap. Larger buffers are left to the GC.
type BufferPool struct {
	pool   sync.Pool
	maxCap int
}

func NewBufferPool(initialCap, maxCap int) *BufferPool {
	initialCap = max(initialCap, 0)
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialCap))
			},
		},
		maxCap: max(maxCap, initialCap),
	}
}

// With lends an empty buffer to fn. The buffer must not be retained after fn returns.
func (bp *BufferPool) With(fn func(buf *bytes.Buffer) error) error {
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bp.put(buf)
	return fn(buf)
}

func (bp *BufferPool) put(buf *bytes.Buffer) {
	if buf.Cap() > bp.maxCap {
		return
	}
	buf.Reset()
	bp.pool.Put(buf)
}
