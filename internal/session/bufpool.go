package session

import "sync"

// bytePool is a pool of reusable outbound-frame buffers, reducing GC
// pressure in the write pump (grounded on the teacher's BytePool).
type bytePool struct {
	pool sync.Pool
}

func newBytePool(defaultCap int) *bytePool {
	p := &bytePool{}
	p.pool.New = func() any {
		return make([]byte, 0, defaultCap)
	}
	return p
}

// get returns a slice of length size, preferably recycled from the pool.
func (p *bytePool) get(size int) []byte {
	b := p.pool.Get().([]byte)
	if cap(b) < size {
		p.pool.Put(b)
		return make([]byte, size)
	}
	return b[:size]
}

// put returns b to the pool for reuse. Callers relinquish ownership of
// b by calling this.
func (p *bytePool) put(b []byte) {
	if b == nil {
		return
	}
	p.pool.Put(b[:0])
}
