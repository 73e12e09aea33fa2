// Package bufpool recycles the byte slices ReadNextTag allocates for every
// tag body, so a multi-hour download doesn't churn the GC once per tag.
package bufpool

import "sync"

// classSizes are chosen around what an FLV stream actually produces per
// tag: AAC/MP3 audio frames and sequence headers sit well under a few KB,
// video keyframes commonly run into tens of KB.
var classSizes = [...]int{256, 8192, 131072}

type sizeClass struct {
	capacity int
	pool     sync.Pool
}

// Pool hands out byte slices sized to the nearest class that fits a
// request; anything larger than the biggest class bypasses pooling
// entirely rather than growing the classes unbounded.
type Pool struct {
	classes [len(classSizes)]*sizeClass
}

var shared = New()

// Get acquires from the package-level shared pool.
func Get(n int) []byte { return shared.Get(n) }

// Put releases to the package-level shared pool.
func Put(buf []byte) { shared.Put(buf) }

// New builds an independent Pool with its own backing sync.Pools.
func New() *Pool {
	var p Pool
	for i, n := range classSizes {
		n := n
		p.classes[i] = &sizeClass{
			capacity: n,
			pool:     sync.Pool{New: func() any { return make([]byte, n) }},
		}
	}
	return &p
}

// Get returns a slice of exactly length n, backed by the smallest class
// capacity >= n, or a one-off allocation if n exceeds every class.
func (p *Pool) Get(n int) []byte {
	if p == nil || n <= 0 {
		return nil
	}
	for _, c := range p.classes {
		if n <= c.capacity {
			buf := c.pool.Get().([]byte)
			return buf[:n]
		}
	}
	return make([]byte, n)
}

// Put returns buf to the class matching its capacity exactly. A buffer
// whose capacity doesn't match any class (a one-off Get, or a slice from
// elsewhere) is simply dropped.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil {
		return
	}
	capBuf := cap(buf)
	for _, c := range p.classes {
		if capBuf == c.capacity {
			full := buf[:capBuf]
			clear(full)
			c.pool.Put(full)
			return
		}
	}
}
