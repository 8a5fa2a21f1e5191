// Package pools recycles scratch buffers used by the pricing engines.
package pools

import "sync"

// Float64SlicePool is a pool of float64 slices
type Float64SlicePool struct {
	pool    sync.Pool
	size    int
	maxSize int
}

// NewFloat64SlicePool creates a pool whose fresh slices have capacity size.
// Slices grown beyond maxSize are left to the GC when returned.
func NewFloat64SlicePool(size, maxSize int) *Float64SlicePool {
	if maxSize < size {
		maxSize = size
	}
	return &Float64SlicePool{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]float64, 0, size)
				return &s
			},
		},
		size:    size,
		maxSize: maxSize,
	}
}

// Get returns a zeroed slice of length n
func (p *Float64SlicePool) Get(n int) []float64 {
	sp := p.pool.Get().(*[]float64)
	s := *sp
	if cap(s) < n {
		p.pool.Put(sp)
		return make([]float64, n)
	}
	s = s[:n]
	clear(s)
	return s
}

// Put returns a slice to the pool
func (p *Float64SlicePool) Put(s []float64) {
	if cap(s) < p.size || cap(s) > p.maxSize {
		return
	}
	s = s[:0]
	p.pool.Put(&s)
}
