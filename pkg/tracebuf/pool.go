package tracebuf

import (
	"errors"
	"sync"
)

// DefaultChunkSize is the size of a regular chunk.
const DefaultChunkSize = 64 * 1024

// ErrPoolExhausted is returned when a bounded pool has no chunk left to hand out.
var ErrPoolExhausted = errors.New("tracebuf: chunk pool exhausted")

// PoolConfig contains configuration for a chunk pool.
type PoolConfig struct {
	// ChunkSize is the size of a regular chunk in bytes.
	// Default: 65536
	ChunkSize int

	// MaxChunks bounds the number of chunks alive at the same time
	// (handed out and not yet released). 0 means unbounded.
	MaxChunks int

	// MaxFree is the number of released chunks kept for reuse.
	// Default: 64
	MaxFree int
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		ChunkSize: DefaultChunkSize,
		MaxChunks: 0,
		MaxFree:   64,
	}
}

// Pool allocates and recycles chunks. It is shared between recorders and the
// sinks that release submitted chunks, so it is safe for concurrent use.
type Pool struct {
	config PoolConfig

	mu        sync.Mutex
	free      []*Chunk
	live      int
	allocated int64
}

// NewPool creates a new chunk pool.
func NewPool(config *PoolConfig) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	cfg := *config
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxFree < 0 {
		cfg.MaxFree = 0
	}
	return &Pool{
		config: cfg,
		free:   make([]*Chunk, 0, cfg.MaxFree),
	}
}

// ChunkSize returns the size of a regular chunk.
func (p *Pool) ChunkSize() int {
	return p.config.ChunkSize
}

// Get returns an empty chunk with room for at least min bytes. Requests
// larger than the chunk size get a dedicated, oversize chunk that is not
// recycled.
func (p *Pool) Get(min int) (*Chunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.MaxChunks > 0 && p.live >= p.config.MaxChunks {
		return nil, ErrPoolExhausted
	}

	if min <= p.config.ChunkSize {
		if n := len(p.free); n > 0 {
			c := p.free[n-1]
			p.free[n-1] = nil
			p.free = p.free[:n-1]
			p.live++
			return c.reuse(), nil
		}
		min = p.config.ChunkSize
	}

	p.live++
	p.allocated++
	return &Chunk{buf: make([]byte, min), pool: p}, nil
}

// put returns a chunk to the free list.
func (p *Pool) put(c *Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.live--
	if len(c.buf) == p.config.ChunkSize && len(p.free) < p.config.MaxFree {
		c.n = 0
		c.off = 0
		p.free = append(p.free, c)
	}
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	// Live is the number of chunks handed out and not yet released.
	Live int
	// Free is the number of chunks waiting for reuse.
	Free int
	// Allocated is the total number of chunks ever allocated.
	Allocated int64
}

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Live: p.live, Free: len(p.free), Allocated: p.allocated}
}
