package mavlink

import (
	"errors"
	"sync"
)

var ErrNoChannel = errors.New("no decoder channels available")

// Pool hands out a fixed number of decoder channels. A process normally has
// one pool shared by everything that decodes MAVLink; each channel is owned
// by a single decoding run between Acquire and Release.
type Pool struct {
	mu      sync.Mutex
	free    []*Parser
	inUse   map[*Parser]struct{}
	maxSize int
}

// NewPool creates a pool with channels numbered 1..size.
func NewPool(size int) *Pool {
	p := &Pool{
		inUse:   make(map[*Parser]struct{}),
		maxSize: size,
	}
	for ch := size; ch >= 1; ch-- {
		parser := NewParser()
		parser.channel = ch
		p.free = append(p.free, parser)
	}
	return p
}

// Acquire reserves the lowest free channel.
// A nil pool has no channels.
func (p *Pool) Acquire() (*Parser, error) {
	if p == nil {
		return nil, ErrNoChannel
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return nil, ErrNoChannel
	}

	parser := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.inUse[parser] = struct{}{}
	return parser, nil
}

// Release returns a channel to the pool. Releasing nil, a parser from another
// pool, or an already released parser does nothing.
func (p *Pool) Release(parser *Parser) {
	if p == nil || parser == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inUse[parser]; !ok {
		return
	}
	delete(p.inUse, parser)
	parser.Reset()

	// Keep the free list ordered so the lowest channel is handed out next.
	i := len(p.free)
	p.free = append(p.free, nil)
	for i > 0 && p.free[i-1].channel < parser.channel {
		p.free[i] = p.free[i-1]
		i--
	}
	p.free[i] = parser
}

func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

func (p *Pool) Size() int {
	return p.maxSize
}
