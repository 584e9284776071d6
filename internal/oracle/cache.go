package oracle

import (
	"context"
	"encoding/binary"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Cache memoises solve results by pinned values.
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, r Result) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]Result
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{m: map[string]Result{}} }

func (c *MemoryCache) Get(_ context.Context, key string) (Result, bool, error) {
	c.mu.RLock()
	r, ok := c.m[key]
	c.mu.RUnlock()
	return r, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, r Result) error {
	c.mu.Lock()
	c.m[key] = r
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

type cachedSolver struct {
	Solver
	cache Cache
	key   string
}

// Cached serves repeated solves of identical pins from c. Unknown outcomes
// are never stored. A failing cache degrades to a plain solve.
func Cached(s Solver, c Cache) Solver {
	if c == nil {
		return s
	}
	return &cachedSolver{Solver: s, cache: c}
}

func (c *cachedSolver) AddPins(p Pins) error {
	if err := c.Solver.AddPins(p); err != nil {
		return err
	}
	c.key = pinsKey(p)
	return nil
}

func (c *cachedSolver) UpdatePins(p Pins) error {
	if err := c.Solver.UpdatePins(p); err != nil {
		return err
	}
	c.key = pinsKey(p)
	return nil
}

func (c *cachedSolver) RemovePins() error {
	c.key = ""
	return c.Solver.RemovePins()
}

func (c *cachedSolver) Optimize(ctx context.Context) (Result, error) {
	if c.key == "" {
		return c.Solver.Optimize(ctx)
	}
	if r, ok, err := c.cache.Get(ctx, c.key); err == nil && ok {
		return r, nil
	}
	r, err := c.Solver.Optimize(ctx)
	if err != nil || r.Outcome == OutcomeUnknown {
		return r, err
	}
	_ = c.cache.Set(ctx, c.key, r)
	return r, nil
}

func (c *cachedSolver) Close() error { return closeSolver(c.Solver) }

// pinsKey is the mode plus a 64-bit digest of every pinned value.
func pinsKey(p Pins) string {
	h := xxhash.New()
	var buf [8]byte
	put := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	put(len(p.X))
	for _, v := range p.X {
		put(v)
	}
	if p.Mode == ModeExact {
		for _, m := range [][][]int{p.Y, p.Z} {
			put(len(m))
			for _, row := range m {
				for _, v := range row {
					put(v)
				}
			}
		}
	}
	return p.Mode.String() + ":" + strconv.FormatUint(h.Sum64(), 16)
}
