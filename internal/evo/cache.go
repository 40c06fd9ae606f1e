package evo

import (
	"encoding/binary"
	"math"

	lru "github.com/hashicorp/golang-lru"

	"healthfuzz/internal/scape"
)

type cachedEvaluation struct {
	fitness  float64
	output   float64
	trace    scape.Trace
	fallback bool
}

// FitnessCache memoizes evaluations by the exact bit pattern of a weight
// vector. It is safe for concurrent use.
type FitnessCache struct {
	entries *lru.Cache
}

func NewFitnessCache(size int) (*FitnessCache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &FitnessCache{entries: entries}, nil
}

func (c *FitnessCache) get(weights []float64) (cachedEvaluation, bool) {
	if c == nil {
		return cachedEvaluation{}, false
	}
	v, ok := c.entries.Get(cacheKey(weights))
	if !ok {
		return cachedEvaluation{}, false
	}
	return v.(cachedEvaluation), true
}

func (c *FitnessCache) add(weights []float64, eval cachedEvaluation) {
	if c == nil {
		return
	}
	c.entries.Add(cacheKey(weights), eval)
}

func (c *FitnessCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func cacheKey(weights []float64) string {
	buf := make([]byte, 8*len(weights))
	for i, w := range weights {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(w))
	}
	return string(buf)
}
