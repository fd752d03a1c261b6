package composer

import (
	"container/list"
	"math"
	"sync"

	"github.com/itsChris/qrcomposer/internal/matrix"
	"github.com/itsChris/qrcomposer/internal/qrpath"
)

// optFloat is a comparable stand-in for an optional float.
type optFloat struct {
	set  bool
	bits uint64
}

func fromFloat(p *float64) optFloat {
	if p == nil {
		return optFloat{}
	}
	return optFloat{set: true, bits: floatBits(*p)}
}

// floatBits maps every NaN to one pattern so keys stay equal to themselves.
func floatBits(f float64) uint64 {
	if math.IsNaN(f) {
		return math.Float64bits(math.NaN())
	}
	return math.Float64bits(f)
}

type optBool struct {
	set bool
	v   bool
}

func fromBool(p *bool) optBool {
	if p == nil {
		return optBool{}
	}
	return optBool{set: true, v: *p}
}

// cacheKey compares requests by value, never by option pointer identity.
type cacheKey struct {
	value string
	size  uint64
	level matrix.Level

	markerConnected optBool
	markerRadius    optFloat
	markerOuter     optFloat
	markerInner     optFloat

	patternConnected optBool
	patternRadius    optFloat
}

func keyOf(req Request) cacheKey {
	k := cacheKey{
		value: req.Value,
		size:  floatBits(req.Size),
		level: req.Level,
	}
	if d := req.DetectionMarker; d != nil {
		k.markerConnected = fromBool(d.Connected)
		k.markerRadius = fromFloat(d.CornerRadius)
		k.markerOuter = fromFloat(d.OuterCornerRadius)
		k.markerInner = fromFloat(d.InnerCornerRadius)
	}
	if p := req.Pattern; p != nil {
		k.patternConnected = fromBool(p.Connected)
		k.patternRadius = fromFloat(p.CornerRadius)
	}
	return k
}

type cacheEntry struct {
	key    cacheKey
	result qrpath.Result
}

// lru is a fixed-capacity least-recently-used cache of path results.
type lru struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[cacheKey]*list.Element

	hits   uint64
	misses uint64
}

func newLRU(capacity int) *lru {
	return &lru{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[cacheKey]*list.Element),
	}
}

func (c *lru) get(k cacheKey) (qrpath.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[k]
	if !ok {
		c.misses++
		return qrpath.Result{}, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

func (c *lru) put(k cacheKey, r qrpath.Result) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[k]; ok {
		el.Value.(*cacheEntry).result = r
		c.order.MoveToFront(el)
		return
	}

	c.items[k] = c.order.PushFront(&cacheEntry{key: k, result: r})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lru) stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Entries:  len(c.items),
		Capacity: c.capacity,
	}
}
