package texture

import (
	"image"
	"sort"
	"sync"
)

// Resolver resolves a texture name to a decoded RGBA image, or nil.
type Resolver interface {
	Resolve(texName string) *image.NRGBA
}

// Cache resolves names through an Index and keeps every decoded, GX-fitted
// image for the life of one export run. Safe for concurrent use.
type Cache struct {
	index *Index

	mu     sync.RWMutex
	images map[string]*image.NRGBA // by path; nil marks a failed load
	failed map[string]error
}

// NewCache creates a cache backed by index.
func NewCache(index *Index) *Cache {
	return &Cache{
		index:  index,
		images: make(map[string]*image.NRGBA),
		failed: make(map[string]error),
	}
}

// Resolve returns the fitted image for texName, or nil when the name is not
// indexed or its file does not decode.
func (c *Cache) Resolve(texName string) *image.NRGBA {
	path, ok := c.index.ResolvePath(texName)
	if !ok {
		return nil
	}

	c.mu.RLock()
	img, seen := c.images[path]
	c.mu.RUnlock()
	if seen {
		return img
	}

	img, err := LoadTexture(path)
	if err == nil {
		img = Fit(img)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, seen := c.images[path]; seen {
		return prev
	}
	c.images[path] = img
	if err != nil {
		c.failed[path] = err
	}
	return img
}

// Failed lists the indexed files that could not be decoded, by path.
func (c *Cache) Failed() []error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]string, 0, len(c.failed))
	for p := range c.failed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]error, len(paths))
	for i, p := range paths {
		out[i] = c.failed[p]
	}
	return out
}
