package assets

import (
	"hash/crc32"
	"image"
	"sync"

	"github.com/Faultbox/quick3d/internal/engine/texture"
)

type textureKey struct {
	name string
	sum  uint32
	size int
}

// TextureCache holds decoded textures keyed by name and content, so the
// same image blob is decoded once across renderers.
type TextureCache struct {
	data map[textureKey]*image.RGBA
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewTextureCache creates an empty cache.
func NewTextureCache() *TextureCache {
	return &TextureCache{
		data: make(map[textureKey]*image.RGBA),
	}
}

// Decode returns the decoded image, decoding and storing it on a miss.
// Decoding errors are not cached. The returned image must not be modified.
func (c *TextureCache) Decode(name string, data []byte) (*image.RGBA, error) {
	key := textureKey{name: name, sum: crc32.ChecksumIEEE(data), size: len(data)}

	c.mu.Lock()
	img, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	if ok {
		return img, nil
	}

	img, err := texture.Decode(name, data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.data[key] = img
	c.mu.Unlock()
	return img, nil
}

// Len returns the number of cached textures.
func (c *TextureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *TextureCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[textureKey]*image.RGBA)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *TextureCache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
