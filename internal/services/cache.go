package services

import (
	"sync"

	"gearshelf/internal/models"
)

// ResultCache holds the grouped plugins of the last successful scan. It is
// empty until the first scan completes and is replaced wholesale by each
// later one.
type ResultCache struct {
	mu     sync.RWMutex
	groups []models.GroupedPlugin
	stats  models.GroupStatistics
	valid  bool
}

// NewResultCache creates an empty cache
func NewResultCache() *ResultCache {
	return &ResultCache{}
}

// Get returns a deep copy of the cached groups and whether the cache is populated
func (c *ResultCache) Get() ([]models.GroupedPlugin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid {
		return nil, false
	}
	out := make([]models.GroupedPlugin, len(c.groups))
	for i, gp := range c.groups {
		out[i] = cloneGroup(gp)
	}
	return out, true
}

func cloneGroup(gp models.GroupedPlugin) models.GroupedPlugin {
	if gp.Types != nil {
		types := make([]models.PluginType, len(gp.Types))
		copy(types, gp.Types)
		gp.Types = types
	}
	if gp.Formats != nil {
		gp.Formats = cloneStrings(gp.Formats)
	}
	if gp.Paths != nil {
		paths := make(map[models.PluginType]string, len(gp.Paths))
		for t, p := range gp.Paths {
			paths[t] = p
		}
		gp.Paths = paths
	}
	return gp
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Statistics returns the grouping statistics stored with the cached groups
func (c *ResultCache) Statistics() (models.GroupStatistics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	if stats.Manufacturers != nil {
		stats.Manufacturers = cloneStrings(stats.Manufacturers)
	}
	return stats, c.valid
}

// Replace swaps in a new result set
func (c *ResultCache) Replace(groups []models.GroupedPlugin, stats models.GroupStatistics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = groups
	c.stats = stats
	c.valid = true
}

// Invalidate empties the cache so the next read goes to the catalog
func (c *ResultCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = nil
	c.stats = models.GroupStatistics{}
	c.valid = false
}
