package mcp

import (
	"sort"
	"sync"

	"stackline/src/pipeline"
)

// DefinitionCache keeps the pipelines validated during a session so later
// tool calls can refer to them by name.
type DefinitionCache struct {
	mu   sync.RWMutex
	defs map[string]*pipeline.Definition
}

// NewDefinitionCache creates an empty cache.
func NewDefinitionCache() *DefinitionCache {
	return &DefinitionCache{defs: make(map[string]*pipeline.Definition)}
}

// Put stores defs, replacing earlier pipelines with the same name.
func (c *DefinitionCache) Put(defs ...*pipeline.Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range defs {
		c.defs[d.Name()] = d
	}
}

// Get returns the pipeline named name.
func (c *DefinitionCache) Get(name string) (*pipeline.Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defs[name]
	return d, ok
}

// Names returns the cached pipeline names in order.
func (c *DefinitionCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
