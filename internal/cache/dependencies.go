package cache

import (
	"slices"
	"sync"
)

// dependencyIndex maps source files to the cache keys built from them.
type dependencyIndex struct {
	mutex      sync.RWMutex
	byParent   map[string][]string
	dependents map[string]map[string]struct{}
}

func newDependencyIndex() *dependencyIndex {
	return &dependencyIndex{
		byParent:   make(map[string][]string),
		dependents: make(map[string]map[string]struct{}),
	}
}

// Link records that the content cached under parent was built from deps,
// replacing any earlier record for parent.
func (c *ContentCache) Link(parent string, deps []string) {
	c.deps.mutex.Lock()
	defer c.deps.mutex.Unlock()

	for _, dep := range c.deps.byParent[parent] {
		if parents := c.deps.dependents[dep]; parents != nil {
			delete(parents, parent)
			if len(parents) == 0 {
				delete(c.deps.dependents, dep)
			}
		}
	}
	if len(deps) == 0 {
		delete(c.deps.byParent, parent)
		return
	}

	c.deps.byParent[parent] = slices.Clone(deps)
	for _, dep := range deps {
		if dep == parent {
			continue
		}
		parents := c.deps.dependents[dep]
		if parents == nil {
			parents = make(map[string]struct{})
			c.deps.dependents[dep] = parents
		}
		parents[parent] = struct{}{}
	}
}

// Dependents returns the cache keys whose content was built from path,
// sorted.
func (c *ContentCache) Dependents(path string) []string {
	c.deps.mutex.RLock()
	defer c.deps.mutex.RUnlock()

	parents := c.deps.dependents[path]
	if len(parents) == 0 {
		return nil
	}
	out := make([]string, 0, len(parents))
	for parent := range parents {
		out = append(out, parent)
	}
	slices.Sort(out)
	return out
}

func (d *dependencyIndex) clear() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.byParent = make(map[string][]string)
	d.dependents = make(map[string]map[string]struct{})
}
