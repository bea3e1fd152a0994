package visualization

import "slices"

// clusterCache holds synthesized cluster nodes by id. Entries are only added
// during normal operation; reset drops everything.
type clusterCache struct {
	entries map[string]Node

	// Statistics
	hits   uint64
	misses uint64
}

func newClusterCache() *clusterCache {
	return &clusterCache{entries: make(map[string]Node)}
}

// get returns a copy of the cached node so callers cannot alias its member list
func (c *clusterCache) get(id string) (Node, bool) {
	n, ok := c.entries[id]
	if !ok {
		c.misses++
		return Node{}, false
	}
	c.hits++
	n.NodeIDs = slices.Clone(n.NodeIDs)
	return n, true
}

// peek reads an entry without touching the statistics
func (c *clusterCache) peek(id string) (Node, bool) {
	n, ok := c.entries[id]
	if ok {
		n.NodeIDs = slices.Clone(n.NodeIDs)
	}
	return n, ok
}

func (c *clusterCache) put(n Node) {
	n.NodeIDs = slices.Clone(n.NodeIDs)
	c.entries[n.ID] = n
}

func (c *clusterCache) len() int {
	return len(c.entries)
}

func (c *clusterCache) reset() {
	c.entries = make(map[string]Node)
	c.hits = 0
	c.misses = 0
}
