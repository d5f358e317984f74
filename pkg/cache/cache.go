package cache

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Cache is a weighted LRU cache. Items are evicted least recently used first
// once the total weight exceeds the budget.
type Cache interface {
	// Insert adds or replaces the item at key.
	Insert(key string, value interface{}, weight int)

	// Retrieve returns the item at key and marks it recently used.
	Retrieve(key string) (interface{}, bool)

	Remove(key string)

	// Weight is the current total weight of the cached items.
	Weight() int

	Budget() int

	Clear()
}

type node struct {
	next   *node
	prev   *node
	key    string
	value  interface{}
	weight int
}

type cache struct {
	log *logrus.Entry

	mu     sync.Mutex
	head   *node
	tail   *node
	lookup map[string]*node
	weight int
	budget int
}

// New returns a cache that holds up to budget total weight.
func New(budget int) Cache {
	return &cache{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		lookup: make(map[string]*node),
		budget: budget,
	}
}

func (c *cache) Insert(key string, value interface{}, weight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.lookup[key]; ok {
		c.unlink(existing)
	}

	n := &node{
		key:    key,
		value:  value,
		weight: weight,
	}
	c.pushFront(n)
	c.lookup[key] = n
	c.weight += weight

	for c.weight > c.budget && c.tail != nil {
		evicted := c.tail
		c.unlink(evicted)

		c.log.WithFields(logrus.Fields{
			"key":    evicted.key,
			"weight": evicted.weight,
			"spare":  c.budget - c.weight,
		}).Trace("evicted")
	}
}

func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.lookup[key]
	if !ok {
		return nil, false
	}

	if n != c.head {
		c.detach(n)
		c.pushFront(n)
	}

	return n.value, true
}

func (c *cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.lookup[key]; ok {
		c.unlink(n)
	}
}

func (c *cache) Weight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

func (c *cache) Budget() int {
	return c.budget
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.head = nil
	c.tail = nil
	c.lookup = make(map[string]*node)
	c.weight = 0
}

// unlink removes n from the list, the lookup map and the total weight.
func (c *cache) unlink(n *node) {
	c.detach(n)
	delete(c.lookup, n.key)
	c.weight -= n.weight
}

func (c *cache) detach(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.next = nil
	n.prev = nil
}

func (c *cache) pushFront(n *node) {
	n.next = c.head
	n.prev = nil
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}
