package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateSchema = errors.New("schema: duplicate schema")
	ErrUnknownSchema   = errors.New("schema: unknown schema")
)

// Catalog indexes built schemas by name and by bus identifier. It is safe for
// concurrent use; the schemas themselves are immutable.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]*Schema
	byID   map[uint32]*Schema
}

func NewCatalog() *Catalog {
	return &Catalog{
		byName: map[string]*Schema{},
		byID:   map[uint32]*Schema{},
	}
}

// Add registers s. Names and identifiers must be unique.
func (c *Catalog) Add(s *Schema) error {
	if s == nil {
		return fmt.Errorf("%w: nil schema", ErrUnknownSchema)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byName[s.name]; ok {
		return fmt.Errorf("%w: name %s", ErrDuplicateSchema, s.name)
	}
	if id, ok := s.ID(); ok {
		if prev, taken := c.byID[id]; taken {
			return fmt.Errorf("%w: id 0x%X used by %s and %s", ErrDuplicateSchema, id, prev.name, s.name)
		}
		c.byID[id] = s
	}
	c.byName[s.name] = s
	return nil
}

func (c *Catalog) Get(name string) (*Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return s, nil
}

func (c *Catalog) ByID(id uint32) (*Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id 0x%X", ErrUnknownSchema, id)
	}
	return s, nil
}

// Names returns the schema names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}
