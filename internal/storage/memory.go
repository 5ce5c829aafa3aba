package storage

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryGateway is an in-memory gateway for tests. FailWrites and FailReads
// force persistence errors so failure paths can be exercised.
type MemoryGateway struct {
	mu   sync.RWMutex
	docs map[string][]byte

	FailWrites bool
	FailReads  bool

	// WriteCount counts Set calls, used to assert write-idempotence.
	WriteCount int
}

func NewMemory() *MemoryGateway {
	return &MemoryGateway{docs: make(map[string][]byte)}
}

func (g *MemoryGateway) Get(key string) ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.FailReads {
		return nil, fmt.Errorf("simulated read failure for %s", key)
	}
	raw, ok := g.docs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte{}, raw...), nil
}

func (g *MemoryGateway) Set(key string, value []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailWrites {
		return fmt.Errorf("simulated write failure for %s", key)
	}
	g.docs[key] = append([]byte{}, value...)
	g.WriteCount++
	return nil
}

func (g *MemoryGateway) Delete(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.docs, key)
	return nil
}

func (g *MemoryGateway) Keys() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.docs))
	for k := range g.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (g *MemoryGateway) Close() error {
	return nil
}
