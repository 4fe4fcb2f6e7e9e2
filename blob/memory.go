package blob

import (
	"sync"

	"github.com/ipfs/go-cid"
)

// Memory is an in-process blob store. Used by tests and as the staging
// store for content received over the wire before it is verified.
type Memory struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[cid.Cid][]byte)}
}

func (m *Memory) Put(bytes []byte) (cid.Cid, error) {
	id, err := Sum(bytes)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.objects[id]; ok {
		if string(existing) != string(bytes) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.objects[id] = append([]byte(nil), bytes...)
	return id, nil
}

func (m *Memory) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok
}
