package state

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryDoc struct {
	body    []byte
	version uint64
}

// MemoryTransport keeps documents in a map. It backs tests and single
// process runs that need no durability.
type MemoryTransport struct {
	mtx  sync.Mutex
	docs map[string]memoryDoc

	// BeforeUpdate, when set, runs before each conditional write. Tests use
	// it to inject concurrent writers.
	BeforeUpdate func(id string)
}

var _ Transport = (*MemoryTransport)(nil)

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{docs: make(map[string]memoryDoc)}
}

func (m *MemoryTransport) GetDocument(ctx context.Context, id string) ([]byte, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return append([]byte(nil), d.body...), d.version, nil
}

func (m *MemoryTransport) CreateDocument(ctx context.Context, body []byte) (string, error) {
	id := uuid.NewString()
	return id, m.CreateNamedDocument(ctx, id, body)
}

func (m *MemoryTransport) CreateNamedDocument(ctx context.Context, id string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, ok := m.docs[id]; ok {
		return ErrExists
	}
	m.docs[id] = memoryDoc{body: append([]byte(nil), body...), version: 1}
	return nil
}

func (m *MemoryTransport) UpdateDocument(ctx context.Context, id string, body []byte, expectedVersion uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.BeforeUpdate != nil {
		m.BeforeUpdate(id)
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return 0, ErrNotFound
	}
	if d.version != expectedVersion {
		return 0, ErrVersionConflict
	}
	d = memoryDoc{body: append([]byte(nil), body...), version: d.version + 1}
	m.docs[id] = d
	return d.version, nil
}

func (m *MemoryTransport) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryTransport) Len() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return len(m.docs)
}
