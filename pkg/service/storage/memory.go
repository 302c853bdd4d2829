package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
)

type memoryObject struct {
	data      []byte
	updatedAt time.Time
}

// Memory keeps objects in process
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

var _ interfaces.FileStore = &Memory{}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return goerr.Wrap(err, "failed to read object body", goerr.V("key", key))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, updatedAt: m.now()}
	return nil
}

func (m *Memory) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "object not found", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) Walk(ctx context.Context, prefix string, fn func(obj interfaces.ObjectInfo) error) error {
	m.mu.RLock()
	var objs []interfaces.ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objs = append(objs, interfaces.ObjectInfo{Key: key, Size: int64(len(obj.data)), UpdatedAt: obj.updatedAt})
		}
	}
	m.mu.RUnlock()

	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
	for _, obj := range objs {
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored objects
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// SetUpdatedAt overrides an object's modification time
func (m *Memory) SetUpdatedAt(key string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[key]; ok {
		obj.updatedAt = t
		m.objects[key] = obj
	}
}
