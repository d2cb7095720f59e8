package storage

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
	createdAt   time.Time
}

// MemoryStorage is an in-process ObjectStore for local development and tests.
type MemoryStorage struct {
	mu           sync.RWMutex
	objects      map[string]memoryObject
	containerURL string
	now          func() time.Time
}

// NewMemoryStorage returns an empty store addressed under containerURL.
func NewMemoryStorage(containerURL string) *MemoryStorage {
	return &MemoryStorage{
		objects:      make(map[string]memoryObject),
		containerURL: strings.TrimRight(containerURL, "/"),
		now:          time.Now,
	}
}

// SetClock overrides the creation timestamp source.
func (m *MemoryStorage) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		createdAt:   m.now(),
	}
	return nil
}

// List yields a snapshot taken when iteration starts, in key order.
func (m *MemoryStorage) List(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		m.mu.RLock()
		infos := make([]ObjectInfo, 0, len(m.objects))
		for key, obj := range m.objects {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			infos = append(infos, ObjectInfo{
				Key:         key,
				ContentType: obj.contentType,
				Size:        int64(len(obj.data)),
				CreatedAt:   obj.createdAt,
			})
		}
		m.mu.RUnlock()

		sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
		for _, info := range infos {
			if err := ctx.Err(); err != nil {
				yield(ObjectInfo{}, err)
				return
			}
			if !yield(info, nil) {
				return
			}
		}
	}
}

func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

// Get returns a copy of the stored bytes and content type.
func (m *MemoryStorage) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}

// Len is the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryStorage) ContainerURL() string {
	return m.containerURL
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}
