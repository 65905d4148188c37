package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStore is an in-process ObjectStore. The Fail* hooks, when set, run
// before the operation and can inject errors.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	putLog  []string
	gets    int
	puts    int

	FailGet  func(key string) error
	FailPut  func(key string) error
	FailList func(prefix string) error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	m.gets++
	hook := m.FailGet
	m.mu.Unlock()
	if hook != nil {
		if err := hook(key); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	m.puts++
	hook := m.FailPut
	m.mu.Unlock()
	if hook != nil {
		if err := hook(key); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modified:    time.Now(),
	}
	m.putLog = append(m.putLog, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	hook := m.FailList
	m.mu.Unlock()
	if hook != nil {
		if err := hook(prefix); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.data)),
				LastModified: obj.modified,
				ContentType:  obj.contentType,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Seed stores an object without counting it as an upload.
func (m *MemoryStore) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: ContentTypeFor(key), modified: time.Now()}
}

// Object returns a stored object and its content type.
func (m *MemoryStore) Object(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj.data, obj.contentType, ok
}

// Keys lists every stored key in order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PutLog returns the keys successfully uploaded, in upload order.
func (m *MemoryStore) PutLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.putLog...)
}

// Calls reports how many Get and Put calls were made, including failed ones.
func (m *MemoryStore) Calls() (gets, puts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets, m.puts
}
