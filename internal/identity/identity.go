// Package identity hands out the stable per-client player id.
package identity

import (
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StorageKey is the key the player id is stored under.
const StorageKey = "family-quiz-player-id"

// ErrNotStored is returned by Storage.Get when the key has no value.
var ErrNotStored = errors.New("identity not stored")

// Storage is per-client key/value storage, such as a browser cookie jar.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Provider implements app.IdentityProvider.
type Provider struct {
	storage Storage
	now     func() time.Time

	mu sync.Mutex
	id string
}

func NewProvider(storage Storage) *Provider {
	return &Provider{storage: storage, now: time.Now}
}

// GetOrCreateSessionID returns the stored id, generating and storing one on
// first use. Storage failures never fail the call; the id is then only stable
// for this provider's lifetime.
func (p *Provider) GetOrCreateSessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.id != "" {
		return p.id
	}

	if p.storage != nil {
		id, err := p.storage.Get(StorageKey)
		if err == nil && id != "" {
			p.id = id
			return id
		}
		if err != nil && !errors.Is(err, ErrNotStored) {
			log.Printf("identity: read failed: %v", err)
		}
	}

	p.id = p.generate()
	if p.storage != nil {
		if err := p.storage.Set(StorageKey, p.id); err != nil {
			log.Printf("identity: write failed: %v", err)
		}
	}
	return p.id
}

func (p *Provider) generate() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return "guest_" + strconv.FormatInt(p.now().UnixNano(), 36)
	}
	return id.String()
}

// MemoryStorage is Storage backed by a map.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotStored
	}
	return v, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Static is an IdentityProvider with a fixed id.
type Static string

func (s Static) GetOrCreateSessionID() string {
	return string(s)
}
