// Package store keeps uploaded volumes in process memory, keyed by an
// opaque identifier handed back to the client.
package store

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"augplayground/internal/apperror"
	"augplayground/internal/models"
)

// Entry is a stored volume plus the metadata reported back on load
type Entry struct {
	Volume   *models.Volume
	Filename string
	Source   string
	LoadedAt time.Time
}

// Policy bounds the store. A zero Capacity or TTL disables that bound.
type Policy struct {
	Capacity int
	TTL      time.Duration
}

// EvictFunc is called when an entry leaves the store through capacity or
// TTL eviction
type EvictFunc func(id string, entry *Entry)

// Store maps volume ids to volumes with least-recently-used eviction.
// Put and Get are individually atomic; there is no multi-operation
// transaction.
type Store struct {
	cache *expirable.LRU[string, *Entry]
}

// New creates a store with the given policy
func New(policy Policy, onEvict EvictFunc) *Store {
	var cb expirable.EvictCallback[string, *Entry]
	if onEvict != nil {
		cb = func(key string, value *Entry) { onEvict(key, value) }
	}
	return &Store{
		cache: expirable.NewLRU[string, *Entry](policy.Capacity, cb, policy.TTL),
	}
}

// NewID returns a random 128-bit identifier, hex encoded
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Put stores a volume under a freshly generated id and returns the id
func (s *Store) Put(entry *Entry) string {
	if entry.LoadedAt.IsZero() {
		entry.LoadedAt = time.Now()
	}
	id := NewID()
	s.cache.Add(id, entry)
	return id
}

// Get returns the entry stored under id
func (s *Store) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, apperror.NotFound("Volume not found.")
	}
	entry, ok := s.cache.Get(id)
	if !ok {
		return nil, apperror.NotFound("Volume not found.")
	}
	return entry, nil
}

// Len returns the number of live entries
func (s *Store) Len() int {
	return s.cache.Len()
}
