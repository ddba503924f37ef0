/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package submission

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when the requested submission doesn't exist.
var ErrNotFound = errors.New("submission not found")

// Store keeps submissions. Implementations must be safe for concurrent use.
type Store interface {
	// Create stores a new submission.
	Create(sub *Submission) error

	// Get returns a copy of the submission with the given ID or ErrNotFound.
	Get(id string) (*Submission, error)

	// Update applies fn to the stored submission under the store's lock.
	// ErrNotFound is returned when the submission doesn't exist.
	Update(id string, fn func(sub *Submission)) error

	// Delete removes the submission with the given ID or returns ErrNotFound.
	Delete(id string) error

	// ListByUser returns copies of the user's submissions ordered by creation time.
	ListByUser(userID string) ([]*Submission, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*Submission
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*Submission)}
}

// Create stores a new submission.
func (s *MemoryStore) Create(sub *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = copySubmission(sub)
	return nil
}

// Get returns a copy of the submission with the given ID or ErrNotFound.
func (s *MemoryStore) Get(id string) (*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySubmission(sub), nil
}

// Update applies fn to the stored submission under the store's lock.
func (s *MemoryStore) Update(id string, fn func(sub *Submission)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return ErrNotFound
	}
	fn(sub)
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the submission with the given ID or returns ErrNotFound.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return ErrNotFound
	}
	delete(s.subs, id)
	return nil
}

// ListByUser returns copies of the user's submissions ordered by creation time.
func (s *MemoryStore) ListByUser(userID string) ([]*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*Submission
	for _, sub := range s.subs {
		if sub.UserID == userID {
			result = append(result, copySubmission(sub))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func copySubmission(sub *Submission) *Submission {
	subCopy := *sub
	subCopy.Listing.Features = append([]string(nil), sub.Listing.Features...)
	subCopy.Listing.Keywords = append([]string(nil), sub.Listing.Keywords...)
	subCopy.Images = append([]ImageAsset(nil), sub.Images...)
	if sub.Analysis != nil {
		analysisCopy := *sub.Analysis
		subCopy.Analysis = &analysisCopy
	}
	return &subCopy
}
