/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package imagegen

import (
	"errors"
	"sync"
	"time"
)

// ErrJobNotFound is returned when the requested job doesn't exist or has been purged.
var ErrJobNotFound = errors.New("image generation job not found")

// JobStore keeps generation jobs. Implementations must be safe for concurrent use.
type JobStore interface {
	// Create stores a new job.
	Create(job *Job) error

	// Get returns a copy of the job with the given ID or ErrJobNotFound.
	Get(id string) (*Job, error)

	// Update applies fn to the stored job under the store's lock.
	// ErrJobNotFound is returned when the job doesn't exist.
	Update(id string, fn func(job *Job)) error

	// DeleteExpired removes jobs whose ExpiresAt is before now and returns how many were removed.
	DeleteExpired(now time.Time) int

	// Len returns the number of stored jobs.
	Len() int
}

// MemoryJobStore is an in-memory JobStore. State is volatile, clients are expected
// to re-submit jobs that disappear after a process restart.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

var _ JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore creates a new MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

// Create stores a new job.
func (s *MemoryJobStore) Create(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// Get returns a copy of the job with the given ID or ErrJobNotFound.
func (s *MemoryJobStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	jobCopy := *job
	jobCopy.Prompts = append([]string(nil), job.Prompts...)
	jobCopy.Images = append([]GeneratedImage(nil), job.Images...)
	return &jobCopy, nil
}

// Update applies fn to the stored job under the store's lock.
func (s *MemoryJobStore) Update(id string, fn func(job *Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	return nil
}

// DeleteExpired removes jobs whose ExpiresAt is before now and returns how many were removed.
func (s *MemoryJobStore) DeleteExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.ExpiresAt.Before(now) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored jobs.
func (s *MemoryJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
