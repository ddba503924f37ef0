/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package imagegen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

type fakeImageProvider struct {
	generated atomic.Int32
	err       error
	delay     time.Duration
}

func (p *fakeImageProvider) Generate(ctx context.Context, req GenerateRequest) (*GeneratedImage, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	p.generated.Inc()
	return &GeneratedImage{
		Prompt:      req.Prompt,
		URL:         "https://images.example.com/" + req.Prompt,
		ContentType: "image/png",
	}, nil
}

func startManager(t *testing.T, provider ImageProvider, opts ManagerOpts) (*Manager, *MemoryJobStore) {
	t.Helper()
	store := NewMemoryJobStore()
	mgr := NewManager(store, provider, log.NewDisabledLogger(), opts)
	fatalErr := make(chan error, 1)
	go mgr.Start(fatalErr)
	t.Cleanup(func() { require.NoError(t, mgr.Stop(true)) })
	return mgr, store
}

func waitForFinishedJob(t *testing.T, mgr *Manager, jobID string) *Job {
	t.Helper()
	deadline := time.Now().Add(time.Second * 5)
	for time.Now().Before(deadline) {
		job, err := mgr.Job(jobID)
		require.NoError(t, err)
		if job.Finished() {
			return job
		}
		time.Sleep(time.Millisecond * 10)
	}
	t.Fatalf("job %s didn't finish in time", jobID)
	return nil
}

func TestManagerEnqueueValidation(t *testing.T) {
	mgr, _ := startManager(t, &fakeImageProvider{}, ManagerOpts{})

	tests := []struct {
		name   string
		params EnqueueParams
	}{
		{"no prompts", EnqueueParams{Kind: JobKindSingle}},
		{"single job with two prompts", EnqueueParams{Kind: JobKindSingle, Prompts: []string{"a", "b"}}},
		{"batch job with too many prompts", EnqueueParams{Kind: JobKindBatch, Prompts: make([]string, MaxBatchPrompts+1)}},
		{"unknown kind", EnqueueParams{Kind: "bulk", Prompts: []string{"a"}}},
		{"empty prompt", EnqueueParams{Kind: JobKindBatch, Prompts: []string{"a", ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.Enqueue(tt.params)
			require.Error(t, err)
		})
	}
}

func TestManagerProcessesSingleJob(t *testing.T) {
	provider := &fakeImageProvider{}
	mgr, _ := startManager(t, provider, ManagerOpts{})

	job, err := mgr.Enqueue(EnqueueParams{
		UserID:  "user-1",
		Kind:    JobKindSingle,
		Prompts: []string{"app icon with a rocket"},
		Size:    "1024x1024",
	})
	require.NoError(t, err)
	require.Equal(t, JobStatusQueued, job.Status)
	require.NotEmpty(t, job.ID)

	finished := waitForFinishedJob(t, mgr, job.ID)
	require.Equal(t, JobStatusSucceeded, finished.Status)
	require.Len(t, finished.Images, 1)
	require.Equal(t, "app icon with a rocket", finished.Images[0].Prompt)
	require.False(t, finished.StartedAt.IsZero())
	require.False(t, finished.FinishedAt.IsZero())
	require.True(t, finished.ExpiresAt.After(finished.FinishedAt))
}

func TestManagerProcessesBatchJob(t *testing.T) {
	provider := &fakeImageProvider{}
	mgr, _ := startManager(t, provider, ManagerOpts{Workers: 3})

	prompts := []string{"screenshot one", "screenshot two", "screenshot three"}
	job, err := mgr.Enqueue(EnqueueParams{UserID: "user-1", Kind: JobKindBatch, Prompts: prompts})
	require.NoError(t, err)

	finished := waitForFinishedJob(t, mgr, job.ID)
	require.Equal(t, JobStatusSucceeded, finished.Status)
	require.Len(t, finished.Images, len(prompts))
	require.EqualValues(t, len(prompts), provider.generated.Load())
}

func TestManagerProviderFailureFailsJob(t *testing.T) {
	provider := &fakeImageProvider{err: &ProviderError{StatusCode: 429, Message: "image quota exceeded"}}
	mgr, _ := startManager(t, provider, ManagerOpts{})

	job, err := mgr.Enqueue(EnqueueParams{Kind: JobKindSingle, Prompts: []string{"logo"}})
	require.NoError(t, err)

	finished := waitForFinishedJob(t, mgr, job.ID)
	require.Equal(t, JobStatusFailed, finished.Status)
	require.Equal(t, "image quota exceeded", finished.ErrMessage, "provider message should surface on the job")
	require.Empty(t, finished.Images)
}

func TestManagerQueueFull(t *testing.T) {
	// A slow provider and a single worker keep the tiny queue occupied.
	provider := &fakeImageProvider{delay: time.Second * 10}
	mgr, _ := startManager(t, provider, ManagerOpts{Workers: 1, QueueSize: 1})

	// First job is picked up by the worker, second fills the only queue slot.
	_, err := mgr.Enqueue(EnqueueParams{Kind: JobKindSingle, Prompts: []string{"one"}})
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 50)
	_, err = mgr.Enqueue(EnqueueParams{Kind: JobKindSingle, Prompts: []string{"two"}})
	require.NoError(t, err)

	overflow, err := mgr.Enqueue(EnqueueParams{Kind: JobKindSingle, Prompts: []string{"three"}})
	require.ErrorIs(t, err, ErrQueueFull)
	require.Nil(t, overflow)

	require.NoError(t, mgr.Stop(false)) // Cancel the in-flight provider call, don't wait 10s.
}

func TestMemoryJobStore(t *testing.T) {
	t.Run("get and update of unknown job", func(t *testing.T) {
		store := NewMemoryJobStore()
		_, err := store.Get("missing")
		require.ErrorIs(t, err, ErrJobNotFound)
		require.ErrorIs(t, store.Update("missing", func(j *Job) {}), ErrJobNotFound)
	})

	t.Run("returned job is a copy", func(t *testing.T) {
		store := NewMemoryJobStore()
		job := NewJob("user-1", "", JobKindSingle, []string{"prompt"}, "", time.Minute)
		require.NoError(t, store.Create(job))

		got, err := store.Get(job.ID)
		require.NoError(t, err)
		got.Status = JobStatusFailed
		got.Prompts[0] = "mutated"

		reread, err := store.Get(job.ID)
		require.NoError(t, err)
		require.Equal(t, JobStatusQueued, reread.Status)
		require.Equal(t, "prompt", reread.Prompts[0])
	})

	t.Run("delete expired", func(t *testing.T) {
		store := NewMemoryJobStore()
		expired := NewJob("user-1", "", JobKindSingle, []string{"old"}, "", -time.Minute)
		fresh := NewJob("user-1", "", JobKindSingle, []string{"new"}, "", time.Minute)
		require.NoError(t, store.Create(expired))
		require.NoError(t, store.Create(fresh))

		require.Equal(t, 1, store.DeleteExpired(time.Now().UTC()))
		require.Equal(t, 1, store.Len())
		_, err := store.Get(expired.ID)
		require.ErrorIs(t, err, ErrJobNotFound)
		_, err = store.Get(fresh.ID)
		require.NoError(t, err)
	})
}

func TestReaper(t *testing.T) {
	store := NewMemoryJobStore()
	expired := NewJob("user-1", "", JobKindSingle, []string{"old"}, "", -time.Second)
	require.NoError(t, store.Create(expired))

	reaper := NewReaper(store, log.NewDisabledLogger())
	require.NoError(t, reaper.Run(context.Background()))
	require.Equal(t, 0, store.Len())
}
