/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package imagegen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/service"
)

// MaxBatchPrompts limits the number of prompts in one batch job.
const MaxBatchPrompts = 8

// ErrQueueFull is returned by Enqueue when the job queue has no free slots.
// Clients should retry later, the advisory 503 mapping is done by the API layer.
var ErrQueueFull = errors.New("image generation queue is full")

// EnqueueParams describes a job to be enqueued.
type EnqueueParams struct {
	UserID       string
	SubmissionID string
	Kind         JobKind
	Prompts      []string
	Size         string
}

// Manager owns the image generation job queue and its worker pool.
// It implements service.Unit: workers start with the service and drain
// their current jobs on graceful shutdown. Queued jobs that no worker
// picked up before shutdown stay in the store as queued and are purged by the reaper.
type Manager struct {
	store    JobStore
	provider ImageProvider
	logger   log.FieldLogger
	metrics  *PrometheusMetrics

	queue   chan string
	workers int
	jobTTL  time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ service.Unit = (*Manager)(nil)
var _ service.MetricsRegisterer = (*Manager)(nil)

// ManagerOpts represents an options for Manager.
type ManagerOpts struct {
	// Workers is the number of goroutines processing queued jobs. 0 means defaultWorkers.
	Workers int

	// QueueSize is the capacity of the job queue. 0 means defaultQueueSize.
	QueueSize int

	// JobTTL is how long finished and abandoned jobs are kept. 0 means defaultJobTTL.
	JobTTL time.Duration
}

// NewManager creates a new Manager.
func NewManager(store JobStore, provider ImageProvider, logger log.FieldLogger, opts ManagerOpts) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = defaultJobTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		provider: provider,
		logger:   log.NewPrefixedLogger(logger, "image jobs: "),
		metrics:  NewPrometheusMetrics(),
		queue:    make(chan string, opts.QueueSize),
		workers:  opts.Workers,
		jobTTL:   opts.JobTTL,
		ctx:      ctx,
		cancel:   cancel,
		stop:     make(chan struct{}),
	}
}

// Enqueue validates params, stores a queued job and hands it to the worker pool.
func (m *Manager) Enqueue(params EnqueueParams) (*Job, error) {
	if len(params.Prompts) == 0 {
		return nil, fmt.Errorf("at least one prompt is required")
	}
	switch params.Kind {
	case JobKindSingle:
		if len(params.Prompts) != 1 {
			return nil, fmt.Errorf("single job must have exactly one prompt, got %d", len(params.Prompts))
		}
	case JobKindBatch:
		if len(params.Prompts) > MaxBatchPrompts {
			return nil, fmt.Errorf("batch job must have at most %d prompts, got %d", MaxBatchPrompts, len(params.Prompts))
		}
	default:
		return nil, fmt.Errorf("unknown job kind %q", params.Kind)
	}
	for i, prompt := range params.Prompts {
		if prompt == "" {
			return nil, fmt.Errorf("prompt #%d is empty", i+1)
		}
	}

	job := NewJob(params.UserID, params.SubmissionID, params.Kind, params.Prompts, params.Size, m.jobTTL)
	if err := m.store.Create(job); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}

	select {
	case m.queue <- job.ID:
	default:
		_ = m.store.Update(job.ID, func(j *Job) {
			j.Status = JobStatusFailed
			j.ErrMessage = ErrQueueFull.Error()
			j.FinishedAt = time.Now().UTC()
		})
		return nil, ErrQueueFull
	}
	m.metrics.JobsQueued.Inc()

	return job, nil
}

// Job returns a copy of the job with the given ID or ErrJobNotFound.
func (m *Manager) Job(id string) (*Job, error) {
	return m.store.Get(id)
}

// Start launches the worker pool and blocks until Stop is called.
// It's supposed that this method will be called in a separate goroutine.
func (m *Manager) Start(_ chan<- error) {
	m.logger.Info("image generation manager is starting",
		log.Int("workers", m.workers), log.Int("queue_size", cap(m.queue)))
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.workerLoop(i)
	}
	<-m.stop
}

// Stop halts the worker pool. With gracefully=true it waits for workers to finish their current jobs,
// otherwise in-flight provider calls are cancelled.
func (m *Manager) Stop(gracefully bool) error {
	m.stopOnce.Do(func() { close(m.stop) })
	if !gracefully {
		m.cancel()
	}
	m.wg.Wait()
	m.cancel()
	m.logger.Info("image generation manager stopped", log.Bool("graceful", gracefully))
	return nil
}

// MustRegisterMetrics registers the collectors with Prometheus, panicking on a registration error.
func (m *Manager) MustRegisterMetrics() {
	m.metrics.MustRegister()
}

// UnregisterMetrics removes the collectors from the Prometheus registry.
func (m *Manager) UnregisterMetrics() {
	m.metrics.Unregister()
}

func (m *Manager) workerLoop(workerNum int) {
	defer m.wg.Done()
	logger := m.logger.With(log.Int("worker_num", workerNum))
	for {
		select {
		case <-m.stop:
			return
		case jobID := <-m.queue:
			m.metrics.JobsQueued.Dec()
			m.processJob(jobID, logger)
		}
	}
}

func (m *Manager) processJob(jobID string, logger log.FieldLogger) {
	job, err := m.store.Get(jobID)
	if err != nil {
		logger.Warn("queued job is gone from the store", log.String("job_id", jobID), log.Error(err))
		return
	}
	logger = logger.With(log.String("job_id", job.ID), log.String("job_kind", string(job.Kind)))

	if err = m.store.Update(jobID, func(j *Job) {
		j.Status = JobStatusRunning
		j.StartedAt = time.Now().UTC()
	}); err != nil {
		logger.Warn("cannot mark job as running", log.Error(err))
		return
	}

	images := make([]GeneratedImage, 0, len(job.Prompts))
	var genErr error
	for _, prompt := range job.Prompts {
		var image *GeneratedImage
		if image, genErr = m.provider.Generate(m.ctx, GenerateRequest{Prompt: prompt, Size: job.Size}); genErr != nil {
			break
		}
		images = append(images, *image)
	}

	status := JobStatusSucceeded
	errMessage := ""
	if genErr != nil {
		status = JobStatusFailed
		errMessage = genErr.Error()
		var provErr *ProviderError
		if errors.As(genErr, &provErr) {
			errMessage = provErr.Message
		}
		logger.Error("image generation job failed", log.Error(genErr))
	} else {
		logger.Info("image generation job succeeded", log.Int("images", len(images)))
	}

	finishedAt := time.Now().UTC()
	if err = m.store.Update(jobID, func(j *Job) {
		j.Status = status
		j.Images = images
		j.ErrMessage = errMessage
		j.FinishedAt = finishedAt
		j.ExpiresAt = finishedAt.Add(m.jobTTL)
	}); err != nil {
		logger.Warn("cannot store job result", log.Error(err))
	}
	m.metrics.JobsProcessed.WithLabelValues(string(status)).Inc()
}
