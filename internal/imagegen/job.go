/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package imagegen

import (
	"time"

	"github.com/rs/xid"
)

// JobKind distinguishes single-image jobs from batch jobs.
type JobKind string

// Supported job kinds.
const (
	JobKindSingle JobKind = "single"
	JobKindBatch  JobKind = "batch"
)

// JobStatus is a lifecycle state of a generation job.
type JobStatus string

// Job lifecycle states.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a unit of asynchronous image generation work.
// A job either succeeds with one image per prompt or fails as a whole,
// partial results are not reported.
type Job struct {
	ID           string
	UserID       string
	SubmissionID string
	Kind         JobKind
	Status       JobStatus
	Prompts      []string
	Size         string
	Images       []GeneratedImage
	ErrMessage   string
	CreatedAt    time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
	ExpiresAt    time.Time
}

// NewJob creates a queued job for the given prompts.
func NewJob(userID, submissionID string, kind JobKind, prompts []string, size string, ttl time.Duration) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:           xid.New().String(),
		UserID:       userID,
		SubmissionID: submissionID,
		Kind:         kind,
		Status:       JobStatusQueued,
		Prompts:      append([]string(nil), prompts...),
		Size:         size,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Finished reports whether the job reached a terminal state.
func (j *Job) Finished() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
