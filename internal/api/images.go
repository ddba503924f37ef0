/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Muminur/shopgenfy-sub002/internal/imagegen"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/restapi"
)

// GenerateImageRequest describes a single image generation job.
type GenerateImageRequest struct {
	Prompt       string `json:"prompt"`
	Size         string `json:"size,omitempty"`
	SubmissionID string `json:"submissionId,omitempty"`
}

// GenerateImageBatchRequest describes a batch image generation job.
type GenerateImageBatchRequest struct {
	Prompts      []string `json:"prompts"`
	Size         string   `json:"size,omitempty"`
	SubmissionID string   `json:"submissionId,omitempty"`
}

// ImageJobData is the API representation of an image generation job.
type ImageJobData struct {
	ID         string                    `json:"id"`
	Kind       string                    `json:"kind"`
	Status     string                    `json:"status"`
	Prompts    []string                  `json:"prompts"`
	Images     []imagegen.GeneratedImage `json:"images,omitempty"`
	Error      string                    `json:"error,omitempty"`
	CreatedAt  time.Time                 `json:"createdAt"`
	FinishedAt *time.Time                `json:"finishedAt,omitempty"`
}

func makeImageJobData(job *imagegen.Job) ImageJobData {
	data := ImageJobData{
		ID:        job.ID,
		Kind:      string(job.Kind),
		Status:    string(job.Status),
		Prompts:   job.Prompts,
		Images:    job.Images,
		Error:     job.ErrMessage,
		CreatedAt: job.CreatedAt,
	}
	if !job.FinishedAt.IsZero() {
		finishedAt := job.FinishedAt
		data.FinishedAt = &finishedAt
	}
	return data
}

func (api *API) handleGenerateImage(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	var req GenerateImageRequest
	if err := restapi.DecodeRequestJSON(r, &req); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, ErrDomain, err, logger)
		return
	}
	api.enqueueImageJob(rw, r, imagegen.EnqueueParams{
		UserID:       userID(r),
		SubmissionID: req.SubmissionID,
		Kind:         imagegen.JobKindSingle,
		Prompts:      []string{req.Prompt},
		Size:         req.Size,
	})
}

func (api *API) handleGenerateImageBatch(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	var req GenerateImageBatchRequest
	if err := restapi.DecodeRequestJSON(r, &req); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, ErrDomain, err, logger)
		return
	}
	api.enqueueImageJob(rw, r, imagegen.EnqueueParams{
		UserID:       userID(r),
		SubmissionID: req.SubmissionID,
		Kind:         imagegen.JobKindBatch,
		Prompts:      req.Prompts,
		Size:         req.Size,
	})
}

func (api *API) enqueueImageJob(rw http.ResponseWriter, r *http.Request, params imagegen.EnqueueParams) {
	logger := requestLogger(r)

	job, err := api.Images.Enqueue(params)
	if err != nil {
		if errors.Is(err, imagegen.ErrQueueFull) {
			restapi.RespondError(rw, http.StatusServiceUnavailable,
				restapi.NewError(ErrDomain, ErrCodeQueueFull, "Image generation queue is full, try again later."), logger)
			return
		}
		restapi.RespondError(rw, http.StatusBadRequest,
			restapi.NewError(ErrDomain, restapi.ErrCodeBadRequest, err.Error()), logger)
		return
	}

	logger.Info("image generation job enqueued",
		log.String("job_id", job.ID), log.String("job_kind", string(job.Kind)), log.Int("prompts", len(job.Prompts)))
	restapi.RespondCodeAndJSON(rw, http.StatusAccepted, makeImageJobData(job), logger)
}

func (api *API) handleGetImageJob(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	job, err := api.Images.Job(chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, imagegen.ErrJobNotFound) {
			restapi.RespondError(rw, http.StatusNotFound,
				restapi.NewError(ErrDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound), logger)
			return
		}
		logger.Error("cannot get image job", log.Error(err))
		restapi.RespondInternalError(rw, ErrDomain, logger)
		return
	}
	// Foreign jobs are reported as not found, their existence is not revealed.
	if job.UserID != userID(r) {
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(ErrDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound), logger)
		return
	}
	restapi.RespondJSON(rw, makeImageJobData(job), logger)
}
