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

	"github.com/Muminur/shopgenfy-sub002/internal/genai"
	"github.com/Muminur/shopgenfy-sub002/internal/imagegen"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/restapi"
	"github.com/Muminur/shopgenfy-sub002/internal/submission"
)

// SubmissionData is the API representation of a submission.
type SubmissionData struct {
	ID        string                     `json:"id"`
	Status    string                     `json:"status"`
	Listing   submission.Listing         `json:"listing"`
	Analysis  *genai.LandingPageAnalysis `json:"analysis,omitempty"`
	Images    []submission.ImageAsset    `json:"images,omitempty"`
	CreatedAt time.Time                  `json:"createdAt"`
	UpdatedAt time.Time                  `json:"updatedAt"`
}

func makeSubmissionData(sub *submission.Submission) SubmissionData {
	return SubmissionData{
		ID:        sub.ID,
		Status:    string(sub.Status),
		Listing:   sub.Listing,
		Analysis:  sub.Analysis,
		Images:    sub.Images,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

func (api *API) handleCreateSubmission(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	var listing submission.Listing
	if err := restapi.DecodeRequestJSON(r, &listing); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, ErrDomain, err, logger)
		return
	}
	if listing.AppName == "" {
		restapi.RespondError(rw, http.StatusBadRequest,
			restapi.NewError(ErrDomain, restapi.ErrCodeBadRequest, "App name is required."), logger)
		return
	}

	sub := submission.New(userID(r), listing)
	if err := api.Submissions.Create(sub); err != nil {
		logger.Error("cannot create submission", log.Error(err))
		restapi.RespondInternalError(rw, ErrDomain, logger)
		return
	}

	restapi.RespondCodeAndJSON(rw, http.StatusCreated, makeSubmissionData(sub), logger)
}

func (api *API) handleListSubmissions(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	subs, err := api.Submissions.ListByUser(userID(r))
	if err != nil {
		logger.Error("cannot list submissions", log.Error(err))
		restapi.RespondInternalError(rw, ErrDomain, logger)
		return
	}

	items := make([]SubmissionData, 0, len(subs))
	for _, sub := range subs {
		items = append(items, makeSubmissionData(sub))
	}
	restapi.RespondJSON(rw, struct {
		Items []SubmissionData `json:"items"`
	}{Items: items}, logger)
}

// getOwnSubmission fetches the submission addressed by the route and checks its ownership.
// Foreign submissions are reported as not found, their existence is not revealed.
func (api *API) getOwnSubmission(rw http.ResponseWriter, r *http.Request) (*submission.Submission, bool) {
	logger := requestLogger(r)

	sub, err := api.Submissions.Get(chi.URLParam(r, "submissionID"))
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			restapi.RespondError(rw, http.StatusNotFound,
				restapi.NewError(ErrDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound), logger)
			return nil, false
		}
		logger.Error("cannot get submission", log.Error(err))
		restapi.RespondInternalError(rw, ErrDomain, logger)
		return nil, false
	}
	if sub.UserID != userID(r) {
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(ErrDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound), logger)
		return nil, false
	}
	return sub, true
}

func (api *API) handleGetSubmission(rw http.ResponseWriter, r *http.Request) {
	sub, ok := api.getOwnSubmission(rw, r)
	if !ok {
		return
	}
	restapi.RespondJSON(rw, makeSubmissionData(sub), requestLogger(r))
}

func (api *API) handleUpdateSubmission(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	sub, ok := api.getOwnSubmission(rw, r)
	if !ok {
		return
	}

	var listing submission.Listing
	if err := restapi.DecodeRequestJSON(r, &listing); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, ErrDomain, err, logger)
		return
	}
	if listing.AppName == "" {
		restapi.RespondError(rw, http.StatusBadRequest,
			restapi.NewError(ErrDomain, restapi.ErrCodeBadRequest, "App name is required."), logger)
		return
	}

	if err := api.Submissions.Update(sub.ID, func(s *submission.Submission) {
		s.Listing = listing
	}); err != nil {
		logger.Error("cannot update submission", log.Error(err))
		restapi.RespondInternalError(rw, ErrDomain, logger)
		return
	}

	updated, err := api.Submissions.Get(sub.ID)
	if err != nil {
		logger.Error("cannot reread submission", log.Error(err))
		restapi.RespondInternalError(rw, ErrDomain, logger)
		return
	}
	restapi.RespondJSON(rw, makeSubmissionData(updated), logger)
}

func (api *API) handleDeleteSubmission(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	sub, ok := api.getOwnSubmission(rw, r)
	if !ok {
		return
	}
	if err := api.Submissions.Delete(sub.ID); err != nil && !errors.Is(err, submission.ErrNotFound) {
		logger.Error("cannot delete submission", log.Error(err))
		restapi.RespondInternalError(rw, ErrDomain, logger)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

// ExportSubmissionRequest names succeeded image jobs whose results should be packaged.
type ExportSubmissionRequest struct {
	JobIDs []string `json:"jobIds"`
}

// ExportSubmissionResponse is a packaged submission.
type ExportSubmissionResponse struct {
	PackageURL string   `json:"packageUrl"`
	Files      []string `json:"files"`
}

func (api *API) handleExportSubmission(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	sub, ok := api.getOwnSubmission(rw, r)
	if !ok {
		return
	}

	var req ExportSubmissionRequest
	if r.ContentLength != 0 {
		if err := restapi.DecodeRequestJSON(r, &req); err != nil {
			restapi.RespondMalformedRequestOrInternalError(rw, ErrDomain, err, logger)
			return
		}
	}

	images, err := api.collectJobImages(sub, req.JobIDs)
	if err != nil {
		restapi.RespondError(rw, http.StatusBadRequest,
			restapi.NewError(ErrDomain, restapi.ErrCodeBadRequest, err.Error()), logger)
		return
	}
	sub.Images = append(sub.Images, images...)

	result, err := api.Exporter.Export(r.Context(), sub)
	if err != nil {
		var valErr *submission.ValidationError
		if errors.As(err, &valErr) {
			apiErr := restapi.NewError(ErrDomain, ErrCodeSubmissionNotReady, "Submission is not ready for export.")
			apiErr.AddContext("issues", valErr.Issues)
			restapi.RespondError(rw, http.StatusUnprocessableEntity, apiErr, logger)
			return
		}
		logger.Error("cannot export submission", log.Error(err), log.String("submission_id", sub.ID))
		restapi.RespondInternalError(rw, ErrDomain, logger)
		return
	}

	if err = api.Submissions.Update(sub.ID, func(s *submission.Submission) {
		s.Status = submission.StatusExported
		s.Images = sub.Images
	}); err != nil {
		logger.Error("cannot mark submission as exported", log.Error(err), log.String("submission_id", sub.ID))
		restapi.RespondInternalError(rw, ErrDomain, logger)
		return
	}

	restapi.RespondJSON(rw, ExportSubmissionResponse{PackageURL: result.PackageURL, Files: result.Files}, logger)
}

// collectJobImages gathers generated images from the named jobs.
// Only the caller's succeeded jobs bound to this submission are accepted.
func (api *API) collectJobImages(sub *submission.Submission, jobIDs []string) ([]submission.ImageAsset, error) {
	var images []submission.ImageAsset
	for _, jobID := range jobIDs {
		job, err := api.Images.Job(jobID)
		if err != nil {
			return nil, errors.New("unknown image job " + jobID)
		}
		if job.UserID != sub.UserID || (job.SubmissionID != "" && job.SubmissionID != sub.ID) {
			return nil, errors.New("unknown image job " + jobID)
		}
		if job.Status != imagegen.JobStatusSucceeded {
			return nil, errors.New("image job " + jobID + " has not succeeded")
		}
		for _, image := range job.Images {
			images = append(images, submission.ImageAsset{
				ContentType: image.ContentType,
				URL:         image.URL,
				B64Data:     image.B64Data,
			})
		}
	}
	return images, nil
}
