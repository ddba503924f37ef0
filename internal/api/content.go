/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package api

import (
	"errors"
	"net/http"

	"github.com/Muminur/shopgenfy-sub002/internal/genai"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/restapi"
	"github.com/Muminur/shopgenfy-sub002/internal/submission"
)

// AnalyzeRequest describes a landing page analysis to be performed.
// When SubmissionID is set, the analysis result is also snapshotted on that submission.
type AnalyzeRequest struct {
	URL          string `json:"url"`
	Model        string `json:"model,omitempty"`
	SubmissionID string `json:"submissionId,omitempty"`
}

func (api *API) handleAnalyze(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	var req AnalyzeRequest
	if err := restapi.DecodeRequestJSON(r, &req); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, ErrDomain, err, logger)
		return
	}
	if req.URL == "" {
		restapi.RespondError(rw, http.StatusBadRequest,
			restapi.NewError(ErrDomain, restapi.ErrCodeBadRequest, "Landing page URL is required."), logger)
		return
	}

	analysis, err := api.Content.AnalyzeLandingPage(r.Context(), genai.AnalysisRequest{URL: req.URL, Model: req.Model})
	if err != nil {
		respondContentProviderError(rw, err, logger)
		return
	}

	if req.SubmissionID != "" {
		uid := userID(r)
		err = api.Submissions.Update(req.SubmissionID, func(sub *submission.Submission) {
			if sub.UserID != uid {
				return
			}
			sub.Analysis = analysis
		})
		if err != nil && !errors.Is(err, submission.ErrNotFound) {
			logger.Error("cannot attach analysis to submission",
				log.Error(err), log.String("submission_id", req.SubmissionID))
			restapi.RespondInternalError(rw, ErrDomain, logger)
			return
		}
	}

	restapi.RespondJSON(rw, analysis, logger)
}

func (api *API) handleListModels(rw http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	models, err := api.Content.ListModels(r.Context())
	if err != nil {
		respondContentProviderError(rw, err, logger)
		return
	}
	restapi.RespondJSON(rw, struct {
		Items []genai.Model `json:"items"`
	}{Items: models}, logger)
}
