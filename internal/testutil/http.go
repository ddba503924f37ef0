/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"net/http/httptest"

	"github.com/stretchr/testify/require"
)

type errorRespData struct {
	Domain string `json:"domain"`
	Code   string `json:"code"`
}

type wrappedErrorRespData struct {
	Error errorRespData `json:"error"`
}

// RequireErrorInRecorder asserts that the recorded response carries a JSON API error
// with the wanted HTTP code, domain and code.
func RequireErrorInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, wantErrDomain, wantErrCode string) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, resp.Code)
	require.Equal(t, "application/json", resp.Header().Get("Content-Type"))
	var wrappedErrResp wrappedErrorRespData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wrappedErrResp))
	require.Equal(t, wantErrDomain, wrappedErrResp.Error.Domain)
	require.Equal(t, wantErrCode, wrappedErrResp.Error.Code)
}
