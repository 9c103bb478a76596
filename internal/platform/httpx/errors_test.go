package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"validation", fmt.Errorf("bad input: %w", ErrValidation), 400, "Validation Failed"},
		{"unauthorized", ErrUnauthorized, 401, "Unauthorized"},
		{"forbidden", fmt.Errorf("nope: %w", ErrForbidden), 403, "Forbidden"},
		{"not found", ErrNotFound, 404, "Not Found"},
		{"duplicate", fmt.Errorf("email taken: %w", ErrDuplicate), 409, "Duplicate"},
		{"rate limited", ErrRateLimited, 429, "Too Many Requests"},
		{"unknown", errors.New("disk on fire"), 500, "Internal Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var problem ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
			assert.Equal(t, tc.title, problem.Title)
			assert.Equal(t, tc.status, problem.Status)
		})
	}
}

// Internal failures must never leak their error text to clients.
func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: connection refused"))

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Empty(t, problem.Detail)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}
