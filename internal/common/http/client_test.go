package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decision struct {
	ApplicationID string `json:"application_id"`
	Status        string `json:"status"`
}

// ==========================================
// PostJSON
// ==========================================

func TestClient_PostJSON(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		status   int
		body     string
		validate func(t *testing.T, r *http.Request, out decision, err error)
	}{
		{
			name:   "decodes response and sets shared headers",
			opts:   []Option{WithBearerToken("secret")},
			status: http.StatusOK,
			body:   `{"application_id":"app-1","status":"APPROVED"}`,
			validate: func(t *testing.T, r *http.Request, out decision, err error) {
				require.NoError(t, err)
				assert.Equal(t, "APPROVED", out.Status)
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
			},
		},
		{
			name:   "no bearer configured",
			opts:   []Option{WithUserAgent("loan-advisor/test")},
			status: http.StatusOK,
			body:   `{}`,
			validate: func(t *testing.T, r *http.Request, _ decision, err error) {
				require.NoError(t, err)
				assert.Empty(t, r.Header.Get("Authorization"))
				assert.Equal(t, "loan-advisor/test", r.Header.Get("User-Agent"))
			},
		},
		{
			name:   "server error is retryable",
			status: http.StatusBadGateway,
			body:   "upstream down\n",
			validate: func(t *testing.T, _ *http.Request, _ decision, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusBadGateway, se.StatusCode)
				assert.Equal(t, "upstream down", se.Body)
				assert.True(t, IsRetryable(err))
			},
		},
		{
			name:   "throttling is retryable",
			status: http.StatusTooManyRequests,
			validate: func(t *testing.T, _ *http.Request, _ decision, err error) {
				assert.True(t, IsRetryable(err))
			},
		},
		{
			name:   "client error is final",
			status: http.StatusUnauthorized,
			validate: func(t *testing.T, _ *http.Request, _ decision, err error) {
				require.Error(t, err)
				assert.False(t, IsRetryable(err))
			},
		},
		{
			name:   "malformed body is final",
			status: http.StatusOK,
			body:   `{"status":`,
			validate: func(t *testing.T, _ *http.Request, _ decision, err error) {
				var de *DecodeError
				require.True(t, errors.As(err, &de))
				assert.False(t, IsRetryable(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *http.Request
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.Clone(context.Background())
				assert.Equal(t, http.MethodPost, r.Method)
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			var out decision
			err := NewClient(time.Second, tt.opts...).PostJSON(context.Background(), srv.URL, map[string]string{"application_id": "app-1"}, &out)
			tt.validate(t, seen, out, err)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(fmt.Errorf("post: %w", context.DeadlineExceeded)))
	assert.True(t, IsRetryable(errors.New("connection refused")))
}

func TestClient_DoKeepsCallerAuthorization(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic abc")

	resp, err := NewClient(time.Second, WithBearerToken("secret")).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Basic abc", got)
}
