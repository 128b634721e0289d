package transcript

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/models"
	"loan-advisor/internal/orchestrator"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

// fakeTransport answers every request with the next queued response.
type fakeTransport struct {
	mu        sync.Mutex
	responses []fakeResponse
	requests  []recorded
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	f.requests = append(f.requests, recorded{req.Method, req.URL.Path, req.URL.RawQuery, body})

	resp := fakeResponse{status: http.StatusOK, body: `{}`}
	if len(f.responses) > 0 {
		resp, f.responses = f.responses[0], f.responses[1:]
	}
	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: resp.status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(resp.body)),
		Request:    req,
	}, nil
}

func newTestIndex(t *testing.T, responses ...fakeResponse) (*Index, *fakeTransport) {
	transport := &fakeTransport{responses: responses}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: transport,
	})
	require.NoError(t, err)
	return NewIndex(client, "", logger.NewTestLogger(t)), transport
}

func sampleTurn() models.Turn {
	return models.Turn{
		ApplicationID: "app-1",
		CustomerID:    "cust-1",
		Message:       "I need 5 lakh",
		Response:      "For how many months?",
		Handlers:      []string{"Sales Agent"},
		FromStatus:    models.StatusSalesDiscussion,
		ToStatus:      models.StatusSalesDiscussion,
		OccurredAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// ==========================
// Indexing
// ==========================

func TestIndex_Add(t *testing.T) {
	idx, transport := newTestIndex(t, fakeResponse{status: http.StatusCreated, body: `{"result":"created"}`})
	turn := sampleTurn()

	require.NoError(t, idx.AfterTurn(context.Background(), orchestrator.TurnEvent{Turn: turn}))

	require.Len(t, transport.requests, 1)
	req := transport.requests[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/"+DefaultIndex+"/_doc/app-1-1772359200000000000", req.path)

	var doc models.Turn
	require.NoError(t, json.Unmarshal([]byte(req.body), &doc))
	assert.Equal(t, turn, doc)
	assert.Equal(t, "transcript", idx.Name())
}

func TestIndex_AddRejected(t *testing.T) {
	idx, _ := newTestIndex(t, fakeResponse{status: http.StatusBadRequest, body: `{"error":"mapper_parsing_exception"}`})
	err := idx.Add(context.Background(), sampleTurn())
	assert.Equal(t, apperrors.ErrCodeIndexWriteFailed, apperrors.CodeOf(err))
}

func TestIndex_EnsureIndex(t *testing.T) {
	tests := []struct {
		name      string
		responses []fakeResponse
		validate  func(t *testing.T, err error, reqs []recorded)
	}{
		{
			name:      "already exists",
			responses: []fakeResponse{{status: http.StatusOK}},
			validate: func(t *testing.T, err error, reqs []recorded) {
				require.NoError(t, err)
				assert.Len(t, reqs, 1)
				assert.Equal(t, http.MethodHead, reqs[0].method)
			},
		},
		{
			name:      "created with mapping",
			responses: []fakeResponse{{status: http.StatusNotFound}, {status: http.StatusOK, body: `{"acknowledged":true}`}},
			validate: func(t *testing.T, err error, reqs []recorded) {
				require.NoError(t, err)
				require.Len(t, reqs, 2)
				assert.Equal(t, http.MethodPut, reqs[1].method)
				assert.Contains(t, reqs[1].body, `"applicationId":{"type":"keyword"}`)
			},
		},
		{
			name: "lost creation race",
			responses: []fakeResponse{
				{status: http.StatusNotFound},
				{status: http.StatusBadRequest, body: `{"error":{"type":"resource_already_exists_exception"}}`},
			},
			validate: func(t *testing.T, err error, _ []recorded) {
				assert.NoError(t, err)
			},
		},
		{
			name:      "create fails",
			responses: []fakeResponse{{status: http.StatusNotFound}, {status: http.StatusForbidden, body: `{"error":"denied"}`}},
			validate: func(t *testing.T, err error, _ []recorded) {
				assert.Equal(t, apperrors.ErrCodeIndexWriteFailed, apperrors.CodeOf(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, transport := newTestIndex(t, tt.responses...)
			err := idx.EnsureIndex(context.Background())
			tt.validate(t, err, transport.requests)
		})
	}
}

// ==========================
// Search
// ==========================

func TestIndex_Search(t *testing.T) {
	turn := sampleTurn()
	source, _ := json.Marshal(turn)
	hits := `{"hits":{"hits":[{"_source":` + string(source) + `}]}}`

	tests := []struct {
		name     string
		query    Query
		response fakeResponse
		validate func(t *testing.T, turns []models.Turn, err error, req recorded)
	}{
		{
			name:     "filtered text search",
			query:    Query{ApplicationID: "app-1", Text: "lakh", Size: 10},
			response: fakeResponse{status: http.StatusOK, body: hits},
			validate: func(t *testing.T, turns []models.Turn, err error, req recorded) {
				require.NoError(t, err)
				require.Len(t, turns, 1)
				assert.Equal(t, turn, turns[0])
				assert.Equal(t, "/"+DefaultIndex+"/_search", req.path)
				assert.Contains(t, req.query, "size=10")
				assert.Contains(t, req.body, `"term":{"applicationId":"app-1"}`)
				assert.Contains(t, req.body, `"query":"lakh"`)
			},
		},
		{
			name:     "match all with capped size",
			query:    Query{Size: 10000},
			response: fakeResponse{status: http.StatusOK, body: `{"hits":{"hits":[]}}`},
			validate: func(t *testing.T, turns []models.Turn, err error, req recorded) {
				require.NoError(t, err)
				assert.Empty(t, turns)
				assert.Contains(t, req.query, "size=500")
				assert.Contains(t, req.body, `"match_all"`)
			},
		},
		{
			name:     "missing index",
			response: fakeResponse{status: http.StatusNotFound, body: `{"error":"index_not_found_exception"}`},
			validate: func(t *testing.T, turns []models.Turn, err error, _ recorded) {
				assert.NoError(t, err)
				assert.Empty(t, turns)
			},
		},
		{
			name:     "server error",
			response: fakeResponse{status: http.StatusInternalServerError, body: `{"error":"boom"}`},
			validate: func(t *testing.T, _ []models.Turn, err error, _ recorded) {
				assert.Equal(t, apperrors.ErrCodeExternalService, apperrors.CodeOf(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, transport := newTestIndex(t, tt.response)
			turns, err := idx.Search(context.Background(), tt.query)
			require.NotEmpty(t, transport.requests)
			tt.validate(t, turns, err, transport.requests[len(transport.requests)-1])
		})
	}
}
