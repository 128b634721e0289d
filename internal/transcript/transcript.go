// internal/transcript/transcript.go

// Package transcript indexes conversation turns in Elasticsearch so that
// past conversations can be searched.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/models"
	"loan-advisor/internal/orchestrator"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	DefaultIndex      = "loan-conversation-transcripts"
	defaultSearchSize = 50
	maxSearchSize     = 500
)

var indexMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"applicationId": map[string]string{"type": "keyword"},
			"customerId":    map[string]string{"type": "keyword"},
			"message":       map[string]string{"type": "text"},
			"response":      map[string]string{"type": "text"},
			"handlers":      map[string]string{"type": "keyword"},
			"fromStatus":    map[string]string{"type": "keyword"},
			"toStatus":      map[string]string{"type": "keyword"},
			"action":        map[string]string{"type": "keyword"},
			"routingRule":   map[string]string{"type": "keyword"},
			"fields":        map[string]string{"type": "keyword"},
			"occurredAt":    map[string]string{"type": "date"},
		},
	},
}

// Query filters a transcript search. Empty fields match everything.
type Query struct {
	ApplicationID string
	Text          string
	Size          int
}

type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndex(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	if index == "" {
		index = DefaultIndex
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Index{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "transcript", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (x *Index) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{x.index}}.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewIndexWriteFailedError(x.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := json.Marshal(indexMapping)
	res, err = esapi.IndicesCreateRequest{Index: x.index, Body: bytes.NewReader(body)}.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewIndexWriteFailedError(x.index, err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return apperrors.NewIndexWriteFailedError(x.index, fmt.Errorf("create index: %s", res.String()))
	}
	x.logger.Info("Transcript index ready", nil)
	return nil
}

// Add indexes one turn. The document ID is derived from the application and
// timestamp, so a retried write overwrites instead of duplicating.
func (x *Index) Add(ctx context.Context, turn models.Turn) error {
	body, err := json.Marshal(turn)
	if err != nil {
		return apperrors.NewIndexWriteFailedError(x.index, err)
	}
	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: fmt.Sprintf("%s-%d", turn.ApplicationID, turn.OccurredAt.UnixNano()),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewIndexWriteFailedError(x.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewIndexWriteFailedError(x.index, fmt.Errorf("index turn: %s", res.String()))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Turn `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns matching turns, oldest first.
func (x *Index) Search(ctx context.Context, q Query) ([]models.Turn, error) {
	size := q.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	boolQuery := map[string]interface{}{}
	if q.ApplicationID != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"applicationId": q.ApplicationID}},
		}
	}
	if q.Text != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"message^2", "response"},
			}},
		}
	}
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(boolQuery) > 0 {
		query = map[string]interface{}{"bool": boolQuery}
	}

	body, _ := json.Marshal(map[string]interface{}{
		"query": query,
		"sort":  []interface{}{map[string]string{"occurredAt": "asc"}},
	})
	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("search failed: %s", res.String()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewExternalServiceError("elasticsearch", err)
	}
	turns := make([]models.Turn, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		turns = append(turns, h.Source)
	}
	return turns, nil
}

func (x *Index) Name() string { return "transcript" }

func (x *Index) AfterTurn(ctx context.Context, event orchestrator.TurnEvent) error {
	return x.Add(ctx, event.Turn)
}
