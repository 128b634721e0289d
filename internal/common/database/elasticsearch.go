// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"loan-advisor/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// minTranscriptMajor is the oldest cluster the transcript mapping runs on.
const minTranscriptMajor = 8

// ElasticsearchClient holds the cluster connection used by the transcript
// index, plus what the last health check learned about the cluster.
type ElasticsearchClient struct {
	Client *elasticsearch.Client

	mu      sync.RWMutex
	cluster string
	version string
}

// ElasticsearchOption customises client construction.
type ElasticsearchOption func(*elasticsearch.Config)

// WithTransport swaps the HTTP transport, mostly for tests.
func WithTransport(rt http.RoundTripper) ElasticsearchOption {
	return func(c *elasticsearch.Config) { c.Transport = rt }
}

// NewElasticsearch builds a client that retries throttled and unavailable
// responses up to cfg.MaxRetries times.
func NewElasticsearch(cfg config.ElasticsearchConfig, opts ...ElasticsearchOption) (*ElasticsearchClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch addresses are required")
	}
	esCfg := elasticsearch.Config{
		Addresses:     cfg.Addresses,
		RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		MaxRetries:    cfg.MaxRetries,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	for _, opt := range opts {
		opt(&esCfg)
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

type clusterInfo struct {
	ClusterName string `json:"cluster_name"`
	Version     struct {
		Number string `json:"number"`
	} `json:"version"`
}

// Ping fetches cluster info and rejects clusters too old for the
// transcript mapping. It backs the readiness check.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := esapi.InfoRequest{}.Do(ctx, c.Client)
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}

	var info clusterInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return fmt.Errorf("elasticsearch info decode: %w", err)
	}
	major, err := majorVersion(info.Version.Number)
	if err != nil {
		return err
	}
	if major < minTranscriptMajor {
		return fmt.Errorf("elasticsearch %s is not supported, need %d.x or newer", info.Version.Number, minTranscriptMajor)
	}

	c.mu.Lock()
	c.cluster, c.version = info.ClusterName, info.Version.Number
	c.mu.Unlock()
	return nil
}

// Cluster returns the cluster name and version seen by the last successful Ping.
func (c *ElasticsearchClient) Cluster() (name, version string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cluster, c.version
}

func majorVersion(v string) (int, error) {
	head, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch version %q: %w", v, err)
	}
	return major, nil
}
