// Package opensearch adapts the OpenSearch client to searchpager.Searcher.
package opensearch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"go.uber.org/zap"

	"github.com/Alp4ka/searchpager"
	"github.com/Alp4ka/searchpager/engine"
)

const engineName = "opensearch"

// Config is what NewClient needs to reach a cluster.
type Config struct {
	Addresses  []string
	Username   string
	Password   string
	Insecure   bool
	MaxRetries int
}

// NewClient creates an OpenSearch API client.
func NewClient(cfg Config) (*opensearchapi.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("opensearch: no addresses")
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Insecure, //nolint:gosec // opt-in for dev clusters
		},
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses:  cfg.Addresses,
			Username:   cfg.Username,
			Password:   cfg.Password,
			Transport:  transport,
			MaxRetries: cfg.MaxRetries,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch client creation error: %w", err)
	}

	return client, nil
}

// Searcher runs requests through an OpenSearch client.
type Searcher struct {
	client *opensearchapi.Client
	logger *zap.Logger
}

func New(client *opensearchapi.Client, logger *zap.Logger) (*Searcher, error) {
	if client == nil || client.Client == nil {
		return nil, errors.New("opensearch: nil client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Searcher{client: client, logger: logger}, nil
}

// Search implements searchpager.Searcher. The raw response body is decoded
// into searchpager.SearchResult, so sort tuples and sources keep their
// original shape. Non-2xx responses become *engine.Error.
func (s *Searcher) Search(ctx context.Context, req *searchpager.Request) (*searchpager.SearchResult, error) {
	body, err := engine.EncodeBody(req)
	if err != nil {
		return nil, err
	}

	searchReq := &opensearchapi.SearchReq{
		Body:   body,
		Params: opensearchapi.SearchParams{TrackTotalHits: true},
	}
	if req.Index != "" {
		searchReq.Indices = []string{req.Index}
	}

	var result searchpager.SearchResult
	res, err := s.client.Client.Do(ctx, searchReq, &result)
	if res != nil && res.Body != nil {
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(res.Body)
	}

	if res != nil && res.IsError() {
		engineErr := engine.NewError(engineName, res.StatusCode, res.Body)
		s.logger.Warn("opensearch search failed",
			zap.String("index", req.Index),
			zap.Int("status", res.StatusCode),
			zap.String("reason", engineErr.Reason),
		)
		return nil, engineErr
	}
	if err != nil {
		return nil, fmt.Errorf("opensearch search error: %w", err)
	}

	return &result, nil
}

var _ searchpager.Searcher = (*Searcher)(nil)
