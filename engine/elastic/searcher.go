// Package elastic adapts the official Elasticsearch client to
// searchpager.Searcher.
package elastic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/Alp4ka/searchpager"
	"github.com/Alp4ka/searchpager/engine"
)

const engineName = "elasticsearch"

// Config is what NewClient needs to reach a cluster.
type Config struct {
	Addresses  []string
	Username   string
	Password   string
	Insecure   bool
	MaxRetries int
}

// NewClient creates an Elasticsearch client.
func NewClient(cfg Config) (*elasticsearch.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch: no addresses")
	}

	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for dev clusters
		esCfg.Transport = transport
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client creation error: %w", err)
	}

	return es, nil
}

// Searcher runs requests through an Elasticsearch client.
type Searcher struct {
	client *elasticsearch.Client
	logger *zap.Logger
}

func New(client *elasticsearch.Client, logger *zap.Logger) (*Searcher, error) {
	if client == nil {
		return nil, errors.New("elasticsearch: nil client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Searcher{client: client, logger: logger}, nil
}

// Search implements searchpager.Searcher. Non-2xx responses become
// *engine.Error.
func (s *Searcher) Search(ctx context.Context, req *searchpager.Request) (*searchpager.SearchResult, error) {
	body, err := engine.EncodeBody(req)
	if err != nil {
		return nil, err
	}

	opts := []func(*esapi.SearchRequest){
		s.client.Search.WithContext(ctx),
		s.client.Search.WithBody(body),
		s.client.Search.WithTrackTotalHits(true),
	}
	if req.Index != "" {
		opts = append(opts, s.client.Search.WithIndex(req.Index))
	}

	res, err := s.client.Search(opts...)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(res.Body)

	if res.IsError() {
		engineErr := engine.NewError(engineName, res.StatusCode, res.Body)
		s.logger.Warn("elasticsearch search failed",
			zap.String("index", req.Index),
			zap.Int("status", res.StatusCode),
			zap.String("reason", engineErr.Reason),
		)
		return nil, engineErr
	}

	result, err := searchpager.DecodeSearchResult(res.Body)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch parsing error: %w", err)
	}

	return result, nil
}

var _ searchpager.Searcher = (*Searcher)(nil)
