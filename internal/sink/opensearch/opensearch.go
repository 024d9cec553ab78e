package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/mlexec/internal/sink"
)

// Sink indexes records into OpenSearch with one _bulk request per batch.
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
}

func New(baseURL, index string) *Sink {
	c := &http.Client{Timeout: 10 * time.Second}
	return &Sink{client: c, baseURL: strings.TrimRight(baseURL, "/"), index: index}
}

type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
}

func (s *Sink) Accept(ctx context.Context, b sink.Batch) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	var action bulkAction
	action.Index.Index = s.index
	for _, r := range sink.Rows(b) {
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/_bulk", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode)
	}
	var br bulkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&br); err == nil && br.Errors {
		return fmt.Errorf("opensearch bulk reported item errors for batch %s", b.ID)
	}
	return nil
}
