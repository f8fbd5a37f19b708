package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const pineconeRequestTimeout = 30 * time.Second

// Vector is one record in the similarity index.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is one nearest-neighbor result, closest first.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PineconeClient talks to a single Pinecone index over its REST API.
type PineconeClient struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

// NewPineconeClient creates a client for the index served at host
// (the per-index endpoint, e.g. https://my-index-abc123.svc.pinecone.io).
func NewPineconeClient(host, apiKey string) (*PineconeClient, error) {
	if host == "" {
		return nil, errors.New("pinecone index host is empty")
	}
	if apiKey == "" {
		return nil, errors.New("pinecone API key is empty")
	}
	return &PineconeClient{
		host:       strings.TrimRight(host, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: pineconeRequestTimeout},
	}, nil
}

// Upsert writes the given vectors into the index.
func (c *PineconeClient) Upsert(ctx context.Context, vectors []Vector) error {
	reqBody := struct {
		Vectors []Vector `json:"vectors"`
	}{Vectors: vectors}

	return c.post(ctx, "/vectors/upsert", reqBody, nil)
}

// Query runs a nearest-neighbor search and returns up to topK matches
// with their metadata, in relevance order.
func (c *PineconeClient) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	reqBody := struct {
		Vector          []float32 `json:"vector"`
		TopK            int       `json:"topK"`
		IncludeMetadata bool      `json:"includeMetadata"`
	}{Vector: vector, TopK: topK, IncludeMetadata: true}

	var queryResp struct {
		Matches []Match `json:"matches"`
	}
	if err := c.post(ctx, "/query", reqBody, &queryResp); err != nil {
		return nil, err
	}
	return queryResp.Matches, nil
}

// DeleteByFilter bulk-deletes every record whose metadata matches filter.
func (c *PineconeClient) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	reqBody := struct {
		Filter map[string]any `json:"filter"`
	}{Filter: filter}

	return c.post(ctx, "/vectors/delete", reqBody, nil)
}

func (c *PineconeClient) post(ctx context.Context, path string, in, out any) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal pinecone request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "create pinecone request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "pinecone request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read pinecone response")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinecone API returned status %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return errors.Wrap(err, "decode pinecone response")
		}
	}
	return nil
}
