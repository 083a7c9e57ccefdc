// Package pinecone provides a REST client to a Pinecone serverless index.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

const (
	defaultControlURL = "https://api.pinecone.io"
	defaultTimeout    = 30 * time.Second
	apiVersion        = "2024-07"
)

// Config configures the Pinecone store. The API key is read from the
// environment variable named by APIKeyEnv.
type Config struct {
	ControlURL  string
	APIKeyEnv   string
	IndexName   string
	Cloud       string
	Region      string
	Dimensions  int
	ScoreCutoff float64
	Timeout     time.Duration
}

// Store is a vector store backed by a Pinecone serverless index with cosine
// metric. The index is created lazily on first use; namespaces are created
// implicitly by the first upsert, per the service's own semantics.
type Store struct {
	client     *http.Client
	embedder   embedding.Embedder
	controlURL string
	apiKey     string
	indexName  string
	cloud      string
	region     string
	dimensions int
	cutoff     float64

	mu   sync.Mutex
	host string // data-plane host, resolved once by EnsureIndex
}

type indexDescription struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace"`
}

type vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

type queryRequest struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

type statsResponse struct {
	Namespaces map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

// NewStore creates a Pinecone store. Returns an error when the credential is
// missing from the environment or the index name is empty.
func NewStore(cfg Config, embedder embedding.Embedder) (*Store, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "PINECONE_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if cfg.ControlURL == "" {
		cfg.ControlURL = defaultControlURL
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Store{
		client:     &http.Client{Timeout: cfg.Timeout},
		embedder:   embedder,
		controlURL: cfg.ControlURL,
		apiKey:     key,
		indexName:  cfg.IndexName,
		cloud:      cfg.Cloud,
		region:     cfg.Region,
		dimensions: cfg.Dimensions,
		cutoff:     cfg.ScoreCutoff,
	}, nil
}

// EnsureIndex creates the index (dimension, cosine metric) when absent and
// resolves the data-plane host. Idempotent; a concurrent duplicate create is
// answered with 409 and treated as success.
func (s *Store) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.host != "" {
		return nil
	}
	desc, found, err := s.describeIndex(ctx)
	if err != nil {
		return err
	}
	if !found {
		desc, err = s.createIndex(ctx)
		if err != nil {
			return err
		}
	}
	if desc.Host == "" {
		return fmt.Errorf("%w: index %s has no host", models.ErrVectorStore, s.indexName)
	}
	s.host = desc.Host
	return nil
}

func (s *Store) describeIndex(ctx context.Context) (*indexDescription, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.controlURL+"/indexes/"+s.indexName, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: describe index %s: %v", models.ErrVectorStore, s.indexName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("%w: describe index %s: status %d: %s", models.ErrVectorStore, s.indexName, resp.StatusCode, string(body))
	}
	var desc indexDescription
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, false, fmt.Errorf("%w: decode index description: %v", models.ErrVectorStore, err)
	}
	return &desc, true, nil
}

func (s *Store) createIndex(ctx context.Context) (*indexDescription, error) {
	body := map[string]any{
		"name":      s.indexName,
		"dimension": s.dimensions,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  s.cloud,
				"region": s.region,
			},
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.controlURL+"/indexes", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: create index %s: %v", models.ErrVectorStore, s.indexName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		// Lost the create race; another caller made it first.
		desc, found, err := s.describeIndex(ctx)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: index %s reported conflict but is not describable", models.ErrVectorStore, s.indexName)
		}
		return desc, nil
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: create index %s: status %d: %s", models.ErrVectorStore, s.indexName, resp.StatusCode, string(respBody))
	}
	var desc indexDescription
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("%w: decode created index: %v", models.ErrVectorStore, err)
	}
	return &desc, nil
}

// Upsert embeds chunks and writes them into the namespace in input order.
// The namespace is created by the service on first write.
func (s *Store) Upsert(ctx context.Context, namespace string, chunks []*models.DocumentChunk) error {
	if namespace == "" {
		return fmt.Errorf("%w: empty namespace", models.ErrVectorStore)
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := s.EnsureIndex(ctx); err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks for namespace %s: %w", len(chunks), namespace, err)
	}
	vectors := make([]vector, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.New().String()
		}
		ch.Embedding = embeddings[i]
		vectors[i] = vector{
			ID:     ch.ID,
			Values: embeddings[i],
			Metadata: map[string]string{
				"text":        ch.Content,
				"source_file": ch.SourceFile,
				"page":        fmt.Sprintf("%d", ch.Page),
				"chunk_index": fmt.Sprintf("%d", ch.ChunkIndex),
			},
		}
	}
	var out json.RawMessage
	if err := s.postJSON(ctx, s.hostURL()+"/vectors/upsert", upsertRequest{Vectors: vectors, Namespace: namespace}, &out); err != nil {
		return fmt.Errorf("upsert %d vectors into namespace %s: %w", len(vectors), namespace, err)
	}
	return nil
}

// Search returns up to topK nearest chunks by cosine similarity, descending.
// When a score cutoff is configured, results below it are dropped.
func (s *Store) Search(ctx context.Context, namespace string, query []float32, topK int) ([]*models.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := s.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	var resp queryResponse
	reqBody := queryRequest{Namespace: namespace, Vector: query, TopK: topK, IncludeMetadata: true}
	if err := s.postJSON(ctx, s.hostURL()+"/query", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("query namespace %s: %w", namespace, err)
	}
	results := make([]*models.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		score := clamp01(m.Score)
		if s.cutoff > 0 && score < s.cutoff {
			continue
		}
		chunk := &models.DocumentChunk{
			ID:         m.ID,
			Content:    m.Metadata["text"],
			SourceFile: m.Metadata["source_file"],
		}
		fmt.Sscanf(m.Metadata["page"], "%d", &chunk.Page)
		fmt.Sscanf(m.Metadata["chunk_index"], "%d", &chunk.ChunkIndex)
		results = append(results, &models.SearchResult{Chunk: chunk, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// ListNamespaces returns namespace names from the index stats.
func (s *Store) ListNamespaces(ctx context.Context) ([]string, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	var stats statsResponse
	if err := s.postJSON(ctx, s.hostURL()+"/describe_index_stats", map[string]any{}, &stats); err != nil {
		return nil, fmt.Errorf("describe index stats: %w", err)
	}
	names := make([]string, 0, len(stats.Namespaces))
	for name := range stats.Namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op; the HTTP client needs no explicit cleanup.
func (s *Store) Close() error {
	return nil
}

// hostURL returns the data-plane base URL. Pinecone reports the host without
// a scheme; tests may configure a full URL.
func (s *Store) hostURL() string {
	s.mu.Lock()
	host := s.host
	s.mu.Unlock()
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("Api-Key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrVectorStore, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", models.ErrVectorStore, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", models.ErrVectorStore, err)
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
