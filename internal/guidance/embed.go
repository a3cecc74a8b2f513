// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package guidance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"unicode"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/pii-masker/internal/httputil"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// Embedder turns texts into vectors. Name identifies the embedding space;
// passages indexed under one name are re-embedded when it changes.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder selects an embedder from cfg.
func NewEmbedder(cfg types.GuidanceConfig) (Embedder, error) {
	switch cfg.Embedder {
	case types.EmbedderHash, "":
		return NewHashEmbedder(cfg.Dimensions), nil
	case types.EmbedderHTTP:
		if cfg.EmbeddingURL == "" {
			return nil, fmt.Errorf("embedder http requires embedding_url")
		}
		return NewHTTPEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}

// HashEmbedder is an offline embedder. Text is NFKC-normalized and case
// folded, Latin words are reduced with the Snowball English stemmer, and
// runs of Hangul, Han or kana are split into character bigrams. Features
// are hashed into a fixed number of signed buckets and the vector is
// L2-normalized.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a HashEmbedder with dims buckets (default 512).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 512
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Name() string { return fmt.Sprintf("hash-%d", h.dims) }

// Embed never fails.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dims)
	terms := h.terms(text)
	for i, term := range terms {
		h.add(v, "u:"+term, 1)
		if i > 0 {
			h.add(v, "b:"+terms[i-1]+" "+term, 0.5)
		}
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	n := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= n
	}
	return v
}

func (h *HashEmbedder) add(v []float32, feature string, w float32) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum>>63 == 1 {
		w = -w
	}
	v[idx] += w
}

// terms returns the normalized terms of text in order.
func (h *HashEmbedder) terms(text string) []string {
	// A Caser is stateful, so each call gets its own.
	text = cases.Fold().String(norm.NFKC.String(text))
	var (
		terms []string
		word  []rune
		cjk   []rune
	)
	flushWord := func() {
		if len(word) == 0 {
			return
		}
		env := snowballstem.NewEnv(string(word))
		english.Stem(env)
		terms = append(terms, env.Current())
		word = word[:0]
	}
	flushCJK := func() {
		switch {
		case len(cjk) == 1:
			terms = append(terms, string(cjk))
		case len(cjk) > 1:
			for i := 0; i+1 < len(cjk); i++ {
				terms = append(terms, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}
	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			word = append(word, r)
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()
	return terms
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Hangul, unicode.Han, unicode.Hiragana, unicode.Katakana)
}

// HTTPEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type HTTPEmbedder struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
	agent   string
}

// NewHTTPEmbedder returns an embedder for cfg.EmbeddingURL.
func NewHTTPEmbedder(cfg types.GuidanceConfig) *HTTPEmbedder {
	return &HTTPEmbedder{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.EmbeddingURL, "/"),
		model:   cfg.EmbeddingModel,
		apiKey:  cfg.EmbeddingAPIKey,
		agent:   cfg.UserAgent,
	}
}

func (e *HTTPEmbedder) Name() string { return "http-" + e.model }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed sends all texts in one request and returns vectors in input order.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	if e.agent != "" {
		req.Header.Set("User-Agent", e.agent)
	}

	resp, err := httputil.DoWithRetry(ctx, e.client, req, 3)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %w", err)
	}
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embedding %d missing from response", i)
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
