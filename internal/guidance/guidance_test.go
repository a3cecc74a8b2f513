// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package guidance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pii-masker/internal/httputil"
	"github.com/pdiddy/pii-masker/internal/maskerr"
	"github.com/pdiddy/pii-masker/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	WatchDebounce = 10 * time.Millisecond
	os.Exit(m.Run())
}

const guidesYAML = `passages:
  - id: G-PHONE-01
    kind: guide
    title: Customer phone numbers
    content: Mask personal phone numbers before sending mail to an external customer unless the customer consented.
    tags: [phone, external]
  - id: G-NAME-01
    kind: guide
    title: Names in internal mail
    content: Person names may stay visible in internal mail between employees.
    tags: [name, internal]
`

const lawsTOML = `[[passages]]
id = "PIPA-24-2"
kind = "law"
title = "Resident registration numbers"
content = "Resident registration numbers must not be disclosed to third parties without a legal basis."
tags = ["national_id"]
`

func testSetup(t *testing.T, embedder Embedder) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()
	corpus := filepath.Join(tmpDir, "guides")
	require.NoError(t, os.MkdirAll(corpus, 0o755))

	if embedder == nil {
		embedder = NewHashEmbedder(256)
	}
	cfg := types.GuidanceConfig{
		CorpusDir: corpus,
		IndexDir:  filepath.Join(tmpDir, "index"),
		TopK:      2,
	}
	store, err := NewStore(cfg, embedder)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, corpus
}

func writeCorpus(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestIngestIncremental(t *testing.T) {
	store, corpus := testSetup(t, nil)
	writeCorpus(t, corpus, "guides.yaml", guidesYAML)
	writeCorpus(t, corpus, "laws.toml", lawsTOML)
	writeCorpus(t, corpus, "broken.yml", "passages: [{id: X, kind: memo, content: y}]")
	writeCorpus(t, corpus, "README.md", "ignored")

	var out bytes.Buffer
	sum, err := store.Ingest(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, IngestSummary{Indexed: 2, Failed: 1}, sum)
	assert.Contains(t, out.String(), "failed  broken.yml")

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sum, err = store.Ingest(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 0, sum.Indexed+sum.Updated)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(corpus, "laws.toml"), later, later))
	sum, err = store.Ingest(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Skipped)

	require.NoError(t, os.Remove(filepath.Join(corpus, "guides.yaml")))
	sum, err = store.Ingest(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Removed)
	n, err = store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestReembedsWhenEmbedderChanges(t *testing.T) {
	tmpDir := t.TempDir()
	corpus := filepath.Join(tmpDir, "guides")
	require.NoError(t, os.MkdirAll(corpus, 0o755))
	writeCorpus(t, corpus, "guides.yaml", guidesYAML)
	cfg := types.GuidanceConfig{CorpusDir: corpus, IndexDir: filepath.Join(tmpDir, "index")}

	first, err := NewStore(cfg, NewHashEmbedder(64))
	require.NoError(t, err)
	_, err = first.Ingest(context.Background(), io.Discard)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(cfg, NewHashEmbedder(128))
	require.NoError(t, err)
	defer second.Close()
	sum, err := second.Ingest(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	store, corpus := testSetup(t, nil)
	writeCorpus(t, corpus, "guides.yaml", guidesYAML)
	writeCorpus(t, corpus, "laws.toml", lawsTOML)
	_, err := store.Ingest(context.Background(), io.Discard)
	require.NoError(t, err)

	got, err := store.Retrieve(context.Background(), "personal phone numbers sent to an external customer")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "G-PHONE-01", got[0].ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)

	laws, err := store.Search(context.Background(), QueryOptions{Query: "phone", Kind: types.PassageLaw})
	require.NoError(t, err)
	require.Len(t, laws, 1)
	assert.Equal(t, types.PassageLaw, laws[0].Kind)

	tagged, err := store.Search(context.Background(), QueryOptions{Query: "names", Tags: []string{"internal"}, TopK: 10})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "G-NAME-01", tagged[0].ID)
}

func TestRetrieveTiesKeepInsertionOrder(t *testing.T) {
	store, corpus := testSetup(t, nil)
	writeCorpus(t, corpus, "dup.yaml", `passages:
  - {id: A, content: same words here}
  - {id: B, content: same words here}
  - {id: C, content: same words here}
`)
	_, err := store.Ingest(context.Background(), io.Discard)
	require.NoError(t, err)

	got, err := store.Retrieve(context.Background(), "unrelated query")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, "B", got[1].ID)
	assert.Equal(t, types.PassageGuide, got[0].Kind)
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	store, _ := testSetup(t, nil)
	got, err := store.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveUnavailableIsDecisionFailure(t *testing.T) {
	store, _ := testSetup(t, nil)
	require.NoError(t, store.Close())

	_, err := store.Retrieve(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, maskerr.ErrDecision))
}

func TestRetrieveCorruptTagsIsDecisionFailure(t *testing.T) {
	store, corpus := testSetup(t, nil)
	writeCorpus(t, corpus, "guides.yaml", guidesYAML)
	_, err := store.Ingest(context.Background(), io.Discard)
	require.NoError(t, err)

	_, err = store.db.Exec(`UPDATE passages SET tags = '{broken' WHERE id = 'G-NAME-01'`)
	require.NoError(t, err)

	_, err = store.Retrieve(context.Background(), "phone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, maskerr.ErrDecision))
	assert.Contains(t, err.Error(), "decoding tags of passage G-NAME-01")
}

type failingEmbedder struct{ calls int }

func (f *failingEmbedder) Name() string { return "failing" }

func (f *failingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls == 1 {
		return NewHashEmbedder(8).Embed(context.Background(), texts)
	}
	return nil, errors.New("connection refused")
}

func TestRetrieveEmbedderDownIsDecisionFailure(t *testing.T) {
	emb := &failingEmbedder{}
	store, corpus := testSetup(t, emb)
	writeCorpus(t, corpus, "guides.yaml", guidesYAML)
	_, err := store.Ingest(context.Background(), io.Discard)
	require.NoError(t, err)

	_, err = store.Retrieve(context.Background(), "phone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, maskerr.ErrDecision))
}

func TestHashEmbedder(t *testing.T) {
	h := NewHashEmbedder(0)
	assert.Equal(t, "hash-512", h.Name())

	vecs, err := h.Embed(context.Background(), []string{"Phone Numbers", "phone number", "", "주민등록번호 보호"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1, math.Sqrt(norm), 1e-5)

	// Case folding and stemming make these the same terms.
	assert.InDelta(t, 1, cosine(vecs[0], vecs[1]), 1e-5)
	assert.Zero(t, cosine(vecs[2], vecs[0]))

	assert.Equal(t, []string{"주민", "민등", "등록", "록번", "번호", "보호"}, h.terms("주민등록번호 보호"))
	assert.Equal(t, []string{"mask", "phone"}, h.terms("MASKING phones!"))
}

func TestHTTPEmbedder(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embed-small", req.Model)
		// Reply out of order to check index handling.
		resp := `{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`
		w.Write([]byte(resp))
	}))
	defer ts.Close()

	e := NewHTTPEmbedder(types.GuidanceConfig{
		HTTPConfig:      types.HTTPConfig{Timeout: time.Second},
		EmbeddingURL:    ts.URL + "/",
		EmbeddingModel:  "embed-small",
		EmbeddingAPIKey: "k",
	})
	assert.Equal(t, "http-embed-small", e.Name())

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, "Bearer k", gotAuth)
}

func TestHTTPEmbedderErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "short") {
			w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer ts.Close()

	e := NewHTTPEmbedder(types.GuidanceConfig{EmbeddingURL: ts.URL})
	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	e.baseURL = ts.URL + "/x?short=1&"
	_, err = e.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(types.GuidanceConfig{Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, "hash-32", e.Name())

	_, err = NewEmbedder(types.GuidanceConfig{Embedder: types.EmbedderHTTP})
	assert.Error(t, err)

	_, err = NewEmbedder(types.GuidanceConfig{Embedder: "word2vec"})
	assert.Error(t, err)
}

func TestQueryFor(t *testing.T) {
	e := types.Entity{Text: "010-1234-5678", Type: types.PiiPhone}
	assert.Equal(t, "personal phone number handling", QueryFor(e, nil))
	assert.Equal(t,
		"personal phone number shared with external customer without consent for general business",
		QueryFor(e, &types.BusinessContext{}))
	assert.Equal(t,
		"personal phone number shared with internal with consent for payroll",
		QueryFor(e, &types.BusinessContext{ReceiverType: types.PartyInternal, HasConsent: true, Purpose: "payroll"}))
}

func TestWatchReingests(t *testing.T) {
	store, corpus := testSetup(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingested := make(chan IngestSummary, 8)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, io.Discard, func(s IngestSummary, err error) {
			if ctx.Err() == nil {
				assert.NoError(t, err)
			}
			ingested <- s
		})
	}()

	select {
	case s := <-ingested:
		assert.Zero(t, s.Total())
	case <-time.After(5 * time.Second):
		t.Fatal("initial ingest did not run")
	}

	writeCorpus(t, corpus, "guides.yaml", guidesYAML)
	select {
	case s := <-ingested:
		assert.Equal(t, 1, s.Indexed)
	case <-time.After(5 * time.Second):
		t.Fatal("change was not picked up")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
