// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package guidance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/pii-masker/internal/maskerr"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// Retriever returns the passages most relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]types.GuidancePassage, error)
}

// QueryOptions holds parameters for a similarity search.
type QueryOptions struct {
	// Query is the text to embed and compare against passages.
	Query string

	// Kind restricts results to guides or laws.
	Kind types.PassageKind

	// Tags filters by one or more tags with AND semantics.
	Tags []string

	// TopK limits result count. Zero uses the store default.
	TopK int
}

// Retrieve returns at most the configured number of passages for query.
// An empty corpus yields no passages and no error. Any failure to reach
// the index or the embedder is a decision failure.
func (s *Store) Retrieve(ctx context.Context, query string) ([]types.GuidancePassage, error) {
	return s.Search(ctx, QueryOptions{Query: query})
}

type candidate struct {
	passage types.GuidancePassage
	vector  []float32
}

// Search ranks passages by cosine similarity to opts.Query. Ties keep
// corpus insertion order.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]types.GuidancePassage, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = s.topK
	}

	cands, err := s.candidates(ctx, opts)
	if err != nil {
		return nil, maskerr.Decision(err, "loading guidance passages")
	}
	if len(cands) == 0 {
		return nil, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{opts.Query})
	if err != nil {
		return nil, maskerr.Decision(err, "embedding guidance query")
	}
	q := vecs[0]

	for i := range cands {
		cands[i].passage.Score = cosine(q, cands[i].vector)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].passage.Score > cands[j].passage.Score
	})

	if len(cands) > topK {
		cands = cands[:topK]
	}
	out := make([]types.GuidancePassage, len(cands))
	for i, c := range cands {
		out[i] = c.passage
	}
	return out, nil
}

func (s *Store) candidates(ctx context.Context, opts QueryOptions) ([]candidate, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT id, kind, title, content, tags, embedding FROM passages WHERE 1=1`)
	if opts.Kind != "" {
		qb.WriteString(` AND kind = ?`)
		args = append(args, string(opts.Kind))
	}
	for _, tag := range opts.Tags {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(passages.tags) WHERE value = ?)`)
		args = append(args, tag)
	}
	qb.WriteString(` ORDER BY rowid`)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying guidance index: %w", err)
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var (
			c        candidate
			kind     string
			title    sql.NullString
			tagsJSON sql.NullString
			blob     []byte
		)
		if err := rows.Scan(&c.passage.ID, &kind, &title, &c.passage.Content, &tagsJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		c.passage.Kind = types.PassageKind(kind)
		c.passage.Title = title.String
		if tagsJSON.Valid {
			if err := json.Unmarshal([]byte(tagsJSON.String), &c.passage.Tags); err != nil {
				return nil, fmt.Errorf("decoding tags of passage %s: %w", c.passage.ID, err)
			}
		}
		c.vector = decodeVector(blob)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of indexed passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM passages`).Scan(&n)
	return n, err
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// QueryFor synthesizes a retrieval query from an entity and its business
// context, for example "phone number shared with external customer
// without consent".
func QueryFor(e types.Entity, bc *types.BusinessContext) string {
	var b strings.Builder
	b.WriteString(e.Type.Describe())
	if bc == nil {
		b.WriteString(" handling")
		return b.String()
	}
	c := bc.WithDefaults()
	fmt.Fprintf(&b, " shared with %s", strings.ReplaceAll(string(c.ReceiverType), "_", " "))
	if c.HasConsent {
		b.WriteString(" with consent")
	} else {
		b.WriteString(" without consent")
	}
	if c.Purpose != "" {
		fmt.Fprintf(&b, " for %s", c.Purpose)
	}
	return b.String()
}
