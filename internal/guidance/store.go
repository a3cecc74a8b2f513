// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package guidance indexes a compliance corpus and retrieves the passages
// most similar to a query. Passages live in YAML or TOML files; the index
// is a sqlite database holding one embedding per passage.
package guidance

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pii-masker/pkg/types"
)

const dbFile = "guidance.db"

// Store manages the guidance index.
type Store struct {
	db        *sql.DB
	corpusDir string
	topK      int
	embedder  Embedder
}

// NewStore opens or creates the index at cfg.IndexDir/guidance.db.
func NewStore(cfg types.GuidanceConfig, embedder Embedder) (*Store, error) {
	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(cfg.IndexDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}

	s := &Store{
		db:        db,
		corpusDir: cfg.CorpusDir,
		topK:      topK,
		embedder:  embedder,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS passages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			title TEXT,
			content TEXT NOT NULL,
			tags TEXT,
			source TEXT NOT NULL,
			embedding BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_source ON passages(source)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_kind ON passages(kind)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			source TEXT PRIMARY KEY,
			file_mod_time TEXT,
			embedder TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from an indexing run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Removed int
	Failed  int
}

// Total returns the number of corpus files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads corpus files from the corpus directory and indexes their
// passages. A file is re-indexed when its modification time or the
// embedder changed; files that disappeared are removed from the index.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	entries, err := os.ReadDir(s.corpusDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading corpus directory %s: %w", s.corpusDir, err)
	}

	var (
		summary IngestSummary
		present = map[string]bool{}
	)

	for _, entry := range entries {
		if entry.IsDir() || !isCorpusFile(entry.Name()) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		source := entry.Name()
		present[source] = true

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", source, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime, storedEmbedder string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time, embedder FROM indexing_status WHERE source = ?`, source,
		).Scan(&storedModTime, &storedEmbedder)

		if err == nil && storedModTime == modTime && storedEmbedder == s.embedder.Name() {
			fmt.Fprintf(w, "skipped %s\n", source)
			summary.Skipped++
			continue
		}

		isUpdate := err == nil

		passages, err := readCorpusFile(filepath.Join(s.corpusDir, source))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: parse error: %v\n", source, err)
			summary.Failed++
			continue
		}

		if err := s.ingestFile(ctx, source, passages, modTime, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", source, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d passages)\n", source, len(passages))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d passages)\n", source, len(passages))
			summary.Indexed++
		}
	}

	removed, err := s.removeMissing(ctx, present)
	if err != nil {
		return summary, err
	}
	for _, source := range removed {
		fmt.Fprintf(w, "removed %s\n", source)
	}
	summary.Removed = len(removed)

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, removed: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Removed, summary.Failed)

	return summary, nil
}

func (s *Store) ingestFile(ctx context.Context, source string, passages []types.GuidancePassage, modTime string, isUpdate bool) error {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = passageText(p)
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding passages: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if isUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE source = ?`, source); err != nil {
			return fmt.Errorf("deleting old passages: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO passages (id, kind, title, content, tags, source, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range passages {
		tagsJSON, _ := json.Marshal(p.Tags)
		_, err := stmt.ExecContext(ctx,
			p.ID, string(p.Kind), p.Title, p.Content, string(tagsJSON), source, encodeVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("inserting passage %s: %w", p.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (source, file_mod_time, embedder) VALUES (?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET file_mod_time=excluded.file_mod_time, embedder=excluded.embedder`,
		source, modTime, s.embedder.Name(),
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}

func (s *Store) removeMissing(ctx context.Context, present map[string]bool) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source FROM indexing_status ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("listing indexed sources: %w", err)
	}
	var gone []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		if !present[source] {
			gone = append(gone, source)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, source := range gone {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE source = ?`, source); err != nil {
			return nil, fmt.Errorf("removing passages of %s: %w", source, err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM indexing_status WHERE source = ?`, source); err != nil {
			return nil, fmt.Errorf("removing status of %s: %w", source, err)
		}
	}
	return gone, nil
}

func isCorpusFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// readCorpusFile parses a YAML or TOML corpus file and validates its
// passages.
func readCorpusFile(path string) ([]types.GuidancePassage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file types.GuidanceCorpusFile
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &file); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for i := range file.Passages {
		p := &file.Passages[i]
		if p.ID == "" {
			return nil, fmt.Errorf("passage %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate passage id %s", p.ID)
		}
		seen[p.ID] = true
		switch p.Kind {
		case "":
			p.Kind = types.PassageGuide
		case types.PassageGuide, types.PassageLaw:
		default:
			return nil, fmt.Errorf("passage %s: unknown kind %q", p.ID, p.Kind)
		}
		if strings.TrimSpace(p.Content) == "" {
			return nil, fmt.Errorf("passage %s has no content", p.ID)
		}
	}
	return file.Passages, nil
}

// passageText is what gets embedded for a passage.
func passageText(p types.GuidancePassage) string {
	parts := []string{p.Title, p.Content}
	if len(p.Tags) > 0 {
		parts = append(parts, strings.Join(p.Tags, " "))
	}
	return strings.Join(parts, "\n")
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
