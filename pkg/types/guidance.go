// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// PassageKind distinguishes internal guides from statutory text.
type PassageKind string

const (
	PassageGuide PassageKind = "guide"
	PassageLaw   PassageKind = "law"
)

// GuidancePassage is one retrievable snippet of compliance text. The ID
// is what decisions cite.
type GuidancePassage struct {
	ID      string      `json:"id" yaml:"id" toml:"id"`
	Kind    PassageKind `json:"kind" yaml:"kind" toml:"kind"`
	Title   string      `json:"title" yaml:"title" toml:"title"`
	Content string      `json:"content" yaml:"content" toml:"content"`
	Tags    []string    `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags"`

	// Score is the similarity to the query; zero outside retrieval.
	Score float64 `json:"score,omitempty" yaml:"score,omitempty" toml:"-"`
}

// GuidanceCorpusFile is the on-disk shape of a corpus file (YAML or TOML).
type GuidanceCorpusFile struct {
	Passages []GuidancePassage `json:"passages" yaml:"passages" toml:"passages"`
}

// AnalyzedEntity is an entity paired with its decision, as returned by
// the analyze-and-decide operation.
type AnalyzedEntity struct {
	Entity
	Decision *Decision `json:"masking_decision,omitempty" yaml:"masking_decision,omitempty"`
}

// OCRToken is one recognized word with its box.
type OCRToken struct {
	PageIndex int     `json:"page_index" yaml:"page_index"`
	BBox      Rect    `json:"bbox" yaml:"bbox"`
	Text      string  `json:"text" yaml:"text"`
	Conf      float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// AnalysisRequest is the input to analyze-and-decide.
type AnalysisRequest struct {
	Text      string           `json:"text_content" yaml:"text_content"`
	OCR       []OCRToken       `json:"ocr_data,omitempty" yaml:"ocr_data,omitempty"`
	Context   *BusinessContext `json:"email_context,omitempty" yaml:"email_context,omitempty"`
	EnableRAG bool             `json:"enable_rag" yaml:"enable_rag"`
}

// AnalysisResponse is the output of analyze-and-decide.
type AnalysisResponse struct {
	Entities   []AnalyzedEntity `json:"pii_entities" yaml:"pii_entities"`
	RAGEnabled bool             `json:"rag_enabled" yaml:"rag_enabled"`
	Warnings   []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
