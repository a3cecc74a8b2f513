// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// AIConfig holds shared settings for components that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// MaskingConfig holds settings for the orchestrator.
type MaskingConfig struct {
	// UploadDir is the shared artifact area holding originals and
	// masked_<name> outputs.
	UploadDir string `json:"upload_dir" yaml:"upload_dir" mapstructure:"upload_dir"`

	// FileWorkers bounds the number of files masked concurrently (default 4).
	FileWorkers int `json:"file_workers" yaml:"file_workers" mapstructure:"file_workers"`

	// EntityWorkers bounds per-file entity concurrency (default 8).
	EntityWorkers int `json:"entity_workers" yaml:"entity_workers" mapstructure:"entity_workers"`

	// DecisionTimeout bounds retrieval plus decision for one entity (default 20s).
	DecisionTimeout time.Duration `json:"decision_timeout" yaml:"decision_timeout" mapstructure:"decision_timeout"`
}

// EmbedderBackend selects how guidance passages are embedded.
type EmbedderBackend string

const (
	EmbedderHash EmbedderBackend = "hash"
	EmbedderHTTP EmbedderBackend = "http"
)

// GuidanceConfig holds settings for the guidance retriever.
type GuidanceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// CorpusDir holds the YAML/TOML passage files.
	CorpusDir string `json:"corpus_dir" yaml:"corpus_dir" mapstructure:"corpus_dir"`

	// IndexDir holds the sqlite index (guidance.db).
	IndexDir string `json:"index_dir" yaml:"index_dir" mapstructure:"index_dir"`

	// TopK is the number of passages returned per query (default 5).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// Dimensions is the embedding width for the hash embedder (default 512).
	Dimensions int `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`

	// Embedder selects hash (offline) or http.
	Embedder EmbedderBackend `json:"embedder" yaml:"embedder" mapstructure:"embedder"`

	// EmbeddingURL is the base URL of an OpenAI-compatible embeddings API.
	EmbeddingURL string `json:"embedding_url,omitempty" yaml:"embedding_url,omitempty" mapstructure:"embedding_url"`

	// EmbeddingModel is the model name sent to the embeddings API.
	EmbeddingModel string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty" mapstructure:"embedding_model"`

	// EmbeddingAPIKey authenticates against the embeddings API.
	EmbeddingAPIKey string `json:"embedding_api_key,omitempty" yaml:"embedding_api_key,omitempty" mapstructure:"embedding_api_key"`
}

// PolicyConfig holds settings for the masking policy engine.
type PolicyConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Reasoner selects "claude" or "rules" (default rules when no API key).
	Reasoner string `json:"reasoner" yaml:"reasoner" mapstructure:"reasoner"`
}

// OCRConfig holds settings for the OCR extractor.
type OCRConfig struct {
	// Backend is "tesseract" (in-process, needs the ocr build tag) or "container".
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Image is the container image used by the container backend.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// Languages is the tesseract language list (e.g. "kor+eng").
	Languages string `json:"languages" yaml:"languages" mapstructure:"languages"`
}

// AuditConfig holds settings for the asynchronous audit emitter.
type AuditConfig struct {
	// Path is the JSONL audit log; empty disables the file sink.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// QueueSize bounds pending events; further events are dropped (default 256).
	QueueSize int `json:"queue_size" yaml:"queue_size" mapstructure:"queue_size"`

	// Workers is the number of delivery goroutines (default 1).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// MaxSizeMB rotates the audit file after this many megabytes (default 50).
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`
}

// LoggingConfig holds settings for the process logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// File tees logs into a rotating file when set.
	File       string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
}

// StoreConfig holds settings for the run-result store.
type StoreConfig struct {
	// Dir holds runs.db.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// Config groups all component configurations.
type Config struct {
	Masking  MaskingConfig  `json:"masking" yaml:"masking" mapstructure:"masking"`
	Guidance GuidanceConfig `json:"guidance" yaml:"guidance" mapstructure:"guidance"`
	Policy   PolicyConfig   `json:"policy" yaml:"policy" mapstructure:"policy"`
	OCR      OCRConfig      `json:"ocr" yaml:"ocr" mapstructure:"ocr"`
	Audit    AuditConfig    `json:"audit" yaml:"audit" mapstructure:"audit"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
	Store    StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
}

// DefaultConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultConfig() Config {
	return Config{
		Masking: MaskingConfig{
			UploadDir:       "uploads",
			FileWorkers:     4,
			EntityWorkers:   8,
			DecisionTimeout: 20 * time.Second,
		},
		Guidance: GuidanceConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "pii-masker/0.1",
			},
			CorpusDir:  "guides",
			IndexDir:   "guides/index",
			TopK:       5,
			Dimensions: 512,
			Embedder:   EmbedderHash,
		},
		Policy: PolicyConfig{
			AIConfig: AIConfig{
				Model:      "claude-sonnet-4-5-20250929",
				MaxRetries: 3,
			},
			Reasoner: "rules",
		},
		OCR: OCRConfig{
			Backend:   "container",
			Image:     "jitesoft/tesseract-ocr:latest",
			Languages: "kor+eng",
		},
		Audit: AuditConfig{
			Path:      "audit/audit.jsonl",
			QueueSize: 256,
			Workers:   1,
			MaxSizeMB: 50,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  20,
			MaxBackups: 3,
		},
		Store: StoreConfig{
			Dir: "runs",
		},
	}
}
