// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"strings"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"

	"github.com/pdiddy/pii-masker/pkg/types"
)

var decisionPromptTmpl = template.Must(template.New("decision").Parse(`You are a privacy compliance reviewer. Decide how one piece of personal information in an outgoing document must be handled.

Entity type: {{.Type}} ({{.Describe}})
Masked preview: {{.Preview}}
Detection score: {{printf "%.2f" .Score}}

Business context:
- sender: {{.Context.SenderType}}
- receiver: {{.Context.ReceiverType}}
- purpose: {{.Context.Purpose}}
- consent obtained: {{.Context.HasConsent}}
{{if .Passages}}
Relevant guidance:
{{range .Passages}}[{{.ID}}] ({{.Kind}}) {{.Title}}
{{.Content}}

{{end}}{{else}}
No guidance passages were found; rely on general data protection principles.
{{end}}
Choose exactly one action:
- "mask": remove the value entirely
- "partial_mask": hide most of the value
- "keep": leave the value visible

Cite only the bracketed passage ids above: guide ids in referenced_guides, law ids in referenced_laws.

Respond with a single JSON object and nothing else:
{"action": "mask", "reasoning": "...", "referenced_guides": ["..."], "referenced_laws": ["..."], "confidence": 0.9}
`))

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// ClaudeReasoner asks the Anthropic Messages API for a decision.
type ClaudeReasoner struct {
	client     anthropic.Client
	model      anthropic.Model
	maxRetries int
}

// NewClaudeReasoner returns a reasoner for cfg. Extra request options are
// appended after the API key, which lets tests point it at a local server.
func NewClaudeReasoner(cfg types.PolicyConfig, opts ...option.RequestOption) (*ClaudeReasoner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude reasoner requires an API key")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	// Retries are handled here so backoff follows backoffBase.
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}, opts...)
	return &ClaudeReasoner{
		client:     anthropic.NewClient(opts...),
		model:      anthropic.Model(cfg.Model),
		maxRetries: maxRetries,
	}, nil
}

// Reason renders the prompt, calls the API with retry and parses the JSON
// reply.
func (c *ClaudeReasoner) Reason(ctx context.Context, req Request) (Reply, error) {
	prompt, err := renderPrompt(req)
	if err != nil {
		return Reply{}, fmt.Errorf("rendering prompt: %w", err)
	}
	text, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		return Reply{}, err
	}
	return parseReply(text)
}

func (c *ClaudeReasoner) callWithRetry(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   1024,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		msg, err := c.client.Messages.New(ctx, params)
		if err == nil {
			for _, block := range msg.Content {
				if block.Type == "text" {
					return block.Text, nil
				}
			}
			return "", fmt.Errorf("no text content in Claude API response")
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("calling Claude API: %w", err)
		}
	}
	return "", fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func renderPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Request
		Describe string
	}{req, req.Type.Describe()}
	if err := decisionPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parseReply extracts the JSON object from a model reply, tolerating code
// fences and surrounding prose.
func parseReply(text string) (Reply, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Reply{}, fmt.Errorf("reply is not JSON: %q", truncate(text, 80))
	}
	var r Reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return Reply{}, fmt.Errorf("parsing reply JSON: %w", err)
	}
	return r, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
