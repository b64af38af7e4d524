// Package ai is the AI Mapping Assistant. It asks the Anthropic Messages API
// which roster field an unknown column holds.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

const DefaultModel = "claude-3-5-haiku-20241022"

// ErrUnavailable wraps transport and API failures.
var ErrUnavailable = errors.New("ai assistant unavailable")

type Config struct {
	APIKey string
	Model  string
	// Endpoint overrides the API base URL, e.g. for a proxy.
	Endpoint  string
	Timeout   time.Duration
	MaxTokens int
}

type Client struct {
	cfg    Config
	api    anthropic.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}

	// The mapper falls back to manual mapping on failure, so no retries.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &Client{
		cfg:    cfg,
		api:    anthropic.NewClient(opts...),
		logger: logger,
	}
}

var _ importer.Assistant = (*Client)(nil)

// suggestion is the JSON object the model is told to answer with.
type suggestion struct {
	TargetField *string `json:"targetField"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

const systemPrompt = `You map spreadsheet columns of a sports club player roster to a fixed set of fields.
Answer with a single JSON object and nothing else:
{"targetField": "<one of the available fields or null>", "confidence": <0-100>, "reasoning": "<one sentence>"}
Use null when no field fits.`

// Suggest asks the model for a field. It returns nil, nil when the model has
// no usable answer, and an error wrapping ErrUnavailable when the call fails.
func (c *Client) Suggest(ctx context.Context, req importer.SuggestionRequest) (*importer.Suggestion, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.MaxTokens),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req)))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, apiErr.StatusCode, apiErr.RawJSON())
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	s, err := parseSuggestion(text.String(), req.AvailableFields)
	if err != nil {
		c.logger.WarnContext(ctx, "Discarding malformed AI mapping answer", "column", req.ColumnName, "error", err)
		return nil, nil
	}
	return s, nil
}

func buildPrompt(req importer.SuggestionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Column name: %q\n", req.ColumnName)
	b.WriteString("Sample values:\n")
	for _, v := range req.SampleValues {
		fmt.Fprintf(&b, "- %q\n", v)
	}
	b.WriteString("Available fields: ")
	for i, f := range req.AvailableFields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(f))
	}
	b.WriteString("\n")
	return b.String()
}

// parseSuggestion extracts the JSON object from the model text. A field
// outside the available set is treated as no suggestion.
func parseSuggestion(text string, available []importer.TargetField) (*importer.Suggestion, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object in answer")
	}

	var s suggestion
	dec := json.NewDecoder(strings.NewReader(text[start : end+1]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if s.TargetField == nil || *s.TargetField == "" {
		return nil, nil
	}

	field := importer.TargetField(*s.TargetField)
	if !field.Valid() || (len(available) > 0 && !slices.Contains(available, field)) {
		return nil, nil
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return nil, fmt.Errorf("confidence %v out of range", s.Confidence)
	}
	return &importer.Suggestion{
		TargetField: field,
		Confidence:  int(s.Confidence + 0.5),
		Reasoning:   s.Reasoning,
	}, nil
}

// NoopAssistant never suggests anything; used when AI is disabled.
type NoopAssistant struct{}

func (NoopAssistant) Suggest(context.Context, importer.SuggestionRequest) (*importer.Suggestion, error) {
	return nil, nil
}
