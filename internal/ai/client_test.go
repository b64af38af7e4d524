package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// writeAnswer replies with a minimal Messages API response holding text.
func writeAnswer(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"model":       DefaultModel,
		"stop_reason": "end_turn",
		"content":     []map[string]string{{"type": "text", "text": text}},
	})
}

// sentRequest is the part of the Messages API request body the tests inspect.
type sentRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", Endpoint: srv.URL, Timeout: time.Second}, discardLogger())
}

var request = importer.SuggestionRequest{
	ColumnName:      "Kit",
	SampleValues:    []string{"S", "M"},
	AvailableFields: []importer.TargetField{importer.FieldTeam, importer.FieldSeason},
}

func TestSuggestSendsRequest(t *testing.T) {
	var got sentRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeAnswer(w, `{"targetField": "team", "confidence": 72.4, "reasoning": "kit sizes track the team"}`)
	})

	s, err := client.Suggest(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, importer.FieldTeam, s.TargetField)
	assert.Equal(t, 72, s.Confidence)
	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	require.Len(t, got.Messages[0].Content, 1)
	assert.Contains(t, got.Messages[0].Content[0].Text, `"Kit"`)
	assert.Contains(t, got.Messages[0].Content[0].Text, "team, season")
}

func TestSuggestToleratesProse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeAnswer(w, "Sure:\n{\"targetField\": \"season\", \"confidence\": 61, \"reasoning\": \"years\"}\n")
	})
	s, err := client.Suggest(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, importer.FieldSeason, s.TargetField)
}

func TestSuggestNoUsableAnswer(t *testing.T) {
	cases := map[string]string{
		"null field":        `{"targetField": null, "confidence": 0, "reasoning": "no idea"}`,
		"unknown field":     `{"targetField": "shoeSize", "confidence": 90, "reasoning": ""}`,
		"field unavailable": `{"targetField": "email", "confidence": 90, "reasoning": ""}`,
		"not json":          `I cannot tell.`,
		"extra keys":        `{"targetField": "team", "confidence": 90, "reasoning": "", "alt": "x"}`,
		"bad confidence":    `{"targetField": "team", "confidence": 140, "reasoning": ""}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeAnswer(w, text)
			})
			s, err := client.Suggest(context.Background(), request)
			require.NoError(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestSuggestAPIError(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`)
	})
	s, err := client.Suggest(context.Background(), request)
	assert.Nil(t, s)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "rate_limit_error")
	assert.Equal(t, 1, calls, "failed calls are not retried")
}

func TestSuggestTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Suggest(ctx, request)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNoopAssistant(t *testing.T) {
	s, err := NoopAssistant{}.Suggest(context.Background(), request)
	assert.NoError(t, err)
	assert.Nil(t, s)
}
