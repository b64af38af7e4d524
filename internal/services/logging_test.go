package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

func TestLogRowFailureRedactsPersonalFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewServiceLogger(slog.New(slog.NewJSONHandler(&buf, nil)), LogConfig{Service: "import", Component: "commit"})

	l.LogRowFailure(context.Background(), "s-1", 4, importer.Record{
		importer.FieldFirstName:    "Aoife",
		importer.FieldEmail:        "aoife@example.com",
		importer.FieldMedicalNotes: "asthma",
	}, errors.New("constraint failed"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Import row failed", line["msg"])
	assert.Equal(t, float64(4), line["row_index"])

	record, ok := line["record"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Aoife", record["firstName"])
	assert.Equal(t, "[REDACTED]", record["email"])
	assert.Equal(t, "[REDACTED]", record["medicalNotes"])
	assert.NotContains(t, buf.String(), "aoife@example.com")
}

func TestLogRowFailureWithoutRecord(t *testing.T) {
	var buf bytes.Buffer
	l := NewServiceLogger(slog.New(slog.NewJSONHandler(&buf, nil)), LogConfig{})

	l.LogRowFailure(context.Background(), "s-1", 0, nil, errors.New("player gone"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "record")
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", ValidationErrors{*NewValidationError("step", "required", nil)}, "validation"},
		{"business rule", newRuleError(ErrUndoWindowClosed, "undo_eligibility", "too late", nil), "business_rule"},
		{"permission", NewPermissionError("u", "s-1", "import_session", "edit", "not the owner"), "permission"},
		{"not found", fmt.Errorf("load: %w", ErrSessionNotFound), "not_found"},
		{"conflict", ErrActiveSessionExists, "conflict"},
		{"internal", errors.New("database is down"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatError(tt.err)
			assert.Equal(t, tt.want, got["type"])
			assert.Equal(t, tt.err.Error(), got["message"])
		})
	}
	assert.Nil(t, FormatError(nil))
}
