package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEventPublisher(t *testing.T) {
	pub := NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, pub.Publish(context.Background(), NewImportStartedEvent("org-1", ImportStartedEvent{SessionID: "s1", TotalRows: 4})))
	require.NoError(t, pub.Publish(context.Background(), NewImportCompletedEvent("org-1", ImportCompletedEvent{SessionID: "s1", Created: 3, Skipped: 1})))

	assert.Len(t, pub.GetPublishedEvents(), 2)
	completed := pub.EventsOfType(EventImportCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "org-1", completed[0].OrganizationID)
	assert.Equal(t, eventSource, completed[0].Source)
	assert.NotEmpty(t, completed[0].ID)

	pub.ClearEvents()
	assert.Empty(t, pub.GetPublishedEvents())
	assert.NoError(t, pub.Close())
}

func TestImportEventJSON(t *testing.T) {
	ev := NewImportUndoneEvent("org-9", ImportUndoneEvent{SessionID: "s2", Deleted: 2, Full: true})
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "import.undone", decoded["type"])
	payload := decoded["data"].(map[string]any)
	assert.Equal(t, float64(2), payload["deleted"])
	assert.Equal(t, true, payload["full"])
}

func TestGenerateEventIDUnique(t *testing.T) {
	assert.NotEqual(t, GenerateEventID(), GenerateEventID())
}

func TestOrganizationPartitionKey(t *testing.T) {
	msg := message.NewMessage("m-1", []byte("{}"))
	key, err := organizationPartitionKey("imports", msg)
	require.NoError(t, err)
	assert.Equal(t, "m-1", key)

	msg.Metadata.Set("organization_id", "org-7")
	key, err = organizationPartitionKey("imports", msg)
	require.NoError(t, err)
	assert.Equal(t, "org-7", key)
}
