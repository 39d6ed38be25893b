package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/models"
)

func TestHubBroadcastsSlotUpdates(t *testing.T) {
	hub := NewHub(time.Hour, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(NewServer(hub, time.Second, zap.NewNop()).HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.PublishSlotUpdate(context.Background(), models.SlotUpdate{SlotID: "A1", Status: models.SlotOccupied}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got models.SlotUpdate
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.SlotUpdate{SlotID: "A1", Status: models.SlotOccupied}, got)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubWithoutClients(t *testing.T) {
	hub := NewHub(0, zap.NewNop())
	assert.Equal(t, "ws", hub.Name())
	assert.NoError(t, hub.PublishSlotUpdate(context.Background(), models.SlotUpdate{SlotID: "A1", Status: models.SlotFree}))
	assert.Zero(t, hub.Len())
}
