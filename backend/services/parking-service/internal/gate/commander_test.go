package gate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/service"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestSendPublishesKeyedMessage(t *testing.T) {
	w := &captureWriter{}
	c := NewCommander(w, zap.NewNop())
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	msg, err := c.Send(context.Background(), "G1", CommandOpen)
	require.NoError(t, err)
	assert.Equal(t, CommandOpen, msg.Command)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "G1", string(w.msgs[0].Key))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, map[string]string{"gateId": "G1", "command": "OPEN", "timestamp": "2025-03-01T09:00:00Z"}, decoded)
}

func TestSendValidates(t *testing.T) {
	c := NewCommander(&captureWriter{}, zap.NewNop())

	_, err := c.Send(context.Background(), "G1", Command("LIFT"))
	require.ErrorIs(t, err, service.ErrInvalidInput)
	_, err = c.Send(context.Background(), " ", CommandClose)
	require.ErrorIs(t, err, service.ErrInvalidInput)

	cmd, err := ParseCommand("close")
	require.NoError(t, err)
	assert.Equal(t, CommandClose, cmd)
}

func TestSendSurfacesWriterErrors(t *testing.T) {
	boom := errors.New("broker down")
	c := NewCommander(&captureWriter{err: boom}, zap.NewNop())

	_, err := c.Send(context.Background(), "G1", CommandOpen)
	require.ErrorIs(t, err, boom)
}
