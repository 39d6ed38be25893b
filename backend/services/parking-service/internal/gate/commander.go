package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/service"
)

// DefaultTopic carries commands to gate controllers.
const DefaultTopic = "gate_commands"

// Command is an instruction for a barrier gate.
type Command string

const (
	CommandOpen  Command = "OPEN"
	CommandClose Command = "CLOSE"
)

// ParseCommand accepts OPEN or CLOSE in any case.
func ParseCommand(raw string) (Command, error) {
	switch cmd := Command(strings.ToUpper(strings.TrimSpace(raw))); cmd {
	case CommandOpen, CommandClose:
		return cmd, nil
	}
	return "", fmt.Errorf("%w: unknown gate command %q", service.ErrInvalidInput, raw)
}

// Message is the wire format consumed by gate controllers.
type Message struct {
	GateID    string    `json:"gateId"`
	Command   Command   `json:"command"`
	Timestamp time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Commander publishes gate commands keyed by gate id, so each gate sees its commands in order.
type Commander struct {
	writer messageWriter
	now    func() time.Time
	logger *zap.Logger
}

// NewCommander builds commander.
func NewCommander(writer messageWriter, logger *zap.Logger) *Commander {
	return &Commander{
		writer: writer,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Send publishes cmd for gateID and returns the message written.
func (c *Commander) Send(ctx context.Context, gateID string, cmd Command) (*Message, error) {
	gateID = strings.TrimSpace(gateID)
	if gateID == "" {
		return nil, fmt.Errorf("%w: gate id is required", service.ErrInvalidInput)
	}
	if _, err := ParseCommand(string(cmd)); err != nil {
		return nil, err
	}

	msg := &Message{GateID: gateID, Command: cmd, Timestamp: c.now()}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := c.writer.WriteMessages(ctx, kafka.Message{Key: []byte(gateID), Value: payload}); err != nil {
		return nil, fmt.Errorf("publish gate command: %w", err)
	}
	c.logger.Info("gate command sent", zap.String("gate_id", gateID), zap.String("command", string(cmd)))
	return msg, nil
}

// Close flushes and closes the writer.
func (c *Commander) Close() error {
	return c.writer.Close()
}
