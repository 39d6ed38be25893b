package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartpark/backend/services/parking-service/internal/models"
)

// ErrMalformedEvent marks payloads that can never be applied. They are acknowledged and
// logged, never retried.
var ErrMalformedEvent = errors.New("malformed sensor event")

// ParseStatus maps a wire status onto the closed occupancy enumeration.
func ParseStatus(raw string) (models.OccupancyStatus, error) {
	switch status := models.OccupancyStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case models.OccupancyOccupied, models.OccupancyFree:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrMalformedEvent, raw)
}

// queueMessage is the structured sensor message carried on the sensor topic.
type queueMessage struct {
	SlotID       string `json:"slotId"`
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
	LicensePlate string `json:"licensePlate"`
}

// DecodeQueueMessage parses {slotId, status, timestamp?, licensePlate?}.
func DecodeQueueMessage(value []byte) (models.SensorEvent, error) {
	var msg queueMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return models.SensorEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	slotID := strings.TrimSpace(msg.SlotID)
	if slotID == "" {
		return models.SensorEvent{}, fmt.Errorf("%w: slotId is required", ErrMalformedEvent)
	}
	status, err := ParseStatus(msg.Status)
	if err != nil {
		return models.SensorEvent{}, err
	}
	ts, err := parseTimestamp(msg.Timestamp)
	if err != nil {
		return models.SensorEvent{}, err
	}
	return models.SensorEvent{
		SlotID:       slotID,
		Status:       status,
		Timestamp:    ts,
		LicensePlate: strings.TrimSpace(msg.LicensePlate),
		Raw:          value,
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedEvent, raw)
	}
	return ts.UTC(), nil
}

// mqttPayload is the JSON form some sensors publish instead of a bare status.
type mqttPayload struct {
	SlotID       string   `json:"slot_id"`
	Status       string   `json:"status"`
	DistanceCM   *float64 `json:"distance_cm"`
	LicensePlate string   `json:"license_plate"`
}

// SlotIDFromTopic extracts {id} from parking/slot/{id}/status.
func SlotIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "parking" || parts[1] != "slot" || parts[3] != "status" {
		return "", false
	}
	id := strings.TrimSpace(parts[2])
	return id, id != ""
}

// DecodeMQTT parses a message from parking/slot/{id}/status. The body is either a bare
// status ("OCCUPIED", "FREE") or a JSON object; the topic's slot id wins over the body's.
func DecodeMQTT(topic string, payload []byte) (models.SensorEvent, error) {
	slotID, _ := SlotIDFromTopic(topic)
	body := bytes.TrimSpace(payload)

	ev := models.SensorEvent{Raw: payload}
	if len(body) > 0 && body[0] == '{' {
		var p mqttPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return models.SensorEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if slotID == "" {
			slotID = strings.TrimSpace(p.SlotID)
		}
		status, err := ParseStatus(p.Status)
		if err != nil {
			return models.SensorEvent{}, err
		}
		ev.Status = status
		ev.LicensePlate = strings.TrimSpace(p.LicensePlate)
	} else {
		status, err := ParseStatus(string(body))
		if err != nil {
			return models.SensorEvent{}, err
		}
		ev.Status = status
	}

	if slotID == "" {
		return models.SensorEvent{}, fmt.Errorf("%w: no slot id in topic %q", ErrMalformedEvent, topic)
	}
	ev.SlotID = slotID
	return ev, nil
}
