package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/campus_lending/internal/metrics"
	"go.uber.org/zap"
)

// Envelope is the wire shape of every pushed event
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals payload into an envelope for event
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Hub fans events out to the members of a room. Delivery is best effort:
// members that joined later never see the event, and a failing member does
// not stop delivery to the others.
type Hub struct {
	registry *Registry
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		registry: NewRegistry(),
		logger:   logger,
		metrics:  m,
	}
}

// Registry returns the room registry of the hub
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Publish delivers event to everyone currently in room
func (h *Hub) Publish(room, event string, payload any) {
	msg, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}

	members := h.registry.MembersOf(room)
	for _, m := range members {
		if err := m.Deliver(msg); err != nil {
			h.metrics.ObserveDelivery(event, false)
			h.logger.Warn("Event delivery failed",
				zap.String("room", room),
				zap.String("event", event),
				zap.String("member_id", m.ID()),
				zap.Error(err),
			)
			continue
		}
		h.metrics.ObserveDelivery(event, true)
	}

	h.logger.Debug("Event published",
		zap.String("room", room),
		zap.String("event", event),
		zap.Int("members", len(members)),
	)
}
