package ws

import (
	"github.com/hulld/hulld/internal/geometry"
)

type MessageType string

const (
	MsgSnapshot  MessageType = "snapshot"
	MsgArea      MessageType = "area"
	MsgThreshold MessageType = "threshold"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// SnapshotPayload carries the full current graph plus its hull area.
type SnapshotPayload struct {
	Points []geometry.Point `json:"points"`
	Area   float64          `json:"area"`
}

// AreaPayload is sent whenever a command recomputes the hull.
type AreaPayload struct {
	Area float64 `json:"area"`
}

// ThresholdPayload is sent when the hull area crosses the watch threshold.
type ThresholdPayload struct {
	Above   bool    `json:"above"`
	Area    float64 `json:"area"`
	Message string  `json:"message"`
}
