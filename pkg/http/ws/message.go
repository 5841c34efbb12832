package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypePing = "ping"

	// Server -> Client
	TypeLeaderboardSnapshot = "leaderboard_snapshot"
	TypeLeaderboardUpdate   = "leaderboard_update"
	TypeError               = "error"
	TypePong                = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage encodes payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// LeaderboardUpdatePayload carries the weekly board and champion for one mode.
type LeaderboardUpdatePayload struct {
	Mode       string             `json:"mode"`
	Top        []LeaderboardEntry `json:"top"`
	Champion   *LeaderboardEntry  `json:"champion"`
	RecordedID string             `json:"recorded_id,omitempty"`
}

// LeaderboardEntry is one row of a leaderboard as sent to clients.
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percent    float64 `json:"percent"`
	RecordedAt string  `json:"recorded_at"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
