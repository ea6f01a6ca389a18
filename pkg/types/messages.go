// Package types defines the wire protocol shared by the server and the
// Go client.
package types

import (
	"encoding/json"

	"github.com/coloc-game/backend/internal/engine"
)

// ActionEnvelope is the client -> server frame. Seq is optional; when
// set, the server answers that request (and only that request) with an
// Ack frame carrying the same Seq.
type ActionEnvelope struct {
	Seq     int64           `json:"seq,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Server -> client frame types.
const (
	MsgState = "state" // full {sessions, teams} snapshot
	MsgAck   = "ack"   // per-request acknowledgment
	MsgError = "error" // transport-level failure (bad json)
)

type ServerMessage struct {
	Type    string        `json:"type"`
	Seq     int64         `json:"seq,omitempty"`
	Version int           `json:"version,omitempty"`
	State   *engine.State `json:"state,omitempty"`
	Ack     *engine.Ack   `json:"ack,omitempty"`
	Error   string        `json:"error,omitempty"`
}
