// Package realtime owns socket transport: per-connection write loops, the
// group room hub, and emitters that fan frames out locally or across
// processes.
package realtime

import "encoding/json"

// Server-emitted event names.
const (
	EventUserPresence         = "userPresence"
	EventNewMessage           = "newMessage"
	EventUserTyping           = "userTyping"
	EventNewReaction          = "newReaction"
	EventThreadCreated        = "threadCreated"
	EventThreadMessages       = "threadMessages"
	EventAdminActionPerformed = "adminActionPerformed"
	EventCountdownStarted     = "countdownStarted"
	EventCountdownEnded       = "countdownEnded"
	EventQuoteMacro           = "quoteMacro"
	EventVoiceRoomUpdate      = "voiceRoomUpdate"
	EventLevelUp              = "levelUp"
	EventMemberRemoved        = "memberRemoved"
	EventConnected            = "connected"
	EventError                = "error"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func EncodeFrame(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

func DecodeFrame(payload []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(payload, &f)
	return f, err
}
