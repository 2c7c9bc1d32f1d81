package session

import "encoding/json"

// Inbound event names understood by the hub.
const (
	EventRegister      = "register"
	EventSeek          = "seek"
	EventPlay          = "play"
	EventToggle        = "toggle"
	EventStop          = "stop"
	EventVolume        = "volume"
	EventFileReady     = "file-ready"
	EventPingTime      = "ping-time"
	EventGetServerTime = "get-server-time"
	EventHostMute      = "host-mute"
	EventHostKick      = "host-kick"
)

// Outbound event names produced by the hub.
const (
	EventPongTime   = "pong-time"
	EventServerTime = "server-time"
	EventMute       = "mute"
	EventKick       = "kick"
	EventUserList   = "update-user-list"
)

// Envelope is the wire format: one JSON object per text frame. The payload
// stays opaque to the relay; only the event name drives routing.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RosterEntry is one participant in the published roster, in registration
// order. The connection id is surfaced here so clients can address
// moderation targets.
type RosterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// relayEvents are the sender-exclusive broadcast events: the originator is
// already in the resulting state locally, so re-delivering to it would echo
// the action back into its own player.
var relayEvents = map[string]struct{}{
	EventSeek:      {},
	EventPlay:      {},
	EventToggle:    {},
	EventStop:      {},
	EventVolume:    {},
	EventFileReady: {},
}

func isRelayEvent(event string) bool {
	_, ok := relayEvents[event]
	return ok
}

// encodeEvent marshals an outbound envelope. Payloads are values the hub
// fully controls, so marshaling cannot fail in practice; a nil slice is
// returned on the impossible path and dropped by the caller.
func encodeEvent(event string, data any) []byte {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil
		}
		env.Data = raw
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil
	}
	return payload
}
