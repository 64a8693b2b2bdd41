// Package wire defines the JSON event frames exchanged over the real-time
// channel. Both the server and the terminal client depend on these shapes.
package wire

import "encoding/json"

// Event names carried in Frame.Event.
const (
	// EventUsers broadcasts the set of currently online usernames.
	EventUsers = "users"

	// EventHistoryPackets delivers the one-time history replay batch, oldest
	// envelope first, right after a handshake is accepted.
	EventHistoryPackets = "history_packets"

	// EventSendPacket is the client-to-server submission of one encrypted packet.
	EventSendPacket = "send_packet"

	// EventNewPacket is the server-to-client delivery of one encrypted packet,
	// sent to the recipient (when online) and echoed to the sender.
	EventNewPacket = "new_packet"
)

// Frame is the envelope of every message on the channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewFrame marshals payload and wraps it with the event name.
func NewFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: data}, nil
}

// Packet is one encrypted message as it travels over the channel. CreatedAt
// is empty on send_packet and set (RFC 3339, UTC) on new_packet and in
// history batches.
type Packet struct {
	From          string `json:"from"`
	To            string `json:"to"`
	IVB64         string `json:"iv_b64"`
	CiphertextB64 string `json:"ct_b64"`
	EncKeyToB64   string `json:"enc_key_to_b64"`
	EncKeyFromB64 string `json:"enc_key_from_b64"`
	CreatedAt     string `json:"created_at,omitempty"`
}
