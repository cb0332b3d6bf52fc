package transport

import (
	"encoding/json"

	"github.com/parley/parley/internal/msgcodec"
)

// Envelope is the wire frame exchanged over the websocket session. A
// non-empty RequestID correlates a request with its response: the client
// sets it on outbound Call frames, and the server's matching reply (or a
// client's reply to a server-initiated receive_command) echoes it back.
// A non-zero Compression means Payload holds a base64-encoded, compressed
// blob rather than the payload's JSON directly; writeEnvelope/receiveLoop
// apply msgcodec.Compress/Decompress around that encoding transparently.
type Envelope struct {
	Event       string               `json:"event"`
	RequestID   string               `json:"request_id,omitempty"`
	Payload     json.RawMessage      `json:"payload,omitempty"`
	Compression msgcodec.Compression `json:"compression,omitempty"`
}

func marshalPayload(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
