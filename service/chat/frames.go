package chat

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Frame is the JSON envelope carried over the websocket in both directions.
//
//	{"event":"chat:chatMessage","ack_id":"183...","data":{...}}
//
// A frame with an ack_id asks the other side to reply with an "ack" frame
// carrying the same id; the data of that ack frame is the reply payload.
type Frame struct {
	Event string         `json:"event"`
	AckID string         `json:"ack_id,omitempty"`
	Error string         `json:"error,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "parse frame")
	}
	if f.Event == "" {
		return nil, errors.New("frame missing event")
	}
	return &f, nil
}

func EncodeFrame(event, ackID string, data any) ([]byte, error) {
	m, err := toMap(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Frame{Event: event, AckID: ackID, Data: m})
}

// AckFrame builds the reply to a frame that carried an ack_id.
func AckFrame(ackID string, data any) ([]byte, error) {
	m, err := toMap(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Frame{Event: EventAck, AckID: ackID, Data: m})
}

func toMap(data any) (map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "encode frame data")
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errors.Wrap(err, "encode frame data")
		}
		return m, nil
	}
}
