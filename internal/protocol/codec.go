package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fenggwsx/SlashRelay/internal/storage"
)

// ErrInvalidFrame is returned for frames that are not a JSON object.
var ErrInvalidFrame = errors.New("protocol: frame is not a JSON object")

// Request is a decoded inbound envelope. Field values keep their JSON types so
// handlers can reject non-string values.
type Request struct {
	fields map[string]interface{}
}

// DecodeRequest parses one inbound frame.
func DecodeRequest(frame []byte) (Request, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(frame, &fields); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if fields == nil {
		return Request{}, ErrInvalidFrame
	}
	return Request{fields: fields}, nil
}

// Action returns the action name, or "" when absent or not a string.
func (r Request) Action() Action {
	s, _ := r.String("action")
	return Action(s)
}

// RawAction renders the action field as sent, for error messages.
func (r Request) RawAction() string {
	value, ok := r.fields["action"]
	if !ok || value == nil {
		return "null"
	}
	if s, ok := value.(string); ok {
		return s
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

// String returns the field value if it is present and a JSON string.
func (r Request) String(key string) (string, bool) {
	if r.fields == nil {
		return "", false
	}
	value, ok := r.fields[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// NewMessageEnvelope converts a record to its wire form.
func NewMessageEnvelope(rec storage.Record) MessageEnvelope {
	return MessageEnvelope{
		Type:     MessageTypeMessage,
		Room:     rec.Room,
		Username: rec.Username,
		Message:  rec.Text,
		TS:       rec.Timestamp,
	}
}

// EncodeMessage serializes a message envelope.
func EncodeMessage(rec storage.Record) ([]byte, error) {
	return json.Marshal(NewMessageEnvelope(rec))
}

// EncodeHistory serializes a replay burst, oldest record first.
func EncodeHistory(room string, records []storage.Record) ([]byte, error) {
	env := HistoryEnvelope{
		Type:     MessageTypeHistory,
		Room:     room,
		Messages: make([]MessageEnvelope, 0, len(records)),
	}
	for _, rec := range records {
		env.Messages = append(env.Messages, NewMessageEnvelope(rec))
	}
	return json.Marshal(env)
}

// EncodeOK serializes {type: ok, event, ...extra}.
func EncodeOK(event string, extra map[string]interface{}) ([]byte, error) {
	body := make(map[string]interface{}, len(extra)+2)
	for k, v := range extra {
		body[k] = v
	}
	body["type"] = MessageTypeOK
	body["event"] = event
	return json.Marshal(body)
}

// EncodeError serializes an error envelope. An empty message uses the code's
// default text.
func EncodeError(code ErrorCode, message string) ([]byte, error) {
	if message == "" {
		message = code.DefaultMessage()
	}
	return json.Marshal(ErrorEnvelope{Type: MessageTypeError, Code: code, Message: message})
}

// EncodeAction serializes a client request.
func EncodeAction(env ActionEnvelope) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeServerEnvelope parses a frame received by a client.
func DecodeServerEnvelope(frame []byte) (ServerEnvelope, error) {
	var env ServerEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, err
	}
	return env, nil
}
