package protocol

// Action names a client request.
type Action string

const (
	ActionLogin       Action = "login"
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionPublish     Action = "publish"
	ActionLogout      Action = "logout"
)

// MessageType enumerates outbound envelope kinds.
type MessageType string

const (
	MessageTypeOK      MessageType = "ok"
	MessageTypeError   MessageType = "error"
	MessageTypeHistory MessageType = "history"
	MessageTypeMessage MessageType = "message"
)

// Events carried by ok envelopes.
const (
	EventLoginOK      = "login_ok"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventLogoutOK     = "logout_ok"
)

// ErrorCode is the machine readable part of an error envelope.
type ErrorCode string

const (
	CodeInvalidJSON     ErrorCode = "invalid_json"
	CodeInvalidUsername ErrorCode = "invalid_username"
	CodeUsernameTaken   ErrorCode = "username_taken"
	CodeInvalidRoom     ErrorCode = "invalid_room"
	CodeInvalidMessage  ErrorCode = "invalid_message"
	CodeNotLoggedIn     ErrorCode = "not_logged_in"
	CodeUnknownAction   ErrorCode = "unknown_action"
)

// Websocket close codes sent by the server.
const (
	CloseNormal        = 1000
	CloseGoingAway     = 1001
	CloseUsernameTaken = 4000
)

var defaultMessages = map[ErrorCode]string{
	CodeInvalidJSON:     "Message must be valid JSON",
	CodeInvalidUsername: "'username' must be a non-empty string",
	CodeUsernameTaken:   "Username already in use",
	CodeInvalidRoom:     "'room' must be a non-empty string",
	CodeInvalidMessage:  "'message' must be a non-empty string",
	CodeNotLoggedIn:     "Login required before publishing",
	CodeUnknownAction:   "Unknown action",
}

// DefaultMessage returns the human readable text sent with c.
func (c ErrorCode) DefaultMessage() string {
	if msg, ok := defaultMessages[c]; ok {
		return msg
	}
	return string(c)
}

// ActionEnvelope is what clients send.
type ActionEnvelope struct {
	Action   Action `json:"action"`
	Username string `json:"username,omitempty"`
	Room     string `json:"room,omitempty"`
	Message  string `json:"message,omitempty"`
}

// MessageEnvelope carries one published record.
type MessageEnvelope struct {
	Type     MessageType `json:"type"`
	Room     string      `json:"room"`
	Username string      `json:"username"`
	Message  string      `json:"message"`
	TS       string      `json:"ts"`
}

// HistoryEnvelope is the replay burst sent after a subscribe.
type HistoryEnvelope struct {
	Type     MessageType       `json:"type"`
	Room     string            `json:"room"`
	Messages []MessageEnvelope `json:"messages"`
}

// ErrorEnvelope reports a rejected request to its sender.
type ErrorEnvelope struct {
	Type    MessageType `json:"type"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
}

// ServerEnvelope is the union of every outbound envelope, used by clients to
// decode frames before switching on Type.
type ServerEnvelope struct {
	Type     MessageType       `json:"type"`
	Event    string            `json:"event,omitempty"`
	Code     ErrorCode         `json:"code,omitempty"`
	Message  string            `json:"message,omitempty"`
	Room     string            `json:"room,omitempty"`
	Username string            `json:"username,omitempty"`
	TS       string            `json:"ts,omitempty"`
	Messages []MessageEnvelope `json:"messages,omitempty"`
}
