package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/SlashRelay/internal/storage"
)

func TestDecodeRequestRejectsNonObjects(t *testing.T) {
	for _, frame := range []string{"not json", "[1,2]", `"login"`, "null", "42", ""} {
		_, err := DecodeRequest([]byte(frame))
		assert.ErrorIs(t, err, ErrInvalidFrame, "frame %q", frame)
	}
}

func TestRequestFieldTypes(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"action":"login","username":7,"room":"general"}`))
	require.NoError(t, err)

	assert.Equal(t, ActionLogin, req.Action())
	_, ok := req.String("username")
	assert.False(t, ok)
	room, ok := req.String("room")
	assert.True(t, ok)
	assert.Equal(t, "general", room)
	_, ok = req.String("message")
	assert.False(t, ok)
}

func TestRawAction(t *testing.T) {
	cases := map[string]string{
		`{}`:                 "null",
		`{"action":null}`:    "null",
		`{"action":"dance"}`: "dance",
		`{"action":5}`:       "5",
		`{"action":["x"]}`:   `["x"]`,
	}
	for frame, want := range cases {
		req, err := DecodeRequest([]byte(frame))
		require.NoError(t, err)
		assert.Equal(t, want, req.RawAction(), "frame %s", frame)
		if want != "dance" {
			assert.Equal(t, Action(""), req.Action())
		}
	}
}

func TestEncodeOKMergesExtraFields(t *testing.T) {
	frame, err := EncodeOK(EventSubscribed, map[string]interface{}{"room": "general"})
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(frame, &got))
	assert.Equal(t, map[string]interface{}{"type": "ok", "event": "subscribed", "room": "general"}, got)

	frame, err = EncodeOK(EventLogoutOK, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ok","event":"logout_ok"}`, string(frame))
}

func TestEncodeErrorDefaultsMessage(t *testing.T) {
	frame, err := EncodeError(CodeNotLoggedIn, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","code":"not_logged_in","message":"Login required before publishing"}`, string(frame))
}

func TestEncodeHistoryOrderAndShape(t *testing.T) {
	records := []storage.Record{
		{Room: "general", Username: "alice", Text: "one", Timestamp: "2024-05-01T12:00:00Z"},
		{Room: "general", Username: "bob", Text: "two", Timestamp: "2024-05-01T12:00:01Z"},
	}
	frame, err := EncodeHistory("general", records)
	require.NoError(t, err)

	env, err := DecodeServerEnvelope(frame)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeHistory, env.Type)
	assert.Equal(t, "general", env.Room)
	require.Len(t, env.Messages, 2)
	assert.Equal(t, MessageEnvelope{Type: MessageTypeMessage, Room: "general", Username: "alice", Message: "one", TS: "2024-05-01T12:00:00Z"}, env.Messages[0])
	assert.Equal(t, "two", env.Messages[1].Message)
}

func TestEncodeMessageFields(t *testing.T) {
	frame, err := EncodeMessage(storage.Record{Room: "general", Username: "bob", Text: "hi", Timestamp: "2024-05-01T12:00:00Z"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","room":"general","username":"bob","message":"hi","ts":"2024-05-01T12:00:00Z"}`, string(frame))
}
