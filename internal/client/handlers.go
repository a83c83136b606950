package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fenggwsx/SlashRelay/internal/protocol"
)

const historyFooter = "-------------------------------------------"

func (a *App) handleFrame(frame Frame) {
	env := frame.Envelope
	a.appendPipeEntry(pipeDirectionIn, string(env.Type), frame.Raw)
	if frame.Err != nil {
		a.appendChatLine(string(frame.Raw))
		return
	}

	switch env.Type {
	case protocol.MessageTypeError:
		a.appendChatLine(formatError(env.Code, env.Message))
		a.logErrorf("%s: %s", env.Code, env.Message)
		if env.Code == protocol.CodeUsernameTaken || env.Code == protocol.CodeInvalidUsername {
			a.pendingUser = ""
		}
	case protocol.MessageTypeOK:
		a.handleOK(env)
	case protocol.MessageTypeHistory:
		for _, line := range formatHistory(env.Room, env.Messages) {
			a.appendChatLine(line)
		}
		if len(env.Messages) > 0 {
			a.logf("Replayed %d messages for %s", len(env.Messages), env.Room)
		}
	case protocol.MessageTypeMessage:
		a.appendChatLine(formatMessage(protocol.MessageEnvelope{
			Room:     env.Room,
			Username: env.Username,
			Message:  env.Message,
			TS:       env.TS,
		}))
	default:
		a.appendChatLine(string(frame.Raw))
	}
}

func (a *App) handleOK(env protocol.ServerEnvelope) {
	switch env.Event {
	case protocol.EventLoginOK:
		a.username = env.Username
		a.pendingUser = ""
		a.logf("Logged in as %s", env.Username)
	case protocol.EventSubscribed:
		a.addRoom(env.Room)
		a.logf("Subscribed to room %s", env.Room)
	case protocol.EventUnsubscribed:
		a.removeRoom(env.Room)
		a.logf("Left room %s", env.Room)
	case protocol.EventLogoutOK:
		a.username = ""
		a.rooms = nil
		a.logf("Logged out.")
	default:
		a.logf("Server confirmed %s", env.Event)
	}
}

func (a *App) addRoom(room string) {
	for _, r := range a.rooms {
		if r == room {
			return
		}
	}
	a.rooms = append(a.rooms, room)
	sort.Strings(a.rooms)
}

func (a *App) removeRoom(room string) {
	for i, r := range a.rooms {
		if r == room {
			a.rooms = append(a.rooms[:i], a.rooms[i+1:]...)
			break
		}
	}
	if a.lastRoom == room {
		a.lastRoom = ""
	}
}

func formatMessage(m protocol.MessageEnvelope) string {
	return fmt.Sprintf("[%s] %s | %s: %s", m.TS, m.Room, m.Username, m.Message)
}

func formatHistory(room string, messages []protocol.MessageEnvelope) []string {
	if len(messages) == 0 {
		return nil
	}
	lines := make([]string, 0, len(messages)+2)
	lines = append(lines, fmt.Sprintf("--- Last %d messages in %s ---", len(messages), room))
	for _, m := range messages {
		lines = append(lines, formatMessage(m))
	}
	return append(lines, historyFooter)
}

func formatError(code protocol.ErrorCode, message string) string {
	return fmt.Sprintf("[ERROR] %s: %s", code, message)
}

func (a *App) appendChatLine(line string) {
	line = strings.TrimRight(line, "\n")
	if line == "" {
		return
	}
	a.chatHistory = append(a.chatHistory, line)
	if len(a.chatHistory) > chatHistoryLimit {
		a.chatHistory = a.chatHistory[len(a.chatHistory)-chatHistoryLimit:]
	}
	if a.view == viewChat {
		a.updateViewportContent()
	}
}

func (a *App) appendPipeEntry(direction pipeDirection, messageType string, raw []byte) {
	entry := pipeEntry{
		direction:   direction,
		messageType: messageType,
		timestamp:   time.Now(),
		body:        string(raw),
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err == nil {
		entry.body = pretty.String()
	}

	if len(a.pipeHistory) >= pipeHistoryLimit {
		a.pipeHistory = append(a.pipeHistory[1:], entry)
	} else {
		a.pipeHistory = append(a.pipeHistory, entry)
	}
	if a.view == viewPipe {
		a.updateViewportContent()
	}
}
