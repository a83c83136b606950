package client

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenggwsx/SlashRelay/internal/protocol"
)

func defaultCommands(prefix rune) []commandSpec {
	p := string(prefix)
	return []commandSpec{
		{trigger: p + "connect", usage: p + "connect [addr]", description: "Connect to the server"},
		{trigger: p + "login", usage: p + "login <name>", description: "Claim a username"},
		{trigger: p + "join", usage: p + "join <room>", description: "Subscribe to a room and replay its history"},
		{trigger: p + "leave", usage: p + "leave [room]", description: "Unsubscribe from a room"},
		{trigger: p + "chat", usage: p + "chat", description: "Switch to chat view"},
		{trigger: p + "pipe", usage: p + "pipe [clear]", description: "Inspect raw websocket frames"},
		{trigger: p + "help", usage: p + "help", description: "Show command help"},
		{trigger: p + "quit", usage: p + "quit", description: "Log out and exit"},
	}
}

func (a *App) handleSubmit(value string) tea.Cmd {
	in := parseInput(value, a.cfg.CommandPrefix, a.lastRoom)
	switch in.kind {
	case inputCommand:
		return a.executeCommand(in)
	case inputNoRoom:
		a.logErrorf("No room selected. Use %sjoin ROOM or ROOM: message.", string(a.cfg.CommandPrefix))
	case inputPublish:
		return a.publish(in.room, in.message)
	}
	return nil
}

func (a *App) executeCommand(in parsedInput) tea.Cmd {
	name := strings.TrimPrefix(in.command, string(a.cfg.CommandPrefix))
	var cmd tea.Cmd

	switch name {
	case "chat":
		a.view = viewChat
		a.logf("Switched to CHAT view")
	case "help":
		a.view = viewHelp
		a.logf("Switched to HELP view")
	case "pipe":
		if len(in.args) > 0 && strings.EqualFold(in.args[0], "clear") {
			a.pipeHistory = nil
			a.logf("Cleared pipe history")
			break
		}
		a.view = viewPipe
		a.logf("Switched to PIPE view")
	case "connect":
		target := a.serverAddr
		if len(in.args) > 0 {
			target = in.args[0]
		}
		if target == "" {
			a.logErrorf("Provide a server address to connect")
			break
		}
		cmd = a.connectToServer(target)
	case "login":
		if len(in.args) != 1 {
			a.logErrorf("Usage: %slogin <name>", string(a.cfg.CommandPrefix))
			break
		}
		cmd = a.login(in.args[0])
	case "join":
		if len(in.args) < 1 {
			a.logErrorf("Usage: %sjoin <room>", string(a.cfg.CommandPrefix))
			break
		}
		room := strings.Join(in.args, " ")
		a.lastRoom = room
		cmd = a.sendAction(protocol.ActionEnvelope{Action: protocol.ActionSubscribe, Room: room}, "join "+room)
	case "leave":
		room := a.lastRoom
		if len(in.args) > 0 {
			room = strings.Join(in.args, " ")
		}
		if room == "" {
			a.logErrorf("No room to leave")
			break
		}
		cmd = a.sendAction(protocol.ActionEnvelope{Action: protocol.ActionUnsubscribe, Room: room}, "leave "+room)
	case "quit":
		cmd = a.quit()
	default:
		a.logErrorf("Unknown command %s", in.command)
	}

	a.updateViewportContent()
	return cmd
}

func (a *App) publish(room, message string) tea.Cmd {
	a.lastRoom = room
	if a.view != viewChat {
		a.view = viewChat
		a.updateViewportContent()
	}
	return a.sendAction(protocol.ActionEnvelope{
		Action:  protocol.ActionPublish,
		Room:    room,
		Message: message,
	}, "message to "+room)
}

func (a *App) login(name string) tea.Cmd {
	a.pendingUser = name
	a.logf("Logging in as %s ...", name)
	return a.sendAction(protocol.ActionEnvelope{Action: protocol.ActionLogin, Username: name}, "login")
}

func (a *App) isConnected() bool {
	return a.session != nil && a.statusOnline
}

func (a *App) connectToServer(target string) tea.Cmd {
	if a.session != nil {
		_ = a.session.Close()
		a.session = nil
	}
	a.serverAddr = target
	a.statusOnline = false
	a.username = ""
	a.pendingUser = ""
	a.rooms = nil
	a.logf("Connecting to %s ...", target)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		session, err := Dial(ctx, target)
		return connectResultMsg{session: session, address: target, err: err}
	}
}

func (a *App) handleConnectResult(msg connectResultMsg) tea.Cmd {
	if msg.err != nil {
		a.logErrorf("Connection to %s failed: %v", msg.address, msg.err)
		return nil
	}
	if msg.address != a.serverAddr {
		_ = msg.session.Close()
		return nil
	}

	a.session = msg.session
	a.statusOnline = true
	a.logf("Connected to %s", msg.address)

	var startup []tea.Cmd
	if a.cfg.Username != "" {
		startup = append(startup, a.login(a.cfg.Username))
	}
	for _, room := range a.cfg.Rooms {
		a.lastRoom = room
		startup = append(startup, a.sendAction(protocol.ActionEnvelope{Action: protocol.ActionSubscribe, Room: room}, "join "+room))
	}
	if len(startup) == 0 {
		return a.listenForSession()
	}
	return tea.Batch(a.listenForSession(), tea.Sequence(startup...))
}

func (a *App) listenForSession() tea.Cmd {
	session := a.session
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		frame, ok := <-session.Frames()
		if !ok {
			return sessionClosedMsg{session: session, status: session.Status()}
		}
		return frameMsg{session: session, frame: frame}
	}
}

func (a *App) handleSessionClosed(msg sessionClosedMsg) {
	if msg.session != a.session {
		return
	}
	a.session = nil
	a.statusOnline = false
	a.username = ""
	a.pendingUser = ""
	a.rooms = nil

	switch msg.status.Code {
	case protocol.CloseUsernameTaken:
		a.logErrorf("Username already in use. Use %sconnect and pick another name.", string(a.cfg.CommandPrefix))
	case protocol.CloseGoingAway:
		a.logErrorf("Server is shutting down")
	case 0:
		a.logErrorf("Connection lost")
	default:
		a.logf("Connection closed (%d %s)", msg.status.Code, msg.status.Reason)
	}
}

func (a *App) sendAction(env protocol.ActionEnvelope, description string) tea.Cmd {
	session := a.session
	if !a.isConnected() {
		a.logErrorf("Not connected. Use %sconnect first.", string(a.cfg.CommandPrefix))
		return nil
	}
	a.appendPipeEntry(pipeDirectionOut, string(env.Action), encodeForPipe(env))

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		_, err := session.Send(ctx, env)
		return sendResultMsg{session: session, description: description, err: err}
	}
}

// quit logs out when connected, closes the session and stops the program.
func (a *App) quit() tea.Cmd {
	session := a.session
	a.session = nil
	a.statusOnline = false
	if session == nil {
		return tea.Quit
	}
	a.logf("Logging out ...")
	return tea.Sequence(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		_, _ = session.Send(ctx, protocol.ActionEnvelope{Action: protocol.ActionLogout})
		_ = session.Close()
		return nil
	}, tea.Quit)
}

func encodeForPipe(env protocol.ActionEnvelope) []byte {
	data, err := protocol.EncodeAction(env)
	if err != nil {
		return []byte(err.Error())
	}
	return data
}
