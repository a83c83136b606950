package client

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fenggwsx/SlashRelay/internal/config"
)

const (
	pipeHistoryLimit = 200
	chatHistoryLimit = 1000
	connectTimeout   = 5 * time.Second
	sendTimeout      = 5 * time.Second
)

type primaryView int

const (
	viewChat primaryView = iota
	viewPipe
	viewHelp
)

func (v primaryView) String() string {
	switch v {
	case viewChat:
		return "chat"
	case viewPipe:
		return "pipe"
	case viewHelp:
		return "help"
	default:
		return "unknown"
	}
}

type logLevel int

const (
	logLevelInfo logLevel = iota
	logLevelError
)

type logLine struct {
	level logLevel
	label string
	body  string
}

type pipeDirection string

const (
	pipeDirectionIn  pipeDirection = "IN"
	pipeDirectionOut pipeDirection = "OUT"
)

type pipeEntry struct {
	direction   pipeDirection
	messageType string
	timestamp   time.Time
	body        string
}

type styleSet struct {
	title         lipgloss.Style
	view          lipgloss.Style
	statusOnline  lipgloss.Style
	statusOffline lipgloss.Style
	label         lipgloss.Style
	value         lipgloss.Style
	logLabel      lipgloss.Style
	logBody       lipgloss.Style
	logLabelError lipgloss.Style
	logBodyError  lipgloss.Style
	help          lipgloss.Style
}

type commandSpec struct {
	trigger     string
	usage       string
	description string
}

func (c commandSpec) binding() key.Binding {
	return key.NewBinding(key.WithKeys(c.trigger), key.WithHelp(c.usage, c.description))
}

// App implements tea.Model for the terminal client.
type App struct {
	cfg      config.ClientConfig
	commands []commandSpec
	styles   styleSet

	input    textinput.Model
	viewport viewport.Model
	helper   help.Model
	view     primaryView
	width    int
	height   int

	showHelp   bool
	helpView   string
	helpHeight int

	session      *Session
	serverAddr   string
	statusOnline bool
	username     string
	pendingUser  string
	lastRoom     string
	rooms        []string

	chatHistory []string
	pipeHistory []pipeEntry
	logLine     logLine
}

type connectResultMsg struct {
	session *Session
	address string
	err     error
}

type frameMsg struct {
	session *Session
	frame   Frame
}

type sessionClosedMsg struct {
	session *Session
	status  CloseStatus
}

type sendResultMsg struct {
	session     *Session
	description string
	err         error
}

// NewApp builds the client model.
func NewApp(cfg config.ClientConfig) *App {
	if cfg.CommandPrefix == 0 {
		cfg.CommandPrefix = '/'
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "ROOM: message, or " + string(cfg.CommandPrefix) + "help"
	input.Focus()

	a := &App{
		cfg:        cfg,
		commands:   defaultCommands(cfg.CommandPrefix),
		styles:     buildStyles(),
		input:      input,
		viewport:   viewport.New(0, 0),
		helper:     help.New(),
		view:       viewChat,
		serverAddr: cfg.ServerAddr,
		logLine:    logLine{label: "INFO", body: "Welcome to SlashRelay"},
	}
	a.updateInputWidth()
	a.updateViewportContent()
	return a
}

// Init connects right away when a username is configured.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if a.cfg.Username != "" && a.serverAddr != "" {
		cmds = append(cmds, a.connectToServer(a.serverAddr))
	}
	return tea.Batch(cmds...)
}

// Update handles terminal input and session events.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		a.height = m.Height
		a.updateInputWidth()
		a.updateHelp()
		a.updateViewportSize()
		a.updateViewportContent()
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(m)
	case connectResultMsg:
		return a, a.handleConnectResult(m)
	case frameMsg:
		if m.session != a.session {
			return a, nil
		}
		a.handleFrame(m.frame)
		return a, a.listenForSession()
	case sessionClosedMsg:
		a.handleSessionClosed(m)
		return a, nil
	case sendResultMsg:
		if m.err != nil && m.session == a.session {
			a.logErrorf("Failed to send %s: %v", m.description, m.err)
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return a, a.quit()
	case tea.KeyEnter:
		value := a.input.Value()
		a.input.Reset()
		a.updateHelp()
		a.updateViewportSize()
		return a, a.handleSubmit(value)
	case tea.KeyTab:
		a.handleTabCompletion()
		a.updateHelp()
		a.updateViewportSize()
		return a, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.updateHelp()
	a.updateViewportSize()
	return a, cmd
}

func (a *App) logf(format string, args ...interface{}) {
	a.logLine = logLine{level: logLevelInfo, label: "INFO", body: fmt.Sprintf(format, args...)}
}

func (a *App) logErrorf(format string, args ...interface{}) {
	a.logLine = logLine{level: logLevelError, label: "ERROR", body: fmt.Sprintf(format, args...)}
}
