package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	figure "github.com/common-nighthawk/go-figure"
	"github.com/mattn/go-runewidth"
)

// View renders the viewport, command help, input, log line and status bar.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.viewport.View())
	b.WriteString("\n")

	if a.showHelp && a.helpView != "" {
		b.WriteString(a.styles.help.Render(a.helpView))
		b.WriteString("\n")
	}

	b.WriteString(a.input.View())
	b.WriteString("\n")
	b.WriteString(a.logLineView())
	b.WriteString("\n")
	b.WriteString(a.statusLine())

	return b.String()
}

func (a *App) updateViewportContent() {
	width := a.viewport.Width
	if width <= 0 {
		width = a.width
	}

	switch a.view {
	case viewChat:
		if len(a.chatHistory) == 0 {
			a.viewport.SetContent(a.homeContent())
			return
		}
		a.viewport.SetContent(strings.Join(wrapLines(a.chatHistory, width), "\n"))
		a.viewport.GotoBottom()
	case viewPipe:
		if len(a.pipeHistory) == 0 {
			a.viewport.SetContent("No frames captured yet. Send commands to populate this view or use " +
				string(a.cfg.CommandPrefix) + "pipe clear to reset.")
			return
		}
		a.viewport.SetContent(a.renderPipeView())
		a.viewport.GotoBottom()
	case viewHelp:
		a.viewport.SetContent(a.renderHelpView())
	}
}

func (a *App) updateViewportSize() {
	if a.height == 0 {
		return
	}
	const fixed = 3
	height := a.height - fixed - a.helpHeight
	if height < 3 {
		height = 3
	}
	a.viewport.Height = height
	a.viewport.Width = a.width
}

func (a *App) updateInputWidth() {
	width := a.width
	if width <= 0 {
		width = 60
	}
	usable := width - lipgloss.Width(a.input.Prompt) - 1
	if usable < 10 {
		usable = 10
	}
	a.input.Width = usable
}

// updateHelp shows the commands matching the first token while the input
// starts with the command prefix.
func (a *App) updateHelp() {
	token, isCommand := a.commandToken()
	var matches commandKeyMap
	if isCommand {
		for _, c := range a.commands {
			if strings.HasPrefix(strings.ToLower(c.trigger), token) {
				matches = append(matches, c.binding())
			}
		}
	}
	if len(matches) == 0 {
		a.clearHelp()
		return
	}

	a.helper.Width = a.width
	a.showHelp = true
	a.helpView = strings.TrimRight(a.helper.View(matches), "\n")
	a.helpHeight = lipgloss.Height(a.helpView)
}

func (a *App) commandToken() (string, bool) {
	value := a.input.Value()
	if !strings.HasPrefix(value, string(a.cfg.CommandPrefix)) {
		return "", false
	}
	token, _, _ := strings.Cut(value, " ")
	token, _, _ = strings.Cut(token, "\t")
	return strings.ToLower(token), true
}

func (a *App) clearHelp() {
	a.showHelp = false
	a.helpView = ""
	a.helpHeight = 0
}

func (a *App) statusLine() string {
	status := "OFFLINE"
	style := a.styles.statusOffline
	if a.statusOnline {
		status = "ONLINE"
		style = a.styles.statusOnline
	}

	user := a.username
	if user == "" && a.pendingUser != "" {
		user = a.pendingUser + "*"
	}
	rooms := strings.Join(a.rooms, ",")

	parts := []string{
		a.styles.title.Render("SlashRelay"),
		a.styles.view.Render(strings.ToUpper(a.view.String())),
		style.Render(status),
		a.styles.label.Render("Server") + ": " + a.styles.value.Render(orDash(a.serverAddr)),
		a.styles.label.Render("User") + ": " + a.styles.value.Render(orDash(user)),
		a.styles.label.Render("Rooms") + ": " + a.styles.value.Render(orDash(rooms)),
		a.styles.label.Render("Send to") + ": " + a.styles.value.Render(orDash(a.lastRoom)),
	}
	return strings.Join(parts, " | ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *App) logLineView() string {
	labelStyle := a.styles.logLabel
	bodyStyle := a.styles.logBody
	if a.logLine.level == logLevelError {
		labelStyle = a.styles.logLabelError
		bodyStyle = a.styles.logBodyError
	}
	return labelStyle.Render(a.logLine.label) + " " + bodyStyle.Render(a.logLine.body)
}

func buildStyles() styleSet {
	base := lipgloss.NewStyle()
	return styleSet{
		title:         base.Foreground(lipgloss.Color("13")).Bold(true),
		view:          base.Foreground(lipgloss.Color("14")).Bold(true),
		statusOnline:  base.Foreground(lipgloss.Color("10")).Bold(true),
		statusOffline: base.Foreground(lipgloss.Color("9")).Bold(true),
		label:         base.Foreground(lipgloss.Color("8")),
		value:         base.Foreground(lipgloss.Color("15")),
		logLabel:      base.Foreground(lipgloss.Color("11")).Bold(true),
		logBody:       base.Foreground(lipgloss.Color("7")),
		logLabelError: base.Foreground(lipgloss.Color("9")).Bold(true),
		logBodyError:  base.Foreground(lipgloss.Color("9")),
		help:          base.Foreground(lipgloss.Color("12")),
	}
}

func (a *App) renderHelpView() string {
	usageWidth := 0
	for _, c := range a.commands {
		usageWidth = max(usageWidth, lipgloss.Width(c.usage))
	}
	usage := a.styles.value.Width(usageWidth + 2)

	rows := []string{a.styles.title.Render("SlashRelay Commands"), ""}
	for _, c := range a.commands {
		rows = append(rows, usage.Render(c.usage)+a.styles.label.Render(c.description))
	}
	rows = append(rows, "",
		`Anything else is published: "ROOM: text" sends to ROOM,`,
		"plain text goes to the last room you joined or wrote to.")
	return strings.Join(rows, "\n")
}

// renderPipeView lists captured frames oldest first, one block per frame.
func (a *App) renderPipeView() string {
	blocks := make([]string, 0, len(a.pipeHistory))
	for _, entry := range a.pipeHistory {
		kind := strings.ToUpper(entry.messageType)
		if kind == "" {
			kind = "UNKNOWN"
		}
		header := a.styles.label.Render(fmt.Sprintf("%s %-3s %s",
			entry.timestamp.Format("15:04:05.000"), entry.direction, kind))
		blocks = append(blocks, header+"\n"+entry.body)
	}
	return strings.Join(blocks, "\n\n")
}

func (a *App) homeContent() string {
	p := string(a.cfg.CommandPrefix)
	banner := strings.TrimRight(figure.NewFigure("SLASH RELAY", "", true).String(), "\n")
	return banner + "\n\n" + strings.Join([]string{
		"Use " + p + "connect to reach the server.",
		"Use " + p + "login <name> to claim a username.",
		"Use " + p + "join <room> to subscribe and replay recent messages.",
		"Type ROOM: message to publish, or plain text for the last room.",
		"Use " + p + "pipe to inspect raw websocket frames.",
		"Use " + p + "help to browse all commands.",
	}, "\n")
}

const minWrapWidth = 10

// wrapLines breaks every line into rows no wider than width display cells,
// splitting on spaces and cutting words that do not fit a row on their own.
func wrapLines(lines []string, width int) []string {
	if width <= 0 {
		return lines
	}
	width = max(width, minWrapWidth)

	rows := make([]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, wrapLine(line, width)...)
	}
	return rows
}

func wrapLine(line string, width int) []string {
	if runewidth.StringWidth(line) <= width {
		return []string{line}
	}

	var (
		rows []string
		row  strings.Builder
		used int
	)
	flush := func() {
		rows = append(rows, row.String())
		row.Reset()
		used = 0
	}
	for _, word := range strings.Fields(line) {
		w := runewidth.StringWidth(word)
		if used > 0 && used+1+w > width {
			flush()
		}
		for w > width {
			head := runewidth.Truncate(word, width, "")
			rows = append(rows, head)
			word = word[len(head):]
			w = runewidth.StringWidth(word)
		}
		if word == "" {
			continue
		}
		if used > 0 {
			row.WriteByte(' ')
			used++
		}
		row.WriteString(word)
		used += w
	}
	if used > 0 || len(rows) == 0 {
		flush()
	}
	return rows
}

// commandKeyMap feeds command bindings to the help bubble.
type commandKeyMap []key.Binding

func (m commandKeyMap) ShortHelp() []key.Binding {
	return m
}

func (m commandKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{m}
}
