package client

import "strings"

type inputKind int

const (
	inputNone inputKind = iota
	inputCommand
	inputPublish
	inputNoRoom
)

// parsedInput is one submitted line of the input box.
type parsedInput struct {
	kind    inputKind
	command string
	args    []string
	room    string
	message string
}

// parseInput classifies a submitted line. Lines starting with prefix are
// commands; "ROOM: text" publishes to ROOM; anything else publishes to
// lastRoom.
func parseInput(line string, prefix rune, lastRoom string) parsedInput {
	line = strings.TrimSpace(line)
	if line == "" {
		return parsedInput{kind: inputNone}
	}

	if strings.HasPrefix(line, string(prefix)) {
		fields := strings.Fields(line)
		return parsedInput{
			kind:    inputCommand,
			command: strings.ToLower(fields[0]),
			args:    fields[1:],
		}
	}

	if room, message, ok := strings.Cut(line, ":"); ok {
		return parsedInput{
			kind:    inputPublish,
			room:    strings.TrimSpace(room),
			message: strings.TrimSpace(message),
		}
	}

	if lastRoom == "" {
		return parsedInput{kind: inputNoRoom}
	}
	return parsedInput{kind: inputPublish, room: lastRoom, message: line}
}

func (a *App) handleTabCompletion() {
	value := a.input.Value()
	if value == "" || a.input.Position() != len([]rune(value)) {
		return
	}
	if !strings.HasPrefix(value, string(a.cfg.CommandPrefix)) || strings.ContainsAny(value, " \t") {
		return
	}

	matches := make([]string, 0)
	for _, cmd := range a.commands {
		if strings.HasPrefix(cmd.trigger, value) {
			matches = append(matches, cmd.trigger)
		}
	}
	if len(matches) == 0 {
		return
	}

	prefix := longestCommonPrefix(matches)
	if len(prefix) <= len(value) {
		return
	}
	a.input.SetValue(prefix)
	a.input.CursorEnd()
}

func longestCommonPrefix(values []string) string {
	if len(values) == 0 {
		return ""
	}
	prefix := values[0]
	for _, s := range values[1:] {
		for !strings.HasPrefix(s, prefix) {
			if prefix == "" {
				return ""
			}
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
