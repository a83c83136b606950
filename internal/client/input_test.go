package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		lastRoom string
		want     parsedInput
	}{
		{name: "blank", line: "   ", want: parsedInput{kind: inputNone}},
		{
			name: "command",
			line: "/Join  general ",
			want: parsedInput{kind: inputCommand, command: "/join", args: []string{"general"}},
		},
		{
			name: "room prefix",
			line: "general: hello there",
			want: parsedInput{kind: inputPublish, room: "general", message: "hello there"},
		},
		{
			name: "only first colon splits",
			line: "ops: deploy at 10:30",
			want: parsedInput{kind: inputPublish, room: "ops", message: "deploy at 10:30"},
		},
		{
			name:     "last room",
			line:     "hi",
			lastRoom: "general",
			want:     parsedInput{kind: inputPublish, room: "general", message: "hi"},
		},
		{name: "no room", line: "hi", want: parsedInput{kind: inputNoRoom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseInput(tt.line, '/', tt.lastRoom))
		})
	}
}

func TestParseInputCustomPrefix(t *testing.T) {
	got := parseInput("!quit", '!', "")
	assert.Equal(t, inputCommand, got.kind)
	assert.Equal(t, "!quit", got.command)

	got = parseInput("/quit", '!', "general")
	assert.Equal(t, inputPublish, got.kind)
}

func TestLongestCommonPrefix(t *testing.T) {
	assert.Equal(t, "", longestCommonPrefix(nil))
	assert.Equal(t, "/join", longestCommonPrefix([]string{"/join"}))
	assert.Equal(t, "/c", longestCommonPrefix([]string{"/connect", "/chat"}))
}

func TestWrapLines(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, wrapLines([]string{"hello world"}, 10))
	assert.Equal(t, []string{"abcdefghij", "klm"}, wrapLines([]string{"abcdefghijklm"}, 10))
	assert.Equal(t, []string{"short"}, wrapLines([]string{"short"}, 0))

	assert.Equal(t, []string{"hi", "abcdefghij", "klm"}, wrapLines([]string{"hi abcdefghijklm"}, 10))
	assert.Equal(t, []string{""}, wrapLines([]string{"            "}, 10))

	for _, line := range wrapLines([]string{"日本語のテキストを折り返す"}, 10) {
		assert.LessOrEqual(t, len([]rune(line))*2, 10)
	}
}

func TestCommandHelpFollowsInput(t *testing.T) {
	a := newTestApp()
	a.width = 80

	a.input.SetValue("/jo")
	a.updateHelp()
	assert.True(t, a.showHelp)
	assert.Contains(t, a.helpView, "/join <room>")
	assert.NotContains(t, a.helpView, "/leave")
	assert.Equal(t, 1, a.helpHeight)

	a.input.SetValue("/nothing")
	a.updateHelp()
	assert.False(t, a.showHelp)
	assert.Zero(t, a.helpHeight)

	a.input.SetValue("general: /join")
	a.updateHelp()
	assert.False(t, a.showHelp)
}
