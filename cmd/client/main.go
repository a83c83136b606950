package main

import (
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenggwsx/SlashRelay/internal/client"
	"github.com/fenggwsx/SlashRelay/internal/config"
)

func main() {
	cfg := config.LoadClientConfig()

	if _, err := tea.NewProgram(client.NewApp(cfg), tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("client exited: %v", err)
	}
}
