package main

import (
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"shedmap/internal/config"
	"shedmap/internal/hydro"
	"shedmap/internal/logging"
	"shedmap/internal/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	w, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		log.Fatalf("open log file: %v", err)
	}
	defer w.Close()
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, w)

	client := hydro.NewClient(cfg.API.BaseURL, cfg.API.Timeout())
	logger.Info("starting", "api", cfg.API.BaseURL, "view", cfg.View.Mode)

	var m tea.Model
	if len(os.Args) > 1 {
		m = tui.NewWithPath(cfg, client, logger, os.Args[1])
	} else {
		m = tui.New(cfg, client, logger)
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion()).Run(); err != nil {
		logger.Error("program exited", "err", err)
		log.Fatal(err)
	}
}
