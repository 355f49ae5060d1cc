package main

import (
	"flag"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rewire-app/rewire-client/internal/client"
	"github.com/rewire-app/rewire-client/internal/config"
	logpkg "github.com/rewire-app/rewire-client/internal/pkg/log"
	"github.com/rewire-app/rewire-client/internal/session"
	"github.com/rewire-app/rewire-client/internal/storage/file"
	"github.com/rewire-app/rewire-client/internal/tokens"
	"github.com/rewire-app/rewire-client/internal/tui"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := logpkg.Setup(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting rewire-chat", "env", cfg.Env)

	kv, err := file.New(cfg.Storage.Path)
	if err != nil {
		log.Error("storage_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	ts := tokens.NewStore(kv)
	api := client.New(cfg.API, ts)
	sess := session.New(kv, ts, api)

	prog := tea.NewProgram(
		tui.New(cfg, sess, api, log),
		tea.WithAltScreen(),
	)

	if _, err := prog.Run(); err != nil {
		log.Error("tui_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("client_stopped")
}
