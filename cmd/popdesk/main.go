package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/velora/popdesk/internal/api"
	"github.com/velora/popdesk/internal/app"
	"github.com/velora/popdesk/internal/audio"
	"github.com/velora/popdesk/internal/logger"
	"github.com/velora/popdesk/internal/model"
	"github.com/velora/popdesk/internal/poll"
	"github.com/velora/popdesk/internal/session"
	"github.com/velora/popdesk/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "popdesk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		return err
	}
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("no server.base_url configured in %s", model.DefaultConfigPath())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	dataPath := model.DefaultDataPath()
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	kv, err := store.NewSQLiteKV(dataPath)
	if err != nil {
		return err
	}
	defer kv.Close()

	token, err := session.Token()
	if err != nil {
		return fmt.Errorf("no API token stored; run your login flow first: %w", err)
	}

	sess := session.New(cfg.Server.UserID, kv)
	client := api.NewClient(cfg.Server.BaseURL, token)
	notifications := api.NewNotificationService(client)
	announcements := store.NewAnnouncementStore(kv)
	chime := audio.NewChime(kv, log)

	poller := poll.New(
		notifications, sess, announcements, kv, chime, log,
		poll.Options{
			BaseInterval: time.Duration(cfg.Poll.BaseIntervalMS) * time.Millisecond,
			MaxInterval:  time.Duration(cfg.Poll.MaxIntervalMS) * time.Millisecond,
		},
	)
	defer poller.Stop()

	m := app.New(announcements, notifications, poller, chime, sess, log)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}

	log.Info("session ended", zap.String("user_id", sess.UserID()))
	return nil
}
