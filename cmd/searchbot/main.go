package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xcro3dile/amplon-searchbot/internal/adapters/filewatcher"
	"github.com/0xcro3dile/amplon-searchbot/internal/adapters/search"
	"github.com/0xcro3dile/amplon-searchbot/internal/adapters/sessionstore"
	"github.com/0xcro3dile/amplon-searchbot/internal/adapters/telegram"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/usecases"
	"github.com/0xcro3dile/amplon-searchbot/internal/infrastructure/config"
	httpserver "github.com/0xcro3dile/amplon-searchbot/internal/infrastructure/http"
	"github.com/0xcro3dile/amplon-searchbot/internal/infrastructure/logging"
	"github.com/0xcro3dile/amplon-searchbot/internal/infrastructure/tui"
)

const tuiLogFile = "amplon-searchbot.log"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(getEnv("ENV_FILE", ".env"))
	if err != nil {
		return err
	}

	// The terminal widget owns the screen, so its logs go to a file.
	var logOut io.Writer = os.Stderr
	if cfg.UIMode == config.ModeTUI {
		f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)

	backend, err := search.NewHTTPAdapter(cfg.SearchBackendURL, cfg.SearchHTTPTimeout, logger.With(slog.String("component", "search")))
	if err != nil {
		return err
	}
	searchUC := usecases.NewSearchUseCase(backend, logger)

	if cfg.ConfigWatch {
		startConfigWatch(ctx, cfg, backend, logger)
	}

	logger.Info("starting",
		slog.String("mode", string(cfg.UIMode)),
		slog.String("backend", backend.BaseURL()),
	)

	welcome := cfg.Welcome(usecases.DefaultWelcome)

	switch cfg.UIMode {
	case config.ModeTUI:
		return tui.Run(ctx, usecases.NewSession(welcome), searchUC)

	case config.ModeTelegram:
		bot, err := telegram.NewBot(cfg.TelegramBotToken, sessionstore.NewInMemoryStore(welcome), searchUC, cfg.SessionIdleTTL, logger)
		if err != nil {
			return err
		}
		return bot.Run(ctx)

	default:
		server, err := httpserver.NewServer(sessionstore.NewInMemoryStore(welcome), searchUC, cfg.HTTPAddr, cfg.SessionIdleTTL, logger)
		if err != nil {
			return err
		}
		return server.Start(ctx)
	}
}

// startConfigWatch follows edits to the dotenv file and swaps the search backend address.
func startConfigWatch(ctx context.Context, cfg *config.Config, backend *search.HTTPAdapter, logger *slog.Logger) {
	watcher, err := filewatcher.NewFSNotifyWatcher(logger)
	if err != nil {
		logger.Warn("config watch disabled", slog.Any("error", err))
		return
	}
	reload := usecases.NewConfigReloadUseCase(watcher, backend, cfg.ReadBackendURL, logger)

	go func() {
		defer watcher.Stop()
		if err := reload.Run(ctx, cfg.EnvFile); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watch stopped", slog.Any("error", err))
		}
	}()
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
