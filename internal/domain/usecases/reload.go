package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/ports"
)

// BackendURLLoader reads the search backend address out of a config file.
type BackendURLLoader func(path string) (string, error)

// ConfigReloadUseCase applies config file edits to the live search backend.
// Only the backend address is hot-reloadable.
type ConfigReloadUseCase struct {
	watcher  ports.FileWatcher
	switcher ports.BackendSwitcher
	load     BackendURLLoader
	logger   *slog.Logger
}

// NewConfigReloadUseCase creates a ConfigReloadUseCase with injected dependencies.
func NewConfigReloadUseCase(
	watcher ports.FileWatcher,
	switcher ports.BackendSwitcher,
	load BackendURLLoader,
	logger *slog.Logger,
) *ConfigReloadUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigReloadUseCase{
		watcher:  watcher,
		switcher: switcher,
		load:     load,
		logger:   logger,
	}
}

// Run watches path until ctx is done or the watcher closes its channel.
func (uc *ConfigReloadUseCase) Run(ctx context.Context, path string) error {
	events, err := uc.watcher.Watch(ctx, path)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	uc.logger.Info("config watch started", slog.String("path", path))
	for ev := range events {
		if err := uc.Apply(ev); err != nil {
			uc.logger.Warn("config reload failed", slog.String("path", ev.Path), slog.Any("error", err))
		}
	}
	return ctx.Err()
}

// Apply handles a single file event. Deletions keep the current backend.
func (uc *ConfigReloadUseCase) Apply(ev ports.FileEvent) error {
	if ev.Operation == ports.FileDeleted {
		uc.logger.Info("config file removed, keeping current backend", slog.String("backend", uc.switcher.BaseURL()))
		return nil
	}

	url, err := uc.load(ev.Path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if url == "" || url == uc.switcher.BaseURL() {
		return nil
	}

	old := uc.switcher.BaseURL()
	if err := uc.switcher.SetBaseURL(url); err != nil {
		return fmt.Errorf("switching backend: %w", err)
	}
	uc.logger.Info("search backend switched", slog.String("from", old), slog.String("to", url))
	return nil
}
