package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/verseblueprint/am"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/watch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Regenerate Verse source whenever a graph record changes",
		Long: `Watch a directory for graph records and regenerate their Verse source
on every save. Existing records are generated once at startup.

Saves are debounced (watch.debounce_ms) and regenerations are rate limited
(watch.max_per_second, watch.burst). Editing the project am.toml restarts
the watcher with the new settings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reloads := make(chan *am.Config, 1)
			if cw := startConfigWatcher(reloads); cw != nil {
				defer cw.Stop()
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			for {
				runCtx, cancel := context.WithCancel(ctx)
				done := make(chan error, 1)
				go func(cfg *am.Config) {
					done <- newDirWatcher(cmd, dir, cfg).Run(runCtx)
				}(cfg)

				select {
				case err := <-done:
					cancel()
					return err
				case next := <-reloads:
					cancel()
					if err := <-done; err != nil {
						return err
					}
					logger.Infow("Restarting watcher with reloaded configuration", logger.FieldFile, dir)
					cfg = next
				}
			}
		},
	}
}

func newDirWatcher(cmd *cobra.Command, dir string, cfg *am.Config) *watch.Watcher {
	_, store := newStore()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	return watch.New(dir, store, newGenerator(cfg, false), logger.Logger,
		watch.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
		watch.WithRateLimit(cfg.Watch.MaxPerSecond, cfg.Watch.Burst),
		watch.OnResult(func(graphPath, outputPath string, err error) {
			if err != nil {
				fmt.Fprintf(errOut, "✗ %s: %v\n", graphPath, err)
				return
			}
			fmt.Fprintf(out, "✓ %s -> %s\n", graphPath, outputPath)
		}),
	)
}

// startConfigWatcher watches the nearest project am.toml, if any, and sends
// each valid reloaded configuration to reloads.
func startConfigWatcher(reloads chan<- *am.Config) *am.ConfigWatcher {
	var project string
	for _, p := range am.ConfigPaths() {
		if p.Source == am.SourceProject {
			project = p.Path
		}
	}
	if project == "" {
		return nil
	}

	cw, err := am.NewConfigWatcher(project, logger.Logger)
	if err != nil {
		logger.Warnw("Config file will not be watched", logger.FieldFile, project, logger.FieldError, err)
		return nil
	}
	cw.OnReload(func(cfg *am.Config) error {
		if err := cfg.Validate(); err != nil {
			return errors.Wrap(err, "reloaded configuration is invalid")
		}
		select {
		case reloads <- cfg:
		default:
		}
		return nil
	})
	cw.Start()
	am.SetGlobalWatcher(cw)
	return cw
}
