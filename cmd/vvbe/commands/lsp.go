package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/lsp"
	"github.com/teranos/verseblueprint/workspace"
)

func newLSPCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "lsp [dir|file...]",
		Short: "Serve Verse completion and hover from digest classes",
		Long: `Run a language server offering class and member completion and hover
documentation for Verse documents.

Digest files are collected from the arguments (files or directories) and
from digest.search_paths. The server speaks over stdio unless --ws (or
lsp.addr) gives a WebSocket listen address; the endpoint is then /lsp.

Examples:
  vvbe lsp ~/Projects/MyIsland/Plugins
  vvbe lsp --ws :7777 Fortnite.digest.verse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			files, err := collectDigests(append(cfg.Digest.SearchPaths, args...))
			if err != nil {
				return err
			}
			idx, err := lsp.IndexFiles(newExtractor(cfg), files)
			if err != nil {
				return err
			}
			logger.Infow("Indexed digest classes", logger.FieldClasses, idx.Len(), logger.FieldCount, len(files))

			server := lsp.NewServer(idx, logger.Logger)
			if addr == "" {
				addr = cfg.LSP.Addr
			}
			if addr == "" {
				return server.RunStdio()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.RunWebSocket(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "ws", "", "Serve over WebSocket on this address instead of stdio")
	return cmd
}

// collectDigests expands each source to digest files: directories are
// scanned, files are taken as given. Missing search paths are skipped.
func collectDigests(sources []string) ([]string, error) {
	var files []string
	for _, src := range sources {
		path, err := workspace.ExpandPath(src)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warnw("Skipping missing digest source", logger.FieldFile, path)
				continue
			}
			return nil, errors.Wrapf(err, "failed to stat %s", path)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := workspace.FindDigestFiles(path, logger.Logger)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}
