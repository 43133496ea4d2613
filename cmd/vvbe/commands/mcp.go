package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/verseblueprint/catalog"
	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/mcpserver"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve digest extraction and generation as MCP tools over stdio",
		Long: `Run a Model Context Protocol server over stdio with the tools
digest_extract and verse_generate, plus catalog_search and catalog_class
when mcp.enable_catalog is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var cat *catalog.Catalog
			if cfg.MCP.EnableCatalog {
				c, closeCatalog, err := openCatalog(cfg)
				if err != nil {
					return err
				}
				defer closeCatalog()
				cat = c
			}

			svc, _ := newStore()
			s := mcpserver.New(newExtractor(cfg), newGenerator(cfg, false), svc, cat, logger.Logger)
			return s.Serve()
		},
	}
}
