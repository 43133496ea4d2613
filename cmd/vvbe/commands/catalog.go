package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teranos/verseblueprint/catalog"
	"github.com/teranos/verseblueprint/display"
	"github.com/teranos/verseblueprint/workspace"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Import digests into a searchable class catalog",
		Long: `Keep extracted digest classes in a local SQLite catalog (catalog.path).

Examples:
  vvbe catalog import Fortnite.digest.verse Verse.digest.verse
  vvbe catalog search button
  vvbe catalog show button_device
  vvbe catalog sources`,
	}
	cmd.AddCommand(newCatalogImportCmd(), newCatalogSearchCmd(), newCatalogShowCmd(), newCatalogSourcesCmd())
	return cmd
}

func newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import digest files, replacing earlier imports of the same file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, closeCatalog, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer closeCatalog()

			ex := newExtractor(cfg)
			for _, arg := range args {
				path, err := workspace.ExpandPath(arg)
				if err != nil {
					return err
				}
				d, err := ex.ParseFile(path)
				if err != nil {
					return err
				}
				n, err := cat.Import(cmd.Context(), path, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d class(es)\n", path, n)
			}
			return nil
		},
	}
}

func newCatalogSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [prefix]",
		Short: "List classes whose name starts with prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, closeCatalog, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer closeCatalog()

			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			entries, err := cat.Search(cmd.Context(), prefix, limit)
			if err != nil {
				return err
			}

			return display.Output(cmd, entries, func(w io.Writer) error {
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.Name,
						e.ModulePath,
						strconv.Itoa(e.PropertyCount),
						strconv.Itoa(e.MethodCount),
						e.Description,
					})
				}
				return display.Table(w, []string{"CLASS", "MODULE", "PROPERTIES", "METHODS", "DESCRIPTION"}, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", catalog.DefaultSearchLimit, "Maximum number of classes")
	return cmd
}

func newCatalogShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <class>",
		Short: "Show the full model of a catalogued class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, closeCatalog, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer closeCatalog()

			class, err := cat.Class(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return display.Output(cmd, class, func(w io.Writer) error {
				return renderClass(w, class)
			})
		},
	}
}

func newCatalogSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List imported digest files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, closeCatalog, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer closeCatalog()

			sources, err := cat.Sources(cmd.Context())
			if err != nil {
				return err
			}
			return display.Output(cmd, sources, func(w io.Writer) error {
				rows := make([][]string, 0, len(sources))
				for _, s := range sources {
					rows = append(rows, []string{
						s.Path,
						s.ModulePath,
						strconv.Itoa(s.Classes),
						s.ImportedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				return display.Table(w, []string{"SOURCE", "MODULE", "CLASSES", "IMPORTED"}, rows)
			})
		},
	}
}
