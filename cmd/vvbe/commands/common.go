// Package commands implements the vvbe CLI.
package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teranos/verseblueprint/am"
	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/catalog"
	"github.com/teranos/verseblueprint/digest"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/graphstore"
	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/versegen"
)

// NewRootCmd builds the vvbe command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vvbe",
		Short: "Verse visual blueprint editor toolkit",
		Long: `vvbe - Verse visual blueprint editor toolkit.

Extracts class models from UEFN Verse digest files, edits visual blueprint
graphs, and generates Verse device source from them.

Available commands:
  digest   - Extract and discover *.digest.verse files
  graph    - Create and edit blueprint graph records
  generate - Generate Verse source from a graph record
  catalog  - Import digests into a searchable class catalog
  watch    - Regenerate Verse source when graph records change
  lsp      - Serve completion and hover for Verse documents
  mcp      - Serve vvbe operations as MCP tools
  am       - Show and initialise configuration

Examples:
  vvbe digest extract Fortnite.digest.verse
  vvbe graph new Counter.blueprint --name Counter
  vvbe graph add-var Counter.blueprint Score int 0
  vvbe generate Counter.blueprint -o counter_device.verse`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			logJSON, _ := cmd.Flags().GetBool("log-json")
			if err := logger.Initialize(logJSON, verbosity); err != nil {
				return errors.Wrap(err, "failed to initialize logger")
			}
			return nil
		},
	}

	root.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	root.PersistentFlags().Bool("json", false, "Output results as JSON")
	root.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON")

	root.AddCommand(
		newDigestCmd(),
		newGraphCmd(),
		newGenerateCmd(),
		newCatalogCmd(),
		newWatchCmd(),
		newLSPCmd(),
		newMCPCmd(),
		newAmCmd(),
		newVersionCmd(),
	)
	return root
}

func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "invalid configuration"),
			"run 'vvbe am where' to see which file sets the value")
	}
	return cfg, nil
}

func newExtractor(cfg *am.Config) *digest.Extractor {
	return digest.NewExtractor(
		digest.WithClassSuffixes(cfg.Digest.ClassSuffixes...),
		digest.WithLogger(logger.Logger),
	)
}

func newGenerator(cfg *am.Config, strict bool) *versegen.Generator {
	return versegen.NewGenerator(
		versegen.WithImports(cfg.Generator.Imports...),
		versegen.WithStrict(cfg.Generator.Strict || strict),
		versegen.WithLogger(logger.Logger),
	)
}

func newStore() (*blueprint.Service, *graphstore.Store) {
	svc := blueprint.NewService(logger.Logger)
	return svc, graphstore.New(svc, logger.Logger)
}

// openCatalog opens (creating if needed) the configured catalog. The
// returned func closes it.
func openCatalog(cfg *am.Config) (*catalog.Catalog, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Catalog.Path), am.DefaultDirPermissions); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to create %s", filepath.Dir(cfg.Catalog.Path))
	}
	db, err := catalog.OpenWithMigrations(cfg.Catalog.Path, logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	return catalog.New(db, logger.Logger), func() { db.Close() }, nil
}
