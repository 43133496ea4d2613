package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teranos/verseblueprint/am"
	"github.com/teranos/verseblueprint/digest"
	"github.com/teranos/verseblueprint/display"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/workspace"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Extract and discover Verse digest files",
		Long: `Extract class models from *.digest.verse files.

Examples:
  vvbe digest extract Fortnite.digest.verse
  vvbe digest extract Fortnite.digest.verse --class button_device
  vvbe digest scan ~/Projects/MyIsland --import
  vvbe digest fetch https://example.com/Fortnite.digest.verse`,
	}
	cmd.AddCommand(newDigestExtractCmd(), newDigestScanCmd(), newDigestFetchCmd())
	return cmd
}

func newDigestExtractCmd() *cobra.Command {
	var className string

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the classes, functions and events of a digest file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path, err := workspace.ExpandPath(args[0])
			if err != nil {
				return err
			}

			d, err := newExtractor(cfg).ParseFile(path)
			if err != nil {
				return err
			}

			if className != "" {
				class := d.FindClass(className)
				if class == nil {
					return errors.NewNotFoundError("class %s in %s", className, path)
				}
				return display.Output(cmd, class, func(w io.Writer) error {
					return renderClass(w, class)
				})
			}

			return display.Output(cmd, d, func(w io.Writer) error {
				return renderDigest(w, d)
			})
		},
	}
	cmd.Flags().StringVarP(&className, "class", "c", "", "Show a single class in detail")
	return cmd
}

func newDigestScanCmd() *cobra.Command {
	var (
		workspaceFile string
		importFiles   bool
	)

	cmd := &cobra.Command{
		Use:   "scan [dir...]",
		Short: "Find digest files under directories or a .code-workspace file",
		Long: `Find *.digest.verse files.

Without arguments the configured digest.search_paths are scanned. With
--workspace, the folders of a UEFN .code-workspace file are scanned instead.
--import loads every file found into the class catalog.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			roots, err := scanRoots(args, workspaceFile, cfg.Digest.SearchPaths)
			if err != nil {
				return err
			}
			if len(roots) == 0 {
				return errors.WithHint(
					errors.NewInvalidRequestError("no directories to scan"),
					"pass a directory, --workspace, or set digest.search_paths in am.toml")
			}

			var files []string
			for _, root := range roots {
				found, err := workspace.FindDigestFiles(root, logger.Logger)
				if err != nil {
					if errors.IsNotFoundError(err) {
						logger.Warnw("Skipping missing directory", logger.FieldFile, root)
						continue
					}
					return err
				}
				files = append(files, found...)
			}

			if importFiles {
				if err := importDigests(cmd, cfg, files); err != nil {
					return err
				}
			}

			return display.Output(cmd, files, func(w io.Writer) error {
				for _, f := range files {
					fmt.Fprintln(w, f)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&workspaceFile, "workspace", "w", "", "Scan the folders of a .code-workspace file")
	cmd.Flags().BoolVar(&importFiles, "import", false, "Import the files found into the class catalog")
	return cmd
}

func newDigestFetchCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch <source>",
		Short: "Download a digest file into the digest cache",
		Long: `Download a digest file from any go-getter source (https, s3, gcs,
git::...//path) into digest.cache_dir, or to --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dst := output
			if dst == "" {
				dst = filepath.Join(cfg.Digest.CacheDir, filepath.Base(args[0]))
			}
			if err := workspace.Fetch(cmd.Context(), args[0], dst, logger.Logger); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), dst)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file")
	return cmd
}

func scanRoots(args []string, workspaceFile string, searchPaths []string) ([]string, error) {
	if workspaceFile != "" {
		wsPath, err := workspace.ExpandPath(workspaceFile)
		if err != nil {
			return nil, err
		}
		meta, err := workspace.LoadWorkspace(wsPath)
		if err != nil {
			return nil, err
		}
		roots := make([]string, 0, len(meta.FolderPaths))
		for _, folder := range meta.FolderPaths {
			roots = append(roots, workspace.ResolveFolder(wsPath, folder))
		}
		return roots, nil
	}

	if len(args) == 0 {
		args = searchPaths
	}
	roots := make([]string, 0, len(args))
	for _, arg := range args {
		root, err := workspace.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, nil
}

func importDigests(cmd *cobra.Command, cfg *am.Config, files []string) error {
	cat, closeCatalog, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer closeCatalog()

	ex := newExtractor(cfg)
	for _, f := range files {
		d, err := ex.ParseFile(f)
		if err != nil {
			return err
		}
		if _, err := cat.Import(cmd.Context(), f, d); err != nil {
			return err
		}
	}
	return nil
}

func renderDigest(w io.Writer, d *digest.Digest) error {
	if d.ModulePath != "" {
		fmt.Fprintf(w, "Module %s\n\n", d.ModulePath)
	}

	rows := make([][]string, 0, len(d.Classes))
	for _, c := range d.Classes {
		rows = append(rows, []string{
			c.Name,
			strconv.Itoa(len(c.Properties)),
			strconv.Itoa(len(c.Methods)),
			strconv.Itoa(len(c.Events)),
			c.Description,
		})
	}
	if err := display.Table(w, []string{"CLASS", "PROPERTIES", "METHODS", "EVENTS", "DESCRIPTION"}, rows); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d class(es), %d function(s), %d event(s)\n",
		len(d.Classes), len(d.Functions), len(d.Events))
	return nil
}

func renderClass(w io.Writer, c *digest.Class) error {
	fmt.Fprintf(w, "%s\n", c.Name)
	if c.Description != "" {
		fmt.Fprintf(w, "  %s\n", c.Description)
	}
	for _, p := range c.Properties {
		fmt.Fprintf(w, "  var %s : %s\n", p.Name, p.Type)
	}
	for _, m := range c.Methods {
		fmt.Fprintf(w, "  %s\n", m.Signature())
	}
	for _, e := range c.Events {
		fmt.Fprintf(w, "  %s : listenable(%s)\n", e.Name, e.EventType)
	}
	return nil
}
