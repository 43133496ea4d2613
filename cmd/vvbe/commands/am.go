package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/verseblueprint/am"
	"github.com/teranos/verseblueprint/display"
	"github.com/teranos/verseblueprint/errors"
)

func newAmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "am",
		Short: "Manage vvbe configuration",
		Long: `am - Manage vvbe configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (VVBE_* prefix)
3. Project config (./am.toml, searched up the directory tree)
4. User config (~/.verseblueprint/am.toml)
5. System config (/etc/verseblueprint/am.toml)
6. Default values

Examples:
  vvbe am show                    # Show current configuration
  vvbe am show --format json      # Show configuration in JSON format
  vvbe am get graph.format        # Get a specific value
  vvbe am init                    # Write ./am.toml with the defaults
  vvbe am where                   # Show which source set each value`,
	}
	cmd.AddCommand(newAmShowCmd(), newAmGetCmd(), newAmInitCmd(), newAmValidateCmd(), newAmWhereCmd())
	return cmd
}

func newAmShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current vvbe configuration merged from all sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := am.Load()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			return writeConfig(cmd.OutOrStdout(), cfg, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "toml", "Output format: toml, json, yaml")
	return cmd
}

func newAmGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a specific configuration value",
		Long:  "Get a specific configuration value using dot notation (e.g., graph.format, watch.debounce_ms)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := am.Load(); err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			v := am.GetViper()
			if !v.IsSet(args[0]) {
				return errors.NewNotFoundError("configuration key %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Get(args[0]))
			return nil
		},
	}
}

func newAmInitCmd() *cobra.Command {
	var (
		user  bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Long: `Write ./am.toml (or ~/.verseblueprint/am.toml with --user) holding the
default settings. An existing file is only replaced with --force, and is
then kept as a .back1 backup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := am.ConfigFileName
			if user {
				path = filepath.Join(am.UserDir(), am.ConfigFileName)
			}
			if err := am.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing file")
	return cmd
}

func newAmValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		Long:  "Validate that the current vvbe configuration is valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := am.Load()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "configuration validation failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			return nil
		},
	}
}

func newAmWhereCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "where",
		Short: "Show where configuration is loaded from",
		Long: `Show the configuration cascade and which source set each value.

Lists the config files in order of precedence, marking which exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := am.Introspect()
			if err != nil {
				return errors.Wrap(err, "failed to get config introspection")
			}

			return display.Output(cmd, settings, func(w io.Writer) error {
				fmt.Fprintln(w, "Configuration cascade (later overrides earlier):")
				fmt.Fprintln(w, "  [DEFAULT]  Built-in defaults")
				for _, p := range am.ConfigPaths() {
					state := "missing"
					if _, err := os.Stat(p.Path); err == nil {
						state = "found"
					}
					fmt.Fprintf(w, "  [%-7s]  %s (%s)\n", p.Source, p.Path, state)
				}
				fmt.Fprintf(w, "  [ENV]      %s_* environment variables\n\n", am.EnvPrefix)

				rows := make([][]string, 0, len(settings))
				for _, s := range settings {
					origin := string(s.Source)
					if s.SourcePath != "" {
						origin += " " + s.SourcePath
					}
					rows = append(rows, []string{s.Key, fmt.Sprint(s.Value), origin})
				}
				return display.Table(w, []string{"KEY", "VALUE", "SOURCE"}, rows)
			})
		},
	}
}

func writeConfig(w io.Writer, cfg *am.Config, format string) error {
	switch format {
	case "json":
		return display.WriteJSON(w, cfg)

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(w, "# vvbe configuration\n%s", data)

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(w, "# vvbe configuration\n%s", data)

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	return nil
}
