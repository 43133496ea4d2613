package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/display"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/graphscript"
	"github.com/teranos/verseblueprint/graphstore"
	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/versegen"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Create and edit blueprint graph records",
		Long: `Create and edit blueprint graph records (.blueprint, .json, .yaml, .toml).

Nodes are addressed by name and pins as <node>.<pin>. Every edit loads the
record, applies the change and saves it back in the same format.

Examples:
  vvbe graph new Counter.blueprint --name Counter
  vvbe graph add-node Counter.blueprint event OnPressed ClassName=button_device EventName=InteractedWithEvent
  vvbe graph add-node Counter.blueprint function Increment
  vvbe graph connect Counter.blueprint OnPressed.Exec Increment.Exec
  vvbe graph add-var Counter.blueprint Score int 0 --desc "Points so far"
  vvbe graph apply Counter.blueprint edits.txt`,
	}
	cmd.AddCommand(
		newGraphNewCmd(),
		newGraphApplyCmd(),
		newGraphAddNodeCmd(),
		newGraphScriptCmd("set <graph> <node> key=value...", "Set node properties", "set", cobra.MinimumNArgs(3)),
		newGraphScriptCmd("connect <graph> <node>.<pin> <node>.<pin>", "Connect two pins", "connect", cobra.ExactArgs(3)),
		newGraphScriptCmd("disconnect <graph> <node>.<pin> <node>.<pin>", "Remove every connection between two pins", "disconnect", cobra.ExactArgs(3)),
		newGraphScriptCmd("remove-node <graph> <node>", "Remove a node and its connections", "remove", cobra.ExactArgs(2)),
		newGraphScriptCmd("remove-var <graph> <name>", "Remove a variable", "unvar", cobra.ExactArgs(2)),
		newGraphAddVarCmd(),
		newGraphShowCmd(),
		newGraphValidateCmd(),
	)
	return cmd
}

func newGraphNewCmd() *cobra.Command {
	var (
		name      string
		className string
		filePath  string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "new <graph>",
		Short: "Create an empty graph record",
		Long: `Create an empty graph record. Without an extension, the record format
comes from graph.format in am.toml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			path := graphPath(args[0], cfg.Graph.Format)
			if _, err := os.Stat(path); err == nil && !force {
				return errors.WithHint(
					errors.NewInvalidRequestError("graph %s already exists", path),
					"use --force to overwrite it")
			}

			if name == "" {
				name = cfg.Graph.DefaultName
			}
			svc, store := newStore()
			g := svc.NewGraph(name)
			if className != "" {
				g.DeviceClassName = className
			}
			g.FilePath = filePath

			if err := store.Save(g, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Graph name (default graph.default_name)")
	cmd.Flags().StringVar(&className, "class", "", "Device class name (default <name>_device)")
	cmd.Flags().StringVar(&filePath, "output", "", "Verse file the graph generates into")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing record")
	return cmd
}

func newGraphApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <graph> <script|->",
		Short: "Apply an edit script to a graph record",
		Long: `Apply a graph edit script, one command per line:

  class   <device class name>
  import  <import line>
  node    <kind> <name> [x y] [key=value ...]
  set     <node> key=value ...
  var     <name> <type> [default] [--private] [--readonly] [--desc text]
  unvar   <name>
  connect <node>.<pin> <node>.<pin>
  disconnect <node>.<pin> <node>.<pin>
  remove  <node>

The record is saved only when every line applies.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var script io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return errors.Wrapf(err, "failed to open script %s", args[1])
				}
				defer f.Close()
				script = f
			}
			return editGraph(cmd, args[0], func(r *graphscript.Runner, g *blueprint.Graph) error {
				return r.Apply(g, script)
			})
		},
	}
}

func newGraphAddNodeCmd() *cobra.Command {
	var x, y float64

	cmd := &cobra.Command{
		Use:   "add-node <graph> <kind> <name> [key=value...]",
		Short: "Add an event, function or variable node",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			words := []string{"node", args[1], args[2],
				strconv.FormatFloat(x, 'f', -1, 64), strconv.FormatFloat(y, 'f', -1, 64)}
			words = append(words, args[3:]...)
			return runScriptLine(cmd, args[0], words...)
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "Canvas x position")
	cmd.Flags().Float64Var(&y, "y", 0, "Canvas y position")
	return cmd
}

func newGraphAddVarCmd() *cobra.Command {
	var (
		private     bool
		readonly    bool
		description string
	)

	cmd := &cobra.Command{
		Use:   "add-var <graph> <name> <type> [default]",
		Short: "Add a device variable",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			words := append([]string{"var"}, args[1:]...)
			if private {
				words = append(words, "--private")
			}
			if readonly {
				words = append(words, "--readonly")
			}
			if description != "" {
				words = append(words, "--desc", description)
			}
			return runScriptLine(cmd, args[0], words...)
		},
	}
	cmd.Flags().BoolVar(&private, "private", false, "Declare without the Public_ prefix")
	cmd.Flags().BoolVar(&readonly, "readonly", false, "Omit the @editable attribute")
	cmd.Flags().StringVar(&description, "desc", "", "Variable description")
	return cmd
}

// newGraphScriptCmd maps a subcommand onto a single script command taking
// the remaining arguments verbatim.
func newGraphScriptCmd(use, short, command string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScriptLine(cmd, args[0], append([]string{command}, args[1:]...)...)
		},
	}
}

func newGraphShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <graph>",
		Short: "Show the nodes, variables and connections of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store := newStore()
			g, err := store.Load(args[0])
			if err != nil {
				return err
			}
			return display.Output(cmd, g, func(w io.Writer) error {
				return renderGraph(w, g)
			})
		},
	}
}

func newGraphValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <graph>",
		Short: "Report dangling connections and incomplete event nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store := newStore()
			g, err := store.Load(args[0])
			if err != nil {
				return err
			}

			issues := versegen.Validate(g)
			if issues == nil {
				issues = []versegen.Issue{}
			}
			if err := display.Output(cmd, issues, func(w io.Writer) error {
				if len(issues) == 0 {
					fmt.Fprintln(w, "✓ Graph is valid")
				}
				for _, issue := range issues {
					fmt.Fprintf(w, "✗ %s\n", issue)
				}
				return nil
			}); err != nil {
				return err
			}

			if len(issues) > 0 {
				return errors.Wrapf(errors.ErrDanglingReference, "graph %q has %d issue(s)", g.Name, len(issues))
			}
			return nil
		},
	}
}

// runScriptLine quotes words into one script line and applies it.
func runScriptLine(cmd *cobra.Command, path string, words ...string) error {
	line := shellquote.Join(words...)
	logger.Debugw("Applying graph edit", logger.FieldFile, path, logger.FieldOperation, line)
	return editGraph(cmd, path, func(r *graphscript.Runner, g *blueprint.Graph) error {
		return r.ApplyString(g, line)
	})
}

func editGraph(cmd *cobra.Command, path string, edit func(*graphscript.Runner, *blueprint.Graph) error) error {
	svc, store := newStore()
	g, err := store.Load(path)
	if err != nil {
		return err
	}

	if err := edit(graphscript.NewRunner(svc, logger.Logger), g); err != nil {
		return errors.Wrapf(err, "failed to edit %s", path)
	}
	if err := store.Save(g, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d node(s), %d connection(s), %d variable(s)\n",
		path, len(g.Nodes), len(g.Connections), len(g.Variables))
	return nil
}

// graphPath adds the record extension for format when path has none.
func graphPath(path, format string) string {
	if filepath.Ext(path) != "" {
		return path
	}
	switch graphstore.Format(format) {
	case graphstore.FormatYAML:
		return path + ".yaml"
	case graphstore.FormatTOML:
		return path + ".toml"
	default:
		return path + graphstore.Extension
	}
}

func renderGraph(w io.Writer, g *blueprint.Graph) error {
	fmt.Fprintf(w, "%s (%s)\n", g.Name, g.DeviceClassName)
	if g.FilePath != "" {
		fmt.Fprintf(w, "  output: %s\n", g.FilePath)
	}
	if len(g.Imports) > 0 {
		fmt.Fprintf(w, "  imports: %s\n", strings.Join(g.Imports, ", "))
	}
	fmt.Fprintln(w)

	nodeRows := make([][]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		props := make([]string, 0, len(n.Properties))
		for _, key := range []string{blueprint.PropClassName, blueprint.PropEventName, blueprint.PropVariableName} {
			if v, ok := n.Properties[key]; ok {
				props = append(props, key+"="+v)
			}
		}
		nodeRows = append(nodeRows, []string{
			n.Name,
			n.Kind,
			fmt.Sprintf("%g,%g", n.X, n.Y),
			strings.Join(props, " "),
		})
	}
	if err := display.Table(w, []string{"NODE", "KIND", "POSITION", "PROPERTIES"}, nodeRows); err != nil {
		return err
	}

	if len(g.Variables) > 0 {
		varRows := make([][]string, 0, len(g.Variables))
		for _, v := range g.Variables {
			varRows = append(varRows, []string{
				v.Name,
				v.Type,
				v.DefaultValue,
				strconv.FormatBool(v.IsEditable),
				strconv.FormatBool(v.IsPublic),
			})
		}
		fmt.Fprintln(w)
		if err := display.Table(w, []string{"VARIABLE", "TYPE", "DEFAULT", "EDITABLE", "PUBLIC"}, varRows); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\n%d connection(s)\n", len(g.Connections))
	return nil
}
