package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/watch"
)

func newGenerateCmd() *cobra.Command {
	var (
		output string
		strict bool
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "generate <graph>",
		Short: "Generate Verse source from a graph record",
		Long: `Generate a Verse creative_device class from a blueprint graph record.

The output file defaults to the graph's file_path, else the graph path with
a .verse extension. --strict refuses to write when the graph has dangling
connections or event nodes without ClassName/EventName.

Examples:
  vvbe generate Counter.blueprint
  vvbe generate Counter.blueprint -o Verse/counter_device.verse
  vvbe generate Counter.yaml --stdout`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			_, store := newStore()
			g, err := store.LoadStrict(args[0])
			if err != nil {
				return err
			}

			gen := newGenerator(cfg, strict)
			if stdout {
				fmt.Fprint(cmd.OutOrStdout(), gen.Generate(g))
				return nil
			}

			out := output
			if out == "" {
				out = watch.OutputPath(args[0], g)
			}
			if err := gen.ExportToFile(g, out); err != nil {
				return err
			}

			logger.Debugw("Generated device", logger.FieldGraph, g.Name, logger.FieldOutput, out)
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Clean(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output .verse file")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the graph has validation issues")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the source instead of writing a file")
	return cmd
}
