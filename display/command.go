// Package display renders command results as JSON or as pterm tables.
package display

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// OutputEnv forces JSON output when set to "json"
const OutputEnv = "VVBE_OUTPUT"

// ShouldOutputJSON reports whether cmd should print JSON: the command's own
// --json flag wins, then the root persistent flag, then VVBE_OUTPUT.
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return os.Getenv(OutputEnv) == "json"
	}

	if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
		on, _ := cmd.Flags().GetBool("json")
		return on
	}

	if on, _ := cmd.Root().PersistentFlags().GetBool("json"); on {
		return true
	}

	return os.Getenv(OutputEnv) == "json"
}

// Output writes v as JSON when the command asks for it, otherwise calls
// render for the human-readable form.
func Output(cmd *cobra.Command, v interface{}, render func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if ShouldOutputJSON(cmd) {
		return WriteJSON(w, v)
	}
	return render(w)
}

// Table renders rows under header to w.
func Table(w io.Writer, header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	table, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed(false).
		WithData(data).
		Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	return err
}
