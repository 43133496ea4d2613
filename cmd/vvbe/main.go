package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"github.com/teranos/verseblueprint/cmd/vvbe/commands"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

func main() {
	defer logger.Cleanup()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, pterm.Error.Sprint(err.Error()))
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.IsInvalidRequestError(err):
		return 2
	case errors.IsNotFoundError(err):
		return 3
	default:
		return 1
	}
}
