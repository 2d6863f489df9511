package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&replCmd{}, "")
	subcommands.Register(&emitCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	status := subcommands.Execute(ctx)
	os.Exit(exitCode(status))
}

// exitCode translates a subcommands.ExitStatus to spec's two-valued
// contract: 0 on success, 255 on anything else.
func exitCode(status subcommands.ExitStatus) int {
	if status == subcommands.ExitSuccess {
		return 0
	}
	return 255
}
