package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"loxvm/compiler"
	"loxvm/internal/config"
	"loxvm/internal/debug"
	"loxvm/lexer"
	"loxvm/value"
	"loxvm/vm"
)

// runCmd compiles and executes a single source file, the loxvm equivalent
// of the teacher's runCompiledCmd.
type runCmd struct {
	configPath string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Compile and execute a source file" }
func (*runCmd) Usage() string {
	return `run <file>:
  Compile and execute loxvm source from <file>.
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.configPath, "config", "loxvm.toml", "path to an optional loxvm.toml")
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "file not provided")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	cfg, err := config.Load(r.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[File : %s] failed to load config: %v\n", r.configPath, err)
		return subcommands.ExitFailure
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[File : %s] failed to read file: %v\n", filename, err)
		return subcommands.ExitFailure
	}

	fn, err := compileSource(string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "[File : %s]%s\n", filename, err.Error())
		return subcommands.ExitFailure
	}

	if cfg.Disassemble {
		if rendered, derr := debug.Disassemble(fn); derr == nil {
			fmt.Fprint(os.Stderr, rendered)
		}
	}

	machine := vm.NewWithStackSize(cfg.StackSize)
	machine.Trace = cfg.Trace
	if err := machine.Run(fn); err != nil {
		fmt.Fprintf(os.Stderr, "[File : %s]%s\n", filename, err.Error())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// compileSource lexes then compiles source, returning the first error from
// either stage unchanged. Both kinds already start with "[Line : <n>]"; the
// file-level caller attaches "[File : ...]" around whichever error reaches it.
func compileSource(source string) (*value.Function, error) {
	toks, err := lexer.New(source).Scan()
	if err != nil {
		return nil, err
	}
	return compiler.Compile(toks)
}
