package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"loxvm/internal/debug"
)

// emitCmd dumps a source file's compiled bytecode as hex plus a disassembly
// listing, grounded on the teacher's emitBytecodeCmd.
type emitCmd struct {
	disassemble  bool
	dumpBytecode bool
}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "Emit the bytecode representation of a source file" }
func (*emitCmd) Usage() string {
	return `emit <file>:
  Compile <file> and write its bytecode to disk.
`
}

func (cmd *emitCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.disassemble, "disassemble", true, "write a disassembly listing (.dnic)")
	f.BoolVar(&cmd.dumpBytecode, "dump", true, "write the raw hex-encoded bytecode (.nic)")
}

func (cmd *emitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "file not provided")
		return subcommands.ExitUsageError
	}
	filename := args[0]

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

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	if cmd.dumpBytecode {
		if err := debug.DumpBytecode(fn, stem); err != nil {
			fmt.Fprintf(os.Stderr, "[File : %s] dump bytecode: %v\n", filename, err)
			return subcommands.ExitFailure
		}
	}
	if cmd.disassemble {
		if _, err := debug.DisassembleToFile(fn, stem); err != nil {
			fmt.Fprintf(os.Stderr, "[File : %s] disassemble: %v\n", filename, err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
