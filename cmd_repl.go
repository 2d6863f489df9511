package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"loxvm/internal/config"
	"loxvm/lexer"
	"loxvm/token"
	"loxvm/vm"
)

// replCmd runs an interactive session: each complete input is compiled and
// executed immediately on its own. The VM object is reused, but every Run
// starts from an empty stack and every input is compiled with no knowledge
// of earlier ones, so vars declared on one input are not visible on the next.
type replCmd struct {
	configPath string
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive loxvm session.
`
}

func (r *replCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.configPath, "config", "loxvm.toml", "path to an optional loxvm.toml")
}

func (r *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(r.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return subcommands.ExitFailure
	}

	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start readline: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	machine := vm.NewWithStackSize(cfg.StackSize)

	var buffer strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buffer.Len() == 0 {
				continue
			}
			buffer.Reset()
			rl.SetPrompt(">>> ")
			continue
		}
		if err == io.EOF {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		toks, lexErr := lexer.New(source).Scan()
		if lexErr != nil {
			fmt.Fprintln(os.Stderr, lexErr)
			buffer.Reset()
			rl.SetPrompt(">>> ")
			continue
		}

		if !isInputReady(toks) {
			rl.SetPrompt("... ")
			continue
		}
		rl.SetPrompt(">>> ")

		fn, compileErr := compileSource(source)
		if compileErr != nil {
			fmt.Fprintln(os.Stderr, compileErr)
			buffer.Reset()
			continue
		}

		if runErr := machine.Run(fn); runErr != nil {
			fmt.Fprintln(os.Stderr, runErr)
		}
		buffer.Reset()
	}
}

// isInputReady reports whether tokens form a balanced, complete statement,
// so the REPL knows to keep buffering multi-line input (an "if (x) {" block
// spanning several Readline calls) rather than compiling a half-finished
// program.
func isInputReady(tokens []token.Token) bool {
	braceBalance := 0
	for _, tok := range tokens {
		switch tok.TokenType {
		case token.LCUR:
			braceBalance++
		case token.RCUR:
			braceBalance--
		}
	}
	if braceBalance > 0 {
		return false
	}

	last := lastNonEOF(tokens)
	if last == nil {
		return true
	}

	switch last.TokenType {
	case token.ASSIGN,
		token.ADD,
		token.SUB,
		token.MULT,
		token.DIV,
		token.BANG,
		token.EQUAL_EQUAL,
		token.NOT_EQUAL,
		token.LESS,
		token.LESS_EQUAL,
		token.LARGER,
		token.LARGER_EQUAL,
		token.COMMA,
		token.LPA,
		token.LCUR,
		token.IF,
		token.ELSE,
		token.WHILE,
		token.FOR,
		token.FUNC,
		token.RETURN,
		token.VAR,
		token.AND,
		token.OR,
		token.PRINT:
		return false
	}
	return true
}

func lastNonEOF(tokens []token.Token) *token.Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].TokenType != token.EOF {
			return &tokens[i]
		}
	}
	return nil
}
