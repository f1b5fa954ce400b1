// Command bfil compiles tape-language programs into stack-machine modules,
// decompiles them back and runs them.
//
//	bfil compile hello.bf            # writes hello.dll and hello.runtimeconfig.json
//	bfil decompile hello.dll         # writes hello.bf
//	bfil run hello.dll
//	bfil disasm hello.dll
//	bfil verify hello.bf -input "abc"
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/bfil/core"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = errors.New("usage error")

type command struct {
	name    string
	summary string
	run     func(env *env, args []string) error
}

var commands = []command{
	{"compile", "compile a source file into a module", compileCmd},
	{"decompile", "recover the source of a module or listing", decompileCmd},
	{"run", "run a module or source file on the console", runCmd},
	{"disasm", "print the entry point of a module as a YAML listing", disasmCmd},
	{"verify", "lint and execute a module or source file", verifyCmd},
}

// env is the process environment a command runs in.
type env struct {
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer
	level  *slog.LevelVar
}

func main() {
	atexit.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	e := &env{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		level:  new(slog.LevelVar),
	}
	e.level.Set(slog.LevelInfo)

	handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: e.level})
	slog.SetDefault(slog.New(handler))

	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}

		err := c.run(e, args[1:])
		switch {
		case err == nil:
			return exitOK
		case errors.Is(err, errUsage):
			return exitUsage
		default:
			fmt.Fprintf(stderr, "bfil %s: %v\n", c.name, err)
			return exitFailure
		}
	}

	fmt.Fprintf(stderr, "bfil: unknown command %q\n", args[0])
	usage(stderr)
	return exitUsage
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: bfil <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}

// enableTrace lowers the log level so per-instruction records show.
func (e *env) enableTrace() {
	e.level.Set(core.LevelTrace)
}
