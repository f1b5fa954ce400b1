package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bfil/compiler"
	"github.com/sarchlab/bfil/config"
	"github.com/sarchlab/bfil/container"
	"github.com/sarchlab/bfil/core"
	"github.com/sarchlab/bfil/decompiler"
	"github.com/sarchlab/bfil/il"
	"github.com/sarchlab/bfil/verify"
)

var (
	errInputNotFound        = errors.New("input file not found")
	errOutputExists         = errors.New("output file already exists")
	errRuntimeConfigExists  = errors.New("runtime config file already exists")
	errNoEntryPoint         = errors.New("module has no entry point")
	errUnsupportedInputFile = errors.New("unsupported input file")
)

// newFlagSet creates a flag set that reports parse errors as usage errors.
func (e *env) newFlagSet(name, args string) *flag.FlagSet {
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	set.SetOutput(e.stderr)
	set.Usage = func() {
		fmt.Fprintf(e.stderr, "usage: bfil %s %s\n", name, args)
		set.PrintDefaults()
	}
	return set
}

// parse parses flags that may appear before or after the single positional
// argument.
func parse(set *flag.FlagSet, args []string) (string, error) {
	if err := set.Parse(args); err != nil {
		return "", errUsage
	}

	positional := set.Args()
	if len(positional) > 0 {
		if err := set.Parse(positional[1:]); err != nil {
			return "", errUsage
		}
		if set.NArg() == 0 {
			return positional[0], nil
		}
	}

	set.Usage()
	return "", errUsage
}

func compileCmd(e *env, args []string) error {
	set := e.newFlagSet("compile", "<input> [flags]")
	output := set.String("o", "", "output module `path` (default <input>.dll)")
	name := set.String("n", "", "assembly `name` (default input file name)")
	version := set.String("v", config.DefaultVersion, "assembly `version`")
	cells := set.Int("c", config.DefaultCellCount, "number of tape `cells`")
	overwrite := set.Bool("w", false, "overwrite existing output files")
	runtimeConfig := set.Bool("r", true, "write the runtime config side file")
	intercept := set.Bool("i", true, "hide key presses instead of echoing them")
	profilePath := set.String("p", "", "YAML compile `profile` providing defaults")
	listing := set.Bool("l", false, "also write a YAML listing of the entry point")

	input, err := parse(set, args)
	if err != nil {
		return err
	}
	if err := checkInput(input); err != nil {
		return err
	}

	opts := config.DefaultCompileOptions(stem(input), config.DefaultVersion)
	if *profilePath != "" {
		profile, err := config.LoadProfile(*profilePath)
		if err != nil {
			return err
		}
		opts = profile.Apply(opts)
	}

	set.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			opts = opts.WithName(*name)
		case "v":
			opts = opts.WithVersion(*version)
		case "c":
			opts = opts.WithCellCount(*cells)
		case "i":
			opts = opts.WithInterceptInput(*intercept)
		}
	})

	if *output == "" {
		*output = replaceExt(input, ".dll")
	}
	configPath := container.RuntimeConfigPath(*output)
	listingPath := replaceExt(*output, ".il.yaml")

	if !*overwrite {
		if err := checkOutput(*output, errOutputExists); err != nil {
			return err
		}
		if *runtimeConfig {
			if err := checkOutput(configPath, errRuntimeConfigExists); err != nil {
				return err
			}
		}
		if *listing {
			if err := checkOutput(listingPath, errOutputExists); err != nil {
				return err
			}
		}
	}

	source, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	body, err := compiler.Compile(string(source), opts)
	if err != nil {
		return err
	}

	module, err := container.Build(body, opts)
	if err != nil {
		return err
	}

	if err := module.Save(*output); err != nil {
		return err
	}
	slog.Info("wrote module", "path", *output, "instructions", body.Len(), "code_size", body.CodeSize())

	if *runtimeConfig {
		if err := container.WriteRuntimeConfig(configPath); err != nil {
			return err
		}
		slog.Info("wrote runtime config", "path", configPath)
	}

	if *listing {
		data, err := il.MarshalListing(module.EntryPoint().FullName(), body)
		if err != nil {
			return err
		}
		if err := os.WriteFile(listingPath, data, 0o644); err != nil {
			return err
		}
		slog.Info("wrote listing", "path", listingPath)
	}

	return nil
}

func decompileCmd(e *env, args []string) error {
	set := e.newFlagSet("decompile", "<input.dll|input.il.yaml> [flags]")
	output := set.String("o", "", "output source `path` (default <input>.bf)")
	overwrite := set.Bool("w", false, "overwrite an existing output file")

	input, err := parse(set, args)
	if err != nil {
		return err
	}
	if err := checkInput(input); err != nil {
		return err
	}

	if *output == "" {
		*output = replaceExt(input, ".bf")
	}
	if !*overwrite {
		if err := checkOutput(*output, errOutputExists); err != nil {
			return err
		}
	}

	body, err := loadEntryBody(input)
	if err != nil {
		return err
	}

	result, err := decompiler.Decompile(body, config.DefaultDecompileOptions())
	if err != nil {
		return err
	}

	if err := os.WriteFile(*output, []byte(result.Program.String()), 0o644); err != nil {
		return err
	}
	slog.Info("wrote source",
		"path", *output,
		"tokens", result.Program.Len(),
		"cell_count", result.CellCount,
		"intercept_input", result.InterceptInput,
	)

	return nil
}

func runCmd(e *env, args []string) error {
	set := e.newFlagSet("run", "<input.dll|input.bf> [flags]")
	maxSteps := set.Int("max-steps", 0, "stop after `n` instructions (0 means no limit)")
	trace := set.Bool("trace", false, "log every executed instruction and print the final state")

	input, err := parse(set, args)
	if err != nil {
		return err
	}
	if err := checkInput(input); err != nil {
		return err
	}
	if *trace {
		e.enableTrace()
	}

	body, err := loadProgram(input)
	if err != nil {
		return err
	}

	engine := sim.NewSerialEngine()
	c := core.NewBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithConsole(core.NewTerminalConsole(e.stdin, e.stdout)).
		WithMaxSteps(*maxSteps).
		Build("Core")

	c.MapProgram(body)
	if err := engine.Run(); err != nil {
		return err
	}

	if *trace {
		core.PrintState(e.stderr, c)
	}

	return c.Err()
}

func disasmCmd(e *env, args []string) error {
	set := e.newFlagSet("disasm", "<input.dll> [flags]")
	output := set.String("o", "", "write the listing to `path` instead of stdout")
	overwrite := set.Bool("w", false, "overwrite an existing output file")

	input, err := parse(set, args)
	if err != nil {
		return err
	}
	if err := checkInput(input); err != nil {
		return err
	}
	if *output != "" && !*overwrite {
		if err := checkOutput(*output, errOutputExists); err != nil {
			return err
		}
	}

	module, err := container.Load(input)
	if err != nil {
		return err
	}
	entry := module.EntryPoint()
	if entry == nil {
		return errNoEntryPoint
	}

	data, err := il.MarshalListing(entry.FullName(), entry.Body)
	if err != nil {
		return err
	}

	if *output == "" {
		_, err = e.stdout.Write(data)
		return err
	}
	return os.WriteFile(*output, data, 0o644)
}

func verifyCmd(e *env, args []string) error {
	set := e.newFlagSet("verify", "<input.dll|input.bf|input.il.yaml> [flags]")
	inputText := set.String("input", "", "`text` fed to the program's key reads")
	maxSteps := set.Int("max-steps", 10_000_000, "stop after `n` instructions")
	reportPath := set.String("report", "", "also save the report to `path`")

	input, err := parse(set, args)
	if err != nil {
		return err
	}
	if err := checkInput(input); err != nil {
		return err
	}

	body, err := loadProgram(input)
	if err != nil {
		return err
	}

	report := verify.GenerateReport(body, []byte(*inputText), *maxSteps)
	report.WriteReport(e.stdout)

	if *reportPath != "" {
		if err := report.SaveReportToFile(*reportPath); err != nil {
			return err
		}
	}

	if !report.Passed() {
		return fmt.Errorf("verification failed: %d lint issues, execution error: %v",
			len(report.LintIssues), report.ExecutionErr)
	}
	return nil
}

// loadProgram returns the entry body of a module or listing, or compiles a
// source file with default options.
func loadProgram(path string) (*il.MethodBody, error) {
	if strings.EqualFold(filepath.Ext(path), ".bf") || strings.EqualFold(filepath.Ext(path), ".b") {
		source, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return compiler.Compile(string(source), config.DefaultCompileOptions(stem(path), config.DefaultVersion))
	}
	return loadEntryBody(path)
}

// loadEntryBody reads the entry body of a module, or the body of a YAML
// listing.
func loadEntryBody(path string) (*il.MethodBody, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		_, body, err := il.LoadListing(data)
		return body, err
	case ".dll", ".exe", "":
		module, err := container.Load(path)
		if err != nil {
			return nil, err
		}
		entry := module.EntryPoint()
		if entry == nil {
			return nil, errNoEntryPoint
		}
		return entry.Body, nil
	}
	return nil, fmt.Errorf("%w: %s", errUnsupportedInputFile, path)
}

func checkInput(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return fmt.Errorf("%w: %s", errInputNotFound, path)
	}
	return err
}

func checkOutput(path string, exists error) error {
	_, err := os.Stat(path)
	if err == nil {
		return fmt.Errorf("%w: %s (use -w to overwrite)", exists, path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// stem returns the file name without directory and extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
