// Command justrun is the CLI entry point wiring lexer, parser,
// analyzer, evaluator, and runner together, per spec.md §6. Flag
// layout and error-printing/exit-code handling are modeled on the
// teacher's cli/main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/justrun/justrun/internal/analyzer"
	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/color"
	"github.com/justrun/justrun/internal/diag"
	"github.com/justrun/justrun/internal/eval"
	"github.com/justrun/justrun/internal/justerrors"
	"github.com/justrun/justrun/internal/lexer"
	"github.com/justrun/justrun/internal/parser"
	"github.com/justrun/justrun/internal/runner"
	"github.com/justrun/justrun/internal/scope"
	"github.com/justrun/justrun/internal/watch"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var (
		file       string
		workingDir string
		dryRun     bool
		noColor    bool
		colorMode  string
		quiet      bool
		verbose    bool
		noDotenv   bool
		dotenvFile string
		dotenvPath string
		shellOver  string
		watchFlag  bool
	)

	var overrides []string

	root := &cobra.Command{
		Use:           "justrun [recipe] [args...]",
		Short:         "Run recipes defined in a justfile",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			useColor := color.ShouldUse(noColor) && colorMode != "never"
			if colorMode == "always" {
				useColor = true
			}

			groups, ovPairs, err := splitArgs(args, overrides)
			if err != nil {
				return err
			}

			opts := cliOptions{
				file:       file,
				workingDir: workingDir,
				dryRun:     dryRun,
				quiet:      quiet,
				verbose:    verbose,
				noDotenv:   noDotenv,
				dotenvFile: dotenvFile,
				dotenvPath: dotenvPath,
				shellOver:  shellOver,
				useColor:   useColor,
			}

			exitCode, source, runErr := execute(opts, groups, ovPairs)
			if runErr != nil {
				printError(runErr, source, useColor)
			}
			if watchFlag {
				return watchLoop(opts, groups, ovPairs, useColor)
			}
			if exitCode != 0 {
				os.Exit(exitCode)
			}
			return nil
		},
	}

	root.Flags().StringVarP(&file, "file", "f", "justfile", "path to the justfile")
	root.Flags().StringVarP(&workingDir, "working-directory", "d", "", "directory to run recipes in")
	root.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print what would run without running it")
	root.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.Flags().StringVar(&colorMode, "color", "auto", "color mode: auto, always, never")
	root.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress command echo")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace lex/parse/run stages")
	root.Flags().BoolVar(&noDotenv, "no-dotenv", false, "disable dotenv loading")
	root.Flags().StringVar(&dotenvFile, "dotenv-filename", "", "override the dotenv filename")
	root.Flags().StringVar(&dotenvPath, "dotenv-path", "", "explicit dotenv path")
	root.Flags().StringVar(&shellOver, "shell", "", "override the configured shell")
	root.Flags().BoolVarP(&watchFlag, "watch", "w", false, "re-run the selected recipes when the justfile changes")
	root.Flags().StringArrayVar(&overrides, "set", nil, "variable override NAME=VALUE")

	root.SetArgs(argv)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type cliOptions struct {
	file       string
	workingDir string
	dryRun     bool
	quiet      bool
	verbose    bool
	noDotenv   bool
	dotenvFile string
	dotenvPath string
	shellOver  string
	useColor   bool
}

// splitArgs separates positional "recipe arg..." groups from NAME=VALUE
// overrides, per spec.md §6.
func splitArgs(args []string, explicit []string) ([]runner.ArgGroup, map[string]string, error) {
	ov := map[string]string{}
	for _, pair := range explicit {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, nil, fmt.Errorf("invalid --set value %q, want NAME=VALUE", pair)
		}
		ov[k] = v
	}

	var positional []string
	for _, a := range args {
		if strings.Contains(a, "=") && !strings.HasPrefix(a, "-") {
			k, v, _ := strings.Cut(a, "=")
			ov[k] = v
			continue
		}
		positional = append(positional, a)
	}
	if len(positional) == 0 {
		return nil, ov, nil
	}
	return []runner.ArgGroup{{Recipe: positional[0], Args: positional[1:]}}, ov, nil
}

func execute(opts cliOptions, groups []runner.ArgGroup, overrides map[string]string) (int, string, error) {
	logger := diag.New(diag.Off, os.Stderr)
	if opts.verbose {
		logger = diag.New(diag.Verbose, os.Stderr)
	}

	rawSource, err := os.ReadFile(opts.file)
	if err != nil {
		return 1, "", justerrors.New(justerrors.LoadFailure, fmt.Sprintf("failed to read %q: %v", opts.file, err))
	}
	source := string(rawSource)
	absFile, _ := filepath.Abs(opts.file)
	justDir := filepath.Dir(absFile)

	logger.Stage("lex", "lexing %s", opts.file)
	lx := lexer.New(absFile, rawSource)
	toks, err := lx.Lex()
	if err != nil {
		return 1, source, err
	}

	logger.Stage("parse", "parsing %d tokens", len(toks))
	ps := parser.New(absFile, toks)
	primary, err := ps.Parse()
	if err != nil {
		return 1, source, err
	}

	imported, err := loadImports(primary, justDir, map[string]bool{absFile: true})
	if err != nil {
		return 1, source, err
	}

	logger.Stage("analyze", "analyzing %s plus %d imports", opts.file, len(imported))
	prog, err := analyzer.Analyze(primary, imported...)
	if err != nil {
		return 1, source, err
	}

	wd := opts.workingDir
	if wd == "" {
		wd = justDir
	}
	invDir, _ := os.Getwd()

	dotenv := map[string]string{}
	if !opts.noDotenv && (prog.Settings.DotenvLoad || prog.Settings.DotenvPath != "" || opts.dotenvFile != "" || opts.dotenvPath != "") {
		dotenv, err = loadDotenv(prog.Settings, opts, justDir)
		if err != nil {
			return 1, source, err
		}
	}

	shell := prog.Settings.Shell
	if opts.shellOver != "" {
		shell = []string{opts.shellOver, "-cu"}
		prog.Settings.Shell = shell
	}

	ctx := eval.Context{
		WorkingDir:          wd,
		InvocationDir:       invDir,
		InvocationDirNative: invDir,
		JustfilePath:        absFile,
		JustfileDir:         justDir,
		Dotenv:              dotenv,
		DryRun:              opts.dryRun,
		Shell:               shell,
		JustExecutable:      os.Args[0],
	}

	ev := eval.New(prog.Settings, prog.Assignments, ctx)
	ev.Unexported = prog.Unexported
	global := scope.Root()
	for k, v := range dotenv {
		global.Bind(k, v)
	}

	ropts := runner.Options{
		DryRun:  opts.dryRun,
		Quiet:   opts.quiet,
		Verbose: opts.verbose,
		Color:   opts.useColor,
	}
	rn := runner.New(prog, ev, global, ropts)

	logger.Stage("run", "running %d recipe group(s)", len(groups))
	if err := rn.Run(groups, overrides); err != nil {
		return exitCodeFor(err), source, err
	}
	return 0, source, nil
}

func loadImports(f *ast.File, dir string, visited map[string]bool) ([]*ast.File, error) {
	var out []*ast.File
	for _, imp := range f.Imports {
		path := imp.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if visited[path] {
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			if imp.Optional {
				continue
			}
			return nil, justerrors.At(justerrors.LoadFailure, imp.Pos, fmt.Sprintf("failed to read import %q: %v", imp.Path, err))
		}
		visited[path] = true
		lx := lexer.New(path, src)
		toks, err := lx.Lex()
		if err != nil {
			return nil, err
		}
		ps := parser.New(path, toks)
		imported, err := ps.Parse()
		if err != nil {
			return nil, err
		}
		out = append(out, imported)
		nested, err := loadImports(imported, filepath.Dir(path), visited)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

func loadDotenv(settings ast.Settings, opts cliOptions, justDir string) (map[string]string, error) {
	name := settings.DotenvFilename
	if opts.dotenvFile != "" {
		name = opts.dotenvFile
	}
	if name == "" {
		name = ".env"
	}
	path := settings.DotenvPath
	if opts.dotenvPath != "" {
		path = opts.dotenvPath
	}
	if path == "" {
		path = filepath.Join(justDir, name)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) && !settings.DotenvRequired {
			return map[string]string{}, nil
		}
		return nil, justerrors.New(justerrors.DotenvLoadFailure, fmt.Sprintf("failed to load dotenv %q: %v", path, err))
	}
	return env, nil
}

func exitCodeFor(err error) int {
	if je, ok := err.(*justerrors.JustError); ok {
		if code, ok := je.Context["code"].(int); ok {
			return code
		}
	}
	return 1
}

func printError(err error, source string, useColor bool) {
	if je, ok := err.(*justerrors.JustError); ok {
		fmt.Fprintln(os.Stderr, justerrors.Pretty(je, source, useColor))
		return
	}
	fmt.Fprintln(os.Stderr, err)
}

func watchLoop(opts cliOptions, groups []runner.ArgGroup, overrides map[string]string, useColor bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	paths := []string{opts.file}
	return watch.Run(ctx, paths, func() {
		if _, source, err := execute(opts, groups, overrides); err != nil {
			printError(err, source, useColor)
		}
	})
}
