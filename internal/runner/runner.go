// Package runner implements recipe execution: argument binding,
// dependency ordering, and shell/shebang dispatch with failure
// propagation, per spec.md §4.5.
package runner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/justrun/justrun/internal/analyzer"
	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/eval"
	"github.com/justrun/justrun/internal/justerrors"
	"github.com/justrun/justrun/internal/scope"
)

// ArgGroup is one invocation target: a recipe name plus its positional
// and flag arguments, as assembled by the (out-of-core) CLI.
type ArgGroup struct {
	Recipe string
	Args   []string
}

// Options are the global run-time policies named in spec.md §4.5 and
// §6: dry-run, highlight/color, verbosity, and the standard streams used
// for confirmation prompts, command echo, and child processes.
type Options struct {
	DryRun    bool
	Quiet     bool // global -q: suppress all command echo
	Verbose   bool
	Highlight bool
	Color     bool
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
}

// Runner orchestrates invocation over a compiled Program.
type Runner struct {
	Prog    *analyzer.Program
	Eval    *eval.Evaluator
	Global  *scope.Scope
	Opts    Options
	ran     map[string]bool
	guard   *signalGuard
}

func New(prog *analyzer.Program, ev *eval.Evaluator, global *scope.Scope, opts Options) *Runner {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Runner{Prog: prog, Eval: ev, Global: global, Opts: opts, ran: map[string]bool{}}
}

// Run validates overrides, then runs every requested argument group in
// order. The first failure aborts the whole run (spec.md §4.5: "the
// runner never retries on failure").
func (r *Runner) Run(groups []ArgGroup, overrides map[string]string) error {
	for name := range overrides {
		if _, ok := r.Prog.Assignments[name]; !ok {
			return justerrors.New(justerrors.UnknownOverrides, fmt.Sprintf("unknown override %q", name))
		}
	}
	for name, v := range overrides {
		r.Global.Bind(name, v)
	}
	// Exported assignments are bound up front so they reach every child
	// environment even when no recipe line interpolates them.
	for _, name := range r.Prog.AssignOrder {
		a := r.Prog.Assignments[name]
		if !(a.Exported || r.Eval.Settings.Export) || r.Eval.Unexported[name] {
			continue
		}
		v, err := r.Eval.Bind(name, r.Global)
		if err != nil {
			return err
		}
		r.Global.BindExported(name, v)
	}

	r.guard = installSignalGuard()
	defer r.guard.release()

	if len(groups) == 0 {
		if r.Prog.Default == nil {
			return justerrors.New(justerrors.NoRecipes, "no recipes defined")
		}
		min, _ := r.Prog.Default.MinMaxArgs()
		if min > 0 {
			return justerrors.New(justerrors.DefaultRecipeNeedsArgs, "the default recipe requires arguments")
		}
		groups = []ArgGroup{{Recipe: r.Prog.Default.Name.String()}}
	}

	for _, g := range groups {
		rr, ok := r.Prog.Recipes[g.Recipe]
		if !ok {
			return r.unknownRecipeError(g.Recipe)
		}
		if err := r.runRecipe(rr, g.Args, r.Global); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) ranKey(rr *analyzer.ResolvedRecipe, args []string) string {
	return rr.Name.String() + "\x00" + strings.Join(args, "\x00")
}

// runRecipe walks the state machine described in spec.md §4.5: confirm,
// priors, parameter binding, body, subsequents, completion.
func (r *Runner) runRecipe(rr *analyzer.ResolvedRecipe, args []string, callerScope *scope.Scope) error {
	key := r.ranKey(rr, args)
	if r.ran[key] {
		return nil
	}

	if attr, ok := rr.Attr(ast.AttrConfirm); ok {
		ok, err := r.confirm(rr, attr)
		if err != nil {
			return err
		}
		if !ok {
			return justerrors.New(justerrors.NotConfirmed, fmt.Sprintf("recipe %q was not confirmed", rr.Name))
		}
	}

	for _, dep := range rr.Priors {
		depArgs, err := r.evalDepArgs(dep, callerScope)
		if err != nil {
			return err
		}
		depRR := r.Prog.Recipes[dep.Recipe.Name.String()]
		if err := r.runRecipe(depRR, depArgs, callerScope); err != nil {
			return err
		}
	}

	sc, err := r.bindParameters(rr, args, callerScope)
	if err != nil {
		return err
	}

	if err := r.runBody(rr, sc, args); err != nil {
		return err
	}

	for _, dep := range rr.Subsequents {
		depArgs, err := r.evalDepArgs(dep, sc)
		if err != nil {
			return err
		}
		depRR := r.Prog.Recipes[dep.Recipe.Name.String()]
		if err := r.runRecipe(depRR, depArgs, sc); err != nil {
			return err
		}
	}

	r.ran[key] = true
	return nil
}

func (r *Runner) evalDepArgs(dep analyzer.ResolvedDep, sc *scope.Scope) ([]string, error) {
	out := make([]string, len(dep.Args))
	for i, a := range dep.Args {
		v, err := r.Eval.Eval(a, sc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// bindParameters iterates parameters in order, consuming supplied
// arguments, falling back to defaults, and joining variadic tails with a
// space, per spec.md §4.4.
func (r *Runner) bindParameters(rr *analyzer.ResolvedRecipe, args []string, parent *scope.Scope) (*scope.Scope, error) {
	min, max := rr.MinMaxArgs()
	if len(args) < min || (max >= 0 && len(args) > max) {
		return nil, justerrors.New(justerrors.ArgumentCountMismatch,
			fmt.Sprintf("recipe %q expects between %d and %s arguments, got %d", rr.Name, min, maxStr(max), len(args)))
	}

	sc := parent.Child()
	i := 0
	for _, p := range rr.Parameters {
		switch p.Kind {
		case ast.Singular:
			var v string
			if i < len(args) {
				v = args[i]
				i++
			} else if p.Default != nil {
				ev, err := r.Eval.Eval(p.Default, sc)
				if err != nil {
					return nil, err
				}
				v = ev
			}
			bindParam(sc, p, v)
		case ast.PlusVariadic, ast.StarVariadic:
			rest := args[i:]
			i = len(args)
			bindParam(sc, p, strings.Join(rest, " "))
		}
	}
	return sc, nil
}

func bindParam(sc *scope.Scope, p ast.Parameter, v string) {
	if p.Export {
		sc.BindExported(p.Name.String(), v)
	} else {
		sc.Bind(p.Name.String(), v)
	}
}

func maxStr(max int) string {
	if max < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", max)
}

// confirm prompts on Opts.Stdin/Stderr and returns whether the user
// accepted, per the [confirm] attribute (spec.md §6).
func (r *Runner) confirm(rr *analyzer.ResolvedRecipe, attr ast.Attribute) (bool, error) {
	if r.Opts.DryRun {
		return true, nil
	}
	prompt := fmt.Sprintf("Run recipe `%s`?", rr.Name)
	if attr.HasArg {
		prompt = attr.Arg
	}
	fmt.Fprintf(r.Opts.Stderr, "%s (y/N) ", prompt)
	reader := bufio.NewReader(r.Opts.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

func (r *Runner) unknownRecipeError(name string) error {
	sug := r.suggestFor(name)
	msg := fmt.Sprintf("unknown recipe %q", name)
	if sug != "" {
		msg += ". " + sug
	}
	return justerrors.New(justerrors.UnknownRecipe, msg)
}
