// Package eval implements expression evaluation with a call-by-need
// variable scope, per spec.md §4.4: every value the core manipulates is
// a string (spec.md §9), functions are pure given their arguments and a
// Context, and assignments memoize into the Scope they were evaluated
// against.
package eval

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/justerrors"
	"github.com/justrun/justrun/internal/scope"
)

// Evaluator evaluates expressions and recipe lines against a settings
// record, a dotenv mapping, and an assignment table. It holds no
// per-run state itself; that lives in the Scope passed to each call.
type Evaluator struct {
	Settings    ast.Settings
	Assignments map[string]*ast.Assignment
	Ctx         Context
	// Unexported names an `unexport NAME` directive removed from the
	// exported set; Bind consults it so a later lazy evaluation of that
	// assignment doesn't re-export it (spec.md's unexport directive,
	// resolved against a scope chain whose bindings are memoized on
	// first lookup rather than up front).
	Unexported map[string]bool
}

func New(settings ast.Settings, assignments map[string]*ast.Assignment, ctx Context) *Evaluator {
	return &Evaluator{Settings: settings, Assignments: assignments, Ctx: ctx, Unexported: map[string]bool{}}
}

// Bind resolves name against sc, evaluating and memoizing its
// assignment on a cache miss. Cycles are impossible here: AssignmentResolver
// has already run by the time the evaluator is invoked.
func (e *Evaluator) Bind(name string, sc *scope.Scope) (string, error) {
	if v, ok := sc.Lookup(name); ok {
		return v, nil
	}
	a, ok := e.Assignments[name]
	if !ok {
		return "", justerrors.New(justerrors.EvalUnknownVariable, fmt.Sprintf("unknown variable %q", name))
	}
	v, err := e.Eval(a.Value, sc)
	if err != nil {
		return "", err
	}
	if (a.Exported || e.Settings.Export) && !e.Unexported[name] {
		sc.BindExported(name, v)
	} else {
		sc.Bind(name, v)
	}
	return v, nil
}

// Eval evaluates a single expression to a string.
func (e *Evaluator) Eval(expr ast.Expr, sc *scope.Scope) (string, error) {
	switch n := expr.(type) {
	case ast.StringLit:
		return n.Cooked, nil

	case ast.Variable:
		return e.Bind(n.Name.String(), sc)

	case ast.Concat:
		l, err := e.Eval(n.Left, sc)
		if err != nil {
			return "", err
		}
		r, err := e.Eval(n.Right, sc)
		if err != nil {
			return "", err
		}
		return l + r, nil

	case ast.Group:
		return e.Eval(n.Inner, sc)

	case ast.Join:
		r, err := e.Eval(n.Right, sc)
		if err != nil {
			return "", err
		}
		if n.Left == nil {
			return "/" + r, nil
		}
		l, err := e.Eval(n.Left, sc)
		if err != nil {
			return "", err
		}
		if l == "" {
			return r, nil
		}
		return strings.TrimRight(l, "/") + "/" + r, nil

	case ast.Conditional:
		ok, err := e.evalCondition(n.Cond, sc)
		if err != nil {
			return "", err
		}
		if ok {
			return e.Eval(n.Then, sc)
		}
		return e.Eval(n.Otherwise, sc)

	case ast.Assert:
		ok, err := e.evalCondition(n.Cond, sc)
		if err != nil {
			return "", err
		}
		if ok {
			return "", nil
		}
		msg, err := e.Eval(n.Message, sc)
		if err != nil {
			return "", err
		}
		return "", justerrors.At(justerrors.FunctionCallFailure, n.Pos(), msg)

	case ast.Logical:
		l, err := e.Eval(n.Left, sc)
		if err != nil {
			return "", err
		}
		switch n.Op {
		case ast.LogicalAnd:
			if l == "" {
				return l, nil
			}
			return e.Eval(n.Right, sc)
		default: // LogicalOr
			if l != "" {
				return l, nil
			}
			return e.Eval(n.Right, sc)
		}

	case ast.BacktickLit:
		return e.runBacktick(n, sc)

	case ast.Call:
		return e.evalCall(n, sc)
	}
	return "", justerrors.New(justerrors.InternalError, fmt.Sprintf("unhandled expression node %T", expr))
}

func (e *Evaluator) evalCondition(c ast.Condition, sc *scope.Scope) (bool, error) {
	l, err := e.Eval(c.Lhs, sc)
	if err != nil {
		return false, err
	}
	r, err := e.Eval(c.Rhs, sc)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case ast.OpEq:
		return l == r, nil
	case ast.OpNeq:
		return l != r, nil
	case ast.OpMatch, ast.OpNotMatch:
		re, err := regexp.Compile(r)
		if err != nil {
			return false, justerrors.At(justerrors.RegexCompileFailure, c.Pos, fmt.Sprintf("invalid regex %q: %v", r, err))
		}
		matched := re.MatchString(l)
		if c.Op == ast.OpNotMatch {
			return !matched, nil
		}
		return matched, nil
	}
	return false, nil
}

// runBacktick runs the shell with the backtick's contents as the
// command in the working directory, capturing stdout. In dry-run mode it
// returns the literal source text instead of running anything (spec.md
// §8 invariant 6: dry-run must not spawn backtick children).
func (e *Evaluator) runBacktick(n ast.BacktickLit, sc *scope.Scope) (string, error) {
	if e.Ctx.DryRun {
		return "`" + n.Command + "`", nil
	}
	shell := e.Settings.Shell
	if len(shell) == 0 {
		shell = []string{"sh", "-cu"}
	}
	args := append(append([]string{}, shell[1:]...), n.Command)
	cmd := exec.Command(shell[0], args...)
	cmd.Dir = e.Ctx.WorkingDir
	cmd.Env = BuildEnv(e.Ctx.Dotenv, sc)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			if exitErr.ExitCode() >= 0 {
				return "", justerrors.At(justerrors.BacktickFailed, n.Pos(),
					fmt.Sprintf("backtick failed with exit code %d: %s", exitErr.ExitCode(), n.Command)).
					WithContext("code", exitErr.ExitCode())
			}
			return "", justerrors.At(justerrors.BacktickFailed, n.Pos(),
				fmt.Sprintf("backtick terminated by signal: %s", n.Command))
		}
		return "", justerrors.At(justerrors.BacktickFailed, n.Pos(), fmt.Sprintf("backtick failed to run: %v", err))
	}
	out := stdout.String()
	out = strings.TrimSuffix(out, "\n")
	out = strings.TrimSuffix(out, "\r")
	return out, nil
}

// BuildEnv assembles a child process environment: the inherited process
// environment, overlaid with the dotenv map, overlaid with every
// currently-exported name in sc (spec.md §4.5: "the dotenv map plus
// exported assignments plus any parameter with `$` export, minus
// explicit unexports" — the last part falls out of sc.Exported already
// excluding unexported names).
func BuildEnv(dotenv map[string]string, sc *scope.Scope) []string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range dotenv {
		env[k] = v
	}
	for k, v := range sc.Exported() {
		env[k] = v
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
