package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/justrun/justrun/internal/analyzer"
	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/eval"
	"github.com/justrun/justrun/internal/justerrors"
	"github.com/justrun/justrun/internal/scope"
)

// runBody dispatches a recipe's body to either the shebang/script path
// or the linewise path, per spec.md §4.5. args is the recipe's own
// argument vector, forwarded to the shell as $1... when
// `set positional-arguments` is on (spec.md §6).
func (r *Runner) runBody(rr *analyzer.ResolvedRecipe, sc *scope.Scope, args []string) error {
	lines := visibleLines(rr.Body, r.Eval.Settings.IgnoreComments)
	if len(lines) == 0 {
		return nil
	}

	if isShebang(lines[0]) || rr.HasAttr(ast.AttrScript) {
		return r.runScript(rr, lines, sc, args)
	}
	return r.runLinewise(rr, lines, sc, args)
}

// visibleLines drops comment-only lines unless ignore-comments is off,
// per spec.md §6 (`set ignore-comments`).
func visibleLines(body []ast.Line, ignoreComments bool) []ast.Line {
	out := make([]ast.Line, 0, len(body))
	for _, l := range body {
		if ignoreComments && l.Comment() {
			continue
		}
		out = append(out, l)
	}
	return out
}

func isShebang(l ast.Line) bool {
	return l.Shebang()
}

func stripSigils(text string) (quiet, infallible bool, rest string) {
	for len(text) > 0 {
		switch text[0] {
		case '@':
			quiet = true
			text = text[1:]
			continue
		case '-':
			infallible = true
			text = text[1:]
			continue
		}
		break
	}
	return quiet, infallible, text
}

// renderLine joins a line's fragments, evaluating interpolations.
func (r *Runner) renderLine(l ast.Line, sc *scope.Scope) (string, error) {
	var b strings.Builder
	for _, f := range l.Fragments {
		if f.Expr == nil {
			b.WriteString(f.Text)
			continue
		}
		v, err := r.Eval.Eval(f.Expr, sc)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

func (r *Runner) shellCommand(script string) (string, []string) {
	if runtime.GOOS == "windows" {
		if len(r.Eval.Settings.WindowsShell) > 0 {
			sh := r.Eval.Settings.WindowsShell
			return sh[0], append(append([]string{}, sh[1:]...), script)
		}
		if r.Eval.Settings.WindowsPowershell {
			return "powershell.exe", []string{"-NoLogo", "-Command", script}
		}
	}
	if len(r.Eval.Settings.Shell) > 0 {
		sh := r.Eval.Settings.Shell
		return sh[0], append(append([]string{}, sh[1:]...), script)
	}
	return "sh", []string{"-cu", script}
}

func (r *Runner) workingDir(rr *analyzer.ResolvedRecipe) string {
	if rr.HasAttr(ast.AttrNoCd) {
		return r.Eval.Ctx.WorkingDir
	}
	return r.Eval.Ctx.JustfileDir
}

func (r *Runner) echoEnabled(rr *analyzer.ResolvedRecipe, lineQuiet bool) bool {
	if r.Opts.Quiet || r.Eval.Settings.Quiet {
		return false
	}
	if rr.HasAttr(ast.AttrNoQuiet) {
		return true
	}
	if rr.Quiet {
		return false
	}
	return !lineQuiet
}

// runLinewise runs each body line as its own shell invocation, joining
// backslash-continued lines first, per spec.md §4.5.
func (r *Runner) runLinewise(rr *analyzer.ResolvedRecipe, lines []ast.Line, sc *scope.Scope, args []string) error {
	joined := joinContinuations(lines)
	for _, l := range joined {
		rawFirst, _ := firstTextOf(l)
		quiet, infallible, _ := stripSigils(rawFirst)

		rendered, err := r.renderLine(stripFirstSigils(l), sc)
		if err != nil {
			return err
		}
		rendered = strings.TrimSpace(rendered)
		if rendered == "" {
			continue
		}

		if r.echoEnabled(rr, quiet) {
			fmt.Fprintln(r.Opts.Stderr, rendered)
		}
		if r.Opts.DryRun {
			continue
		}

		if err := r.runOne(rendered, rr, sc, args); err != nil {
			if infallible {
				continue
			}
			return err
		}
	}
	return nil
}

func (r *Runner) runOne(script string, rr *analyzer.ResolvedRecipe, sc *scope.Scope, args []string) error {
	name, cmdArgs := r.shellCommand(script)
	if r.Eval.Settings.PositionalArguments {
		cmdArgs = append(append([]string{}, cmdArgs...), append([]string{rr.Name.String()}, args...)...)
	}
	cmd := exec.Command(name, cmdArgs...)
	cmd.Dir = r.workingDir(rr)
	cmd.Env = eval.BuildEnv(r.Eval.Ctx.Dotenv, sc)
	cmd.Stdin = r.Opts.Stdin
	cmd.Stdout = r.Opts.Stdout
	cmd.Stderr = r.Opts.Stderr
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return justerrors.New(justerrors.RecipeSpawnIOFailure, fmt.Sprintf("failed to spawn recipe %q: %v", rr.Name.String(), err))
	}
	r.guard.attach(cmd)
	err := cmd.Wait()
	r.guard.detach()
	return exitError(rr.Name.String(), err)
}

func exitError(name string, err error) error {
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if exitErr.ExitCode() >= 0 {
			return justerrors.New(justerrors.RecipeCodeFailure,
				fmt.Sprintf("recipe %q failed with exit code %d", name, exitErr.ExitCode())).
				WithContext("code", exitErr.ExitCode())
		}
		return justerrors.New(justerrors.RecipeSignalFailure, fmt.Sprintf("recipe %q was terminated by a signal", name))
	}
	return justerrors.New(justerrors.RecipeUnknownFailure, fmt.Sprintf("recipe %q failed: %v", name, err))
}

// runScript evaluates the whole body, writes it to a uniquely-named
// temp file, and executes that file directly. Grounded on spec.md §4.5's
// shebang path; the temp name uses eval.Blake2bHex so concurrent
// invocations of the same recipe with different bodies never collide.
func (r *Runner) runScript(rr *analyzer.ResolvedRecipe, lines []ast.Line, sc *scope.Scope, args []string) error {
	var b strings.Builder
	for i, l := range lines {
		rendered, err := r.renderLine(l, sc)
		if err != nil {
			return err
		}
		b.WriteString(rendered)
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	contents := b.String()

	if r.Opts.DryRun {
		if r.echoEnabled(rr, false) {
			fmt.Fprintln(r.Opts.Stderr, contents)
		}
		return nil
	}

	ext := ""
	if runtime.GOOS == "windows" {
		ext = ".ps1"
		if !strings.HasPrefix(lines[0].Fragments[0].Text, "#!") {
			ext = ".bat"
		}
	}
	tmpdir := r.Eval.Settings.Tempdir
	if tmpdir == "" {
		tmpdir = os.TempDir()
	}
	name := filepath.Join(tmpdir, "just-"+eval.Blake2bHex([]byte(contents))+ext)
	mode := os.FileMode(0o700)
	if err := os.WriteFile(name, []byte(contents), mode); err != nil {
		return justerrors.New(justerrors.TmpdirIOFailure, fmt.Sprintf("failed to write script for recipe %q: %v", rr.Name.String(), err))
	}
	defer os.Remove(name)

	path := name
	if runtime.GOOS == "windows" && strings.Contains(r.shellName(), "sh") {
		if cp, err := cygpath(name); err == nil {
			path = cp
		} else {
			return justerrors.New(justerrors.CygpathFailure, fmt.Sprintf("cygpath translation failed: %v", err))
		}
	}

	cmdName, cmdArgs := r.scriptCommand(path)
	if r.Eval.Settings.PositionalArguments {
		cmdArgs = append(append([]string{}, cmdArgs...), args...)
	}
	cmd := exec.Command(cmdName, cmdArgs...)
	cmd.Dir = r.workingDir(rr)
	cmd.Env = eval.BuildEnv(r.Eval.Ctx.Dotenv, sc)
	cmd.Stdin = r.Opts.Stdin
	cmd.Stdout = r.Opts.Stdout
	cmd.Stderr = r.Opts.Stderr
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return justerrors.New(justerrors.ShebangFailure, fmt.Sprintf("failed to run script for recipe %q: %v", rr.Name.String(), err))
	}
	r.guard.attach(cmd)
	err := cmd.Wait()
	r.guard.detach()
	return exitError(rr.Name.String(), err)
}

func (r *Runner) shellName() string {
	if len(r.Eval.Settings.Shell) > 0 {
		return r.Eval.Settings.Shell[0]
	}
	return "sh"
}

func (r *Runner) scriptCommand(path string) (string, []string) {
	if runtime.GOOS != "windows" {
		return path, nil
	}
	if r.Eval.Settings.WindowsPowershell {
		return "powershell.exe", []string{"-NoLogo", "-File", path}
	}
	return path, nil
}

func cygpath(winPath string) (string, error) {
	out, err := exec.Command("cygpath", winPath).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func joinContinuations(lines []ast.Line) []ast.Line {
	var out []ast.Line
	for i := 0; i < len(lines); i++ {
		cur := lines[i]
		for cur.Continued() && i+1 < len(lines) {
			i++
			cur = mergeContinued(cur, lines[i])
		}
		out = append(out, cur)
	}
	return out
}

func mergeContinued(a, b ast.Line) ast.Line {
	frags := make([]ast.Fragment, 0, len(a.Fragments)+len(b.Fragments))
	frags = append(frags, a.Fragments[:len(a.Fragments)-1]...)
	last := a.Fragments[len(a.Fragments)-1]
	last.Text = strings.TrimSuffix(last.Text, "\\")
	frags = append(frags, last)
	frags = append(frags, b.Fragments...)
	return ast.Line{Fragments: frags, Number: a.Number}
}

func firstTextOf(l ast.Line) (string, bool) {
	for _, f := range l.Fragments {
		if f.Expr == nil {
			return f.Text, true
		}
		return "", false
	}
	return "", false
}

func stripFirstSigils(l ast.Line) ast.Line {
	if len(l.Fragments) == 0 || l.Fragments[0].Expr != nil {
		return l
	}
	_, _, rest := stripSigils(l.Fragments[0].Text)
	out := l
	out.Fragments = append([]ast.Fragment{}, l.Fragments...)
	out.Fragments[0] = ast.Fragment{Text: rest, P: l.Fragments[0].P}
	return out
}
