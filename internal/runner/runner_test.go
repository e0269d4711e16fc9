package runner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justrun/justrun/internal/analyzer"
	"github.com/justrun/justrun/internal/eval"
	"github.com/justrun/justrun/internal/justerrors"
	"github.com/justrun/justrun/internal/lexer"
	"github.com/justrun/justrun/internal/parser"
	"github.com/justrun/justrun/internal/scope"
)

func TestStripSigils(t *testing.T) {
	quiet, infallible, rest := stripSigils("@-echo hi")
	assert.True(t, quiet)
	assert.True(t, infallible)
	assert.Equal(t, "echo hi", rest)
}

func TestStripSigilsPlainLine(t *testing.T) {
	quiet, infallible, rest := stripSigils("echo hi")
	assert.False(t, quiet)
	assert.False(t, infallible)
	assert.Equal(t, "echo hi", rest)
}

func compile(t *testing.T, src string) (*analyzer.Program, *eval.Evaluator) {
	t.Helper()
	toks, err := lexer.New("test.just", []byte(src)).Lex()
	require.NoError(t, err)
	f, err := parser.New("test.just", toks).Parse()
	require.NoError(t, err)
	prog, err := analyzer.Analyze(f)
	require.NoError(t, err)
	ev := eval.New(prog.Settings, prog.Assignments, eval.Context{DryRun: true, WorkingDir: "."})
	return prog, ev
}

func TestRunDryRunNeverExecutes(t *testing.T) {
	prog, ev := compile(t, "build:\n    echo should-not-print\n")
	var stdout, stderr bytes.Buffer
	r := New(prog, ev, scope.Root(), Options{DryRun: true, Stdout: &stdout, Stderr: &stderr})
	err := r.Run(nil, nil)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "echo should-not-print")
	assert.Empty(t, stdout.String())
}

func TestRunUnknownRecipeSuggestsClosestName(t *testing.T) {
	prog, ev := compile(t, "build:\n    echo hi\n")
	var stdout, stderr bytes.Buffer
	r := New(prog, ev, scope.Root(), Options{DryRun: true, Stdout: &stdout, Stderr: &stderr})
	err := r.Run([]ArgGroup{{Recipe: "biuld"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean `build`?")
}

func TestRunAtMostOnceSemantics(t *testing.T) {
	prog, ev := compile(t, "a: b b\n    echo a\nb:\n    echo b\n")
	var stdout, stderr bytes.Buffer
	r := New(prog, ev, scope.Root(), Options{DryRun: true, Stdout: &stdout, Stderr: &stderr})
	err := r.Run([]ArgGroup{{Recipe: "a"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stderr.String(), "echo b"))
}

// compileLive is like compile but builds an Evaluator with DryRun false, so
// recipe bodies actually spawn a shell.
func compileLive(t *testing.T, src string) (*analyzer.Program, *eval.Evaluator) {
	t.Helper()
	toks, err := lexer.New("test.just", []byte(src)).Lex()
	require.NoError(t, err)
	f, err := parser.New("test.just", toks).Parse()
	require.NoError(t, err)
	prog, err := analyzer.Analyze(f)
	require.NoError(t, err)
	ev := eval.New(prog.Settings, prog.Assignments, eval.Context{WorkingDir: "."})
	ev.Unexported = prog.Unexported
	return prog, ev
}

func TestRunEchoesRecipeOutputToStdout(t *testing.T) {
	prog, ev := compileLive(t, "build:\n    echo hello-world\n")
	var stdout, stderr bytes.Buffer
	r := New(prog, ev, scope.Root(), Options{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, r.Run([]ArgGroup{{Recipe: "build"}}, nil))
	assert.Contains(t, stdout.String(), "hello-world")
}

func TestRunExportedAssignmentReachesChildEnvironment(t *testing.T) {
	prog, ev := compileLive(t, "export GREETING := \"howdy\"\nbuild:\n    echo $GREETING\n")
	var stdout, stderr bytes.Buffer
	r := New(prog, ev, scope.Root(), Options{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, r.Run([]ArgGroup{{Recipe: "build"}}, nil))
	assert.Contains(t, stdout.String(), "howdy")
}

func TestRunQuietRecipeSuppressesEcho(t *testing.T) {
	prog, ev := compileLive(t, "@build:\n    echo quiet-output\n")
	var stdout, stderr bytes.Buffer
	r := New(prog, ev, scope.Root(), Options{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, r.Run([]ArgGroup{{Recipe: "build"}}, nil))
	assert.Contains(t, stdout.String(), "quiet-output")
	assert.NotContains(t, stderr.String(), "echo quiet-output")
}

func TestRunDependencyOrderStdout(t *testing.T) {
	prog, ev := compileLive(t, "a: b\n    echo a\nb:\n    echo b\n")
	var stdout, stderr bytes.Buffer
	r := New(prog, ev, scope.Root(), Options{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, r.Run([]ArgGroup{{Recipe: "a"}}, nil))
	bIdx := strings.Index(stdout.String(), "b")
	aIdx := strings.Index(stdout.String(), "a")
	require.True(t, bIdx >= 0 && aIdx >= 0)
	assert.Less(t, bIdx, aIdx)
}

func TestRunBacktickExitCodePassesThroughRecipeFailure(t *testing.T) {
	prog, ev := compileLive(t, "x := `exit 3`\nbuild:\n    echo {{x}}\n")
	var stdout, stderr bytes.Buffer
	r := New(prog, ev, scope.Root(), Options{Stdout: &stdout, Stderr: &stderr})
	err := r.Run([]ArgGroup{{Recipe: "build"}}, nil)
	require.Error(t, err)
	je, ok := err.(*justerrors.JustError)
	require.True(t, ok)
	assert.Equal(t, 3, je.Context["code"])
}

func TestRunPositionalArgumentsExposedAsDollarOne(t *testing.T) {
	prog, ev := compileLive(t, "set positional-arguments\nbuild name:\n    echo $1\n")
	var stdout, stderr bytes.Buffer
	r := New(prog, ev, scope.Root(), Options{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, r.Run([]ArgGroup{{Recipe: "build", Args: []string{"widget"}}}, nil))
	assert.Contains(t, stdout.String(), "widget")
}
