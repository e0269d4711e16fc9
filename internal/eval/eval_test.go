package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/scope"
)

func strLit(s string) ast.StringLit { return ast.StringLit{Cooked: s} }

func TestEvalConcat(t *testing.T) {
	ev := New(ast.Settings{}, map[string]*ast.Assignment{}, Context{})
	sc := scope.Root()
	out, err := ev.Eval(ast.Concat{Left: strLit("foo"), Right: strLit("bar")}, sc)
	require.NoError(t, err)
	assert.Equal(t, "foobar", out)
}

func TestEvalLogicalAndShortCircuits(t *testing.T) {
	ev := New(ast.Settings{}, map[string]*ast.Assignment{}, Context{})
	sc := scope.Root()
	out, err := ev.Eval(ast.Logical{Op: ast.LogicalAnd, Left: strLit(""), Right: strLit("unused")}, sc)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestEvalLogicalOrShortCircuits(t *testing.T) {
	ev := New(ast.Settings{}, map[string]*ast.Assignment{}, Context{})
	sc := scope.Root()
	out, err := ev.Eval(ast.Logical{Op: ast.LogicalOr, Left: strLit("value"), Right: strLit("unused")}, sc)
	require.NoError(t, err)
	assert.Equal(t, "value", out)
}

func TestEvalJoinOperator(t *testing.T) {
	ev := New(ast.Settings{}, map[string]*ast.Assignment{}, Context{})
	sc := scope.Root()
	out, err := ev.Eval(ast.Join{Left: strLit("a/"), Right: strLit("b")}, sc)
	require.NoError(t, err)
	assert.Equal(t, "a/b", out)
}

func TestEvalAssertFailureCarriesMessage(t *testing.T) {
	ev := New(ast.Settings{}, map[string]*ast.Assignment{}, Context{})
	sc := scope.Root()
	cond := ast.Condition{Op: ast.OpEq, Lhs: strLit("a"), Rhs: strLit("b")}
	_, err := ev.Eval(ast.Assert{Cond: cond, Message: strLit("a must equal b")}, sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a must equal b")
}

func TestDryRunBacktickNeverSpawns(t *testing.T) {
	ev := New(ast.Settings{}, map[string]*ast.Assignment{}, Context{DryRun: true})
	sc := scope.Root()
	out, err := ev.Eval(ast.BacktickLit{Command: "rm -rf /"}, sc)
	require.NoError(t, err)
	assert.Equal(t, "`rm -rf /`", out)
}

func TestBindHonorsUnexport(t *testing.T) {
	assignments := map[string]*ast.Assignment{
		"x": {Name: ast.Name{}, Value: strLit("hello"), Exported: true},
	}
	ev := New(ast.Settings{}, assignments, Context{})
	ev.Unexported["x"] = true
	sc := scope.Root()
	_, err := ev.Bind("x", sc)
	require.NoError(t, err)
	assert.False(t, sc.IsExported("x"))
}

func TestBindMemoizesAssignment(t *testing.T) {
	assignments := map[string]*ast.Assignment{
		"x": {Name: ast.Name{}, Value: strLit("hello")},
	}
	ev := New(ast.Settings{}, assignments, Context{})
	sc := scope.Root()
	v1, err := ev.Bind("x", sc)
	require.NoError(t, err)
	assert.Equal(t, "hello", v1)
	v2, ok := sc.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, v1, v2)
}
