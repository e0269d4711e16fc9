package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/justerrors"
	"github.com/justrun/justrun/internal/lexer"
	"github.com/justrun/justrun/internal/parser"
)

func mustParse(t *testing.T, src string) *ast.File {
	t.Helper()
	toks, err := lexer.New("test.just", []byte(src)).Lex()
	require.NoError(t, err)
	f, err := parser.New("test.just", toks).Parse()
	require.NoError(t, err)
	return f
}

func TestAnalyzeSimpleRecipe(t *testing.T) {
	f := mustParse(t, "build:\n    echo hi\n")
	prog, err := Analyze(f)
	require.NoError(t, err)
	assert.Contains(t, prog.Recipes, "build")
	assert.Equal(t, "build", prog.Default.Name.String())
}

func TestAnalyzeCircularVariableDependency(t *testing.T) {
	f := mustParse(t, "a := b\nb := a\n")
	_, err := Analyze(f)
	require.Error(t, err)
	je, ok := err.(*justerrors.JustError)
	require.True(t, ok)
	assert.Equal(t, justerrors.CircularVariableDependency, je.Kind)
}

func TestAnalyzeCircularRecipeDependency(t *testing.T) {
	f := mustParse(t, "a: b\n    echo a\nb: a\n    echo b\n")
	_, err := Analyze(f)
	require.Error(t, err)
	je, ok := err.(*justerrors.JustError)
	require.True(t, ok)
	assert.Equal(t, justerrors.CircularRecipeDependency, je.Kind)
}

func TestAnalyzeUndefinedVariable(t *testing.T) {
	f := mustParse(t, "a := b\n")
	_, err := Analyze(f)
	require.Error(t, err)
	je, ok := err.(*justerrors.JustError)
	require.True(t, ok)
	assert.Equal(t, justerrors.UndefinedVariable, je.Kind)
}

func TestAnalyzeDependencyArgumentCountMismatch(t *testing.T) {
	f := mustParse(t, "a x:\n    echo {{x}}\nb: (a)\n    echo b\n")
	_, err := Analyze(f)
	require.Error(t, err)
	je, ok := err.(*justerrors.JustError)
	require.True(t, ok)
	assert.Equal(t, justerrors.DependencyArgumentCountMismatch, je.Kind)
}
