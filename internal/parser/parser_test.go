package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/justerrors"
	"github.com/justrun/justrun/internal/lexer"
)

func parse(t *testing.T, src string) (*ast.File, error) {
	t.Helper()
	toks, err := lexer.New("test.just", []byte(src)).Lex()
	require.NoError(t, err)
	return New("test.just", toks).Parse()
}

func TestParseSimpleRecipe(t *testing.T) {
	src := "build:\n    echo hello\n"
	f, err := parse(t, src)
	require.NoError(t, err)
	require.Len(t, f.Recipes, 1)
	assert.Equal(t, "build", f.Recipes[0].Name.String())
}

func TestParseRecipeWithParametersAndDefault(t *testing.T) {
	src := "greet name default=\"world\":\n    echo {{name}} {{default}}\n"
	f, err := parse(t, src)
	require.NoError(t, err)
	require.Len(t, f.Recipes, 1)
	require.Len(t, f.Recipes[0].Parameters, 2)
	assert.Nil(t, f.Recipes[0].Parameters[0].Default)
	assert.NotNil(t, f.Recipes[0].Parameters[1].Default)
}

func TestParseAssignment(t *testing.T) {
	src := "x := \"hello\" + \"world\"\n"
	f, err := parse(t, src)
	require.NoError(t, err)
	require.Len(t, f.Assignments, 1)
	assert.Equal(t, "x", f.Assignments[0].Name.String())
}

func TestParseRequiredParameterAfterDefaultIsError(t *testing.T) {
	src := "build a=\"x\" b:\n    echo {{a}} {{b}}\n"
	_, err := parse(t, src)
	require.Error(t, err)
	je, ok := err.(*justerrors.JustError)
	require.True(t, ok)
	assert.Equal(t, justerrors.RequiredParameterAfterDefault, je.Kind)
}

func TestParseDeeplyNestedGroupingHitsRecursionGuard(t *testing.T) {
	src := "x := "
	for i := 0; i < 300; i++ {
		src += "("
	}
	src += "\"a\""
	for i := 0; i < 300; i++ {
		src += ")"
	}
	src += "\n"
	_, err := parse(t, src)
	require.Error(t, err)
	je, ok := err.(*justerrors.JustError)
	require.True(t, ok)
	assert.Equal(t, justerrors.RecursionDepthExceeded, je.Kind)
}
