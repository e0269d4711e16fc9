package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justrun/justrun/internal/token"
)

func TestLexSimpleAssignment(t *testing.T) {
	src := "x := \"hello\"\n"
	toks, err := New("test.just", []byte(src)).Lex()
	require.NoError(t, err)
	require.NotEmpty(t, toks)
	assert.Equal(t, token.EOF, toks[len(toks)-1].Kind)
}

func TestTripleStringDedentIsIdempotent(t *testing.T) {
	once := dedentTriple("  foo\n  bar\n")
	twice := dedentTriple(once)
	assert.Equal(t, once, twice)
}

func TestTripleStringDedentStripsCommonPrefix(t *testing.T) {
	got := dedentTriple("    a\n      b\n    c\n")
	assert.Equal(t, "a\n  b\nc\n", got)
}

func TestMonotonicPositions(t *testing.T) {
	src := "a := 1\nb := 2\n"
	toks, err := New("test.just", []byte(src)).Lex()
	require.NoError(t, err)
	for i := 1; i < len(toks); i++ {
		prev, cur := toks[i-1], toks[i]
		if cur.Pos.Line == prev.Pos.Line {
			assert.GreaterOrEqual(t, cur.Pos.Column, prev.Pos.Column)
		} else {
			assert.Greater(t, cur.Pos.Line, prev.Pos.Line)
		}
	}
}

func TestLoneCarriageReturnIsError(t *testing.T) {
	_, err := New("test.just", []byte("a := 1\rb := 2\n")).Lex()
	assert.Error(t, err)
}
