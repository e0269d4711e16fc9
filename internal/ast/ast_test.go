package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/justrun/justrun/internal/token"
)

func TestRecipeMinMaxArgsSingularAndVariadic(t *testing.T) {
	r := &Recipe{
		Parameters: []Parameter{
			{Kind: Singular},
			{Kind: Singular, Default: StringLit{Cooked: "x"}},
			{Kind: PlusVariadic},
		},
	}
	min, max := r.MinMaxArgs()
	assert.Equal(t, 2, min)
	assert.Equal(t, -1, max)
}

func TestRecipeHasAttrAndAttr(t *testing.T) {
	r := &Recipe{Attributes: []Attribute{{Kind: AttrPrivate}, {Kind: AttrConfirm, Arg: "sure?", HasArg: true}}}
	assert.True(t, r.HasAttr(AttrPrivate))
	a, ok := r.Attr(AttrConfirm)
	assert.True(t, ok)
	assert.Equal(t, "sure?", a.Arg)
}

func TestParametersStructuralEquality(t *testing.T) {
	a := []Parameter{{Name: Name{Tok: token.Token{Lexeme: "x"}}, Kind: Singular}}
	b := []Parameter{{Name: Name{Tok: token.Token{Lexeme: "x"}}, Kind: Singular}}
	if diff := cmp.Diff(a, b, cmpopts.IgnoreFields(Name{}, "Tok")); diff != "" {
		t.Errorf("unexpected diff (-want +got):\n%s", diff)
	}
}
