// Package analyzer implements the passes described in spec.md §4.3:
// table building, attribute validation, setting merge, assignment and
// recipe resolution, and alias resolution, producing a resolved Program.
package analyzer

import (
	"github.com/justrun/justrun/internal/ast"
)

// ResolvedDep is a dependency reference whose Name has been bound to a
// concrete Recipe.
type ResolvedDep struct {
	Recipe *ast.Recipe
	Args   []ast.Expr
}

// ResolvedRecipe augments an ast.Recipe with its resolved dependency
// links, which is all RecipeResolver adds: the Recipe itself is never
// copied or mutated (spec.md §9: "never mutate a recipe after
// resolution").
type ResolvedRecipe struct {
	*ast.Recipe
	Priors      []ResolvedDep
	Subsequents []ResolvedDep
}

// Program is the compiled justfile: name-keyed, insertion-ordered tables
// of assignments, aliases, and recipes, a merged Settings record, and
// the default recipe (the first one defined).
type Program struct {
	Path        string
	Assignments map[string]*ast.Assignment
	AssignOrder []string
	Unexported  map[string]bool

	Recipes      map[string]*ResolvedRecipe
	RecipeOrder  []string
	Aliases      map[string]*ast.Alias
	AliasOrder   []string

	Settings ast.Settings
	Default  *ResolvedRecipe
	Warnings []string
}

func newProgram(path string) *Program {
	return &Program{
		Path:        path,
		Assignments: map[string]*ast.Assignment{},
		Unexported:  map[string]bool{},
		Recipes:     map[string]*ResolvedRecipe{},
		Aliases:     map[string]*ast.Alias{},
	}
}
