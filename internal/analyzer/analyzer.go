package analyzer

import (
	"fmt"

	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/justerrors"
)

// recipeAttrsAllowed is the set of attributes a recipe accepts; aliases
// accept only [private], which Analyze checks inline (spec.md §4.3
// pass 2).
var recipeAttrsAllowed = map[ast.AttrKind]bool{
	ast.AttrPrivate: true, ast.AttrNoCd: true, ast.AttrNoExitMessage: true,
	ast.AttrLinux: true, ast.AttrMacos: true, ast.AttrUnix: true, ast.AttrWindows: true,
	ast.AttrConfirm: true, ast.AttrNoQuiet: true, ast.AttrScript: true,
}

// Analyze runs all passes over a primary file plus any imported files
// (which are merged into the same namespace) and returns a resolved
// Program, or the first compile error encountered.
func Analyze(primary *ast.File, imported ...*ast.File) (*Program, error) {
	prog := newProgram(primary.Path)

	files := append([]*ast.File{primary}, imported...)

	if err := mergeSettings(prog, files); err != nil {
		return nil, err
	}

	var allRecipes []*ast.Recipe
	for _, f := range files {
		for _, a := range f.Assignments {
			if _, exists := prog.Assignments[a.Name.String()]; exists && !prog.Settings.AllowDuplicateVariables {
				return nil, justerrors.At(justerrors.DuplicateVariable, a.Pos,
					fmt.Sprintf("variable %q defined more than once", a.Name))
			}
			if _, exists := prog.Assignments[a.Name.String()]; !exists {
				prog.AssignOrder = append(prog.AssignOrder, a.Name.String())
			}
			prog.Assignments[a.Name.String()] = a
		}
		for _, u := range f.Unexports {
			prog.Unexported[u.Name.String()] = true
		}
		for _, r := range f.Recipes {
			for _, a := range r.Attributes {
				if !recipeAttrsAllowed[a.Kind] {
					return nil, justerrors.At(justerrors.UnknownAttribute, a.Pos, "attribute not valid on a recipe")
				}
			}
			if r.HasAttr(ast.AttrScript) {
				for _, line := range r.Body {
					if line.Shebang() {
						return nil, justerrors.At(justerrors.ShebangAndScriptAttribute, r.Pos,
							"recipe has both a shebang body and [script]")
					}
					break
				}
			}
			if r.HasAttr(ast.AttrNoCd) {
				// no-cd is compatible with everything else; nothing further
				// to validate here beyond the attribute set itself.
			}
			allRecipes = append(allRecipes, r)
		}
		for _, al := range f.Aliases {
			for _, a := range al.Attributes {
				if a.Kind != ast.AttrPrivate {
					return nil, justerrors.At(justerrors.AliasInvalidAttribute, a.Pos, "aliases only accept [private]")
				}
			}
		}
	}

	recipeByName := map[string]*ast.Recipe{}
	for _, r := range allRecipes {
		if _, exists := recipeByName[r.Name.String()]; exists && !prog.Settings.AllowDuplicateRecipes {
			return nil, justerrors.At(justerrors.DuplicateRecipe, r.Pos,
				fmt.Sprintf("recipe %q defined more than once", r.Name))
		}
		if _, exists := recipeByName[r.Name.String()]; !exists {
			prog.RecipeOrder = append(prog.RecipeOrder, r.Name.String())
		}
		recipeByName[r.Name.String()] = r
	}

	if err := resolveAssignments(prog); err != nil {
		return nil, err
	}

	resolved, err := resolveRecipes(recipeByName, prog)
	if err != nil {
		return nil, err
	}
	for name, rr := range resolved {
		prog.Recipes[name] = rr
	}
	if len(prog.RecipeOrder) > 0 {
		prog.Default = prog.Recipes[prog.RecipeOrder[0]]
	}

	for _, f := range files {
		for _, al := range f.Aliases {
			target, ok := prog.Recipes[al.Target.String()]
			if !ok {
				return nil, justerrors.At(justerrors.UnknownAliasTarget, al.Pos,
					fmt.Sprintf("alias %q targets unknown recipe %q", al.Name, al.Target))
			}
			if _, clash := prog.Recipes[al.Name.String()]; clash {
				return nil, justerrors.At(justerrors.DuplicateAlias, al.Pos,
					fmt.Sprintf("alias %q has the same name as a recipe", al.Name))
			}
			if _, exists := prog.Aliases[al.Name.String()]; !exists {
				prog.AliasOrder = append(prog.AliasOrder, al.Name.String())
			}
			prog.Aliases[al.Name.String()] = al
			_ = target
		}
	}

	return prog, nil
}

func mergeSettings(prog *Program, files []*ast.File) error {
	seen := map[ast.SettingKind]bool{}
	for _, f := range files {
		for _, s := range f.Sets {
			if seen[s.Kind] {
				return justerrors.At(justerrors.DuplicateSet, s.Pos, fmt.Sprintf("setting %q set more than once", s.Kind))
			}
			seen[s.Kind] = true
			applySetting(&prog.Settings, s)
		}
	}
	return nil
}

func applySetting(st *ast.Settings, s *ast.Setting) {
	switch s.Kind {
	case ast.SetAllowDuplicateRecipes:
		st.AllowDuplicateRecipes = s.Bool
	case ast.SetAllowDuplicateVariables:
		st.AllowDuplicateVariables = s.Bool
	case ast.SetDotenvFilename:
		st.DotenvFilename = s.Str
	case ast.SetDotenvLoad:
		st.DotenvLoad = s.Bool
	case ast.SetDotenvPath:
		st.DotenvPath = s.Str
	case ast.SetDotenvRequired:
		st.DotenvRequired = s.Bool
	case ast.SetExport:
		st.Export = s.Bool
	case ast.SetFallback:
		st.Fallback = s.Bool
	case ast.SetIgnoreComments:
		st.IgnoreComments = s.Bool
	case ast.SetPositionalArguments:
		st.PositionalArguments = s.Bool
	case ast.SetQuiet:
		st.Quiet = s.Bool
	case ast.SetShell:
		st.Shell = s.StrList
	case ast.SetTempdir:
		st.Tempdir = s.Str
	case ast.SetWindowsPowershell:
		st.WindowsPowershell = s.Bool
	case ast.SetWindowsShell:
		st.WindowsShell = s.StrList
	}
}
