package analyzer

import (
	"fmt"

	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/justerrors"
)

// resolveRecipes binds every dependency name to a concrete recipe,
// detects cycles, and validates dependency argument counts and free
// variable references, per spec.md §4.3.
func resolveRecipes(byName map[string]*ast.Recipe, prog *Program) (map[string]*ResolvedRecipe, error) {
	resolved := map[string]*ResolvedRecipe{}
	var stack []string
	onStack := map[string]bool{}

	var visit func(name string) (*ResolvedRecipe, error)
	visit = func(name string) (*ResolvedRecipe, error) {
		if rr, ok := resolved[name]; ok {
			return rr, nil
		}
		if onStack[name] {
			cycle := append(append([]string{}, stack...), name)
			return nil, justerrors.New(justerrors.CircularRecipeDependency,
				fmt.Sprintf("circular recipe dependency: %v", cycle))
		}
		r, ok := byName[name]
		if !ok {
			return nil, justerrors.New(justerrors.UnknownDependency, fmt.Sprintf("unknown recipe %q", name))
		}
		stack = append(stack, name)
		onStack[name] = true

		rr := &ResolvedRecipe{Recipe: r}
		for _, dep := range r.Priors {
			depRR, err := visit(dep.Name.String())
			if err != nil {
				return nil, err
			}
			if err := checkArity(depRR, dep); err != nil {
				return nil, err
			}
			rr.Priors = append(rr.Priors, ResolvedDep{Recipe: depRR.Recipe, Args: dep.Args})
		}
		for _, dep := range r.Subsequents {
			depRR, err := visit(dep.Name.String())
			if err != nil {
				return nil, err
			}
			if err := checkArity(depRR, dep); err != nil {
				return nil, err
			}
			rr.Subsequents = append(rr.Subsequents, ResolvedDep{Recipe: depRR.Recipe, Args: dep.Args})
		}

		if err := checkRecipeVariables(prog, r); err != nil {
			return nil, err
		}

		onStack[name] = false
		stack = stack[:len(stack)-1]
		resolved[name] = rr
		return rr, nil
	}

	for name := range byName {
		if _, err := visit(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func checkArity(target *ResolvedRecipe, dep ast.RecipeDep) error {
	min, max := target.MinMaxArgs()
	n := len(dep.Args)
	if n < min || (max >= 0 && n > max) {
		return justerrors.At(justerrors.DependencyArgumentCountMismatch, dep.Name.Pos(),
			fmt.Sprintf("dependency %q takes between %d and %s arguments, got %d", dep.Name, min, maxStr(max), n))
	}
	return nil
}

func maxStr(max int) string {
	if max < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", max)
}

// checkRecipeVariables validates that every free variable referenced in
// a recipe's parameter defaults, dependency arguments, or body
// interpolations resolves to a constant, an assignment, or a parameter
// of that recipe.
func checkRecipeVariables(prog *Program, r *ast.Recipe) error {
	params := map[string]bool{}
	for _, p := range r.Parameters {
		params[p.Name.String()] = true
	}

	check := func(e ast.Expr) error {
		return walkVars(e, func(n ast.Variable) error {
			name := n.Name.String()
			if isConstant(name) || params[name] {
				return nil
			}
			if _, ok := prog.Assignments[name]; ok {
				return nil
			}
			return justerrors.At(justerrors.UndefinedVariable, n.Pos(), fmt.Sprintf("undefined variable %q", name))
		})
	}

	for _, p := range r.Parameters {
		if p.Default != nil {
			if err := check(p.Default); err != nil {
				return err
			}
		}
	}
	for _, dep := range append(append([]ast.RecipeDep{}, r.Priors...), r.Subsequents...) {
		for _, a := range dep.Args {
			if err := check(a); err != nil {
				return err
			}
		}
	}
	for _, line := range r.Body {
		for _, frag := range line.Fragments {
			if frag.Expr != nil {
				if err := check(frag.Expr); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func walkVars(e ast.Expr, fn func(ast.Variable) error) error {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case ast.Variable:
		return fn(n)
	case ast.Call:
		for _, a := range n.Args {
			if err := walkVars(a, fn); err != nil {
				return err
			}
		}
	case ast.Concat:
		if err := walkVars(n.Left, fn); err != nil {
			return err
		}
		return walkVars(n.Right, fn)
	case ast.Join:
		if n.Left != nil {
			if err := walkVars(n.Left, fn); err != nil {
				return err
			}
		}
		return walkVars(n.Right, fn)
	case ast.Group:
		return walkVars(n.Inner, fn)
	case ast.Conditional:
		if err := walkVars(n.Cond.Lhs, fn); err != nil {
			return err
		}
		if err := walkVars(n.Cond.Rhs, fn); err != nil {
			return err
		}
		if err := walkVars(n.Then, fn); err != nil {
			return err
		}
		return walkVars(n.Otherwise, fn)
	case ast.Assert:
		if err := walkVars(n.Cond.Lhs, fn); err != nil {
			return err
		}
		if err := walkVars(n.Cond.Rhs, fn); err != nil {
			return err
		}
		return walkVars(n.Message, fn)
	case ast.Logical:
		if err := walkVars(n.Left, fn); err != nil {
			return err
		}
		return walkVars(n.Right, fn)
	}
	return nil
}
