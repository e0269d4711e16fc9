package analyzer

import (
	"fmt"

	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/justerrors"
)

// resolveAssignments performs the DFS-with-stack cycle check described in
// spec.md §4.3: references to other assignments recurse, references to
// constants are accepted, everything else is UndefinedVariable.
func resolveAssignments(prog *Program) error {
	resolved := map[string]bool{}
	var stack []string
	onStack := map[string]bool{}

	var visit func(name string) error
	visit = func(name string) error {
		if resolved[name] {
			return nil
		}
		if onStack[name] {
			cycle := append(append([]string{}, stack...), name)
			return justerrors.New(justerrors.CircularVariableDependency,
				fmt.Sprintf("circular variable dependency: %v", cycle))
		}
		a, ok := prog.Assignments[name]
		if !ok {
			return nil // not a variable at all; caller decides if that's an error
		}
		stack = append(stack, name)
		onStack[name] = true
		if err := visitExpr(prog, a.Value, visit); err != nil {
			return err
		}
		onStack[name] = false
		stack = stack[:len(stack)-1]
		resolved[name] = true
		return nil
	}

	for _, name := range prog.AssignOrder {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

func isConstant(name string) bool {
	switch name {
	case "HEX", "HEXLOWER", "HEXUPPER":
		return true
	}
	return false
}

// visitExpr walks every Variable node reachable from e, calling visit on
// assignment references and erroring on names that resolve to neither an
// assignment nor a constant.
func visitExpr(prog *Program, e ast.Expr, visit func(string) error) error {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case ast.Variable:
		name := n.Name.String()
		if isConstant(name) {
			return nil
		}
		if _, ok := prog.Assignments[name]; ok {
			return visit(name)
		}
		return justerrors.At(justerrors.UndefinedVariable, n.Pos(), fmt.Sprintf("undefined variable %q", name))
	case ast.StringLit, ast.BacktickLit:
		return nil
	case ast.Call:
		for _, a := range n.Args {
			if err := visitExpr(prog, a, visit); err != nil {
				return err
			}
		}
		return nil
	case ast.Concat:
		if err := visitExpr(prog, n.Left, visit); err != nil {
			return err
		}
		return visitExpr(prog, n.Right, visit)
	case ast.Join:
		if n.Left != nil {
			if err := visitExpr(prog, n.Left, visit); err != nil {
				return err
			}
		}
		return visitExpr(prog, n.Right, visit)
	case ast.Group:
		return visitExpr(prog, n.Inner, visit)
	case ast.Conditional:
		if err := visitCondition(prog, n.Cond, visit); err != nil {
			return err
		}
		if err := visitExpr(prog, n.Then, visit); err != nil {
			return err
		}
		return visitExpr(prog, n.Otherwise, visit)
	case ast.Assert:
		if err := visitCondition(prog, n.Cond, visit); err != nil {
			return err
		}
		return visitExpr(prog, n.Message, visit)
	case ast.Logical:
		if err := visitExpr(prog, n.Left, visit); err != nil {
			return err
		}
		return visitExpr(prog, n.Right, visit)
	}
	return nil
}

func visitCondition(prog *Program, c ast.Condition, visit func(string) error) error {
	if err := visitExpr(prog, c.Lhs, visit); err != nil {
		return err
	}
	return visitExpr(prog, c.Rhs, visit)
}
