package runner

import (
	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/suggest"
)

// suggestFor builds the candidate list (public recipes plus aliases)
// and returns a rendered suggestion message, or "" if nothing is close
// enough to input.
func (r *Runner) suggestFor(input string) string {
	var candidates []string
	aliasTarget := map[string]string{}
	for _, name := range r.Prog.RecipeOrder {
		rr := r.Prog.Recipes[name]
		if rr.HasAttr(ast.AttrPrivate) {
			continue
		}
		candidates = append(candidates, name)
	}
	for _, name := range r.Prog.AliasOrder {
		al := r.Prog.Aliases[name]
		candidates = append(candidates, name)
		aliasTarget[name] = al.Target.String()
	}
	best := suggest.Find(input, candidates)
	return suggest.Message(best, aliasTarget[best])
}
