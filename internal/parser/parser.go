// Package parser implements the recursive-descent parser described in
// spec.md §4.2: one token of significant lookahead, items recognized by
// keyword or a short lookahead window, and a five-level expression
// precedence climb.
package parser

import (
	"fmt"
	"strings"

	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/justerrors"
	"github.com/justrun/justrun/internal/token"
)

// maxRecursionDepth bounds expression recursion, converting a runaway
// parenthesization or call chain into a clean error instead of a stack
// overflow (spec.md §4.2, §9).
const maxRecursionDepth = 256

type Parser struct {
	file   string
	toks   []token.Token
	pos    int
	depth  int
	lastDoc string // most recent trailing comment, becomes the next item's doc
	docLine int
}

// New constructs a Parser over a token stream already produced by the
// lexer, filtering out whitespace and the leading BOM (transparent to
// the grammar per spec.md §4.1).
func New(file string, toks []token.Token) *Parser {
	filtered := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == token.Whitespace || t.Kind == token.BOM {
			continue
		}
		filtered = append(filtered, t)
	}
	return &Parser{file: file, toks: filtered}
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }
func (p *Parser) eof() bool         { return p.cur().Kind == token.EOF }

func (p *Parser) peekAt(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// expect consumes and returns the current token if it has kind k,
// otherwise reports UnexpectedToken with the single expected kind.
func (p *Parser) expect(k token.Kind) (token.Token, error) {
	return p.expectOneOf(k)
}

func (p *Parser) expectOneOf(ks ...token.Kind) (token.Token, error) {
	for _, k := range ks {
		if p.at(k) {
			return p.advance(), nil
		}
	}
	return token.Token{}, p.unexpected(ks)
}

func (p *Parser) unexpected(expected []token.Kind) error {
	names := make([]string, len(expected))
	for i, k := range expected {
		names[i] = k.String()
	}
	return justerrors.At(justerrors.UnexpectedToken, p.cur().Pos,
		fmt.Sprintf("unexpected token %s, expected one of: %s", p.cur().Kind, strings.Join(names, ", ")))
}

func (p *Parser) skipEols() {
	for p.at(token.Eol) {
		p.advance()
	}
}

// Parse parses a full file into an ast.File.
func (p *Parser) Parse() (*ast.File, error) {
	f := &ast.File{Path: p.file}
	p.skipEols()
	var pendingAttrs []ast.Attribute
	var pendingQuiet bool
	for !p.eof() {
		if p.at(token.Comment) {
			c := p.advance()
			p.lastDoc = strings.TrimLeft(strings.TrimPrefix(c.Lexeme, "#"), " ")
			p.docLine = c.Pos.Line
			// A blank line after the comment detaches it from the next item.
			eols := 0
			for p.at(token.Eol) {
				p.advance()
				eols++
			}
			if eols > 1 {
				p.lastDoc = ""
			}
			continue
		}
		if p.at(token.BracketL) {
			attrs, err := p.parseAttributes()
			if err != nil {
				return nil, err
			}
			pendingAttrs = append(pendingAttrs, attrs...)
			p.skipEols()
			continue
		}
		if p.at(token.At) {
			p.advance()
			pendingQuiet = true
			continue
		}
		if err := p.parseItem(f, &pendingAttrs, &pendingQuiet); err != nil {
			return nil, err
		}
		p.lastDoc = ""
		p.skipEols()
	}
	return f, nil
}

func (p *Parser) takeDoc() string {
	d := p.lastDoc
	p.lastDoc = ""
	return d
}

func (p *Parser) parseAttributes() ([]ast.Attribute, error) {
	if _, err := p.expect(token.BracketL); err != nil {
		return nil, err
	}
	var attrs []ast.Attribute
	for {
		nameTok, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		a := ast.Attribute{Pos: nameTok.Pos}
		switch nameTok.Lexeme {
		case "private":
			a.Kind = ast.AttrPrivate
		case "no-cd":
			a.Kind = ast.AttrNoCd
		case "no-exit-message":
			a.Kind = ast.AttrNoExitMessage
		case "linux":
			a.Kind = ast.AttrLinux
		case "macos":
			a.Kind = ast.AttrMacos
		case "unix":
			a.Kind = ast.AttrUnix
		case "windows":
			a.Kind = ast.AttrWindows
		case "confirm":
			a.Kind = ast.AttrConfirm
		case "no-quiet":
			a.Kind = ast.AttrNoQuiet
		case "script":
			a.Kind = ast.AttrScript
		default:
			return nil, justerrors.At(justerrors.UnknownAttribute, nameTok.Pos, fmt.Sprintf("unknown attribute %q", nameTok.Lexeme))
		}
		if p.at(token.ParenL) {
			p.advance()
			argTok, err := p.expect(token.StringToken)
			if err != nil {
				return nil, err
			}
			a.Arg = argTok.Lexeme
			a.HasArg = true
			if _, err := p.expect(token.ParenR); err != nil {
				return nil, err
			}
		}
		attrs = append(attrs, a)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.BracketR); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (p *Parser) parseItem(f *ast.File, pendingAttrs *[]ast.Attribute, pendingQuiet *bool) error {
	attrs := *pendingAttrs
	*pendingAttrs = nil
	quiet := *pendingQuiet
	*pendingQuiet = false

	switch {
	case p.at(token.Identifier) && p.cur().Lexeme == "alias":
		return p.parseAlias(f, attrs)
	case p.at(token.Identifier) && p.cur().Lexeme == "export" && p.peekAt(1).Kind == token.Identifier:
		return p.parseAssignment(f, true)
	case p.at(token.Identifier) && p.cur().Lexeme == "unexport":
		return p.parseUnexport(f)
	case p.at(token.Identifier) && p.cur().Lexeme == "import":
		return p.parseImport(f)
	case p.at(token.Identifier) && p.cur().Lexeme == "mod":
		return p.parseMod(f)
	case p.at(token.Identifier) && p.cur().Lexeme == "set":
		return p.parseSet(f)
	case p.at(token.Identifier) && p.peekAt(1).Kind == token.ColonEq:
		return p.parseAssignment(f, false)
	case p.at(token.Identifier):
		return p.parseRecipe(f, attrs, quiet)
	default:
		return p.unexpected([]token.Kind{token.Identifier, token.BracketL, token.At})
	}
}

func (p *Parser) parseAlias(f *ast.File, attrs []ast.Attribute) error {
	p.advance() // alias
	name, err := p.expect(token.Identifier)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.ColonEq); err != nil {
		return err
	}
	target, err := p.expect(token.Identifier)
	if err != nil {
		return err
	}
	for _, a := range attrs {
		if a.Kind != ast.AttrPrivate {
			return justerrors.At(justerrors.AliasInvalidAttribute, a.Pos, "aliases only accept [private]")
		}
	}
	f.Aliases = append(f.Aliases, &ast.Alias{
		Name:       ast.Name{Tok: name},
		Target:     ast.Name{Tok: target},
		Attributes: attrs,
		Pos:        name.Pos,
	})
	return nil
}

func (p *Parser) parseUnexport(f *ast.File) error {
	p.advance()
	name, err := p.expect(token.Identifier)
	if err != nil {
		return err
	}
	f.Unexports = append(f.Unexports, &ast.Unexport{Name: ast.Name{Tok: name}, Pos: name.Pos})
	return nil
}

func (p *Parser) parseImport(f *ast.File) error {
	p.advance()
	optional := false
	if p.at(token.Bang) {
		p.advance()
		optional = true
	}
	pathTok, err := p.expect(token.StringToken)
	if err != nil {
		return err
	}
	f.Imports = append(f.Imports, &ast.Import{Path: pathTok.Lexeme, Optional: optional, Pos: pathTok.Pos})
	return nil
}

func (p *Parser) parseMod(f *ast.File) error {
	start := p.advance()
	optional := false
	if p.at(token.Bang) {
		p.advance()
		optional = true
	}
	name, err := p.expect(token.Identifier)
	if err != nil {
		return err
	}
	m := &ast.Mod{Name: ast.Name{Tok: name}, Optional: optional, Pos: start.Pos}
	if p.at(token.StringToken) {
		pathTok := p.advance()
		m.Path = pathTok.Lexeme
	}
	f.Mods = append(f.Mods, m)
	return nil
}

func (p *Parser) parseAssignment(f *ast.File, exported bool) error {
	if exported {
		p.advance() // export
	}
	name, err := p.expect(token.Identifier)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.ColonEq); err != nil {
		return err
	}
	val, err := p.parseExpr()
	if err != nil {
		return err
	}
	f.Assignments = append(f.Assignments, &ast.Assignment{
		Name: ast.Name{Tok: name}, Value: val, Exported: exported, Pos: name.Pos,
	})
	return nil
}

func (p *Parser) parseSet(f *ast.File) error {
	p.advance()
	nameTok, err := p.expect(token.Identifier)
	if err != nil {
		return err
	}
	s := &ast.Setting{Kind: ast.SettingKind(nameTok.Lexeme), Pos: nameTok.Pos, IsBoolForm: true, Bool: true}
	switch s.Kind {
	case ast.SetAllowDuplicateRecipes, ast.SetAllowDuplicateVariables, ast.SetDotenvLoad,
		ast.SetDotenvRequired, ast.SetExport, ast.SetFallback, ast.SetIgnoreComments,
		ast.SetPositionalArguments, ast.SetQuiet, ast.SetWindowsPowershell:
		if p.at(token.ColonEq) {
			p.advance()
			s.IsBoolForm = false
			b, err := p.expect(token.Identifier)
			if err != nil {
				return err
			}
			s.Bool = b.Lexeme == "true"
		}
	case ast.SetDotenvFilename, ast.SetDotenvPath, ast.SetTempdir:
		if _, err := p.expect(token.ColonEq); err != nil {
			return err
		}
		s.IsBoolForm = false
		v, err := p.expect(token.StringToken)
		if err != nil {
			return err
		}
		s.Str = v.Lexeme
	case ast.SetShell, ast.SetWindowsShell:
		if _, err := p.expect(token.ColonEq); err != nil {
			return err
		}
		s.IsBoolForm = false
		if _, err := p.expect(token.BracketL); err != nil {
			return err
		}
		for {
			v, err := p.expect(token.StringToken)
			if err != nil {
				return err
			}
			s.StrList = append(s.StrList, v.Lexeme)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.BracketR); err != nil {
			return err
		}
	default:
		return justerrors.At(justerrors.UnknownSetting, nameTok.Pos, fmt.Sprintf("unknown setting %q", nameTok.Lexeme))
	}
	f.Sets = append(f.Sets, s)
	return nil
}

func (p *Parser) parseRecipe(f *ast.File, attrs []ast.Attribute, quiet bool) error {
	nameTok, err := p.expect(token.Identifier)
	if err != nil {
		return err
	}
	r := &ast.Recipe{Name: ast.Name{Tok: nameTok}, Attributes: attrs, Pos: nameTok.Pos, Doc: p.takeDoc()}

	sawVariadic := false
	sawDefault := false
	for p.at(token.Identifier) || p.at(token.Dollar) || p.at(token.Plus) || p.at(token.Star) {
		param, err := p.parseParameter()
		if err != nil {
			return err
		}
		if sawVariadic {
			return justerrors.At(justerrors.ParameterAfterVariadic, param.Name.Pos(), "parameter follows a variadic parameter")
		}
		if param.Kind != ast.Singular {
			sawVariadic = true
		}
		if param.Default == nil && sawDefault {
			return justerrors.At(justerrors.RequiredParameterAfterDefault, param.Name.Pos(), "required parameter follows a defaulted parameter")
		}
		if param.Default != nil {
			sawDefault = true
		}
		r.Parameters = append(r.Parameters, param)
	}

	if _, err := p.expect(token.Colon); err != nil {
		return err
	}

	priors, err := p.parseDepList()
	if err != nil {
		return err
	}
	r.Priors = priors
	if p.at(token.AndAnd) {
		p.advance()
		subs, err := p.parseDepList()
		if err != nil {
			return err
		}
		r.Subsequents = subs
	}

	if _, err := p.expect(token.Eol); err != nil {
		return err
	}

	if p.at(token.Indent) {
		p.advance()
		for !p.at(token.Dedent) && !p.eof() {
			line, err := p.parseBodyLine()
			if err != nil {
				return err
			}
			r.Body = append(r.Body, line)
		}
		if p.at(token.Dedent) {
			p.advance()
		}
	}

	r.Quiet = quiet

	f.Recipes = append(f.Recipes, r)
	return nil
}

func (p *Parser) parseParameter() (ast.Parameter, error) {
	param := ast.Parameter{}
	if p.at(token.Plus) {
		p.advance()
		param.Kind = ast.PlusVariadic
	} else if p.at(token.Star) {
		p.advance()
		param.Kind = ast.StarVariadic
	}
	if p.at(token.Dollar) {
		p.advance()
		param.Export = true
	}
	name, err := p.expect(token.Identifier)
	if err != nil {
		return param, err
	}
	param.Name = ast.Name{Tok: name}
	if p.at(token.Eq) {
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return param, err
		}
		param.Default = v
	}
	return param, nil
}

func (p *Parser) parseDepList() ([]ast.RecipeDep, error) {
	var deps []ast.RecipeDep
	for p.at(token.Identifier) || p.at(token.ParenL) {
		if p.at(token.ParenL) {
			p.advance()
			nameTok, err := p.expect(token.Identifier)
			if err != nil {
				return nil, err
			}
			dep := ast.RecipeDep{Name: ast.Name{Tok: nameTok}}
			for !p.at(token.ParenR) && !p.eof() {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				dep.Args = append(dep.Args, arg)
			}
			if _, err := p.expect(token.ParenR); err != nil {
				return nil, err
			}
			deps = append(deps, dep)
		} else {
			nameTok := p.advance()
			deps = append(deps, ast.RecipeDep{Name: ast.Name{Tok: nameTok}})
		}
	}
	return deps, nil
}

func (p *Parser) parseBodyLine() (ast.Line, error) {
	line := ast.Line{Number: p.cur().Pos.Line}
	for !p.at(token.Eol) && !p.eof() && !p.at(token.Dedent) {
		switch {
		case p.at(token.Text):
			t := p.advance()
			line.Fragments = append(line.Fragments, ast.Fragment{Text: t.Lexeme, P: t.Pos})
		case p.at(token.InterpStart):
			p.advance()
			expr, err := p.parseExpr()
			if err != nil {
				return line, err
			}
			if _, err := p.expect(token.InterpEnd); err != nil {
				return line, err
			}
			line.Fragments = append(line.Fragments, ast.Fragment{Expr: expr, P: expr.Pos()})
		default:
			return line, p.unexpected([]token.Kind{token.Text, token.InterpStart})
		}
	}
	if p.at(token.Eol) {
		p.advance()
	}
	return line, nil
}

// ---- expressions ----
//
// Precedence, lowest to highest (spec.md §4.2):
//   1. ||
//   2. &&
//   3. if/else, conjunct
//   4. conjunct: `/` join, `value / conjunct`, `value + conjunct`
//   5. value

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxRecursionDepth {
		return justerrors.At(justerrors.RecursionDepthExceeded, p.cur().Pos, "expression nesting too deep")
	}
	return nil
}
func (p *Parser) leave() { p.depth-- }

func (p *Parser) parseExpr() (ast.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.OrOr) {
		pos := p.advance().Pos
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.Logical{Op: ast.LogicalOr, Left: left, Right: right, P: pos}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseIfOrConjunct()
	if err != nil {
		return nil, err
	}
	for p.at(token.AndAnd) {
		pos := p.advance().Pos
		right, err := p.parseIfOrConjunct()
		if err != nil {
			return nil, err
		}
		left = ast.Logical{Op: ast.LogicalAnd, Left: left, Right: right, P: pos}
	}
	return left, nil
}

func (p *Parser) parseIfOrConjunct() (ast.Expr, error) {
	if p.at(token.Identifier) && p.cur().Lexeme == "if" {
		pos := p.advance().Pos
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.BraceL); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.BraceR); err != nil {
			return nil, err
		}
		if !(p.at(token.Identifier) && p.cur().Lexeme == "else") {
			return nil, p.unexpected([]token.Kind{token.Identifier})
		}
		p.advance()
		if _, err := p.expect(token.BraceL); err != nil {
			return nil, err
		}
		otherwise, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.BraceR); err != nil {
			return nil, err
		}
		return ast.Conditional{Cond: cond, Then: then, Otherwise: otherwise, P: pos}, nil
	}
	return p.parseConjunct()
}

func (p *Parser) parseCondition() (ast.Condition, error) {
	lhs, err := p.parseConjunct()
	if err != nil {
		return ast.Condition{}, err
	}
	var op ast.Op
	pos := p.cur().Pos
	switch {
	case p.at(token.EqEq):
		op = ast.OpEq
	case p.at(token.BangEq):
		op = ast.OpNeq
	case p.at(token.TildeEq):
		op = ast.OpMatch
	case p.at(token.BangTilde):
		op = ast.OpNotMatch
	default:
		return ast.Condition{}, p.unexpected([]token.Kind{token.EqEq, token.BangEq, token.TildeEq, token.BangTilde})
	}
	p.advance()
	rhs, err := p.parseConjunct()
	if err != nil {
		return ast.Condition{}, err
	}
	return ast.Condition{Lhs: lhs, Rhs: rhs, Op: op, Pos: pos}, nil
}

func (p *Parser) parseConjunct() (ast.Expr, error) {
	if p.at(token.Slash) {
		pos := p.advance().Pos
		right, err := p.parseConjunct()
		if err != nil {
			return nil, err
		}
		return ast.Join{Left: nil, Right: right, P: pos}, nil
	}
	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	switch {
	case p.at(token.Slash):
		pos := p.advance().Pos
		right, err := p.parseConjunct()
		if err != nil {
			return nil, err
		}
		return ast.Join{Left: left, Right: right, P: pos}, nil
	case p.at(token.Plus):
		pos := p.advance().Pos
		right, err := p.parseConjunct()
		if err != nil {
			return nil, err
		}
		return ast.Concat{Left: left, Right: right, P: pos}, nil
	}
	return left, nil
}

func (p *Parser) parseValue() (ast.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	switch {
	case p.at(token.StringToken):
		t := p.advance()
		return ast.StringLit{Cooked: t.Lexeme, Raw: t.Lexeme, P: t.Pos}, nil
	case p.at(token.Backtick):
		t := p.advance()
		return ast.BacktickLit{Command: t.Lexeme, P: t.Pos}, nil
	case p.at(token.ParenL):
		pos := p.advance().Pos
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.ParenR); err != nil {
			return nil, err
		}
		return ast.Group{Inner: inner, P: pos}, nil
	case p.at(token.Identifier) && p.cur().Lexeme == "assert":
		pos := p.advance().Pos
		if _, err := p.expect(token.ParenL); err != nil {
			return nil, err
		}
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Comma); err != nil {
			return nil, err
		}
		msg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.ParenR); err != nil {
			return nil, err
		}
		return ast.Assert{Cond: cond, Message: msg, P: pos}, nil
	case p.at(token.Identifier):
		nameTok := p.advance()
		if p.at(token.ParenL) {
			return p.parseCall(nameTok)
		}
		return ast.Variable{Name: ast.Name{Tok: nameTok}}, nil
	default:
		return nil, p.unexpected([]token.Kind{token.StringToken, token.Backtick, token.ParenL, token.Identifier})
	}
}

func (p *Parser) parseCall(nameTok token.Token) (ast.Expr, error) {
	p.advance() // (
	var args []ast.Expr
	for !p.at(token.ParenR) {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.at(token.Comma) {
			p.advance()
			if p.at(token.ParenR) {
				break
			}
			continue
		}
		break
	}
	if _, err := p.expect(token.ParenR); err != nil {
		return nil, err
	}
	return ast.Call{Name: ast.Name{Tok: nameTok}, Shape: shapeFor(len(args)), Args: args, P: nameTok.Pos}, nil
}

// shapeFor is a structural default taken from the argument count alone.
// Neither the parser nor the analyzer checks function names or arity;
// the evaluator's evalCall checks both against its function catalog
// when the call is evaluated.
func shapeFor(n int) ast.CallShape {
	switch n {
	case 0:
		return ast.Nullary
	case 1:
		return ast.Unary
	case 2:
		return ast.Binary
	case 3:
		return ast.Ternary
	default:
		return ast.BinaryPlusRest
	}
}
