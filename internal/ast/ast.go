// Package ast defines the tree produced by the justrun parser: names,
// expressions, recipes, aliases, and settings.
package ast

import "github.com/justrun/justrun/internal/token"

// Name wraps an identifier token. Equality and hashing are by lexeme.
type Name struct {
	Tok token.Token
}

func (n Name) String() string { return n.Tok.Lexeme }
func (n Name) Pos() token.Position { return n.Tok.Pos }

// Op is a condition operator.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpMatch
	OpNotMatch
)

// Condition is the lhs/rhs/operator triple used by `if`, `assert`, and
// `&&`/`||` is NOT a Condition (those are plain Expressions).
type Condition struct {
	Lhs, Rhs Expr
	Op       Op
	Pos      token.Position
}

// Expr is the tagged expression variant described in spec.md §3.
type Expr interface {
	exprNode()
	Pos() token.Position
}

type StringLit struct {
	Cooked string
	Raw    string
	P      token.Position
}

func (StringLit) exprNode() {}
func (e StringLit) Pos() token.Position { return e.P }

type BacktickLit struct {
	Command string
	P       token.Position
}

func (BacktickLit) exprNode() {}
func (e BacktickLit) Pos() token.Position { return e.P }

type Variable struct {
	Name Name
}

func (Variable) exprNode() {}
func (e Variable) Pos() token.Position { return e.Name.Pos() }

// CallShape distinguishes the arity-specialized call forms named in
// spec.md §3. The parser sets it from the argument count; the evaluator
// does not read it and checks arity against its function catalog.
type CallShape int

const (
	Nullary CallShape = iota
	Unary
	UnaryOptional
	UnaryPlusRest
	Binary
	BinaryPlusRest
	Ternary
)

type Call struct {
	Name  Name
	Shape CallShape
	Args  []Expr
	P     token.Position
}

func (Call) exprNode() {}
func (e Call) Pos() token.Position { return e.P }

type Concat struct {
	Left, Right Expr
	P           token.Position
}

func (Concat) exprNode() {}
func (e Concat) Pos() token.Position { return e.P }

// Join is `a / b` or, when Left is nil, a leading `/ b`.
type Join struct {
	Left, Right Expr
	P           token.Position
}

func (Join) exprNode() {}
func (e Join) Pos() token.Position { return e.P }

type Conditional struct {
	Cond           Condition
	Then, Otherwise Expr
	P              token.Position
}

func (Conditional) exprNode() {}
func (e Conditional) Pos() token.Position { return e.P }

type Assert struct {
	Cond    Condition
	Message Expr
	P       token.Position
}

func (Assert) exprNode() {}
func (e Assert) Pos() token.Position { return e.P }

// LogicalOp is `&&` or `||` composed over full expressions.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

type Logical struct {
	Op          LogicalOp
	Left, Right Expr
	P           token.Position
}

func (Logical) exprNode() {}
func (e Logical) Pos() token.Position { return e.P }

type Group struct {
	Inner Expr
	P     token.Position
}

func (Group) exprNode() {}
func (e Group) Pos() token.Position { return e.P }

// Fragment is a recipe-body atom: raw text or an interpolated expression.
type Fragment struct {
	Text       string // valid when Expr == nil
	Expr       Expr   // valid when non-nil
	P          token.Position
}

// Line is one line of a recipe body.
type Line struct {
	Fragments  []Fragment
	Number     int // 1-based line number within the justfile
}

func (l Line) lastText() (string, bool) {
	for i := len(l.Fragments) - 1; i >= 0; i-- {
		if l.Fragments[i].Expr == nil {
			return l.Fragments[i].Text, true
		}
	}
	return "", false
}

// Continued reports whether the line's last text fragment ends with `\`.
func (l Line) Continued() bool {
	t, ok := l.lastText()
	if !ok {
		return false
	}
	return len(t) > 0 && t[len(t)-1] == '\\'
}

func (l Line) firstText() (string, bool) {
	for _, f := range l.Fragments {
		if f.Expr == nil {
			return f.Text, true
		}
		return "", false
	}
	return "", false
}

// Quiet reports whether the line is prefixed with `@` or `-@`.
func (l Line) Quiet() bool {
	t, ok := l.firstText()
	if !ok {
		return false
	}
	return len(t) > 0 && (t[0] == '@' || (len(t) > 1 && t[0] == '-' && t[1] == '@'))
}

// Infallible reports whether the line is prefixed with `-` or `@-`.
func (l Line) Infallible() bool {
	t, ok := l.firstText()
	if !ok {
		return false
	}
	return len(t) > 0 && (t[0] == '-' || (len(t) > 1 && t[0] == '@' && t[1] == '-'))
}

// Shebang reports whether the line begins with `#!`.
func (l Line) Shebang() bool {
	t, ok := l.firstText()
	if !ok {
		return false
	}
	return len(t) >= 2 && t[0] == '#' && t[1] == '!'
}

// Comment reports whether the line begins with `#` (and is not a shebang).
func (l Line) Comment() bool {
	t, ok := l.firstText()
	if !ok {
		return false
	}
	return len(t) > 0 && t[0] == '#' && !l.Shebang()
}

// ParamKind distinguishes singular vs variadic parameters.
type ParamKind int

const (
	Singular ParamKind = iota
	PlusVariadic
	StarVariadic
)

type Parameter struct {
	Name    Name
	Kind    ParamKind
	Default Expr // nil if none
	Export  bool // prefixed with $
}

// AttrKind enumerates the fixed attribute vocabulary from spec.md §6.
type AttrKind int

const (
	AttrPrivate AttrKind = iota
	AttrNoCd
	AttrNoExitMessage
	AttrLinux
	AttrMacos
	AttrUnix
	AttrWindows
	AttrConfirm
	AttrNoQuiet
	AttrScript
)

type Attribute struct {
	Kind   AttrKind
	Arg    string // e.g. confirm's prompt; empty if not supplied
	HasArg bool
	Pos    token.Position
}

// RecipeDep is a dependency reference: a bare name or `(name args...)`.
type RecipeDep struct {
	Name Name
	Args []Expr
}

// Recipe is the unresolved form produced by the parser; RecipeResolver
// turns Priors/Subsequents' Name references into analyzer.ResolvedDep
// links to the target *Recipe.
type Recipe struct {
	Name         Name
	Attributes   []Attribute
	Parameters   []Parameter
	Priors       []RecipeDep
	Subsequents  []RecipeDep
	Body         []Line
	Doc          string
	Namespace    string // dotted path for imported/mod-nested recipes
	Pos          token.Position
	// Quiet is true when the recipe was declared with a leading `@`
	// (spec.md §3/§4.2), suppressing command echo for its body. Distinct
	// from the `[no-quiet]` attribute, which forces echo back on.
	Quiet bool
}

func (r *Recipe) HasAttr(k AttrKind) bool {
	for _, a := range r.Attributes {
		if a.Kind == k {
			return true
		}
	}
	return false
}

func (r *Recipe) Attr(k AttrKind) (Attribute, bool) {
	for _, a := range r.Attributes {
		if a.Kind == k {
			return a, true
		}
	}
	return Attribute{}, false
}

// MinMaxArgs returns the inclusive argument-count bounds implied by the
// parameter list: Max is -1 when a variadic parameter makes it unbounded.
func (r *Recipe) MinMaxArgs() (min, max int) {
	for _, p := range r.Parameters {
		switch p.Kind {
		case Singular:
			max++
			if p.Default == nil {
				min++
			}
		case PlusVariadic:
			min++
			max = -1
		case StarVariadic:
			max = -1
		}
	}
	return min, max
}

// Alias is a second name bound to the same recipe.
type Alias struct {
	Name       Name
	Target     Name
	Attributes []Attribute
	Pos        token.Position
}

// SettingKind enumerates `set` directive names from spec.md §6.
type SettingKind string

const (
	SetAllowDuplicateRecipes   SettingKind = "allow-duplicate-recipes"
	SetAllowDuplicateVariables SettingKind = "allow-duplicate-variables"
	SetDotenvFilename          SettingKind = "dotenv-filename"
	SetDotenvLoad              SettingKind = "dotenv-load"
	SetDotenvPath              SettingKind = "dotenv-path"
	SetDotenvRequired          SettingKind = "dotenv-required"
	SetExport                  SettingKind = "export"
	SetFallback                SettingKind = "fallback"
	SetIgnoreComments          SettingKind = "ignore-comments"
	SetPositionalArguments     SettingKind = "positional-arguments"
	SetQuiet                   SettingKind = "quiet"
	SetShell                   SettingKind = "shell"
	SetTempdir                 SettingKind = "tempdir"
	SetWindowsPowershell       SettingKind = "windows-powershell"
	SetWindowsShell            SettingKind = "windows-shell"
)

// Setting is a single `set NAME [:= VALUE]` directive as parsed, before
// being folded into a Settings record.
type Setting struct {
	Kind       SettingKind
	Bool       bool
	Str        string
	StrList    []string
	IsBoolForm bool // true if no `:=` was given (defaults to true)
	Pos        token.Position
}

// Settings is the merged record the Analyzer produces from all `set`
// directives in a file.
type Settings struct {
	AllowDuplicateRecipes   bool
	AllowDuplicateVariables bool
	DotenvFilename          string
	DotenvLoad              bool
	DotenvPath              string
	DotenvRequired          bool
	Export                  bool
	Fallback                bool
	IgnoreComments          bool
	PositionalArguments     bool
	Quiet                   bool
	Shell                   []string
	Tempdir                 string
	WindowsPowershell       bool
	WindowsShell            []string
}

// Assignment is `[export] name := expr`.
type Assignment struct {
	Name     Name
	Value    Expr
	Exported bool
	Pos      token.Position
}

// Unexport is an `unexport NAME` directive.
type Unexport struct {
	Name Name
	Pos  token.Position
}

// Import and Mod model the two item forms that name other files. Imports
// are loaded by the CLI loader (cmd/justrun) and merged by the analyzer
// before a Program is built. Mods are parsed and recorded only: nothing
// loads or analyzes the module file they name.
type Import struct {
	Path     string
	Optional bool
	Pos      token.Position
}

type Mod struct {
	Name     Name
	Path     string // empty if implied by Name
	Optional bool
	Pos      token.Position
}

// File is the AST of a single parsed source file: an ordered sequence of
// items, before cross-item analysis.
type File struct {
	Path        string
	Assignments []*Assignment
	Unexports   []*Unexport
	Recipes     []*Recipe
	Aliases     []*Alias
	Sets        []*Setting
	Imports     []*Import
	Mods        []*Mod
}
