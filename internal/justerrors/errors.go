// Package justerrors defines the compile-time and run-time error taxonomy
// for justrun, and the source-location pretty-printer shared by both.
package justerrors

import (
	"fmt"
	"strings"

	"github.com/justrun/justrun/internal/token"
)

// Kind tags the category of a JustError, compile-time or run-time,
// mirroring the taxonomy in spec.md §7.
type Kind string

const (
	// Compile-time kinds.
	UnknownStartOfToken        Kind = "UNKNOWN_START_OF_TOKEN"
	UnterminatedString         Kind = "UNTERMINATED_STRING"
	UnterminatedBacktick       Kind = "UNTERMINATED_BACKTICK"
	UnterminatedInterpolation  Kind = "UNTERMINATED_INTERPOLATION"
	UnpairedCarriageReturn     Kind = "UNPAIRED_CARRIAGE_RETURN"
	MixedLeadingWhitespace     Kind = "MIXED_LEADING_WHITESPACE"
	InconsistentLeadingSpace   Kind = "INCONSISTENT_LEADING_WHITESPACE"
	ExtraLeadingWhitespace     Kind = "EXTRA_LEADING_WHITESPACE"
	InvalidEscapeSequence      Kind = "INVALID_ESCAPE_SEQUENCE"
	InvalidUnicodeEscape       Kind = "INVALID_UNICODE_ESCAPE"
	UnexpectedToken            Kind = "UNEXPECTED_TOKEN"
	UnexpectedClosingDelimiter Kind = "UNEXPECTED_CLOSING_DELIMITER"
	MismatchedClosingDelimiter Kind = "MISMATCHED_CLOSING_DELIMITER"
	RecursionDepthExceeded     Kind = "RECURSION_DEPTH_EXCEEDED"
	DuplicateRecipe            Kind = "DUPLICATE_RECIPE"
	DuplicateVariable          Kind = "DUPLICATE_VARIABLE"
	DuplicateParameter         Kind = "DUPLICATE_PARAMETER"
	DuplicateAlias             Kind = "DUPLICATE_ALIAS"
	DuplicateSet               Kind = "DUPLICATE_SET"
	DuplicateAttribute         Kind = "DUPLICATE_ATTRIBUTE"
	DuplicateUnexport          Kind = "DUPLICATE_UNEXPORT"
	Redefinition               Kind = "REDEFINITION"
	RequiredParameterAfterDefault Kind = "REQUIRED_PARAMETER_FOLLOWS_DEFAULT"
	ParameterAfterVariadic      Kind = "PARAMETER_FOLLOWS_VARIADIC"
	UnknownAliasTarget          Kind = "UNKNOWN_ALIAS_TARGET"
	UnknownAttribute            Kind = "UNKNOWN_ATTRIBUTE"
	UnknownDependency           Kind = "UNKNOWN_DEPENDENCY"
	UnknownFunction             Kind = "UNKNOWN_FUNCTION"
	UnknownSetting              Kind = "UNKNOWN_SETTING"
	CircularRecipeDependency    Kind = "CIRCULAR_RECIPE_DEPENDENCY"
	CircularVariableDependency  Kind = "CIRCULAR_VARIABLE_DEPENDENCY"
	UndefinedVariable           Kind = "UNDEFINED_VARIABLE"
	DependencyArgumentCountMismatch Kind = "DEPENDENCY_ARGUMENT_COUNT_MISMATCH"
	FunctionArgumentCountMismatch   Kind = "FUNCTION_ARGUMENT_COUNT_MISMATCH"
	AliasInvalidAttribute       Kind = "ALIAS_INVALID_ATTRIBUTE"
	ShebangAndScriptAttribute   Kind = "SHEBANG_AND_SCRIPT_ATTRIBUTE"
	NoCdAndWorkingDirectory     Kind = "NO_CD_AND_WORKING_DIRECTORY_ATTRIBUTE"
	ShellExpansionFailure       Kind = "SHELL_EXPANSION_FAILURE"

	// Run-time kinds.
	ArgumentCountMismatch   Kind = "ARGUMENT_COUNT_MISMATCH"
	BacktickFailed          Kind = "BACKTICK_FAILED"
	RecipeCodeFailure       Kind = "RECIPE_CODE_FAILURE"
	RecipeSignalFailure     Kind = "RECIPE_SIGNAL_FAILURE"
	RecipeUnknownFailure    Kind = "RECIPE_UNKNOWN_FAILURE"
	CygpathFailure          Kind = "CYGPATH_FAILURE"
	DefaultRecipeNeedsArgs  Kind = "DEFAULT_RECIPE_REQUIRES_ARGUMENTS"
	DotenvLoadFailure       Kind = "DOTENV_LOAD_FAILURE"
	EvalUnknownVariable     Kind = "EVAL_UNKNOWN_VARIABLE"
	FunctionCallFailure     Kind = "FUNCTION_CALL_FAILURE"
	InternalError           Kind = "INTERNAL"
	RecipeSpawnIOFailure    Kind = "RECIPE_SPAWN_IO_FAILURE"
	LoadFailure             Kind = "LOAD_FAILURE"
	NoChoosableRecipes      Kind = "NO_CHOOSABLE_RECIPES"
	NoRecipes               Kind = "NO_RECIPES"
	UnknownRecipe           Kind = "UNKNOWN_RECIPE"
	UnknownOverrides        Kind = "UNKNOWN_OVERRIDES"
	RegexCompileFailure     Kind = "REGEX_COMPILE_FAILURE"
	NotConfirmed            Kind = "NOT_CONFIRMED"
	ShebangFailure          Kind = "SHEBANG_FAILURE"
	TmpdirIOFailure         Kind = "TMPDIR_IO_FAILURE"
)

// JustError is the single error type for both compile and run failures.
// Analogous in spirit to the teacher's DevCmdError: typed, wrappable,
// carrying free-form context, but additionally anchored at a source
// Position so it can be pretty-printed the way the original `just`
// prints diagnostics.
type JustError struct {
	Kind    Kind
	Message string
	Pos     *token.Position
	Cause   error
	Context map[string]any
}

func New(kind Kind, message string) *JustError {
	return &JustError{Kind: kind, Message: message, Context: map[string]any{}}
}

func At(kind Kind, pos token.Position, message string) *JustError {
	return &JustError{Kind: kind, Message: message, Pos: &pos, Context: map[string]any{}}
}

func Wrap(kind Kind, message string, cause error) *JustError {
	return &JustError{Kind: kind, Message: message, Cause: cause, Context: map[string]any{}}
}

func (e *JustError) WithContext(key string, value any) *JustError {
	e.Context[key] = value
	return e
}

func (e *JustError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *JustError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, justerrors.New(Kind, "")) style matching on Kind.
func (e *JustError) Is(target error) bool {
	other, ok := target.(*JustError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Pretty renders the error the way `just` does:
//
//	error: <message>
//	 ——▶ <path>:<line>:<col>
//	  |
//	  | <source line>
//	  |     ^
//
// A single caret marks Pos's column; the span of the offending token is
// not underlined. source is the full text of the file named in Pos, used
// to recover the offending line. If Pos is nil, only the message is
// rendered; if Pos's line is not within source, the location line is
// rendered without the excerpt.
func Pretty(err *JustError, source string, useColor bool) string {
	var b strings.Builder
	prefix := "error"
	if useColor {
		prefix = "\x1b[1;31merror\x1b[0m"
	}
	fmt.Fprintf(&b, "%s: %s\n", prefix, err.Message)
	if err.Pos == nil {
		return b.String()
	}
	fmt.Fprintf(&b, " ——▶ %s\n", *err.Pos)
	lines := strings.Split(source, "\n")
	if err.Pos.Line-1 < 0 || err.Pos.Line-1 >= len(lines) {
		return b.String()
	}
	line := lines[err.Pos.Line-1]
	b.WriteString("  |\n")
	fmt.Fprintf(&b, "  | %s\n", line)
	col := err.Pos.Column
	if col < 1 {
		col = 1
	}
	b.WriteString("  | " + strings.Repeat(" ", col-1) + "^\n")
	return b.String()
}
