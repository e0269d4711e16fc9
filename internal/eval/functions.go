package eval

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/justrun/justrun/internal/ast"
	"github.com/justrun/justrun/internal/justerrors"
	"github.com/justrun/justrun/internal/scope"
	"golang.org/x/crypto/blake2b"
	"lukechampine.com/blake3"
)

// evalCall evaluates every argument first (spec.md §4.4), looks the name
// up in functionCatalog, checks the argument count against the entry's
// bounds, then invokes the function. The call's Shape is not consulted.
func (e *Evaluator) evalCall(n ast.Call, sc *scope.Scope) (string, error) {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		v, err := e.Eval(a, sc)
		if err != nil {
			return "", err
		}
		args[i] = v
	}
	fn, ok := functionCatalog[n.Name.String()]
	if !ok {
		return "", justerrors.At(justerrors.UnknownFunction, n.Pos(), fmt.Sprintf("call to unknown function %q", n.Name))
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return "", justerrors.At(justerrors.FunctionArgumentCountMismatch, n.Pos(),
			fmt.Sprintf("%s() expects between %d and %s arguments, got %d", n.Name, fn.minArgs, maxArgsStr(fn.maxArgs), len(args)))
	}
	out, err := fn.run(e, args)
	if err != nil {
		return "", justerrors.At(justerrors.FunctionCallFailure, n.Pos(), err.Error())
	}
	return out, nil
}

func maxArgsStr(max int) string {
	if max < 0 {
		return "unlimited"
	}
	return strconv.Itoa(max)
}

type fn struct {
	minArgs, maxArgs int
	run              func(e *Evaluator, args []string) (string, error)
}

// functionCatalog implements the prefix of spec.md §6's function table
// required by the core. Every entry returns a string or a Go error,
// which evalCall turns into a FunctionCallFailure carrying the call's
// source token.
var functionCatalog = map[string]fn{
	// Nullary
	"arch":                        {0, 0, func(e *Evaluator, a []string) (string, error) { return runtime.GOARCH, nil }},
	"os":                          {0, 0, func(e *Evaluator, a []string) (string, error) { return runtime.GOOS, nil }},
	"os_family":                   {0, 0, func(e *Evaluator, a []string) (string, error) { return osFamily(), nil }},
	"num_cpus":                    {0, 0, func(e *Evaluator, a []string) (string, error) { return strconv.Itoa(runtime.NumCPU()), nil }},
	"just_executable":             {0, 0, func(e *Evaluator, a []string) (string, error) { return e.Ctx.JustExecutable, nil }},
	"just_pid":                    {0, 0, func(e *Evaluator, a []string) (string, error) { return strconv.Itoa(os.Getpid()), nil }},
	"justfile":                    {0, 0, func(e *Evaluator, a []string) (string, error) { return e.Ctx.JustfilePath, nil }},
	"justfile_directory":          {0, 0, func(e *Evaluator, a []string) (string, error) { return e.Ctx.JustfileDir, nil }},
	"invocation_directory":        {0, 0, func(e *Evaluator, a []string) (string, error) { return e.Ctx.InvocationDir, nil }},
	"invocation_directory_native": {0, 0, func(e *Evaluator, a []string) (string, error) { return e.Ctx.InvocationDirNative, nil }},
	"uuid":                        {0, 0, func(e *Evaluator, a []string) (string, error) { return newUUID() }},
	"cache_directory":             {0, 0, func(e *Evaluator, a []string) (string, error) { return os.UserCacheDir() }},
	"config_directory":            {0, 0, func(e *Evaluator, a []string) (string, error) { return os.UserConfigDir() }},
	"config_local_directory":      {0, 0, func(e *Evaluator, a []string) (string, error) { return os.UserConfigDir() }},
	"data_directory":              {0, 0, func(e *Evaluator, a []string) (string, error) { return dataDirectory() }},
	"data_local_directory":        {0, 0, func(e *Evaluator, a []string) (string, error) { return dataDirectory() }},
	"executable_directory":        {0, 0, func(e *Evaluator, a []string) (string, error) { return filepath.Dir(os.Args[0]), nil }},
	"home_directory":              {0, 0, func(e *Evaluator, a []string) (string, error) { return os.UserHomeDir() }},

	// Unary
	"absolute_path": {1, 1, func(e *Evaluator, a []string) (string, error) {
		return filepath.Abs(filepath.Join(e.Ctx.WorkingDir, a[0]))
	}},
	"canonicalize":   {1, 1, func(e *Evaluator, a []string) (string, error) { return filepath.EvalSymlinks(a[0]) }},
	"capitalize":     {1, 1, func(e *Evaluator, a []string) (string, error) { return capitalize(a[0]), nil }},
	"clean":          {1, 1, func(e *Evaluator, a []string) (string, error) { return filepath.Clean(a[0]), nil }},
	"env_var": {1, 1, func(e *Evaluator, a []string) (string, error) {
		v, ok := os.LookupEnv(a[0])
		if !ok {
			return "", fmt.Errorf("environment variable %q is not set", a[0])
		}
		return v, nil
	}},
	"error":         {1, 1, func(e *Evaluator, a []string) (string, error) { return "", fmt.Errorf("%s", a[0]) }},
	"extension":     {1, 1, func(e *Evaluator, a []string) (string, error) { return strings.TrimPrefix(filepath.Ext(a[0]), "."), nil }},
	"file_name":     {1, 1, func(e *Evaluator, a []string) (string, error) { return filepath.Base(a[0]), nil }},
	"file_stem":     {1, 1, func(e *Evaluator, a []string) (string, error) { return fileStem(a[0]), nil }},
	"kebabcase":     {1, 1, func(e *Evaluator, a []string) (string, error) { return toDelimited(a[0], '-', false), nil }},
	"lowercamelcase": {1, 1, func(e *Evaluator, a []string) (string, error) { return toCamel(a[0], false), nil }},
	"lowercase":     {1, 1, func(e *Evaluator, a []string) (string, error) { return strings.ToLower(a[0]), nil }},
	"parent_directory": {1, 1, func(e *Evaluator, a []string) (string, error) { return filepath.Dir(a[0]), nil }},
	"path_exists": {1, 1, func(e *Evaluator, a []string) (string, error) {
		_, err := os.Stat(a[0])
		if err == nil {
			return "true", nil
		}
		return "false", nil
	}},
	"quote":           {1, 1, func(e *Evaluator, a []string) (string, error) { return quoteShell(a[0]), nil }},
	"sha256":          {1, 1, func(e *Evaluator, a []string) (string, error) { return hashHex(sha256.Sum256([]byte(a[0]))), nil }},
	"sha256_file":     {1, 1, func(e *Evaluator, a []string) (string, error) { return hashFileSha256(a[0]) }},
	"blake3":          {1, 1, func(e *Evaluator, a []string) (string, error) { return hex.EncodeToString(blake3.Sum256([]byte(a[0]))[:]), nil }},
	"blake3_file":     {1, 1, func(e *Evaluator, a []string) (string, error) { return hashFileBlake3(a[0]) }},
	"shoutykebabcase": {1, 1, func(e *Evaluator, a []string) (string, error) { return strings.ToUpper(toDelimited(a[0], '-', false)), nil }},
	"shoutysnakecase": {1, 1, func(e *Evaluator, a []string) (string, error) { return strings.ToUpper(toDelimited(a[0], '_', false)), nil }},
	"snakecase":       {1, 1, func(e *Evaluator, a []string) (string, error) { return toDelimited(a[0], '_', false), nil }},
	"titlecase":       {1, 1, func(e *Evaluator, a []string) (string, error) { return toTitle(a[0]), nil }},
	"trim":            {1, 1, func(e *Evaluator, a []string) (string, error) { return strings.TrimSpace(a[0]), nil }},
	"trim_end":        {1, 1, func(e *Evaluator, a []string) (string, error) { return strings.TrimRight(a[0], " \t\r\n"), nil }},
	"trim_start":      {1, 1, func(e *Evaluator, a []string) (string, error) { return strings.TrimLeft(a[0], " \t\r\n"), nil }},
	"uppercamelcase":  {1, 1, func(e *Evaluator, a []string) (string, error) { return toCamel(a[0], true), nil }},
	"uppercase":       {1, 1, func(e *Evaluator, a []string) (string, error) { return strings.ToUpper(a[0]), nil }},
	"without_extension": {1, 1, func(e *Evaluator, a []string) (string, error) {
		return strings.TrimSuffix(a[0], filepath.Ext(a[0])), nil
	}},

	// Unary-with-optional
	"env": {1, 2, func(e *Evaluator, a []string) (string, error) {
		if v, ok := os.LookupEnv(a[0]); ok {
			return v, nil
		}
		if len(a) == 2 {
			return a[1], nil
		}
		return "", fmt.Errorf("environment variable %q is not set and no default was given", a[0])
	}},

	// Binary
	"env_var_or_default": {2, 2, func(e *Evaluator, a []string) (string, error) {
		if v, ok := os.LookupEnv(a[0]); ok {
			return v, nil
		}
		return a[1], nil
	}},
	"addprefix": {2, 2, func(e *Evaluator, a []string) (string, error) {
		prefix, s := a[0], a[1]
		var parts []string
		for _, p := range strings.Fields(s) {
			parts = append(parts, prefix+p)
		}
		return strings.Join(parts, " "), nil
	}},
	"semver_matches":  {2, 2, func(e *Evaluator, a []string) (string, error) { return semverMatches(a[0], a[1]) }},
	"trim_end_match":  {2, 2, func(e *Evaluator, a []string) (string, error) { return strings.TrimSuffix(a[0], a[1]), nil }},
	"trim_end_matches": {2, 2, func(e *Evaluator, a []string) (string, error) {
		return strings.TrimRight(a[0], a[1]), nil
	}},
	"trim_start_match": {2, 2, func(e *Evaluator, a []string) (string, error) { return strings.TrimPrefix(a[0], a[1]), nil }},
	"trim_start_matches": {2, 2, func(e *Evaluator, a []string) (string, error) {
		return strings.TrimLeft(a[0], a[1]), nil
	}},

	// Binary-plus-rest
	"join": {2, -1, func(e *Evaluator, a []string) (string, error) {
		return strings.Join(a, "/"), nil
	}},

	// Ternary
	"replace": {3, 3, func(e *Evaluator, a []string) (string, error) {
		return strings.ReplaceAll(a[0], a[1], a[2]), nil
	}},
	"replace_regex": {3, 3, func(e *Evaluator, a []string) (string, error) {
		re, err := regexp.Compile(a[1])
		if err != nil {
			return "", fmt.Errorf("invalid regex %q: %w", a[1], err)
		}
		return re.ReplaceAllString(a[0], a[2]), nil
	}},
}

func osFamily() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	default:
		return "unix"
	}
}

func dataDirectory() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func fileStem(s string) string {
	base := filepath.Base(s)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func hashHex(sum [32]byte) string { return hex.EncodeToString(sum[:]) }

func hashFileSha256(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashHex(sha256.Sum256(b)), nil
}

func hashFileBlake3(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Blake2bHex fingerprints b with BLAKE2b-256. The runner uses it to name
// shebang temp scripts so two concurrent invocations of the same recipe
// with different bodies never collide on disk.
func Blake2bHex(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func quoteShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func newUUID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}

func splitWords(s string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case r >= 'A' && r <= 'Z' && i > 0 && (runes[i-1] >= 'a' && runes[i-1] <= 'z'):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

func toDelimited(s string, sep byte, upperFirst bool) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, string(sep))
}

func toCamel(s string, upperFirst bool) string {
	words := splitWords(s)
	var b strings.Builder
	for i, w := range words {
		if w == "" {
			continue
		}
		lw := strings.ToLower(w)
		if i == 0 && !upperFirst {
			b.WriteString(lw)
			continue
		}
		b.WriteString(capitalize(lw))
	}
	return b.String()
}

func toTitle(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = capitalize(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

// semverMatches implements a pragmatic subset of the original's
// semver-range matching: exact, `^`-caret (same major, >= given), and
// `~`-tilde (same major.minor, >= given) requirements against a
// MAJOR.MINOR.PATCH version. No example repo in the retrieval pack
// carries a Go semver library, so this is hand-rolled and kept
// deliberately narrow (see DESIGN.md).
func semverMatches(requirement, version string) (string, error) {
	v, err := parseSemver(version)
	if err != nil {
		return "", err
	}
	switch {
	case strings.HasPrefix(requirement, "^"):
		r, err := parseSemver(requirement[1:])
		if err != nil {
			return "", err
		}
		return boolStr(v.major == r.major && compareSemver(v, r) >= 0), nil
	case strings.HasPrefix(requirement, "~"):
		r, err := parseSemver(requirement[1:])
		if err != nil {
			return "", err
		}
		return boolStr(v.major == r.major && v.minor == r.minor && compareSemver(v, r) >= 0), nil
	default:
		r, err := parseSemver(requirement)
		if err != nil {
			return "", err
		}
		return boolStr(compareSemver(v, r) == 0), nil
	}
}

type semver struct{ major, minor, patch int }

func parseSemver(s string) (semver, error) {
	parts := strings.SplitN(strings.TrimPrefix(s, "v"), ".", 3)
	get := func(i int) (int, error) {
		if i >= len(parts) {
			return 0, nil
		}
		return strconv.Atoi(parts[i])
	}
	maj, err := get(0)
	if err != nil {
		return semver{}, fmt.Errorf("invalid semver %q", s)
	}
	min, err := get(1)
	if err != nil {
		return semver{}, fmt.Errorf("invalid semver %q", s)
	}
	pat, err := get(2)
	if err != nil {
		return semver{}, fmt.Errorf("invalid semver %q", s)
	}
	return semver{maj, min, pat}, nil
}

func compareSemver(a, b semver) int {
	if a.major != b.major {
		return a.major - b.major
	}
	if a.minor != b.minor {
		return a.minor - b.minor
	}
	return a.patch - b.patch
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
