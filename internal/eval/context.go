package eval

// Context carries the ambient information function calls and backticks
// need but which is not itself part of the scope chain: the working
// directory, the invocation directory, the justfile's own path, and the
// dotenv mapping loaded by the (out-of-core) CLI loader.
type Context struct {
	WorkingDir         string
	InvocationDir      string
	InvocationDirNative string
	JustfilePath       string
	JustfileDir        string
	Dotenv             map[string]string
	DryRun             bool
	Shell              []string
	JustExecutable     string
}
