package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256StableOutput(t *testing.T) {
	out := hashHex([32]byte{})
	assert.Len(t, out, 64)
}

func TestQuoteShellEscapesSingleQuotes(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, quoteShell("it's"))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Hello", capitalize("hello"))
	assert.Equal(t, "", capitalize(""))
}

func TestSnakecaseAndKebabcase(t *testing.T) {
	assert.Equal(t, "foo_bar", toDelimited("FooBar", '_', false))
	assert.Equal(t, "foo-bar", toDelimited("foo bar", '-', false))
}

func TestSemverMatchesCaret(t *testing.T) {
	out, err := semverMatches("^1.2.0", "1.4.0")
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = semverMatches("^1.2.0", "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "false", out)
}

func TestSemverMatchesExact(t *testing.T) {
	out, err := semverMatches("1.2.3", "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "true", out)
}

func TestBlake2bHexIsDeterministic(t *testing.T) {
	a := Blake2bHex([]byte("hello"))
	b := Blake2bHex([]byte("hello"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}
