package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet_ShortTextNoEllipsis(t *testing.T) {
	assert.Equal(t, "the quick brown fox", Snippet("the quick brown fox", "Brown", SnippetContext))
}

func TestSnippet_WindowAroundMatch(t *testing.T) {
	text := strings.Repeat("a ", 100) + "needle" + strings.Repeat(" b", 100)

	got := Snippet(text, "NEEDLE", SnippetContext)

	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Contains(t, got, "needle")
	assert.Len(t, []rune(got), 100+6+100+6)
}

func TestSnippet_FallsBackToQueryWord(t *testing.T) {
	got := Snippet("signed by the tenant", "landlord tenant", SnippetContext)
	assert.Equal(t, "signed by the tenant", got)
}

func TestSnippet_NoMatch(t *testing.T) {
	long := strings.Repeat("x", 300)
	assert.Equal(t, strings.Repeat("x", 200)+"...", Snippet(long, "zzz", SnippetContext))
	assert.Equal(t, "short", Snippet("short", "zzz", SnippetContext))
}

func TestSnippet_MultibyteSafe(t *testing.T) {
	text := strings.Repeat("é", 150) + "ünïcode" + strings.Repeat("ø", 150)
	got := Snippet(text, "ünïcode", 10)
	assert.Equal(t, "..."+strings.Repeat("é", 10)+"ünïcode"+strings.Repeat("ø", 10)+"...", got)
}

func TestSnippet_CaseFoldingThatChangesLength(t *testing.T) {
	// strings.ToLower turns "İ" into two runes; the window must still line
	// up with the matched text.
	text := strings.Repeat("a", 50) + "İSTANBUL" + strings.Repeat("b", 50)

	got := Snippet(text, "İstanbul", 5)

	assert.Equal(t, "...aaaaaİSTANBULbbbbb...", got)
}

func TestSnippet_FallbackWordWindowUsesWordLength(t *testing.T) {
	text := strings.Repeat("x", 20) + "tenant" + strings.Repeat("y", 20)

	got := Snippet(text, "landlord tenant", 3)

	assert.Equal(t, "...xxxtenantyyy...", got)
}
