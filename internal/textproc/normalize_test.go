package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses whitespace", "  hello\t\n  world  ", "hello world"},
		{"drops controls", "world \x00!\x7f", "world !"},
		{"keeps punctuation", "Total: $1,250.00 (net)", "Total: $1,250.00 (net)"},
		{"unicode spaces", "a b c", "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "  The\tquick \n\n brown\x01 fox  "
	once := Normalize(in)
	assert.Equal(t, once, Normalize(once))
}

func TestSearchText(t *testing.T) {
	assert.Equal(t, "invoice no. 42", SearchText("  INVOICE   No. 42 "))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world_1", "foo", "bar"}, Tokenize("Hello, World_1 foo-bar"))
	assert.Equal(t, []string{"café", "2024"}, Tokenize("Café 2024!"))
	assert.Equal(t, []string{}, Tokenize(" .,;"))
	assert.Equal(t, []string{"a", "a"}, Tokenize("a A"))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hé", TruncateRunes("héllo", 2))
	assert.Equal(t, "héllo", TruncateRunes("héllo", 10))
	assert.Equal(t, "", TruncateRunes("héllo", 0))
}
