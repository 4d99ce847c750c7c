package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()

	assert.True(t, Matches("enter", km.Submit))
	assert.True(t, Matches("enter", km.Open))
	assert.True(t, Matches("tab", km.Mode))
	assert.True(t, Matches("/", km.NewSearch))
	assert.True(t, Matches("ctrl+c", km.Quit))
	assert.False(t, Matches("x", km.Quit))
}

func TestHelpSets(t *testing.T) {
	km := DefaultKeyMap()

	assert.Len(t, km.InputHelp(), 3)
	assert.Len(t, km.ResultsHelp(), 5)
	assert.Len(t, km.PageHelp(), 3)
}
