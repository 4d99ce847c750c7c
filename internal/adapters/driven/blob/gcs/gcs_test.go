package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

func TestLocate_WithPrefix(t *testing.T) {
	s := &Store{bucket: "mirror"}

	assert.Equal(t, "gs://mirror/abc.pdf", s.Locate("abc.pdf"))
	assert.Equal(t, "gs://mirror/files/abc.pdf", s.WithPrefix("files/").Locate("abc.pdf"))
	assert.Equal(t, "gs://mirror/images/p_0001.png", s.WithPrefix("images").Locate("/p_0001.png"))
}

func TestContentTypeForKey(t *testing.T) {
	tests := map[string]string{
		"a.PNG":  "image/png",
		"a.jpeg": "image/jpeg",
		"a.tif":  "image/tiff",
		"a.pdf":  "application/pdf",
		"a.bin":  "",
		"noext":  "",
	}
	for key, want := range tests {
		assert.Equal(t, want, contentTypeForKey(key), key)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClose_NilClient(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())
}
