package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// mockRunner is a test double for CommandRunner. When pages is set it
// writes that many page files next to the prefix argument, using the
// given names.
type mockRunner struct {
	output []byte
	err    error
	pages  []string
	calls  [][]string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	if m.err != nil {
		return m.output, m.err
	}
	if len(m.pages) > 0 {
		dir := filepath.Dir(args[len(args)-1])
		for _, p := range m.pages {
			if err := os.WriteFile(filepath.Join(dir, p), []byte("png"), 0o600); err != nil {
				return nil, err
			}
		}
	}
	return m.output, nil
}

func TestIsMultiPage(t *testing.T) {
	c := New()
	assert.True(t, c.IsMultiPage("a/report.PDF"))
	assert.False(t, c.IsMultiPage("scan.tiff"))
	assert.False(t, c.IsMultiPage("photo.jpg"))
}

func TestToPageImages_ImagePassthrough(t *testing.T) {
	runner := &mockRunner{}
	c := NewWithRunner(runner)

	pages, err := c.ToPageImages(context.Background(), "/data/scan.png", t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, []string{"/data/scan.png"}, pages)
	assert.Empty(t, runner.calls)
}

func TestToPageImages_NumericOrder(t *testing.T) {
	runner := &mockRunner{pages: []string{"page-10.png", "page-02.png", "page-1.png", "notes.txt"}}
	c := NewWithRunner(runner)
	out := t.TempDir()

	pages, err := c.ToPageImages(context.Background(), "/data/report.pdf", out)

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "page-1.png"),
		filepath.Join(out, "page-02.png"),
		filepath.Join(out, "page-10.png"),
	}, pages)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"pdftoppm", "-r", "300", "-png", "/data/report.pdf", filepath.Join(out, "page")}, runner.calls[0])
}

func TestToPageImages_CustomDPI(t *testing.T) {
	runner := &mockRunner{pages: []string{"page-1.png"}}
	c := NewWithRunner(runner).WithDPI(150)

	_, err := c.ToPageImages(context.Background(), "/data/report.pdf", t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "150", runner.calls[0][2])
}

func TestToPageImages_RunnerError(t *testing.T) {
	runner := &mockRunner{output: []byte("Syntax Error: broken xref"), err: errors.New("exit status 1")}
	c := NewWithRunner(runner)

	_, err := c.ToPageImages(context.Background(), "/data/report.pdf", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftoppm failed")
	assert.Contains(t, err.Error(), "broken xref")
}

func TestToPageImages_NoPages(t *testing.T) {
	c := NewWithRunner(&mockRunner{})

	_, err := c.ToPageImages(context.Background(), "/data/empty.pdf", t.TempDir())

	assert.Error(t, err)
}

func TestToPageImages_Unsupported(t *testing.T) {
	c := NewWithRunner(&mockRunner{})

	_, err := c.ToPageImages(context.Background(), "/data/letter.docx", t.TempDir())

	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestToPageImages_ToolMissing(t *testing.T) {
	c := NewWithRunner(&mockRunner{})
	c.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := c.ToPageImages(context.Background(), "/data/report.pdf", t.TempDir())

	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}

func TestPageCount(t *testing.T) {
	runner := &mockRunner{output: []byte("Title:          Report\nPages:          12\nEncrypted:      no\n")}
	c := NewWithRunner(runner)

	n, err := c.PageCount(context.Background(), "/data/report.pdf")

	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestPageCount_Missing(t *testing.T) {
	c := NewWithRunner(&mockRunner{output: []byte("garbage")})

	_, err := c.PageCount(context.Background(), "/data/report.pdf")

	assert.Error(t, err)
}

func TestInstallInstructions(t *testing.T) {
	assert.Contains(t, InstallInstructions(), "pdftoppm")
}
