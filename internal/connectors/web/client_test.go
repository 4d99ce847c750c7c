package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(Options{UserAgent: "pagesift-test/1.0", Accept: "*/*", RequestsPerSecond: 1000})
}

func TestGetPage_SendsDefaultHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	page, err := newTestClient().GetPage(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Equal(t, "text/html", page.ContentType)
	assert.Equal(t, "<html>ok</html>", page.Body)
	assert.Equal(t, "pagesift-test/1.0", gotUA)
}

func TestDownload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "nested", "doc.pdf")

	ok, err := newTestClient().Download(context.Background(), srv.URL+"/doc.pdf", dest)

	require.NoError(t, err)
	assert.True(t, ok)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))
	assert.NoFileExists(t, dest+".part")
}

func TestDownload_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "doc.pdf")

	ok, err := newTestClient().Download(context.Background(), srv.URL, dest)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, dest)
}

func TestDownload_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	ok, err := newTestClient().Download(context.Background(), url, filepath.Join(t.TempDir(), "x.pdf"))

	assert.Error(t, err)
	assert.False(t, ok)
}

func TestExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/file1.pdf" {
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	c := newTestClient()

	assert.True(t, c.Exists(context.Background(), srv.URL+"/file1.pdf"))
	assert.False(t, c.Exists(context.Background(), srv.URL+"/file2.pdf"))
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "tok", body["k"])
		_, _ = w.Write([]byte(`{"location":"/next"}`))
	}))
	defer srv.Close()

	var out struct {
		Location string `json:"location"`
	}
	status, err := newTestClient().PostJSON(context.Background(), srv.URL, map[string]string{"k": "tok"}, &out)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/next", out.Location)
}

func TestWriteAtomic(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")

	n, err := WriteAtomic(dest, strings.NewReader("abc"))

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.FileExists(t, dest)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient().GetPage(ctx, "http://127.0.0.1:1/")

	assert.True(t, IsCanceled(err))
}
