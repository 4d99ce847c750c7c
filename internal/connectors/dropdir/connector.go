// Package dropdir discovers files placed in a local upload folder.
// Fetching copies the file; Watch signals new uploads through fsnotify so
// the orchestrator can start a run before its next poll tick.
package dropdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/pagesift/internal/connectors/web"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/logger"
)

// Ensure Connector implements the interfaces.
var (
	_ driven.Crawler = (*Connector)(nil)
	_ driven.Watcher = (*Connector)(nil)
)

// Name is the crawler identifier.
const Name = "dropdir"

// DefaultSection labels files placed directly in the root folder.
const DefaultSection = "Uploads"

// Extensions lists the file types picked up from the folder.
var Extensions = web.NewExtSet(".pdf", ".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp")

// Connector reads candidate files from a directory tree.
type Connector struct {
	root   string
	source string

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// New creates a connector for root. Files are tagged with source.
func New(source, root string) *Connector {
	return &Connector{root: root, source: source}
}

// Name returns the crawler identifier.
func (c *Connector) Name() string {
	return Name
}

// Root returns the watched directory.
func (c *Connector) Root() string {
	return c.root
}

// DiscoverFiles lists every supported file under the root, ordered by path.
// Hidden entries and partial downloads are skipped.
func (c *Connector) DiscoverFiles(ctx context.Context) ([]domain.FileCandidate, error) {
	var files []domain.FileCandidate
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.Debug("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != c.root && isHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !accepts(path) {
			return nil
		}
		files = append(files, c.candidate(path))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("Error scanning %s: %v", c.root, err)
		return []domain.FileCandidate{}, nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].URL < files[j].URL })
	logger.Info("Discovered %d files in %s", len(files), c.root)
	return files, nil
}

func (c *Connector) candidate(path string) domain.FileCandidate {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	section := DefaultSection
	if rel, err := filepath.Rel(c.root, filepath.Dir(path)); err == nil && rel != "." {
		section = filepath.ToSlash(rel)
	}
	name := filepath.Base(path)
	return domain.FileCandidate{
		URL:         "file://" + filepath.ToSlash(abs),
		FileName:    name,
		FileType:    domain.FileTypeOf(name),
		Section:     section,
		LinkText:    name,
		Description: name,
		Source:      c.source,
	}
}

// FetchFile copies the file behind a file:// URL to destPath.
// A file that vanished since discovery returns false without error.
func (c *Connector) FetchFile(_ context.Context, url, destPath string) (bool, error) {
	src, err := os.Open(ResolvePath(url))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Upload %s no longer exists", url)
			return false, nil
		}
		return false, fmt.Errorf("open %s: %w", url, err)
	}
	defer src.Close()

	if _, err := web.WriteAtomic(destPath, src); err != nil {
		return false, err
	}
	return true, nil
}

// Watch emits a value whenever a supported file is created, written or
// moved into the folder. Bursts coalesce into one pending signal. The
// channel is closed when ctx is done or the connector is closed.
func (c *Connector) Watch(ctx context.Context) (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("dropdir connector closed")
	}
	if info, err := os.Stat(c.root); err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", c.root)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := addTree(w, c.root); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", c.root, err)
	}
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
	c.watcher = w

	signals := make(chan struct{}, 1)
	go c.watchLoop(ctx, w, signals)
	return signals, nil
}

func (c *Connector) watchLoop(ctx context.Context, w *fsnotify.Watcher, signals chan<- struct{}) {
	defer close(signals)
	defer func() { _ = w.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(info.Name()) {
					_ = addTree(w, event.Name)
				}
			}
			if !c.handleFsEvent(event) {
				continue
			}
			select {
			case signals <- struct{}{}:
			default:
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("Watch error on %s: %v", c.root, err)
		}
	}
}

// handleFsEvent reports whether event may have produced a new upload.
func (c *Connector) handleFsEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if rel, err := filepath.Rel(c.root, event.Name); err == nil && isHidden(rel) {
		return false
	}
	if !accepts(event.Name) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return false
	}
	logger.Debug("Upload detected: %s", event.Name)
	return true
}

// Close stops any active watcher. It is safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.watcher != nil {
		err := c.watcher.Close()
		c.watcher = nil
		return err
	}
	return nil
}

// ResolvePath converts a file:// URL to a local path. Bare paths pass
// through unchanged.
func ResolvePath(uri string) string {
	return filepath.FromSlash(strings.TrimPrefix(uri, "file://"))
}

func accepts(path string) bool {
	return !strings.HasSuffix(path, ".part") && Extensions.Allows(filepath.ToSlash(path))
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return fs.SkipDir
		}
		return w.Add(path)
	})
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "" && part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
