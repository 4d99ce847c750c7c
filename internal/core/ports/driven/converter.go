package driven

import "context"

// Converter renders source files into one raster image per page.
type Converter interface {
	// IsMultiPage reports whether the container format holds several pages.
	IsMultiPage(path string) bool

	// ToPageImages renders each page into outDir and returns image paths
	// ordered by page number 1..N. Single images pass through unchanged.
	ToPageImages(ctx context.Context, path, outDir string) ([]string, error)
}
