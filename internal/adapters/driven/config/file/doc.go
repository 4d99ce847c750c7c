// Package file persists pagesift settings as TOML in the pagesift home
// directory. Nested tables are exposed as dot-separated keys.
package file
