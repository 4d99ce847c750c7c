// Package ocr holds the OCR engine adapters and the registry that selects
// them by configured name.
//
// Engines receive one preprocessed variant as PNG bytes and return word
// boxes in that variant's pixel space; the OCR service maps them back to
// the original page.
package ocr
