// Package imaging validates and stages raster image payloads. Decoding uses
// the standard image codecs; a payload that fails to decode is rejected
// outright rather than passed on to the classifier.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Validate decodes the payload and returns the detected format (jpeg, png,
// gif, webp). A corrupt or non-image payload returns an error.
func Validate(data []byte) (string, error) {
	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("payload is not a valid image: %w", err)
	}
	return format, nil
}

// SaveTemp writes an image payload to a temp file under dir, creating dir if
// needed. The caller owns cleanup.
func SaveTemp(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write temp image: %w", err)
	}

	return path, nil
}

// Cleanup removes the given temp files, ignoring files already gone.
func Cleanup(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
