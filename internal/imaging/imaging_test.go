package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantFormat string
		wantErr    bool
	}{
		{name: "valid png", data: encodePNG(t), wantFormat: "png"},
		{name: "valid jpeg", data: encodeJPEG(t), wantFormat: "jpeg"},
		{name: "plain text", data: []byte("definitely not an image"), wantErr: true},
		{name: "empty payload", data: nil, wantErr: true},
		{name: "truncated png", data: encodePNG(t)[:10], wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := Validate(tt.data)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantFormat, format)
			}
		})
	}
}

func TestSaveTempAndCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staging")
	data := encodeJPEG(t)

	path, err := SaveTemp(dir, "req-1_1.jpg", data)
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, written)

	Cleanup([]string{path, filepath.Join(dir, "never-existed.jpg")})

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
