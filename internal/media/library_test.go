// ABOUTME: Tests for the media library
// ABOUTME: Covers path resolution, missing files, size limits, and kind detection

package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMedia(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	return path
}

func TestOpen_Kinds(t *testing.T) {
	dir := t.TempDir()
	lib := NewLibrary(dir, 0, nil)

	tests := []struct {
		file     string
		wantKind Kind
		wantMIME string
	}{
		{"audio1.ogg", KindAudio, "audio/ogg; codecs=opus"},
		{"clip.MP4", KindVideo, "video/mp4"},
		{"photo.jpg", KindImage, "image/jpeg"},
		{"terms.pdf", KindDocument, "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			writeMedia(t, dir, tt.file, 16)

			m, err := lib.Open(tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, m.Kind)
			assert.Equal(t, tt.wantMIME, m.MIME)
			assert.Equal(t, tt.file, m.FileName)
			assert.Equal(t, filepath.Join(dir, tt.file), m.Path)
			assert.Len(t, m.Data, 16)
		})
	}
}

func TestOpen_SniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.zzunknown")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n0000000000"), 0644))

	m, err := NewLibrary(dir, 0, nil).Open("blob.zzunknown")
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.MIME)
	assert.Equal(t, KindImage, m.Kind)
}

func TestOpen_NotFound(t *testing.T) {
	lib := NewLibrary(t.TempDir(), 0, nil)

	_, err := lib.Open("missing.ogg")
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestOpen_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	_, err := NewLibrary(dir, 0, nil).Open("sub")
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestOpen_TooLarge(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "big.mp4", 2048)

	lib := NewLibrary(dir, 1024, nil)
	_, err := lib.Open("big.mp4")
	assert.ErrorIs(t, err, ErrMediaTooLarge)

	// Exactly at the limit is allowed.
	writeMedia(t, dir, "edge.mp4", 1024)
	_, err = lib.Open("edge.mp4")
	assert.NoError(t, err)
}

func TestResolve(t *testing.T) {
	lib := NewLibrary("/srv/media", 0, nil)
	assert.Equal(t, "/srv/media/a/b.ogg", lib.Resolve("a/b.ogg"))
	assert.Equal(t, "/abs/file.ogg", lib.Resolve("/abs/file.ogg"))

	noDir := NewLibrary("", 0, nil)
	assert.Equal(t, "file.ogg", noDir.Resolve("./file.ogg"))
}
