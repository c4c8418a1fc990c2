package lark

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenameFromDisposition(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{`attachment; filename="report.pdf"`, "report.pdf"},
		{`attachment; filename*=UTF-8''%E6%8A%A5%E5%91%8A.pdf`, "报告.pdf"},
		{`attachment; filename="fallback.pdf"; filename*=UTF-8''real.pdf`, "real.pdf"},
		{`attachment; filename=`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, filenameFromDisposition(tt.header))
		})
	}
}

func TestDownloadFile(t *testing.T) {
	srv := newTestServer(t)
	srv.handle(t, "GET /open-apis/drive/v1/files/{token}/download", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "boxcnPDF", r.PathValue("token"))
		assert.Equal(t, "bytes=0-3", r.Header.Get("Range"))
		w.Header().Set("Content-Type", "application/pdf; charset=binary")
		w.Header().Set("Content-Disposition", `attachment; filename="spec.pdf"`)
		_, _ = w.Write([]byte("%PDF"))
	})
	l := srv.client(t, nil)

	f, err := l.DownloadFile(context.Background(), "boxcnPDF", "bytes=0-3")
	require.NoError(t, err)
	assert.Equal(t, "spec.pdf", f.Name)
	assert.Equal(t, "application/pdf", f.MimeType)
	assert.Equal(t, []byte("%PDF"), f.Data)
	assert.Equal(t, ".pdf", f.Extension())
}

func TestDownloadWhiteboardDefaults(t *testing.T) {
	srv := newTestServer(t)
	srv.handle(t, "GET /open-apis/board/v1/whiteboards/{id}/download_as_image", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	l := srv.client(t, nil)

	f, err := l.DownloadWhiteboardImage(context.Background(), "wb1")
	require.NoError(t, err)
	assert.Equal(t, "wb1.png", f.Name)
	assert.Equal(t, "image/png", f.MimeType)
}

func TestFileTokenFromURL(t *testing.T) {
	token, err := FileTokenFromURL("https://example.larksuite.com/file/boxcnABC?from=share")
	require.NoError(t, err)
	assert.Equal(t, "boxcnABC", token)

	_, err = FileTokenFromURL("https://example.larksuite.com/docx/abc")
	assert.Error(t, err)
}

func TestSaveFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "assets")

	path, err := SaveFile(dir, "../escape.txt", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.txt"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	_, err = SaveFile(dir, "", nil)
	assert.Error(t, err)
}

func TestExtensionUnknown(t *testing.T) {
	assert.Empty(t, (&File{}).Extension())
	assert.Empty(t, (&File{MimeType: "application/x-not-a-real-type"}).Extension())
}
