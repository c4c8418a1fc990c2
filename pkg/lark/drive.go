package lark

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	httpclient "github.com/natserract/lark/pkg/http"
)

// File is a downloaded drive file, media asset or rendered whiteboard.
type File struct {
	Token    string
	Name     string
	MimeType string
	Data     []byte
}

// Extension guesses a file extension from the MIME type, including the dot.
func (f *File) Extension() string {
	if f.MimeType == "" {
		return ""
	}
	exts, err := mime.ExtensionsByType(f.MimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

var fileURLRe = regexp.MustCompile(`/file/([^/?#]+)`)

// FileTokenFromURL extracts the token of a drive file share link.
func FileTokenFromURL(rawURL string) (string, error) {
	m := fileURLRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("not a drive file url: %q", rawURL)
	}
	return m[1], nil
}

// DownloadFile downloads a drive file such as a PDF. byteRange, when set, is
// sent as the Range header, e.g. "bytes=0-1024".
func (l *Lark) DownloadFile(ctx context.Context, fileToken, byteRange string) (*File, error) {
	path, err := httpclient.FormatPath(driveFileDownloadPath, map[string]string{"file_token": fileToken})
	if err != nil {
		return nil, err
	}
	var opts []httpclient.Option
	if byteRange != "" {
		opts = append(opts, httpclient.WithHeader("Range", byteRange))
	}

	resp, err := l.httpClient.Raw(ctx, http.MethodGet, path, opts...)
	if err != nil {
		return nil, fmt.Errorf("download file failed: %w", err)
	}

	f := newFile(fileToken, resp)
	l.logger.Info("Downloaded drive file",
		zap.String("file_token", fileToken),
		zap.String("name", f.Name),
		zap.Int("bytes", len(f.Data)))
	return f, nil
}

// DownloadMedia downloads an asset embedded in a document (image, attachment).
func (l *Lark) DownloadMedia(ctx context.Context, fileToken string) (*File, error) {
	path, err := httpclient.FormatPath(driveMediaDownloadPath, map[string]string{"file_token": fileToken})
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Raw(ctx, http.MethodGet, path)
	if err != nil {
		return nil, fmt.Errorf("download media failed: %w", err)
	}
	return newFile(fileToken, resp), nil
}

// DownloadWhiteboardImage renders a whiteboard as a PNG.
func (l *Lark) DownloadWhiteboardImage(ctx context.Context, whiteboardID string) (*File, error) {
	path, err := httpclient.FormatPath(whiteboardImagePath, map[string]string{"whiteboard_id": whiteboardID})
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Raw(ctx, http.MethodGet, path)
	if err != nil {
		return nil, fmt.Errorf("download whiteboard failed: %w", err)
	}
	f := newFile(whiteboardID, resp)
	if f.MimeType == "" {
		f.MimeType = "image/png"
	}
	if f.Name == "" {
		f.Name = whiteboardID + ".png"
	}
	return f, nil
}

func newFile(token string, resp *httpclient.Response) *File {
	mimeType := resp.Headers.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	return &File{
		Token:    token,
		Name:     filenameFromDisposition(resp.Headers.Get("Content-Disposition")),
		MimeType: mimeType,
		Data:     resp.Body,
	}
}

// filenameFromDisposition returns the filename of a Content-Disposition
// header. The RFC 5987 filename* form wins over filename.
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// SaveFile writes data to dir/name, creating dir if needed, and returns the path.
func SaveFile(dir, name string, data []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("save file: name is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
