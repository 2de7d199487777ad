package upstream

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/gosuda/backoffice/internal/domain"
)

// Upload paths. The public one is scoped by the opaque profile or survey token.
const (
	UploadPath       = "/files/upload"
	PublicUploadPath = "/public/files/upload"
)

// FilePart is one file of a multipart upload.
type FilePart struct {
	Name        string
	ContentType string
	Content     io.Reader
}

type wireUploadedFile struct {
	ID           stringID `json:"id"`
	OriginalName string   `json:"original_name"`
	Filename     string   `json:"filename"`
	MimeType     string   `json:"mime_type"`
	Size         int64    `json:"size"`
	URL          string   `json:"url"`
}

// Upload posts files as a multipart form with a repeatable "files" field.
// The body is streamed through a pipe so large files are never buffered.
func (c *Client) Upload(ctx context.Context, path string, query map[string]string, files []FilePart) ([]domain.UploadedFile, string, error) {
	if len(files) == 0 {
		return nil, "", fmt.Errorf("upstream.Client.Upload: %w", &domain.ValidationError{Fields: map[string]string{"files": "at least one file is required"}})
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeParts(mw, files)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req := request{
		method:      http.MethodPost,
		path:        path,
		body:        pr,
		contentType: mw.FormDataContentType(),
	}
	if len(query) > 0 {
		req.query = url.Values{}
		for k, v := range query {
			req.query.Set(k, v)
		}
	}

	var wire []wireUploadedFile
	meta, err := c.send(ctx, req, &wire)
	// Unblock the writer goroutine if send returned before draining the pipe.
	_ = pr.Close()
	if err != nil {
		return nil, "", fmt.Errorf("upstream.Client.Upload: %w", err)
	}

	out := make([]domain.UploadedFile, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.UploadedFile{
			ID:           string(w.ID),
			OriginalName: w.OriginalName,
			Filename:     w.Filename,
			MimeType:     w.MimeType,
			Size:         w.Size,
			URL:          w.URL,
		})
	}
	return out, meta.Message, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeParts(mw *multipart.Writer, files []FilePart) error {
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(f.Name)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %q: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("copy part %q: %w", f.Name, err)
		}
	}
	return nil
}
