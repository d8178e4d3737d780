package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Uploader pushes attachment bytes to the HTTP upload endpoint. Uploads
// are not optimistic: the attachment has no identity until the server
// hands back its URL, so nothing is rendered before that.
type Uploader struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// Upload transmits the file as multipart form data and returns the
// stable URL assigned by the server. Failure leaves no partial state.
func (u *Uploader) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", errors.Wrap(err, "build upload form")
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", errors.Wrap(err, "read attachment")
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, "finish upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/api/upload", &body)
	if err != nil {
		return "", errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+u.Token)

	hc := u.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload attachment")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("upload attachment: %s", resp.Status)
	}

	var out struct {
		FileURL string `json:"fileUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode upload response")
	}
	if out.FileURL == "" {
		return "", errors.New("upload response missing fileUrl")
	}
	return out.FileURL, nil
}

// KindForMime picks the message kind announced for an attachment:
// anything under image/* renders inline, the rest is a plain file.
func KindForMime(mimeType string) MessageKind {
	if strings.HasPrefix(mimeType, "image/") {
		return KindImage
	}
	return KindFile
}

// GuessMime falls back to octet-stream when the caller has no better
// idea than the filename extension.
func GuessMime(name string) string {
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
