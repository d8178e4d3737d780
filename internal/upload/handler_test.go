package upload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r.Group("/api"), dir)
	return r, dir
}

func multipartBody(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadStoresFile(t *testing.T) {
	r, dir := testRouter(t)
	body, ctype := multipartBody(t, "bay2.png", "image/png", "pngbytes")

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		FileURL  string `json:"fileUrl"`
		FileName string `json:"fileName"`
		FileSize int64  `json:"fileSize"`
		MimeType string `json:"mimeType"`
	}
	json.Unmarshal(w.Body.Bytes(), &out)

	if !strings.HasPrefix(out.FileURL, "/uploads/") || !strings.HasSuffix(out.FileURL, ".png") {
		t.Errorf("fileUrl = %q", out.FileURL)
	}
	if out.FileName != "bay2.png" || out.FileSize != int64(len("pngbytes")) {
		t.Errorf("meta = %q/%d", out.FileName, out.FileSize)
	}
	if out.MimeType != "image/png" {
		t.Errorf("mimeType = %q", out.MimeType)
	}

	stored := filepath.Join(dir, strings.TrimPrefix(out.FileURL, "/uploads/"))
	b, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if string(b) != "pngbytes" {
		t.Errorf("stored bytes = %q", b)
	}
}

func TestUploadMissingFile(t *testing.T) {
	r, _ := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
