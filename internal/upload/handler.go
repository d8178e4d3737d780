package upload

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shinewash/teamchat/internal/httpx"
)

// Service stores chat attachments on local disk and serves them back
// under /uploads. The returned URL is the attachment's identity; the
// sender announces it on the channel afterwards.
type Service struct {
	Dir string
}

func Register(rg *gin.RouterGroup, dir string) {
	s := Service{Dir: dir}
	rg.POST("/upload", s.upload)
}

func (s Service) upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "missing file")
		return
	}

	stored := uuid.NewString() + filepath.Ext(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(s.Dir, stored)); err != nil {
		httpx.Err(c, http.StatusInternalServerError, "store failed")
		return
	}

	httpx.OK(c, gin.H{
		"fileUrl":  "/uploads/" + stored,
		"fileName": file.Filename,
		"fileSize": file.Size,
		"mimeType": file.Header.Get("Content-Type"),
	})
}
