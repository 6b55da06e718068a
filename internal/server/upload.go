package server

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/CredenceNG/confirmd-platform/internal/rpc"
)

const maxLogoSize = 2 << 20 // 2 MiB

var allowedLogoExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".svg":  {},
	".webp": {},
}

// UploadOrgLogo stores the uploaded image and points the organization's logo
// URL at it. The stored name is generated; client file names never reach the
// filesystem.
func (s *Server) UploadOrgLogo(c *gin.Context) {
	header, err := c.FormFile("logo")
	if err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}
	if header.Size > maxLogoSize {
		abortJSON(c, http.StatusBadRequest, "file_too_large")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedLogoExtensions[ext]; !ok {
		abortJSON(c, http.StatusBadRequest, "unsupported_file_type")
		return
	}

	file, err := header.Open()
	if err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}
	defer file.Close()

	name := "org-logo-" + ulid.Make().String() + ext
	url, err := s.store.Save(c.Request.Context(), name, file)
	if err != nil {
		s.log.Error("logo upload failed", zap.Error(err))
		abortJSON(c, http.StatusInternalServerError, "internal_error")
		return
	}

	s.invoke(c, rpc.CmdOrgUpdate, map[string]any{
		"userId":  s.userID(c),
		"orgId":   c.Param("orgId"),
		"logoUrl": url,
	})
}
