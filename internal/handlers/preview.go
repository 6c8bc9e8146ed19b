package handlers

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"path"
	"strings"

	"sitesmith/internal/pipeline"
	"sitesmith/pkg/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PreviewDraft serves a generated draft in the browser. Drafts with a
// committed file tree get their index.html; drafts generated by the legacy
// path get the component code wrapped in a standalone shell.
func (h *Handler) PreviewDraft(c *gin.Context) {
	draft, ok := h.publicDraft(c)
	if !ok {
		return
	}

	var index models.DraftFile
	err := h.db.Where("draft_id = ? AND path = ?", draft.ID, "index.html").First(&index).Error
	if err == nil {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(index.Content))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preview"})
		return
	}

	var main models.DraftFile
	err = h.db.Where("draft_id = ? AND path = ?", draft.ID, pipeline.MainFile).First(&main).Error
	if err == nil {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(previewShell(draft.BusinessName, main.Content)))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preview"})
		return
	}

	if code, ok := draft.Metadata["generatedCode"].(string); ok && code != "" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(previewShell(draft.BusinessName, code)))
		return
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "draft has not been generated yet"})
}

// PreviewDraftFile serves one file from a draft's committed tree.
func (h *Handler) PreviewDraftFile(c *gin.Context) {
	draft, ok := h.publicDraft(c)
	if !ok {
		return
	}

	rel := strings.TrimPrefix(c.Param("path"), "/")
	clean := path.Clean(rel)
	if clean == "." || strings.HasPrefix(clean, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}

	var file models.DraftFile
	err := h.db.Where("draft_id = ? AND path = ?", draft.ID, clean).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load file"})
		}
		return
	}

	c.Data(http.StatusOK, contentTypeFor(clean), []byte(file.Content))
}

// publicDraft loads the :id draft without an ownership check. Preview URLs
// are shared links, the unguessable public id is the access token.
func (h *Handler) publicDraft(c *gin.Context) (*models.DraftProject, bool) {
	var draft models.DraftProject
	err := h.db.Where("public_id = ?", c.Param("id")).First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load draft"})
		}
		return nil, false
	}
	return &draft, true
}

// previewShell wraps a React component in a self-contained page that
// compiles it in the browser. Good enough for draft previews.
func previewShell(title, code string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<script src="https://unpkg.com/react@18/umd/react.production.min.js"></script>
<script src="https://unpkg.com/react-dom@18/umd/react-dom.production.min.js"></script>
<script src="https://unpkg.com/@babel/standalone/babel.min.js"></script>
<script src="https://cdn.tailwindcss.com"></script>
</head>
<body>
<div id="root"></div>
<script type="text/babel" data-presets="env,react">
%s
const __mount = document.getElementById('root');
ReactDOM.createRoot(__mount).render(React.createElement(typeof App !== 'undefined' ? App : (() => null)));
</script>
</body>
</html>`, html.EscapeString(title), code)
}

func contentTypeFor(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js", ".jsx":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "text/plain; charset=utf-8"
	}
}
