// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"embed"
	"encoding/base64"
	"html/template"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// UI customises the login and registration pages.
type UI struct {
	SiteName    string
	CSS         template.CSS
	LogoDataURL template.URL
}

// LoadUI reads the optional stylesheet and logo from disk. Empty paths are
// skipped. The logo is inlined as a data URL.
func LoadUI(siteName, cssPath, logoPath string) (UI, error) {
	ui := UI{SiteName: siteName}

	if cssPath != "" {
		css, err := os.ReadFile(cssPath) //nolint:gosec // operator-supplied path
		if err != nil {
			return UI{}, oops.Code("UI_LOAD_FAILED").With("css_path", cssPath).Wrap(err)
		}
		ui.CSS = template.CSS(css) //nolint:gosec // operator-supplied stylesheet
	}

	if logoPath != "" {
		logo, err := os.ReadFile(logoPath) //nolint:gosec // operator-supplied path
		if err != nil {
			return UI{}, oops.Code("UI_LOAD_FAILED").With("logo_path", logoPath).Wrap(err)
		}
		mediaType := mime.TypeByExtension(filepath.Ext(logoPath))
		if mediaType == "" {
			mediaType = http.DetectContentType(logo)
		}
		//nolint:gosec // operator-supplied image
		ui.LogoDataURL = template.URL("data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(logo))
	}

	return ui, nil
}

type pageData struct {
	Title    string
	UI       UI
	Username string
	Error    string
	Success  string
}

// render writes the named page with the given status. The page is rendered
// to a buffer first so a template error never produces a partial response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.UI = h.ui

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.ErrorContext(r.Context(), "render page failed", "page", name, "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	w.Write(buf.Bytes())
}
