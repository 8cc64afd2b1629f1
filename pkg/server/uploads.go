// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/networkschool/nsauth/pkg/logger"
	"github.com/networkschool/nsauth/pkg/store"
)

// maxIconSize caps uploaded app icons at 2 MiB.
const maxIconSize = 2 << 20

// iconExtensions maps accepted content types to the stored file extension.
var iconExtensions = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// handleUploadIcon stores an app icon and points the app's icon_url at it.
// A previously uploaded icon is removed once the new one is in place.
func (s *Server) handleUploadIcon(w http.ResponseWriter, r *http.Request) {
	id, ok := appIDFromRequest(r)
	if !ok {
		writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
		return
	}

	app, err := s.apps.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
			return
		}
		writeServerError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxIconSize+4096)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "file is required and must be at most 2MB")
		return
	}
	defer file.Close()

	ext, ok := iconExtensions[header.Header.Get("Content-Type")]
	if !ok {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest,
			"unsupported image type; use png, jpeg, gif, webp or svg")
		return
	}
	if header.Size > maxIconSize {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "file must be at most 2MB")
		return
	}

	if err := os.MkdirAll(s.cfg.UploadsDir, 0o755); err != nil {
		writeServerError(w, err)
		return
	}

	filename := uuid.NewString() + "." + ext
	dst, err := os.Create(filepath.Join(s.cfg.UploadsDir, filename))
	if err != nil {
		writeServerError(w, err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeServerError(w, err)
		return
	}
	if err := dst.Close(); err != nil {
		writeServerError(w, err)
		return
	}

	oldIconURL := app.IconURL
	app, err = s.apps.SetIconURL(r.Context(), id, "/uploads/"+filename)
	if err != nil {
		writeServerError(w, err)
		return
	}
	s.removeUploadedIcon(oldIconURL)

	writeJSON(w, http.StatusOK, toAppResponse(app))
}

// handleDeleteIcon clears an app's icon and removes the uploaded file.
func (s *Server) handleDeleteIcon(w http.ResponseWriter, r *http.Request) {
	id, ok := appIDFromRequest(r)
	if !ok {
		writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
		return
	}

	app, err := s.apps.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
			return
		}
		writeServerError(w, err)
		return
	}

	oldIconURL := app.IconURL
	app, err = s.apps.SetIconURL(r.Context(), id, "")
	if err != nil {
		writeServerError(w, err)
		return
	}
	s.removeUploadedIcon(oldIconURL)

	writeJSON(w, http.StatusOK, toAppResponse(app))
}

// removeUploadedIcon deletes a file we previously stored. External icon
// URLs and anything trying to escape the uploads dir are ignored.
func (s *Server) removeUploadedIcon(iconURL string) {
	name, ok := strings.CutPrefix(iconURL, "/uploads/")
	if !ok || name == "" || name != filepath.Base(name) {
		return
	}
	if err := os.Remove(filepath.Join(s.cfg.UploadsDir, name)); err != nil && !os.IsNotExist(err) {
		logger.Warnw("failed to remove old icon", "file", name, "error", err)
	}
}
