package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prepdesk/prepdesk-backend/internal/storage"
)

// MountAssets serves question illustration blobs. Upload is author-only and
// keyed under the owning assessment; questions reference the returned key via
// their image_key field.
func MountAssets(r chi.Router, bs storage.BlobStore, uploadGuard func(http.Handler) http.Handler) {
	// POST /assets/{assessmentID}
	r.With(uploadGuard).Post("/{assessmentID}", func(w http.ResponseWriter, r *http.Request) {
		assessmentID := chi.URLParam(r, "assessmentID")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		ext := path.Ext(hdr.Filename)
		key := "assessments/" + assessmentID + "/" + uuid.NewString() + ext
		if _, err := bs.Put(key, f); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, storage.ErrBadKey) {
				status = http.StatusBadRequest
			}
			http.Error(w, "store error: "+err.Error(), status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"key": key})
	})

	// DELETE /assets/*
	r.With(uploadGuard).Delete("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if err := bs.Delete(key); err != nil {
			http.Error(w, "not found: "+err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// GET /assets/*   -> returns the blob at whatever follows /assets/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			http.Error(w, "not found: "+err.Error(), http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	})
}
