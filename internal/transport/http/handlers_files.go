package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"certflow/internal/docstore"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/requestcontext"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 10 << 20

type uploadFileRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"` // base64 in JSON
}

func (h *Handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var req uploadFileRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Name == "" || len(req.Data) == 0 {
		WriteError(w, dErrors.New(dErrors.CodeValidation, "name and data are required"))
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	file := &docstore.File{
		ID:          domain.NewFileID(),
		Name:        req.Name,
		ContentType: req.ContentType,
		Size:        int64(len(req.Data)),
		UploadedBy:  requestcontext.UserID(r.Context()),
		UploadedAt:  requestcontext.Now(r.Context()),
		Data:        req.Data,
	}
	if err := h.files.Save(r.Context(), file); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "save file"))
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]fileResponse{"file": toFileResponse(file, false)})
}

func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseFileID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	file, err := h.files.Get(r.Context(), id)
	if err != nil {
		WriteError(w, dErrors.New(dErrors.CodeNotFound, "file not found"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]fileResponse{"file": toFileResponse(file, true)})
}
