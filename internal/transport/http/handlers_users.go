package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"certflow/internal/directory"
	"certflow/pkg/domain"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), actorFrom(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, toUserResponse(user))
	}
	WriteJSON(w, http.StatusOK, map[string][]userResponse{"users": out})
}

type createUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	user, err := h.users.Create(r.Context(), actorFrom(r), directory.CreateInput{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]userResponse{"user": toUserResponse(user)})
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleChangeUserPassword(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.users.ChangePassword(r.Context(), actorFrom(r), id, req.Password); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type renameUserRequest struct {
	FullName string `json:"fullName"`
}

func (h *Handler) handleRenameUser(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	var req renameUserRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.users.Rename(r.Context(), actorFrom(r), id, req.FullName); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
