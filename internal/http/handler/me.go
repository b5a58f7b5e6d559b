package handler

import (
	"net/http"

	"memosync/internal/auth"
)

type MeHandler struct {
	Users auth.Users
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	u, err := h.Users.ByID(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, recordOf(u))
}
