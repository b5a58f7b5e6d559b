package handler

import (
	"net/http"

	"memosync/internal/auth"
	"memosync/internal/remote"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RecordStore is the store the record routes need: the sync contract plus
// fetch by id for ownership checks.
type RecordStore interface {
	remote.Store
	remote.Getter
}

// Collections served by the record routes.
var Collections = map[string]bool{
	remote.CollectionMemos:        true,
	remote.CollectionUserSettings: true,
}

// RecordsHandler serves the generic record API. Every request is confined to
// the records whose user field is the caller.
type RecordsHandler struct {
	Store  RecordStore
	Logger *zap.Logger
}

func (h *RecordsHandler) collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	c := chi.URLParam(r, "collection")
	if !Collections[c] {
		writeError(w, http.StatusNotFound, "unknown collection")
		return "", false
	}
	return c, true
}

// owned loads a record by id and checks it belongs to uid. Foreign records
// are reported as missing.
func (h *RecordsHandler) owned(w http.ResponseWriter, r *http.Request, collection, uid string) (remote.Record, bool) {
	id := chi.URLParam(r, "id")
	rec, err := h.Store.Get(r.Context(), collection, id)
	if err != nil {
		writeStoreError(w, err)
		return remote.Record{}, false
	}
	if rec.Data["user"] != uid {
		writeError(w, http.StatusNotFound, "record not found")
		return remote.Record{}, false
	}
	return rec, true
}

func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	var data remote.Data
	if err := decodeJSON(r, &data); err != nil || data == nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if u, ok := data["user"]; ok && u != uid {
		writeError(w, http.StatusForbidden, "user field must be the caller")
		return
	}
	data["user"] = uid

	rec, err := h.Store.Create(r.Context(), collection, data)
	if err != nil {
		h.Logger.Error("create record", zap.String("collection", collection), zap.Error(err))
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *RecordsHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	var data remote.Data
	if err := decodeJSON(r, &data); err != nil || data == nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if u, ok := data["user"]; ok && u != uid {
		writeError(w, http.StatusForbidden, "user field must be the caller")
		return
	}
	existing, ok := h.owned(w, r, collection, uid)
	if !ok {
		return
	}

	rec, err := h.Store.Update(r.Context(), collection, existing.ID, data)
	if err != nil {
		h.Logger.Error("update record", zap.String("collection", collection), zap.String("id", existing.ID), zap.Error(err))
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}
	existing, ok := h.owned(w, r, collection, uid)
	if !ok {
		return
	}

	if err := h.Store.Delete(r.Context(), collection, existing.ID); err != nil {
		h.Logger.Error("delete record", zap.String("collection", collection), zap.String("id", existing.ID), zap.Error(err))
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
