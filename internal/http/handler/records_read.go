package handler

import (
	"net/http"

	"memosync/internal/auth"
	"memosync/internal/remote"

	"go.uber.org/zap"
)

type listResp struct {
	Items []remote.Record `json:"items"`
}

// scopedFilter parses the filter query parameter and pins it to uid.
func scopedFilter(r *http.Request, uid string) (remote.Filter, error) {
	f, err := remote.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		return nil, err
	}
	return f.And("user", uid), nil
}

func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}
	filter, err := scopedFilter(r, uid)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sort, err := remote.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.Store.ListAll(r.Context(), collection, filter, sort)
	if err != nil {
		h.Logger.Error("list records", zap.String("collection", collection), zap.Error(err))
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResp{Items: recs})
}

func (h *RecordsHandler) First(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}
	filter, err := scopedFilter(r, uid)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.Store.LookupFirst(r.Context(), collection, filter)
	if err != nil {
		if !remote.IsNotFound(err) {
			h.Logger.Error("lookup record", zap.String("collection", collection), zap.Error(err))
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}
	if rec, ok := h.owned(w, r, collection, uid); ok {
		writeJSON(w, http.StatusOK, rec)
	}
}
