package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"memosync/internal/remote"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// errorBody is the error shape every route answers with.
type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Status: status, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return errors.New("bad json")
	}
	return nil
}

// decode reads a JSON body into the struct v and validates its tags.
func decode(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New("invalid " + verrs[0].Field())
		}
		return errors.New("invalid input")
	}
	return nil
}

// writeStoreError maps a remote.Store failure onto a response.
func writeStoreError(w http.ResponseWriter, err error) {
	if remote.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var re *remote.RemoteError
	if errors.As(err, &re) && re.Status >= 400 && re.Status < 600 {
		writeError(w, re.Status, re.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "server error")
}
