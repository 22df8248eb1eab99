package web

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/pkg/errors"
)

const maxBodySize = 1 << 20

func WriteJson(w http.ResponseWriter, data interface{}) {
	WriteJsonStatus(w, http.StatusOK, data)
}

func WriteJsonStatus(w http.ResponseWriter, status int, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, errors.Wrapf(err, "Failed to marshal"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	WriteResult(w, res)
}

func WriteResult(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		log.Printf("[web] Error when writing response: %v", err)
	}
}

func WriteError(w http.ResponseWriter, status int, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	WriteResult(w, data)
}

func readJson(r *http.Request, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrapf(err, "Failed to read body")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "Failed to unmarshal")
	}
	return nil
}
