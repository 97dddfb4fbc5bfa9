// Package respond writes the JSON bodies shared by all handlers.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/lildude/stravasync/internal/errs"
)

// JSON writes v as the response body with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck,errchkjson // headers are already sent
	}
}

// Error writes the {error, message} body mapped from the taxonomy.
func Error(w http.ResponseWriter, err error) {
	JSON(w, errs.HTTPStatus(err), map[string]string{
		"error":   errs.Code(err),
		"message": err.Error(),
	})
}
