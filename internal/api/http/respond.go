package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeBody decodes and validates a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// serverError logs err with the request logger and writes a generic 5xx.
func serverError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg(msg)
	http.Error(w, msg, status)
}

func isValidation(err error) bool {
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
