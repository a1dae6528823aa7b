package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"baklava-be/internal/apperror"
	"baklava-be/internal/logger"
	"baklava-be/internal/utils"

	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

var (
	errEmptyBody   = apperror.Validation("body", "request body is required")
	errInvalidBody = apperror.Validation("body", "request body must be valid JSON")
)

// writeError maps a domain error to its HTTP status and public message.
// Storage and gateway details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.HTTPStatus(err)
	log := logger.FromCtx(r.Context())
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed",
			zap.String("kind", apperror.KindOf(err).String()),
			zap.Error(err),
		)
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		log.Info("request denied", zap.Error(err))
	default:
		log.Debug("request rejected", zap.Error(err))
	}
	utils.WriteJSONFieldError(w, apperror.PublicMessage(err), apperror.FieldOf(err), status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return errInvalidBody
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := decodeJSON(w, r, v)
	if errors.Is(err, errEmptyBody) {
		return nil
	}
	return err
}

// langOf picks the content language from ?lang= or Accept-Language.
func langOf(r *http.Request) string {
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		return strings.ToLower(lang)
	}
	al := r.Header.Get("Accept-Language")
	if al == "" {
		return ""
	}
	first := strings.SplitN(al, ",", 2)[0]
	first = strings.SplitN(first, ";", 2)[0]
	first = strings.SplitN(strings.TrimSpace(first), "-", 2)[0]
	return strings.ToLower(first)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperror.Validation(key, key+" must be a non-negative integer")
	}
	return n, nil
}

func parseID(value, field string) (uint, error) {
	id, err := utils.ToUint(value)
	if err != nil || id == 0 {
		return 0, apperror.Validation(field, "invalid "+field)
	}
	return id, nil
}
