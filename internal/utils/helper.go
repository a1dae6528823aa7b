package utils

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonAlnumRegex  = regexp.MustCompile(`[^a-z0-9.]+`)
	multiDashRegex = regexp.MustCompile(`-+`)
)

// Slugify lowercases input and collapses everything except letters, digits
// and dots into single dashes. Used for storage object names.
func Slugify(input string) string {
	slug := strings.ToLower(strings.TrimSpace(input))
	slug = nonAlnumRegex.ReplaceAllString(slug, "-")
	slug = multiDashRegex.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-.")
}

func ToUint(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	return uint(n), err
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func WriteJSONError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, code, map[string]string{"error": message})
}

// WriteJSONFieldError is WriteJSONError plus the offending input field.
func WriteJSONFieldError(w http.ResponseWriter, message, field string, code int) {
	if field == "" {
		WriteJSONError(w, message, code)
		return
	}
	WriteJSON(w, code, map[string]string{"error": message, "field": field})
}
