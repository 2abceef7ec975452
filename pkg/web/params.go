package web

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
)

// ParseInt32 reads a required int32 query parameter.
func ParseInt32(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string) (int32, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("%s url parameter is required", key))
		return 0, false
	}
	return parseInt32(w, logger, key, value)
}

// ParseInt32Or reads an int32 query parameter, falling back to def when it is absent.
func ParseInt32Or(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string, def int32) (int32, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def, true
	}
	return parseInt32(w, logger, key, value)
}

func parseInt32(w http.ResponseWriter, logger *slog.Logger, key, value string) (int32, bool) {
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return 0, false
	}
	return int32(n), true
}

// ParseOptionalFloat reads a float query parameter. An absent parameter yields nil.
func ParseOptionalFloat(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string) (*float64, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return nil, false
	}
	return &f, true
}
