package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/polysight/marketgate/internal/gateway"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseFetchOptions extracts listing parameters from the query string.
// Defaults and bounds are applied downstream by the gateway.
func parseFetchOptions(r *http.Request) gateway.FetchOptions {
	q := r.URL.Query()

	opts := gateway.FetchOptions{
		Category: q.Get("category"),
		SortBy:   q.Get("sortBy"),
		Trending: boolParam(q.Get("trending")),
		New:      boolParam(q.Get("new")),
		Breaking: boolParam(q.Get("breaking")),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Page = n
		}
	}

	return opts
}

func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
