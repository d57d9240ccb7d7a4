package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/document"
)

var errInvalidJSON = docerr.ErrBadRequest.WithMessage("invalid UTF-8 JSON")

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.log.WarnContext(r.Context(), "failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError renders err as {"error","reason"} with its status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	derr := docerr.From(err)
	if derr.Status >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	s.writeJSON(w, r, derr.Status, derr)
}

// decodeBody decodes a JSON request body. An empty body decodes to nil.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	return errInvalidJSON
}

// docIDFrom resolves the document id of a route. Design documents keep
// their prefix; ids containing an escaped slash are unescaped.
func docIDFrom(r *http.Request) string {
	if name := chi.URLParam(r, "name"); name != "" {
		return document.DesignPrefix + unescape(name)
	}

	return unescape(chi.URLParam(r, "docID"))
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}

	return s
}

func queryBool(q url.Values, key string) bool {
	return q.Get(key) == "true"
}
