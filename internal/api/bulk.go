package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/serroba/docstore/internal/db"
	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/document"
)

// handleBulkDocs handles POST /_bulk_docs.
func (s *Server) handleBulkDocs(w http.ResponseWriter, r *http.Request) {
	var raw any

	err := decodeBody(r, &raw)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var results []db.Result

	if s.checker == nil {
		results, err = s.db.BulkWrite(r.Context(), raw, db.Options{Mode: modeFrom(r)})
	} else {
		results, err = s.checkedBulkWrite(r, raw)
	}

	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if results == nil {
		results = []db.Result{}
	}

	s.writeJSON(w, r, http.StatusCreated, results)
}

func (s *Server) checkedBulkWrite(r *http.Request, raw any) ([]db.Result, error) {
	batch, err := document.ParseBatch(raw, modeFrom(r))
	if err != nil {
		return nil, err
	}

	if err := s.authorizeBatch(r, batch); err != nil {
		return nil, err
	}

	return s.db.BulkDocs(r.Context(), batch.Docs, db.Options{Mode: batch.Mode})
}

type allDocsBody struct {
	Keys []string `json:"keys"`
}

// handleAllDocs handles GET and POST /_all_docs.
func (s *Server) handleAllDocs(w http.ResponseWriter, r *http.Request) {
	opts, err := allDocsOptions(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if r.Method == http.MethodPost {
		var body allDocsBody
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, r, err)

			return
		}

		if body.Keys != nil {
			opts.Keys = body.Keys
		}
	}

	result, err := s.db.AllDocs(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if result.Rows == nil {
		result.Rows = []db.Row{}
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

func allDocsOptions(r *http.Request) (db.AllDocsOptions, error) {
	q := r.URL.Query()

	opts := db.AllDocsOptions{
		Descending:  queryBool(q, "descending"),
		IncludeDocs: queryBool(q, "include_docs"),
		Conflicts:   queryBool(q, "conflicts"),
	}

	var err error

	if opts.Limit, err = queryInt(q.Get("limit")); err != nil {
		return opts, err
	}

	if opts.Skip, err = queryInt(q.Get("skip")); err != nil {
		return opts, err
	}

	if opts.StartKey, err = queryKey(q.Get("startkey")); err != nil {
		return opts, err
	}

	if opts.EndKey, err = queryKey(q.Get("endkey")); err != nil {
		return opts, err
	}

	if raw := q.Get("keys"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Keys); err != nil {
			return opts, docerr.ErrBadRequest.WithMessage("keys must be a JSON array of strings")
		}
	}

	return opts, nil
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, docerr.ErrBadRequest.WithMessage("expected a non-negative integer, got " + raw)
	}

	return n, nil
}

// queryKey accepts a JSON-encoded string key, or a bare one.
func queryKey(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	if raw[0] != '"' {
		return raw, nil
	}

	var key string
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return "", docerr.ErrBadRequest.WithMessage("invalid key " + raw)
	}

	return key, nil
}
