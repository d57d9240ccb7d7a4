package api

import (
	"net/http"

	"github.com/serroba/docstore/internal/db"
	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/document"
	"github.com/serroba/docstore/internal/revtree"
)

// openRevsRow is one entry of an open_revs=all response.
type openRevsRow struct {
	OK *db.Document `json:"ok"`
}

// handleGetDocument handles GET /{docID} and GET /_design/{name}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := docIDFrom(r)
	q := r.URL.Query()

	if q.Get("open_revs") == "all" {
		docs, err := s.db.OpenRevs(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)

			return
		}

		rows := make([]openRevsRow, len(docs))
		for i, doc := range docs {
			rows[i] = openRevsRow{OK: doc}
		}

		s.writeJSON(w, r, http.StatusOK, rows)

		return
	}

	opts := db.GetOptions{
		Conflicts: queryBool(q, "conflicts"),
		Revisions: queryBool(q, "revs"),
	}

	if raw := q.Get("rev"); raw != "" {
		rev, err := revtree.ParseRev(raw)
		if err != nil {
			s.writeError(w, r, docerr.ErrInvalidRev.WithReason(raw))

			return
		}

		opts.Rev = rev
	}

	doc, err := s.db.Get(r.Context(), id, opts)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, doc)
}

// handlePutDocument handles PUT /{docID} and PUT /_design/{name}.
func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)

		return
	}

	if body == nil {
		s.writeError(w, r, docerr.ErrNotAnObject)

		return
	}

	body["_id"] = docIDFrom(r)

	if rev := r.URL.Query().Get("rev"); rev != "" {
		if _, ok := body["_rev"]; !ok {
			body["_rev"] = rev
		}
	}

	mode := modeFrom(r)
	deleted, _ := body["_deleted"].(bool)

	if err := s.authorize(r, mode, docIDFrom(r), deleted); err != nil {
		s.writeError(w, r, err)

		return
	}

	res, err := s.db.Put(r.Context(), body, db.Options{Mode: mode})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, res)
}

// handleDeleteDocument handles DELETE /{docID}?rev=.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	var rev revtree.Rev

	if raw := r.URL.Query().Get("rev"); raw != "" {
		parsed, err := revtree.ParseRev(raw)
		if err != nil {
			s.writeError(w, r, docerr.ErrInvalidRev.WithReason(raw))

			return
		}

		rev = parsed
	}

	id := docIDFrom(r)

	if err := s.authorize(r, document.ModeGenerate, id, true); err != nil {
		s.writeError(w, r, err)

		return
	}

	res, err := s.db.Delete(r.Context(), id, rev)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, res)
}

func modeFrom(r *http.Request) document.Mode {
	if r.URL.Query().Get("new_edits") == "false" {
		return document.ModeImport
	}

	return document.ModeGenerate
}
