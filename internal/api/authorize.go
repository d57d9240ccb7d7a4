package api

import (
	"errors"
	"net/http"

	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/document"
)

// authorize checks a generated write to docID. Imports are left to the
// database's validation hook.
func (s *Server) authorize(r *http.Request, mode document.Mode, docID string, deleted bool) error {
	if s.checker == nil || mode == document.ModeImport {
		return nil
	}

	return s.checker.Authorize(r.Context(), docID, deleted)
}

// authorizeBatch turns generated writes the user may not perform into
// per-item errors. A failing permission store fails the whole batch.
func (s *Server) authorizeBatch(r *http.Request, batch document.Batch) error {
	if s.checker == nil || batch.Mode == document.ModeImport {
		return nil
	}

	for i := range batch.Docs {
		doc := &batch.Docs[i]
		if doc.Err != nil {
			continue
		}

		err := s.checker.Authorize(r.Context(), doc.ID, doc.Deleted)

		var derr *docerr.Error

		switch {
		case err == nil:
		case errors.As(err, &derr):
			doc.Err = derr
		default:
			return err
		}
	}

	return nil
}
