package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/serroba/docstore/internal/acl"
	"github.com/serroba/docstore/internal/db"
	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/ws"
)

type changesResponse struct {
	Results []db.Change `json:"results"`
	LastSeq int64       `json:"last_seq"`
}

// handleChanges handles GET /_changes?since=&limit=&include_docs=.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	opts, err := changesOptions(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	feed, err := s.db.Changes(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	resp := changesResponse{Results: []db.Change{}}

	for change, err := range feed.All(r.Context()) {
		if err != nil {
			s.writeError(w, r, err)

			return
		}

		resp.Results = append(resp.Results, change)
	}

	resp.LastSeq = feed.LastSeq()

	s.writeJSON(w, r, http.StatusOK, resp)
}

func changesOptions(r *http.Request) (db.ChangesOptions, error) {
	q := r.URL.Query()
	opts := db.ChangesOptions{IncludeDocs: queryBool(q, "include_docs")}

	if raw := q.Get("since"); raw != "" && raw != "now" {
		since, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return opts, docerr.ErrBadRequest.WithMessage("since must be an integer")
		}

		opts.Since = since
	}

	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		return opts, err
	}

	opts.Limit = limit

	return opts, nil
}

// handleChangesWebSocket handles GET /_changes/ws. The connection first
// replays the feed after ?since= when given, then streams live changes.
func (s *Server) handleChangesWebSocket(w http.ResponseWriter, r *http.Request) {
	opts, err := changesOptions(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))

		return
	}

	client := ws.NewClient(uuid.New().String(), acl.UserFromContext(r.Context()), conn)
	s.hub.Register(client)

	defer func() {
		s.hub.Unregister(client)
		_ = client.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if r.URL.Query().Has("since") && r.URL.Query().Get("since") != "now" {
		if err := s.replay(ctx, client, opts); err != nil {
			_ = client.SendError(ws.ErrorCodeInternalError, err.Error())

			return
		}
	}

	go func() {
		defer cancel()

		_ = client.WriteLoop(ctx)
	}()

	s.readLoop(ctx, client)
}

// replay sends the finite feed to client before live changes flow.
func (s *Server) replay(ctx context.Context, client *ws.Client, opts db.ChangesOptions) error {
	feed, err := s.db.Changes(ctx, opts)
	if err != nil {
		return err
	}

	for change, err := range feed.All(ctx) {
		if err != nil {
			return err
		}

		if err := client.Send(ws.Message{Type: ws.MessageTypeChange, Payload: change}); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) readLoop(ctx context.Context, client *ws.Client) {
	for ctx.Err() == nil {
		msg, err := client.Receive()
		if errors.Is(err, ws.ErrInvalidPayload) {
			_ = client.SendError(ws.ErrorCodeInvalidMessage, err.Error())

			continue
		}

		if err != nil {
			return
		}

		switch msg.Type {
		case ws.MessageTypeSubscribe:
			payload, _ := msg.Payload.(ws.SubscribePayload)
			s.hub.Subscribe(client, payload.DocIDs)
		case ws.MessageTypeUnsubscribe:
			s.hub.Unsubscribe(client)
		default:
			_ = client.SendError(ws.ErrorCodeInvalidMessage, "unexpected message type")
		}
	}
}
