package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/playstats/internal/domain/model"
)

const maxPlayBody = 64 << 10

// handlePostPlay serves POST /plays. Events carrying an event_id are
// accepted once; events without one are always accepted.
func (s *Server) handlePostPlay(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_play"

	var e model.PlayEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPlayBody)).Decode(&e); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := e.Validate(); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}

	ctx := r.Context()
	e.EventID = strings.TrimSpace(e.EventID)
	dedupe := e.EventID != ""
	if !dedupe {
		e.EventID = uuid.NewString()
	}

	if dedupe && s.deps.SeenAndRecord(ctx, e.EventID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, EventID: e.EventID})
		return
	}

	if ok := s.deps.Enqueue(ctx, e); !ok {
		if dedupe {
			s.deps.Unrecord(ctx, e.EventID)
		}
		writeFailure(w, NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: e.EventID})
}
