package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/playstats/internal/domain/model"
	"github.com/okian/playstats/internal/domain/types"
)

type playResponse struct {
	ID        string    `json:"id"`
	GroupID   int64     `json:"group_id"`
	UserID    int64     `json:"user_id"`
	SongTitle string    `json:"song_title"`
	PlayedAt  time.Time `json:"played_at"`
}

func groupFromPath(r *http.Request) (model.GroupID, error) {
	return model.ParseGroupID(mux.Vars(r)["group_id"])
}

// handleGroup serves GET /groups/{group_id}.
func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_group"

	group, err := groupFromPath(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	n, err := s.deps.GroupCount(r.Context(), group)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.GroupCount{GroupID: int64(group), Count: n})
}

// handleAddTestData serves POST /groups/{group_id}/plays for administrators.
func (s *Server) handleAddTestData(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_test_data"

	group, err := groupFromPath(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	n, err := s.deps.AddTestData(r.Context(), group)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.GroupCount{GroupID: int64(group), Count: n})
}

// handleGroupPlays serves GET /groups/{group_id}/plays?limit=N from history.
func (s *Server) handleGroupPlays(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_group_plays"

	group, err := groupFromPath(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}

	list, err := s.deps.RecentPlays(r.Context(), group, limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out := make([]playResponse, 0, len(list))
	for _, p := range list {
		out = append(out, playResponse{
			ID:        p.ID,
			GroupID:   int64(p.GroupID),
			UserID:    p.UserID,
			SongTitle: p.SongTitle,
			PlayedAt:  p.PlayedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
