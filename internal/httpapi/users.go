package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.directory.List(r.Context())
	if err != nil {
		s.internalError(w, "list users", err)
		return
	}
	resp := types.UsersResponse{Users: make([]types.User, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, userToWire(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	u, err := s.directory.Register(r.Context(), req.CardID, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCardID):
			writeError(w, http.StatusBadRequest, "invalid_card_id", err.Error())
		case errors.Is(err, service.ErrInvalidDisplayName):
			writeError(w, http.StatusBadRequest, "invalid_display_name", err.Error())
		case errors.Is(err, store.ErrDuplicateCardID):
			writeError(w, http.StatusConflict, "duplicate_card_id", err.Error())
		default:
			s.internalError(w, "create user", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, userToWire(u))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := s.directory.Remove(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found", err.Error())
			return
		}
		s.internalError(w, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearUserEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	n, err := s.directory.ClearEvents(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found", err.Error())
			return
		}
		s.internalError(w, "clear user events", err)
		return
	}
	writeJSON(w, http.StatusOK, types.ClearEventsResponse{Deleted: n})
}

func (s *Server) handleClearAllEvents(w http.ResponseWriter, r *http.Request) {
	n, err := s.directory.ClearAllEvents(r.Context())
	if err != nil {
		s.internalError(w, "clear events", err)
		return
	}
	writeJSON(w, http.StatusOK, types.ClearEventsResponse{Deleted: n})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "user id must be a positive integer")
		return 0, false
	}
	return id, true
}

func userToWire(u store.User) types.User {
	return types.User{
		ID:          u.ID,
		CardID:      u.CardID,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
