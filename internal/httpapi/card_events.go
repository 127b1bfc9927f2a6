package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// handleCardEvent feeds one card presentation from a network reader into
// the state machine. Network readers debounce on their side.
func (s *Server) handleCardEvent(w http.ResponseWriter, r *http.Request) {
	useProto := isProtobuf(r)

	var cardID string
	if useProto {
		id, err := cardIDFromProto(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
		cardID = id
	} else {
		var req types.CardEventRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
		cardID = req.CardID
	}

	out, err := s.access.ProcessCard(r.Context(), cardID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCardID):
			writeError(w, http.StatusBadRequest, "invalid_card_id", err.Error())
		case errors.Is(err, service.ErrStorageFailure):
			s.logger.Error("card event storage failure", zap.String("card_id", cardID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "storage_failure", "event could not be recorded")
		default:
			s.internalError(w, "card event", err)
		}
		return
	}

	resp := cardEventResponse(out, s.now())
	if !useProto {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	msg, err := cardEventResponseToProto(resp)
	if err != nil {
		s.internalError(w, "card event proto", err)
		return
	}
	writeProto(w, http.StatusOK, msg)
}

func cardEventResponse(out service.Outcome, now time.Time) types.CardEventResponse {
	resp := types.CardEventResponse{
		OK:         true,
		Known:      out.Kind == service.OutcomeRecorded,
		Outcome:    string(out.Kind),
		CardID:     out.CardID,
		ServerTime: now.UTC().Format(time.RFC3339),
	}
	if resp.Known {
		resp.UserID = out.User.ID
		resp.DisplayName = out.User.DisplayName
		resp.Direction = string(out.Event.Direction)
		resp.EventID = out.Event.ID
		resp.Timestamp = out.Event.Timestamp.UTC().Format(time.RFC3339)
	}
	return resp
}
